package offer

import (
	"math"
	"slices"
	"sort"
)

// Tags written onto matched items.
const (
	TagOverall = "overall"
	TagBuy     = "buy"
	TagGet     = "get"
	TagFree    = "free"

	couponPrefix = "coupon-"
)

// factorEpsilon absorbs float error when quantities divide exactly.
const factorEpsilon = 1e-9

// Item is the matcher's view of a cart line.
type Item struct {
	ItemID        string
	Seq           int
	CategoryID    int64
	ProductID     int64
	SizeID        int64
	AddonLabelIDs []int64
	AddonIDs      []int64
	Type          int
	Qty           float64
	Cost          float64
}

func (it Item) unitCost() float64 {
	if it.Qty <= 0 {
		return 0
	}
	return it.Cost / it.Qty
}

// Slot is one channel's attribution on an item.
type Slot struct {
	OfferID int64
	Qty     float64
}

// Attribution is what the matcher derived for one item.
type Attribution struct {
	Tags      []string
	Automatic Slot
	Coupon    Slot
}

// HasTag reports whether tag was applied through either channel.
func (a Attribution) HasTag(tag string) bool {
	return slices.Contains(a.Tags, tag) || slices.Contains(a.Tags, couponPrefix+tag)
}

// Status is the outcome of one offer in a match pass.
type Status struct {
	OfferID int64
	Reason  Reason
	Factor  int
	// Attributed is set once the offer holds a slot on at least one item.
	Attributed bool
	// AutoSelect holds the get sets the customer still has to pick from when a
	// free offer is satisfied fewer times on the get side than the buy side.
	AutoSelect [][]Rule
	Owed       int
}

// Result is a full match pass.
type Result struct {
	Attributions map[string]Attribution
	Statuses     []Status
}

// Applied reports how many offers were attributed to at least one item.
func (r Result) Applied() int {
	n := 0
	for _, s := range r.Statuses {
		if s.Attributed {
			n++
		}
	}
	return n
}

// Evaluate derives every item's attribution from scratch. Offers are applied in
// the order given.
func Evaluate(defs []Definition, items []Item, c Context) Result {
	sorted := slices.Clone(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		ui, uj := sorted[i].unitCost(), sorted[j].unitCost()
		if ui != uj {
			return ui < uj
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	m := matcher{items: sorted, attrs: make(map[string]*Attribution, len(items))}
	for _, it := range sorted {
		m.attrs[it.ItemID] = &Attribution{}
	}

	res := Result{Statuses: make([]Status, 0, len(defs))}
	for _, d := range defs {
		st := Status{OfferID: d.ID}
		if reason := d.Eligible(c); reason != "" {
			st.Reason = reason
			res.Statuses = append(res.Statuses, st)
			continue
		}
		switch d.Kind {
		case KindOverall:
			ev := m.evaluate(Sets(d.Conditions.Overall))
			if ev.factor > 0 {
				st.Factor = ev.factor
				for _, part := range ev.parts {
					if m.apply(d, ev.factor, part.items, part.qty, TagOverall) {
						st.Attributed = true
					}
				}
			}
		case KindBuyGet:
			m.buyGet(d, &st)
		}
		res.Statuses = append(res.Statuses, st)
	}

	res.Attributions = make(map[string]Attribution, len(m.attrs))
	for id, a := range m.attrs {
		res.Attributions[id] = *a
	}
	return res
}

type matcher struct {
	items []Item
	attrs map[string]*Attribution
}

// part is the cheapest satisfiable rule of one condition set.
type part struct {
	items []Item
	qty   float64
}

type evaluation struct {
	factor int
	parts  []part
}

func (m *matcher) buyGet(d Definition, st *Status) {
	buy := m.evaluate(Sets(d.Conditions.Buy))
	if buy.factor == 0 {
		return
	}
	getTags := []string{TagGet}
	if d.Discount.Free() {
		getTags = append(getTags, TagFree)
	}

	if len(d.Conditions.Get.Rules) > 0 {
		getSets := Sets(d.Conditions.Get.Rules)
		get := m.evaluate(getSets)
		factor := min(buy.factor, get.factor)
		if factor > 0 {
			st.Factor = factor
			for _, p := range buy.parts {
				m.apply(d, factor, p.items, p.qty, TagBuy)
			}
			for _, p := range get.parts {
				if m.apply(d, factor, p.items, p.qty, getTags...) {
					st.Attributed = true
				}
			}
		}
		if d.Discount.Free() && buy.factor > get.factor {
			st.AutoSelect = getSets
			st.Owed = buy.factor - get.factor
		}
		return
	}

	st.Factor = buy.factor
	var pool []Item
	seen := make(map[string]bool)
	for _, p := range buy.parts {
		m.apply(d, buy.factor, p.items, p.qty, TagBuy)
		for _, it := range p.items {
			if !seen[it.ItemID] {
				seen[it.ItemID] = true
				pool = append(pool, it)
			}
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		ui, uj := pool[i].unitCost(), pool[j].unitCost()
		if ui != uj {
			return ui < uj
		}
		return pool[i].Seq < pool[j].Seq
	})
	st.Attributed = m.apply(d, buy.factor, pool, float64(d.Conditions.Get.Qty), getTags...)
}

// evaluate computes the shared factor of a list of condition sets. Within a
// set the satisfiable rule with the lowest greedy cost wins.
func (m *matcher) evaluate(sets [][]Rule) evaluation {
	if len(sets) == 0 {
		return evaluation{}
	}
	ev := evaluation{factor: math.MaxInt}
	for _, set := range sets {
		best := part{}
		bestFactor := 0
		bestCost := math.Inf(1)
		for _, r := range set {
			matched := m.selectItems(r)
			f := factor(matched, r.Qty)
			if f == 0 {
				continue
			}
			if cost := greedyCost(matched, r.Qty); cost < bestCost {
				best = part{items: matched, qty: r.Qty}
				bestFactor = f
				bestCost = cost
			}
		}
		ev.factor = min(ev.factor, bestFactor)
		ev.parts = append(ev.parts, best)
	}
	return ev
}

// selectItems keeps the unit-cost order; an item hit by several ids counts once.
func (m *matcher) selectItems(r Rule) []Item {
	var out []Item
	for _, it := range m.items {
		for _, id := range r.IDs {
			if id.matches(it) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

func (x Match) matches(it Item) bool {
	var hit bool
	switch x.Group {
	case GroupCategory:
		hit = it.CategoryID == x.ID
	case GroupProduct:
		hit = it.ProductID == x.ID
	case GroupSize:
		hit = it.SizeID == x.ID
	case GroupAddonLabel:
		hit = slices.Contains(it.AddonLabelIDs, x.ID)
	case GroupAddon:
		hit = slices.Contains(it.AddonIDs, x.ID)
	}
	return hit && x.Diet.accepts(it.Type)
}

func factor(items []Item, required float64) int {
	if required <= 0 {
		return 0
	}
	total := 0.0
	for _, it := range items {
		total += it.Qty
	}
	return int(math.Floor(total/required + factorEpsilon))
}

// greedyCost is the cost of taking required units from the cheapest items first.
func greedyCost(items []Item, required float64) float64 {
	cost := 0.0
	left := required
	for _, it := range items {
		if left <= 0 {
			break
		}
		if it.Qty >= left {
			cost += it.unitCost() * left
			left = 0
		} else {
			cost += it.Cost
			left -= it.Qty
		}
	}
	return cost
}

// apply consumes factor*qty units from items in order. A slot already held by
// a different offer is skipped and does not consume budget. It reports whether
// any slot was attributed to d; buy-side passes never attribute.
func (m *matcher) apply(d Definition, factor int, items []Item, qty float64, tags ...string) bool {
	budget := float64(factor) * qty
	attribute := !slices.Contains(tags, TagBuy)
	attributed := false
	for _, it := range items {
		if budget <= factorEpsilon {
			break
		}
		a := m.attrs[it.ItemID]
		slot := &a.Automatic
		if d.IsCoupon() {
			slot = &a.Coupon
		}
		if attribute && slot.OfferID != 0 && slot.OfferID != d.ID {
			continue
		}
		take := math.Min(it.Qty, budget)
		for _, tag := range tags {
			if d.IsCoupon() {
				tag = couponPrefix + tag
			}
			if !slices.Contains(a.Tags, tag) {
				a.Tags = append(a.Tags, tag)
			}
		}
		if attribute {
			slot.OfferID = d.ID
			slot.Qty = math.Min(it.Qty, slot.Qty+take)
			attributed = true
		}
		budget -= take
	}
	return attributed
}
