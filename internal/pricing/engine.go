package pricing

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/offer"
)

// Scope selects whether bill-level extra charges are included.
type Scope string

const (
	ScopeCart Scope = "cart"
	ScopeBill Scope = "bill"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopeCart || s == ScopeBill
}

// Rule is the discount part of an offer.
type Rule struct {
	On      offer.Base
	Percent float64
	Upto    float64
	UptoOn  offer.CapScope
}

// RuleFor extracts the discount rule of an offer definition.
func RuleFor(d offer.Definition) Rule {
	return Rule{
		On:      d.Discount.On,
		Percent: d.Discount.Value,
		Upto:    d.Conditions.Upto,
		UptoOn:  d.Conditions.UptoOn,
	}
}

// Slot is an item's attribution on one channel. Value is the discount last
// realised for it.
type Slot struct {
	OfferID int64
	Qty     float64
	Value   float64
}

// Line describes an item for pricing calculation. Cost is tax exclusive.
type Line struct {
	OrderID        int64
	ItemID         string
	Seq            int
	Qty            float64
	SizePrice      float64
	AdditionalCost float64
	Cost           float64
	PackingCharge  float64
	TaxRates       [3]float64
	Automatic      Slot
	Coupon         Slot
}

// Charges are the cart-level charge settings.
type Charges struct {
	ServiceCharge     float64
	DeliveryCharge    float64
	DeliveryChargeTax float64
	PackingCharge     float64
}

// Options control a single computation.
type Options struct {
	Scope          Scope
	ApplyDiscounts bool
	Precision      int32
}

// Totals are the subtotal and final amounts.
type Totals struct {
	Sub      map[int64]float64 `json:"sub"`
	Grand    float64           `json:"grand"`
	RoundOff float64           `json:"round_off"`
	Final    float64           `json:"final"`
}

// Discounts are the realised discount totals per channel.
type Discounts struct {
	Automatic float64 `json:"automatic"`
	Coupon    float64 `json:"coupon"`
}

// Taxes are the three tax component totals.
type Taxes struct {
	Tax1 float64 `json:"tax_1"`
	Tax2 float64 `json:"tax_2"`
	Tax3 float64 `json:"tax_3"`
}

// Extras are the bill-only charges.
type Extras struct {
	DeliveryCharge    float64 `json:"delivery_charge"`
	DeliveryChargeTax float64 `json:"delivery_charge_tax"`
	PackingCharge     float64 `json:"packing_charge"`
}

// Summary aggregates computed pricing components.
type Summary struct {
	Total         Totals    `json:"total"`
	Offer         Discounts `json:"offer"`
	ServiceCharge float64   `json:"service_charge"`
	Tax           Taxes     `json:"tax"`
	ExtraCharge   Extras    `json:"extra_charge"`
}

// LineResult is the per-item outcome written back onto the cart.
type LineResult struct {
	ItemID         string
	AutomaticValue float64
	CouponValue    float64
	ServiceCharge  float64
	TaxableAmount  float64
	TaxValues      [3]float64
}

// Subtotals sums item costs per order and overall.
func Subtotals(lines []Line) (map[int64]float64, float64) {
	sub := make(map[int64]float64)
	grand := 0.0
	for _, l := range lines {
		sub[l.OrderID] += l.Cost
		grand += l.Cost
	}
	return sub, grand
}

// Compute reconciles discounts, service charge, taxes and extra charges.
// Lines are processed in order id then sequence order so the running bill
// level cap is deterministic.
func Compute(lines []Line, rules map[int64]Rule, charges Charges, opts Options) (Summary, []LineResult) {
	ordered := make([]Line, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OrderID != ordered[j].OrderID {
			return ordered[i].OrderID < ordered[j].OrderID
		}
		return ordered[i].Seq < ordered[j].Seq
	})

	var s Summary
	s.Total.Sub, s.Total.Grand = Subtotals(ordered)

	spent := make(map[int64]float64)
	results := make([]LineResult, 0, len(ordered))
	for _, l := range ordered {
		r := LineResult{ItemID: l.ItemID}
		if opts.ApplyDiscounts {
			r.AutomaticValue = discount(l, l.Automatic, rules, spent, l.Cost)
			r.CouponValue = discount(l, l.Coupon, rules, spent, l.Cost-r.AutomaticValue)
		} else {
			r.AutomaticValue = clamp(l.Automatic.Value, l.Cost)
			r.CouponValue = clamp(l.Coupon.Value, l.Cost-r.AutomaticValue)
		}
		s.Offer.Automatic += r.AutomaticValue
		s.Offer.Coupon += r.CouponValue

		net := l.Cost - r.AutomaticValue - r.CouponValue
		r.ServiceCharge = net * charges.ServiceCharge / 100
		s.ServiceCharge += r.ServiceCharge

		r.TaxableAmount = net + r.ServiceCharge
		for i, rate := range l.TaxRates {
			r.TaxValues[i] = r.TaxableAmount * rate / 100
		}
		s.Tax.Tax1 += r.TaxValues[0]
		s.Tax.Tax2 += r.TaxValues[1]
		s.Tax.Tax3 += r.TaxValues[2]

		results = append(results, r)
	}

	if opts.Scope == ScopeBill {
		s.ExtraCharge.DeliveryCharge = charges.DeliveryCharge
		s.ExtraCharge.DeliveryChargeTax = charges.DeliveryCharge * charges.DeliveryChargeTax / 100
		s.ExtraCharge.PackingCharge = charges.PackingCharge
		for _, l := range ordered {
			s.ExtraCharge.PackingCharge += l.Qty * l.PackingCharge
		}
	}

	final := s.Total.Grand - s.Offer.Automatic - s.Offer.Coupon +
		s.ServiceCharge + s.Tax.Tax1 + s.Tax.Tax2 + s.Tax.Tax3 +
		s.ExtraCharge.DeliveryCharge + s.ExtraCharge.DeliveryChargeTax + s.ExtraCharge.PackingCharge
	exact := decimal.NewFromFloat(final)
	rounded := exact.Round(opts.Precision)
	s.Total.RoundOff = rounded.Sub(exact).InexactFloat64()
	s.Total.Final = rounded.InexactFloat64()

	return s, results
}

// discount realises one slot, applying the upto cap and never exceeding ceiling.
func discount(l Line, slot Slot, rules map[int64]Rule, spent map[int64]float64, ceiling float64) float64 {
	if slot.OfferID == 0 || slot.Qty <= 0 || l.Qty <= 0 {
		return 0
	}
	rule, ok := rules[slot.OfferID]
	if !ok {
		return 0
	}
	perUnit := (l.SizePrice + l.AdditionalCost) * rule.Percent / 100
	if rule.On == offer.OnItemCost {
		perUnit = l.Cost / l.Qty * rule.Percent / 100
	}
	d := perUnit * slot.Qty

	if rule.Upto > 0 {
		switch rule.UptoOn {
		case offer.CapPerBill:
			if spent[slot.OfferID]+d > rule.Upto {
				d = rule.Upto - spent[slot.OfferID]
			}
		case offer.CapPerItem:
			if perUnit > rule.Upto {
				d = rule.Upto * slot.Qty
			}
		}
	}
	d = clamp(d, ceiling)
	spent[slot.OfferID] += d
	return d
}

func clamp(v, ceiling float64) float64 {
	return math.Max(0, math.Min(v, ceiling))
}
