package cart

import (
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/offer"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// Snapshot is an immutable render of the cart.
type Snapshot struct {
	Calc  pricing.Summary                `json:"calc"`
	Items map[int64]map[string]LineItem `json:"items"`
}

// Render reconciles discounts, service charge, taxes and extra charges. When
// applyDiscounts is false the discount values already stored on the items are
// used as they are. Each item's cached discount and tax fields are refreshed.
func (c *Cart) Render(scope Scope, applyDiscounts bool, precision int32) (Snapshot, error) {
	in := struct {
		Scope     Scope `json:"type_of_cart" validate:"oneof=cart bill"`
		Precision int32 `json:"to_fixed" validate:"gte=0,lte=4"`
	}{scope, precision}
	if err := c.check("render", in); err != nil {
		return Snapshot{}, err
	}

	entries := c.ordered()
	lines := make([]pricing.Line, 0, len(entries))
	byID := make(map[string]*LineItem, len(entries))
	for _, e := range entries {
		lines = append(lines, c.line(e))
		byID[e.itemID] = e.item
	}
	rules := make(map[int64]pricing.Rule, len(c.offers))
	for _, def := range c.offers {
		rules[def.ID] = pricing.RuleFor(def)
	}
	charges := pricing.Charges{
		ServiceCharge:     c.serviceCharge,
		DeliveryCharge:    c.extra.DeliveryCharge,
		DeliveryChargeTax: c.extra.DeliveryChargeTax,
		PackingCharge:     c.extra.PackingCharge,
	}

	summary, results := pricing.Compute(lines, rules, charges, pricing.Options{
		Scope:          scope,
		ApplyDiscounts: applyDiscounts,
		Precision:      precision,
	})
	for _, r := range results {
		li := byID[r.ItemID]
		li.Offers.Automatic.Value = r.AutomaticValue
		li.Offers.Coupon.Value = r.CouponValue
		li.Tax.TaxableAmount = r.TaxableAmount
		li.Tax.Tax1Value, li.Tax.Tax2Value, li.Tax.Tax3Value = r.TaxValues[0], r.TaxValues[1], r.TaxValues[2]
	}

	snap := Snapshot{Calc: summary, Items: make(map[int64]map[string]LineItem, len(c.items))}
	for _, e := range entries {
		item := e.item.clone()
		if c.taxMode == TaxInclusive {
			item.ItemCost += item.ItemCost * item.Tax.sum() / 100
		}
		if snap.Items[e.orderID] == nil {
			snap.Items[e.orderID] = map[string]LineItem{}
		}
		snap.Items[e.orderID][e.itemID] = item
	}

	if obs.RenderTotal != nil {
		obs.RenderTotal.WithLabelValues(string(scope)).Inc()
	}
	return snap, nil
}

// FreeItems lists the ids of items currently given away by a free offer.
func (s Snapshot) FreeItems() []string {
	var ids []string
	for _, group := range s.Items {
		for id, li := range group {
			if li.hasTag(offer.TagFree) {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
