package cart

import (
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/validate"
)

// calcCosts derives the additional, addon and item cost of one line. The
// stored item cost is always tax exclusive.
func (c *Cart) calcCosts(li *LineItem) {
	additional := c.additional.Value
	if c.additional.Type == ChargePercentage {
		additional = li.SizePrice * c.additional.Value / 100
	}
	addons := 0.0
	for _, l := range li.AddonLabels {
		for _, a := range l.Addons {
			addons += a.Price
		}
	}
	cost := li.Qty * (li.SizePrice + addons + additional)
	if c.taxMode == TaxInclusive {
		cost = cost * 100 / (100 + li.Tax.sum())
	}
	li.AdditionalCost = additional
	li.AddonCost = addons
	li.ItemCost = cost
}

func (c *Cart) recomputeCosts() {
	for _, group := range c.items {
		for _, li := range group {
			c.calcCosts(li)
		}
	}
}

// line is the pricing view of a stored item.
func (c *Cart) line(e entry) pricing.Line {
	li := e.item
	return pricing.Line{
		OrderID:        e.orderID,
		ItemID:         e.itemID,
		Seq:            li.seq,
		Qty:            li.Qty,
		SizePrice:      li.SizePrice,
		AdditionalCost: li.AdditionalCost,
		Cost:           li.ItemCost,
		PackingCharge:  li.PackingCharge,
		TaxRates:       li.Tax.array(),
		Automatic:      pricing.Slot{OfferID: li.Offers.Automatic.OfferID, Qty: li.Offers.Automatic.Qty, Value: li.Offers.Automatic.Value},
		Coupon:         pricing.Slot{OfferID: li.Offers.Coupon.OfferID, Qty: li.Offers.Coupon.Qty, Value: li.Offers.Coupon.Value},
	}
}

func wrapValidation(op string, err error) error {
	if v := validate.Violations(err); v != nil {
		return common.ValidationFailed(op, err, v)
	}
	return err
}
