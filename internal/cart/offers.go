package cart

import (
	"slices"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/offer"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// OfferStatus is an attached offer together with its last match outcome.
type OfferStatus struct {
	Definition offer.Definition `json:"offer"`
	// Reason is the failed eligibility filter; empty when the offer passed.
	Reason     offer.Reason   `json:"err,omitempty"`
	Factor     int            `json:"factor"`
	AutoSelect [][]offer.Rule `json:"automatic,omitempty"`
	Owed       int            `json:"owed,omitempty"`
}

// AddOffer validates and attaches an offer. An offer with an id already
// attached replaces it in place.
func (c *Cart) AddOffer(def offer.Definition) error {
	return observe("add_offer", c.addOffer(def))
}

func (c *Cart) addOffer(def offer.Definition) error {
	if err := offer.Validate(c.validator, def); err != nil {
		return wrapValidation("add offer", err)
	}
	if i := c.offerIndex(def.ID); i >= 0 {
		c.offers[i] = def
	} else {
		c.offers = append(c.offers, def)
	}
	c.recomputeOffers()
	return nil
}

// RemoveOffer detaches an offer. Unknown ids are ignored.
func (c *Cart) RemoveOffer(id int64) {
	if i := c.offerIndex(id); i >= 0 {
		c.offers = slices.Delete(c.offers, i, i+1)
		delete(c.statuses, id)
	}
	c.recomputeOffers()
	observe("remove_offer", nil)
}

// Offers returns the attached offers in catalog order with their last outcome.
func (c *Cart) Offers() []OfferStatus {
	out := make([]OfferStatus, 0, len(c.offers))
	for _, def := range c.offers {
		st := c.statuses[def.ID]
		out = append(out, OfferStatus{
			Definition: def,
			Reason:     st.Reason,
			Factor:     st.Factor,
			AutoSelect: st.AutoSelect,
			Owed:       st.Owed,
		})
	}
	return out
}

func (c *Cart) offerIndex(id int64) int {
	return slices.IndexFunc(c.offers, func(d offer.Definition) bool { return d.ID == id })
}

// recomputeOffers re-derives every item's tags and slots from scratch.
// Realised discount values are kept until the next render.
func (c *Cart) recomputeOffers() {
	entries := c.ordered()
	items := make([]offer.Item, 0, len(entries))
	lines := make([]pricing.Line, 0, len(entries))
	for _, e := range entries {
		li := e.item
		items = append(items, offer.Item{
			ItemID:        e.itemID,
			Seq:           li.seq,
			CategoryID:    li.CategoryID,
			ProductID:     li.ProductID,
			SizeID:        li.SizeID,
			AddonLabelIDs: li.addonLabelIDs(),
			AddonIDs:      li.addonIDs(),
			Type:          li.Type,
			Qty:           li.Qty,
			Cost:          li.ItemCost,
		})
		lines = append(lines, c.line(e))
	}
	_, subtotal := pricing.Subtotals(lines)

	res := offer.Evaluate(c.offers, items, offer.Context{
		TableID:  c.table.ID,
		Phone:    c.notes.Phone,
		Visits:   c.notes.Visits,
		At:       c.at(),
		Subtotal: subtotal,
	})

	for _, e := range entries {
		a := res.Attributions[e.itemID]
		o := &e.item.Offers
		o.Tags = slices.Clone(a.Tags)
		if o.Tags == nil {
			o.Tags = []string{}
		}
		o.Automatic.OfferID, o.Automatic.Qty = a.Automatic.OfferID, a.Automatic.Qty
		o.Coupon.OfferID, o.Coupon.Qty = a.Coupon.OfferID, a.Coupon.Qty
	}

	c.statuses = make(map[int64]offer.Status, len(res.Statuses))
	kinds := make(map[int64]offer.Kind, len(c.offers))
	for _, def := range c.offers {
		kinds[def.ID] = def.Kind
	}
	for _, st := range res.Statuses {
		c.statuses[st.OfferID] = st
		result := "unmatched"
		switch {
		case st.Reason != "":
			result = "rejected"
			c.log.Debug().Int64("offer_id", st.OfferID).Str("reason", string(st.Reason)).Msg("offer_rejected")
		case st.Attributed:
			result = "applied"
		}
		if obs.OfferEvaluationsTotal != nil {
			obs.OfferEvaluationsTotal.WithLabelValues(kindLabel(kinds[st.OfferID]), result).Inc()
		}
	}
	if c.log.GetLevel() <= zerolog.DebugLevel && len(res.Statuses) > 0 {
		tagged := 0
		for _, a := range res.Attributions {
			if len(a.Tags) > 0 {
				tagged++
			}
		}
		c.log.Debug().Int("offers_applied", res.Applied()).Int("items_tagged", tagged).Msg("offers_matched")
	}
}

func kindLabel(k offer.Kind) string {
	if k == offer.KindBuyGet {
		return "buy_get"
	}
	return "overall"
}
