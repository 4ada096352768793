package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/offer"
	"github.com/noah-isme/backend-kasir/internal/table"
	"github.com/noah-isme/backend-kasir/internal/validate"
)

// session is a recorded ordering session replayed against a fresh cart.
type session struct {
	BillID           int64                  `json:"bill_id" validate:"gte=0"`
	Table            *table.Table           `json:"table"`
	TaxMode          *cart.TaxMode          `json:"tax_type"`
	AdditionalCharge *cart.AdditionalCharge `json:"additional_charge"`
	ServiceCharge    float64                `json:"service_charge" validate:"gte=0,lte=10"`
	ExtraCharge      cart.ExtraCharge       `json:"extra_charge"`
	TaxLabels        cart.TaxLabels         `json:"tax_labels"`
	Notes            sessionNotes           `json:"notes"`
	Offers           []offer.Definition     `json:"offers"`
	Ops              []step                 `json:"ops" validate:"dive"`
}

type sessionNotes struct {
	Phone    string         `json:"phone_number"`
	Visits   map[string]int `json:"visits"`
	DateTime *time.Time     `json:"date_time"`
}

// step is one cart operation.
type step struct {
	Op           string            `json:"op" validate:"oneof=add qty size addons instructions remove remove_all remove_offer restore"`
	Scope        cart.Scope        `json:"type_of_cart"`
	OrderID      int64             `json:"order_id"`
	ItemID       string            `json:"item_id"`
	Item         *cart.ItemInput   `json:"item"`
	Operation    cart.QtyOp        `json:"operation"`
	Qty          float64           `json:"qty"`
	Size         *cart.Size        `json:"size"`
	AddonLabels  []cart.AddonLabel `json:"addon_labels"`
	Instructions string            `json:"instructions"`
	OfferID      int64             `json:"oid"`
	Automatic    float64           `json:"automatic"`
	Coupon       float64           `json:"coupon"`
}

func decodeSession(data []byte) (session, error) {
	var s session
	if err := validate.Default().Decode(data, &s); err != nil {
		return session{}, err
	}
	return s, nil
}

// replay builds a cart from s. Each step's error names the step index.
func replay(s session, logger *zerolog.Logger, now func() time.Time) (*cart.Cart, error) {
	c := cart.New(cart.Options{Logger: logger, Now: now})

	if s.BillID > 0 {
		if err := c.SetBillID(s.BillID); err != nil {
			return nil, err
		}
	}
	if s.Table != nil {
		if err := c.SetTable(*s.Table); err != nil {
			return nil, err
		}
	}
	if s.TaxMode != nil {
		if err := c.SetTaxMode(*s.TaxMode); err != nil {
			return nil, err
		}
	}
	if s.AdditionalCharge != nil {
		if err := c.SetAdditionalCharge(*s.AdditionalCharge); err != nil {
			return nil, err
		}
	}
	if err := c.SetServiceCharge(s.ServiceCharge); err != nil {
		return nil, err
	}
	if err := c.SetExtraCharge(s.ExtraCharge); err != nil {
		return nil, err
	}
	if err := c.SetTaxLabels(s.TaxLabels); err != nil {
		return nil, err
	}
	if err := c.SetPhone(s.Notes.Phone); err != nil {
		return nil, err
	}
	if err := c.SetVisits(s.Notes.Visits); err != nil {
		return nil, err
	}
	if s.Notes.DateTime != nil {
		c.SetTimestamp(*s.Notes.DateTime)
	}
	for _, def := range s.Offers {
		if err := c.AddOffer(def); err != nil {
			return nil, fmt.Errorf("offer %d: %w", def.ID, err)
		}
	}
	for i, st := range s.Ops {
		if err := apply(c, st); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, st.Op, err)
		}
	}
	return c, nil
}

func apply(c *cart.Cart, st step) error {
	scope := st.Scope
	if scope == "" {
		scope = cart.ScopeCart
	}
	switch st.Op {
	case "add":
		if st.Item == nil {
			return errors.New("missing item")
		}
		id := st.ItemID
		if id == "" {
			id = cart.NewItemID()
		}
		_, err := c.AddItem(scope, st.OrderID, id, *st.Item)
		return err
	case "qty":
		return c.UpdateItemQty(st.ItemID, st.Operation, st.Qty)
	case "size":
		if st.Size == nil {
			return errors.New("missing size")
		}
		return c.UpdateItemSize(st.ItemID, *st.Size)
	case "addons":
		_, err := c.UpdateItemAddons(st.ItemID, st.AddonLabels)
		return err
	case "instructions":
		return c.UpdateInstructions(st.ItemID, st.Instructions)
	case "remove":
		return c.RemoveItem(scope, st.ItemID)
	case "remove_all":
		c.RemoveAllItems()
		return nil
	case "remove_offer":
		c.RemoveOffer(st.OfferID)
		return nil
	case "restore":
		return c.RestoreDiscount(st.ItemID, st.Automatic, st.Coupon)
	}
	return fmt.Errorf("unknown op %q", st.Op)
}

// report is the printed outcome of a replay.
type report struct {
	BillNumber string                      `json:"bill_number,omitempty"`
	Snapshot   cart.Snapshot               `json:"snapshot"`
	Offers     []cart.OfferStatus          `json:"offers"`
	FreeItems  []string                    `json:"free_items,omitempty"`
	TaxLabels  map[string]string           `json:"tax_labels,omitempty"`
	Items      map[string]cart.ItemSummary `json:"item_summaries"`
}

func buildReport(c *cart.Cart, snap cart.Snapshot) (report, error) {
	r := report{
		Snapshot:  snap,
		Offers:    c.Offers(),
		FreeItems: snap.FreeItems(),
		TaxLabels: map[string]string{},
		Items:     map[string]cart.ItemSummary{},
	}
	if n, err := c.BillNumber(); err == nil {
		r.BillNumber = n
	}
	for _, key := range []string{"tax_1", "tax_2", "tax_3"} {
		label, err := c.TaxLabel(key)
		if err != nil {
			return report{}, err
		}
		if label != "" {
			r.TaxLabels[key] = label
		}
	}
	for id := range c.Items() {
		summary, err := c.Item(id)
		if err != nil {
			return report{}, err
		}
		r.Items[id] = summary
	}
	return r, nil
}
