// Package cart holds the order cart aggregate: line items grouped by order,
// the attached offer catalog and the pricing configuration. Every mutation is
// validated first and ends with a full offer re-match.
package cart

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/offer"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/table"
	"github.com/noah-isme/backend-kasir/internal/validate"
)

var (
	// ErrUnknownItem is returned when an item id is not present in the cart.
	ErrUnknownItem = errors.New("item id does not exist in this cart")
	// ErrItemExists is returned when adding an item under an id already in use.
	ErrItemExists = errors.New("item id already exists in this cart")
	// ErrUnknownTaxLabel is returned for a tax label key other than tax_1, tax_2 or tax_3.
	ErrUnknownTaxLabel = errors.New("unknown tax label key")
	// ErrNoBillID is returned when a bill number is requested before a bill id is set.
	ErrNoBillID = errors.New("bill id not set")
	// ErrEmptyCart is returned when a bill is finalised without items.
	ErrEmptyCart = errors.New("cart has no items")
	// ErrDiscountExceedsCost is returned when restored discounts add up to more than the item cost.
	ErrDiscountExceedsCost = errors.New("discounts exceed item cost")
)

// Scope aliases the pricing scope so callers only need this package.
type Scope = pricing.Scope

const (
	ScopeCart = pricing.ScopeCart
	ScopeBill = pricing.ScopeBill
)

// TaxMode tells whether catalog prices already include tax.
type TaxMode int

const (
	TaxInclusive TaxMode = 0
	TaxExclusive TaxMode = 1
)

// ChargeType selects how the additional charge is applied per unit.
type ChargeType int

const (
	ChargeAmount     ChargeType = 1
	ChargePercentage ChargeType = 2
)

// AdditionalCharge is added to every unit's size price.
type AdditionalCharge struct {
	Type  ChargeType `json:"type" validate:"oneof=1 2"`
	Value float64    `json:"value" validate:"gte=0,lte=100"`
}

// ExtraCharge holds the bill-only charges.
type ExtraCharge struct {
	DeliveryCharge    float64 `json:"delivery_charge" validate:"gte=0"`
	DeliveryChargeTax float64 `json:"delivery_charge_tax_exclusive" validate:"gte=0,lte=100"`
	PackingCharge     float64 `json:"packing_charge" validate:"gte=0"`
}

// TaxLabels are the display names of the three tax components.
type TaxLabels struct {
	Tax1 string `json:"tax_1" validate:"max=5"`
	Tax2 string `json:"tax_2" validate:"max=5"`
	Tax3 string `json:"tax_3" validate:"max=5"`
}

// Notes is the session context offers are filtered against.
type Notes struct {
	Phone  string         `json:"phone_number" validate:"omitempty,phone"`
	Visits map[string]int `json:"visits" validate:"dive,keys,menucode,endkeys,gte=0"`
	At     time.Time      `json:"date_time"`
}

// Options configure a new Cart.
type Options struct {
	Validator *validate.Validator
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// Cart is a single ordering session. It is not safe for concurrent use.
type Cart struct {
	validator *validate.Validator
	log       zerolog.Logger
	now       func() time.Time

	billID        int64
	table         table.Table
	notes         Notes
	additional    AdditionalCharge
	serviceCharge float64
	extra         ExtraCharge
	taxMode       TaxMode
	taxLabels     TaxLabels

	offers   []offer.Definition
	statuses map[int64]offer.Status

	items map[int64]map[string]*LineItem
	seq   int
}

// New creates an empty cart. Tax mode defaults to exclusive.
func New(opts Options) *Cart {
	c := &Cart{
		validator:  opts.Validator,
		now:        opts.Now,
		additional: AdditionalCharge{Type: ChargeAmount},
		taxMode:    TaxExclusive,
		notes:      Notes{Visits: map[string]int{}},
		statuses:   map[int64]offer.Status{},
		items:      map[int64]map[string]*LineItem{},
	}
	if c.validator == nil {
		c.validator = validate.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	} else {
		c.log = zerolog.Nop()
	}
	return c
}

func (c *Cart) check(op string, v any) error {
	if err := c.validator.Struct(v); err != nil {
		return common.ValidationFailed(op, err, validate.Violations(err))
	}
	return nil
}

func observe(op string, err error) error {
	if obs.CartMutationsTotal != nil {
		obs.CartMutationsTotal.WithLabelValues(op, obs.Result(err)).Inc()
	}
	return err
}

// SetBillID attaches the bill identifier.
func (c *Cart) SetBillID(id int64) error {
	in := struct {
		BillID int64 `json:"bill_id" validate:"gte=1"`
	}{id}
	if err := c.check("set bill id", in); err != nil {
		return err
	}
	c.billID = id
	return nil
}

// BillID returns the bill identifier, zero until set.
func (c *Cart) BillID() int64 {
	return c.billID
}

// BillNumber is the bill id without its six digit outlet prefix.
func (c *Cart) BillNumber() (string, error) {
	if c.billID == 0 {
		return "", ErrNoBillID
	}
	return stripPrefix(c.billID), nil
}

// OrderNumber is the order id without its six digit outlet prefix.
func (c *Cart) OrderNumber(orderID int64) string {
	return stripPrefix(orderID)
}

func stripPrefix(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) <= 6 {
		return ""
	}
	return s[6:]
}

// SetTable sets the table the order is taken on and re-matches offers.
func (c *Cart) SetTable(t table.Table) error {
	if err := c.check("set table", t); err != nil {
		return err
	}
	c.table = t
	c.recomputeOffers()
	return nil
}

// Table returns the configured table.
func (c *Cart) Table() table.Table {
	return c.table
}

// SetAdditionalCharge changes the per-unit additional charge and recomputes every item.
func (c *Cart) SetAdditionalCharge(ac AdditionalCharge) error {
	if err := c.check("set additional charge", ac); err != nil {
		return err
	}
	c.additional = ac
	c.recomputeCosts()
	c.recomputeOffers()
	return nil
}

// SetServiceCharge sets the service charge percentage (0..10).
func (c *Cart) SetServiceCharge(rate float64) error {
	in := struct {
		Rate float64 `json:"service_charge" validate:"gte=0,lte=10"`
	}{rate}
	if err := c.check("set service charge", in); err != nil {
		return err
	}
	c.serviceCharge = rate
	return nil
}

// SetExtraCharge sets the bill-only charges.
func (c *Cart) SetExtraCharge(ec ExtraCharge) error {
	if err := c.check("set extra charge", ec); err != nil {
		return err
	}
	c.extra = ec
	return nil
}

// SetTaxMode switches between inclusive and exclusive pricing and recomputes every item.
func (c *Cart) SetTaxMode(mode TaxMode) error {
	in := struct {
		Mode TaxMode `json:"tax_type" validate:"oneof=0 1"`
	}{mode}
	if err := c.check("set tax mode", in); err != nil {
		return err
	}
	c.taxMode = mode
	c.recomputeCosts()
	c.recomputeOffers()
	return nil
}

// TaxMode returns the configured tax mode.
func (c *Cart) TaxMode() TaxMode {
	return c.taxMode
}

// SetTaxLabels sets the tax component display names.
func (c *Cart) SetTaxLabels(labels TaxLabels) error {
	if err := c.check("set tax labels", labels); err != nil {
		return err
	}
	c.taxLabels = labels
	return nil
}

// TaxLabel returns the label for tax_1, tax_2 or tax_3.
func (c *Cart) TaxLabel(key string) (string, error) {
	switch key {
	case "tax_1":
		return c.taxLabels.Tax1, nil
	case "tax_2":
		return c.taxLabels.Tax2, nil
	case "tax_3":
		return c.taxLabels.Tax3, nil
	}
	return "", common.ValidationFailed("tax label", fmt.Errorf("%w: %q", ErrUnknownTaxLabel, key),
		[]validate.Violation{{Property: "key", Value: key, Reason: validate.ReasonNotAllowed, Param: "tax_1 tax_2 tax_3"}})
}

// SetPhone records the customer phone number and re-matches offers.
func (c *Cart) SetPhone(phone string) error {
	in := struct {
		Phone string `json:"phone_number" validate:"omitempty,phone"`
	}{phone}
	if err := c.check("set phone", in); err != nil {
		return err
	}
	c.notes.Phone = phone
	c.recomputeOffers()
	return nil
}

// SetVisits records visit counts per menu code and re-matches offers.
func (c *Cart) SetVisits(visits map[string]int) error {
	in := struct {
		Visits map[string]int `json:"visits" validate:"dive,keys,menucode,endkeys,gte=0"`
	}{visits}
	if err := c.check("set visits", in); err != nil {
		return err
	}
	c.notes.Visits = maps.Clone(visits)
	if c.notes.Visits == nil {
		c.notes.Visits = map[string]int{}
	}
	c.recomputeOffers()
	return nil
}

// SetTimestamp records when the order is placed and re-matches offers. A zero
// time falls back to the cart clock.
func (c *Cart) SetTimestamp(at time.Time) {
	c.notes.At = at
	c.recomputeOffers()
}

// Notes returns a copy of the session notes.
func (c *Cart) Notes() Notes {
	n := c.notes
	n.Visits = maps.Clone(c.notes.Visits)
	return n
}

func (c *Cart) at() time.Time {
	if c.notes.At.IsZero() {
		return c.now()
	}
	return c.notes.At
}

// entry is a located item.
type entry struct {
	orderID int64
	itemID  string
	item    *LineItem
}

// ordered lists items in insertion order.
func (c *Cart) ordered() []entry {
	out := make([]entry, 0, len(c.items))
	for orderID, group := range c.items {
		for itemID, li := range group {
			out = append(out, entry{orderID: orderID, itemID: itemID, item: li})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].item.seq < out[j].item.seq })
	return out
}

func (c *Cart) locate(itemID string) (entry, error) {
	for orderID, group := range c.items {
		if li, ok := group[itemID]; ok {
			return entry{orderID: orderID, itemID: itemID, item: li}, nil
		}
	}
	return entry{}, common.PreconditionFailed(fmt.Sprintf("item %q", itemID), ErrUnknownItem)
}

func (c *Cart) delete(e entry) {
	group := c.items[e.orderID]
	delete(group, e.itemID)
	if len(group) == 0 {
		delete(c.items, e.orderID)
	}
}
