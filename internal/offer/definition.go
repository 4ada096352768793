package offer

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"sort"

	"github.com/noah-isme/backend-kasir/internal/validate"
)

// Kind selects how an offer's conditions are structured.
type Kind int

const (
	KindOverall Kind = 1
	KindBuyGet  Kind = 2
)

// Sponsor records who funds the discount.
type Sponsor int

const (
	SponsorPlatform Sponsor = 1
	SponsorMerchant Sponsor = 2
)

// Base selects the price a percentage discount is taken from.
type Base int

const (
	OnItemCost  Base = 1
	OnSizePrice Base = 2
)

// CapScope selects how conditions.upto limits the discount.
type CapScope int

const (
	CapPerBill CapScope = 0
	CapPerItem CapScope = 1
)

// Group names the item attribute a Match compares against.
type Group string

const (
	GroupCategory   Group = "cid"
	GroupProduct    Group = "pid"
	GroupSize       Group = "sid"
	GroupAddonLabel Group = "alid"
	GroupAddon      Group = "aid"
)

// Diet filters items by dietary type.
type Diet int

const (
	DietAny    Diet = -1
	DietEgg    Diet = 0
	DietVeg    Diet = 1
	DietNonVeg Diet = 2
)

// accepts reports whether an item type code (0..7) passes the filter.
func (d Diet) accepts(itemType int) bool {
	switch d {
	case DietAny:
		return true
	case DietEgg:
		return itemType == 0
	case DietVeg:
		return itemType == 1 || itemType == 3 || itemType == 5
	case DietNonVeg:
		return itemType == 2 || itemType == 4 || itemType == 6
	}
	return false
}

// Match selects items by one attribute.
type Match struct {
	Group Group `json:"group" validate:"required,oneof=cid pid sid alid aid"`
	ID    int64 `json:"id" validate:"gte=1"`
	Diet  Diet  `json:"type" validate:"gte=-1,lte=2"`
}

// Rule is one alternative inside a condition set. Rules sharing a SetIndex
// form one set.
type Rule struct {
	SetIndex int     `json:"set_index" validate:"gte=0"`
	IDs      []Match `json:"ids" validate:"required,min=1,dive"`
	Qty      float64 `json:"qty" validate:"gte=0.01"`
}

// Get is the rewarded side of a buy/get offer: either condition rules or a
// flat quantity taken from the matched buy items.
type Get struct {
	Qty   int    `json:"qty" validate:"gte=0"`
	Rules []Rule `json:"rules" validate:"omitempty,dive"`
}

// IsZero reports whether neither form was supplied.
func (g Get) IsZero() bool {
	return g.Qty == 0 && len(g.Rules) == 0
}

// UnmarshalJSON accepts either a rule array or an integer.
func (g *Get) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*g = Get{}
		return nil
	}
	if data[0] == '[' {
		var rules []Rule
		if err := json.Unmarshal(data, &rules); err != nil {
			return err
		}
		*g = Get{Rules: rules}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: getType, Field: "conditions.get"}
	}
	if n != math.Trunc(n) {
		return &json.UnmarshalTypeError{Value: "number " + string(data), Type: getType, Field: "conditions.get"}
	}
	*g = Get{Qty: int(n)}
	return nil
}

var getType = reflect.TypeOf(Get{})

// MarshalJSON writes the form that was supplied.
func (g Get) MarshalJSON() ([]byte, error) {
	if len(g.Rules) > 0 {
		return json.Marshal(g.Rules)
	}
	return json.Marshal(g.Qty)
}

// Discount is a percentage taken from the selected base price.
type Discount struct {
	On    Base    `json:"on" validate:"oneof=1 2"`
	Value float64 `json:"value" validate:"gte=0,lte=100"`
}

// Free reports whether the discount gives the item away.
func (d Discount) Free() bool {
	return d.Value == 100
}

// Unbounded disables a numeric filter.
const Unbounded = -1

// Bound returns n as an explicit filter value.
func Bound(n int) *int {
	return &n
}

func boundOf(p *int) int {
	if p == nil {
		return Unbounded
	}
	return *p
}

// Visits bounds the customer's visit count. Both bounds must be present;
// Unbounded disables one.
type Visits struct {
	Min *int `json:"min" validate:"required,gte=-1,lte=65535"`
	Max *int `json:"max" validate:"required,gte=-1"`
}

// MenuCode scopes the visit bounds to a set of menu codes.
type MenuCode struct {
	List   []string `json:"list" validate:"dive,menucode"`
	Visits Visits   `json:"visits"`
}

// Filters decide whether an offer is eligible before any item is matched.
type Filters struct {
	Limits         *int     `json:"limits" validate:"required,gte=-1"`
	MenuCode       MenuCode `json:"menu_code"`
	Phone          []string `json:"phone" validate:"dive,phone"`
	Platform       []int    `json:"platform" validate:"dive,gte=1,lte=5"`
	OrderType      []int    `json:"order_type" validate:"dive,gte=1,lte=5"`
	TimezoneOffset int      `json:"timezoneoffset" validate:"gte=-720,lte=840"`
	StartDate      string   `json:"start_date" validate:"omitempty,ddmmyyyy"`
	EndDate        string   `json:"end_date" validate:"omitempty,ddmmyyyy"`
	StartTime      string   `json:"start_time" validate:"omitempty,hhmmss"`
	EndTime        string   `json:"end_time" validate:"omitempty,hhmmss"`
	Days           []int    `json:"days" validate:"dive,gte=1,lte=7"`
}

// Conditions hold the item rules and the discount cap.
type Conditions struct {
	MinOrder float64  `json:"min_order" validate:"gte=0"`
	Upto     float64  `json:"upto" validate:"gte=0"`
	UptoOn   CapScope `json:"upto_on_item_or_bill" validate:"oneof=0 1"`
	Overall  []Rule   `json:"overall,omitempty" validate:"omitempty,dive"`
	Buy      []Rule   `json:"buy,omitempty" validate:"omitempty,dive"`
	Get      Get      `json:"get"`
}

// Definition is an offer as supplied by the offer catalog.
type Definition struct {
	ID          int64      `json:"oid" validate:"gte=1"`
	Name        string     `json:"name" validate:"required,max=30"`
	Description string     `json:"description" validate:"max=200"`
	ImageURL    string     `json:"img_url" validate:"max=69"`
	Kind        Kind       `json:"offer_type" validate:"oneof=1 2"`
	Sponsor     Sponsor    `json:"offer_by" validate:"oneof=1 2"`
	Coupon      string     `json:"coupon" validate:"max=15"`
	Discount    Discount   `json:"discount"`
	Filters     Filters    `json:"filters"`
	Conditions  Conditions `json:"conditions"`
	Used        int        `json:"used" validate:"gte=0"`
}

// IsCoupon reports whether the offer applies only when its code is redeemed.
func (d Definition) IsCoupon() bool {
	return d.Coupon != ""
}

// Validate checks the record shape and the kind-dependent condition rules.
func Validate(v *validate.Validator, d Definition) error {
	err := v.Struct(d)
	var extra []validate.Violation
	switch d.Kind {
	case KindOverall:
		if len(d.Conditions.Overall) == 0 {
			extra = append(extra, validate.Violation{Property: "conditions.overall", Reason: validate.ReasonMissing})
		}
	case KindBuyGet:
		if len(d.Conditions.Buy) == 0 {
			extra = append(extra, validate.Violation{Property: "conditions.buy", Reason: validate.ReasonMissing})
		}
		if d.Conditions.Get.IsZero() {
			extra = append(extra, validate.Violation{Property: "conditions.get", Reason: validate.ReasonMissing})
		}
	}
	return validate.Join(err, extra...)
}

// Sets groups rules by set index, in ascending index order.
func Sets(rules []Rule) [][]Rule {
	if len(rules) == 0 {
		return nil
	}
	bySet := make(map[int][]Rule)
	for _, r := range rules {
		bySet[r.SetIndex] = append(bySet[r.SetIndex], r)
	}
	indexes := make([]int, 0, len(bySet))
	for idx := range bySet {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	out := make([][]Rule, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, bySet[idx])
	}
	return out
}
