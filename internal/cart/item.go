package cart

import (
	"slices"
)

// Addon is one selected addon with its unit price.
type Addon struct {
	ID    int64   `json:"aid" validate:"gte=1"`
	Name  string  `json:"aname" validate:"required,max=50"`
	Type  int     `json:"atype" validate:"gte=0,lte=7"`
	Price float64 `json:"aprice" validate:"gte=0"`
}

// AddonLabel groups addons chosen under one label.
type AddonLabel struct {
	ID     int64   `json:"alid" validate:"gte=1"`
	Name   string  `json:"alname" validate:"required,max=50"`
	Addons []Addon `json:"addons" validate:"required,min=1,dive"`
}

// TaxRates are the three independent tax percentages of an item.
type TaxRates struct {
	Tax1 float64 `json:"tax_1" validate:"gte=0,lte=100"`
	Tax2 float64 `json:"tax_2" validate:"gte=0,lte=100"`
	Tax3 float64 `json:"tax_3" validate:"gte=0,lte=100"`
}

func (t TaxRates) sum() float64 {
	return t.Tax1 + t.Tax2 + t.Tax3
}

func (t TaxRates) array() [3]float64 {
	return [3]float64{t.Tax1, t.Tax2, t.Tax3}
}

// Size is the chosen size of a product.
type Size struct {
	ID    int64   `json:"sid" validate:"gte=1"`
	Name  string  `json:"sname" validate:"required,max=50"`
	Price float64 `json:"sprice" validate:"gte=0"`
}

// ItemInput is a line item as supplied by the catalog collaborator.
type ItemInput struct {
	CategoryID    int64        `json:"cid" validate:"gte=1"`
	CategoryName  string       `json:"cname" validate:"required,max=50"`
	ProductID     int64        `json:"pid" validate:"gte=1"`
	ProductName   string       `json:"pname" validate:"required,max=100"`
	Type          int          `json:"type" validate:"gte=0,lte=7"`
	Qty           float64      `json:"qty" validate:"gt=0"`
	HSNSAC        string       `json:"hsn_sac" validate:"max=10"`
	Tax           TaxRates     `json:"tax"`
	SizeID        int64        `json:"sid" validate:"gte=1"`
	SizeName      string       `json:"sname" validate:"required,max=50"`
	SizePrice     float64      `json:"sprice" validate:"gte=0"`
	PackingCharge float64      `json:"packing_charge" validate:"gte=0,lte=255"`
	AddonLabels   []AddonLabel `json:"addon_labels" validate:"dive"`
	Instructions  string       `json:"instructions" validate:"max=500"`
}

// Tax holds an item's rates and the values derived at the last render.
type Tax struct {
	TaxRates
	TaxableAmount float64 `json:"taxable_amount"`
	Tax1Value     float64 `json:"tax_1_value"`
	Tax2Value     float64 `json:"tax_2_value"`
	Tax3Value     float64 `json:"tax_3_value"`
}

// OfferSlot is an item's attribution on one channel.
type OfferSlot struct {
	OfferID int64   `json:"oid"`
	Qty     float64 `json:"oqty"`
	Value   float64 `json:"oval"`
}

// Offers is the derived offer state of an item.
type Offers struct {
	Tags      []string  `json:"tags"`
	Automatic OfferSlot `json:"automatic"`
	Coupon    OfferSlot `json:"coupon"`
}

// LineItem is a stored cart line. Costs are tax exclusive.
type LineItem struct {
	CategoryID     int64        `json:"cid"`
	CategoryName   string       `json:"cname"`
	ProductID      int64        `json:"pid"`
	ProductName    string       `json:"pname"`
	Type           int          `json:"type"`
	Qty            float64      `json:"qty"`
	HSNSAC         string       `json:"hsn_sac"`
	Tax            Tax          `json:"tax"`
	SizeID         int64        `json:"sid"`
	SizeName       string       `json:"sname"`
	SizePrice      float64      `json:"sprice"`
	PackingCharge  float64      `json:"packing_charge"`
	AddonLabels    []AddonLabel `json:"addon_labels"`
	Instructions   string       `json:"instructions"`
	AdditionalCost float64      `json:"additional_cost"`
	AddonCost      float64      `json:"addon_cost"`
	ItemCost       float64      `json:"item_cost"`
	Offers         Offers       `json:"offers"`

	seq int
}

func newLineItem(in ItemInput, seq int) *LineItem {
	return &LineItem{
		CategoryID:    in.CategoryID,
		CategoryName:  in.CategoryName,
		ProductID:     in.ProductID,
		ProductName:   in.ProductName,
		Type:          in.Type,
		Qty:           in.Qty,
		HSNSAC:        in.HSNSAC,
		Tax:           Tax{TaxRates: in.Tax},
		SizeID:        in.SizeID,
		SizeName:      in.SizeName,
		SizePrice:     in.SizePrice,
		PackingCharge: in.PackingCharge,
		AddonLabels:   cloneLabels(in.AddonLabels),
		Instructions:  in.Instructions,
		Offers:        Offers{Tags: []string{}},
		seq:           seq,
	}
}

func (li *LineItem) clone() LineItem {
	out := *li
	out.AddonLabels = cloneLabels(li.AddonLabels)
	out.Offers.Tags = slices.Clone(li.Offers.Tags)
	if out.Offers.Tags == nil {
		out.Offers.Tags = []string{}
	}
	return out
}

func (li *LineItem) addonLabelIDs() []int64 {
	ids := make([]int64, 0, len(li.AddonLabels))
	for _, l := range li.AddonLabels {
		ids = append(ids, l.ID)
	}
	return ids
}

func (li *LineItem) addonIDs() []int64 {
	var ids []int64
	for _, l := range li.AddonLabels {
		for _, a := range l.Addons {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// hasTag reports whether tag was applied through either channel.
func (li *LineItem) hasTag(tag string) bool {
	return slices.Contains(li.Offers.Tags, tag) || slices.Contains(li.Offers.Tags, "coupon-"+tag)
}

func cloneLabels(in []AddonLabel) []AddonLabel {
	if in == nil {
		return []AddonLabel{}
	}
	out := make([]AddonLabel, len(in))
	for i, l := range in {
		out[i] = l
		out[i].Addons = slices.Clone(l.Addons)
	}
	return out
}

// duplicateKey is the composition two lines must share to be merged.
type duplicateKey struct {
	productID int64
	sizeID    int64
	sizePrice float64
	tax       TaxRates
	addons    []int64
}

func keyOf(productID, sizeID int64, sizePrice float64, tax TaxRates, labels []AddonLabel) duplicateKey {
	k := duplicateKey{productID: productID, sizeID: sizeID, sizePrice: sizePrice, tax: tax}
	for _, l := range labels {
		for _, a := range l.Addons {
			k.addons = append(k.addons, a.ID)
		}
	}
	slices.Sort(k.addons)
	return k
}

func (k duplicateKey) equal(o duplicateKey) bool {
	return k.productID == o.productID &&
		k.sizeID == o.sizeID &&
		k.sizePrice == o.sizePrice &&
		k.tax == o.tax &&
		slices.Equal(k.addons, o.addons)
}

func (li *LineItem) key() duplicateKey {
	return keyOf(li.ProductID, li.SizeID, li.SizePrice, li.Tax.TaxRates, li.AddonLabels)
}

// ItemSummary is the read view of a single item.
type ItemSummary struct {
	CategoryID   int64   `json:"cid"`
	ProductID    int64   `json:"pid"`
	ProductName  string  `json:"pname"`
	Type         int     `json:"type"`
	SizeID       int64   `json:"sid"`
	Qty          float64 `json:"qty"`
	AddonIDs     []int64 `json:"aid"`
	Instructions string  `json:"instructions"`
}
