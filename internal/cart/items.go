package cart

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/offer"
)

// QtyOp is the direction of a quantity change.
type QtyOp string

const (
	Increase QtyOp = "increase"
	Decrease QtyOp = "decrease"
)

// NewItemID returns a fresh item identifier.
func NewItemID() string {
	return uuid.NewString()
}

type itemRef struct {
	Scope   Scope  `json:"type_of_cart" validate:"oneof=cart bill"`
	OrderID int64  `json:"order_id" validate:"gte=0"`
	ItemID  string `json:"item_id" validate:"required,max=36"`
}

// AddItem inserts an item under orderID. In cart scope an existing line with
// the same composition absorbs the quantity instead, and its id is returned.
func (c *Cart) AddItem(scope Scope, orderID int64, itemID string, in ItemInput) (string, error) {
	id, err := c.addItem(scope, orderID, itemID, in)
	return id, observe("add_item", err)
}

func (c *Cart) addItem(scope Scope, orderID int64, itemID string, in ItemInput) (string, error) {
	if err := c.check("add item", itemRef{Scope: scope, OrderID: orderID, ItemID: itemID}); err != nil {
		return "", err
	}
	if err := c.check("add item", in); err != nil {
		return "", err
	}

	if scope == ScopeCart {
		key := keyOf(in.ProductID, in.SizeID, in.SizePrice, in.Tax, in.AddonLabels)
		if dup, ok := c.findDuplicate(key, ""); ok {
			c.changeQty(dup, in.Qty)
			c.recomputeOffers()
			c.log.Debug().Str("item_id", dup.itemID).Float64("qty", in.Qty).Msg("item_merged")
			return dup.itemID, nil
		}
	}
	if _, err := c.locate(itemID); err == nil {
		return "", common.PreconditionFailed(fmt.Sprintf("item %q", itemID), ErrItemExists)
	}

	c.seq++
	li := newLineItem(in, c.seq)
	c.calcCosts(li)
	if c.items[orderID] == nil {
		c.items[orderID] = map[string]*LineItem{}
	}
	c.items[orderID][itemID] = li
	c.recomputeOffers()
	return itemID, nil
}

func (c *Cart) findDuplicate(key duplicateKey, except string) (entry, bool) {
	for _, e := range c.ordered() {
		if e.itemID == except {
			continue
		}
		if e.item.key().equal(key) {
			return e, true
		}
	}
	return entry{}, false
}

// UpdateItemQty increases or decreases an item's quantity. A result at or
// below zero removes the item.
func (c *Cart) UpdateItemQty(itemID string, op QtyOp, delta float64) error {
	return observe("update_qty", c.updateItemQty(itemID, op, delta))
}

func (c *Cart) updateItemQty(itemID string, op QtyOp, delta float64) error {
	in := struct {
		ItemID string  `json:"item_id" validate:"required,max=36"`
		Op     QtyOp   `json:"operation" validate:"oneof=increase decrease"`
		Qty    float64 `json:"qty" validate:"gt=0"`
	}{itemID, op, delta}
	if err := c.check("update item qty", in); err != nil {
		return err
	}
	e, err := c.locate(itemID)
	if err != nil {
		return err
	}
	if op == Decrease {
		delta = -delta
	}
	c.changeQty(e, delta)
	c.recomputeOffers()
	return nil
}

// changeQty applies a signed delta rounded to two decimals, deleting the item
// when nothing is left.
func (c *Cart) changeQty(e entry, delta float64) {
	qty := decimal.NewFromFloat(e.item.Qty).Add(decimal.NewFromFloat(delta)).Round(2)
	if !qty.IsPositive() {
		c.delete(e)
		return
	}
	e.item.Qty = qty.InexactFloat64()
	c.calcCosts(e.item)
}

// UpdateItemSize replaces the item's size and recomputes its cost.
func (c *Cart) UpdateItemSize(itemID string, size Size) error {
	return observe("update_size", c.updateItemSize(itemID, size))
}

func (c *Cart) updateItemSize(itemID string, size Size) error {
	if err := c.check("update item size", size); err != nil {
		return err
	}
	e, err := c.locate(itemID)
	if err != nil {
		return err
	}
	e.item.SizeID = size.ID
	e.item.SizeName = size.Name
	e.item.SizePrice = size.Price
	c.calcCosts(e.item)
	c.recomputeOffers()
	return nil
}

// UpdateItemAddons replaces the item's addons. If the new composition equals
// another line, the item is merged into it and removed. The id now holding
// the item is returned.
func (c *Cart) UpdateItemAddons(itemID string, labels []AddonLabel) (string, error) {
	id, err := c.updateItemAddons(itemID, labels)
	return id, observe("update_addons", err)
}

func (c *Cart) updateItemAddons(itemID string, labels []AddonLabel) (string, error) {
	in := struct {
		AddonLabels []AddonLabel `json:"addon_labels" validate:"dive"`
	}{labels}
	if err := c.check("update item addons", in); err != nil {
		return "", err
	}
	e, err := c.locate(itemID)
	if err != nil {
		return "", err
	}

	key := keyOf(e.item.ProductID, e.item.SizeID, e.item.SizePrice, e.item.Tax.TaxRates, labels)
	if dup, ok := c.findDuplicate(key, itemID); ok {
		c.changeQty(dup, e.item.Qty)
		c.delete(e)
		c.recomputeOffers()
		c.log.Debug().Str("item_id", itemID).Str("merged_into", dup.itemID).Msg("item_merged")
		return dup.itemID, nil
	}

	e.item.AddonLabels = cloneLabels(labels)
	c.calcCosts(e.item)
	c.recomputeOffers()
	return itemID, nil
}

// UpdateInstructions sets the free-text preparation note. Costs and offers are unaffected.
func (c *Cart) UpdateInstructions(itemID, text string) error {
	return observe("update_instructions", c.updateInstructions(itemID, text))
}

func (c *Cart) updateInstructions(itemID, text string) error {
	in := struct {
		Instructions string `json:"instructions" validate:"min=3,max=500"`
	}{text}
	if err := c.check("update instructions", in); err != nil {
		return err
	}
	e, err := c.locate(itemID)
	if err != nil {
		return err
	}
	e.item.Instructions = text
	return nil
}

// RemoveItem deletes an item. In cart scope, items that were free before the
// removal and no longer are lose the quantity that was free.
func (c *Cart) RemoveItem(scope Scope, itemID string) error {
	return observe("remove_item", c.removeItem(scope, itemID))
}

func (c *Cart) removeItem(scope Scope, itemID string) error {
	in := struct {
		Scope  Scope  `json:"type_of_cart" validate:"oneof=cart bill"`
		ItemID string `json:"item_id" validate:"required,max=36"`
	}{scope, itemID}
	if err := c.check("remove item", in); err != nil {
		return err
	}
	e, err := c.locate(itemID)
	if err != nil {
		return err
	}

	freeQty := map[string]float64{}
	for _, other := range c.ordered() {
		if other.itemID == itemID {
			continue
		}
		if q := freeAttributed(other.item); q > 0 {
			freeQty[other.itemID] = q
		}
	}

	c.delete(e)
	c.recomputeOffers()

	if scope != ScopeCart || len(freeQty) == 0 {
		return nil
	}
	released := false
	for _, other := range c.ordered() {
		q, ok := freeQty[other.itemID]
		if !ok || other.item.hasTag(offer.TagFree) {
			continue
		}
		c.log.Debug().Str("item_id", other.itemID).Float64("qty", q).Msg("free_item_released")
		c.changeQty(other, -q)
		released = true
	}
	if released {
		c.recomputeOffers()
	}
	return nil
}

// freeAttributed is the quantity of an item given away by a free offer.
func freeAttributed(li *LineItem) float64 {
	q := 0.0
	for _, tag := range li.Offers.Tags {
		switch tag {
		case offer.TagFree:
			q += li.Offers.Automatic.Qty
		case "coupon-" + offer.TagFree:
			q += li.Offers.Coupon.Qty
		}
	}
	return q
}

// RemoveAllItems empties the cart.
func (c *Cart) RemoveAllItems() {
	c.items = map[int64]map[string]*LineItem{}
	c.recomputeOffers()
	observe("remove_all_items", nil)
}

// RestoreDiscount sets the realised discount values of an item, used when a
// historical bill is rebuilt and rendered without recomputing discounts.
func (c *Cart) RestoreDiscount(itemID string, automatic, coupon float64) error {
	in := struct {
		ItemID    string  `json:"item_id" validate:"required,max=36"`
		Automatic float64 `json:"automatic" validate:"gte=0"`
		Coupon    float64 `json:"coupon" validate:"gte=0"`
	}{itemID, automatic, coupon}
	if err := c.check("restore discount", in); err != nil {
		return err
	}
	e, err := c.locate(itemID)
	if err != nil {
		return err
	}
	if automatic+coupon > e.item.ItemCost+1e-9 {
		return common.PreconditionFailed(fmt.Sprintf("item %q", itemID), ErrDiscountExceedsCost)
	}
	e.item.Offers.Automatic.Value = automatic
	e.item.Offers.Coupon.Value = coupon
	return nil
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// Item returns the read view of one item.
func (c *Cart) Item(itemID string) (ItemSummary, error) {
	e, err := c.locate(itemID)
	if err != nil {
		return ItemSummary{}, err
	}
	ids := e.item.addonIDs()
	if ids == nil {
		ids = []int64{}
	}
	return ItemSummary{
		CategoryID:   e.item.CategoryID,
		ProductID:    e.item.ProductID,
		ProductName:  e.item.ProductName,
		Type:         e.item.Type,
		SizeID:       e.item.SizeID,
		Qty:          e.item.Qty,
		AddonIDs:     ids,
		Instructions: e.item.Instructions,
	}, nil
}

// Items returns copies of all items keyed by item id.
func (c *Cart) Items() map[string]LineItem {
	out := map[string]LineItem{}
	for _, group := range c.items {
		for id, li := range group {
			out[id] = li.clone()
		}
	}
	return out
}

// OrderItems returns copies of the items of one order.
func (c *Cart) OrderItems(orderID int64) map[string]LineItem {
	out := map[string]LineItem{}
	for id, li := range c.items[orderID] {
		out[id] = li.clone()
	}
	return out
}

// OrderIDs returns the order groups currently holding items.
func (c *Cart) OrderIDs() []int64 {
	return slices.Sorted(maps.Keys(c.items))
}
