package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/offer"
)

func line(order int64, id string, seq int, qty, unit float64) Line {
	return Line{OrderID: order, ItemID: id, Seq: seq, Qty: qty, SizePrice: unit, Cost: qty * unit}
}

func TestComputeWithoutOffers(t *testing.T) {
	a := line(1, "a", 1, 2, 100)
	a.TaxRates = [3]float64{5, 2.5, 0}
	b := line(2, "b", 2, 1, 50)

	s, results := Compute([]Line{a, b}, nil, Charges{ServiceCharge: 10}, Options{Scope: ScopeCart, ApplyDiscounts: true})

	require.Equal(t, 250.0, s.Total.Grand)
	require.Equal(t, map[int64]float64{1: 200, 2: 50}, s.Total.Sub)
	require.InDelta(t, 25.0, s.ServiceCharge, 1e-9)
	// taxable for a = 200 + 20
	require.InDelta(t, 11.0, s.Tax.Tax1, 1e-9)
	require.InDelta(t, 5.5, s.Tax.Tax2, 1e-9)
	require.InDelta(t, 291.5, s.Total.Final-s.Total.RoundOff, 1e-9)
	require.Equal(t, 292.0, s.Total.Final)
	require.InDelta(t, 0.5, s.Total.RoundOff, 1e-9)

	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].ItemID)
	require.InDelta(t, 220.0, results[0].TaxableAmount, 1e-9)
}

func TestBillLevelUptoCapSharedAcrossItems(t *testing.T) {
	a := line(1, "a", 1, 1, 200)
	a.Automatic = Slot{OfferID: 5, Qty: 1}
	b := line(1, "b", 2, 1, 200)
	b.Automatic = Slot{OfferID: 5, Qty: 1}
	rules := map[int64]Rule{5: {On: offer.OnItemCost, Percent: 20, Upto: 50, UptoOn: offer.CapPerBill}}

	s, results := Compute([]Line{a, b}, rules, Charges{}, Options{Scope: ScopeCart, ApplyDiscounts: true})

	require.InDelta(t, 50.0, s.Offer.Automatic, 1e-9)
	require.InDelta(t, 40.0, results[0].AutomaticValue, 1e-9)
	require.InDelta(t, 10.0, results[1].AutomaticValue, 1e-9)
}

func TestItemLevelUptoCapIsPerUnit(t *testing.T) {
	a := line(1, "a", 1, 3, 100)
	a.Automatic = Slot{OfferID: 5, Qty: 2}
	rules := map[int64]Rule{5: {On: offer.OnItemCost, Percent: 50, Upto: 20, UptoOn: offer.CapPerItem}}

	s, _ := Compute([]Line{a}, rules, Charges{}, Options{Scope: ScopeCart, ApplyDiscounts: true})
	require.InDelta(t, 40.0, s.Offer.Automatic, 1e-9)
}

func TestZeroUptoMeansUncapped(t *testing.T) {
	a := line(1, "a", 1, 1, 300)
	a.Automatic = Slot{OfferID: 5, Qty: 1}
	rules := map[int64]Rule{5: {On: offer.OnItemCost, Percent: 50}}

	s, _ := Compute([]Line{a}, rules, Charges{}, Options{Scope: ScopeCart, ApplyDiscounts: true})
	require.InDelta(t, 150.0, s.Offer.Automatic, 1e-9)
}

func TestDiscountOnSizePrice(t *testing.T) {
	a := line(1, "a", 1, 2, 100)
	a.AdditionalCost = 10
	a.Cost = 2 * (100 + 10 + 40) // with addons
	a.Automatic = Slot{OfferID: 5, Qty: 1}
	rules := map[int64]Rule{5: {On: offer.OnSizePrice, Percent: 10}}

	s, _ := Compute([]Line{a}, rules, Charges{}, Options{Scope: ScopeCart, ApplyDiscounts: true})
	require.InDelta(t, 11.0, s.Offer.Automatic, 1e-9)
}

func TestAutomaticPlusCouponNeverExceedsCost(t *testing.T) {
	a := line(1, "a", 1, 1, 100)
	a.Automatic = Slot{OfferID: 1, Qty: 1}
	a.Coupon = Slot{OfferID: 2, Qty: 1}
	rules := map[int64]Rule{
		1: {On: offer.OnItemCost, Percent: 70},
		2: {On: offer.OnItemCost, Percent: 60},
	}

	s, results := Compute([]Line{a}, rules, Charges{ServiceCharge: 5}, Options{Scope: ScopeCart, ApplyDiscounts: true})
	require.InDelta(t, 70.0, results[0].AutomaticValue, 1e-9)
	require.InDelta(t, 30.0, results[0].CouponValue, 1e-9)
	require.LessOrEqual(t, results[0].AutomaticValue+results[0].CouponValue, a.Cost)
	require.Zero(t, s.ServiceCharge)
	require.Zero(t, s.Total.Final)
}

func TestUnknownOfferYieldsNoDiscount(t *testing.T) {
	a := line(1, "a", 1, 1, 100)
	a.Automatic = Slot{OfferID: 99, Qty: 1}

	s, _ := Compute([]Line{a}, map[int64]Rule{}, Charges{}, Options{Scope: ScopeCart, ApplyDiscounts: true})
	require.Zero(t, s.Offer.Automatic)
}

func TestStoredValuesUsedWhenDiscountsNotApplied(t *testing.T) {
	a := line(1, "a", 1, 1, 100)
	a.Automatic = Slot{OfferID: 1, Qty: 1, Value: 12.5}
	a.Coupon = Slot{OfferID: 2, Qty: 1, Value: 7.5}

	s, results := Compute([]Line{a}, nil, Charges{}, Options{Scope: ScopeCart})
	require.InDelta(t, 12.5, s.Offer.Automatic, 1e-9)
	require.InDelta(t, 7.5, s.Offer.Coupon, 1e-9)
	require.InDelta(t, 80.0, results[0].TaxableAmount, 1e-9)
}

func TestStoredValuesAreClampedToCost(t *testing.T) {
	a := line(1, "a", 1, 1, 100)
	a.Automatic = Slot{OfferID: 1, Qty: 1, Value: 90}
	a.Coupon = Slot{OfferID: 2, Qty: 1, Value: 90}

	s, results := Compute([]Line{a}, nil, Charges{}, Options{Scope: ScopeCart})
	require.InDelta(t, 90.0, s.Offer.Automatic, 1e-9)
	require.InDelta(t, 10.0, s.Offer.Coupon, 1e-9)
	require.Zero(t, results[0].TaxableAmount)
	require.Zero(t, s.Total.Final)
}

func TestBillScopeAddsExtraCharges(t *testing.T) {
	a := line(1, "a", 1, 2, 100)
	a.PackingCharge = 5
	charges := Charges{DeliveryCharge: 40, DeliveryChargeTax: 5, PackingCharge: 10}

	cart, _ := Compute([]Line{a}, nil, charges, Options{Scope: ScopeCart, ApplyDiscounts: true})
	require.Zero(t, cart.ExtraCharge)

	bill, _ := Compute([]Line{a}, nil, charges, Options{Scope: ScopeBill, ApplyDiscounts: true, Precision: 2})
	require.Equal(t, Extras{DeliveryCharge: 40, DeliveryChargeTax: 2, PackingCharge: 20}, bill.ExtraCharge)
	require.InDelta(t, 262.0, bill.Total.Final, 1e-9)
}

func TestRoundOffIsRetained(t *testing.T) {
	a := line(1, "a", 1, 1, 99.994)

	s, _ := Compute([]Line{a}, nil, Charges{}, Options{Scope: ScopeCart, Precision: 2})
	require.Equal(t, 99.99, s.Total.Final)
	require.InDelta(t, -0.004, s.Total.RoundOff, 1e-9)
}

func TestComputeIsIdempotent(t *testing.T) {
	a := line(1, "a", 1, 1, 200)
	a.Automatic = Slot{OfferID: 5, Qty: 1}
	b := line(2, "b", 1, 1, 200)
	b.Automatic = Slot{OfferID: 5, Qty: 1}
	rules := map[int64]Rule{5: {On: offer.OnItemCost, Percent: 20, Upto: 50}}
	opts := Options{Scope: ScopeBill, ApplyDiscounts: true}

	s1, r1 := Compute([]Line{b, a}, rules, Charges{ServiceCharge: 5}, opts)
	s2, r2 := Compute([]Line{a, b}, rules, Charges{ServiceCharge: 5}, opts)
	require.Equal(t, s1, s2)
	require.Equal(t, r1, r2)
}
