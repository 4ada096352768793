package billing_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/offer"
)

var finalizedAt = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

func newFinalizer(t *testing.T) (*billing.Finalizer, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &billing.Finalizer{
		Store:   billing.NewStore(client, "kasir", time.Hour),
		Locker:  lock.Locker{R: client, Prefix: "kasir", RetryBackoff: 5 * time.Millisecond},
		LockTTL: time.Second,
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return finalizedAt },
	}, mr
}

func pizza(qty float64) cart.ItemInput {
	return cart.ItemInput{
		CategoryID:   1,
		CategoryName: "Pizza",
		ProductID:    11,
		ProductName:  "Margherita",
		Type:         1,
		Qty:          qty,
		SizeID:       1,
		SizeName:     "Regular",
		SizePrice:    100,
	}
}

func promo() offer.Definition {
	return offer.Definition{
		ID:       3,
		Name:     "pizza20",
		Kind:     offer.KindOverall,
		Sponsor:  offer.SponsorMerchant,
		Discount: offer.Discount{On: offer.OnItemCost, Value: 20},
		Filters: offer.Filters{
			Limits:   offer.Bound(offer.Unbounded),
			MenuCode: offer.MenuCode{Visits: offer.Visits{Min: offer.Bound(offer.Unbounded), Max: offer.Bound(offer.Unbounded)}},
		},
		Conditions: offer.Conditions{
			Overall: []offer.Rule{{IDs: []offer.Match{{Group: offer.GroupCategory, ID: 1, Diet: offer.DietAny}}, Qty: 1}},
		},
	}
}

func billCart(t *testing.T) *cart.Cart {
	t.Helper()
	c := cart.New(cart.Options{Now: func() time.Time { return finalizedAt }})
	require.NoError(t, c.SetBillID(100001234))
	require.NoError(t, c.AddOffer(promo()))
	_, err := c.AddItem(cart.ScopeBill, 1000015, "line-1", pizza(2))
	require.NoError(t, err)
	return c
}

func TestFinalizeStoresSnapshot(t *testing.T) {
	f, mr := newFinalizer(t)
	c := billCart(t)

	rec, err := f.Finalize(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, int64(100001234), rec.BillID)
	require.Equal(t, "234", rec.BillNumber)
	require.InDelta(t, 160.0, rec.Snapshot.Calc.Total.Final, 1e-9)

	require.True(t, mr.Exists("kasir:bill:100001234"))
	require.Equal(t, time.Hour, mr.TTL("kasir:bill:100001234"))
	require.False(t, mr.Exists("kasir:lock:bill:100001234"))

	stored, err := f.Store.Get(context.Background(), 100001234)
	require.NoError(t, err)
	require.True(t, finalizedAt.Equal(stored.FinalizedAt))
	require.InDelta(t, 40.0, stored.Snapshot.Calc.Offer.Automatic, 1e-9)
	line := stored.Snapshot.Items[1000015]["line-1"]
	require.Equal(t, int64(3), line.Offers.Automatic.OfferID)
	require.InDelta(t, 40.0, line.Offers.Automatic.Value, 1e-9)
}

func TestStoredBillRendersWithoutRematch(t *testing.T) {
	f, _ := newFinalizer(t)
	_, err := f.Finalize(context.Background(), billCart(t))
	require.NoError(t, err)

	stored, err := f.Store.Get(context.Background(), 100001234)
	require.NoError(t, err)

	rebuilt := cart.New(cart.Options{})
	for orderID, group := range stored.Snapshot.Items {
		for itemID, li := range group {
			_, err := rebuilt.AddItem(cart.ScopeBill, orderID, itemID, cart.ItemInput{
				CategoryID:   li.CategoryID,
				CategoryName: li.CategoryName,
				ProductID:    li.ProductID,
				ProductName:  li.ProductName,
				Type:         li.Type,
				Qty:          li.Qty,
				Tax:          li.Tax.TaxRates,
				SizeID:       li.SizeID,
				SizeName:     li.SizeName,
				SizePrice:    li.SizePrice,
				AddonLabels:  li.AddonLabels,
			})
			require.NoError(t, err)
			require.NoError(t, rebuilt.RestoreDiscount(itemID, li.Offers.Automatic.Value, li.Offers.Coupon.Value))
		}
	}

	snap, err := rebuilt.Render(cart.ScopeBill, false, 0)
	require.NoError(t, err)
	require.Equal(t, stored.Snapshot.Calc, snap.Calc)
}

func TestFinalizePreconditions(t *testing.T) {
	f, mr := newFinalizer(t)

	noBill := cart.New(cart.Options{})
	_, err := noBill.AddItem(cart.ScopeBill, 1, "x", pizza(1))
	require.NoError(t, err)
	_, err = f.Finalize(context.Background(), noBill)
	require.True(t, common.IsCode(err, common.CodePreconditionFailed))
	require.ErrorIs(t, err, cart.ErrNoBillID)

	empty := cart.New(cart.Options{})
	require.NoError(t, empty.SetBillID(100009999))
	_, err = f.Finalize(context.Background(), empty)
	require.ErrorIs(t, err, cart.ErrEmptyCart)

	require.Empty(t, mr.Keys())
}

func TestFinalizeWaitsForHeldLock(t *testing.T) {
	f, mr := newFinalizer(t)
	require.NoError(t, mr.Set("kasir:lock:bill:100001234", "other-terminal"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := f.Finalize(ctx, billCart(t))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, mr.Exists("kasir:bill:100001234"))
}

func TestStoreGetMissing(t *testing.T) {
	f, _ := newFinalizer(t)
	_, err := f.Store.Get(context.Background(), 42)
	require.ErrorIs(t, err, billing.ErrNotFound)
	require.Equal(t, "kasir:bill:42", f.Store.Key(42))
}
