// Package billing finalises bills: the cart is rendered in bill scope under a
// per-bill Redis lock and the snapshot is stored for later reprints.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// Finalizer renders and persists bills.
type Finalizer struct {
	Store     *Store
	Locker    lock.Locker
	LockTTL   time.Duration
	Precision int32
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Finalize renders c in bill scope with discounts applied and stores the
// snapshot under the bill id. The bill lock is held for the duration.
func (f *Finalizer) Finalize(ctx context.Context, c *cart.Cart) (rec Record, err error) {
	ctx, span := obs.Tracer().Start(ctx, "billing.finalize")
	defer span.End()
	start := time.Now()
	defer func() {
		result := obs.Result(err)
		if obs.BillFinalizationsTotal != nil {
			obs.BillFinalizationsTotal.WithLabelValues(result).Inc()
		}
		if obs.BillFinalizeLatency != nil {
			obs.BillFinalizeLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "finalize failed")
		}
	}()

	number, err := c.BillNumber()
	if err != nil {
		return Record{}, common.PreconditionFailed("finalize bill", err)
	}
	if c.IsEmpty() {
		return Record{}, common.PreconditionFailed("finalize bill", cart.ErrEmptyCart)
	}
	billID := c.BillID()
	span.SetAttributes(attribute.Int64("bill.id", billID))

	err = f.Locker.WithLock(ctx, f.Locker.BillKey(billID), f.LockTTL, func(ctx context.Context) error {
		snap, err := c.Render(cart.ScopeBill, true, f.Precision)
		if err != nil {
			return err
		}
		rec = Record{
			BillID:      billID,
			BillNumber:  number,
			Table:       c.Table().ID,
			FinalizedAt: f.now().UTC(),
			Snapshot:    snap,
		}
		if err := f.Store.Put(ctx, rec); err != nil {
			return fmt.Errorf("store bill %d: %w", billID, err)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	span.SetAttributes(attribute.Float64("bill.final", rec.Snapshot.Calc.Total.Final))
	f.Logger.Info().
		Int64("bill_id", billID).
		Str("bill_number", number).
		Float64("final", rec.Snapshot.Calc.Total.Final).
		Float64("discount", rec.Snapshot.Calc.Offer.Automatic+rec.Snapshot.Calc.Offer.Coupon).
		Msg("bill_finalized")
	return rec, nil
}

func (f *Finalizer) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
