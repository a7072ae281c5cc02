package stock

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-engine/internal/domain/catalogerr"
)

// maxRetries bounds how many times an adjustment is replayed after losing an
// optimistic write race before giving up with a ConcurrencyError.
const maxRetries = 3

// Ledger applies signed deltas to variant stock counts while enforcing the
// non-negative invariant. Concurrent adjustments against the same variant
// are serialized through optimistic versioning: each write matches the
// version it read, and a lost race is retried against fresh state.
type Ledger struct {
	variants Repository
}

// NewLedger creates a Ledger over the given variant repository.
func NewLedger(variants Repository) *Ledger {
	return &Ledger{variants: variants}
}

// Adjust applies a signed delta to the variant's stock. Positive deltas
// restock, negative deltas reserve or sell. A delta that would drive stock
// negative fails with InsufficientStockError and leaves stock unchanged.
// A zero delta is a no-op that still succeeds. Returns the variant as
// persisted.
func (l *Ledger) Adjust(ctx context.Context, variantID int64, delta int) (*Variant, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		v, err := l.variants.Get(ctx, variantID)
		if err != nil {
			return nil, errors.Wrapf(err, "load variant %d", variantID)
		}

		newStock := v.Stock + delta
		if newStock < 0 {
			return nil, &catalogerr.InsufficientStockError{
				Available: v.Stock,
				Requested: -delta,
			}
		}
		if delta == 0 {
			return v, nil
		}

		v.Stock = newStock
		err = l.variants.Save(ctx, v)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return nil, errors.Wrapf(err, "save variant %d", variantID)
	}

	return nil, &catalogerr.ConcurrencyError{Op: "adjust stock"}
}

// HasAtLeast reports whether a subsequent Adjust of -quantity would succeed
// right now, without mutating state. The check and a later adjustment are
// not atomic across the gap; callers that must not oversell still rely on
// Adjust's own invariant.
func (l *Ledger) HasAtLeast(ctx context.Context, variantID int64, quantity int) (bool, error) {
	v, err := l.variants.Get(ctx, variantID)
	if err != nil {
		return false, errors.Wrapf(err, "load variant %d", variantID)
	}
	return v.Stock >= quantity, nil
}
