/*
adjust.go - Append-only billing adjustments

PURPOSE:
  Applies a signed correction to a billing record. Two writes happen
  inside a single store transaction: the record's running amount moves
  by the delta, and a ledger row recording delta, reason, admin, and
  timestamp is appended. Both commit together or neither does; a
  failure between them would corrupt the audit invariant
  (amount == base_amount + sum of deltas).

CONCURRENCY:
  The read-modify-write uses an optimistic version check on the record.
  When two admins adjust the same record at once, the loser observes
  ErrConcurrentAdjustment and the whole transaction retries, so both
  deltas land with no lost update. Retries are bounded.

SEE ALSO:
  - engine.go: Record generation
  - errors.go: ErrConcurrentAdjustment, IsRetryable
*/
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ADJUSTMENT STORE - Persistence needed by the adjuster
// =============================================================================

// AdjustmentStore is the persistence interface adjustments run against.
// WithTx must give the callback a store whose writes are committed or
// rolled back as one unit.
type AdjustmentStore interface {
	// WithTx executes fn within a transaction. If fn returns an error,
	// the transaction is rolled back.
	WithTx(ctx context.Context, fn func(AdjustmentStore) error) error

	// GetRecord returns the record, or (nil, nil) when absent.
	GetRecord(ctx context.Context, id int64) (*Record, error)

	// UpdateRecordAmount sets the record's amount and bumps its version,
	// conditional on the version still matching expectVersion. Returns
	// ErrConcurrentAdjustment when the record moved underneath us.
	UpdateRecordAmount(ctx context.Context, id int64, amount decimal.Decimal, expectVersion int64) error

	// AppendAdjustment inserts a ledger row. Adjustments are append-only:
	// the store exposes no update or delete for them.
	AppendAdjustment(ctx context.Context, adj Adjustment) (*Adjustment, error)
}

// =============================================================================
// ADJUSTER
// =============================================================================

const defaultMaxAttempts = 3

// Adjuster applies append-only corrections to billing records.
type Adjuster struct {
	Store AdjustmentStore

	// MaxAttempts bounds retries on concurrent-adjustment conflicts.
	// Zero means the default of 3.
	MaxAttempts int

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewAdjuster(store AdjustmentStore) *Adjuster {
	return &Adjuster{Store: store, MaxAttempts: defaultMaxAttempts, Now: time.Now}
}

// Apply moves the record's amount by delta and appends the audit entry,
// atomically. Returns the record as it stood after this adjustment.
func (a *Adjuster) Apply(ctx context.Context, recordID int64, delta decimal.Decimal, reason string, adminID int64) (*Record, error) {
	if delta.IsZero() {
		return nil, ErrZeroDelta
	}

	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var result *Record
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = a.Store.WithTx(ctx, func(tx AdjustmentStore) error {
			rec, err := tx.GetRecord(ctx, recordID)
			if err != nil {
				return err
			}
			if rec == nil {
				return ErrRecordNotFound
			}

			newAmount := rec.Amount.Add(delta)
			if err := tx.UpdateRecordAmount(ctx, rec.ID, newAmount, rec.Version); err != nil {
				return err
			}

			if _, err := tx.AppendAdjustment(ctx, Adjustment{
				RecordID:  rec.ID,
				AdminID:   adminID,
				Delta:     delta,
				Reason:    reason,
				CreatedAt: a.now(),
			}); err != nil {
				return err
			}

			rec.Amount = newAmount
			rec.Version++
			result = rec
			return nil
		})
		if lastErr == nil {
			return result, nil
		}
		if !errors.Is(lastErr, ErrConcurrentAdjustment) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (a *Adjuster) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
