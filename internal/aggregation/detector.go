package aggregation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

// Detector flags identities that have no usable history record.
type Detector struct {
	store    ports.HistoryStore
	horizon  time.Duration
	logger   *slog.Logger
	degraded bool
}

// NewDetector wires the history store. A zero horizon disables the
// reappearance check; a nil store marks everything new.
func NewDetector(store ports.HistoryStore, horizon time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Detector{store: store, horizon: horizon, logger: logger}
}

// BeginCycle clears the degraded flag so the store is retried each cycle.
func (d *Detector) BeginCycle() {
	d.degraded = false
}

// IsNew reports whether id is a first appearance at time at. Store errors
// degrade to true for the rest of the cycle.
func (d *Detector) IsNew(ctx context.Context, id domain.Identity, at time.Time) bool {
	if d.store == nil || d.degraded {
		return true
	}

	rec, err := d.store.Lookup(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	if err != nil {
		d.degraded = true
		d.logger.Warn("history lookup failed, marking items new", "identity", id.Key(), "error", err)
		return true
	}

	if d.horizon > 0 && at.Sub(rec.LastSeenAt) > d.horizon {
		return true
	}
	return false
}

// Flush writes deltas back to the store.
func (d *Detector) Flush(ctx context.Context, deltas []domain.HistoryRecord) error {
	if d.store == nil || len(deltas) == 0 {
		return nil
	}
	if err := d.store.Merge(ctx, deltas); err != nil {
		return fmt.Errorf("merge history: %w", err)
	}
	return nil
}
