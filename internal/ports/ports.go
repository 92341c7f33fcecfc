package ports

import (
	"context"
	"time"

	"HeadlineRadar/internal/domain"
)

// PlatformSource polls every configured platform once and joins the results.
type PlatformSource interface {
	FetchCycle(ctx context.Context, at time.Time) (domain.Cycle, error)
}

// HistoryStore keeps the last known terminal state per identity.
// Lookup returns domain.ErrNotFound when no record exists.
type HistoryStore interface {
	Lookup(ctx context.Context, id domain.Identity) (domain.HistoryRecord, error)
	Merge(ctx context.Context, deltas []domain.HistoryRecord) error
}

// HistoryPruner is implemented by stores that expire old records on request.
type HistoryPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// WindowCheckpoint persists the open window between process runs.
type WindowCheckpoint interface {
	Load(ctx context.Context) (*domain.WindowSnapshot, error)
	Save(ctx context.Context, snapshot domain.WindowSnapshot) error
}

// Renderer turns a report into a presentation artifact.
type Renderer interface {
	Render(ctx context.Context, report domain.Report) error
}

// Notifier delivers a report to Telegram, webhooks or a message bus.
type Notifier interface {
	Name() string
	PublishReport(ctx context.Context, report domain.Report) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
