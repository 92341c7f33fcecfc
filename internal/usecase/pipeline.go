package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"HeadlineRadar/internal/aggregation"
	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.PlatformSource
	Window     *aggregation.Window
	Renderer   ports.Renderer
	Notifiers  []ports.Notifier
	Checkpoint ports.WindowCheckpoint
	Pruner     ports.HistoryPruner
	Retention  time.Duration
	Logger     *slog.Logger
}

// Pipeline runs one poll, aggregate, report and persist cycle at a time.
type Pipeline struct {
	mu         sync.Mutex
	source     ports.PlatformSource
	window     *aggregation.Window
	renderer   ports.Renderer
	notifiers  []ports.Notifier
	checkpoint ports.WindowCheckpoint
	pruner     ports.HistoryPruner
	retention  time.Duration
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		source:     deps.Source,
		window:     deps.Window,
		renderer:   deps.Renderer,
		notifiers:  deps.Notifiers,
		checkpoint: deps.Checkpoint,
		pruner:     deps.Pruner,
		retention:  deps.Retention,
		logger:     logger,
	}
}

// Resume loads the checkpointed window, if any. A checkpoint from another
// mode or an unreadable one is ignored and the window starts empty.
func (p *Pipeline) Resume(ctx context.Context) {
	if p.checkpoint == nil || p.window == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, err := p.checkpoint.Load(ctx)
	if err != nil {
		p.logger.Warn("window checkpoint unreadable, starting fresh", "error", err)
		return
	}
	if snap == nil {
		return
	}
	if err := p.window.Restore(*snap); err != nil {
		p.logger.Warn("window checkpoint ignored", "error", err)
		return
	}
	p.logger.Info("window resumed", "window", snap.ID, "titles", len(snap.Titles), "cycles", len(snap.Cycles))
}

// RunCycle polls every platform for the cycle at time at and delivers the
// resulting report. Only a source failure is returned; rendering, delivery
// and persistence problems are logged.
func (p *Pipeline) RunCycle(ctx context.Context, at time.Time) (domain.Report, error) {
	if p.source == nil || p.window == nil {
		return domain.Report{}, fmt.Errorf("pipeline is not configured")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	cycle, err := p.source.FetchCycle(ctx, at)
	if err != nil {
		return domain.Report{}, fmt.Errorf("fetch cycle: %w", err)
	}

	p.window.Observe(ctx, cycle)
	report := domain.Report{
		ID:          uuid.NewString(),
		Mode:        p.window.Mode(),
		GeneratedAt: at,
		TotalTitles: p.window.TotalTitles(),
		Data:        p.window.Assemble(),
	}

	p.deliver(ctx, report)
	p.persist(ctx, at)

	p.logger.Info("cycle complete",
		"cycle", cycle.Key(),
		"window", p.window.ID(),
		"headlines", report.TotalTitles,
		"matched", report.Data.MatchedCount(),
		"new", report.Data.TotalNewCount,
		"failed", len(report.Data.FailedIDs),
		"duration", time.Since(started),
	)
	return report, nil
}

func (p *Pipeline) deliver(ctx context.Context, report domain.Report) {
	if p.renderer != nil {
		if err := p.renderer.Render(ctx, report); err != nil {
			p.logger.Warn("render report failed", "report", report.ID, "error", err)
		}
	}
	for _, n := range p.notifiers {
		if err := n.PublishReport(ctx, report); err != nil {
			p.logger.Warn("deliver report failed", "channel", n.Name(), "report", report.ID, "error", err)
			continue
		}
		p.logger.Debug("report delivered", "channel", n.Name(), "report", report.ID)
	}
}

func (p *Pipeline) persist(ctx context.Context, at time.Time) {
	if err := p.window.Flush(ctx); err != nil {
		p.logger.Warn("history flush failed, deltas kept for next cycle", "error", err)
	}

	if p.pruner != nil && p.retention > 0 {
		removed, err := p.pruner.Prune(ctx, at.Add(-p.retention))
		if err != nil {
			p.logger.Warn("history prune failed", "error", err)
		} else if removed > 0 {
			p.logger.Debug("history pruned", "records", removed)
		}
	}

	if p.checkpoint != nil {
		if err := p.checkpoint.Save(ctx, p.window.Snapshot()); err != nil {
			p.logger.Warn("save window checkpoint failed", "error", err)
		}
	}
}
