package aggregation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/matcher"
)

// Config describes how a window tracks and reports.
type Config struct {
	Mode          domain.WindowMode
	Location      *time.Location
	PlatformOrder []string
}

type titleKey struct {
	group int
	id    domain.Identity
}

// Window holds the MatchedTitle set of one reporting window.
// It is not safe for concurrent use; cycles are strictly sequential.
type Window struct {
	cfg      Config
	policy   Policy
	matcher  *matcher.Matcher
	detector *Detector
	logger   *slog.Logger
	rank     map[string]int
	now      func() time.Time

	id           string
	state        domain.WindowState
	openedAt     time.Time
	lastCycleAt  time.Time
	lastReportAt time.Time
	cycles       map[string]struct{}
	cycleOrder   []string
	failedIDs    []string
	totalTitles  int
	titles       map[titleKey]*domain.TrackedTitle
	ordered      []*domain.TrackedTitle
	newness      map[domain.Identity]bool
	seq          int
}

// NewWindow builds an empty window.
func NewWindow(cfg Config, m *matcher.Matcher, d *Detector, logger *slog.Logger) *Window {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d == nil {
		d = NewDetector(nil, 0, logger)
	}

	rank := make(map[string]int, len(cfg.PlatformOrder))
	for i, id := range cfg.PlatformOrder {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}

	w := &Window{
		cfg:      cfg,
		policy:   Policy{Mode: cfg.Mode, Location: cfg.Location},
		matcher:  m,
		detector: d,
		logger:   logger,
		rank:     rank,
		now:      time.Now,
	}
	w.reset()
	return w
}

// ID identifies the current window; empty while the window is EMPTY.
func (w *Window) ID() string { return w.id }

// State returns the lifecycle state.
func (w *Window) State() domain.WindowState { return w.state }

// Mode returns the configured window mode.
func (w *Window) Mode() domain.WindowMode { return w.cfg.Mode }

// TotalTitles is the raw headline count of the latest cycle.
func (w *Window) TotalTitles() int { return w.totalTitles }

// Open starts a fresh window at the given time, discarding any tracked titles.
func (w *Window) Open(at time.Time) {
	w.reset()
	w.id = uuid.NewString()
	w.openedAt = at
	w.logger.Debug("window opened", "window", w.id, "mode", w.cfg.Mode, "at", at)
}

// Close discards the window. Unflushed terminal states are lost, so callers
// flush first.
func (w *Window) Close() {
	if w.id != "" {
		w.logger.Debug("window closed", "window", w.id, "titles", len(w.ordered))
	}
	w.reset()
}

func (w *Window) reset() {
	w.id = ""
	w.state = domain.WindowEmpty
	w.openedAt = time.Time{}
	w.lastCycleAt = time.Time{}
	w.cycles = map[string]struct{}{}
	w.cycleOrder = nil
	w.failedIDs = nil
	w.totalTitles = 0
	w.titles = map[titleKey]*domain.TrackedTitle{}
	w.ordered = nil
	w.newness = map[domain.Identity]bool{}
	w.seq = 0
}

// Titles returns the tracked titles in first-seen order.
func (w *Window) Titles() []domain.MatchedTitle {
	out := make([]domain.MatchedTitle, 0, len(w.ordered))
	for _, t := range w.ordered {
		mt := t.MatchedTitle
		mt.Ranks = append([]int(nil), t.Ranks...)
		out = append(out, mt)
	}
	return out
}

// Flush writes every rank observed since the previous successful flush back
// to the history store. Groups sharing an identity are written once.
func (w *Window) Flush(ctx context.Context) error {
	var deltas []domain.HistoryRecord
	written := map[domain.Identity]bool{}

	for _, t := range w.ordered {
		if t.Flushed >= len(t.Ranks) || written[t.Identity] {
			continue
		}
		written[t.Identity] = true
		fresh := append([]int(nil), t.Ranks[t.Flushed:]...)
		deltas = append(deltas, domain.HistoryRecord{
			Identity:    t.Identity,
			Title:       t.Title,
			Ranks:       fresh,
			FirstSeenAt: t.FirstSeenAt,
			LastSeenAt:  t.LastSeenAt,
			Count:       len(fresh),
		})
	}
	if len(deltas) == 0 {
		return nil
	}

	if err := w.detector.Flush(ctx, deltas); err != nil {
		return fmt.Errorf("flush window %s: %w", w.id, err)
	}

	for _, t := range w.ordered {
		if written[t.Identity] {
			t.Flushed = len(t.Ranks)
		}
	}
	w.logger.Debug("window flushed", "window", w.id, "records", len(deltas))
	return nil
}

// Snapshot captures the window for a checkpoint.
func (w *Window) Snapshot() domain.WindowSnapshot {
	titles := make([]domain.TrackedTitle, 0, len(w.ordered))
	for _, t := range w.ordered {
		c := *t
		c.Ranks = append([]int(nil), t.Ranks...)
		titles = append(titles, c)
	}
	return domain.WindowSnapshot{
		ID:           w.id,
		Mode:         w.cfg.Mode,
		State:        w.state,
		OpenedAt:     w.openedAt,
		LastCycleAt:  w.lastCycleAt,
		LastReportAt: w.lastReportAt,
		Cycles:       append([]string(nil), w.cycleOrder...),
		FailedIDs:    append([]string(nil), w.failedIDs...),
		TotalTitles:  w.totalTitles,
		Titles:       titles,
	}
}

// Restore replaces the window with a checkpoint taken in the same mode.
func (w *Window) Restore(s domain.WindowSnapshot) error {
	if s.Mode != w.cfg.Mode {
		return fmt.Errorf("checkpoint mode %s does not match %s", s.Mode, w.cfg.Mode)
	}
	groups := len(w.matcher.Groups())

	w.reset()
	w.id = s.ID
	w.state = s.State
	w.openedAt = s.OpenedAt
	w.lastCycleAt = s.LastCycleAt
	w.lastReportAt = s.LastReportAt
	w.failedIDs = append([]string(nil), s.FailedIDs...)
	w.totalTitles = s.TotalTitles
	for _, c := range s.Cycles {
		w.cycles[c] = struct{}{}
		w.cycleOrder = append(w.cycleOrder, c)
	}

	sorted := append([]domain.TrackedTitle(nil), s.Titles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })
	for i := range sorted {
		t := sorted[i]
		if t.GroupIndex < 0 || t.GroupIndex >= groups || len(t.Ranks) == 0 {
			continue
		}
		t.Count = len(t.Ranks)
		w.titles[titleKey{group: t.GroupIndex, id: t.Identity}] = &t
		w.ordered = append(w.ordered, &t)
		w.newness[t.Identity] = t.IsNew
		w.seq = max(w.seq, t.Seq+1)
	}
	if w.state == "" {
		w.state = domain.WindowAccumulating
	}
	if w.id == "" && len(w.ordered) == 0 {
		w.state = domain.WindowEmpty
	}
	return nil
}
