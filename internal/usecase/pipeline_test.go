package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"HeadlineRadar/internal/aggregation"
	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/matcher"
	"HeadlineRadar/internal/ports"
)

var t0 = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

type scriptedSource struct {
	cycles map[time.Time][]domain.PlatformResult
	err    error
}

func (s *scriptedSource) FetchCycle(_ context.Context, at time.Time) (domain.Cycle, error) {
	if s.err != nil {
		return domain.Cycle{}, s.err
	}
	return domain.Cycle{At: at, Results: s.cycles[at]}, nil
}

type memStore struct {
	records map[domain.Identity]domain.HistoryRecord
	pruned  []time.Time
}

func newMemStore() *memStore {
	return &memStore{records: map[domain.Identity]domain.HistoryRecord{}}
}

func (m *memStore) Lookup(_ context.Context, id domain.Identity) (domain.HistoryRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return domain.HistoryRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) Merge(_ context.Context, deltas []domain.HistoryRecord) error {
	for _, d := range deltas {
		m.records[d.Identity] = m.records[d.Identity].Merge(d)
	}
	return nil
}

func (m *memStore) Prune(_ context.Context, before time.Time) (int64, error) {
	m.pruned = append(m.pruned, before)
	return 0, nil
}

type memCheckpoint struct {
	snap  *domain.WindowSnapshot
	saves int
}

func (c *memCheckpoint) Load(context.Context) (*domain.WindowSnapshot, error) {
	return c.snap, nil
}

func (c *memCheckpoint) Save(_ context.Context, s domain.WindowSnapshot) error {
	c.saves++
	c.snap = &s
	return nil
}

type recordingNotifier struct {
	name    string
	err     error
	reports []domain.Report
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) PublishReport(_ context.Context, r domain.Report) error {
	n.reports = append(n.reports, r)
	return n.err
}

type recordingRenderer struct {
	reports []domain.Report
}

func (r *recordingRenderer) Render(_ context.Context, report domain.Report) error {
	r.reports = append(r.reports, report)
	return nil
}

func headline(platform string, rank int, title string) domain.PlatformResult {
	return domain.PlatformResult{PlatformID: platform, Name: platform, Items: []domain.PlatformItem{
		{PlatformID: platform, Title: title, Rank: rank},
	}}
}

func newWindow(store *memStore) *aggregation.Window {
	groups := []domain.KeywordGroup{{Word: "AI", IncludeTerms: []string{"ai"}, RankThreshold: 10}}
	detector := aggregation.NewDetector(store, 24*time.Hour, nil)
	return aggregation.NewWindow(aggregation.Config{Mode: domain.ModeDaily, Location: time.UTC}, matcher.New(groups), detector, nil)
}

func TestPipelineRunCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	second := t0.Add(30 * time.Minute)
	source := &scriptedSource{cycles: map[time.Time][]domain.PlatformResult{
		t0:     {headline("weibo", 2, "AI chip launch"), {PlatformID: "baidu", Err: errors.New("down")}},
		second: {headline("weibo", 5, "AI chip launch")},
	}}
	renderer := &recordingRenderer{}
	failing := &recordingNotifier{name: "telegram", err: errors.New("blocked")}
	ok := &recordingNotifier{name: "webhook"}
	checkpoint := &memCheckpoint{}

	p := NewPipeline(PipelineDeps{
		Source:     source,
		Window:     newWindow(store),
		Renderer:   renderer,
		Notifiers:  []ports.Notifier{failing, ok},
		Checkpoint: checkpoint,
		Pruner:     store,
		Retention:  48 * time.Hour,
	})

	first, err := p.RunCycle(ctx, t0)
	if err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if first.ID == "" || first.Mode != domain.ModeDaily || !first.GeneratedAt.Equal(t0) {
		t.Fatalf("unexpected report header: %+v", first)
	}
	if !reflect.DeepEqual(first.Data.FailedIDs, []string{"baidu"}) {
		t.Fatalf("failed ids = %v", first.Data.FailedIDs)
	}
	if first.Data.TotalNewCount != 1 || first.TotalTitles != 1 {
		t.Fatalf("unexpected counts: new=%d total=%d", first.Data.TotalNewCount, first.TotalTitles)
	}

	report, err := p.RunCycle(ctx, second)
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	stat := report.Data.Stats[0].Titles[0]
	if !reflect.DeepEqual(stat.Ranks, []int{2, 5}) || stat.Count != 2 || !stat.IsNew {
		t.Fatalf("unexpected title stat: %+v", stat)
	}
	if len(report.Data.FailedIDs) != 0 {
		t.Fatalf("failed ids must reflect the latest cycle, got %v", report.Data.FailedIDs)
	}
	if report.ID == first.ID {
		t.Fatal("reports must get distinct ids")
	}

	if len(renderer.reports) != 2 || len(failing.reports) != 2 || len(ok.reports) != 2 {
		t.Fatalf("delivery counts: render=%d telegram=%d webhook=%d", len(renderer.reports), len(failing.reports), len(ok.reports))
	}
	if checkpoint.saves != 2 || checkpoint.snap.State != domain.WindowAssembled {
		t.Fatalf("unexpected checkpoint: saves=%d snap=%+v", checkpoint.saves, checkpoint.snap)
	}

	rec := store.records[domain.NewIdentity("weibo", "AI chip launch")]
	if !reflect.DeepEqual(rec.Ranks, []int{2, 5}) {
		t.Fatalf("history must hold each rank once, got %v", rec.Ranks)
	}
	if len(store.pruned) != 2 || !store.pruned[1].Equal(second.Add(-48*time.Hour)) {
		t.Fatalf("unexpected prune calls: %v", store.pruned)
	}
}

func TestPipelineSourceFailure(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{name: "webhook"}
	checkpoint := &memCheckpoint{}
	p := NewPipeline(PipelineDeps{
		Source:     &scriptedSource{err: errors.New("registry missing")},
		Window:     newWindow(newMemStore()),
		Notifiers:  []ports.Notifier{notifier},
		Checkpoint: checkpoint,
	})

	if _, err := p.RunCycle(context.Background(), t0); err == nil {
		t.Fatal("expected source error")
	}
	if len(notifier.reports) != 0 || checkpoint.saves != 0 {
		t.Fatal("nothing may be delivered or saved when the cycle could not be fetched")
	}
}

func TestPipelineResumeKeepsWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	checkpoint := &memCheckpoint{}
	second := t0.Add(time.Hour)
	source := &scriptedSource{cycles: map[time.Time][]domain.PlatformResult{
		t0:     {headline("zhihu", 1, "AI regulation")},
		second: {headline("zhihu", 3, "AI regulation")},
	}}

	first := NewPipeline(PipelineDeps{Source: source, Window: newWindow(store), Checkpoint: checkpoint})
	if _, err := first.RunCycle(ctx, t0); err != nil {
		t.Fatalf("first run: %v", err)
	}

	resumed := NewPipeline(PipelineDeps{Source: source, Window: newWindow(store), Checkpoint: checkpoint})
	resumed.Resume(ctx)
	report, err := resumed.RunCycle(ctx, second)
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	stat := report.Data.Stats[0].Titles[0]
	if !reflect.DeepEqual(stat.Ranks, []int{1, 3}) {
		t.Fatalf("window not resumed, ranks = %v", stat.Ranks)
	}
	if !stat.IsNew {
		t.Fatal("newness decided in the first run must survive the restart")
	}
	rec := store.records[domain.NewIdentity("zhihu", "AI regulation")]
	if !reflect.DeepEqual(rec.Ranks, []int{1, 3}) {
		t.Fatalf("history double counted after resume: %v", rec.Ranks)
	}
}

func TestPipelineResumeIgnoresOtherMode(t *testing.T) {
	t.Parallel()

	checkpoint := &memCheckpoint{snap: &domain.WindowSnapshot{ID: "old", Mode: domain.ModeCurrent, State: domain.WindowAssembled}}
	window := newWindow(newMemStore())
	p := NewPipeline(PipelineDeps{Source: &scriptedSource{}, Window: window, Checkpoint: checkpoint})
	p.Resume(context.Background())

	if window.State() != domain.WindowEmpty || window.ID() != "" {
		t.Fatalf("mismatched checkpoint restored: state=%s id=%s", window.State(), window.ID())
	}
}

type syncDriver struct {
	triggers []time.Time
	stopped  bool
}

func (d *syncDriver) Start(_ context.Context, job func(time.Time)) error {
	for _, at := range d.triggers {
		job(at)
	}
	return nil
}

func (d *syncDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipeline(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("CST", 8*3600)
	renderer := &recordingRenderer{}
	source := &scriptedSource{cycles: map[time.Time][]domain.PlatformResult{}}
	p := NewPipeline(PipelineDeps{Source: source, Window: newWindow(newMemStore()), Renderer: renderer})

	driver := &syncDriver{triggers: []time.Time{t0, t0.Add(time.Hour)}}
	s := NewScheduler(driver, p, shanghai, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(renderer.reports) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(renderer.reports))
	}
	if renderer.reports[0].GeneratedAt.Location() != shanghai {
		t.Fatalf("trigger not converted to scheduler zone: %v", renderer.reports[0].GeneratedAt)
	}
	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("Stop: %v", err)
	}
}
