package aggregation

import (
	"time"

	"HeadlineRadar/internal/domain"
)

type titleView struct {
	id   domain.Identity
	stat domain.TitleStat
}

// Assemble builds the report for everything the window holds and marks the
// window ASSEMBLED. Display values are computed from the current ranks.
func (w *Window) Assemble() domain.ReportData {
	groups := w.matcher.Groups()
	byGroup := make([][]*domain.TrackedTitle, len(groups))
	for _, t := range w.ordered {
		if t.GroupIndex >= 0 && t.GroupIndex < len(groups) && len(t.Ranks) > 0 {
			byGroup[t.GroupIndex] = append(byGroup[t.GroupIndex], t)
		}
	}

	report := domain.ReportData{
		Stats:     make([]domain.WordStat, 0, len(groups)),
		NewTitles: []domain.SourceTitles{},
		FailedIDs: append([]string{}, w.failedIDs...),
	}

	var views []titleView
	for gi, g := range groups {
		grouped := groupByPlatform(byGroup[gi])
		stat := domain.WordStat{
			Word:   g.Word,
			Count:  len(grouped),
			Titles: make([]domain.TitleStat, 0, len(grouped)),
		}
		for _, t := range grouped {
			view := titleView{id: t.Identity, stat: w.titleStat(t, g.Threshold())}
			stat.Titles = append(stat.Titles, view.stat)
			views = append(views, view)
		}
		report.Stats = append(report.Stats, stat)
	}

	report.NewTitles, report.TotalNewCount = collectNew(views)

	if w.state != domain.WindowEmpty {
		w.state = domain.WindowAssembled
		w.lastReportAt = w.lastCycleAt
	}
	return report
}

// groupByPlatform keeps titles (already in first-seen order) together per
// platform, platforms ordered by their first match.
func groupByPlatform(titles []*domain.TrackedTitle) []*domain.TrackedTitle {
	var platforms []string
	buckets := map[string][]*domain.TrackedTitle{}
	for _, t := range titles {
		p := t.Identity.Platform
		if _, ok := buckets[p]; !ok {
			platforms = append(platforms, p)
		}
		buckets[p] = append(buckets[p], t)
	}

	out := make([]*domain.TrackedTitle, 0, len(titles))
	for _, p := range platforms {
		out = append(out, buckets[p]...)
	}
	return out
}

// collectNew walks titles in group-then-platform order and keeps each new
// identity once, grouped by source.
func collectNew(views []titleView) ([]domain.SourceTitles, int) {
	var (
		order []string
		total int
	)
	bySource := map[string][]domain.TitleStat{}
	seen := map[domain.Identity]struct{}{}

	for _, v := range views {
		if !v.stat.IsNew {
			continue
		}
		if _, dup := seen[v.id]; dup {
			continue
		}
		seen[v.id] = struct{}{}
		if _, ok := bySource[v.stat.SourceName]; !ok {
			order = append(order, v.stat.SourceName)
		}
		bySource[v.stat.SourceName] = append(bySource[v.stat.SourceName], v.stat)
		total++
	}

	out := make([]domain.SourceTitles, 0, len(order))
	for _, source := range order {
		out = append(out, domain.SourceTitles{SourceName: source, Titles: bySource[source]})
	}
	return out, total
}

func (w *Window) titleStat(t *domain.TrackedTitle, threshold int) domain.TitleStat {
	return domain.TitleStat{
		SourceName:    t.SourceName,
		Title:         t.Title,
		URL:           t.URL,
		MobileURL:     t.MobileURL,
		Ranks:         append([]int(nil), t.Ranks...),
		RankThreshold: threshold,
		Count:         len(t.Ranks),
		IsNew:         t.IsNew,
		TimeDisplay:   TimeDisplay(t.FirstSeenAt, t.LastSeenAt, w.cfg.Location),
	}
}

// TimeDisplay renders "HH:MM" for a single sighting and "[HH:MM ~ HH:MM]"
// for a span.
func TimeDisplay(first, last time.Time, loc *time.Location) string {
	if first.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	from := first.In(loc).Format("15:04")
	if last.IsZero() {
		return from
	}
	to := last.In(loc).Format("15:04")
	if from == to {
		return from
	}
	return "[" + from + " ~ " + to + "]"
}
