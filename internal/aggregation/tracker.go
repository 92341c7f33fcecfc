package aggregation

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"HeadlineRadar/internal/domain"
)

// Observe feeds one cycle into the window. It rolls the window over first when
// the policy says the previous window has expired. Replaying a cycle that the
// window already holds only refreshes the failed platform list.
func (w *Window) Observe(ctx context.Context, cycle domain.Cycle) {
	cycle = w.stamp(cycle)
	key := cycle.Key()
	results := w.sortResults(cycle.Results)
	if _, seen := w.cycles[key]; seen {
		w.failedIDs = failedPlatforms(results)
		w.logger.Debug("cycle already observed", "window", w.id, "cycle", key)
		return
	}

	if w.state != domain.WindowEmpty && w.policy.Expired(w.openedAt, w.lastReportAt, cycle.At) {
		w.rollover(ctx, cycle.At)
	}
	if w.state == domain.WindowEmpty {
		w.Open(cycle.At)
	}

	w.detector.BeginCycle()
	w.cycles[key] = struct{}{}
	w.cycleOrder = append(w.cycleOrder, key)
	w.failedIDs = failedPlatforms(results)
	w.totalTitles = cycle.TotalItems()

	tracked := 0
	for _, result := range results {
		if result.Failed() {
			continue
		}
		tracked += w.trackPlatform(ctx, key, cycle.At, result)
	}

	w.lastCycleAt = cycle.At
	w.state = domain.WindowAccumulating
	w.logger.Debug("cycle observed",
		"window", w.id,
		"cycle", key,
		"observations", tracked,
		"titles", len(w.ordered),
		"failed", len(w.failedIDs),
	)
}

// stamp dates a cycle that arrived without a poll time from its newest item.
// A cycle with no timestamps at all gets the current time and a fresh ID, so
// it can never be mistaken for a replay.
func (w *Window) stamp(cycle domain.Cycle) domain.Cycle {
	if !cycle.At.IsZero() {
		return cycle
	}
	for _, r := range cycle.Results {
		for _, item := range r.Items {
			if item.ObservedAt.After(cycle.At) {
				cycle.At = item.ObservedAt
			}
		}
	}
	if cycle.At.IsZero() {
		cycle.At = w.now()
		if cycle.ID == "" {
			cycle.ID = uuid.NewString()
		}
		w.logger.Debug("cycle has no timestamps, using current time", "cycle", cycle.ID)
	}
	return cycle
}

func (w *Window) rollover(ctx context.Context, at time.Time) {
	if err := w.Flush(ctx); err != nil {
		w.logger.Warn("history flush before rollover failed", "window", w.id, "error", err)
	}
	w.logger.Info("window rollover", "window", w.id, "mode", w.cfg.Mode, "at", at)
	w.Close()
}

func (w *Window) trackPlatform(ctx context.Context, cycleKey string, cycleAt time.Time, result domain.PlatformResult) int {
	seen := make(map[domain.Identity]struct{}, len(result.Items))
	observations := 0

	for pos, item := range result.Items {
		title := strings.TrimSpace(item.Title)
		platform := item.PlatformID
		if platform == "" {
			platform = result.PlatformID
		}
		if title == "" || platform == "" {
			continue
		}

		id := domain.NewIdentity(platform, title)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		groups := w.matcher.Match(title)
		if len(groups) == 0 {
			continue
		}

		rank := item.Rank
		if rank <= 0 {
			rank = pos + 1
		}
		at := item.ObservedAt
		if at.IsZero() {
			at = cycleAt
		}
		source := result.Name
		if source == "" {
			source = platform
		}

		for _, g := range groups {
			w.track(ctx, g, id, cycleKey, observation{
				source: source,
				title:  title,
				url:    item.URL,
				mobile: item.MobileURL,
				rank:   rank,
				at:     at,
			})
		}
		observations++
	}
	return observations
}

type observation struct {
	source string
	title  string
	url    string
	mobile string
	rank   int
	at     time.Time
}

func (w *Window) track(ctx context.Context, group int, id domain.Identity, cycleKey string, obs observation) {
	key := titleKey{group: group, id: id}
	if t, ok := w.titles[key]; ok {
		if t.LastCycle == cycleKey {
			return
		}
		t.Ranks = append(t.Ranks, obs.rank)
		t.Count = len(t.Ranks)
		t.LastCycle = cycleKey
		if obs.at.After(t.LastSeenAt) {
			t.LastSeenAt = obs.at
		}
		if obs.url != "" {
			t.URL = obs.url
		}
		if obs.mobile != "" {
			t.MobileURL = obs.mobile
		}
		return
	}

	isNew, decided := w.newness[id]
	if !decided {
		isNew = w.detector.IsNew(ctx, id, obs.at)
		w.newness[id] = isNew
	}

	t := &domain.TrackedTitle{
		MatchedTitle: domain.MatchedTitle{
			Identity:    id,
			GroupIndex:  group,
			SourceName:  obs.source,
			Title:       obs.title,
			URL:         obs.url,
			MobileURL:   obs.mobile,
			Ranks:       []int{obs.rank},
			FirstSeenAt: obs.at,
			LastSeenAt:  obs.at,
			Count:       1,
			IsNew:       isNew,
		},
		Seq:       w.seq,
		LastCycle: cycleKey,
	}
	w.seq++
	w.titles[key] = t
	w.ordered = append(w.ordered, t)
}

// sortResults orders platforms by configuration, unknown ones last by id.
func (w *Window) sortResults(results []domain.PlatformResult) []domain.PlatformResult {
	out := append([]domain.PlatformResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := w.rank[out[i].PlatformID]
		rj, jok := w.rank[out[j].PlatformID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i].PlatformID < out[j].PlatformID
		}
	})
	return out
}

func failedPlatforms(results []domain.PlatformResult) []string {
	var failed []string
	for _, r := range results {
		if r.PlatformID != "" && r.Failed() {
			failed = append(failed, r.PlatformID)
		}
	}
	return failed
}
