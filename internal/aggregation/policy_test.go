package aggregation

import (
	"testing"
	"time"

	"HeadlineRadar/internal/domain"
)

func TestPolicyCutoff(t *testing.T) {
	t.Parallel()

	shanghai := time.FixedZone("CST", 8*3600)
	at := time.Date(2026, time.March, 10, 17, 30, 0, 0, time.UTC) // 01:30 next day in CST
	lastReport := at.Add(-time.Hour)

	tests := []struct {
		name   string
		policy Policy
		want   time.Time
	}{
		{name: "current", policy: Policy{Mode: domain.ModeCurrent}, want: at},
		{name: "incremental", policy: Policy{Mode: domain.ModeIncremental}, want: lastReport.Add(time.Nanosecond)},
		{name: "daily utc", policy: Policy{Mode: domain.ModeDaily}, want: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)},
		{name: "daily local", policy: Policy{Mode: domain.ModeDaily, Location: shanghai}, want: time.Date(2026, time.March, 11, 0, 0, 0, 0, shanghai)},
	}

	for _, tc := range tests {
		if got := tc.policy.Cutoff(at, lastReport); !got.Equal(tc.want) {
			t.Errorf("%s: Cutoff = %v, want %v", tc.name, got, tc.want)
		}
	}

	if got := (Policy{Mode: domain.ModeIncremental}).Cutoff(at, time.Time{}); !got.IsZero() {
		t.Errorf("incremental without report should not cut, got %v", got)
	}
}

func TestPolicyExpired(t *testing.T) {
	t.Parallel()

	opened := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	p := Policy{Mode: domain.ModeCurrent}

	if p.Expired(time.Time{}, time.Time{}, opened) {
		t.Error("an unopened window never expires")
	}
	if p.Expired(opened, time.Time{}, opened) {
		t.Error("same cycle time must not expire the current window")
	}
	if !p.Expired(opened, time.Time{}, opened.Add(time.Minute)) {
		t.Error("later cycle must expire the current window")
	}
}

func TestTimeDisplay(t *testing.T) {
	t.Parallel()

	first := time.Date(2026, time.March, 10, 1, 5, 0, 0, time.UTC)
	cst := time.FixedZone("CST", 8*3600)

	if got := TimeDisplay(first, first, cst); got != "09:05" {
		t.Errorf("single sighting: %q", got)
	}
	if got := TimeDisplay(first, first.Add(90*time.Minute), cst); got != "[09:05 ~ 10:35]" {
		t.Errorf("span: %q", got)
	}
	if got := TimeDisplay(time.Time{}, first, cst); got != "" {
		t.Errorf("zero first: %q", got)
	}
}
