package domain

import (
	"fmt"
	"strings"
	"time"
)

// WindowMode selects how far back rank observations accumulate.
type WindowMode string

const (
	ModeCurrent     WindowMode = "current"
	ModeIncremental WindowMode = "incremental"
	ModeDaily       WindowMode = "daily"
)

// ParseWindowMode validates a configured mode string.
func ParseWindowMode(value string) (WindowMode, error) {
	switch WindowMode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeCurrent:
		return ModeCurrent, nil
	case ModeIncremental:
		return ModeIncremental, nil
	case ModeDaily, "":
		return ModeDaily, nil
	default:
		return "", fmt.Errorf("unknown report mode %q", value)
	}
}

// TitleStat is the presentation view of a MatchedTitle.
type TitleStat struct {
	SourceName    string `json:"source_name"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	MobileURL     string `json:"mobile_url"`
	Ranks         []int  `json:"ranks"`
	RankThreshold int    `json:"rank_threshold"`
	Count         int    `json:"count"`
	IsNew         bool   `json:"is_new"`
	TimeDisplay   string `json:"time_display"`
}

// Tier classifies the title from its ranks at read time.
func (t TitleStat) Tier() Tier {
	return Classify(t.Ranks, t.RankThreshold)
}

// RankDisplay renders "N" for a single distinct rank and "min-max" otherwise.
func (t TitleStat) RankDisplay() string {
	if len(t.Ranks) == 0 {
		return "?"
	}
	lo, hi := t.Ranks[0], t.Ranks[0]
	for _, r := range t.Ranks[1:] {
		lo = min(lo, r)
		hi = max(hi, r)
	}
	if lo == hi {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

// Link prefers the mobile URL.
func (t TitleStat) Link() string {
	if t.MobileURL != "" {
		return t.MobileURL
	}
	return t.URL
}

// WordStat groups every title matched to one keyword group.
type WordStat struct {
	Word   string      `json:"word"`
	Count  int         `json:"count"`
	Titles []TitleStat `json:"titles"`
}

// SourceTitles groups new titles of one platform.
type SourceTitles struct {
	SourceName string      `json:"source_name"`
	Titles     []TitleStat `json:"titles"`
}

// ReportData is the structured report handed to presentation and delivery.
type ReportData struct {
	Stats         []WordStat     `json:"stats"`
	NewTitles     []SourceTitles `json:"new_titles"`
	TotalNewCount int            `json:"total_new_count"`
	FailedIDs     []string       `json:"failed_ids"`
}

// MatchedCount is the number of titles across all word groups.
func (r ReportData) MatchedCount() int {
	total := 0
	for _, s := range r.Stats {
		total += len(s.Titles)
	}
	return total
}

// Report wraps ReportData with the run metadata renderers display.
type Report struct {
	ID          string     `json:"id"`
	Mode        WindowMode `json:"mode"`
	GeneratedAt time.Time  `json:"generated_at"`
	TotalTitles int        `json:"total_titles"`
	Data        ReportData `json:"data"`
}
