package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"HeadlineRadar/internal/domain"
)

// Digest renders the report as plain text for chat delivery.
func Digest(report domain.Report, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	data := report.Data

	var b strings.Builder
	fmt.Fprintf(&b, "%s · %s\n", ModeLabel(report.Mode), report.GeneratedAt.In(loc).Format("01-02 15:04"))
	fmt.Fprintf(&b, "Headlines: %d, matched: %d\n", report.TotalTitles, data.MatchedCount())

	if len(data.FailedIDs) > 0 {
		fmt.Fprintf(&b, "Failed platforms: %s\n", strings.Join(data.FailedIDs, ", "))
	}

	if data.TotalNewCount > 0 {
		fmt.Fprintf(&b, "\nNew headlines (%d)\n", data.TotalNewCount)
		for _, src := range data.NewTitles {
			fmt.Fprintf(&b, "%s:\n", src.SourceName)
			for i, t := range src.Titles {
				fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, t.RankDisplay(), t.Title)
			}
		}
	}

	for _, stat := range data.Stats {
		if len(stat.Titles) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%d)\n", stat.Word, stat.Count)
		for i, t := range stat.Titles {
			b.WriteString(digestLine(i+1, t))
		}
	}

	if data.MatchedCount() == 0 {
		b.WriteString("\nNo matching headlines.\n")
	}
	return b.String()
}

func digestLine(n int, t domain.TitleStat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. [%s] %s", n, t.SourceName, t.Title)
	fmt.Fprintf(&b, " #%s", t.RankDisplay())
	if t.TimeDisplay != "" {
		fmt.Fprintf(&b, " %s", t.TimeDisplay)
	}
	if t.Count > 1 {
		fmt.Fprintf(&b, " (%dx)", t.Count)
	}
	if t.IsNew {
		b.WriteString(" NEW")
	}
	if link := t.Link(); link != "" {
		fmt.Fprintf(&b, "\n   %s", link)
	}
	b.WriteString("\n")
	return b.String()
}

// SplitMessage breaks text on line boundaries into chunks of at most limit
// bytes. A single line longer than limit is cut at a rune boundary.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if current.Len()+len(line) > limit {
			flush()
		}
		current.WriteString(line)
	}
	flush()
	return chunks
}
