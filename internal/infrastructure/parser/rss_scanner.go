package parser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/scanner"
)

// RSSScanner treats feed order as the ranking.
type RSSScanner struct {
	http httpGetter
}

// NewRSSScanner wires an HTTP client.
func NewRSSScanner(client *http.Client, userAgent string) *RSSScanner {
	return &RSSScanner{http: newHTTPGetter(client, userAgent)}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan parses RSS, Atom or JSON feeds; option "limit" caps the list.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.PlatformItem, error) {
	limit, err := limitOption(req)
	if err != nil {
		return nil, err
	}

	body, err := r.http.get(ctx, req.URL, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.PlatformItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		items = append(items, domain.PlatformItem{
			PlatformID: req.PlatformID,
			Title:      strings.TrimSpace(it.Title),
			URL:        it.Link,
			Rank:       len(items) + 1,
			ObservedAt: req.At,
		})
	}
	return items, nil
}

func limitOption(req scanner.Request) (int, error) {
	raw := req.Option("limit", "0")
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit option %q", raw)
	}
	return limit, nil
}
