package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/scanner"
)

type newsnowResponse struct {
	Status string        `json:"status"`
	Items  []newsnowItem `json:"items"`
}

type newsnowItem struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	MobileURL string `json:"mobileUrl"`
}

// NewsnowScanner reads ranked lists from a newsnow-compatible aggregation API.
type NewsnowScanner struct {
	http httpGetter
}

// NewNewsnowScanner wires an HTTP client.
func NewNewsnowScanner(client *http.Client, userAgent string) *NewsnowScanner {
	return &NewsnowScanner{http: newHTTPGetter(client, userAgent)}
}

// Name identifies the strategy inside the registry.
func (n *NewsnowScanner) Name() string {
	return "newsnow"
}

// Scan fetches the latest list for the platform id. The option "source_id"
// overrides the id sent upstream.
func (n *NewsnowScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.PlatformItem, error) {
	endpoint, err := buildNewsnowURL(req.URL, req.Option("source_id", req.PlatformID))
	if err != nil {
		return nil, err
	}

	body, err := n.http.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var payload newsnowResponse
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "success" && payload.Status != "cache" {
		return nil, fmt.Errorf("newsnow status %q", payload.Status)
	}

	items := make([]domain.PlatformItem, 0, len(payload.Items))
	for i, it := range payload.Items {
		items = append(items, domain.PlatformItem{
			PlatformID: req.PlatformID,
			Title:      strings.TrimSpace(it.Title),
			URL:        it.URL,
			MobileURL:  it.MobileURL,
			Rank:       i + 1,
			ObservedAt: req.At,
		})
	}
	return items, nil
}

func buildNewsnowURL(base, id string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("invalid newsnow url %q", base)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/api/s"
	query := parsed.Query()
	query.Set("id", id)
	query.Set("latest", "")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
