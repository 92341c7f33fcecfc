package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "HeadlineRadar/1.0"

// httpGetter issues GET requests with a fixed User-Agent.
type httpGetter struct {
	client    *http.Client
	userAgent string
}

func newHTTPGetter(client *http.Client, userAgent string) httpGetter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return httpGetter{client: client, userAgent: userAgent}
}

// get returns the open body of a 200 response; callers close it.
func (g httpGetter) get(ctx context.Context, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s returned %s", url, resp.Status)
	}
	return resp.Body, nil
}
