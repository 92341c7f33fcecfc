package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/infrastructure/render"
	"HeadlineRadar/internal/ports"
)

// Payload is the JSON body posted for every report.
type Payload struct {
	Text   string        `json:"text"`
	Report domain.Report `json:"report"`
}

// Notifier posts reports to an HTTP endpoint as JSON.
type Notifier struct {
	endpoint   string
	loc        *time.Location
	httpClient *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier builds a notifier for endpoint; client may be nil.
func NewNotifier(endpoint string, loc *time.Location, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Notifier{endpoint: endpoint, loc: loc, httpClient: client}
}

// Name identifies the channel in logs.
func (n *Notifier) Name() string {
	return "webhook"
}

// PublishReport posts the digest text together with the structured report.
func (n *Notifier) PublishReport(ctx context.Context, report domain.Report) error {
	if n.endpoint == "" {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	body, err := json.Marshal(Payload{Text: render.Digest(report, n.loc), Report: report})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}
