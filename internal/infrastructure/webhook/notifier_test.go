package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"HeadlineRadar/internal/domain"
)

func TestNotifierPublishReport(t *testing.T) {
	t.Parallel()

	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	report := domain.Report{
		ID:          "r-1",
		Mode:        domain.ModeIncremental,
		GeneratedAt: time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC),
		Data:        domain.ReportData{FailedIDs: []string{"baidu"}},
	}

	n := NewNotifier(srv.URL, time.UTC, srv.Client())
	if err := n.PublishReport(context.Background(), report); err != nil {
		t.Fatalf("PublishReport: %v", err)
	}
	if got.Report.ID != "r-1" || got.Report.Mode != domain.ModeIncremental {
		t.Fatalf("unexpected report: %+v", got.Report)
	}
	if !strings.Contains(got.Text, "Failed platforms: baidu") {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestNotifierReportsHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, nil, srv.Client())
	err := n.PublishReport(context.Background(), domain.Report{})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestNotifierMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", nil, nil).PublishReport(context.Background(), domain.Report{}); err == nil {
		t.Fatal("expected error without endpoint")
	}
}
