package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"HeadlineRadar/internal/config"
	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/scanner"
)

var cycleAt = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

func TestNewsnowScannerScan(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/s" || r.URL.Query().Get("id") != "weibo" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("User-Agent"); got != "radar-test" {
			t.Errorf("unexpected user agent %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","items":[
			{"title":" First headline ","url":"https://a/1","mobileUrl":"https://m/1"},
			{"title":"Second","url":"https://a/2"}
		]}`))
	}))
	defer srv.Close()

	s := NewNewsnowScanner(srv.Client(), "radar-test")
	items, err := s.Scan(context.Background(), scanner.Request{At: cycleAt, PlatformID: "weibo", URL: srv.URL})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "First headline" || items[0].Rank != 1 || items[0].MobileURL != "https://m/1" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Rank != 2 || items[1].PlatformID != "weibo" || !items[1].ObservedAt.Equal(cycleAt) {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestNewsnowScannerRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","items":[]}`))
	}))
	defer srv.Close()

	s := NewNewsnowScanner(srv.Client(), "")
	if _, err := s.Scan(context.Background(), scanner.Request{PlatformID: "x", URL: srv.URL}); err == nil {
		t.Fatal("expected error for non-success status")
	}
}

func TestBuildNewsnowURL(t *testing.T) {
	t.Parallel()

	got, err := buildNewsnowURL("https://newsnow.example.org/", "zhihu")
	if err != nil {
		t.Fatalf("buildNewsnowURL: %v", err)
	}
	if !strings.HasPrefix(got, "https://newsnow.example.org/api/s?") || !strings.Contains(got, "id=zhihu") {
		t.Fatalf("unexpected url %s", got)
	}
	if _, err := buildNewsnowURL("not a url", "x"); err == nil {
		t.Fatal("expected error for relative url")
	}
}

func TestRSSScannerScan(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Feed</title>
<item><title>Alpha story</title><link>https://feed/a</link></item>
<item><title>Beta story</title><link>https://feed/b</link></item>
<item><title>Gamma story</title><link>https://feed/c</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	s := NewRSSScanner(srv.Client(), "")
	items, err := s.Scan(context.Background(), scanner.Request{
		PlatformID: "feed",
		URL:        srv.URL,
		Options:    map[string]string{"limit": "2"},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit to cap items, got %d", len(items))
	}
	if items[1].Title != "Beta story" || items[1].URL != "https://feed/b" || items[1].Rank != 2 {
		t.Fatalf("unexpected item: %+v", items[1])
	}
}

func TestHTMLScannerScan(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<ul class="hot">
  <li><a href="/story/1"><span class="t">Storm   hits coast</span></a></li>
  <li><a href="https://other.example/2"><span class="t">Market rally</span></a></li>
</ul>
</body></html>`))
	}))
	defer srv.Close()

	s := NewHTMLScanner(srv.Client(), "")
	items, err := s.Scan(context.Background(), scanner.Request{
		PlatformID: "page",
		URL:        srv.URL + "/hot",
		Options:    map[string]string{"item_selector": "ul.hot li", "title_selector": ".t"},
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Title != "Storm hits coast" || items[0].URL != srv.URL+"/story/1" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].URL != "https://other.example/2" || items[1].Rank != 2 {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

type fakeScanner struct {
	name  string
	items map[string][]domain.PlatformItem
	fail  map[string]bool
	calls atomic.Int32
}

func (f *fakeScanner) Name() string { return f.name }

func (f *fakeScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.PlatformItem, error) {
	f.calls.Add(1)
	if f.fail[req.PlatformID] {
		return nil, errors.New("boom")
	}
	return f.items[req.PlatformID], nil
}

func TestStrategySourceFetchCycle(t *testing.T) {
	t.Parallel()

	fake := &fakeScanner{
		name: "fake",
		items: map[string][]domain.PlatformItem{
			"a": {{PlatformID: "a", Title: "one", Rank: 1}},
			"c": {{PlatformID: "c", Title: "three", Rank: 1}},
		},
		fail: map[string]bool{"b": true},
	}
	platforms := []config.PlatformConfig{
		{ID: "a", Name: "A", Fetcher: "fake"},
		{ID: "b", Fetcher: "fake"},
		{ID: "c", Name: "C", Fetcher: "fake"},
		{ID: "d", Fetcher: "missing"},
	}

	src := NewStrategySource(scanner.NewRegistry(fake), platforms, config.FetchConfig{Concurrency: 2, Timeout: time.Second}, nil)
	cycle, err := src.FetchCycle(context.Background(), cycleAt)
	if err != nil {
		t.Fatalf("FetchCycle: %v", err)
	}

	if !cycle.At.Equal(cycleAt) || len(cycle.Results) != 4 {
		t.Fatalf("unexpected cycle: %+v", cycle)
	}
	for i, id := range []string{"a", "b", "c", "d"} {
		if cycle.Results[i].PlatformID != id {
			t.Fatalf("result %d is %s, want %s", i, cycle.Results[i].PlatformID, id)
		}
	}
	if cycle.Results[0].Failed() || cycle.Results[0].Name != "A" {
		t.Fatalf("unexpected result a: %+v", cycle.Results[0])
	}
	if cycle.Results[1].Err == nil || cycle.Results[1].Name != "b" {
		t.Fatalf("expected b to fail: %+v", cycle.Results[1])
	}
	if cycle.Results[3].Err == nil {
		t.Fatal("expected unknown scanner to fail platform d")
	}
	if got := fake.calls.Load(); got != 3 {
		t.Fatalf("expected 3 scans, got %d", got)
	}
}

func TestStrategySourceTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	reg := scanner.NewRegistry(NewNewsnowScanner(srv.Client(), ""))
	src := NewStrategySource(reg, []config.PlatformConfig{{ID: "slow", Fetcher: "newsnow", URL: srv.URL}},
		config.FetchConfig{Concurrency: 1, Timeout: 50 * time.Millisecond}, nil)

	cycle, err := src.FetchCycle(context.Background(), cycleAt)
	if err != nil {
		t.Fatalf("FetchCycle: %v", err)
	}
	if cycle.Results[0].Err == nil {
		t.Fatal("expected timeout to fail the platform")
	}
}

func TestStrategySourceCancelledCycle(t *testing.T) {
	t.Parallel()

	fake := &fakeScanner{name: "fake", items: map[string][]domain.PlatformItem{
		"a": {{PlatformID: "a", Title: "one", Rank: 1}},
	}}
	src := NewStrategySource(scanner.NewRegistry(fake), []config.PlatformConfig{
		{ID: "a", Fetcher: "fake"},
		{ID: "b", Fetcher: "fake"},
	}, config.FetchConfig{Concurrency: 1}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.FetchCycle(ctx, cycleAt); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := fake.calls.Load(); got != 0 {
		t.Fatalf("expected no scans after cancellation, got %d", got)
	}
}
