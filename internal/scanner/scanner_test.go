package scanner

import (
	"context"
	"testing"

	"HeadlineRadar/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) ([]domain.PlatformItem, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(stubScanner{name: "rss"})
	reg.Register(stubScanner{name: "html"})

	for _, name := range []string{"rss", "html"} {
		s, err := reg.Resolve(name)
		if err != nil || s.Name() != name {
			t.Fatalf("Resolve(%s) = %v, %v", name, s, err)
		}
	}
	if _, err := reg.Resolve("newsnow"); err == nil {
		t.Fatal("expected error for unregistered scanner")
	}
}

func TestRequestOption(t *testing.T) {
	t.Parallel()

	req := Request{Options: map[string]string{"item_selector": "li", "empty": ""}}
	if got := req.Option("item_selector", "x"); got != "li" {
		t.Fatalf("Option = %q", got)
	}
	if got := req.Option("empty", "x"); got != "x" {
		t.Fatalf("Option = %q", got)
	}
	if got := (Request{}).Option("missing", "y"); got != "y" {
		t.Fatalf("Option = %q", got)
	}
}
