package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"HeadlineRadar/internal/domain"
	"HeadlineRadar/internal/scanner"
)

// HTMLScanner extracts a ranked list from a page with CSS selectors:
// item_selector (default "ol li"), title_selector (default: the item text)
// and link_selector (default "a").
type HTMLScanner struct {
	http httpGetter
}

// NewHTMLScanner wires an HTTP client.
func NewHTMLScanner(client *http.Client, userAgent string) *HTMLScanner {
	return &HTMLScanner{http: newHTTPGetter(client, userAgent)}
}

// Name identifies the strategy inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Scan walks the selected items in document order.
func (h *HTMLScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.PlatformItem, error) {
	limit, err := limitOption(req)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %s: %w", req.URL, err)
	}

	doc, err := h.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	return extractItems(doc, base, req, limit), nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := h.http.get(ctx, pageURL, "text/html")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractItems(doc *goquery.Document, base *url.URL, req scanner.Request, limit int) []domain.PlatformItem {
	titleSel := req.Option("title_selector", "")
	linkSel := req.Option("link_selector", "a")

	var items []domain.PlatformItem
	doc.Find(req.Option("item_selector", "ol li")).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if limit > 0 && len(items) >= limit {
			return false
		}

		titleNode := sel
		if titleSel != "" {
			titleNode = sel.Find(titleSel).First()
		}
		title := strings.Join(strings.Fields(titleNode.Text()), " ")

		link := ""
		if href, ok := sel.Find(linkSel).First().Attr("href"); ok {
			link = resolveLink(base, href)
		} else if href, ok := sel.Attr("href"); ok {
			link = resolveLink(base, href)
		}

		items = append(items, domain.PlatformItem{
			PlatformID: req.PlatformID,
			Title:      title,
			URL:        link,
			Rank:       len(items) + 1,
			ObservedAt: req.At,
		})
		return true
	})
	return items
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
