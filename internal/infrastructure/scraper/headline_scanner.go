// Package scraper implements a NewsSource over configured HTML pages, for
// outlets without an API.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/scanner"
)

const (
	selectorItem  = "item"
	selectorTitle = "title"
	selectorBody  = "body"
	selectorLink  = "link"
)

// HeadlineScanner extracts news items from a listing page using per-site
// CSS selectors from config.
type HeadlineScanner struct {
	client *http.Client
}

// NewHeadlineScanner wires an HTTP client.
func NewHeadlineScanner(client *http.Client) *HeadlineScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HeadlineScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (h *HeadlineScanner) Name() string {
	return "headline"
}

// Scan fetches the site page and extracts up to MaxItems items.
func (h *HeadlineScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.NewsItem, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("site %s has no url", req.SiteName)
	}
	itemSel := req.Selectors[selectorItem]
	titleSel := req.Selectors[selectorTitle]
	if itemSel == "" || titleSel == "" {
		return nil, fmt.Errorf("site %s missing item/title selectors", req.SiteName)
	}

	doc, err := h.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	var results []domain.NewsItem
	seen := map[string]struct{}{}

	doc.Find(itemSel).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		item, ok := parseEntry(sel, req)
		if !ok {
			return true
		}
		if _, dup := seen[item.Fingerprint]; dup {
			return true
		}
		seen[item.Fingerprint] = struct{}{}
		results = append(results, item)
		return req.MaxItems <= 0 || len(results) < req.MaxItems
	})

	return results, nil
}

func (h *HeadlineScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "news-auto/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("site returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func parseEntry(sel *goquery.Selection, req scanner.Request) (domain.NewsItem, bool) {
	title := strings.TrimSpace(sel.Find(req.Selectors[selectorTitle]).First().Text())
	if title == "" {
		return domain.NewsItem{}, false
	}

	var body string
	if bodySel := req.Selectors[selectorBody]; bodySel != "" {
		body = strings.TrimSpace(sel.Find(bodySel).First().Text())
	}

	var link string
	if linkSel := req.Selectors[selectorLink]; linkSel != "" {
		link, _ = sel.Find(linkSel).First().Attr("href")
	}

	return domain.NewsItem{
		Fingerprint: domain.Fingerprint(req.SiteName, title),
		SourceID:    req.SiteName,
		Title:       title,
		Body:        body,
		URL:         link,
		PublishedAt: time.Now().UTC(),
	}, true
}
