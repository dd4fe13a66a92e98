// Package newsdata implements the NewsSource port against the newsdata.io
// REST API.
package newsdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

const stageName = "fetched"

// Client fetches fresh articles from newsdata.io, one request per configured
// query scope (country, category, ...).
type Client struct {
	endpoint string
	apiKey   string
	queries  []map[string]string
	http     *http.Client
}

var _ ports.NewsSource = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.NewsDataConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		queries:  cfg.Queries,
		http:     &http.Client{Timeout: 20 * time.Second},
	}
}

type apiArticle struct {
	ArticleID   string `json:"article_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Link        string `json:"link"`
	SourceID    string `json:"source_id"`
	PubDate     string `json:"pubDate"`
}

type apiResponse struct {
	Status  string       `json:"status"`
	Results []apiArticle `json:"results"`
}

// FetchBatch runs every configured query and returns up to maxItems validated
// items, deduplicated by fingerprint.
func (c *Client) FetchBatch(ctx context.Context, maxItems int) ([]domain.NewsItem, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return nil, domain.PermanentStage(stageName, fmt.Errorf("newsdata client misconfigured"))
	}

	seen := map[string]struct{}{}
	items := make([]domain.NewsItem, 0, maxItems)

	for _, query := range c.queries {
		batch, err := c.fetch(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, item := range batch {
			if _, dup := seen[item.Fingerprint]; dup {
				continue
			}
			seen[item.Fingerprint] = struct{}{}
			items = append(items, item)
			if maxItems > 0 && len(items) >= maxItems {
				return items, nil
			}
		}
	}

	return items, nil
}

func (c *Client) fetch(ctx context.Context, query map[string]string) ([]domain.NewsItem, error) {
	endpoint, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, domain.PermanentStage(stageName, fmt.Errorf("invalid endpoint: %w", err))
	}

	params := endpoint.Query()
	params.Set("apikey", c.apiKey)
	for k, v := range query {
		params.Set(k, v)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, domain.PermanentStage(stageName, fmt.Errorf("new request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.TransientStage(stageName, fmt.Errorf("source unavailable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, domain.TransientStage(stageName, fmt.Errorf("newsdata returned %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, domain.PermanentStage(stageName,
			fmt.Errorf("newsdata returned %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, domain.PermanentStage(stageName, fmt.Errorf("decode response: %w", err))
	}

	items := make([]domain.NewsItem, 0, len(decoded.Results))
	for _, raw := range decoded.Results {
		item, ok := validate(raw)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// validate maps a loosely-typed API article into the strict entity shape,
// dropping records that lack the fields the pipeline depends on.
func validate(raw apiArticle) (domain.NewsItem, bool) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return domain.NewsItem{}, false
	}

	sourceID := raw.SourceID
	if sourceID == "" {
		sourceID = raw.ArticleID
	}
	if sourceID == "" {
		return domain.NewsItem{}, false
	}

	body := strings.TrimSpace(raw.Description)
	if body == "" {
		body = strings.TrimSpace(raw.Content)
	}

	publishedAt := time.Now().UTC()
	if parsed, err := time.Parse("2006-01-02 15:04:05", raw.PubDate); err == nil {
		publishedAt = parsed.UTC()
	}

	return domain.NewsItem{
		Fingerprint: domain.Fingerprint(sourceID, title),
		SourceID:    sourceID,
		Title:       title,
		Body:        body,
		URL:         raw.Link,
		PublishedAt: publishedAt,
	}, true
}
