// Package stock implements the VisualSource port against the Pexels video
// search API.
package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

const stageName = "visualized"

// PexelsSource matches script segments to stock clips by keyword search.
type PexelsSource struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

var _ ports.VisualSource = (*PexelsSource)(nil)

// NewPexelsSource builds a client from configuration.
func NewPexelsSource(cfg config.StockConfig) *PexelsSource {
	return &PexelsSource{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type searchResponse struct {
	Videos []struct {
		ID         int     `json:"id"`
		Duration   float64 `json:"duration"`
		VideoFiles []struct {
			Link    string `json:"link"`
			Quality string `json:"quality"`
			Width   int    `json:"width"`
			Height  int    `json:"height"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Match searches for the segment's keywords and returns the first usable
// clip. An empty result set is permanent for that segment; there is nothing
// to retry into existence.
func (p *PexelsSource) Match(ctx context.Context, segment domain.Segment) (domain.ClipReference, error) {
	if p.apiKey == "" || p.endpoint == "" {
		return domain.ClipReference{}, domain.PermanentStage(stageName, fmt.Errorf("stock client misconfigured"))
	}

	query := strings.Join(segment.Keywords, " ")
	if query == "" {
		query = segment.Text
	}

	endpoint, err := url.Parse(p.endpoint)
	if err != nil {
		return domain.ClipReference{}, domain.PermanentStage(stageName, fmt.Errorf("invalid endpoint: %w", err))
	}
	params := endpoint.Query()
	params.Set("query", query)
	params.Set("orientation", "portrait")
	params.Set("per_page", "3")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domain.ClipReference{}, domain.PermanentStage(stageName, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.ClipReference{}, domain.TransientStage(stageName, fmt.Errorf("source unavailable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return domain.ClipReference{}, domain.TransientStage(stageName, fmt.Errorf("pexels returned %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ClipReference{}, domain.PermanentStage(stageName,
			fmt.Errorf("pexels returned %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.ClipReference{}, domain.PermanentStage(stageName, fmt.Errorf("decode response: %w", err))
	}

	for _, video := range decoded.Videos {
		link := bestFile(video.VideoFiles)
		if link == "" {
			continue
		}
		return domain.ClipReference{
			ID:               strconv.Itoa(video.ID),
			URL:              link,
			SegmentIndex:     segment.Index,
			AvailableSeconds: video.Duration,
		}, nil
	}

	return domain.ClipReference{}, domain.PermanentStage(stageName,
		fmt.Errorf("no match found for %q", query))
}

// bestFile prefers portrait HD files, falling back to the first link.
func bestFile(files []struct {
	Link    string `json:"link"`
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}) string {
	var fallback string
	for _, f := range files {
		if f.Link == "" {
			continue
		}
		if fallback == "" {
			fallback = f.Link
		}
		if f.Quality == "hd" && f.Height > f.Width {
			return f.Link
		}
	}
	return fallback
}
