// Package llm implements the Scripter port against the Gemini API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

const stageName = "scripted"

// GeminiScripter rewrites news items into persona-voiced, segmented scripts
// via the generateContent endpoint.
type GeminiScripter struct {
	endpoint       string
	model          string
	apiKey         string
	wordsPerSecond float64
	httpClient     *http.Client
}

var _ ports.Scripter = (*GeminiScripter)(nil)

// NewGeminiScripter builds a client from configuration.
func NewGeminiScripter(cfg config.GeminiConfig, wordsPerSecond float64) *GeminiScripter {
	if wordsPerSecond <= 0 {
		wordsPerSecond = 2.2
	}
	return &GeminiScripter{
		endpoint:       cfg.Endpoint,
		model:          cfg.Model,
		apiKey:         cfg.APIKey,
		wordsPerSecond: wordsPerSecond,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// scriptPayload is the strict JSON shape the model is instructed to return.
type scriptPayload struct {
	Headline string `json:"headline"`
	Segments []struct {
		Script   string   `json:"script"`
		Keywords []string `json:"keywords"`
	} `json:"segments"`
}

// Generate asks the model for a segmented script and validates the response
// into the strict entity shape. Malformed model output is permanent.
func (g *GeminiScripter) Generate(ctx context.Context, item domain.NewsItem, persona domain.Persona) (domain.ScriptedItem, error) {
	if g.apiKey == "" || g.endpoint == "" || g.model == "" {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("gemini client misconfigured"))
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(item, persona)}}}},
	})
	if err != nil {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimSuffix(g.endpoint, "/"), g.model, g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.ScriptedItem{}, domain.TransientStage(stageName, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return domain.ScriptedItem{}, domain.TransientStage(stageName, fmt.Errorf("gemini returned %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.ScriptedItem{}, domain.PermanentStage(stageName,
			fmt.Errorf("gemini returned %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("decode response: %w", err))
	}
	if decoded.Error != nil {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("gemini error: %s", decoded.Error.Message))
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("gemini returned no candidates"))
	}

	return g.parseScript(item, decoded.Candidates[0].Content.Parts[0].Text)
}

// parseScript strips markdown fences the model sometimes adds and validates
// the strict JSON payload.
func (g *GeminiScripter) parseScript(item domain.NewsItem, text string) (domain.ScriptedItem, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var payload scriptPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("malformed script json: %w", err))
	}

	segments := make([]domain.Segment, 0, len(payload.Segments))
	var scriptText []string
	for i, seg := range payload.Segments {
		line := strings.TrimSpace(seg.Script)
		if line == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Index:            i,
			Text:             line,
			Keywords:         seg.Keywords,
			EstimatedSeconds: float64(len(strings.Fields(line))) / g.wordsPerSecond,
		})
		scriptText = append(scriptText, line)
	}

	if len(segments) == 0 {
		return domain.ScriptedItem{}, domain.PermanentStage(stageName, fmt.Errorf("script has no segments"))
	}

	return domain.ScriptedItem{
		NewsItem:   item,
		Headline:   strings.TrimSpace(payload.Headline),
		ScriptText: strings.Join(scriptText, "\n"),
		Segments:   segments,
	}, nil
}

func buildPrompt(item domain.NewsItem, persona domain.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: you are the lead scriptwriter for %q, a short-form video news channel.\n", persona.Name)
	fmt.Fprintf(&b, "Tone: %s. Pacing: %s.\n\n", persona.Tone, persona.Pacing)
	b.WriteString("Rewrite the news below into a narrated script of 4-6 short segments.\n")
	b.WriteString("Each segment is one spoken beat plus 2-4 stock-footage keywords.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "Context: %s\n\n", item.Body)
	b.WriteString("Respond with ONLY valid JSON, no markdown fences:\n")
	b.WriteString(`{"headline": "...", "segments": [{"script": "...", "keywords": ["...", "..."]}]}`)
	return b.String()
}
