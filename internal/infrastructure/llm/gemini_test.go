package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
)

func newTestScripter(endpoint string) *GeminiScripter {
	return NewGeminiScripter(config.GeminiConfig{
		Endpoint: endpoint,
		Model:    "test-model",
		APIKey:   "test-key",
	}, 2.0)
}

func testItem() domain.NewsItem {
	return domain.NewsItem{
		Fingerprint: "fp-1",
		SourceID:    "bbc",
		Title:       "Quake hits coast",
		Body:        "A strong quake struck the coast this morning.",
	}
}

func TestParseScriptStripsMarkdownFences(t *testing.T) {
	t.Parallel()

	g := newTestScripter("http://unused")
	raw := "```json\n{\"headline\":\"QUAKE\",\"segments\":[{\"script\":\"Ten words in this line right here to test timing\",\"keywords\":[\"earthquake\",\"coast\"]}]}\n```"

	scripted, err := g.parseScript(testItem(), raw)
	if err != nil {
		t.Fatalf("parseScript returned error: %v", err)
	}

	if scripted.Headline != "QUAKE" {
		t.Fatalf("unexpected headline: %s", scripted.Headline)
	}
	if len(scripted.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(scripted.Segments))
	}
	// 10 words at 2 words/second.
	if got := scripted.Segments[0].EstimatedSeconds; got != 5.0 {
		t.Fatalf("expected 5s estimate, got %f", got)
	}
	if scripted.Segments[0].Keywords[0] != "earthquake" {
		t.Fatalf("unexpected keywords: %v", scripted.Segments[0].Keywords)
	}
}

func TestParseScriptSkipsBlankSegments(t *testing.T) {
	t.Parallel()

	g := newTestScripter("http://unused")
	raw := `{"headline":"H","segments":[{"script":"  "},{"script":"Real line"}]}`

	scripted, err := g.parseScript(testItem(), raw)
	if err != nil {
		t.Fatalf("parseScript returned error: %v", err)
	}
	if len(scripted.Segments) != 1 || scripted.Segments[0].Text != "Real line" {
		t.Fatalf("expected blank segment dropped, got %+v", scripted.Segments)
	}
}

func TestParseScriptMalformedIsPermanent(t *testing.T) {
	t.Parallel()

	g := newTestScripter("http://unused")
	_, err := g.parseScript(testItem(), "this is not json at all")
	if err == nil {
		t.Fatal("expected error on malformed payload")
	}
	if domain.IsTransient(err) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
}

func TestParseScriptEmptySegmentsIsPermanent(t *testing.T) {
	t.Parallel()

	g := newTestScripter("http://unused")
	_, err := g.parseScript(testItem(), `{"headline":"H","segments":[]}`)
	if err == nil {
		t.Fatal("expected error on empty segments")
	}
	if domain.IsTransient(err) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "test-model") {
			t.Errorf("expected model in path, got %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing key query param")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":
			"{\"headline\":\"QUAKE HITS\",\"segments\":[{\"script\":\"Breaking now on the coast\",\"keywords\":[\"earthquake\"]}]}"
		}]}}]}`))
	}))
	defer srv.Close()

	scripted, err := newTestScripter(srv.URL).Generate(context.Background(), testItem(), domain.Persona{Name: "Logic Vault"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if scripted.Headline != "QUAKE HITS" {
		t.Fatalf("unexpected headline: %s", scripted.Headline)
	}
	if scripted.ScriptText == "" {
		t.Fatal("expected aggregated script text")
	}
}

func TestGenerateRateLimitIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestScripter(srv.URL).Generate(context.Background(), testItem(), domain.Persona{})
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}
