package tts

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Haik11kashiyani/news-auto/internal/config"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
)

type fixedProber struct {
	seconds float64
	err     error
}

func (f fixedProber) ProbeAudio(context.Context, []byte) (float64, error) {
	return f.seconds, f.err
}

func newTestSynth(endpoint string, prober DurationProber) *ElevenLabsSynthesizer {
	return NewElevenLabs(config.TTSConfig{
		Endpoint: endpoint,
		VoiceID:  "voice-1",
		ModelID:  "eleven_monolingual_v1",
		APIKey:   "test-key",
	}, prober)
}

func scriptedFixture() domain.ScriptedItem {
	return domain.ScriptedItem{
		NewsItem:   domain.NewsItem{Fingerprint: "fp-1", Title: "Quake hits coast"},
		ScriptText: "Breaking now. [pause] A strong quake struck the coast.",
		Segments:   []domain.Segment{{Index: 0, Text: "Breaking now.", EstimatedSeconds: 3}},
	}
}

func TestSynthesizeUsesProbedDuration(t *testing.T) {
	t.Parallel()

	audio := bytes.Repeat([]byte{0xFF}, 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if !strings.HasSuffix(r.URL.Path, "/v1/text-to-speech/voice-1") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer srv.Close()

	narrated, err := newTestSynth(srv.URL, fixedProber{seconds: 42.7}).Synthesize(context.Background(), scriptedFixture())
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}

	if narrated.Audio.DurationSeconds != 42.7 {
		t.Fatalf("expected probed duration, got %f", narrated.Audio.DurationSeconds)
	}
	if narrated.Audio.Format != "mp3" {
		t.Fatalf("unexpected format: %s", narrated.Audio.Format)
	}
	if len(narrated.Audio.Data) != len(audio) {
		t.Fatalf("audio payload truncated: %d bytes", len(narrated.Audio.Data))
	}
}

func TestSynthesizeFallsBackToEstimate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte{0xFF}, 512))
	}))
	defer srv.Close()

	narrated, err := newTestSynth(srv.URL, nil).Synthesize(context.Background(), scriptedFixture())
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if narrated.Audio.DurationSeconds != 3 {
		t.Fatalf("expected estimate fallback of 3s, got %f", narrated.Audio.DurationSeconds)
	}
}

func TestSynthesizeRateLimitIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestSynth(srv.URL, nil).Synthesize(context.Background(), scriptedFixture())
	if err == nil {
		t.Fatal("expected error on 429")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestSynthesizeAuthFailureIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestSynth(srv.URL, nil).Synthesize(context.Background(), scriptedFixture())
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if domain.IsTransient(err) {
		t.Fatalf("expected permanent classification, got %v", err)
	}
}

func TestCleanNarrationStripsDirections(t *testing.T) {
	t.Parallel()

	got := cleanNarration("  [URGENT] Breaking. [pause] More soon.  ")
	if strings.Contains(got, "[URGENT]") || strings.Contains(got, "[pause]") {
		t.Fatalf("directions not stripped: %q", got)
	}
	if !strings.Contains(got, "...") {
		t.Fatalf("pause not converted: %q", got)
	}
}
