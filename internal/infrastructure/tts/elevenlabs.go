// Package tts implements the Synthesizer port against the ElevenLabs API.
package tts

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

const stageName = "narrated"

// DurationProber measures the playable length of an audio payload, typically
// backed by ffprobe.
type DurationProber interface {
	ProbeAudio(ctx context.Context, data []byte) (float64, error)
}

// ElevenLabsSynthesizer renders narration audio through the text-to-speech
// endpoint and measures the produced track.
type ElevenLabsSynthesizer struct {
	endpoint   string
	voiceID    string
	modelID    string
	apiKey     string
	prober     DurationProber
	httpClient *http.Client
}

var _ ports.Synthesizer = (*ElevenLabsSynthesizer)(nil)

// NewElevenLabs builds a synthesizer from configuration.
func NewElevenLabs(cfg config.TTSConfig, prober DurationProber) *ElevenLabsSynthesizer {
	return &ElevenLabsSynthesizer{
		endpoint:   cfg.Endpoint,
		voiceID:    cfg.VoiceID,
		modelID:    cfg.ModelID,
		apiKey:     cfg.APIKey,
		prober:     prober,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings map[string]any `json:"voice_settings"`
}

// Synthesize narrates the full script text as one track.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, item domain.ScriptedItem) (domain.NarratedItem, error) {
	if s.apiKey == "" || s.endpoint == "" || s.voiceID == "" {
		return domain.NarratedItem{}, domain.PermanentStage(stageName, fmt.Errorf("tts client misconfigured"))
	}

	body, err := json.Marshal(synthesisRequest{
		Text:    cleanNarration(item.ScriptText),
		ModelID: s.modelID,
		VoiceSettings: map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return domain.NarratedItem{}, domain.PermanentStage(stageName, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", strings.TrimSuffix(s.endpoint, "/"), s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.NarratedItem{}, domain.PermanentStage(stageName, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.NarratedItem{}, domain.TransientStage(stageName, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return domain.NarratedItem{}, domain.TransientStage(stageName, fmt.Errorf("elevenlabs returned %s", resp.Status))
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NarratedItem{}, domain.PermanentStage(stageName,
			fmt.Errorf("elevenlabs returned %s: %s", resp.Status, strings.TrimSpace(string(payload))))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NarratedItem{}, domain.TransientStage(stageName, fmt.Errorf("read audio: %w", err))
	}
	if len(audio) < 100 {
		return domain.NarratedItem{}, domain.PermanentStage(stageName, fmt.Errorf("audio payload is empty"))
	}

	duration := item.EstimatedSeconds()
	if s.prober != nil {
		measured, probeErr := s.prober.ProbeAudio(ctx, audio)
		if probeErr != nil {
			return domain.NarratedItem{}, domain.PermanentStage(stageName, fmt.Errorf("measure audio: %w", probeErr))
		}
		duration = measured
	}

	return domain.NarratedItem{
		ScriptedItem: item,
		Audio: domain.AudioTrack{
			Data:            audio,
			Format:          "mp3",
			DurationSeconds: duration,
		},
	}, nil
}

// cleanNarration strips speaking directions that would otherwise be read aloud.
func cleanNarration(text string) string {
	text = strings.ReplaceAll(text, "[pause]", "...")
	text = strings.ReplaceAll(text, "[URGENT]", "")
	return strings.TrimSpace(text)
}
