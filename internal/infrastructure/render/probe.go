package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// FFprobeDuration measures audio duration with ffprobe. The measured value is
// authoritative for timeline allocation; estimates are only a fallback.
type FFprobeDuration struct{}

// ProbeAudio writes the payload to a temp file and asks ffprobe for the
// container duration in seconds.
func (FFprobeDuration) ProbeAudio(ctx context.Context, data []byte) (float64, error) {
	f, err := os.CreateTemp("", "newsauto-probe-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("create temp audio: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, fmt.Errorf("write temp audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close temp audio: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		f.Name(),
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("ffprobe reported non-positive duration %f", seconds)
	}
	return seconds, nil
}
