// Package assemble aligns narration audio with matched stock clips into a
// single rendered timeline.
package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

// Assembler computes clip allocations against the narration track and hands
// the aligned timeline to a renderer. The audio duration is authoritative;
// clips are stretched by looping, never the narration.
type Assembler struct {
	renderer  ports.Renderer
	tolerance float64
	logger    *slog.Logger
	now       func() time.Time
}

// New builds an Assembler. tolerance is the maximum allowed deviation, in
// seconds, between the summed clip windows and the audio duration.
func New(renderer ports.Renderer, tolerance float64, logger *slog.Logger) *Assembler {
	if tolerance <= 0 {
		tolerance = 0.5
	}
	return &Assembler{
		renderer:  renderer,
		tolerance: tolerance,
		logger:    logger,
		now:       time.Now,
	}
}

// Assemble aligns the item's clips to its narration and renders the artifact.
// Misaligned input is a data-quality failure and is never retried.
func (a *Assembler) Assemble(ctx context.Context, item domain.VisualizedItem) (domain.Artifact, error) {
	windows, err := a.Timeline(item)
	if err != nil {
		return domain.Artifact{}, err
	}

	a.debug("timeline aligned",
		"fingerprint", item.Fingerprint,
		"windows", len(windows),
		"total", item.Audio.DurationSeconds)

	path, err := a.renderer.Render(ctx, item.NarratedItem, windows)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("render %s: %w", item.Fingerprint, err)
	}

	return domain.Artifact{
		ID:            uuid.NewString(),
		Fingerprint:   item.Fingerprint,
		Path:          path,
		TotalDuration: item.Audio.DurationSeconds,
		CreatedAt:     a.now().UTC(),
	}, nil
}

// Timeline allocates clip durations proportionally to each segment's share of
// the estimated total, loops clips shorter than their allocation, and absorbs
// rounding slack into the final window.
func (a *Assembler) Timeline(item domain.VisualizedItem) ([]domain.ClipWindow, error) {
	total := item.Audio.DurationSeconds
	if total <= 0 {
		return nil, &domain.TimingMismatchError{WantSeconds: total, GotSeconds: 0, Tolerance: a.tolerance}
	}
	if len(item.Clips) == 0 {
		return nil, &domain.TimingMismatchError{WantSeconds: total, GotSeconds: 0, Tolerance: a.tolerance}
	}

	estimates := make(map[int]float64, len(item.Segments))
	var estimated float64
	for _, seg := range item.Segments {
		estimates[seg.Index] = seg.EstimatedSeconds
		estimated += seg.EstimatedSeconds
	}

	clips := append([]domain.ClipReference(nil), item.Clips...)
	sort.Slice(clips, func(i, j int) bool { return clips[i].SegmentIndex < clips[j].SegmentIndex })

	windows := make([]domain.ClipWindow, 0, len(clips))
	var allocated float64
	for _, clip := range clips {
		share := total / float64(len(clips))
		if estimated > 0 {
			share = estimates[clip.SegmentIndex] / estimated * total
		}
		share = roundCentis(share)

		windows = append(windows, domain.ClipWindow{
			Clip:        clip,
			StartOffset: roundCentis(allocated),
			Seconds:     share,
			Loops:       loopsFor(share, clip.AvailableSeconds),
		})
		allocated += share
	}

	// One corrective pass: the final window absorbs the rounding remainder.
	if remainder := total - allocated; remainder != 0 {
		last := &windows[len(windows)-1]
		adjusted := roundCentis(last.Seconds + remainder)
		if adjusted <= 0 {
			return nil, &domain.TimingMismatchError{
				WantSeconds: total,
				GotSeconds:  roundCentis(allocated),
				Tolerance:   a.tolerance,
			}
		}
		last.Seconds = adjusted
		last.Loops = loopsFor(adjusted, last.Clip.AvailableSeconds)
		allocated = last.StartOffset + adjusted
	}

	if deviation := math.Abs(total - allocated); deviation > a.tolerance {
		return nil, &domain.TimingMismatchError{
			WantSeconds: total,
			GotSeconds:  roundCentis(allocated),
			Tolerance:   a.tolerance,
		}
	}

	return windows, nil
}

// loopsFor returns how many passes over the clip fill the window. Clips with
// unknown available length play once and are trimmed by the renderer.
func loopsFor(window, available float64) int {
	if available <= 0 || window <= available {
		return 1
	}
	return int(math.Ceil(window / available))
}

func roundCentis(v float64) float64 {
	return math.Round(v*100) / 100
}

func (a *Assembler) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
