// Package pipeline drives one news item through its stages: script,
// synthesize, visualize, assemble. Idempotency comes from the ledger,
// resilience from the retry policy; stages themselves stay thin.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/assemble"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
	"github.com/Haik11kashiyani/news-auto/internal/retry"
)

// State names one position of an item inside the pipeline.
type State string

const (
	StateFetched    State = "fetched"
	StateScripted   State = "scripted"
	StateNarrated   State = "narrated"
	StateVisualized State = "visualized"
	StateAssembled  State = "assembled"
)

// next maps each state to its successor on the success path. A failure at any
// state absorbs the item; no stage ever runs out of order.
var next = map[State]State{
	StateFetched:    StateScripted,
	StateScripted:   StateNarrated,
	StateNarrated:   StateVisualized,
	StateVisualized: StateAssembled,
}

const (
	reasonEmptyScript   = "empty-script"
	reasonDurationRange = "duration-out-of-range"
)

// Options tunes contract enforcement and the per-item retry-run threshold.
type Options struct {
	TargetMinSeconds float64
	TargetMaxSeconds float64
	WordsPerSecond   float64
	MaxItemAttempts  int
}

func (o Options) withDefaults() Options {
	if o.TargetMinSeconds <= 0 {
		o.TargetMinSeconds = 30
	}
	if o.TargetMaxSeconds <= 0 {
		o.TargetMaxSeconds = 90
	}
	if o.WordsPerSecond <= 0 {
		o.WordsPerSecond = 2.2
	}
	if o.MaxItemAttempts <= 0 {
		o.MaxItemAttempts = 3
	}
	return o
}

// Deps wires the stage clients and shared components into an item pipeline.
type Deps struct {
	Scripter    ports.Scripter
	Synthesizer ports.Synthesizer
	Visuals     ports.VisualSource
	Assembler   *assemble.Assembler
	Ledger      ports.Ledger
	Policy      retry.Policy
	Persona     domain.Persona
	Logger      *slog.Logger
}

// ItemPipeline processes independent news items; one instance is safe for
// concurrent Process calls since all shared state lives behind the ledger.
type ItemPipeline struct {
	scripter    ports.Scripter
	synthesizer ports.Synthesizer
	visuals     ports.VisualSource
	assembler   *assemble.Assembler
	ledger      ports.Ledger
	policy      retry.Policy
	persona     domain.Persona
	opts        Options
	logger      *slog.Logger
	now         func() time.Time
}

// New constructs an item pipeline.
func New(deps Deps, opts Options) *ItemPipeline {
	return &ItemPipeline{
		scripter:    deps.Scripter,
		synthesizer: deps.Synthesizer,
		visuals:     deps.Visuals,
		assembler:   deps.Assembler,
		ledger:      deps.Ledger,
		policy:      deps.Policy,
		persona:     deps.Persona,
		opts:        opts.withDefaults(),
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// classifyStage feeds the adapters' failure classification to the retry policy.
func classifyStage(err error) retry.Class {
	if domain.IsTransient(err) {
		return retry.Transient
	}
	return retry.Permanent
}

// Process drives one item to a terminal state and records the outcome in the
// ledger. The returned error is non-nil only for ledger storage failures,
// which abort the whole run; every stage failure is absorbed into the outcome.
func (p *ItemPipeline) Process(ctx context.Context, item domain.NewsItem) (domain.ItemOutcome, error) {
	prev, known, err := p.ledger.Get(ctx, item.Fingerprint)
	if err != nil {
		return domain.ItemOutcome{}, err
	}

	if known {
		if prev.Status == domain.StatusSucceeded {
			p.debug("skip: already processed", "fingerprint", item.Fingerprint, "artifact", prev.ArtifactRef)
			return domain.ItemOutcome{
				Fingerprint: item.Fingerprint,
				Title:       item.Title,
				Kind:        domain.OutcomeSkipped,
				Reason:      "already processed",
				ArtifactRef: prev.ArtifactRef,
			}, nil
		}
		if prev.AttemptCount >= p.opts.MaxItemAttempts {
			p.debug("skip: attempts exhausted", "fingerprint", item.Fingerprint, "attempts", prev.AttemptCount)
			return domain.ItemOutcome{
				Fingerprint: item.Fingerprint,
				Title:       item.Title,
				Kind:        domain.OutcomeSkipped,
				Stage:       prev.Stage,
				Reason:      "attempts exhausted: " + prev.Reason,
				Attempts:    prev.AttemptCount,
			}, nil
		}
		// Pending or retryable failure: restart from scratch. Stages are
		// cheap enough that partial-stage resume is not worth its complexity.
	}

	attempt := prev.AttemptCount + 1
	if err := p.ledger.Record(ctx, domain.LedgerEntry{
		Fingerprint:   item.Fingerprint,
		Status:        domain.StatusPending,
		LastAttemptAt: p.now().UTC(),
		AttemptCount:  attempt,
	}); err != nil {
		return domain.ItemOutcome{}, err
	}

	var (
		scripted   domain.ScriptedItem
		narrated   domain.NarratedItem
		visualized domain.VisualizedItem
		artifact   domain.Artifact
	)

	state := StateFetched
	for state != StateAssembled {
		target := next[state]
		var stageErr error

		switch state {
		case StateFetched:
			scripted, stageErr = p.script(ctx, item)
		case StateScripted:
			narrated, stageErr = p.synthesize(ctx, scripted)
		case StateNarrated:
			visualized, stageErr = p.visualize(ctx, narrated)
		case StateVisualized:
			artifact, stageErr = p.assembler.Assemble(ctx, visualized)
		}

		if stageErr != nil {
			return p.fail(ctx, item, target, attempt, stageErr)
		}
		state = target
	}

	if err := p.ledger.Record(ctx, domain.LedgerEntry{
		Fingerprint:   item.Fingerprint,
		Status:        domain.StatusSucceeded,
		LastAttemptAt: p.now().UTC(),
		AttemptCount:  attempt,
		ArtifactRef:   artifact.Path,
	}); err != nil {
		return domain.ItemOutcome{}, err
	}

	p.debug("item assembled", "fingerprint", item.Fingerprint, "artifact", artifact.Path, "duration", artifact.TotalDuration)
	return domain.ItemOutcome{
		Fingerprint: item.Fingerprint,
		Title:       item.Title,
		Kind:        domain.OutcomeSucceeded,
		ArtifactRef: artifact.Path,
		Attempts:    attempt,
	}, nil
}

// fail records the failed attempt and absorbs the error into the outcome.
func (p *ItemPipeline) fail(ctx context.Context, item domain.NewsItem, stage State, attempt int, stageErr error) (domain.ItemOutcome, error) {
	p.debug("stage failed", "fingerprint", item.Fingerprint, "stage", string(stage), "error", stageErr)

	if err := p.ledger.Record(ctx, domain.LedgerEntry{
		Fingerprint:   item.Fingerprint,
		Status:        domain.StatusFailed,
		Stage:         string(stage),
		Reason:        stageErr.Error(),
		LastAttemptAt: p.now().UTC(),
		AttemptCount:  attempt,
	}); err != nil {
		return domain.ItemOutcome{}, err
	}

	return domain.ItemOutcome{
		Fingerprint: item.Fingerprint,
		Title:       item.Title,
		Kind:        domain.OutcomeFailed,
		Stage:       string(stage),
		Reason:      stageErr.Error(),
		Attempts:    attempt,
	}, nil
}

// script generates the persona-voiced script and enforces the output
// contract: non-empty segments, duration estimates present, total estimate
// inside the target range. Violations are permanent for this item.
func (p *ItemPipeline) script(ctx context.Context, item domain.NewsItem) (domain.ScriptedItem, error) {
	var scripted domain.ScriptedItem
	err := p.policy.Execute(ctx, func(ctx context.Context) error {
		var genErr error
		scripted, genErr = p.scripter.Generate(ctx, item, p.persona)
		return genErr
	}, classifyStage)
	if err != nil {
		return domain.ScriptedItem{}, err
	}

	if len(scripted.Segments) == 0 || strings.TrimSpace(scripted.ScriptText) == "" {
		return domain.ScriptedItem{}, domain.PermanentStage(string(StateScripted),
			fmt.Errorf("%s: scripter returned no usable segments", reasonEmptyScript))
	}

	for i := range scripted.Segments {
		seg := &scripted.Segments[i]
		if seg.EstimatedSeconds <= 0 {
			seg.EstimatedSeconds = float64(len(strings.Fields(seg.Text))) / p.opts.WordsPerSecond
		}
	}

	total := scripted.EstimatedSeconds()
	if total < p.opts.TargetMinSeconds || total > p.opts.TargetMaxSeconds {
		return domain.ScriptedItem{}, domain.PermanentStage(string(StateScripted),
			fmt.Errorf("%s: estimated %.1fs, target %.0f-%.0fs",
				reasonDurationRange, total, p.opts.TargetMinSeconds, p.opts.TargetMaxSeconds))
	}

	return scripted, nil
}

func (p *ItemPipeline) synthesize(ctx context.Context, scripted domain.ScriptedItem) (domain.NarratedItem, error) {
	var narrated domain.NarratedItem
	err := p.policy.Execute(ctx, func(ctx context.Context) error {
		var synthErr error
		narrated, synthErr = p.synthesizer.Synthesize(ctx, scripted)
		return synthErr
	}, classifyStage)
	if err != nil {
		return domain.NarratedItem{}, err
	}
	if narrated.Audio.DurationSeconds <= 0 {
		return domain.NarratedItem{}, domain.PermanentStage(string(StateNarrated),
			fmt.Errorf("synthesizer returned empty audio track"))
	}
	return narrated, nil
}

// visualize matches one clip per script segment through the retry policy.
// A missing match is permanent for the whole item; the assembler must not
// receive a partially covered timeline.
func (p *ItemPipeline) visualize(ctx context.Context, narrated domain.NarratedItem) (domain.VisualizedItem, error) {
	clips := make([]domain.ClipReference, 0, len(narrated.Segments))
	for _, seg := range narrated.Segments {
		var clip domain.ClipReference
		err := p.policy.Execute(ctx, func(ctx context.Context) error {
			var matchErr error
			clip, matchErr = p.visuals.Match(ctx, seg)
			return matchErr
		}, classifyStage)
		if err != nil {
			return domain.VisualizedItem{}, err
		}
		clip.SegmentIndex = seg.Index
		clips = append(clips, clip)
	}
	return domain.VisualizedItem{NarratedItem: narrated, Clips: clips}, nil
}

func (p *ItemPipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
