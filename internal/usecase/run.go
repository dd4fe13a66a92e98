// Package usecase hosts the run orchestration workflow: fetch a batch,
// deduplicate against the ledger, fan out item pipelines under a concurrency
// cap, and report a summary.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/pipeline"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

// OrchestratorDeps wires the driven adapters into the run orchestrator.
type OrchestratorDeps struct {
	Source   ports.NewsSource
	Ledger   ports.Ledger
	Pipeline *pipeline.ItemPipeline
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// OrchestratorOptions bounds one run.
type OrchestratorOptions struct {
	BatchSize       int
	ConcurrencyCap  int
	MaxItemAttempts int
}

func (o OrchestratorOptions) withDefaults() OrchestratorOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 10
	}
	if o.ConcurrencyCap <= 0 {
		o.ConcurrencyCap = 4
	}
	if o.MaxItemAttempts <= 0 {
		o.MaxItemAttempts = 3
	}
	return o
}

// Orchestrator executes one batch run end to end. Individual item failures
// never fail the run; only source or ledger unavailability is run-fatal.
type Orchestrator struct {
	source   ports.NewsSource
	ledger   ports.Ledger
	pipeline *pipeline.ItemPipeline
	notifier ports.Notifier
	opts     OrchestratorOptions
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator constructs the run orchestrator.
func NewOrchestrator(deps OrchestratorDeps, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		source:   deps.Source,
		ledger:   deps.Ledger,
		pipeline: deps.Pipeline,
		notifier: deps.Notifier,
		opts:     opts.withDefaults(),
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Run fetches a batch, filters settled fingerprints, processes the remainder
// through a bounded worker pool, and returns the summary.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     uuid.NewString()[:8],
		StartedAt: o.now().UTC(),
	}

	items, err := o.source.FetchBatch(ctx, o.opts.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("fetch batch: %w", err)
	}
	summary.Fetched = len(items)
	o.info("batch fetched", "run_id", summary.RunID, "items", len(items))

	pending, skipped, err := o.filter(ctx, items)
	if err != nil {
		return summary, err
	}
	summary.Items = append(summary.Items, skipped...)

	outcomes, err := o.fanOut(ctx, pending)
	summary.Items = append(summary.Items, outcomes...)

	sort.Slice(summary.Items, func(i, j int) bool {
		return summary.Items[i].Fingerprint < summary.Items[j].Fingerprint
	})
	for _, outcome := range summary.Items {
		switch outcome.Kind {
		case domain.OutcomeSucceeded:
			summary.Succeeded++
		case domain.OutcomeFailed:
			summary.Failed++
		case domain.OutcomeSkipped:
			summary.Skipped++
		}
	}
	summary.FinishedAt = o.now().UTC()

	if err != nil {
		return summary, err
	}

	o.info("run finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)

	if o.notifier != nil {
		if notifyErr := o.notifier.PublishSummary(ctx, summary); notifyErr != nil {
			o.info("summary notification failed", "run_id", summary.RunID, "error", notifyErr)
		}
	}

	return summary, nil
}

// filter drops fingerprints already settled in the ledger and deduplicates
// within the batch itself.
func (o *Orchestrator) filter(ctx context.Context, items []domain.NewsItem) ([]domain.NewsItem, []domain.ItemOutcome, error) {
	var (
		pending []domain.NewsItem
		skipped []domain.ItemOutcome
		seen    = map[string]struct{}{}
	)

	for _, item := range items {
		if _, dup := seen[item.Fingerprint]; dup {
			continue
		}
		seen[item.Fingerprint] = struct{}{}

		entry, known, err := o.ledger.Get(ctx, item.Fingerprint)
		if err != nil {
			return nil, nil, err
		}
		if !known {
			pending = append(pending, item)
			continue
		}

		switch {
		case entry.Status == domain.StatusSucceeded:
			skipped = append(skipped, domain.ItemOutcome{
				Fingerprint: item.Fingerprint,
				Title:       item.Title,
				Kind:        domain.OutcomeSkipped,
				Reason:      "already processed",
				ArtifactRef: entry.ArtifactRef,
			})
		case entry.AttemptCount >= o.opts.MaxItemAttempts:
			skipped = append(skipped, domain.ItemOutcome{
				Fingerprint: item.Fingerprint,
				Title:       item.Title,
				Kind:        domain.OutcomeSkipped,
				Stage:       entry.Stage,
				Reason:      "attempts exhausted: " + entry.Reason,
				Attempts:    entry.AttemptCount,
			})
		default:
			pending = append(pending, item)
		}
	}

	return pending, skipped, nil
}

// fanOut processes items through a bounded worker pool. A storage failure
// stops scheduling new items but lets in-flight workers drain first.
func (o *Orchestrator) fanOut(ctx context.Context, items []domain.NewsItem) ([]domain.ItemOutcome, error) {
	if len(items) == 0 {
		return nil, nil
	}

	workers := o.opts.ConcurrencyCap
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan domain.NewsItem)
	results := make(chan domain.ItemOutcome, len(items))
	fatals := make(chan error, workers)
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				outcome, err := o.pipeline.Process(workCtx, item)
				if err != nil {
					fatals <- err
					cancel()
					return
				}
				results <- outcome
			}
		}()
	}

	for _, item := range items {
		select {
		case jobs <- item:
		case <-workCtx.Done():
		}
		if workCtx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	close(fatals)

	outcomes := make([]domain.ItemOutcome, 0, len(items))
	for outcome := range results {
		outcomes = append(outcomes, outcome)
	}

	if fatal := <-fatals; fatal != nil {
		return outcomes, fmt.Errorf("run aborted: %w", fatal)
	}
	return outcomes, nil
}

func (o *Orchestrator) info(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Info(msg, args...)
	}
}
