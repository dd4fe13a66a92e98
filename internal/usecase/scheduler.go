package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

// Scheduler wires the periodic driver with the run orchestrator.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, orchestrator: orchestrator, logger: logger}
}

// Start registers the orchestrator with the provided scheduler driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.orchestrator.Run(ctx); err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger.UTC().Format(time.RFC3339), "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
