package telegram

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
)

func TestFormatSummary(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	summary := domain.RunSummary{
		RunID:      "ab12cd34",
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Fetched:    5,
		Succeeded:  3,
		Failed:     1,
		Skipped:    1,
		Items: []domain.ItemOutcome{
			{Fingerprint: "f1", Title: "Quake hits coast", Kind: domain.OutcomeSucceeded},
			{Fingerprint: "f2", Title: "Markets rally", Kind: domain.OutcomeFailed, Stage: "scripted", Reason: "empty-script: scripter returned no usable segments"},
			{Fingerprint: "f3", Title: "Old story", Kind: domain.OutcomeSkipped},
		},
	}

	msg := formatSummary(summary)

	if !strings.Contains(msg, "ab12cd34") {
		t.Fatalf("run id missing: %q", msg)
	}
	if !strings.Contains(msg, "fetched 5 | done 3 | failed 1 | skipped 1") {
		t.Fatalf("counters missing: %q", msg)
	}
	if !strings.Contains(msg, "Markets rally") || !strings.Contains(msg, "scripted") {
		t.Fatalf("failed item details missing: %q", msg)
	}
	if strings.Contains(msg, "Old story") {
		t.Fatalf("skipped items should not be listed: %q", msg)
	}
}

func TestPublishSummaryMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	if err := n.PublishSummary(context.Background(), domain.RunSummary{}); err == nil {
		t.Fatal("expected error when token is missing")
	}
}
