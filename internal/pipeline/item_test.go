package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/assemble"
	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/retry"
)

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]domain.LedgerEntry
	failOn  string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[string]domain.LedgerEntry{}}
}

func (l *fakeLedger) Has(_ context.Context, fp string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[fp]
	return ok, nil
}

func (l *fakeLedger) Get(_ context.Context, fp string) (domain.LedgerEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[fp]
	return entry, ok, nil
}

func (l *fakeLedger) Record(_ context.Context, entry domain.LedgerEntry) error {
	if l.failOn != "" && string(entry.Status) == l.failOn {
		return &domain.StorageError{Op: "record", Err: errors.New("disk gone")}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.Fingerprint] = entry
	return nil
}

type fakeScripter struct {
	calls     int
	failTimes int
	failWith  error
	segments  []domain.Segment
}

func (s *fakeScripter) Generate(_ context.Context, item domain.NewsItem, _ domain.Persona) (domain.ScriptedItem, error) {
	s.calls++
	if s.failWith != nil && (s.failTimes == 0 || s.calls <= s.failTimes) {
		return domain.ScriptedItem{}, s.failWith
	}
	segments := s.segments
	if segments == nil {
		segments = []domain.Segment{
			{Index: 0, Text: "first beat", EstimatedSeconds: 20, Keywords: []string{"city"}},
			{Index: 1, Text: "second beat", EstimatedSeconds: 25, Keywords: []string{"crowd"}},
		}
	}
	return domain.ScriptedItem{
		NewsItem:   item,
		Headline:   "HEADLINE",
		ScriptText: "first beat second beat",
		Segments:   segments,
	}, nil
}

type fakeSynth struct {
	calls    int
	duration float64
}

func (s *fakeSynth) Synthesize(_ context.Context, item domain.ScriptedItem) (domain.NarratedItem, error) {
	s.calls++
	dur := s.duration
	if dur == 0 {
		dur = item.EstimatedSeconds()
	}
	return domain.NarratedItem{
		ScriptedItem: item,
		Audio:        domain.AudioTrack{Data: []byte("mp3"), Format: "mp3", DurationSeconds: dur},
	}, nil
}

type fakeVisuals struct {
	calls int
	err   error
}

func (v *fakeVisuals) Match(_ context.Context, seg domain.Segment) (domain.ClipReference, error) {
	v.calls++
	if v.err != nil {
		return domain.ClipReference{}, v.err
	}
	return domain.ClipReference{
		ID:               fmt.Sprintf("clip-%d", seg.Index),
		URL:              "https://stock.example/clip.mp4",
		AvailableSeconds: 60,
	}, nil
}

type fakeRenderer struct{ calls int }

func (r *fakeRenderer) Render(_ context.Context, item domain.NarratedItem, _ []domain.ClipWindow) (string, error) {
	r.calls++
	return "out/" + item.Fingerprint + ".mp4", nil
}

type fixture struct {
	ledger   *fakeLedger
	scripter *fakeScripter
	synth    *fakeSynth
	visuals  *fakeVisuals
	renderer *fakeRenderer
	pipeline *ItemPipeline
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		ledger:   newFakeLedger(),
		scripter: &fakeScripter{},
		synth:    &fakeSynth{},
		visuals:  &fakeVisuals{},
		renderer: &fakeRenderer{},
	}
	noSleep := retry.WithSleep(func(context.Context, time.Duration) error { return nil })
	f.pipeline = New(Deps{
		Scripter:    f.scripter,
		Synthesizer: f.synth,
		Visuals:     f.visuals,
		Assembler:   assemble.New(f.renderer, 0.5, nil),
		Ledger:      f.ledger,
		Policy:      retry.New(3, noSleep),
		Persona:     domain.Persona{Name: "Logic Vault"},
	}, opts)
	return f
}

func newsItem(fp string) domain.NewsItem {
	return domain.NewsItem{Fingerprint: fp, SourceID: "src", Title: "Some Headline"}
}

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeSucceeded {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.ArtifactRef != "out/fp1.mp4" {
		t.Fatalf("unexpected artifact ref %s", outcome.ArtifactRef)
	}

	entry, ok, _ := f.ledger.Get(context.Background(), "fp1")
	if !ok || entry.Status != domain.StatusSucceeded {
		t.Fatalf("expected succeeded ledger entry, got %+v", entry)
	}
	if entry.ArtifactRef != "out/fp1.mp4" {
		t.Fatalf("ledger must carry artifact ref, got %s", entry.ArtifactRef)
	}
	if entry.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", entry.AttemptCount)
	}
}

func TestProcessSkipsSucceededFingerprint(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	ctx := context.Background()
	_ = f.ledger.Record(ctx, domain.LedgerEntry{
		Fingerprint:  "fp1",
		Status:       domain.StatusSucceeded,
		AttemptCount: 1,
		ArtifactRef:  "out/previous.mp4",
	})

	outcome, err := f.pipeline.Process(ctx, newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeSkipped {
		t.Fatalf("expected skip, got %+v", outcome)
	}
	if outcome.ArtifactRef != "out/previous.mp4" {
		t.Fatalf("skip must return the prior artifact ref, got %s", outcome.ArtifactRef)
	}
	if f.scripter.calls != 0 || f.synth.calls != 0 || f.visuals.calls != 0 {
		t.Fatalf("no stage may run for an already-processed item")
	}
}

func TestProcessSkipsItemAtAttemptThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{MaxItemAttempts: 3})
	ctx := context.Background()
	_ = f.ledger.Record(ctx, domain.LedgerEntry{
		Fingerprint:  "fp1",
		Status:       domain.StatusFailed,
		Stage:        string(StateScripted),
		Reason:       "bad output",
		AttemptCount: 3,
	})

	outcome, err := f.pipeline.Process(ctx, newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeSkipped {
		t.Fatalf("expected skip at threshold, got %+v", outcome)
	}
	if f.scripter.calls != 0 {
		t.Fatalf("exhausted item must not be reprocessed")
	}
}

func TestProcessRetriesPendingBelowThreshold(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{MaxItemAttempts: 3})
	ctx := context.Background()
	_ = f.ledger.Record(ctx, domain.LedgerEntry{
		Fingerprint:  "fp1",
		Status:       domain.StatusPending,
		AttemptCount: 1,
	})

	outcome, err := f.pipeline.Process(ctx, newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeSucceeded {
		t.Fatalf("expected retried item to succeed, got %+v", outcome)
	}
	if outcome.Attempts != 2 {
		t.Fatalf("expected attempt count 2, got %d", outcome.Attempts)
	}
}

func TestProcessTransientFailuresRecoverWithinBudget(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	f.scripter.failWith = domain.TransientStage(string(StateScripted), errors.New("rate limited"))
	f.scripter.failTimes = 2 // third attempt succeeds

	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeSucceeded {
		t.Fatalf("expected recovery, got %+v", outcome)
	}
	if f.scripter.calls != 3 {
		t.Fatalf("expected 3 generate calls, got %d", f.scripter.calls)
	}
}

func TestProcessTransientExhaustionFailsItem(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	f.scripter.failWith = domain.TransientStage(string(StateScripted), errors.New("timeout"))

	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeFailed {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.Stage != string(StateScripted) {
		t.Fatalf("expected failure at scripted, got %s", outcome.Stage)
	}
	if f.scripter.calls != 3 {
		t.Fatalf("expected all 3 attempts used, got %d", f.scripter.calls)
	}
	if !strings.Contains(outcome.Reason, "3 attempts") {
		t.Fatalf("reason should reflect all tries, got %q", outcome.Reason)
	}
	if f.synth.calls != 0 {
		t.Fatalf("synthesizer must not run after scripter failed")
	}

	entry, _, _ := f.ledger.Get(context.Background(), "fp1")
	if entry.Status != domain.StatusFailed || entry.Stage != string(StateScripted) {
		t.Fatalf("ledger must record the failing stage, got %+v", entry)
	}
}

func TestProcessPermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	f.scripter.failWith = domain.PermanentStage(string(StateScripted), errors.New("invalid auth"))

	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeFailed {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if f.scripter.calls != 1 {
		t.Fatalf("permanent failure must not be retried, got %d calls", f.scripter.calls)
	}
	if f.synth.calls != 0 {
		t.Fatalf("synthesizer must not run after a permanent scripter failure")
	}
}

func TestProcessRejectsScriptOutsideTargetRange(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{TargetMinSeconds: 30, TargetMaxSeconds: 90})
	f.scripter.segments = []domain.Segment{{Index: 0, Text: "too short", EstimatedSeconds: 10}}

	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeFailed {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.Stage != string(StateScripted) {
		t.Fatalf("expected failure at scripted, got %s", outcome.Stage)
	}
	if !strings.Contains(outcome.Reason, reasonDurationRange) {
		t.Fatalf("expected duration-out-of-range reason, got %q", outcome.Reason)
	}
	if f.synth.calls != 0 {
		t.Fatalf("synthesizer must not run when the script contract is violated")
	}
}

func TestProcessFillsMissingSegmentEstimates(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{TargetMinSeconds: 30, TargetMaxSeconds: 90, WordsPerSecond: 2})
	// 80 words at 2 wps -> 40s estimate, inside the target range.
	words := strings.Repeat("word ", 80)
	f.scripter.segments = []domain.Segment{{Index: 0, Text: strings.TrimSpace(words)}}

	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeSucceeded {
		t.Fatalf("expected success with derived estimate, got %+v", outcome)
	}
}

func TestProcessNoMatchFoundFailsVisualStage(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	f.visuals.err = domain.PermanentStage(string(StateVisualized), errors.New("no match found"))

	outcome, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeFailed {
		t.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.Stage != string(StateVisualized) {
		t.Fatalf("expected failure at visualized, got %s", outcome.Stage)
	}
	if f.renderer.calls != 0 {
		t.Fatalf("renderer must not run without a full clip set")
	}
}

func TestProcessStorageFailureIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(Options{})
	f.ledger.failOn = string(domain.StatusPending)

	_, err := f.pipeline.Process(context.Background(), newsItem("fp1"))
	if !domain.IsStorageError(err) {
		t.Fatalf("expected storage error to abort, got %v", err)
	}
	if f.scripter.calls != 0 {
		t.Fatalf("no stage may run without a ledger write")
	}
}
