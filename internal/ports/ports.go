package ports

import (
	"context"
	"time"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
)

// NewsSource pulls a bounded batch of fresh items from upstream providers.
type NewsSource interface {
	FetchBatch(ctx context.Context, maxItems int) ([]domain.NewsItem, error)
}

// Scripter rewrites a raw news item into a persona-voiced, segmented script.
type Scripter interface {
	Generate(ctx context.Context, item domain.NewsItem, persona domain.Persona) (domain.ScriptedItem, error)
}

// Synthesizer renders a script's narration to an audio track.
type Synthesizer interface {
	Synthesize(ctx context.Context, item domain.ScriptedItem) (domain.NarratedItem, error)
}

// VisualSource matches one script segment to a stock clip reference.
type VisualSource interface {
	Match(ctx context.Context, segment domain.Segment) (domain.ClipReference, error)
}

// Renderer turns an aligned timeline plus narration into a video file and
// returns its path.
type Renderer interface {
	Render(ctx context.Context, item domain.NarratedItem, windows []domain.ClipWindow) (string, error)
}

// Ledger is the durable dedup/state record keyed by fingerprint. Writes from
// concurrent pipelines must be serialized by the implementation.
type Ledger interface {
	Has(ctx context.Context, fingerprint string) (bool, error)
	Get(ctx context.Context, fingerprint string) (domain.LedgerEntry, bool, error)
	Record(ctx context.Context, entry domain.LedgerEntry) error
}

// Notifier publishes run summaries to an outbound channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary domain.RunSummary) error
}

// Scheduler controls when orchestrator runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
