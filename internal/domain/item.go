package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// NewsItem is a raw article fetched from a news provider. Immutable once fetched.
type NewsItem struct {
	Fingerprint string
	SourceID    string
	Title       string
	Body        string
	URL         string
	PublishedAt time.Time
}

// Segment is one beat of a generated script with its spoken-duration estimate.
type Segment struct {
	Index            int
	Text             string
	Keywords         []string
	EstimatedSeconds float64
}

// ScriptedItem is a NewsItem rewritten into a persona-voiced script.
type ScriptedItem struct {
	NewsItem
	Headline   string
	ScriptText string
	Segments   []Segment
}

// EstimatedSeconds sums the per-segment spoken-duration estimates.
func (s ScriptedItem) EstimatedSeconds() float64 {
	var total float64
	for _, seg := range s.Segments {
		total += seg.EstimatedSeconds
	}
	return total
}

// AudioTrack carries synthesized narration audio.
type AudioTrack struct {
	Data            []byte
	Format          string
	DurationSeconds float64
}

// NarratedItem is a ScriptedItem with its narration rendered to audio.
type NarratedItem struct {
	ScriptedItem
	Audio AudioTrack
}

// ClipReference points at a stock clip matched to one script segment.
type ClipReference struct {
	ID               string
	URL              string
	SegmentIndex     int
	AvailableSeconds float64
}

// VisualizedItem is a NarratedItem with one matched clip per segment.
type VisualizedItem struct {
	NarratedItem
	Clips []ClipReference
}

// ClipWindow places a matched clip on the assembled timeline. A window longer
// than the clip's available length is filled by looping the clip from offset 0.
type ClipWindow struct {
	Clip        ClipReference
	StartOffset float64
	Seconds     float64
	Loops       int
}

// Artifact is the final rendered video for one news item. Terminal and read-only.
type Artifact struct {
	ID            string
	Fingerprint   string
	Path          string
	TotalDuration float64
	CreatedAt     time.Time
}

// Persona governs the tone and voice of generated scripts.
type Persona struct {
	Name   string
	Tone   string
	Pacing string
}

// viral prefixes that providers slap onto otherwise identical headlines.
var titlePrefixes = []string{"breaking:", "update:", "just in:", "exclusive:"}

// Fingerprint derives the stable dedup key for a news item from its source
// and normalized title. The same logical story must hash identically across runs.
func Fingerprint(sourceID, title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	for _, prefix := range titlePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			normalized = strings.TrimSpace(strings.TrimPrefix(normalized, prefix))
		}
	}
	normalized = strings.Join(strings.Fields(normalized), " ")

	sum := md5.Sum([]byte(sourceID + "|" + normalized))
	return hex.EncodeToString(sum[:])
}
