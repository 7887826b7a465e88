package analytics

import (
	"context"
	"log"
	"time"

	"reviewbot/types"
)

// SummarySource looks up the most recent aggregation record for a
// (search query, product) pair. Implemented by *Store.
type SummarySource interface {
	LatestProductSummary(ctx context.Context, searchQuery, productName string) (*types.ProductSummaryRecord, error)
}

// Guard suppresses redundant aggregation writes. A strictly larger
// result always supersedes the existing one; an equal-or-smaller result
// only passes once the existing record has aged past the staleness
// threshold. The check is read-then-write and therefore best effort:
// concurrent evaluations of one group can still both write.
type Guard struct {
	Source    SummarySource
	Staleness time.Duration
	Now       func() time.Time
}

// NewGuard creates a Guard with the given staleness threshold.
func NewGuard(source SummarySource, staleness time.Duration) *Guard {
	return &Guard{Source: source, Staleness: staleness, Now: time.Now}
}

// ShouldWrite decides whether a candidate with the given review count
// deserves a new record. Lookup errors allow the write: failing open
// matches the at-least-once posture everywhere else.
func (g *Guard) ShouldWrite(ctx context.Context, searchQuery, productName string, candidateReviewCount int) bool {
	existing, err := g.Source.LatestProductSummary(ctx, searchQuery, productName)
	if err != nil {
		log.Printf("dedup: lookup for %q/%q failed, allowing write: %v", searchQuery, productName, err)
		return true
	}
	if existing == nil {
		return true
	}

	if candidateReviewCount > existing.TotalReviews {
		return true
	}

	age := g.Now().Sub(existing.ProcessedAt)
	if age > g.Staleness {
		return true
	}

	log.Printf("dedup: suppressing write for %q/%q (existing reviews=%d age=%s)",
		searchQuery, productName, existing.TotalReviews, age.Round(time.Second))
	return false
}
