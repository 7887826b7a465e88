package config

import "time"

// Completion policy defaults
const (
	// DefaultWaitWindow is how long a group may sit pending before the
	// partial-completion fallback is considered.
	DefaultWaitWindow = 5 * time.Minute

	// DefaultMinCompletionRate is the fraction of a group that must be
	// complete before a timed-out group is accepted as partial.
	DefaultMinCompletionRate = 0.5
)

// Aggregation defaults
const (
	// DefaultMinReviewsPerProduct is the smallest product group worth
	// synthesizing a summary for.
	DefaultMinReviewsPerProduct = 2

	// DefaultMaxPromptChars caps the assembled prompt size sent to the
	// generation model.
	DefaultMaxPromptChars = 12000

	// TranscriptExcerptChars is how much of each transcript goes into
	// the prompt; full transcripts are persisted separately.
	TranscriptExcerptChars = 1000
)

// Sweeper defaults
const (
	// DefaultSweepInterval is the cadence of the background sweep.
	DefaultSweepInterval = 30 * time.Second

	// SweepErrorBackoff is the longer sleep after a failed sweep iteration.
	SweepErrorBackoff = 60 * time.Second
)

// Dedup guard defaults
const (
	// DefaultStalenessThreshold is how old an existing summary must be
	// before an equal-sized refresh is allowed through.
	DefaultStalenessThreshold = time.Hour
)

// Generation defaults
const (
	// DefaultGenerationModel is the Cohere chat model used for product
	// summaries.
	DefaultGenerationModel = "command-r-08-2024"

	// DefaultGenerationMaxTokens bounds the synthesized summary length.
	DefaultGenerationMaxTokens = 1000

	// GenerationMaxAttempts is the retry ceiling for generation calls.
	GenerationMaxAttempts = 3

	// GenerationBaseBackoff seeds the exponential retry backoff.
	GenerationBaseBackoff = 2 * time.Second
)

// Object store layout
const (
	// VideoMetadataPrefix holds per-video catalog records.
	VideoMetadataPrefix = "processed/videos/"

	// TranscriptPrefix holds transcript artifacts.
	TranscriptPrefix = "transcripts/"

	// SummaryPrefix holds summary artifacts.
	SummaryPrefix = "summaries/"

	// ProductsPrefix holds aggregation outputs.
	ProductsPrefix = "products/"
)
