// Package aggregate turns a ready search-query group into persisted
// product summaries: it partitions videos by derived product name,
// synthesizes one narrative per product, and writes the results to the
// object store and the analytical store.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"reviewbot/analytics"
	"reviewbot/catalog"
	"reviewbot/config"
	"reviewbot/types"
)

// ArtifactReader fetches artifact content; missing content is "".
type ArtifactReader interface {
	Transcript(ctx context.Context, videoID string) string
	Summary(ctx context.Context, videoID string) string
}

// ProductSink receives aggregation output objects. Implemented by
// *common.Bucket over the products bucket.
type ProductSink interface {
	PutText(ctx context.Context, key, body string) error
	PutJSON(ctx context.Context, key string, v interface{}) error
}

// Recorder appends rows to the analytical store. Implemented by
// *analytics.Store.
type Recorder interface {
	InsertProductSummary(ctx context.Context, rec types.ProductSummaryRecord) error
	InsertVideoMetadata(ctx context.Context, rows []analytics.VideoRow) error
}

// DedupGuard decides whether a candidate result deserves a write.
type DedupGuard interface {
	ShouldWrite(ctx context.Context, searchQuery, productName string, candidateReviewCount int) bool
}

// Generator synthesizes one product narrative from a prompt.
type Generator interface {
	GenerateSummary(ctx context.Context, prompt string) (string, error)
}

// Options tune the aggregation run.
type Options struct {
	MinReviewsPerProduct int
	MaxPromptChars       int
	TranscriptExcerpt    int
}

// Aggregator drives the aggregation step for one group at a time.
type Aggregator struct {
	reader   ArtifactReader
	sink     ProductSink
	recorder Recorder
	guard    DedupGuard
	gen      Generator
	opts     Options
	now      func() time.Time
}

// New wires an Aggregator.
func New(reader ArtifactReader, sink ProductSink, recorder Recorder, guard DedupGuard, gen Generator, opts Options) *Aggregator {
	if opts.MinReviewsPerProduct <= 0 {
		opts.MinReviewsPerProduct = config.DefaultMinReviewsPerProduct
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = config.DefaultMaxPromptChars
	}
	if opts.TranscriptExcerpt <= 0 {
		opts.TranscriptExcerpt = config.TranscriptExcerptChars
	}
	return &Aggregator{
		reader:   reader,
		sink:     sink,
		recorder: recorder,
		guard:    guard,
		gen:      gen,
		opts:     opts,
		now:      time.Now,
	}
}

// contribution is one video with both artifacts in hand.
type contribution struct {
	video      types.VideoMetadata
	summary    string
	transcript string
}

// Run aggregates the given videos for one search query. It never
// returns an error: per-product failures are recorded in the report and
// the run continues with the remaining products.
func (a *Aggregator) Run(ctx context.Context, searchQuery string, videos []types.VideoMetadata) types.AggregationReport {
	report := types.AggregationReport{SearchQuery: searchQuery}
	if len(videos) == 0 {
		return report
	}

	groups := a.groupByProduct(searchQuery, videos)

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var metadataRows []analytics.VideoRow
	processedAt := a.now().UTC()

	for _, name := range names {
		group := groups[name]
		result, rows := a.processProduct(ctx, searchQuery, name, group, processedAt)
		report.Add(result)
		metadataRows = append(metadataRows, rows...)
	}

	if len(metadataRows) > 0 {
		if err := a.recorder.InsertVideoMetadata(ctx, metadataRows); err != nil {
			log.Printf("aggregate: video metadata insert for %q failed: %v", searchQuery, err)
		}
	}

	log.Printf("aggregate: %q done: processed=%d skipped=%d errored=%d",
		searchQuery, report.Processed, report.Skipped, report.Errored)
	return report
}

func (a *Aggregator) groupByProduct(searchQuery string, videos []types.VideoMetadata) map[string][]types.VideoMetadata {
	groups := make(map[string][]types.VideoMetadata)
	for _, video := range videos {
		name := DeriveProductName(video.Title, searchQuery)
		groups[name] = append(groups[name], video)
	}
	return groups
}

func (a *Aggregator) processProduct(ctx context.Context, searchQuery, productName string, videos []types.VideoMetadata, processedAt time.Time) (types.ProductResult, []analytics.VideoRow) {
	result := types.ProductResult{ProductName: productName, ReviewCount: len(videos)}

	if len(videos) < a.opts.MinReviewsPerProduct {
		result.Status = "skipped"
		result.Reason = fmt.Sprintf("only %d reviews, need %d", len(videos), a.opts.MinReviewsPerProduct)
		return result, nil
	}

	// Fetch content; a video missing either artifact is left out rather
	// than failing the product.
	var contributions []contribution
	var rows []analytics.VideoRow
	var totalViews int64
	for _, video := range videos {
		summary := a.reader.Summary(ctx, video.VideoID)
		transcript := a.reader.Transcript(ctx, video.VideoID)

		rows = append(rows, analytics.VideoRow{
			VideoID:             video.VideoID,
			Title:               video.Title,
			ChannelName:         video.ChannelName,
			ViewCount:           video.ViewCount,
			Duration:            video.Duration,
			URL:                 video.URL,
			SearchQuery:         searchQuery,
			TranscriptAvailable: transcript != "",
			SummaryAvailable:    summary != "",
			SummaryContent:      summary,
			ProcessedAt:         processedAt,
		})

		if summary == "" || transcript == "" {
			log.Printf("aggregate: video %s incomplete at read time, skipping its content", video.VideoID)
			continue
		}
		contributions = append(contributions, contribution{video: video, summary: summary, transcript: transcript})
		totalViews += video.ViewCount
	}

	if len(contributions) == 0 {
		result.Status = "skipped"
		result.Reason = "no videos with complete artifacts"
		return result, rows
	}
	result.ReviewCount = len(contributions)

	reviews := make([]ReviewInput, 0, len(contributions))
	for _, c := range contributions {
		reviews = append(reviews, ReviewInput{
			Title:      c.video.Title,
			Channel:    c.video.ChannelName,
			Views:      c.video.ViewCount,
			Duration:   c.video.Duration,
			Summary:    c.summary,
			Transcript: c.transcript,
		})
	}

	prompt := BuildPrompt(productName, searchQuery, reviews, totalViews, a.opts.TranscriptExcerpt, a.opts.MaxPromptChars)
	summary, err := a.gen.GenerateSummary(ctx, prompt)
	if err != nil {
		log.Printf("aggregate: generation for %q/%q failed: %v", searchQuery, productName, err)
		result.Status = "error"
		result.Reason = "generation failed: " + err.Error()
		return result, rows
	}

	if !a.guard.ShouldWrite(ctx, searchQuery, productName, len(contributions)) {
		result.Status = "skipped"
		result.Reason = "recent equivalent summary exists"
		return result, rows
	}

	summaryFile, err := a.persist(ctx, searchQuery, productName, summary, contributions, totalViews, processedAt)
	if err != nil {
		log.Printf("aggregate: persist for %q/%q failed: %v", searchQuery, productName, err)
		result.Status = "error"
		result.Reason = "persist failed: " + err.Error()
		return result, rows
	}

	result.Status = "processed"
	result.SummaryFile = summaryFile
	return result, rows
}

// persist writes the summary text, metadata JSON and concatenated
// transcripts to the products prefix, then appends the analytical row.
// Secondary objects failing is logged, not fatal; the summary object and
// the analytical row are the record of the run.
func (a *Aggregator) persist(ctx context.Context, searchQuery, productName, summary string, contributions []contribution, totalViews int64, processedAt time.Time) (string, error) {
	stamp := processedAt.Format("20060102_150405")
	base := fmt.Sprintf("%s%s_%s_%s",
		config.ProductsPrefix, sanitizeName(searchQuery), sanitizeName(productName), stamp)

	summaryKey := base + ".txt"
	if err := a.sink.PutText(ctx, summaryKey, summary); err != nil {
		return "", fmt.Errorf("write summary object: %w", err)
	}

	reviewers := make([]string, 0, len(contributions))
	videoIDs := make([]string, 0, len(contributions))
	var transcripts strings.Builder
	for i, c := range contributions {
		reviewers = append(reviewers, c.video.ChannelName)
		videoIDs = append(videoIDs, c.video.VideoID)
		if i > 0 {
			transcripts.WriteString("\n\n--\n\n")
		}
		fmt.Fprintf(&transcripts, "[%s] %s\n\n%s", c.video.VideoID, c.video.Title, c.transcript)
	}

	metadata := map[string]interface{}{
		"product_name":  productName,
		"search_query":  searchQuery,
		"summary_file":  summaryKey,
		"total_reviews": len(contributions),
		"total_views":   totalViews,
		"average_views": totalViews / int64(len(contributions)),
		"reviewers":     reviewers,
		"video_ids":     videoIDs,
		"processed_at":  processedAt.Format(time.RFC3339),
	}
	if err := a.sink.PutJSON(ctx, base+"_metadata.json", metadata); err != nil {
		log.Printf("aggregate: metadata object for %q failed: %v", productName, err)
	}
	if err := a.sink.PutText(ctx, base+"_transcripts.txt", transcripts.String()); err != nil {
		log.Printf("aggregate: transcripts object for %q failed: %v", productName, err)
	}

	rec := types.ProductSummaryRecord{
		ProductName:    productName,
		SearchQuery:    searchQuery,
		SummaryContent: summary,
		TotalReviews:   len(contributions),
		TotalViews:     totalViews,
		AverageViews:   float64(totalViews) / float64(len(contributions)),
		SummaryFile:    summaryKey,
		ProcessedAt:    processedAt,
	}
	if err := a.recorder.InsertProductSummary(ctx, rec); err != nil {
		return summaryKey, fmt.Errorf("insert summary row: %w", err)
	}

	return summaryKey, nil
}

// DeriveProductName maps a video to its product group. All videos under
// one search query review the same product, so the query is the name;
// the title seeds a fallback when the query is absent or too short.
func DeriveProductName(title, searchQuery string) string {
	query := catalog.NormalizeQuery(searchQuery)
	// Strip the raw-data path prefix some upstream writers leak into
	// the query field.
	query = strings.TrimSpace(strings.TrimPrefix(query, "raw data/youtube search"))
	if len(query) > 3 {
		return titleCase(query)
	}

	words := strings.Fields(title)
	if len(words) > 4 {
		words = words[:4]
	}
	if len(words) == 0 {
		return "Unknown Product"
	}
	return titleCase(strings.Join(words, " "))
}

var nameCleanRe = regexp.MustCompile(`[^\w\s-]`)

// sanitizeName makes a query or product name safe for object keys.
func sanitizeName(name string) string {
	cleaned := nameCleanRe.ReplaceAllString(name, "")
	cleaned = strings.Join(strings.Fields(cleaned), "_")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
