// Package analytics persists aggregation results and per-video metadata
// rows to the analytical database, and answers the dedup guard's
// freshness queries.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"reviewbot/types"
)

// VideoRow is a flat per-video observability record written alongside
// each aggregation.
type VideoRow struct {
	VideoID             string
	Title               string
	ChannelName         string
	ViewCount           int64
	Duration            string
	URL                 string
	SearchQuery         string
	TranscriptAvailable bool
	SummaryAvailable    bool
	SummaryContent      string
	ProcessedAt         time.Time
}

// Store is the Postgres-backed analytical store.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping analytics db: %w", err)
	}
	return NewStore(db), nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LatestProductSummary returns the most recent summary row for the
// (search query, product) pair, or nil if none exists.
func (s *Store) LatestProductSummary(ctx context.Context, searchQuery, productName string) (*types.ProductSummaryRecord, error) {
	query, args, err := s.builder.
		Select("product_name", "search_query", "total_reviews", "total_views", "average_views", "processed_at").
		From("product_summaries").
		Where(sq.Eq{"search_query": searchQuery, "product_name": productName}).
		OrderBy("processed_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest summary query: %w", err)
	}

	var rec types.ProductSummaryRecord
	row := s.db.QueryRowContext(ctx, query, args...)
	err = row.Scan(
		&rec.ProductName,
		&rec.SearchQuery,
		&rec.TotalReviews,
		&rec.TotalViews,
		&rec.AverageViews,
		&rec.ProcessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan latest summary: %w", err)
	}
	return &rec, nil
}

// InsertProductSummary appends one product summary row.
func (s *Store) InsertProductSummary(ctx context.Context, rec types.ProductSummaryRecord) error {
	query, args, err := s.builder.
		Insert("product_summaries").
		Columns(
			"product_name", "search_query", "summary_content",
			"total_reviews", "total_views", "average_views",
			"summary_file", "processed_at",
		).
		Values(
			rec.ProductName, rec.SearchQuery, rec.SummaryContent,
			rec.TotalReviews, rec.TotalViews, rec.AverageViews,
			rec.SummaryFile, rec.ProcessedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build summary insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert product summary %q: %w", rec.ProductName, err)
	}
	return nil
}

// InsertVideoMetadata appends flat per-video rows in one statement.
func (s *Store) InsertVideoMetadata(ctx context.Context, rows []VideoRow) error {
	if len(rows) == 0 {
		return nil
	}

	insert := s.builder.
		Insert("video_metadata").
		Columns(
			"video_id", "title", "channel_name", "view_count", "duration",
			"url", "search_query", "transcript_available",
			"summary_available", "summary_content", "processed_at",
		)
	for _, r := range rows {
		insert = insert.Values(
			r.VideoID, r.Title, r.ChannelName, r.ViewCount, r.Duration,
			r.URL, r.SearchQuery, r.TranscriptAvailable,
			r.SummaryAvailable, r.SummaryContent, r.ProcessedAt,
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build video metadata insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %d video metadata rows: %w", len(rows), err)
	}
	return nil
}
