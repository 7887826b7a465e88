package types

import "time"

// ProductResult records the outcome for one product group within an
// aggregation run.
type ProductResult struct {
	ProductName string `json:"product_name"`
	ReviewCount int    `json:"review_count"`
	Status      string `json:"status"` // "processed", "skipped", "error"
	Reason      string `json:"reason,omitempty"`
	SummaryFile string `json:"summary_file,omitempty"`
}

// AggregationReport summarizes one aggregation run for a search query.
// Aggregation never fails as a whole; per-product failures are recorded
// here and the run continues.
type AggregationReport struct {
	SearchQuery string          `json:"search_query"`
	Processed   int             `json:"processed"`
	Skipped     int             `json:"skipped"`
	Errored     int             `json:"errored"`
	Products    []ProductResult `json:"products,omitempty"`
}

// Add appends a product result and bumps the matching counter.
func (r *AggregationReport) Add(res ProductResult) {
	r.Products = append(r.Products, res)
	switch res.Status {
	case "processed":
		r.Processed++
	case "skipped":
		r.Skipped++
	default:
		r.Errored++
	}
}

// ProductSummaryRecord is a row in the product_summaries analytical
// table, written once per aggregation that passes the dedup guard.
type ProductSummaryRecord struct {
	ProductName    string    `json:"product_name"`
	SearchQuery    string    `json:"search_query"`
	SummaryContent string    `json:"summary_content"`
	TotalReviews   int       `json:"total_reviews"`
	TotalViews     int64     `json:"total_views"`
	AverageViews   float64   `json:"average_views"`
	SummaryFile    string    `json:"summary_file"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// EventOutcome is the structured result of handling one storage event.
// Transient backend trouble is reported here with HTTP success, never as
// a handler error.
type EventOutcome struct {
	Status        string `json:"status"` // "skipped", "monitoring", "processed"
	Reason        string `json:"reason,omitempty"`
	FileProcessed string `json:"file_processed,omitempty"`
	SearchQuery   string `json:"search_query,omitempty"`
	PendingCount  int    `json:"pending_queries"`
}
