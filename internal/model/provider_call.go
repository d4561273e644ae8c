package model

import "time"

// ProviderCall tracks each outbound call to an image or LLM provider, for
// quota accounting and operational diagnosis.
type ProviderCall struct {
	ID          int64     `db:"id" json:"id"`
	RequestID   string    `db:"request_id" json:"request_id"`
	Provider    string    `db:"provider" json:"provider"`
	Query       string    `db:"query" json:"query"`
	Outcome     string    `db:"outcome" json:"outcome"` // "ok" or an error kind
	StatusCode  int       `db:"status_code" json:"status_code"`
	ResultCount int       `db:"result_count" json:"result_count"`
	DurationMs  int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OutcomeOK marks a provider call that produced usable results.
const OutcomeOK = "ok"

// ProviderCallCount is one row of the per-provider/outcome aggregate.
type ProviderCallCount struct {
	Provider string `db:"provider" json:"provider"`
	Outcome  string `db:"outcome" json:"outcome"`
	Count    int64  `db:"count" json:"count"`
}
