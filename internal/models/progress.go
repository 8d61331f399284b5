// Package models defines progress reporting structures for QuoteHub sessions.
package models

// ProgressSnapshot is the read-only view of an orchestration round's progress
// state, exposed to the API layer. CurrentQuoteType is a best-effort signal:
// under concurrent category fetches it is last-writer-wins and must never be
// used for completion decisions.
type ProgressSnapshot struct {
	Percent             float64  `json:"percent"`
	StepIndex           int      `json:"step_index"`
	CurrentQuoteType    string   `json:"current_quote_type,omitempty"`
	ExpectedQuoteTypes  []string `json:"expected_quote_types"`
	StartedQuoteTypes   []string `json:"started_quote_types"`
	CompletedQuoteTypes []string `json:"completed_quote_types"`
	TotalExpectedQuotes int      `json:"total_expected_quotes"`
	QuotesReady         bool     `json:"quotes_ready"`
	QuotesError         string   `json:"quotes_error,omitempty"`
}
