package models

import "time"

// SummaryRecord is a derived consultation summary retrieved from the memory
// service. Summaries are produced asynchronously and may lag the last turn
// write by several minutes.
type SummaryRecord struct {
	SessionId string
	Content   string
	CreatedAt time.Time
}
