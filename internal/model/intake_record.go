package model

import "time"

// IntakeRecord is an accepted intake stored in the archive.
type IntakeRecord struct {
	ID         string       `json:"id"`
	FullName   string       `json:"fullName"`
	PageCount  int          `json:"pageCount"`
	Confidence float64      `json:"confidence"`
	Result     IntakeResult `json:"result"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// IntakeStats contains statistics about archived intakes.
type IntakeStats struct {
	TotalIntakes   int   `json:"total_intakes"`
	TotalPages     int   `json:"total_pages"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
}
