package model

import "time"

// Image represents an archived page image record.
type Image struct {
	ID         int64      `json:"id"`
	IntakeID   string     `json:"intake_id"`
	PageID     string     `json:"page_id"`
	Position   int        `json:"position"`
	Filename   string     `json:"filename"`
	FilePath   string     `json:"filepath"`
	FileSize   int64      `json:"filesize"`
	MimeType   string     `json:"mime_type"`
	SourceType SourceType `json:"source_type"`
	CapturedAt time.Time  `json:"captured_at"`
}
