package dto

import (
	"encoding/json"
	"time"

	"cvscanner/internal/model"
)

// PageInfo is the thumbnail-list entry for one buffered page.
type PageInfo struct {
	ID         string           `json:"id"`
	Position   int              `json:"position"`
	SourceType model.SourceType `json:"sourceType"`
	MimeType   string           `json:"mimeType"`
	Size       int64            `json:"size"`
	CapturedAt time.Time        `json:"capturedAt"`
}

// MarshalJSON formats the capture time the way the review screen shows it.
func (p PageInfo) MarshalJSON() ([]byte, error) {
	type Alias PageInfo
	return json.Marshal(&struct {
		CapturedAt string `json:"capturedAt"`
		Alias
	}{
		CapturedAt: p.CapturedAt.Format("15:04:05"),
		Alias:      (Alias)(p),
	})
}

// NewPageInfos converts buffered pages into list entries, keeping their order.
func NewPageInfos(pages []model.CapturedPage) []PageInfo {
	infos := make([]PageInfo, 0, len(pages))
	for i, page := range pages {
		var size int64
		if page.Image != nil {
			size = page.Image.Size()
		}
		infos = append(infos, PageInfo{
			ID:         page.ID,
			Position:   i,
			SourceType: page.SourceType,
			MimeType:   page.MimeType,
			Size:       size,
			CapturedAt: page.CapturedAt,
		})
	}
	return infos
}
