// IntakesData is a paginated response payload for the intake history.
package dto

import "cvscanner/internal/model"

type IntakesData struct {
	Intakes     []model.IntakeRecord `json:"intakes"`
	ImagesDir   string               `json:"imagesDir"`
	Size        int64                `json:"size"`
	Length      int                  `json:"length"`
	TotalPages  int                  `json:"totalPages"`
	CurrentPage int                  `json:"currentPage"`
	Limit       int                  `json:"pageSize"`
}

// IntakeDetail is one archived intake together with its page images.
type IntakeDetail struct {
	Intake model.IntakeRecord `json:"intake"`
	Pages  []model.Image      `json:"pages"`
}
