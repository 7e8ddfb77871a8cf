package dto

import (
	"fmt"
	"strings"

	"cvscanner/internal/model"
)

// IntakeResponse is the JSON document returned by the CV-analysis backend.
// Required fields are pointers or slices so a missing key can be told apart
// from an empty value: a JSON "[]" decodes to a non-nil empty slice.
type IntakeResponse struct {
	PersonalInfo           *model.PersonalInfo    `json:"personalInfo"`
	Summary                *string                `json:"summary"`
	WorkHistory            []model.WorkExperience `json:"workHistory"`
	Skills                 []string               `json:"skills"`
	Education              []model.Education      `json:"education"`
	ConfidenceScore        *float64               `json:"confidenceScore"`
	ImprovementSuggestions []string               `json:"improvementSuggestions"`
}

// Validate lists every missing or out-of-range field.
func (r *IntakeResponse) Validate() error {
	var missing []string
	if r.PersonalInfo == nil {
		missing = append(missing, "personalInfo")
	}
	if r.Summary == nil {
		missing = append(missing, "summary")
	}
	if r.WorkHistory == nil {
		missing = append(missing, "workHistory")
	}
	if r.Skills == nil {
		missing = append(missing, "skills")
	}
	if r.Education == nil {
		missing = append(missing, "education")
	}
	if r.ConfidenceScore == nil {
		missing = append(missing, "confidenceScore")
	}
	if len(missing) > 0 {
		return fmt.Errorf("response is missing %s", strings.Join(missing, ", "))
	}

	if *r.ConfidenceScore < 0 || *r.ConfidenceScore > 1 {
		return fmt.Errorf("confidenceScore %v is outside [0,1]", *r.ConfidenceScore)
	}
	return nil
}

// ToResult validates the response and converts it to the domain result.
func (r *IntakeResponse) ToResult() (*model.IntakeResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	suggestions := r.ImprovementSuggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	return &model.IntakeResult{
		PersonalInfo:           *r.PersonalInfo,
		Summary:                *r.Summary,
		WorkHistory:            r.WorkHistory,
		Skills:                 r.Skills,
		Education:              r.Education,
		ConfidenceScore:        *r.ConfidenceScore,
		ImprovementSuggestions: suggestions,
	}, nil
}
