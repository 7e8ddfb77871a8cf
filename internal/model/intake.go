package model

// PersonalInfo holds the contact block extracted from a CV.
type PersonalInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// WorkExperience is one entry of the work history.
type WorkExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

// Education is one qualification.
type Education struct {
	Institution   string `json:"institution"`
	Qualification string `json:"qualification"`
	Year          string `json:"year"`
}

// IntakeResult is the structured CV returned by a successful submission.
type IntakeResult struct {
	PersonalInfo           PersonalInfo     `json:"personalInfo"`
	Summary                string           `json:"summary"`
	WorkHistory            []WorkExperience `json:"workHistory"`
	Skills                 []string         `json:"skills"`
	Education              []Education      `json:"education"`
	ConfidenceScore        float64          `json:"confidenceScore"`
	ImprovementSuggestions []string         `json:"improvementSuggestions"`
}
