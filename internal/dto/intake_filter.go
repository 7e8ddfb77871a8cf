// IntakeFilters describe user-provided filters to narrow the intake history.
package dto

import "time"

type IntakeFilters struct {
	Name          string
	MinConfidence float64
	DateAfter     time.Time
	DateBefore    time.Time
	Limit         int
	Offset        int
}
