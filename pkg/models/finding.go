package models

import "fmt"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// SeverityOrder lists severities from most to least severe. Scoring
// iterates this slice so penalty arithmetic never depends on map order.
var SeverityOrder = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// Rank returns the position of s in the severity ladder; unknown
// severities sort last.
func (s Severity) Rank() int {
	for i, v := range SeverityOrder {
		if v == s {
			return i
		}
	}
	return len(SeverityOrder)
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Finding is one detector-emitted, severity-tagged observation about the
// target. Detectors produce findings; only the scoring engine consumes
// them.
type Finding struct {
	Category       string   `json:"category"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Evidence       string   `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

func (f *Finding) Validate() error {
	if f.Category == "" {
		return fmt.Errorf("finding category is required")
	}
	if f.Title == "" {
		return fmt.Errorf("finding title is required")
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("invalid severity: %s", f.Severity)
	}
	return nil
}
