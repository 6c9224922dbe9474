package models

// ScoringCategory is the closed set of buckets the scoring engine
// aggregates findings into. Detector category strings are mapped onto
// this set; unknown strings land in data_protection.
type ScoringCategory string

const (
	CategoryCriticalInfrastructure ScoringCategory = "critical_infrastructure"
	CategoryAuthentication         ScoringCategory = "authentication"
	CategoryDataProtection         ScoringCategory = "data_protection"
	CategoryCodeQuality            ScoringCategory = "code_quality"
	CategoryAISecurity             ScoringCategory = "ai_security"
	CategoryCompliance             ScoringCategory = "compliance"
)

// ScoringCategoryOrder fixes the iteration order for all category
// arithmetic and output.
var ScoringCategoryOrder = []ScoringCategory{
	CategoryCriticalInfrastructure,
	CategoryAuthentication,
	CategoryDataProtection,
	CategoryCodeQuality,
	CategoryAISecurity,
	CategoryCompliance,
}

// CategoryScore is the scored state of one category after penalties and
// weight renormalization.
type CategoryScore struct {
	Category       ScoringCategory `json:"category"`
	Description    string          `json:"description"`
	Weight         float64         `json:"weight"`
	Score          float64         `json:"score"` // 0-100
	FindingCount   int             `json:"finding_count"`
	WeightedImpact float64         `json:"weighted_impact"`
	Applicable     bool            `json:"applicable"`
}

type ScorePenalty struct {
	Category    ScoringCategory `json:"category"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	Points      float64         `json:"points"`
	Rationale   string          `json:"rationale"`
}

type ScoreBonus struct {
	Category    ScoringCategory `json:"category"`
	Description string          `json:"description"`
	Points      float64         `json:"points"`
	Rationale   string          `json:"rationale"`
}

type ScoreSummary struct {
	TotalFindings    int `json:"total_findings"`
	CriticalFindings int `json:"critical_findings"`
	HighFindings     int `json:"high_findings"`
	MediumFindings   int `json:"medium_findings"`
	LowFindings      int `json:"low_findings"`
	PassedChecks     int `json:"passed_checks"`
	FailedChecks     int `json:"failed_checks"`
}

// ScoreBreakdown is the full explainable output of the scoring engine.
// It is derived per scan and never mutated after creation.
type ScoreBreakdown struct {
	Categories   []CategoryScore `json:"categories"`
	OverallScore int             `json:"overall_score"` // 0-100
	RiskLevel    string          `json:"risk_level"`
	Grade        string          `json:"grade"`
	Penalties    []ScorePenalty  `json:"penalties"`
	Bonuses      []ScoreBonus    `json:"bonuses"`
	Summary      ScoreSummary    `json:"summary"`
}

// Category returns the score entry for cat, or nil when absent.
func (b *ScoreBreakdown) Category(cat ScoringCategory) *CategoryScore {
	for i := range b.Categories {
		if b.Categories[i].Category == cat {
			return &b.Categories[i]
		}
	}
	return nil
}

// ScanMetadata is the scan-level context the scoring engine consumes
// alongside the findings.
type ScanMetadata struct {
	HasAI          bool            `json:"has_ai"`
	SSLCertificate *SSLCertificate `json:"ssl_certificate,omitempty"`
	FetchMethod    FetchMethod     `json:"fetch_method,omitempty"`
	FinalURL       string          `json:"final_url,omitempty"`
}
