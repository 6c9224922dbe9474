package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// categoryWeights are the base weights before renormalization over
// applicable categories.
var categoryWeights = map[models.ScoringCategory]float64{
	models.CategoryCriticalInfrastructure: 0.30,
	models.CategoryAuthentication:         0.25,
	models.CategoryDataProtection:         0.20,
	models.CategoryCodeQuality:            0.10,
	models.CategoryAISecurity:             0.10,
	models.CategoryCompliance:             0.05,
}

var categoryDescriptions = map[models.ScoringCategory]string{
	models.CategoryCriticalInfrastructure: "SSL/TLS, DNS, Network Security",
	models.CategoryAuthentication:         "Session Management, Cookies, Login Security",
	models.CategoryDataProtection:         "Security Headers, CSP, Data Leakage Prevention",
	models.CategoryCodeQuality:            "Dependencies, Libraries, Supply Chain Security",
	models.CategoryAISecurity:             "OWASP LLM Top 10, AI-Specific Risks",
	models.CategoryCompliance:             "Privacy Policies, GDPR, Regulatory Compliance",
}

// severityPoints drives diminishing-returns penalties: the first
// finding of a severity costs full points, repeats cost less, and each
// severity's total is capped.
type severityPoints struct {
	First      float64
	Additional float64
	Cap        float64
}

var penaltyTable = map[models.Severity]severityPoints{
	models.SeverityCritical: {First: 35, Additional: 20, Cap: 100},
	models.SeverityHigh:     {First: 20, Additional: 10, Cap: 60},
	models.SeverityMedium:   {First: 10, Additional: 4, Cap: 40},
	models.SeverityLow:      {First: 3, Additional: 1, Cap: 15},
}

const (
	maxCategoryPenalty = 100
	maxBonus           = 25
)

// MapCategory buckets a detector category string into a scoring
// category. Unknown strings land in data_protection rather than being
// dropped; an unrecognized finding still has to cost something.
func MapCategory(category string) models.ScoringCategory {
	if strings.HasPrefix(category, "owasp-llm") {
		return models.CategoryAISecurity
	}
	switch category {
	case "ssl", "dns", "port", "waf", "cors":
		return models.CategoryCriticalInfrastructure
	case "cookie", "mfa", "admin", "rate-limit":
		return models.CategoryAuthentication
	case "security", "client", "reconnaissance", "error-disclosure":
		return models.CategoryDataProtection
	case "library", "spa-api", "graphql":
		return models.CategoryCodeQuality
	case "ai":
		return models.CategoryAISecurity
	case "compliance":
		return models.CategoryCompliance
	default:
		return models.CategoryDataProtection
	}
}

// Engine turns findings into an explainable 0-100 score. Scoring is a
// pure function of its inputs: the same findings and metadata always
// produce an identical breakdown.
type Engine struct {
	logger *logrus.Logger
}

func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{logger: logger}
}

// Score computes the full breakdown. Findings are sorted internally, so
// callers may pass them in any order.
func (e *Engine) Score(findings []models.Finding, meta models.ScanMetadata) *models.ScoreBreakdown {
	sorted := make([]models.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ca, cb := MapCategory(a.Category), MapCategory(b.Category); ca != cb {
			return categoryRank(ca) < categoryRank(cb)
		}
		if a.Severity != b.Severity {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		return a.Title < b.Title
	})

	hasAI := meta.HasAI
	for _, f := range sorted {
		if MapCategory(f.Category) == models.CategoryAISecurity {
			hasAI = true
			break
		}
	}

	breakdown := &models.ScoreBreakdown{}

	byCategory := make(map[models.ScoringCategory][]models.Finding)
	for _, f := range sorted {
		cat := MapCategory(f.Category)
		byCategory[cat] = append(byCategory[cat], f)
	}

	applicableWeight := 0.0
	for _, cat := range models.ScoringCategoryOrder {
		if cat != models.CategoryAISecurity || hasAI {
			applicableWeight += categoryWeights[cat]
		}
	}

	overall := 0.0
	for _, cat := range models.ScoringCategoryOrder {
		applicable := cat != models.CategoryAISecurity || hasAI
		weight := 0.0
		if applicable {
			weight = categoryWeights[cat] / applicableWeight
		}

		penalty, details := e.categoryPenalty(cat, byCategory[cat])
		score := math.Max(0, 100-penalty)
		impact := 0.0
		if applicable {
			impact = score * weight
			overall += impact
		}

		breakdown.Categories = append(breakdown.Categories, models.CategoryScore{
			Category:       cat,
			Description:    categoryDescriptions[cat],
			Weight:         weight,
			Score:          score,
			FindingCount:   len(byCategory[cat]),
			WeightedImpact: impact,
			Applicable:     applicable,
		})
		breakdown.Penalties = append(breakdown.Penalties, details...)
	}

	bonus, bonusDetails := e.bonuses(sorted, meta)
	breakdown.Bonuses = bonusDetails
	overall = math.Min(100, overall+bonus)
	overall = math.Max(0, overall)

	breakdown.OverallScore = int(math.Round(overall))
	breakdown.RiskLevel = riskLevel(overall)
	breakdown.Grade = grade(overall)
	breakdown.Summary = summarize(sorted, bonusDetails)
	return breakdown
}

func (e *Engine) categoryPenalty(cat models.ScoringCategory, findings []models.Finding) (float64, []models.ScorePenalty) {
	var total float64
	var details []models.ScorePenalty

	for _, sev := range models.SeverityOrder {
		points, ok := penaltyTable[sev]
		if !ok {
			continue // info findings never cost points
		}
		var sevPenalty float64
		index := 0
		for _, f := range findings {
			if f.Severity != sev {
				continue
			}
			p := points.Additional
			rationale := "Additional " + string(sev) + " finding (diminishing returns)"
			if index == 0 {
				p = points.First
				rationale = "First " + string(sev) + " finding in " + string(cat)
			}
			sevPenalty += p
			details = append(details, models.ScorePenalty{
				Category:    cat,
				Severity:    sev,
				Description: f.Title,
				Points:      p,
				Rationale:   rationale,
			})
			index++
		}
		total += math.Min(sevPenalty, points.Cap)
	}
	return math.Min(total, maxCategoryPenalty), details
}

// bonuses rewards observed good practice. Checks are phrased as "no bad
// finding of kind X", so a scan with zero findings collects most of
// them; the cap keeps bonuses from masking real problems.
func (e *Engine) bonuses(findings []models.Finding, meta models.ScanMetadata) (float64, []models.ScoreBonus) {
	var total float64
	var details []models.ScoreBonus
	award := func(cat models.ScoringCategory, description string, points float64, rationale string) {
		total += points
		details = append(details, models.ScoreBonus{
			Category:    cat,
			Description: description,
			Points:      points,
			Rationale:   rationale,
		})
	}

	if meta.SSLCertificate != nil {
		award(models.CategoryCriticalInfrastructure, "HTTPS enabled with valid certificate", 5,
			"Transport layer encryption protects data in transit")
	}

	hasCSPFinding := false
	for _, f := range findings {
		if f.Category == "security" && strings.Contains(f.Title, "Content-Security-Policy") {
			hasCSPFinding = true
			break
		}
	}
	if !hasCSPFinding {
		award(models.CategoryDataProtection, "Content Security Policy implemented", 5,
			"CSP prevents XSS and code injection attacks")
	}

	if countFindings(findings, "cookie", models.SeverityHigh) == 0 {
		award(models.CategoryAuthentication, "Secure cookie configuration", 3,
			"Cookies protected with HttpOnly, Secure, SameSite flags")
	}

	if countFindings(findings, "client", models.SeverityCritical) == 0 {
		award(models.CategoryDataProtection, "No exposed API keys or secrets", 10,
			"Credentials properly secured, not exposed in client-side code")
	}

	if countFindings(findings, "dns", models.SeverityHigh) == 0 {
		award(models.CategoryCriticalInfrastructure, "DNS security features enabled", 5,
			"DNSSEC, SPF, DKIM, DMARC protect against domain spoofing")
	}

	return math.Min(total, maxBonus), details
}

func countFindings(findings []models.Finding, category string, severity models.Severity) int {
	n := 0
	for _, f := range findings {
		if f.Category == category && f.Severity == severity {
			n++
		}
	}
	return n
}

func riskLevel(score float64) string {
	switch {
	case score >= 80:
		return "LOW"
	case score >= 60:
		return "MEDIUM"
	case score >= 40:
		return "HIGH"
	default:
		return "CRITICAL"
	}
}

func grade(score float64) string {
	switch {
	case score >= 97:
		return "A+"
	case score >= 93:
		return "A"
	case score >= 90:
		return "A-"
	case score >= 87:
		return "B+"
	case score >= 83:
		return "B"
	case score >= 80:
		return "B-"
	case score >= 77:
		return "C+"
	case score >= 73:
		return "C"
	case score >= 70:
		return "C-"
	case score >= 67:
		return "D+"
	case score >= 63:
		return "D"
	case score >= 60:
		return "D-"
	default:
		return "F"
	}
}

func summarize(findings []models.Finding, bonuses []models.ScoreBonus) models.ScoreSummary {
	s := models.ScoreSummary{
		TotalFindings: len(findings),
		PassedChecks:  len(bonuses),
		FailedChecks:  len(findings),
	}
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityCritical:
			s.CriticalFindings++
		case models.SeverityHigh:
			s.HighFindings++
		case models.SeverityMedium:
			s.MediumFindings++
		case models.SeverityLow:
			s.LowFindings++
		}
	}
	return s
}

func categoryRank(cat models.ScoringCategory) int {
	for i, c := range models.ScoringCategoryOrder {
		if c == cat {
			return i
		}
	}
	return len(models.ScoringCategoryOrder)
}
