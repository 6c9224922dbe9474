package detectors

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// LibraryDetector compares JavaScript library versions reported by the
// page against known-fix floors.
type LibraryDetector struct {
	logger *logrus.Logger
}

func NewLibraryDetector(logger *logrus.Logger) *LibraryDetector {
	if logger == nil {
		logger = logrus.New()
	}
	return &LibraryDetector{logger: logger}
}

func (d *LibraryDetector) Name() string { return "libraries" }

type libraryRule struct {
	library        string
	constraint     string
	severity       models.Severity
	title          string
	description    string
	recommendation string
}

// Representative floors, not a vulnerability database.
var libraryRules = []libraryRule{
	{
		library:        "jquery",
		constraint:     "< 3.5.0",
		severity:       models.SeverityMedium,
		title:          "Outdated jQuery with known XSS issues",
		description:    "jQuery before 3.5.0 is affected by HTML sanitization bypasses (CVE-2020-11022, CVE-2020-11023).",
		recommendation: "Upgrade jQuery to 3.5.0 or later.",
	},
	{
		library:        "angular",
		constraint:     "< 2.0.0",
		severity:       models.SeverityHigh,
		title:          "AngularJS 1.x is end-of-life",
		description:    "AngularJS reached end of life in January 2022 and receives no security fixes.",
		recommendation: "Migrate to a maintained framework version.",
	},
	{
		library:        "vue",
		constraint:     "< 3.0.0",
		severity:       models.SeverityLow,
		title:          "Vue 2 is end-of-life",
		description:    "Vue 2 reached end of life at the end of 2023; security fixes require a paid extended-support plan.",
		recommendation: "Upgrade to Vue 3.",
	},
	{
		library:        "react",
		constraint:     "< 16.0.0",
		severity:       models.SeverityLow,
		title:          "Very old React version in use",
		description:    "React releases before 16 predate several XSS hardening changes and are unmaintained.",
		recommendation: "Upgrade React to a current major version.",
	},
}

func (d *LibraryDetector) Detect(_ context.Context, result *models.CrawlResult) []models.Finding {
	if result.JSSignals == nil {
		return nil
	}
	versions := map[string]string{
		"jquery":  result.JSSignals.JQueryVersion,
		"react":   result.JSSignals.ReactVersion,
		"vue":     result.JSSignals.VueVersion,
		"angular": result.JSSignals.AngularVersion,
	}

	var findings []models.Finding
	for _, rule := range libraryRules {
		raw := versions[rule.library]
		if raw == "" {
			continue
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			d.logger.WithFields(logrus.Fields{"library": rule.library, "version": raw}).
				Debug("unparseable library version")
			continue
		}
		constraint, err := semver.NewConstraint(rule.constraint)
		if err != nil {
			continue
		}
		if !constraint.Check(v) {
			continue
		}
		findings = append(findings, models.Finding{
			Category:       "library",
			Severity:       rule.severity,
			Title:          rule.title,
			Description:    rule.description,
			Evidence:       fmt.Sprintf("%s %s detected (affected: %s)", rule.library, raw, rule.constraint),
			Recommendation: rule.recommendation,
		})
	}
	return findings
}
