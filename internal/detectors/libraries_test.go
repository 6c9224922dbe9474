package detectors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

func signalsResult(s models.JSSignals) *models.CrawlResult {
	return &models.CrawlResult{JSSignals: &s}
}

func TestLibraryDetectorOutdatedJQuery(t *testing.T) {
	d := NewLibraryDetector(nil)
	findings := d.Detect(context.Background(), signalsResult(models.JSSignals{JQueryVersion: "3.4.1"}))

	require.Len(t, findings, 1)
	assert.Equal(t, "library", findings[0].Category)
	assert.Equal(t, models.SeverityMedium, findings[0].Severity)
	assert.Contains(t, findings[0].Evidence, "jquery 3.4.1")
}

func TestLibraryDetectorCurrentVersionsPass(t *testing.T) {
	d := NewLibraryDetector(nil)
	findings := d.Detect(context.Background(), signalsResult(models.JSSignals{
		JQueryVersion:  "3.7.1",
		ReactVersion:   "18.2.0",
		VueVersion:     "3.4.0",
		AngularVersion: "17.0.0",
	}))
	assert.Empty(t, findings)
}

func TestLibraryDetectorAngularJSEndOfLife(t *testing.T) {
	d := NewLibraryDetector(nil)
	findings := d.Detect(context.Background(), signalsResult(models.JSSignals{AngularVersion: "1.8.3"}))

	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, "AngularJS 1.x is end-of-life", findings[0].Title)
}

func TestLibraryDetectorUnparseableVersionIgnored(t *testing.T) {
	d := NewLibraryDetector(nil)
	findings := d.Detect(context.Background(), signalsResult(models.JSSignals{JQueryVersion: "latest"}))
	assert.Empty(t, findings)
}

func TestLibraryDetectorNoSignals(t *testing.T) {
	d := NewLibraryDetector(nil)
	assert.Nil(t, d.Detect(context.Background(), &models.CrawlResult{}))
}
