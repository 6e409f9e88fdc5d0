package entity

import (
	"math"
	"strings"
	"time"
)

// DiagnosisAnalysisFailed is shown in place of a label when a prediction could not be obtained.
const DiagnosisAnalysisFailed = "Analysis Failed"

// Confidence bands used for display.
const (
	ConfidenceBandHigh   = "HIGH"
	ConfidenceBandMedium = "MEDIUM"
	ConfidenceBandLow    = "LOW"
)

// Recommendation is the advisory record attached to a diagnosis
type Recommendation struct {
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms"`
	Treatment   string   `json:"treatment"`
	Prevention  string   `json:"prevention"`
	Message     string   `json:"message"`
}

// IsZero reports whether no advisory text is present
func (r Recommendation) IsZero() bool {
	return r.Description == "" && len(r.Symptoms) == 0 && r.Treatment == "" &&
		r.Prevention == "" && r.Message == ""
}

// Steps flattens the record into the ordered list shown under "Treatment Recommendations"
func (r Recommendation) Steps() []string {
	steps := make([]string, 0, 4)
	for _, s := range []string{r.Description, r.Treatment, r.Prevention, r.Message} {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// ScanResult is one submitted image plus its diagnosis.
// Values are never mutated once stored in history.
type ScanResult struct {
	ID             string         `json:"id"`
	ImageURI       string         `json:"imageUri"`
	Diagnosis      string         `json:"diagnosis"`
	Confidence     int            `json:"confidence"`
	Date           time.Time      `json:"date"`
	CropType       CropType       `json:"cropType"`
	Recommendation Recommendation `json:"recommendation"`
}

// NewScan is a ScanResult that has not been assigned an id yet
type NewScan struct {
	ImageURI       string
	Diagnosis      string
	Confidence     int
	Date           time.Time
	CropType       CropType
	Recommendation Recommendation
}

// WithID materialises the scan under the given id
func (n NewScan) WithID(id string) ScanResult {
	return ScanResult{
		ID:             id,
		ImageURI:       n.ImageURI,
		Diagnosis:      n.Diagnosis,
		Confidence:     ClampConfidence(n.Confidence),
		Date:           n.Date,
		CropType:       n.CropType,
		Recommendation: n.Recommendation,
	}
}

// Failed reports whether the scan carries the fallback diagnosis
func (s ScanResult) Failed() bool {
	return s.Diagnosis == DiagnosisAnalysisFailed
}

// IsHealthy reports whether the classifier found no disease
func (s ScanResult) IsHealthy() bool {
	return strings.Contains(strings.ToLower(s.Diagnosis), "healthy")
}

// ConfidenceBand buckets the confidence for display
func (s ScanResult) ConfidenceBand() string {
	switch c := ClampConfidence(s.Confidence); {
	case c >= 90:
		return ConfidenceBandHigh
	case c >= 70:
		return ConfidenceBandMedium
	default:
		return ConfidenceBandLow
	}
}

// ScaleConfidence converts a [0,1] probability to a rounded percentage in [0,100]
func ScaleConfidence(probability float64) int {
	pct := math.Round(probability * 100)
	switch {
	case math.IsNaN(pct) || pct <= 0:
		return 0
	case pct >= 100:
		return 100
	}
	return int(pct)
}

// ClampConfidence bounds a percentage to [0,100]
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

// FailedScan builds the fallback result displayed when a prediction fails
func FailedScan(imageURI string, cropType CropType, at time.Time) ScanResult {
	return ScanResult{
		ImageURI:   imageURI,
		Diagnosis:  DiagnosisAnalysisFailed,
		Confidence: 0,
		Date:       at,
		CropType:   cropType,
	}
}
