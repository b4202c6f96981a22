package health

import (
	"math"

	"sitehealth/internal/parser"
)

const (
	maxScore = 100.0

	// loadTimeBudget is the load time, in seconds, at which the load-time
	// credit reaches zero.
	loadTimeBudget = 2.0

	// MobileFriendlyScore is a fixed placeholder; mobile friendliness is not measured.
	MobileFriendlyScore = 0.9

	accessibilityWeight = 25.0
	ariaLabelTarget     = 10.0
)

// SEOWeights weighs each SEO component. The score is normalized by the
// weight total, so only the ratios between weights matter.
type SEOWeights struct {
	LoadTime          float64
	HTTPS             float64
	MetaTags          float64
	ImageOptimization float64
	MobileFriendly    float64
}

// DefaultSEOWeights gives every component the same weight.
func DefaultSEOWeights() SEOWeights {
	return SEOWeights{
		LoadTime:          20,
		HTTPS:             20,
		MetaTags:          20,
		ImageOptimization: 20,
		MobileFriendly:    20,
	}
}

func (w SEOWeights) total() float64 {
	return w.LoadTime + w.HTTPS + w.MetaTags + w.ImageOptimization + w.MobileFriendly
}

// SEOComponents are the sub-scores of the SEO score, each within [0, 1].
type SEOComponents struct {
	LoadTime          float64
	HTTPS             float64
	MetaTags          float64
	ImageOptimization float64
	MobileFriendly    float64
}

// ComputeSEOScore returns the weighted SEO score within [0, 100].
func ComputeSEOScore(components SEOComponents, weights SEOWeights) float64 {
	total := weights.total()
	if total <= 0 {
		return 0
	}

	weighted := components.LoadTime*weights.LoadTime +
		components.HTTPS*weights.HTTPS +
		components.MetaTags*weights.MetaTags +
		components.ImageOptimization*weights.ImageOptimization +
		components.MobileFriendly*weights.MobileFriendly

	return clamp(weighted*maxScore/total, 0, maxScore)
}

// loadTimeScore decays linearly from full credit to nothing at 2s.
// A zero measurement counts as missing.
func loadTimeScore(loadTime *float64) float64 {
	if loadTime == nil || *loadTime == 0 {
		return 0
	}

	return math.Max(0, (loadTimeBudget-*loadTime)/loadTimeBudget)
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}

	return 0
}

// imageRatio is vacuously 1 for pages without images.
func imageRatio(stats parser.ImageStats) float64 {
	if stats.Total == 0 {
		return 1
	}

	return float64(stats.WithAlt) / float64(stats.Total)
}

func accessibilityScore(data parser.AccessibilityData) float64 {
	labels := 1.0
	if data.FormControls > 0 {
		labels = float64(data.LabelsWithFor) / float64(data.FormControls)
	}

	aria := 0.0
	if data.AriaLabelled > 0 {
		aria = float64(data.AriaLabelled) / ariaLabelTarget
	}

	score := (imageRatio(data.Images) +
		labels +
		boolScore(data.H1Count > 0) +
		aria) * accessibilityWeight

	return math.Min(score, maxScore)
}

func clamp(value, low, high float64) float64 {
	return math.Min(math.Max(value, low), high)
}
