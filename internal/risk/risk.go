// Package risk labels analysis results and evaluates analyst-defined
// flag rules against cluster and ring statistics.
package risk

import (
	"github.com/opensource-finance/harrier/internal/domain"
)

// Level is an analyst-facing risk label.
type Level string

const (
	LevelHigh   Level = "High Risk"
	LevelMedium Level = "Medium Risk"
	LevelLow    Level = "Low Risk"
)

// Classify maps a fraud rate to a risk level using the configured
// thresholds. Thresholds are configuration, not constants, so
// deployments can tune them per dataset.
func Classify(fraudRate float64, cfg domain.AnalysisConfig) Level {
	switch {
	case fraudRate >= cfg.HighRiskRate:
		return LevelHigh
	case fraudRate >= cfg.MediumRiskRate:
		return LevelMedium
	default:
		return LevelLow
	}
}
