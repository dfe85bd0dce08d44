// PACKAGE RAINCOMP IMPLEMENTS C8, RAIN COMPENSATION, AS A PURE FUNCTION OVER INPUT VALUES.
//
// GROUNDED ON internal/scraper/ RULE-EVALUATION HELPERS (e.g. MatchPattern) IN STYLE — A SMALL,
// STATELESS, EASILY-TESTED FUNCTION THAT THE EXECUTOR CALLS INLINE RATHER THAN A STATEFUL
// COMPONENT OF ITS OWN (SPEC_FULL.MD §4.8 HAS NO INTERNAL STATE TO OWN).
package raincomp

import "github.com/nickheyer/Crepes/internal/models"

// IMPACT IS THE STRUCTURED RECORD OF A RAIN-COMPENSATION DECISION, LOGGED BY THE CALLER
type Impact struct {
	RawMM         float64 `json:"rawMm"`
	EffectiveMM   float64 `json:"effectiveMm"`
	ReductionPct  float64 `json:"reductionPct"`
	Skip          bool    `json:"skip"`
	Confidence    float64 `json:"confidence"` // THE RAINFALL SOURCE'S dataQuality AS REPORTED, UNSCALED (0..100)
}

// RAINLOOKUP RESOLVES CUMULATIVE RAINFALL (mm) OVER THE TRAILING lookbackHours WINDOW.
// IMPLEMENTED BY THE ENVIRONMENT READER'S RAINFALL HISTORY IN THE REAL CONTROLLER.
type RainLookup func(lookbackHours int) (mm float64, dataQuality float64)

// APPLYTODURATION TRIMS A BY-DURATION TASK'S MINUTES FOR RAIN, RETURNING THE ADJUSTED MINUTES,
// WHETHER THE TASK SHOULD BE SKIPPED ENTIRELY, AND THE IMPACT RECORD TO LOG.
func ApplyToDuration(cfg models.RainCompensationConfig, lookup RainLookup, minutes int) (int, bool, Impact) {
	if !cfg.Enabled {
		return minutes, false, Impact{}
	}
	raw, quality := lookup(cfg.LookbackHours)
	effective := raw * cfg.ReductionFactor

	if effective >= cfg.SkipThresholdMM {
		return 0, true, Impact{RawMM: raw, EffectiveMM: effective, ReductionPct: 100, Skip: true, Confidence: quality}
	}

	reductionPct := reductionPercent(cfg, effective)
	adjusted := float64(minutes) * (1 - reductionPct/100)
	impact := Impact{RawMM: raw, EffectiveMM: effective, ReductionPct: reductionPct, Confidence: quality}

	if adjusted < 1 {
		impact.Skip = true
		return 0, true, impact
	}
	return int(adjusted + 0.5), false, impact
}

// APPLYTOVOLUME TRIMS A BY-VOLUME TASK'S LITRES FOR RAIN, SAME SHAPE AS ApplyToDuration.
func ApplyToVolume(cfg models.RainCompensationConfig, lookup RainLookup, liters float64) (float64, bool, Impact) {
	if !cfg.Enabled {
		return liters, false, Impact{}
	}
	raw, quality := lookup(cfg.LookbackHours)
	effective := raw * cfg.ReductionFactor

	if effective >= cfg.SkipThresholdMM {
		return 0, true, Impact{RawMM: raw, EffectiveMM: effective, ReductionPct: 100, Skip: true, Confidence: quality}
	}

	reductionPct := reductionPercent(cfg, effective)
	adjusted := liters * (1 - reductionPct/100)
	impact := Impact{RawMM: raw, EffectiveMM: effective, ReductionPct: reductionPct, Confidence: quality}

	if adjusted < 1.0 {
		impact.Skip = true
		return 0, true, impact
	}
	return adjusted, false, impact
}

func reductionPercent(cfg models.RainCompensationConfig, effective float64) float64 {
	if cfg.SkipThresholdMM <= 0 {
		return 0
	}
	pct := cfg.SensitivityPct * effective / cfg.SkipThresholdMM
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
