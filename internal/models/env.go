package models

// ENVDERIVED HOLDS VALUES DERIVED FROM THE RAW ENVIRONMENTAL SAMPLE
type EnvDerived struct {
	VPSatKPa    float64 `json:"vpSatKpa"`
	VPActualKPa float64 `json:"vpActualKpa"`
	DewpointC   float64 `json:"dewpointC"`
}

// ENVFIELD NAMES THE INDIVIDUAL VALIDITY-FLAGGED MEASUREMENTS ON AN ENVSAMPLE
type EnvField string

const (
	FieldTempMean  EnvField = "TEMP_MEAN"
	FieldTempMin   EnvField = "TEMP_MIN"
	FieldTempMax   EnvField = "TEMP_MAX"
	FieldRH        EnvField = "RH"
	FieldPressure  EnvField = "PRESSURE"
	FieldRain24h   EnvField = "RAIN_24H"
)

// ENVSAMPLE IS THE LATEST VALIDATED ENVIRONMENTAL READING CONSUMED BY C9 (§4.10)
type EnvSample struct {
	TimestampEpoch int64   `json:"timestampEpoch"`
	TempMeanC      float64 `json:"tempMeanC"`
	TempMinC       float64 `json:"tempMinC"`
	TempMaxC       float64 `json:"tempMaxC"`
	RHPct          float64 `json:"rhPct"`
	PressureHPa    float64 `json:"pressureHPa"`
	RainMM24h      float64 `json:"rainMm24h"`

	Derived EnvDerived `json:"derived"`

	ValidityFlags map[EnvField]bool `json:"validityFlags"`
	DataQualityPct int              `json:"dataQualityPct"`
}

// ISVALID REPORTS WHETHER A GIVEN FIELD PASSED VALIDATION
func (e *EnvSample) IsValid(f EnvField) bool {
	if e.ValidityFlags == nil {
		return false
	}
	return e.ValidityFlags[f]
}
