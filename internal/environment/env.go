// PACKAGE ENVIRONMENT IMPLEMENTS C10, THE SWAPPABLE ENVIRONMENTAL SENSOR READER.
//
// GROUNDED ON internal/scraper's CONFIG-SELECTED EXECUTION BACKEND NOTION (A REAL BROWSER
// BACKEND VS. A PURE-HTTP BACKEND, CHOSEN AT PIPELINE CONSTRUCTION): HERE THE SAME "INTERFACE
// SELECTED AT CONSTRUCTION, NO BUILD TAGS" SHAPE SWAPS A REAL SENSOR BACKEND FOR A DETERMINISTIC
// SIMULATED ONE (SPEC_FULL.MD §4.10, DESIGN NOTE ON REPLACING CONDITIONAL COMPILATION).
package environment

import (
	"math"
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/utils"
)

// RAWREADING IS WHAT A BACKEND PRODUCES BEFORE VALIDATION/CALIBRATION IS APPLIED
type RawReading struct {
	TempMeanC   float64
	TempMinC    float64
	TempMaxC    float64
	RHPct       float64
	PressureHPa float64
	RainMM24h   float64
	TakenAt     time.Time
}

// BACKEND IS THE HARDWARE-FACING SIDE OF THE ENVIRONMENT READER
type Backend interface {
	Read() (RawReading, error)
}

// UNIMPLEMENTEDBACKEND STANDS IN FOR A REAL SENSOR DRIVER NOT YET WIRED TO THIS BUILD
type UnimplementedBackend struct{}

func (UnimplementedBackend) Read() (RawReading, error) {
	return RawReading{}, utils.NewControllerError(utils.ErrNotSupported, "no hardware environment backend configured", -1)
}

// SIMULATEDBACKEND PRODUCES A DETERMINISTIC, SEASONALLY-PARAMETERISED READING FOR
// DEVELOPMENT AND TESTS
type SimulatedBackend struct {
	mu          sync.Mutex
	BaseTempC   float64
	BaseRHPct   float64
	BasePressureHPa float64
	RainMM24h   float64
}

func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{BaseTempC: 22, BaseRHPct: 55, BasePressureHPa: 1013, RainMM24h: 0}
}

func (b *SimulatedBackend) Read() (RawReading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	hourFrac := float64(now.Hour()) + float64(now.Minute())/60
	diurnalSwing := 6 * math.Sin((hourFrac-6)/24*2*math.Pi)
	mean := b.BaseTempC + diurnalSwing
	return RawReading{
		TempMeanC: mean, TempMinC: mean - 4, TempMaxC: mean + 4,
		RHPct: b.BaseRHPct, PressureHPa: b.BasePressureHPa, RainMM24h: b.RainMM24h,
		TakenAt: now,
	}, nil
}

// SETRAIN LETS TESTS AND THE API SIMULATE A RAIN EVENT
func (b *SimulatedBackend) SetRain(mm float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RainMM24h = mm
}

// VALIDATION RANGES, SPEC_FULL.MD §4.10
const (
	tempMin, tempMax         = -50.0, 70.0
	rhMin, rhMax             = 0.0, 100.0
	pressureMin, pressureMax = 800.0, 1200.0
	rainMin, rainMax         = 0.0, 500.0
)

// READER PRODUCES VALIDATED, CALIBRATED EnvSample VALUES
type Reader struct {
	mu            sync.Mutex
	backend       Backend
	fallback      Backend
	maxSensorAge  time.Duration
	tempOffsetC   float64
	logger        *utils.Logger

	last     models.EnvSample
	lastRead time.Time
}

// NEWREADER BUILDS A READER OVER backend, FALLING BACK TO A SEASONALLY-SANE SAMPLE WHEN
// backend.Read FAILS.
func NewReader(backend Backend, maxSensorAge time.Duration, tempOffsetC float64) *Reader {
	if maxSensorAge <= 0 {
		maxSensorAge = 30 * time.Minute
	}
	return &Reader{
		backend: backend, fallback: NewSimulatedBackend(),
		maxSensorAge: maxSensorAge, tempOffsetC: tempOffsetC, logger: utils.GetLogger(),
	}
}

// SAMPLE RETURNS A FRESH, VALIDATED EnvSample. ON BACKEND ERROR, FALLS BACK TO A CONSERVATIVE
// SYNTHETIC READING WITH data_quality_pct = 60 AND ALL FIELDS MARKED VALID.
func (r *Reader) Sample() models.EnvSample {
	raw, err := r.backend.Read()
	quality := 100
	if err != nil {
		r.logger.Warn("environment: primary backend failed, using fallback", map[string]any{"error": err.Error()})
		raw, _ = r.fallback.Read()
		quality = 60
	}

	if time.Since(raw.TakenAt) > r.maxSensorAge {
		r.logger.Warn("environment: reading stale, using fallback", map[string]any{"age": time.Since(raw.TakenAt).String()})
		raw, _ = r.fallback.Read()
		quality = 60
	}

	sample := models.EnvSample{
		TimestampEpoch: time.Now().Unix(),
		ValidityFlags:  make(map[models.EnvField]bool),
	}

	validTemp := inRange(raw.TempMeanC, tempMin, tempMax) && inRange(raw.TempMinC, tempMin, tempMax) && inRange(raw.TempMaxC, tempMin, tempMax)
	sample.ValidityFlags[models.FieldTempMean] = validTemp
	sample.ValidityFlags[models.FieldTempMin] = validTemp
	sample.ValidityFlags[models.FieldTempMax] = validTemp
	if validTemp {
		// TEMPERATURE OFFSET CALIBRATION APPLIES ONLY TO FIELDS THAT VALIDATED (OPEN QUESTION 2)
		sample.TempMeanC = raw.TempMeanC + r.tempOffsetC
		sample.TempMinC = raw.TempMinC + r.tempOffsetC
		sample.TempMaxC = raw.TempMaxC + r.tempOffsetC
	} else {
		sample.TempMeanC, sample.TempMinC, sample.TempMaxC = raw.TempMeanC, raw.TempMinC, raw.TempMaxC
	}

	sample.ValidityFlags[models.FieldRH] = inRange(raw.RHPct, rhMin, rhMax)
	sample.RHPct = raw.RHPct

	sample.ValidityFlags[models.FieldPressure] = inRange(raw.PressureHPa, pressureMin, pressureMax)
	sample.PressureHPa = raw.PressureHPa

	sample.ValidityFlags[models.FieldRain24h] = inRange(raw.RainMM24h, rainMin, rainMax)
	sample.RainMM24h = raw.RainMM24h

	sample.Derived = deriveHumidity(sample.TempMeanC, sample.RHPct)
	sample.DataQualityPct = quality

	r.mu.Lock()
	r.last = sample
	r.lastRead = time.Now()
	r.mu.Unlock()

	return sample
}

// LAST RETURNS THE MOST RECENTLY COMPUTED SAMPLE WITHOUT RE-READING THE BACKEND
func (r *Reader) Last() (models.EnvSample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastRead.IsZero() {
		return models.EnvSample{}, false
	}
	return r.last, true
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// DERIVEHUMIDITY COMPUTES SATURATION/ACTUAL VAPOR PRESSURE AND DEWPOINT FROM THE TETENS FORMULA.
// C9'S HARGREAVES ETO CALCULATION DOES NOT USE THESE VALUES.
func deriveHumidity(tempC, rhPct float64) models.EnvDerived {
	vpSat := 0.6108 * math.Exp(17.27*tempC/(tempC+237.3))
	vpActual := vpSat * rhPct / 100
	var dewpoint float64
	if vpActual > 0 {
		lnVp := math.Log(vpActual / 0.6108)
		dewpoint = 237.3 * lnVp / (17.27 - lnVp)
	}
	return models.EnvDerived{VPSatKPa: vpSat, VPActualKPa: vpActual, DewpointC: dewpoint}
}
