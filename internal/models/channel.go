package models

import (
	"time"
)

// SCHEDULEKIND IS THE TAGGED VARIANT FOR A CHANNEL'S SCHEDULING EVENT
type ScheduleKind string

const (
	ScheduleDaily    ScheduleKind = "DAILY"
	SchedulePeriodic ScheduleKind = "PERIODIC"
	ScheduleAuto     ScheduleKind = "AUTO"
)

// WATERINGMODE IS THE TAGGED VARIANT FOR HOW A CHANNEL TERMINATES ITS WATERING
type WateringMode string

const (
	ModeByDuration   WateringMode = "BY_DURATION"
	ModeByVolume     WateringMode = "BY_VOLUME"
	ModeAutoQuality  WateringMode = "AUTO_QUALITY"
	ModeAutoEco      WateringMode = "AUTO_ECO"
)

// PLANTCATEGORY IS THE MAIN TAXONOMY GROUP FOR A CHANNEL'S CROP
type PlantCategory string

const (
	PlantVegetable PlantCategory = "VEGETABLE"
	PlantFruit     PlantCategory = "FRUIT"
	PlantFlower    PlantCategory = "FLOWER"
	PlantLawn      PlantCategory = "LAWN"
	PlantTree      PlantCategory = "TREE"
	PlantOther     PlantCategory = "OTHER"
)

// IRRIGATIONMETHOD DRIVES THE EFFICIENCY FACTOR USED BY THE AUTO SCHEDULER
type IrrigationMethod string

const (
	MethodDrip      IrrigationMethod = "DRIP"
	MethodSprinkler IrrigationMethod = "SPRINKLER"
	MethodMicroSpray IrrigationMethod = "MICRO_SPRAY"
	MethodFlood     IrrigationMethod = "FLOOD"
)

// SCHEDULEEVENT DESCRIBES WHEN A CHANNEL IS DUE TO RUN
type ScheduleEvent struct {
	Kind ScheduleKind `json:"kind"`

	// DAILY
	DowMask   uint8  `json:"dowMask,omitempty"`   // BIT i SET => WEEKDAY i (0=SUNDAY) IS ACTIVE
	StartHHMM string `json:"startHhmm,omitempty"` // "HH:MM" 24H LOCAL TIME

	// PERIODIC
	IntervalDays int    `json:"intervalDays,omitempty"`
	LastRunDate  string `json:"lastRunDate,omitempty"` // "YYYY-MM-DD"

	AutoEnabled bool `json:"autoEnabled"`
}

// LOCKLEVEL IS THE SEVERITY OF A HYDRAULIC LOCK
type LockLevel string

const (
	LockNone LockLevel = "NONE"
	LockSoft LockLevel = "SOFT"
	LockHard LockLevel = "HARD"
)

// LOCKREASON IS THE TAGGED CAUSE OF A HYDRAULIC LOCK
type LockReason string

const (
	ReasonNone           LockReason = ""
	ReasonNoFlow         LockReason = "NO_FLOW"
	ReasonUnexpectedFlow LockReason = "UNEXPECTED_FLOW"
	ReasonOperator       LockReason = "OPERATOR"
	ReasonGeneric        LockReason = "GENERIC"
)

// HYDRAULICLOCK IS THE SHARED SHAPE FOR BOTH PER-CHANNEL AND GLOBAL LOCKS
type HydraulicLock struct {
	Level          LockLevel  `json:"level"`
	Reason         LockReason `json:"reason,omitempty"`
	LockedAtEpoch  int64      `json:"lockedAtEpoch,omitempty"`
	RetryAfterEpoch int64     `json:"retryAfterEpoch,omitempty"`
}

// ISLOCKEDAT REPORTS WHETHER THE LOCK BLOCKS AN OPERATION AT TIME NOW
func (l HydraulicLock) IsLockedAt(now time.Time) bool {
	switch l.Level {
	case LockHard:
		return true
	case LockSoft:
		return now.Unix() < l.RetryAfterEpoch
	default:
		return false
	}
}

// RAINCOMPENSATIONCONFIG IS THE PER-CHANNEL RAIN-COMPENSATION POLICY (C8 INPUT)
type RainCompensationConfig struct {
	Enabled         bool    `json:"enabled"`
	SensitivityPct  float64 `json:"sensitivityPct"`  // 0..100
	SkipThresholdMM float64 `json:"skipThresholdMm"`
	ReductionFactor float64 `json:"reductionFactor"` // 0..1
	LookbackHours   int     `json:"lookbackHours"`
}

// CUSTOMPLANT HOLDS OVERRIDES FOR PLANT_CATEGORY == OTHER
type CustomPlant struct {
	Name            string  `json:"name"`
	WaterNeedFactor float64 `json:"waterNeedFactor"` // MUST BE IN [0.1, 5.0]
}

// CHANNEL IS ONE IRRIGATION ZONE: ITS VALVE, CROP/SITE PARAMETERS, AND RUNTIME STATE
type Channel struct {
	ID          int    `json:"id"`
	DisplayName string `json:"displayName"` // <= 32 CHARS
	ValveHandle int    `json:"valveHandle"` // OPAQUE BINDING PASSED TO THE VALVE DRIVER

	Schedule     ScheduleEvent `json:"schedule"`
	WateringMode WateringMode  `json:"wateringMode"`
	DurationMin  int           `json:"durationMin,omitempty"`  // WHEN WateringMode == ModeByDuration
	VolumeLiters int           `json:"volumeLiters,omitempty"` // WHEN WateringMode == ModeByVolume

	// CROP & SITE
	PlantCategory    PlantCategory `json:"plantCategory"`
	PlantVariant     string        `json:"plantVariant"`
	PlantIndex       int           `json:"plantIndex"` // ROM INDEX, OR -1 WHEN CUSTOM_PLANT_ID IS SET
	CustomPlantID    string        `json:"customPlantId,omitempty"`
	CustomPlant      *CustomPlant  `json:"customPlant,omitempty"`
	SoilIndex        int           `json:"soilIndex"` // -1 == UNSET
	SunExposurePct   float64       `json:"sunExposurePct"`
	LatitudeDeg      float64       `json:"latitudeDeg"`
	PlantingEpoch    int64         `json:"plantingEpoch"` // UNIX SECONDS, 0 == UNSET
	DaysAfterPlanting int          `json:"daysAfterPlanting"`

	IrrigationMethod IrrigationMethod `json:"irrigationMethod"`

	// COVERAGE
	UseAreaBased bool    `json:"useAreaBased"`
	AreaM2       float64 `json:"areaM2"`
	PlantCount   int     `json:"plantCount"`

	// HYDRAULIC PARAMETERS
	NominalFlowMLPerMin float64 `json:"nominalFlowMlPerMin"`
	PulsesPerLiter      uint32  `json:"pulsesPerLiter"` // 0 == USE GLOBAL CALIBRATION
	MaxVolumeLimitL     float64 `json:"maxVolumeLimitL"` // 0 == NO LIMIT

	RainCompensation RainCompensationConfig `json:"rainCompensation"`

	LastWateringEpoch int64 `json:"lastWateringEpoch"`
	ErrorCount        int   `json:"errorCount"`

	Lock HydraulicLock `json:"lock"`

	// MANUAL OVERRIDE WINDOW (C7) — NOT PERSISTED
	OverrideUntilEpoch int64 `json:"-"`
}

// SNAPSHOT RETURNS A DEEP COPY OF THE CHANNEL SAFE TO READ WITHOUT HOLDING THE STORE LOCK.
// THE CHANNEL STORE TAKES ITS COARSE MUTEX AROUND THE CALL TO SNAPSHOT, NOT AROUND USE OF
// THE RESULT — CALLERS NEVER HOLD A LIVE POINTER INTO THE STORE (SPEC_FULL.MD §9).
func (c *Channel) Snapshot() Channel {
	cp := *c
	if c.CustomPlant != nil {
		custom := *c.CustomPlant
		cp.CustomPlant = &custom
	}
	return cp
}

// HASCOVERAGE REPORTS WHETHER THE CHANNEL HAS A VALID COVERAGE CONFIGURATION
func (c *Channel) HasCoverage() bool {
	if c.UseAreaBased {
		return c.AreaM2 > 0
	}
	return c.PlantCount > 0
}

// PLANTRESOLVABLE REPORTS WHETHER THE CHANNEL'S PLANT CAN BE LOOKED UP
func (c *Channel) PlantResolvable() bool {
	if c.PlantCategory == PlantOther {
		return c.CustomPlant != nil &&
			c.CustomPlant.WaterNeedFactor >= 0.1 &&
			c.CustomPlant.WaterNeedFactor <= 5.0
	}
	return c.PlantIndex >= 0 || c.CustomPlantID != ""
}

// ISAUTOVALID IMPLEMENTS THE AUTO-VALIDITY PREDICATE FROM SPEC_FULL.MD §3
func (c *Channel) IsAutoValid() bool {
	return c.PlantResolvable() &&
		c.SoilIndex >= 0 &&
		c.PlantingEpoch != 0 &&
		c.HasCoverage()
}

// EFFECTIVEPULSESPERLITER RETURNS THE CHANNEL CALIBRATION, FALLING BACK TO THE GLOBAL VALUE
func (c *Channel) EffectivePulsesPerLiter(globalDefault uint32) uint32 {
	if c.PulsesPerLiter > 0 {
		return c.PulsesPerLiter
	}
	return globalDefault
}

// NEWDEFAULTCHANNEL RETURNS A CHANNEL RECORD WITH SAFE ZERO-STATE DEFAULTS
func NewDefaultChannel(id int) *Channel {
	return &Channel{
		ID:                  id,
		DisplayName:         "",
		ValveHandle:         id,
		WateringMode:        ModeByDuration,
		PlantCategory:       PlantOther,
		PlantIndex:          -1,
		SoilIndex:           -1,
		IrrigationMethod:    MethodDrip,
		UseAreaBased:        true,
		NominalFlowMLPerMin: 2000,
		Lock:                HydraulicLock{Level: LockNone},
	}
}
