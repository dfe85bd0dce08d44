package models

// SYSTEMSTATE IS THE EXECUTOR'S STATE MACHINE POSITION (§4.5)
type SystemState string

const (
	StateIdle          SystemState = "IDLE"
	StateWatering      SystemState = "WATERING"
	StatePaused        SystemState = "PAUSED"
	StateErrorRecovery SystemState = "ERROR_RECOVERY"
)

// SYSTEMSTATUS IS THE HEALTH ANNOTATION LAYERED ON TOP OF SYSTEMSTATE (§4.11)
type SystemStatus string

const (
	StatusOK              SystemStatus = "OK"
	StatusFault           SystemStatus = "FAULT"
	StatusNoFlow          SystemStatus = "NO_FLOW"
	StatusUnexpectedFlow  SystemStatus = "UNEXPECTED_FLOW"
	StatusLocked          SystemStatus = "LOCKED"
	StatusLowPower        SystemStatus = "LOW_POWER"
)

// POWERMODE CONTROLS SCHEDULER AND SENSOR POLLING CADENCE (§4.11)
type PowerMode string

const (
	PowerNormal      PowerMode = "NORMAL"
	PowerEnergySaving PowerMode = "ENERGY_SAVING"
	PowerUltraLow    PowerMode = "ULTRA_LOW"
)

// TASKLIFECYCLEPHASE TAGS A TASKLIFECYCLE EVENT (§6 OUTPUTS)
type TaskLifecyclePhase string

const (
	PhaseStarted   TaskLifecyclePhase = "STARTED"
	PhaseCompleted TaskLifecyclePhase = "COMPLETED"
	PhaseAborted   TaskLifecyclePhase = "ABORTED"
	PhaseSkipped   TaskLifecyclePhase = "SKIPPED"
)

// TASKLIFECYCLEEVENT IS EMITTED ON EVERY TASK PHASE TRANSITION
type TaskLifecycleEvent struct {
	ID            string             `json:"id"`
	Phase         TaskLifecyclePhase `json:"phase"`
	ChannelID     int                `json:"channelId"`
	TaskID        string             `json:"taskId"`
	RequestedML   float64            `json:"requestedMl,omitempty"`
	DeliveredML   float64            `json:"deliveredMl,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	TimestampEpoch int64             `json:"timestampEpoch"`
}

// HYDRAULICLOCKSCOPEKIND TAGS WHETHER A LOCK CHANGE IS CHANNEL- OR GLOBAL-SCOPED
type HydraulicLockScopeKind string

const (
	ScopeChannel HydraulicLockScopeKind = "CHANNEL"
	ScopeGlobal  HydraulicLockScopeKind = "GLOBAL"
)

// HYDRAULICLOCKCHANGEDEVENT IS EMITTED WHEN A LOCK IS SET OR CLEARED
type HydraulicLockChangedEvent struct {
	ID              string                 `json:"id"`
	Scope           HydraulicLockScopeKind `json:"scope"`
	ChannelID       int                    `json:"channelId,omitempty"`
	Level           LockLevel              `json:"level"`
	Reason          LockReason             `json:"reason,omitempty"`
	RetryAfterEpoch int64                  `json:"retryAfterEpoch,omitempty"`
	TimestampEpoch  int64                  `json:"timestampEpoch"`
}

// CONSTRAINTAPPLIEDEVENT IS EMITTED WHEN THE AUTO SCHEDULER CLAMPS A CALCULATED VOLUME
type ConstraintAppliedEvent struct {
	ID             string  `json:"id"`
	ChannelID      int     `json:"channelId"`
	CalculatedL    float64 `json:"calculatedL"`
	CappedL        float64 `json:"cappedL"`
	Mode           WateringMode `json:"mode"`
	TimestampEpoch int64   `json:"timestampEpoch"`
}

// SYSTEMSTATUSCHANGEDEVENT IS EMITTED ON EVERY STATUS TRANSITION
type SystemStatusChangedEvent struct {
	ID             string       `json:"id"`
	Status         SystemStatus `json:"status"`
	TimestampEpoch int64        `json:"timestampEpoch"`
}

// FLOWUPDATEEVENT IS THE THROTTLED PULSE-COUNT NOTIFICATION FROM C1 (§4.1)
type FlowUpdateEvent struct {
	CumulativePulses uint32 `json:"cumulativePulses"`
	TimestampEpoch   int64  `json:"timestampEpoch"`
}
