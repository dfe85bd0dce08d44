package models

import "time"

// TASKTRIGGER IS THE TAGGED ORIGIN OF A TASK
type TaskTrigger string

const (
	TriggerManual       TaskTrigger = "MANUAL"
	TriggerScheduled    TaskTrigger = "SCHEDULED"
	TriggerRemoteCommand TaskTrigger = "REMOTE_COMMAND"
)

// TASKOUTCOME IS THE TERMINAL RESULT OF A TASK
type TaskOutcome string

const (
	OutcomeCompleted       TaskOutcome = "COMPLETED"
	OutcomeAborted         TaskOutcome = "ABORTED"
	OutcomeSkipped         TaskOutcome = "SKIPPED"
	OutcomeFlowUnderDelivery TaskOutcome = "FLOW_UNDER_DELIVERY"
)

// TASK IS A SINGLE REQUEST TO WATER ONE CHANNEL WITH A SPECIFIED TERMINATION CRITERION.
// TASKS CARRY CHANNEL_ID RATHER THAN A POINTER INTO THE CHANNEL STORE (SPEC_FULL.MD §9) —
// THE EXECUTOR RESOLVES THE RECORD THROUGH THE STORE ON EVERY ACCESS.
type Task struct {
	ID          string       `json:"id"`
	ChannelID   int          `json:"channelId"`
	Trigger     TaskTrigger  `json:"trigger"`
	Mode        WateringMode `json:"mode"` // ModeByDuration OR ModeByVolume ONLY
	DurationMin int          `json:"durationMin,omitempty"`
	VolumeLiters float64     `json:"volumeLiters,omitempty"`
	EnqueueEpoch int64       `json:"enqueueEpoch"`

	// SET BY Controller.EnqueueManual WHILE THE CHANNEL'S MANUAL-OVERRIDE WINDOW IS ACTIVE; BYPASSES SOFT LOCKS ON ENQUEUE (§4.4)
	ManualOverride bool `json:"manualOverride,omitempty"`
}

// NEWTASK CREATES A TASK STAMPED WITH THE CURRENT TIME
func NewTask(id string, channelID int, trigger TaskTrigger, mode WateringMode) *Task {
	return &Task{
		ID:           id,
		ChannelID:    channelID,
		Trigger:      trigger,
		Mode:         mode,
		EnqueueEpoch: time.Now().Unix(),
	}
}

// TASKRUNSTATE IS THE EXECUTOR'S VIEW OF AN IN-FLIGHT TASK
type TaskRunState struct {
	Task *Task

	StartEpoch    int64
	TargetPulses  uint32 // FOR ModeByVolume
	HardCapEpoch  int64  // FOR ModeByVolume: max_volume_duration DEADLINE

	Paused           bool
	PausedAtEpoch    int64
	ElapsedMsAtPause int64
	PulsesAtPause    uint32
}
