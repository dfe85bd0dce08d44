// PACKAGE EXECUTOR IMPLEMENTS C5, THE SINGLE-TASK STATE MACHINE.
//
// GROUNDED ON internal/scraper/executor.go'S JobExecutor/JobManager PAIR: ONE EXECUTOR PER UNIT
// OF WORK THERE (A SCRAPE JOB) GENERALIZES HERE TO ONE EXECUTOR FOR THE WHOLE CONTROLLER, RUNNING
// AT MOST ONE TASK AT A TIME (SPEC_FULL.MD §4.5). THE monitorStatus TICKER LOOP AND THE
// sync.Once-BACKED SINGLETON ACCESSOR (GetJobManager) ARE BOTH REUSED IN SHAPE.
package executor

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/pulse"
	"github.com/nickheyer/Crepes/internal/raincomp"
	"github.com/nickheyer/Crepes/internal/utils"
	"github.com/nickheyer/Crepes/internal/valve"
)

// HISTORYRECORDER PERSISTS COMPLETED-TASK OUTCOMES. IMPLEMENTED BY internal/storage IN THE
// ASSEMBLED CONTROLLER; KEPT AS AN INTERFACE HERE SO EXECUTOR DOES NOT IMPORT STORAGE.
type HistoryRecorder interface {
	RecordTaskLifecycle(evt models.TaskLifecycleEvent)
}

// RAINLOOKUP RESOLVES RECENT RAINFALL FOR C8; SUPPLIED BY THE ENVIRONMENT READER
type RainLookup func(lookbackHours int) (mm float64, dataQuality float64)

// EXECUTOR RUNS ONE TASK AT A TIME AGAINST THE SHARED CHANNEL STORE, VALVE DRIVER, AND PULSE
// COUNTER. STATE TRANSITIONS ARE SERIALIZED BY mu; THE RUN LOOP ITSELF EXECUTES ON THE
// GOROUTINE THAT CALLS RunTask.
type Executor struct {
	mu    sync.RWMutex
	state models.SystemState

	store   *channelstore.Store
	valves  *valve.Driver
	pulses  *pulse.Counter
	history HistoryRecorder
	rain    RainLookup
	logger  *utils.Logger

	cfg Config

	current   *models.TaskRunState
	stopCh    chan struct{}
	abortCh   chan string // REASON
	pauseCh   chan struct{}
	resumeCh  chan struct{}
	doneCh    chan struct{} // CLOSED WHEN THE ACTIVE RUN LOOP EXITS

	noFlowAttempts int
	globalFault    bool
}

// CONFIG CARRIES THE TIMING CONSTANTS THE EXECUTOR NEEDS, SOURCED FROM internal/config.
type Config struct {
	DefaultPulsesPerLiter uint32
	PauseMax              time.Duration
	HardCapExtraSec       int
}

func NewExecutor(store *channelstore.Store, valves *valve.Driver, pulses *pulse.Counter,
	history HistoryRecorder, rain RainLookup, cfg Config) *Executor {
	if cfg.HardCapExtraSec == 0 {
		cfg.HardCapExtraSec = 60
	}
	return &Executor{
		state:   models.StateIdle,
		store:   store,
		valves:  valves,
		pulses:  pulses,
		history: history,
		rain:    rain,
		logger:  utils.GetLogger(),
		cfg:     cfg,
	}
}

// STATE RETURNS THE CURRENT SYSTEM STATE
func (e *Executor) State() models.SystemState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// CURRENTTASK RETURNS THE TASK RUN STATE CURRENTLY IN FLIGHT, IF ANY
func (e *Executor) CurrentTask() (models.TaskRunState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return models.TaskRunState{}, false
	}
	return *e.current, true
}

func (e *Executor) setState(next models.SystemState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !legalTransition(e.state, next) {
		return utils.NewControllerError(utils.ErrInvalidTransitn,
			fmt.Sprintf("cannot transition %s -> %s", e.state, next), -1)
	}
	e.state = next
	return nil
}

func legalTransition(from, to models.SystemState) bool {
	if to == models.StateErrorRecovery {
		return true // ANY STATE MAY FAULT
	}
	switch from {
	case models.StateIdle:
		return to == models.StateWatering
	case models.StateWatering:
		return to == models.StateIdle || to == models.StatePaused
	case models.StatePaused:
		return to == models.StateWatering || to == models.StateIdle
	case models.StateErrorRecovery:
		return to == models.StateIdle
	}
	return false
}

// RUNTASK DRIVES ONE TASK THROUGH ITS FULL LIFECYCLE. BLOCKS UNTIL TERMINATION (COMPLETE, ABORT,
// OR SKIP). THE CONTROLLER'S DISPATCH LOOP CALLS IT SYNCHRONOUSLY, ONE DEQUEUED TASK AT A TIME.
// IF THE EXECUTOR ENTERED ERROR_RECOVERY WHILE THE TASK RAN, IT STAYS THERE ON RETURN.
func (e *Executor) RunTask(task *models.Task) error {
	ch, err := e.store.Get(task.ChannelID)
	if err != nil {
		e.emitLifecycle(task, models.PhaseSkipped, ch, 0, 0, "invalid channel")
		return err
	}

	now := time.Now()
	hardLocked := ch.Lock.Level == models.LockHard
	softLocked := ch.Lock.Level == models.LockSoft && ch.Lock.IsLockedAt(now)
	if hardLocked || (softLocked && !task.ManualOverride) {
		e.emitLifecycle(task, models.PhaseSkipped, ch, 0, 0, "channel locked")
		return nil
	}
	if task.Trigger == models.TriggerScheduled && !ch.IsAutoValid() {
		e.emitLifecycle(task, models.PhaseSkipped, ch, 0, 0, "channel not auto-valid")
		return nil
	}

	durationMin := task.DurationMin
	volumeLiters := task.VolumeLiters
	skipped := false
	var impact raincomp.Impact

	if e.rain != nil && ch.RainCompensation.Enabled {
		switch task.Mode {
		case models.ModeByDuration:
			durationMin, skipped, impact = raincomp.ApplyToDuration(ch.RainCompensation, raincomp.RainLookup(e.rain), durationMin)
		default:
			volumeLiters, skipped, impact = raincomp.ApplyToVolume(ch.RainCompensation, raincomp.RainLookup(e.rain), volumeLiters)
		}
		e.logger.Info("rain compensation evaluated", map[string]any{
			"channelId": ch.ID, "rawMm": impact.RawMM, "effectiveMm": impact.EffectiveMM,
			"reductionPct": impact.ReductionPct, "skip": impact.Skip,
		})
	}
	if skipped {
		e.emitLifecycle(task, models.PhaseSkipped, ch, 0, 0, "rain compensation")
		return nil
	}

	pulsesPerLiter := ch.EffectivePulsesPerLiter(e.cfg.DefaultPulsesPerLiter)

	e.mu.Lock()
	run := &models.TaskRunState{Task: task, StartEpoch: time.Now().Unix()}
	switch task.Mode {
	case models.ModeByVolume:
		run.TargetPulses = uint32(math.Ceil(volumeLiters * float64(pulsesPerLiter)))
		expectedSec := expectedDurationSeconds(volumeLiters, ch.NominalFlowMLPerMin)
		run.HardCapEpoch = run.StartEpoch + int64(2*expectedSec) + int64(e.cfg.HardCapExtraSec)
	}
	e.current = run
	e.stopCh = make(chan struct{})
	e.abortCh = make(chan string, 1)
	e.pauseCh = make(chan struct{}, 1)
	e.resumeCh = make(chan struct{}, 1)
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	if err := e.setState(models.StateWatering); err != nil {
		return err
	}
	e.pulses.Reset()
	if err := e.valves.Open(ch.ValveHandle); err != nil {
		_ = e.setState(models.StateIdle)
		e.emitLifecycle(task, models.PhaseAborted, ch, volumeLiters, 0, "valve open failed")
		return err
	}

	outcome, reason := e.waitForTermination(task, ch, durationMin)

	_ = e.valves.Close(ch.ValveHandle)
	deliveredPulses := e.pulses.Get()
	deliveredMl := float64(deliveredPulses) / float64(pulsesPerLiter) * 1000

	e.mu.Lock()
	e.current = nil
	close(e.doneCh)
	faulted := e.state == models.StateErrorRecovery
	e.mu.Unlock()
	if !faulted {
		_ = e.setState(models.StateIdle)
	}

	requestedMl := volumeLiters * 1000
	if task.Mode == models.ModeByDuration {
		requestedMl = 0
	}

	phase := models.PhaseCompleted
	if outcome == models.OutcomeAborted {
		phase = models.PhaseAborted
	}
	e.emitLifecycleReason(task, phase, ch, requestedMl, deliveredMl, reason)

	_, _ = e.store.Update(ch.ID, func(c *models.Channel) error {
		c.LastWateringEpoch = time.Now().Unix()
		if outcome == models.OutcomeFlowUnderDelivery {
			c.ErrorCount++
		}
		return nil
	})

	return nil
}

func expectedDurationSeconds(liters float64, nominalMlPerMin float64) float64 {
	if nominalMlPerMin <= 0 {
		return 600 // CONSERVATIVE FALLBACK WHEN THE CHANNEL HAS NO FLOW RATING
	}
	return liters * 1000 / nominalMlPerMin * 60
}

// WAITFORTERMINATION BLOCKS UNTIL THE TASK'S TERMINATION CONDITION IS MET, HANDLING PAUSE/RESUME
// AND EXTERNAL ABORT SIGNALS. RETURNS THE OUTCOME AND A HUMAN-READABLE REASON.
func (e *Executor) waitForTermination(task *models.Task, ch models.Channel, durationMin int) (models.TaskOutcome, string) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case reason := <-e.abortCh:
			return models.OutcomeAborted, reason

		case <-e.pauseCh:
			e.handlePause(ch)
			var pauseDeadline <-chan time.Time
			if e.cfg.PauseMax > 0 {
				pauseDeadline = time.After(e.cfg.PauseMax)
			}
			select {
			case <-e.resumeCh:
				e.mu.Lock()
				if e.current != nil {
					pausedSec := time.Now().Unix() - e.current.PausedAtEpoch
					e.current.StartEpoch += pausedSec
				}
				e.mu.Unlock()
				_ = e.valves.Open(ch.ValveHandle)
				_ = e.setState(models.StateWatering)
			case reason := <-e.abortCh:
				return models.OutcomeAborted, reason
			case <-pauseDeadline:
				return models.OutcomeAborted, "pause exceeded PAUSE_MAX"
			}

		case <-ticker.C:
			e.mu.RLock()
			run := e.current
			e.mu.RUnlock()
			if run == nil {
				return models.OutcomeAborted, "task run state lost"
			}
			if run.Paused {
				continue
			}

			switch task.Mode {
			case models.ModeByDuration:
				if time.Since(time.Unix(run.StartEpoch, 0)) >= time.Duration(durationMin)*time.Minute {
					return models.OutcomeCompleted, "duration elapsed"
				}
			default:
				if e.pulses.Get() >= run.TargetPulses {
					return models.OutcomeCompleted, "volume delivered"
				}
				if run.HardCapEpoch > 0 && time.Now().Unix() >= run.HardCapEpoch {
					return models.OutcomeFlowUnderDelivery, "hard time cap reached"
				}
			}
		}
	}
}

func (e *Executor) handlePause(ch models.Channel) {
	_ = e.valves.Close(ch.ValveHandle)
	_ = e.setState(models.StatePaused)
	e.mu.Lock()
	if e.current != nil {
		e.current.Paused = true
		e.current.PausedAtEpoch = time.Now().Unix()
		e.current.PulsesAtPause = e.pulses.Get()
	}
	e.mu.Unlock()
}

// PAUSE REQUESTS A PAUSE OF THE ACTIVE TASK. RETURNS AN InvalidTransition ERROR IF STATE IS NOT WATERING.
func (e *Executor) Pause() error {
	if e.State() != models.StateWatering {
		return utils.NewControllerError(utils.ErrInvalidTransitn, "no active watering task to pause", -1)
	}
	select {
	case e.pauseCh <- struct{}{}:
	default:
	}
	return nil
}

// RESUME REQUESTS RESUMPTION OF A PAUSED TASK
func (e *Executor) Resume() error {
	if e.State() != models.StatePaused {
		return utils.NewControllerError(utils.ErrInvalidTransitn, "no paused task to resume", -1)
	}
	e.mu.Lock()
	if e.current != nil {
		e.current.Paused = false
	}
	e.mu.Unlock()
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
	return nil
}

// ABORT TERMINATES THE ACTIVE TASK WITH THE GIVEN REASON
func (e *Executor) Abort(reason string) {
	select {
	case e.abortCh <- reason:
	default:
	}
}

// ISACTIVE REPORTS WHETHER A TASK IS CURRENTLY IN FLIGHT (WATERING OR PAUSED)
func (e *Executor) IsActive() bool {
	s := e.State()
	return s == models.StateWatering || s == models.StatePaused
}

func (e *Executor) emitLifecycle(task *models.Task, phase models.TaskLifecyclePhase, ch models.Channel, reqMl, delMl float64, reason string) {
	e.emitLifecycleReason(task, phase, ch, reqMl, delMl, reason)
}

func (e *Executor) emitLifecycleReason(task *models.Task, phase models.TaskLifecyclePhase, ch models.Channel, reqMl, delMl float64, reason string) {
	evt := models.TaskLifecycleEvent{
		ID: task.ID, Phase: phase, ChannelID: ch.ID, TaskID: task.ID,
		RequestedML: reqMl, DeliveredML: delMl, Reason: reason, TimestampEpoch: time.Now().Unix(),
	}
	if e.history != nil {
		e.history.RecordTaskLifecycle(evt)
	}
	e.logger.Info("task lifecycle", map[string]any{
		"taskId": evt.TaskID, "channelId": evt.ChannelID, "phase": evt.Phase, "reason": evt.Reason,
	})
}

// ENTERERRORRECOVERY FORCES THE EXECUTOR TO FAULT STATE, ABORTING ANY ACTIVE TASK
func (e *Executor) EnterErrorRecovery() {
	if e.IsActive() {
		e.Abort("fault signal")
	}
	_ = e.setState(models.StateErrorRecovery)
}

// RECOVERFROMFAULT TRANSITIONS BACK TO IDLE AFTER CloseAll AND OPERATOR RESET. ALREADY IDLE IS
// NOT AN ERROR.
func (e *Executor) RecoverFromFault(valves *valve.Driver) error {
	_ = valves.CloseAll()
	if e.State() == models.StateIdle {
		return nil
	}
	return e.setState(models.StateIdle)
}

var (
	defaultExecutor     *Executor
	defaultExecutorOnce sync.Once
)

// INITSINGLETON ESTABLISHES THE PROCESS-WIDE EXECUTOR INSTANCE, MATCHING GetJobManager()'S
// sync.Once-GUARDED CONSTRUCTION.
func InitSingleton(store *channelstore.Store, valves *valve.Driver, pulses *pulse.Counter,
	history HistoryRecorder, rain RainLookup, cfg Config) *Executor {
	defaultExecutorOnce.Do(func() {
		defaultExecutor = NewExecutor(store, valves, pulses, history, rain, cfg)
	})
	return defaultExecutor
}

// GETEXECUTOR RETURNS THE SINGLETON EXECUTOR, OR NIL IF InitSingleton HAS NOT RUN
func GetExecutor() *Executor {
	return defaultExecutor
}
