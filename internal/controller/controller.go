// PACKAGE CONTROLLER ASSEMBLES ALL COMPONENTS (C1-C11) INTO THE RUNNING IRRIGATION CONTROLLER.
//
// GROUNDED ON cmd/Crepes/main.go'S WIRING STYLE (CONFIG LOAD → STORAGE INIT → SCHEDULER INIT →
// ROUTER MOUNT → GRACEFUL SHUTDOWN), REASSEMBLED HERE AROUND A SINGLE Controller STRUCT THAT
// HOLDS EVERY SUBSYSTEM REFERENCE INSTEAD OF THE TEACHER'S PACKAGE-LEVEL GLOBALS — C1-C11 DO NOT
// USE SINGLETONS (EXCEPT THE EXECUTOR, WHICH MIRRORS GetJobManager() PER SPEC_FULL.MD §4.5).
package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/nickheyer/Crepes/internal/autoscheduler"
	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/config"
	"github.com/nickheyer/Crepes/internal/coordinator"
	"github.com/nickheyer/Crepes/internal/environment"
	"github.com/nickheyer/Crepes/internal/executor"
	"github.com/nickheyer/Crepes/internal/flowmonitor"
	"github.com/nickheyer/Crepes/internal/hydraulics"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/power"
	"github.com/nickheyer/Crepes/internal/pulse"
	"github.com/nickheyer/Crepes/internal/storage"
	"github.com/nickheyer/Crepes/internal/taskqueue"
	"github.com/nickheyer/Crepes/internal/utils"
	"github.com/nickheyer/Crepes/internal/valve"
)

// CONTROLLER HOLDS EVERY WIRED SUBSYSTEM
type Controller struct {
	Cfg *config.Config

	Store     *channelstore.Store
	Valves    *valve.Driver
	Pulses    *pulse.Counter
	Queue     *taskqueue.Queue
	Executor  *executor.Executor
	Monitor   *flowmonitor.Monitor
	Locks     *hydraulics.Manager
	EnvReader *environment.Reader
	AutoSched *autoscheduler.Scheduler
	Coord     *coordinator.Coordinator
	DB        *storage.Store

	logger *utils.Logger

	pulsesPerLiterDefault uint32

	dispatchCh chan *models.Task
	stopCh     chan struct{}
}

// NEW ASSEMBLES A CONTROLLER FROM cfg. valveBackend AND envBackend ARE SUPPLIED BY THE CALLER SO
// TESTS CAN SWAP IN SIMULATED IMPLEMENTATIONS (SPEC_FULL.MD §4.2, §4.10).
func New(cfg *config.Config, valveBackend valve.Backend, envBackend environment.Backend) (*Controller, error) {
	logger := utils.GetLogger()

	db, err := storage.Open(fmt.Sprintf("%s/%s", cfg.DataPath, cfg.DBFileName))
	if err != nil {
		return nil, fmt.Errorf("controller: open storage: %w", err)
	}

	store := channelstore.NewStore()
	if err := db.HydrateStore(store); err != nil {
		logger.Warn("controller: failed to hydrate channel store", map[string]any{"error": err.Error()})
	}

	globalLock, err := db.LoadGlobalLock()
	if err != nil {
		logger.Warn("controller: failed to load global lock", map[string]any{"error": err.Error()})
	}

	ppl, _, err := db.LoadCalibration(cfg.DefaultPulsesPerLiter)
	if err != nil {
		logger.Warn("controller: failed to load calibration", map[string]any{"error": err.Error()})
		ppl = cfg.DefaultPulsesPerLiter
	}

	valves := valve.NewDriver(valveBackend)
	pulses := pulse.NewCounter(cfg.DebounceInterval())
	queue := taskqueue.NewQueue(cfg.MaxQueueLen, store)
	loadGate := power.NewLoadGate(2 * time.Second)
	coord := coordinator.NewCoordinator(loadGate)

	locks := hydraulics.NewManager(store, func(s models.SystemStatus) { coord.SetStatus(s) })
	if globalLock.Level != models.LockNone {
		locks.SetGlobal(globalLock.Level, globalLock.Reason)
	}

	rainLookup := func(lookbackHours int) (float64, float64) {
		since := time.Now().Add(-time.Duration(lookbackHours) * time.Hour).Unix()
		mm, err := db.RainfallSince(since)
		if err != nil {
			return 0, 50
		}
		return mm, 100
	}

	exec := executor.InitSingleton(store, valves, pulses, db, rainLookup, executor.Config{
		DefaultPulsesPerLiter: ppl,
		PauseMax:              cfg.PauseMax(),
	})

	monitor := flowmonitor.NewMonitor(flowmonitor.Config{
		CheckInterval:           cfg.FlowCheckInterval(),
		MaxFlowErrorAttempts:    cfg.MaxFlowErrorAttempts,
		UnexpectedFlowThreshold: uint32(cfg.UnexpectedFlowThreshold),
		NoFlowRetryCooldown:     time.Duration(cfg.HydraulicNoFlowRetryCooldownS) * time.Second,
	}, store, exec, locks, pulses, func(s models.SystemStatus) { coord.SetStatus(s) }, func() {
		_ = valves.CloseAll()
	})

	envReader := environment.NewReader(envBackend, 30*time.Minute, 0)

	autosched := autoscheduler.NewScheduler(autoscheduler.Config{
		Interval: time.Duration(cfg.AutoCalcIntervalHours) * time.Hour,
		Enabled:  cfg.AutoCalcEnabled,
	}, store, queue, envReader, rainLookup, nil)

	c := &Controller{
		Cfg: cfg, Store: store, Valves: valves, Pulses: pulses, Queue: queue,
		Executor: exec, Monitor: monitor, Locks: locks, EnvReader: envReader,
		AutoSched: autosched, Coord: coord, DB: db, logger: logger,
		pulsesPerLiterDefault: ppl,
		dispatchCh:            make(chan *models.Task, 1),
		stopCh:                make(chan struct{}),
	}
	return c, nil
}

// START BEGINS ALL BACKGROUND LOOPS: THE FLOW MONITOR TICKER, THE AUTO SCHEDULER, THE LOCK-TICK
// SWEEP, AND THE TASK DISPATCH LOOP THAT DRAINS THE QUEUE INTO THE EXECUTOR ONE TASK AT A TIME.
func (c *Controller) Start() error {
	c.Monitor.Start()
	if err := c.AutoSched.Start(); err != nil {
		return fmt.Errorf("controller: start auto scheduler: %w", err)
	}
	go c.lockTickLoop()
	go c.dispatchLoop()
	return nil
}

// STOP HALTS ALL BACKGROUND LOOPS AND CLOSES ANY OPEN VALVE
func (c *Controller) Stop() {
	close(c.stopCh)
	c.Monitor.Stop()
	c.AutoSched.Stop()
	c.Pulses.Stop()
	_ = c.Valves.CloseAll()
	_ = c.DB.Close()
}

func (c *Controller) lockTickLoop() {
	ticker := time.NewTicker(c.Cfg.FlowCheckInterval())
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Locks.Tick()
		}
	}
}

// DISPATCHLOOP CONTINUOUSLY DEQUEUES PENDING TASKS AND RUNS THEM ONE AT A TIME THROUGH THE
// EXECUTOR, MATCHING THE TEACHER'S go executor.Execute() CALL SITE IN StartJob.
func (c *Controller) dispatchLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		if c.Executor.IsActive() {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		task, ok := c.Queue.Dequeue()
		if !ok {
			time.Sleep(200 * time.Millisecond)
			continue
		}

		if err := c.Executor.RunTask(task); err != nil {
			c.logger.Error("controller: task run failed", map[string]any{"taskId": task.ID, "error": err.Error()})
		}
		c.Queue.ClearCurrent()
	}
}

// ENQUEUEMANUAL CREATES AND ENQUEUES AN IMPLICIT MANUAL TASK FOR CHANNEL ON/OFF COMMANDS.
// THIS IS AN ORDINARY MANUAL TASK: IT HONORS ANY HARD OR SOFT LOCK ON THE CHANNEL, EXCEPT THAT
// WHILE A WINDOW OPENED THROUGH THE /hydraulics/channels/:id/override ENDPOINT (hydraulics.Manager.
// ManualOverride) IS ACTIVE, THE TASK CARRIES ManualOverride AND BYPASSES A SOFT LOCK (SPEC_FULL.MD §4.7).
func (c *Controller) EnqueueManual(channelID int, durationMin int) (taskqueue.Result, *models.Task) {
	task := models.NewTask(utils.GenerateID("task"), channelID, models.TriggerManual, models.ModeByDuration)
	task.DurationMin = durationMin
	if ch, err := c.Store.Get(channelID); err == nil && hydraulics.UnderOverride(ch, time.Now()) {
		task.ManualOverride = true
	}
	return c.Queue.Enqueue(task), task
}

// RESETFAULT IMPLEMENTS THE OPERATOR RESET PATH: CLEARS STICKY FAULT, CLOSES ALL VALVES, AND
// RESETS THE FLOW-ERROR COUNTER (SPEC_FULL.MD §4.11).
func (c *Controller) ResetFault(ctx context.Context) error {
	c.Coord.ResetFault()
	c.Monitor.ResetFault()
	return c.Executor.RecoverFromFault(c.Valves)
}

// SETCALIBRATION UPDATES AND PERSISTS THE GLOBAL PULSE-PER-LITER CALIBRATION
func (c *Controller) SetCalibration(pulsesPerLiter uint32) error {
	c.pulsesPerLiterDefault = pulsesPerLiter
	return c.DB.SaveCalibration(pulsesPerLiter, "UTC")
}

// CALIBRATION RETURNS THE CURRENT GLOBAL PULSE-PER-LITER CALIBRATION
func (c *Controller) Calibration() uint32 {
	return c.pulsesPerLiterDefault
}

// PERSISTCHANNEL WRITES ONE CHANNEL'S CURRENT CONFIGURATION THROUGH TO STORAGE, CALLED AFTER
// EVERY channelstore.Store.Update/Replace THAT SHOULD SURVIVE A RESTART.
func (c *Controller) PersistChannel(ch models.Channel) {
	if err := c.DB.PersistOne(ch); err != nil {
		c.logger.Warn("controller: failed to persist channel", map[string]any{"channelId": ch.ID, "error": err.Error()})
	}
}
