package flowmonitor

import (
	"sync"
	"testing"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/executor"
	"github.com/nickheyer/Crepes/internal/hydraulics"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/pulse"
	"github.com/nickheyer/Crepes/internal/valve"
)

func newTestMonitor(cfg Config) (*Monitor, *channelstore.Store, *executor.Executor, *pulse.Counter, *statusRecorder) {
	store := channelstore.NewStore()
	valves := valve.NewDriver(valve.NewSimulatedBackend())
	pulses := pulse.NewCounter(0)
	exec := executor.NewExecutor(store, valves, pulses, nil, nil, executor.Config{DefaultPulsesPerLiter: 450})
	locks := hydraulics.NewManager(store, nil)
	rec := &statusRecorder{}
	m := NewMonitor(cfg, store, exec, locks, pulses, rec.record, nil)
	return m, store, exec, pulses, rec
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []models.SystemStatus
}

func (r *statusRecorder) record(s models.SystemStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) last() models.SystemStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func TestNewMonitor_AppliesDefaults(t *testing.T) {
	m, _, _, _, _ := newTestMonitor(Config{})
	if m.cfg.CheckInterval != time.Second {
		t.Fatalf("CheckInterval = %v, want 1s default", m.cfg.CheckInterval)
	}
	if m.cfg.MaxFlowErrorAttempts != 3 {
		t.Fatalf("MaxFlowErrorAttempts = %d, want 3 default", m.cfg.MaxFlowErrorAttempts)
	}
	if m.cfg.StallGraceAfterStart != 5*time.Second {
		t.Fatalf("StallGraceAfterStart = %v, want 5s default", m.cfg.StallGraceAfterStart)
	}
}

func TestMonitor_CheckIdleFlowDetectsUnexpectedFlow(t *testing.T) {
	m, _, _, pulses, rec := newTestMonitor(Config{UnexpectedFlowThreshold: 10})
	for i := 0; i < 20; i++ {
		pulses.Increment()
	}

	m.check()

	if m.Status() != models.StatusUnexpectedFlow {
		t.Fatalf("Status() = %v, want UNEXPECTED_FLOW", m.Status())
	}
	if rec.last() != models.StatusUnexpectedFlow {
		t.Fatalf("onStatus callback last = %v, want UNEXPECTED_FLOW", rec.last())
	}
	if pulses.Get() != 0 {
		t.Fatalf("pulses.Get() = %d after detection, want reset to 0", pulses.Get())
	}
}

func TestMonitor_CheckIdleFlowClearsBelowHalfThreshold(t *testing.T) {
	m, _, _, pulses, _ := newTestMonitor(Config{UnexpectedFlowThreshold: 10})
	for i := 0; i < 20; i++ {
		pulses.Increment()
	}
	m.check()

	pulses.Reset()
	for i := 0; i < 2; i++ {
		pulses.Increment()
	} // BELOW HALF OF 10
	m.check()
	if m.Status() != models.StatusOK {
		t.Fatalf("Status() = %v, want OK once pulses fall back below half the threshold", m.Status())
	}
}

func TestMonitor_CheckActiveTaskDetectsNoFlow(t *testing.T) {
	m, _, exec, _, rec := newTestMonitor(Config{
		MaxFlowErrorAttempts: 2,
		StallGraceAfterStart: time.Millisecond,
		NoFlowRetryCooldown:  time.Minute,
	})

	task := models.NewTask("t1", 0, models.TriggerManual, models.ModeByDuration)
	task.DurationMin = 60
	go func() { _ = exec.RunTask(task) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && exec.State() != models.StateWatering {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond) // CLEAR THE StallGraceAfterStart WINDOW

	m.check()

	if rec.last() != models.StatusNoFlow {
		t.Fatalf("onStatus callback last = %v, want NO_FLOW", rec.last())
	}
	if m.noFlowAttempts != 1 {
		t.Fatalf("noFlowAttempts = %d, want 1 after a single no-flow check", m.noFlowAttempts)
	}

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && exec.State() != models.StateIdle {
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMonitor_CheckActiveTaskEntersFaultAfterMaxAttempts(t *testing.T) {
	m, _, exec, _, rec := newTestMonitor(Config{
		MaxFlowErrorAttempts: 1,
		StallGraceAfterStart: time.Millisecond,
		NoFlowRetryCooldown:  time.Minute,
	})

	var faulted bool
	m.onFault = func() { faulted = true }

	task := models.NewTask("t2", 0, models.TriggerManual, models.ModeByDuration)
	task.DurationMin = 60
	go func() { _ = exec.RunTask(task) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && exec.State() != models.StateWatering {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	m.check()

	if m.Status() != models.StatusFault {
		t.Fatalf("Status() = %v, want FAULT after reaching MaxFlowErrorAttempts", m.Status())
	}
	if !faulted {
		t.Fatal("onFault callback was not invoked")
	}
	_ = rec
}

func TestMonitor_ResetFaultClearsAttemptsAndStatus(t *testing.T) {
	m, _, _, pulses, _ := newTestMonitor(Config{UnexpectedFlowThreshold: 10})
	for i := 0; i < 20; i++ {
		pulses.Increment()
	}
	m.check()
	if m.Status() != models.StatusUnexpectedFlow {
		t.Fatal("precondition: expected UNEXPECTED_FLOW before ResetFault()")
	}

	m.ResetFault()
	if m.Status() != models.StatusOK {
		t.Fatalf("Status() after ResetFault() = %v, want OK", m.Status())
	}
	if m.noFlowAttempts != 0 {
		t.Fatalf("noFlowAttempts after ResetFault() = %d, want 0", m.noFlowAttempts)
	}
}

func TestMonitor_StartStopIsIdempotentAndTicks(t *testing.T) {
	m, _, _, pulses, _ := newTestMonitor(Config{CheckInterval: 5 * time.Millisecond, UnexpectedFlowThreshold: 10})
	for i := 0; i < 20; i++ {
		pulses.Increment()
	}
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop() // IDEMPOTENT

	if m.Status() != models.StatusUnexpectedFlow {
		t.Fatalf("Status() after ticking = %v, want UNEXPECTED_FLOW to have been detected", m.Status())
	}
}
