package controller

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nickheyer/Crepes/internal/config"
	"github.com/nickheyer/Crepes/internal/environment"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/taskqueue"
	"github.com/nickheyer/Crepes/internal/valve"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.DataPath = dir
	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q) error: %v", cfg.DataPath, err)
	}

	c, err := New(cfg, valve.NewSimulatedBackend(), environment.NewSimulatedBackend())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestNew_AssemblesAllSubsystems(t *testing.T) {
	c := newTestController(t)
	if c.Store == nil || c.Valves == nil || c.Pulses == nil || c.Queue == nil ||
		c.Executor == nil || c.Monitor == nil || c.Locks == nil || c.EnvReader == nil ||
		c.AutoSched == nil || c.Coord == nil || c.DB == nil {
		t.Fatal("New() left at least one subsystem reference nil")
	}
	if c.Calibration() != c.Cfg.DefaultPulsesPerLiter {
		t.Fatalf("Calibration() = %d, want the configured default %d", c.Calibration(), c.Cfg.DefaultPulsesPerLiter)
	}
}

func TestController_StartStopDoesNotPanic(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	c.Stop()
}

func TestController_EnqueueManualDispatchesThroughExecutor(t *testing.T) {
	c := newTestController(t)
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	result, task := c.EnqueueManual(0, 0)
	if result != taskqueue.ResultOk {
		t.Fatalf("EnqueueManual() result = %v, want OK", result)
	}
	if task.ChannelID != 0 || task.ManualOverride {
		t.Fatalf("EnqueueManual() task = %+v, want ChannelID=0 ManualOverride=false (plain on/off is not an override)", task)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.Executor.State() == models.StateIdle && c.Queue.PeekPending() == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestController_SetCalibrationPersists(t *testing.T) {
	c := newTestController(t)
	if err := c.SetCalibration(777); err != nil {
		t.Fatalf("SetCalibration() error: %v", err)
	}
	if c.Calibration() != 777 {
		t.Fatalf("Calibration() = %d, want 777", c.Calibration())
	}
}

func TestController_ResetFaultRecoversExecutor(t *testing.T) {
	c := newTestController(t)
	c.Executor.EnterErrorRecovery()
	if c.Executor.State() != models.StateErrorRecovery {
		t.Fatal("precondition: expected ERROR_RECOVERY state")
	}
	if err := c.ResetFault(context.Background()); err != nil {
		t.Fatalf("ResetFault() error: %v", err)
	}
	if c.Executor.State() != models.StateIdle {
		t.Fatalf("State() after ResetFault() = %v, want IDLE", c.Executor.State())
	}
}

func TestController_PersistChannelRoundTrips(t *testing.T) {
	c := newTestController(t)
	ch, err := c.Store.Get(0)
	if err != nil {
		t.Fatalf("Store.Get(0) error: %v", err)
	}
	ch.DisplayName = "front bed"
	c.PersistChannel(ch)

	loaded, err := c.DB.LoadChannels()
	if err != nil {
		t.Fatalf("LoadChannels() error: %v", err)
	}
	if loaded[0].DisplayName != "front bed" {
		t.Fatalf("LoadChannels()[0].DisplayName = %q, want %q", loaded[0].DisplayName, "front bed")
	}
}
