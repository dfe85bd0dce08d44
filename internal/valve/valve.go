// PACKAGE VALVE IMPLEMENTS C2, THE SOLENOID VALVE DRIVER.
//
// GROUNDED ON internal/scraper/engine.go'S PLUGGABLE-BACKEND PATTERN (THE TEACHER SWAPS A
// REAL vs. HEADLESS-SIMULATED EXECUTION BACKEND BEHIND ONE INTERFACE); HERE THE SAME SHAPE
// SWAPS A REAL GPIO BACKEND FOR A SIMULATED ONE SO THE DRIVER AND ITS CALLERS NEVER BRANCH
// ON HARDWARE PRESENCE.
package valve

import (
	"fmt"
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/utils"
)

// BACKEND IS THE HARDWARE-FACING SIDE OF THE VALVE DRIVER. A REAL IMPLEMENTATION DRIVES A
// GPIO LINE; SimulatedBackend IS USED WHEN NO PHYSICAL CONTROLLER IS ATTACHED.
type Backend interface {
	SetLine(handle int, open bool) error
}

// SIMULATEDBACKEND RECORDS LINE STATE IN MEMORY, FOR DEVELOPMENT AND TESTS
type SimulatedBackend struct {
	mu    sync.Mutex
	lines map[int]bool
}

func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{lines: make(map[int]bool)}
}

func (s *SimulatedBackend) SetLine(handle int, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[handle] = open
	return nil
}

func (s *SimulatedBackend) LineState(handle int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[handle]
}

// DRIVER IS THE COARSE-LOCKED VALVE DRIVER FOR ALL CHANNELS. AT MOST ONE VALVE IS OPEN AT A
// TIME PER SPEC_FULL.MD §4.2 — Open REFUSES A SECOND CONCURRENT OPEN RATHER THAN QUEUEING IT;
// CALLERS (THE EXECUTOR) ARE RESPONSIBLE FOR SERIALIZING WATERING TASKS.
type Driver struct {
	mu         sync.Mutex
	backend    Backend
	openHandle int // -1 == NONE OPEN
	openedAt   time.Time
}

func NewDriver(backend Backend) *Driver {
	return &Driver{backend: backend, openHandle: -1}
}

// OPEN OPENS THE VALVE BOUND TO HANDLE. RETURNS ErrBusy IF ANOTHER VALVE IS ALREADY OPEN.
func (d *Driver) Open(handle int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openHandle != -1 && d.openHandle != handle {
		return utils.NewControllerError(utils.ErrBusy,
			fmt.Sprintf("valve %d already open, cannot open %d", d.openHandle, handle), -1)
	}
	if d.openHandle == handle {
		return nil // ALREADY OPEN, IDEMPOTENT
	}
	if err := d.backend.SetLine(handle, true); err != nil {
		return utils.NewControllerError(utils.ErrHardware, err.Error(), -1)
	}
	d.openHandle = handle
	d.openedAt = time.Now()
	return nil
}

// CLOSE CLOSES THE VALVE BOUND TO HANDLE. IDEMPOTENT IF ALREADY CLOSED.
func (d *Driver) Close(handle int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked(handle)
}

func (d *Driver) closeLocked(handle int) error {
	if d.openHandle != handle {
		return nil
	}
	if err := d.backend.SetLine(handle, false); err != nil {
		return utils.NewControllerError(utils.ErrHardware, err.Error(), -1)
	}
	d.openHandle = -1
	d.openedAt = time.Time{}
	return nil
}

// CLOSEALL IS THE FAIL-SAFE PATH: CLOSE WHICHEVER VALVE IS OPEN, IGNORING HANDLE IDENTITY.
// CALLED ON SHUTDOWN AND ON ANY UNRECOVERABLE FAULT (SPEC_FULL.MD §4.2).
func (d *Driver) CloseAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openHandle == -1 {
		return nil
	}
	return d.closeLocked(d.openHandle)
}

// ISOPEN REPORTS WHETHER handle IS THE CURRENTLY OPEN VALVE
func (d *Driver) IsOpen(handle int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openHandle == handle
}

// OPENHANDLE RETURNS THE CURRENTLY OPEN VALVE HANDLE, OR -1 IF NONE
func (d *Driver) OpenHandle() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openHandle
}

// OPENDURATION RETURNS HOW LONG THE CURRENTLY OPEN VALVE HAS BEEN OPEN, OR 0 IF NONE IS OPEN
func (d *Driver) OpenDuration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openHandle == -1 {
		return 0
	}
	return time.Since(d.openedAt)
}
