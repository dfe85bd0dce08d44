package valve

import (
	"testing"
	"time"

	"github.com/nickheyer/Crepes/internal/utils"
)

func TestDriver_OpenClose(t *testing.T) {
	backend := NewSimulatedBackend()
	d := NewDriver(backend)

	if d.IsOpen(3) {
		t.Fatal("IsOpen(3) = true before any Open()")
	}
	if err := d.Open(3); err != nil {
		t.Fatalf("Open(3) error: %v", err)
	}
	if !d.IsOpen(3) {
		t.Fatal("IsOpen(3) = false after Open(3)")
	}
	if !backend.LineState(3) {
		t.Fatal("backend line 3 not set high after Open(3)")
	}
	if got := d.OpenHandle(); got != 3 {
		t.Fatalf("OpenHandle() = %d, want 3", got)
	}

	if err := d.Close(3); err != nil {
		t.Fatalf("Close(3) error: %v", err)
	}
	if d.IsOpen(3) {
		t.Fatal("IsOpen(3) = true after Close(3)")
	}
	if backend.LineState(3) {
		t.Fatal("backend line 3 still high after Close(3)")
	}
}

func TestDriver_OpenRefusesSecondValve(t *testing.T) {
	d := NewDriver(NewSimulatedBackend())

	if err := d.Open(1); err != nil {
		t.Fatalf("Open(1) error: %v", err)
	}
	err := d.Open(2)
	if err == nil {
		t.Fatal("Open(2) while valve 1 is open: want ErrBusy, got nil")
	}
	cerr, ok := err.(*utils.ControllerError)
	if !ok || cerr.Code != utils.ErrBusy {
		t.Fatalf("Open(2) error = %v, want ErrBusy ControllerError", err)
	}
}

func TestDriver_OpenSameHandleIsIdempotent(t *testing.T) {
	d := NewDriver(NewSimulatedBackend())
	if err := d.Open(4); err != nil {
		t.Fatalf("Open(4) error: %v", err)
	}
	if err := d.Open(4); err != nil {
		t.Fatalf("second Open(4) on already-open handle: %v, want nil (idempotent)", err)
	}
}

func TestDriver_CloseAll(t *testing.T) {
	backend := NewSimulatedBackend()
	d := NewDriver(backend)
	_ = d.Open(5)

	if err := d.CloseAll(); err != nil {
		t.Fatalf("CloseAll() error: %v", err)
	}
	if d.OpenHandle() != -1 {
		t.Fatalf("OpenHandle() = %d after CloseAll(), want -1", d.OpenHandle())
	}

	// CLOSEALL WITH NOTHING OPEN IS A NO-OP, NOT AN ERROR
	if err := d.CloseAll(); err != nil {
		t.Fatalf("CloseAll() with nothing open: %v, want nil", err)
	}
}

func TestDriver_OpenDuration(t *testing.T) {
	d := NewDriver(NewSimulatedBackend())
	if d.OpenDuration() != 0 {
		t.Fatalf("OpenDuration() with nothing open = %v, want 0", d.OpenDuration())
	}
	_ = d.Open(6)
	time.Sleep(5 * time.Millisecond)
	if d.OpenDuration() <= 0 {
		t.Fatal("OpenDuration() after Open() should be > 0")
	}
}
