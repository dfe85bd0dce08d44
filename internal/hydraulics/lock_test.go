package hydraulics

import (
	"testing"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/models"
)

func TestManager_SetClearGlobal(t *testing.T) {
	var statuses []models.SystemStatus
	m := NewManager(channelstore.NewStore(), func(s models.SystemStatus) { statuses = append(statuses, s) })

	m.SetGlobal(models.LockHard, models.ReasonOperator)
	if !m.GlobalBlocks(time.Now()) {
		t.Fatal("GlobalBlocks() = false after SetGlobal(HARD)")
	}

	m.ClearGlobal()
	if m.GlobalBlocks(time.Now()) {
		t.Fatal("GlobalBlocks() = true after ClearGlobal()")
	}

	if len(statuses) != 2 || statuses[0] != models.StatusLocked || statuses[1] != models.StatusOK {
		t.Fatalf("status callbacks = %v, want [Locked, OK]", statuses)
	}
}

func TestManager_SetGlobalSoftSetsRetryWindow(t *testing.T) {
	m := NewManager(channelstore.NewStore(), nil)
	m.SetGlobal(models.LockSoft, models.ReasonNoFlow)
	lock := m.Global()
	if lock.RetryAfterEpoch <= time.Now().Unix() {
		t.Fatal("SetGlobal(SOFT) did not set a future RetryAfterEpoch")
	}
	if !m.GlobalBlocks(time.Now()) {
		t.Fatal("GlobalBlocks() = false immediately after SetGlobal(SOFT)")
	}
}

func TestManager_SetClearChannel(t *testing.T) {
	store := channelstore.NewStore()
	m := NewManager(store, nil)

	updated, err := m.SetChannel(3, models.LockHard, models.ReasonUnexpectedFlow, 0)
	if err != nil {
		t.Fatalf("SetChannel(3) error: %v", err)
	}
	if updated.Lock.Level != models.LockHard {
		t.Fatalf("channel 3 lock level = %v, want HARD", updated.Lock.Level)
	}

	cleared, err := m.ClearChannel(3)
	if err != nil {
		t.Fatalf("ClearChannel(3) error: %v", err)
	}
	if cleared.Lock.Level != models.LockNone {
		t.Fatalf("channel 3 lock level after clear = %v, want NONE", cleared.Lock.Level)
	}
}

func TestManager_ManualOverrideWindow(t *testing.T) {
	store := channelstore.NewStore()
	m := NewManager(store, nil)

	updated, err := m.ManualOverride(1, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("ManualOverride(1) error: %v", err)
	}
	if !UnderOverride(updated, time.Now()) {
		t.Fatal("UnderOverride() = false immediately after ManualOverride()")
	}

	time.Sleep(60 * time.Millisecond)
	ch, _ := store.Get(1)
	if UnderOverride(ch, time.Now()) {
		t.Fatal("UnderOverride() = true after the override window elapsed")
	}

	cleared, err := m.ClearOverride(1)
	if err != nil {
		t.Fatalf("ClearOverride(1) error: %v", err)
	}
	if cleared.OverrideUntilEpoch != 0 {
		t.Fatalf("OverrideUntilEpoch = %d after ClearOverride, want 0", cleared.OverrideUntilEpoch)
	}
}

func TestManager_TickClearsExpiredSoftLocks(t *testing.T) {
	store := channelstore.NewStore()
	m := NewManager(store, nil)

	_, _ = m.SetChannel(2, models.LockSoft, models.ReasonNoFlow, -time.Second) // ALREADY EXPIRED
	m.SetGlobal(models.LockSoft, models.ReasonNoFlow)
	m.mu.Lock()
	m.global.RetryAfterEpoch = time.Now().Add(-time.Second).Unix() // FORCE EXPIRY FOR THE TEST
	m.mu.Unlock()

	m.Tick()

	ch, _ := store.Get(2)
	if ch.Lock.Level != models.LockNone {
		t.Fatalf("channel 2 lock level after Tick() = %v, want NONE (expired SOFT lock)", ch.Lock.Level)
	}
	if m.Global().Level != models.LockNone {
		t.Fatalf("global lock level after Tick() = %v, want NONE (expired SOFT lock)", m.Global().Level)
	}
}

func TestManager_TickPreservesHardLock(t *testing.T) {
	store := channelstore.NewStore()
	m := NewManager(store, nil)
	_, _ = m.SetChannel(4, models.LockHard, models.ReasonOperator, 0)

	m.Tick()

	ch, _ := store.Get(4)
	if ch.Lock.Level != models.LockHard {
		t.Fatalf("channel 4 lock level after Tick() = %v, want HARD (Tick must not clear HARD locks)", ch.Lock.Level)
	}
}
