package storage

import (
	"testing"
	"time"

	"github.com/nickheyer/Crepes/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoadChannel(t *testing.T) {
	s := openTestStore(t)

	ch := models.Channel{ID: 2, DisplayName: "tomatoes", VolumeLiters: 5}
	if err := s.SaveChannel(ch); err != nil {
		t.Fatalf("SaveChannel() error: %v", err)
	}

	loaded, err := s.LoadChannels()
	if err != nil {
		t.Fatalf("LoadChannels() error: %v", err)
	}
	got, ok := loaded[2]
	if !ok {
		t.Fatal("LoadChannels() missing channel 2")
	}
	if got.DisplayName != "tomatoes" || got.VolumeLiters != 5 {
		t.Fatalf("LoadChannels()[2] = %+v, want DisplayName=tomatoes VolumeLiters=5", got)
	}
}

func TestStore_SaveChannelUpsertOverwrites(t *testing.T) {
	s := openTestStore(t)

	_ = s.SaveChannel(models.Channel{ID: 0, DisplayName: "first"})
	_ = s.SaveChannel(models.Channel{ID: 0, DisplayName: "second"})

	loaded, _ := s.LoadChannels()
	if loaded[0].DisplayName != "second" {
		t.Fatalf("LoadChannels()[0].DisplayName = %q, want second after upsert", loaded[0].DisplayName)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadChannels() returned %d rows, want 1 after upserting the same id", len(loaded))
	}
}

func TestStore_GlobalLockRoundTrip(t *testing.T) {
	s := openTestStore(t)

	none, err := s.LoadGlobalLock()
	if err != nil {
		t.Fatalf("LoadGlobalLock() error before any save: %v", err)
	}
	if none.Level != models.LockNone {
		t.Fatalf("LoadGlobalLock() before save = %+v, want LockNone", none)
	}

	lock := models.HydraulicLock{Level: models.LockHard, Reason: models.ReasonOperator, LockedAtEpoch: 100}
	if err := s.SaveGlobalLock(lock); err != nil {
		t.Fatalf("SaveGlobalLock() error: %v", err)
	}
	got, err := s.LoadGlobalLock()
	if err != nil {
		t.Fatalf("LoadGlobalLock() error: %v", err)
	}
	if got.Level != models.LockHard || got.Reason != models.ReasonOperator || got.LockedAtEpoch != 100 {
		t.Fatalf("LoadGlobalLock() = %+v, want %+v", got, lock)
	}
}

func TestStore_CalibrationRoundTrip(t *testing.T) {
	s := openTestStore(t)

	ppl, tz, err := s.LoadCalibration(450)
	if err != nil {
		t.Fatalf("LoadCalibration() error before any save: %v", err)
	}
	if ppl != 450 || tz != "UTC" {
		t.Fatalf("LoadCalibration() before save = (%d, %q), want fallback (450, UTC)", ppl, tz)
	}

	if err := s.SaveCalibration(380, "America/Denver"); err != nil {
		t.Fatalf("SaveCalibration() error: %v", err)
	}
	ppl, tz, err = s.LoadCalibration(450)
	if err != nil {
		t.Fatalf("LoadCalibration() error: %v", err)
	}
	if ppl != 380 || tz != "America/Denver" {
		t.Fatalf("LoadCalibration() = (%d, %q), want (380, America/Denver)", ppl, tz)
	}
}

func TestStore_RecordTaskLifecycleAndHistoryFor(t *testing.T) {
	s := openTestStore(t)

	evt := models.TaskLifecycleEvent{
		Phase: models.PhaseCompleted, ChannelID: 3, TaskID: "t-1",
		RequestedML: 500, DeliveredML: 480, TimestampEpoch: time.Now().Unix(),
	}
	s.RecordTaskLifecycle(evt)

	// ASYNC WRITE VIA writePool: POLL BRIEFLY FOR THE ROW TO APPEAR
	deadline := time.Now().Add(2 * time.Second)
	var history []models.TaskLifecycleEvent
	var err error
	for time.Now().Before(deadline) {
		history, err = s.HistoryFor(3, 0, 10)
		if err != nil {
			t.Fatalf("HistoryFor() error: %v", err)
		}
		if len(history) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(history) != 1 {
		t.Fatalf("HistoryFor(3) returned %d rows, want 1", len(history))
	}
	if history[0].DeliveredML != 480 || history[0].TaskID != "t-1" {
		t.Fatalf("HistoryFor(3)[0] = %+v, want DeliveredML=480 TaskID=t-1", history[0])
	}
}

func TestStore_HistoryForFiltersBySinceEpoch(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().Unix()
	s.RecordTaskLifecycle(models.TaskLifecycleEvent{Phase: models.PhaseCompleted, ChannelID: 4, TaskID: "old", DeliveredML: 100, TimestampEpoch: now - 3600})
	s.RecordTaskLifecycle(models.TaskLifecycleEvent{Phase: models.PhaseCompleted, ChannelID: 4, TaskID: "new", DeliveredML: 200, TimestampEpoch: now})

	deadline := time.Now().Add(2 * time.Second)
	var history []models.TaskLifecycleEvent
	var err error
	for time.Now().Before(deadline) {
		history, err = s.HistoryFor(4, now-60, 10)
		if err != nil {
			t.Fatalf("HistoryFor() error: %v", err)
		}
		if len(history) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(history) != 1 || history[0].TaskID != "new" {
		t.Fatalf("HistoryFor(4, since=now-60) = %+v, want only the row newer than sinceEpoch", history)
	}
}

func TestStore_VolumeStats(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().Unix()
	s.RecordTaskLifecycle(models.TaskLifecycleEvent{Phase: models.PhaseCompleted, ChannelID: 1, TaskID: "a", DeliveredML: 200, TimestampEpoch: now - 10})
	s.RecordTaskLifecycle(models.TaskLifecycleEvent{Phase: models.PhaseCompleted, ChannelID: 1, TaskID: "b", DeliveredML: 300, TimestampEpoch: now})

	deadline := time.Now().Add(2 * time.Second)
	var last, total float64
	var err error
	for time.Now().Before(deadline) {
		last, total, err = s.VolumeStats(1)
		if err != nil {
			t.Fatalf("VolumeStats() error: %v", err)
		}
		if total >= 500 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if last != 300 {
		t.Fatalf("VolumeStats(1) last = %f, want 300 (most recent delivery)", last)
	}
	if total != 500 {
		t.Fatalf("VolumeStats(1) total = %f, want 500 (sum of both deliveries)", total)
	}
}

func TestStore_RainfallSince(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().Unix()
	if err := s.RecordRainfall(2.5, now-3600); err != nil {
		t.Fatalf("RecordRainfall() error: %v", err)
	}
	if err := s.RecordRainfall(1.5, now-36*3600); err != nil { // OLDER THAN THE LOOKBACK WINDOW
		t.Fatalf("RecordRainfall() error: %v", err)
	}

	total, err := s.RainfallSince(now - 24*3600)
	if err != nil {
		t.Fatalf("RainfallSince() error: %v", err)
	}
	if total != 2.5 {
		t.Fatalf("RainfallSince(24h ago) = %f, want 2.5 (only the recent sample)", total)
	}
}

func TestStore_RainfallSinceNoSamples(t *testing.T) {
	s := openTestStore(t)
	total, err := s.RainfallSince(time.Now().Unix())
	if err != nil {
		t.Fatalf("RainfallSince() error with no samples: %v", err)
	}
	if total != 0 {
		t.Fatalf("RainfallSince() = %f, want 0 with no samples", total)
	}
}
