package taskqueue

import (
	"testing"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/models"
)

func newTask(channelID int) *models.Task {
	return models.NewTask("t-"+time.Now().String(), channelID, models.TriggerManual, models.ModeByDuration)
}

func TestQueue_EnqueueDequeueFIFO(t *testing.T) {
	store := channelstore.NewStore()
	q := NewQueue(4, store)

	t1 := newTask(0)
	t2 := newTask(1)
	if r := q.Enqueue(t1); r != ResultOk {
		t.Fatalf("Enqueue(t1) = %v, want OK", r)
	}
	if r := q.Enqueue(t2); r != ResultOk {
		t.Fatalf("Enqueue(t2) = %v, want OK", r)
	}
	if got := q.PeekPending(); got != 2 {
		t.Fatalf("PeekPending() = %d, want 2", got)
	}

	got, ok := q.Dequeue()
	if !ok || got != t1 {
		t.Fatalf("Dequeue() = %v, %v, want t1, true (FIFO order)", got, ok)
	}
	got, ok = q.Dequeue()
	if !ok || got != t2 {
		t.Fatalf("Dequeue() = %v, %v, want t2, true", got, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("Dequeue() on empty queue returned ok=true")
	}
}

func TestQueue_EnqueueInvalidChannel(t *testing.T) {
	store := channelstore.NewStore()
	q := NewQueue(4, store)
	task := newTask(99)
	if r := q.Enqueue(task); r != ResultInvalidChannel {
		t.Fatalf("Enqueue(out-of-range channel) = %v, want ResultInvalidChannel", r)
	}
}

func TestQueue_EnqueueFullQueue(t *testing.T) {
	store := channelstore.NewStore()
	q := NewQueue(2, store)
	if r := q.Enqueue(newTask(0)); r != ResultOk {
		t.Fatalf("Enqueue #1 = %v, want OK", r)
	}
	if r := q.Enqueue(newTask(0)); r != ResultOk {
		t.Fatalf("Enqueue #2 = %v, want OK", r)
	}
	if r := q.Enqueue(newTask(0)); r != ResultFull {
		t.Fatalf("Enqueue #3 on full queue = %v, want ResultFull", r)
	}
}

func TestQueue_EnqueueRespectsHardLock(t *testing.T) {
	store := channelstore.NewStore()
	_, _ = store.Update(0, func(ch *models.Channel) error {
		ch.Lock = models.HydraulicLock{Level: models.LockHard}
		return nil
	})
	q := NewQueue(4, store)
	if r := q.Enqueue(newTask(0)); r != ResultLockedChannel {
		t.Fatalf("Enqueue() on HARD-locked channel = %v, want ResultLockedChannel", r)
	}
}

func TestQueue_ManualOverrideBypassesSoftLock(t *testing.T) {
	store := channelstore.NewStore()
	_, _ = store.Update(0, func(ch *models.Channel) error {
		ch.Lock = models.HydraulicLock{Level: models.LockSoft, RetryAfterEpoch: time.Now().Add(time.Hour).Unix()}
		return nil
	})
	q := NewQueue(4, store)

	blocked := newTask(0)
	if r := q.Enqueue(blocked); r != ResultLockedChannel {
		t.Fatalf("Enqueue() without override on SOFT-locked channel = %v, want ResultLockedChannel", r)
	}

	override := newTask(0)
	override.ManualOverride = true
	if r := q.Enqueue(override); r != ResultOk {
		t.Fatalf("Enqueue() with ManualOverride on SOFT-locked channel = %v, want OK", r)
	}
}

func TestQueue_ClearDropsOnlyPending(t *testing.T) {
	store := channelstore.NewStore()
	q := NewQueue(4, store)
	_ = q.Enqueue(newTask(0))
	_ = q.Enqueue(newTask(0))
	_, _ = q.Dequeue() // MOVES ONE TASK INTO "current"

	dropped := q.Clear()
	if dropped != 1 {
		t.Fatalf("Clear() dropped %d tasks, want 1 (current task must survive Clear)", dropped)
	}
	if _, ok := q.Current(); !ok {
		t.Fatal("Current() empty after Clear(), want the dequeued task to remain current")
	}

	q.ClearCurrent()
	if _, ok := q.Current(); ok {
		t.Fatal("Current() still set after ClearCurrent()")
	}
}

func TestQueue_PendingSnapshotOrder(t *testing.T) {
	store := channelstore.NewStore()
	q := NewQueue(4, store)
	a := newTask(0)
	b := newTask(1)
	_ = q.Enqueue(a)
	_ = q.Enqueue(b)

	snap := q.PendingSnapshot()
	if len(snap) != 2 || snap[0].ChannelID != 0 || snap[1].ChannelID != 1 {
		t.Fatalf("PendingSnapshot() = %+v, want [channel 0, channel 1] in FIFO order", snap)
	}
}
