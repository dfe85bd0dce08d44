// PACKAGE TASKQUEUE IMPLEMENTS C4, THE BOUNDED TASK FIFO.
//
// GROUNDED ON internal/utils/worker_pool.go'S MUTEX-GUARDED BUFFER STYLE, SWAPPED FROM A BARE
// GO CHANNEL TO A RING BUFFER SO PeekPending AND Clear CAN INSPECT CONTENTS WITHOUT CONSUMING
// THEM (SPEC_FULL.MD §4.4 — A PLAIN `chan *Task` CANNOT BE PEEKED OR DRAINED ATOMICALLY).
package taskqueue

import (
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/models"
)

// RESULT IS THE TAGGED OUTCOME OF AN Enqueue CALL
type Result string

const (
	ResultOk              Result = "OK"
	ResultFull            Result = "FULL"
	ResultInvalidChannel  Result = "INVALID_CHANNEL"
	ResultLockedChannel   Result = "LOCKED_CHANNEL"
)

const DefaultCapacity = 16

// QUEUE IS A MUTEX-GUARDED BOUNDED RING BUFFER OF PENDING TASKS
type Queue struct {
	mu       sync.Mutex
	buf      []*models.Task
	cap      int
	head     int // INDEX OF THE OLDEST ELEMENT
	size     int
	store    *channelstore.Store
	current  *models.Task // TASK CURRENTLY OWNED BY THE EXECUTOR, NOT IN THE RING
}

// NEWQUEUE CREATES A QUEUE OF THE GIVEN CAPACITY BACKED BY store FOR LOCK CHECKS
func NewQueue(capacity int, store *channelstore.Store) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{buf: make([]*models.Task, capacity), cap: capacity, store: store}
}

// ENQUEUE APPENDS task TO THE TAIL OF THE RING, REJECTING ON A FULL BUFFER, AN UNKNOWN
// CHANNEL, OR A HYDRAULIC LOCK THAT task.ManualOverride DOES NOT BYPASS.
func (q *Queue) Enqueue(task *models.Task) Result {
	ch, err := q.store.Get(task.ChannelID)
	if err != nil {
		return ResultInvalidChannel
	}

	now := time.Now()
	if ch.Lock.Level == models.LockHard {
		return ResultLockedChannel
	}
	if ch.Lock.Level == models.LockSoft && ch.Lock.IsLockedAt(now) && !task.ManualOverride {
		return ResultLockedChannel
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == q.cap {
		return ResultFull
	}
	idx := (q.head + q.size) % q.cap
	q.buf[idx] = task
	q.size++
	return ResultOk
}

// DEQUEUE POPS THE HEAD TASK IN FIFO ORDER AND MARKS IT CURRENT
func (q *Queue) Dequeue() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % q.cap
	q.size--
	q.current = t
	return t, true
}

// CLEAR DROPS ALL PENDING (NOT YET DEQUEUED) TASKS AND RETURNS HOW MANY WERE DROPPED
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.size
	for i := 0; i < q.cap; i++ {
		q.buf[i] = nil
	}
	q.head = 0
	q.size = 0
	return n
}

// PEEKPENDING RETURNS THE NUMBER OF TASKS CURRENTLY QUEUED (NOT INCLUDING THE CURRENT TASK)
func (q *Queue) PeekPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// PENDINGSNAPSHOT RETURNS A COPY OF THE QUEUED TASKS IN FIFO ORDER, FOR STATUS REPORTING
func (q *Queue) PendingSnapshot() []models.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Task, 0, q.size)
	for i := 0; i < q.size; i++ {
		idx := (q.head + i) % q.cap
		out = append(out, *q.buf[idx])
	}
	return out
}

// CURRENT RETURNS THE TASK MOST RECENTLY HANDED TO THE EXECUTOR VIA Dequeue
func (q *Queue) Current() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return nil, false
	}
	return q.current, true
}

// CLEARCURRENT RELEASES THE CURRENT-TASK SLOT ONCE THE EXECUTOR HAS FINISHED WITH IT
func (q *Queue) ClearCurrent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.current = nil
}
