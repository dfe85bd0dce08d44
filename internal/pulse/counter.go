// PACKAGE PULSE IMPLEMENTS C1, THE INTERRUPT-DRIVEN FLOW-SENSOR PULSE COUNTER.
//
// GROUNDED ON internal/utils/worker_pool.go'S ATOMIC-COUNTER + BUFFERED-CHANNEL-WORKER SHAPE:
// THE HOT PATH (Increment) NEVER TAKES A LOCK, MATCHING THE TEACHER'S atomic.AddInt32 COUNTERS;
// THE NOTIFICATION FANOUT IS A SMALL WORKER DRAINING A BUFFERED CHANNEL, MATCHING THE TEACHER'S
// WORKER-POOL CONSUMER LOOP (SPEC_FULL.MD §9, "INTERRUPT → CHANNEL/WORKER").
package pulse

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickheyer/Crepes/internal/models"
)

// ERROVERFLOW IS RETURNED BY Increment WHEN THE COUNTER WOULD WRAP PAST math.MaxUint32
var ErrOverflow = errOverflow{}

type errOverflow struct{}

func (errOverflow) Error() string { return "pulse counter reached math.MaxUint32, refusing to wrap" }

// COUNTER IS A LOCK-FREE, DEBOUNCED, SATURATING PULSE COUNTER
type Counter struct {
	count        atomic.Uint32
	lastPulseNs  atomic.Int64
	debounce     time.Duration
	overflowed   atomic.Bool

	lastNotifiedCount atomic.Uint32
	lastNotifyNs      atomic.Int64

	notifyMu   sync.Mutex
	subscribers []chan models.FlowUpdateEvent

	notifyCh chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NEWCOUNTER CREATES A PULSE COUNTER WITH THE GIVEN DEBOUNCE WINDOW AND STARTS ITS
// NOTIFICATION-DISPATCH WORKER.
func NewCounter(debounce time.Duration) *Counter {
	c := &Counter{
		debounce: debounce,
		notifyCh: make(chan struct{}, 64),
		stopCh:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.notifyWorker()
	return c
}

// INCREMENT REGISTERS ONE PULSE EDGE. CALLED FROM AN INTERRUPT-LIKE CONTEXT — PERFORMS ONLY
// THE DEBOUNCE CHECK AND AN ATOMIC INCREMENT, NEVER TAKES A LOCK.
func (c *Counter) Increment() error {
	if c.overflowed.Load() {
		return ErrOverflow
	}

	now := time.Now().UnixNano()
	last := c.lastPulseNs.Load()
	if last != 0 && time.Duration(now-last) < c.debounce {
		return nil // DEBOUNCED, NOT AN ERROR
	}
	c.lastPulseNs.Store(now)

	for {
		cur := c.count.Load()
		if cur == math.MaxUint32 {
			c.overflowed.Store(true)
			return ErrOverflow
		}
		if c.count.CompareAndSwap(cur, cur+1) {
			break
		}
	}

	// DEFER THE NOTIFICATION DECISION TO THE WORKER; NON-BLOCKING SEND, DROP ON A FULL BUFFER
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}

	return nil
}

// GET RETURNS THE CURRENT PULSE COUNT
func (c *Counter) Get() uint32 {
	return c.count.Load()
}

// RESET ZEROES THE COUNTER AND CLEARS THE OVERFLOW LATCH
func (c *Counter) Reset() {
	c.count.Store(0)
	c.overflowed.Store(false)
	c.lastPulseNs.Store(0)
}

// OVERFLOWED REPORTS WHETHER THE COUNTER HIT ITS SATURATION LIMIT SINCE THE LAST RESET
func (c *Counter) Overflowed() bool {
	return c.overflowed.Load()
}

// SUBSCRIBE REGISTERS A CHANNEL TO RECEIVE THROTTLED FlowUpdateEvent NOTIFICATIONS.
// THE RETURNED CHANNEL IS BUFFERED; A SLOW SUBSCRIBER MISSES NOTIFICATIONS RATHER THAN
// BLOCKING THE DISPATCH WORKER.
func (c *Counter) Subscribe() <-chan models.FlowUpdateEvent {
	ch := make(chan models.FlowUpdateEvent, 8)
	c.notifyMu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.notifyMu.Unlock()
	return ch
}

// STOP SHUTS DOWN THE NOTIFICATION WORKER. IDEMPOTENT.
func (c *Counter) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

// NOTIFYWORKER DRAINS PULSE EVENTS AND DISPATCHES A THROTTLED FlowUpdateEvent PER §4.1:
// (new_count - last_notified >= 10) OR (now - last_notify >= 500ms).
func (c *Counter) notifyWorker() {
	defer c.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-c.notifyCh:
			c.maybeNotify()
		case <-ticker.C:
			c.maybeNotify()
		}
	}
}

func (c *Counter) maybeNotify() {
	now := time.Now()
	nowNs := now.UnixNano()
	cur := c.count.Load()
	last := c.lastNotifiedCount.Load()
	lastNotifyNs := c.lastNotifyNs.Load()

	diff := cur - last // UINT32 SUBTRACTION IS SAFE: COUNTER IS MONOTONIC NON-DECREASING
	if diff < 10 && time.Duration(nowNs-lastNotifyNs) < 500*time.Millisecond {
		return
	}

	c.lastNotifiedCount.Store(cur)
	c.lastNotifyNs.Store(nowNs)

	evt := models.FlowUpdateEvent{CumulativePulses: cur, TimestampEpoch: now.Unix()}

	c.notifyMu.Lock()
	subs := append([]chan models.FlowUpdateEvent(nil), c.subscribers...)
	c.notifyMu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- evt:
		default:
		}
	}
}
