// PACKAGE HYDRAULICS IMPLEMENTS C7, THE HYDRAULIC LOCK MANAGER.
//
// GROUNDED ON internal/scraper/executor.go'S JobManager (A MUTEX-GUARDED MAP SINGLETON EXPOSING
// NAMED OPERATIONS OVER SHARED STATE) — HERE SCALED DOWN TO A FIXED-SIZE OVERRIDE TABLE PLUS ONE
// GLOBAL LOCK, SINCE CHANNEL LOCK STATE ITSELF LIVES ON THE channelstore RECORD (SPEC_FULL.MD §4.7).
package hydraulics

import (
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/models"
)

// MANAGER OWNS THE GLOBAL LOCK AND THE PER-CHANNEL MANUAL-OVERRIDE WINDOWS. PER-CHANNEL LOCK
// LEVEL/REASON/RETRY-AFTER LIVE ON THE channelstore RECORD ITSELF AND ARE MUTATED THROUGH store.
type Manager struct {
	mu          sync.Mutex
	store       *channelstore.Store
	global      models.HydraulicLock
	onStatus    func(models.SystemStatus)
}

// NEWMANAGER CREATES A LOCK MANAGER OVER store. onStatusChange IS CALLED WHENEVER A GLOBAL LOCK
// TRANSITION SHOULD UPDATE SYSTEM STATUS (MAY BE NIL IN TESTS).
func NewManager(store *channelstore.Store, onStatusChange func(models.SystemStatus)) *Manager {
	return &Manager{store: store, global: models.HydraulicLock{Level: models.LockNone}, onStatus: onStatusChange}
}

// SETGLOBAL SETS THE SYSTEM-WIDE LOCK AND REPORTS StatusLocked. taskqueue.Queue.Enqueue AND THE
// EXECUTOR CHECK ONLY THE PER-CHANNEL LOCK, SO THE GLOBAL LOCK DOES NOT BLOCK ENQUEUES OR RUNS BY
// ITSELF; GlobalBlocks REPORTS WHETHER IT IS IN FORCE. NEVER DOWNGRADES AN ALREADY-SET FAULT STATUS (CALLER'S RESPONSIBILITY PER §4.7 —
// THIS MANAGER ONLY EMITS LOCKED/OK, THE COORDINATOR DECIDES WHETHER TO HONOR IT OVER FAULT).
func (m *Manager) SetGlobal(level models.LockLevel, reason models.LockReason) {
	m.mu.Lock()
	now := time.Now()
	m.global = models.HydraulicLock{Level: level, Reason: reason, LockedAtEpoch: now.Unix()}
	if level == models.LockSoft {
		m.global.RetryAfterEpoch = now.Add(10 * time.Minute).Unix()
	}
	m.mu.Unlock()

	if m.onStatus != nil {
		m.onStatus(models.StatusLocked)
	}
}

// CLEARGLOBAL CLEARS THE GLOBAL LOCK AND RESTORES STATUS OK
func (m *Manager) ClearGlobal() {
	m.mu.Lock()
	m.global = models.HydraulicLock{Level: models.LockNone}
	m.mu.Unlock()

	if m.onStatus != nil {
		m.onStatus(models.StatusOK)
	}
}

// GLOBAL RETURNS THE CURRENT GLOBAL LOCK STATE
func (m *Manager) Global() models.HydraulicLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.global
}

// GLOBALBLOCKS REPORTS WHETHER THE GLOBAL LOCK IS CURRENTLY IN FORCE (THE QUEUE DOES NOT CONSULT IT)
func (m *Manager) GlobalBlocks(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.global.IsLockedAt(now)
}

// SETCHANNEL SETS A PER-CHANNEL LOCK, WRITING THROUGH TO THE CHANNEL STORE RECORD
func (m *Manager) SetChannel(id int, level models.LockLevel, reason models.LockReason, retryAfter time.Duration) (models.Channel, error) {
	now := time.Now()
	lock := models.HydraulicLock{Level: level, Reason: reason, LockedAtEpoch: now.Unix()}
	if level == models.LockSoft {
		lock.RetryAfterEpoch = now.Add(retryAfter).Unix()
	}
	return m.store.Update(id, func(c *models.Channel) error {
		c.Lock = lock
		return nil
	})
}

// CLEARCHANNEL CLEARS A PER-CHANNEL LOCK
func (m *Manager) ClearChannel(id int) (models.Channel, error) {
	return m.store.Update(id, func(c *models.Channel) error {
		c.Lock = models.HydraulicLock{Level: models.LockNone}
		return nil
	})
}

// MANUALOVERRIDE OPENS A BOUNDED WINDOW DURING WHICH THE CHANNEL MAY RUN DESPITE A SOFT LOCK.
// DOES NOT BYPASS A HARD CHANNEL LOCK OR THE GLOBAL LOCK (CALLERS MUST CHECK THOSE SEPARATELY).
func (m *Manager) ManualOverride(id int, duration time.Duration) (models.Channel, error) {
	until := time.Now().Add(duration).Unix()
	return m.store.Update(id, func(c *models.Channel) error {
		c.OverrideUntilEpoch = until
		return nil
	})
}

// CLEAROVERRIDE CANCELS ANY ACTIVE MANUAL-OVERRIDE WINDOW FOR THE CHANNEL
func (m *Manager) ClearOverride(id int) (models.Channel, error) {
	return m.store.Update(id, func(c *models.Channel) error {
		c.OverrideUntilEpoch = 0
		return nil
	})
}

// UNDEROVERRIDE REPORTS WHETHER A MANUAL OVERRIDE IS CURRENTLY ACTIVE FOR THE CHANNEL
func UnderOverride(c models.Channel, now time.Time) bool {
	return c.OverrideUntilEpoch > 0 && now.Unix() < c.OverrideUntilEpoch
}

// TICK SCANS ALL CHANNELS AND THE GLOBAL LOCK, CLEARING SOFT LOCKS WHOSE retry_after_epoch HAS
// PASSED. INVOKED FROM THE CONTROLLER'S OWN lockTickLoop TICKER, WHICH RUNS AT C6'S CHECK
// INTERVAL (SPEC_FULL.MD §4.7).
func (m *Manager) Tick() {
	now := time.Now()

	m.mu.Lock()
	if m.global.Level == models.LockSoft && !m.global.IsLockedAt(now) {
		m.global = models.HydraulicLock{Level: models.LockNone}
		clearedGlobal := true
		m.mu.Unlock()
		if clearedGlobal && m.onStatus != nil {
			m.onStatus(models.StatusOK)
		}
	} else {
		m.mu.Unlock()
	}

	all := m.store.All()
	for _, c := range all {
		if c.Lock.Level == models.LockSoft && !c.Lock.IsLockedAt(now) {
			_, _ = m.store.Update(c.ID, func(ch *models.Channel) error {
				if ch.Lock.Level == models.LockSoft && !ch.Lock.IsLockedAt(now) {
					ch.Lock = models.HydraulicLock{Level: models.LockNone}
				}
				return nil
			})
		}
	}
}
