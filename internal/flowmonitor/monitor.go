// PACKAGE FLOWMONITOR IMPLEMENTS C6, THE NO-FLOW / UNEXPECTED-FLOW WATCHDOG.
//
// GROUNDED ON internal/scraper/executor.go'S monitorStatus TICKER LOOP, RETARGETED FROM
// PROGRESS-PERCENTAGE BOOKKEEPING TO FLOW-ANOMALY DETECTION. IT RUNS ON ITS OWN time.Ticker AND IS
// NOT A gocron JOB (SPEC_FULL.MD §4.6).
package flowmonitor

import (
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/executor"
	"github.com/nickheyer/Crepes/internal/hydraulics"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/pulse"
	"github.com/nickheyer/Crepes/internal/utils"
)

// CONFIG CARRIES THE THRESHOLDS FLOWMONITOR EVALUATES AGAINST
type Config struct {
	CheckInterval                time.Duration
	MaxFlowErrorAttempts         int
	UnexpectedFlowThreshold      uint32
	NoFlowRetryCooldown          time.Duration
	StallGraceAfterStart         time.Duration
}

// MONITOR RUNS THE PERIODIC FLOW-ANOMALY CHECK
type Monitor struct {
	mu sync.Mutex

	cfg      Config
	store    *channelstore.Store
	exec     *executor.Executor
	locks    *hydraulics.Manager
	pulses   *pulse.Counter
	logger   *utils.Logger

	noFlowAttempts int
	status         models.SystemStatus
	onStatus       func(models.SystemStatus)
	onFault        func()

	lastIdlePulses uint32
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

func NewMonitor(cfg Config, store *channelstore.Store, exec *executor.Executor, locks *hydraulics.Manager,
	pulses *pulse.Counter, onStatus func(models.SystemStatus), onFault func()) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	if cfg.MaxFlowErrorAttempts <= 0 {
		cfg.MaxFlowErrorAttempts = 3
	}
	if cfg.StallGraceAfterStart <= 0 {
		cfg.StallGraceAfterStart = 5 * time.Second
	}
	return &Monitor{
		cfg: cfg, store: store, exec: exec, locks: locks, pulses: pulses,
		logger: utils.GetLogger(), status: models.StatusOK, onStatus: onStatus, onFault: onFault,
		stopCh: make(chan struct{}),
	}
}

// START RUNS THE FLOW CHECK ON A DEDICATED time.Ticker LOOP AT cfg.CheckInterval (1 s BY DEFAULT),
// SHAPED LIKE THE TEACHER'S monitorStatus. IT IS NOT REGISTERED WITH gocron; C9 (THE AUTO SCHEDULER)
// OWNS THE ONLY gocron INSTANCE.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.check()
			}
		}
	}()
}

// STOP HALTS THE CHECK LOOP. IDEMPOTENT.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) check() {
	active, run := m.exec.IsActive(), models.TaskRunState{}
	if active {
		run, active = m.exec.CurrentTask()
	}

	if active {
		m.checkActiveTask(run)
		return
	}
	m.checkIdleFlow()
}

func (m *Monitor) checkActiveTask(run models.TaskRunState) {
	elapsed := time.Since(time.Unix(run.StartEpoch, 0))
	pulses := m.pulses.Get()

	if elapsed > m.cfg.StallGraceAfterStart && pulses == 0 {
		m.mu.Lock()
		m.noFlowAttempts++
		attempts := m.noFlowAttempts
		m.mu.Unlock()

		m.exec.Abort("no flow detected")
		m.setStatus(models.StatusNoFlow)

		if attempts >= m.cfg.MaxFlowErrorAttempts {
			m.setStatus(models.StatusFault)
			if m.onFault != nil {
				m.onFault()
			}
			m.logger.Error("flow monitor: max no-flow attempts reached, entering fault", map[string]any{
				"attempts": attempts,
			})
			return
		}

		m.locks.SetChannel(run.Task.ChannelID, models.LockSoft, models.ReasonNoFlow, m.cfg.NoFlowRetryCooldown)
		return
	}

	if pulses > 0 {
		m.mu.Lock()
		hadAttempts := m.noFlowAttempts > 0
		m.noFlowAttempts = 0
		m.mu.Unlock()
		if hadAttempts && m.status == models.StatusNoFlow {
			m.setStatus(models.StatusOK)
		}
	}
}

func (m *Monitor) checkIdleFlow() {
	pulses := m.pulses.Get()
	if pulses > m.cfg.UnexpectedFlowThreshold {
		m.setStatus(models.StatusUnexpectedFlow)
		m.locks.SetGlobal(models.LockSoft, models.ReasonUnexpectedFlow)
		m.pulses.Reset()
		m.logger.Warn("flow monitor: unexpected flow detected while idle", map[string]any{
			"pulses": pulses, "threshold": m.cfg.UnexpectedFlowThreshold,
		})
		return
	}

	if m.status == models.StatusUnexpectedFlow && pulses < m.cfg.UnexpectedFlowThreshold/2 {
		m.setStatus(models.StatusOK)
	}
}

func (m *Monitor) setStatus(s models.SystemStatus) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.onStatus != nil {
		m.onStatus(s)
	}
}

// STATUS RETURNS THE MONITOR'S CURRENT FLOW STATUS OPINION
func (m *Monitor) Status() models.SystemStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RESETFAULT CLEARS THE NO-FLOW ATTEMPT COUNTER, FOR USE AFTER AN OPERATOR RESET
func (m *Monitor) ResetFault() {
	m.mu.Lock()
	m.noFlowAttempts = 0
	m.status = models.StatusOK
	m.mu.Unlock()
}
