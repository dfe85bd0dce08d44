// PACKAGE COORDINATOR IMPLEMENTS C11, THE STATE COORDINATOR.
//
// GROUNDED ON internal/scraper/executor.go'S JobExecutor STATUS FIELD (A PLAIN STRING UNDER A
// RWMutex, READ BY GetJobStatus) — GENERALIZED HERE TO THREE SEPARATE AXES (system_state,
// system_status, power_mode) SINCE THE CONTROLLER TRACKS MORE THAN ONE ORTHOGONAL STATUS
// DIMENSION (SPEC_FULL.MD §4.11).
package coordinator

import (
	"sync"
	"time"

	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/power"
	"github.com/nickheyer/Crepes/internal/utils"
)

// COORDINATOR HOLDS THE THREE TOP-LEVEL STATUS AXES AND ENFORCES THE STICKY-FAULT RULE
type Coordinator struct {
	mu        sync.RWMutex
	state     models.SystemState
	status    models.SystemStatus
	power     models.PowerMode
	loadGate  *power.LoadGate
	logger    *utils.Logger
}

func NewCoordinator(loadGate *power.LoadGate) *Coordinator {
	return &Coordinator{
		state: models.StateIdle, status: models.StatusOK, power: models.PowerNormal,
		loadGate: loadGate, logger: utils.GetLogger(),
	}
}

// SNAPSHOT IS A POINT-IN-TIME READ OF ALL THREE AXES
type Snapshot struct {
	State  models.SystemState
	Status models.SystemStatus
	Power  models.PowerMode
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{State: c.state, Status: c.status, Power: c.power}
}

// SETSTATE RECORDS THE EXECUTOR'S CURRENT state. THE EXECUTOR OWNS TRANSITION LEGALITY (§4.5);
// THIS JUST MIRRORS THE RESULT FOR STATUS-REPORTING PURPOSES.
func (c *Coordinator) SetState(s models.SystemState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SETSTATUS APPLIES A STATUS TRANSITION, ENFORCING THE STICKY-FAULT RULE: ONCE status == FAULT,
// ONLY ResetFault CAN CLEAR IT.
func (c *Coordinator) SetStatus(s models.SystemStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == models.StatusFault && s != models.StatusFault {
		c.logger.Warn("coordinator: ignoring status change while latched in FAULT", map[string]any{"attempted": s})
		return
	}
	c.status = s
}

// RESETFAULT IS THE ONLY PATH OUT OF A STICKY FAULT: OPERATOR-INITIATED, CLEARS STATUS TO OK.
// CALLERS ARE RESPONSIBLE FOR ALSO CLEARING THE FLOW-ERROR COUNTER AND CLOSING ALL VALVES
// (SPEC_FULL.MD §4.11) — THIS METHOD ONLY OWNS THE STATUS AXIS.
func (c *Coordinator) ResetFault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = models.StatusOK
}

// SETPOWERMODE ATTEMPTS A POWER MODE TRANSITION. ULTRA_LOW IS REFUSED WHILE WATERING, AND REFUSED
// WHEN THE HOST LOAD GATE REPORTS SUSTAINED HIGH CPU.
func (c *Coordinator) SetPowerMode(mode models.PowerMode) error {
	if mode == models.PowerUltraLow {
		c.mu.RLock()
		watering := c.state == models.StateWatering
		c.mu.RUnlock()
		if watering {
			return utils.NewControllerError(utils.ErrInvalidParam, "cannot enter ULTRA_LOW power mode while WATERING", -1)
		}
		if c.loadGate != nil && !c.loadGate.AllowsUltraLow() {
			return utils.NewControllerError(utils.ErrInvalidParam, "cannot enter ULTRA_LOW power mode: sustained high host CPU load", -1)
		}
	}
	c.mu.Lock()
	c.power = mode
	c.mu.Unlock()
	return nil
}

// EMITSTATUSCHANGED BUILDS THE STRUCTURED EVENT FOR THE CURRENT STATUS, FOR THE API/LOGGER
func (c *Coordinator) EmitStatusChanged() models.SystemStatusChangedEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.SystemStatusChangedEvent{
		ID: utils.GenerateID("status"), Status: c.status, TimestampEpoch: time.Now().Unix(),
	}
}
