package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/controller"
	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/utils"
)

type handlers struct {
	ctrl *controller.Controller
}

func channelIDParam(c *gin.Context) (int, *utils.ControllerError) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, utils.NewControllerError(utils.ErrInvalidParam, "channel id must be an integer", -1)
	}
	return id, nil
}

// ENQUEUETASKREQUEST IS THE BODY FOR POST /api/tasks
type enqueueTaskRequest struct {
	ChannelID   int     `json:"channelId" binding:"required"`
	Mode        string  `json:"mode" binding:"required"` // "BY_DURATION" | "BY_VOLUME"
	DurationMin int     `json:"durationMin,omitempty"`
	VolumeLiters float64 `json:"volumeLiters,omitempty"`
}

func (h *handlers) enqueueTask(c *gin.Context) {
	var req enqueueTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), -1))
		return
	}

	mode := models.WateringMode(req.Mode)
	if mode == models.ModeByDuration && (req.DurationMin < 1 || req.DurationMin > 720) {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, "durationMin must be in [1,720]", req.ChannelID))
		return
	}
	if mode == models.ModeByVolume && (req.VolumeLiters < 1 || req.VolumeLiters > 65535) {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, "volumeLiters must be in [1,65535]", req.ChannelID))
		return
	}

	task := models.NewTask(utils.GenerateID("task"), req.ChannelID, models.TriggerRemoteCommand, mode)
	task.DurationMin = req.DurationMin
	task.VolumeLiters = req.VolumeLiters

	result := h.ctrl.Queue.Enqueue(task)
	utils.RespondOK(c, gin.H{"result": result, "taskId": task.ID})
}

func (h *handlers) stopCurrent(c *gin.Context) {
	h.ctrl.Executor.Abort("operator stop")
	utils.RespondOK(c, gin.H{"stopped": true})
}

func (h *handlers) clearQueue(c *gin.Context) {
	dropped := h.ctrl.Queue.Clear()
	utils.RespondOK(c, gin.H{"droppedCount": dropped})
}

func (h *handlers) pauseCurrent(c *gin.Context) {
	if err := h.ctrl.Executor.Pause(); err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, gin.H{"paused": true})
}

func (h *handlers) resumeCurrent(c *gin.Context) {
	if err := h.ctrl.Executor.Resume(); err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, gin.H{"resumed": true})
}

const manualToggleSafetyMinutes = 15

func (h *handlers) channelOn(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	result, task := h.ctrl.EnqueueManual(id, manualToggleSafetyMinutes)
	utils.RespondOK(c, gin.H{"result": result, "taskId": task.ID})
}

func (h *handlers) channelOff(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	if cur, ok := h.ctrl.Queue.Current(); ok && cur.ChannelID == id {
		h.ctrl.Executor.Abort("manual off")
	}
	utils.RespondOK(c, gin.H{"stopped": true})
}

func (h *handlers) getChannel(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	ch, err := h.ctrl.Store.Get(id)
	if err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, ch)
}

func (h *handlers) setChannel(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	var ch models.Channel
	if err := c.ShouldBindJSON(&ch); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), id))
		return
	}
	updated, err := h.ctrl.Store.Replace(id, ch)
	if err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	h.ctrl.PersistChannel(updated)
	utils.RespondOK(c, updated)
}

func (h *handlers) getCalibration(c *gin.Context) {
	utils.RespondOK(c, gin.H{"pulsesPerLiter": h.ctrl.Calibration()})
}

type calibrationRequest struct {
	PulsesPerLiter uint32 `json:"pulsesPerLiter" binding:"required"`
}

func (h *handlers) setCalibration(c *gin.Context) {
	var req calibrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), -1))
		return
	}
	if err := h.ctrl.SetCalibration(req.PulsesPerLiter); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrStorage, err.Error(), -1))
		return
	}
	utils.RespondOK(c, gin.H{"pulsesPerLiter": req.PulsesPerLiter})
}

type powerModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *handlers) setPowerMode(c *gin.Context) {
	var req powerModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), -1))
		return
	}
	if err := h.ctrl.Coord.SetPowerMode(models.PowerMode(req.Mode)); err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, gin.H{"mode": req.Mode})
}

func (h *handlers) clearErrors(c *gin.Context) {
	for id := 0; id < channelstore.NumChannels; id++ {
		_, _ = h.ctrl.Store.Update(id, func(ch *models.Channel) error {
			ch.ErrorCount = 0
			return nil
		})
	}
	utils.RespondOK(c, gin.H{"cleared": true})
}

func (h *handlers) resetFault(c *gin.Context) {
	if err := h.ctrl.ResetFault(c.Request.Context()); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidTransitn, err.Error(), -1))
		return
	}
	utils.RespondOK(c, gin.H{"reset": true})
}

type lockRequest struct {
	Level  string `json:"level" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

func (h *handlers) lockChannel(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), id))
		return
	}
	updated, err := h.ctrl.Locks.SetChannel(id, models.LockLevel(req.Level), models.LockReason(req.Reason), 10*time.Minute)
	if err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, updated)
}

func (h *handlers) clearChannelLock(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	updated, err := h.ctrl.Locks.ClearChannel(id)
	if err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, updated)
}

func (h *handlers) lockGlobal(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), -1))
		return
	}
	h.ctrl.Locks.SetGlobal(models.LockLevel(req.Level), models.LockReason(req.Reason))
	_ = h.ctrl.DB.SaveGlobalLock(h.ctrl.Locks.Global())
	utils.RespondOK(c, h.ctrl.Locks.Global())
}

func (h *handlers) clearGlobalLock(c *gin.Context) {
	h.ctrl.Locks.ClearGlobal()
	_ = h.ctrl.DB.SaveGlobalLock(h.ctrl.Locks.Global())
	utils.RespondOK(c, h.ctrl.Locks.Global())
}

type overrideRequest struct {
	DurationSec int `json:"durationSec" binding:"required"`
}

func (h *handlers) manualOverride(c *gin.Context) {
	id, cerr := channelIDParam(c)
	if cerr != nil {
		utils.RespondError(c, cerr)
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), id))
		return
	}
	updated, err := h.ctrl.Locks.ManualOverride(id, time.Duration(req.DurationSec)*time.Second)
	if err != nil {
		utils.RespondError(c, err.(*utils.ControllerError))
		return
	}
	utils.RespondOK(c, updated)
}

type intervalRequest struct {
	Hours int `json:"hours" binding:"required"`
}

func (h *handlers) setAutoCalcInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), -1))
		return
	}
	if req.Hours < 1 || req.Hours > 24 {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, "hours must be in [1,24]", -1))
		return
	}
	if err := h.ctrl.AutoSched.SetInterval(time.Duration(req.Hours) * time.Hour); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrStorage, err.Error(), -1))
		return
	}
	utils.RespondOK(c, gin.H{"hours": req.Hours})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *handlers) setAutoCalcEnabled(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrInvalidParam, err.Error(), -1))
		return
	}
	if err := h.ctrl.AutoSched.SetEnabled(req.Enabled); err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrStorage, err.Error(), -1))
		return
	}
	utils.RespondOK(c, gin.H{"enabled": req.Enabled})
}

func (h *handlers) getEvents(c *gin.Context) {
	channelIDStr := c.Query("channelId")
	channelID := 0
	if channelIDStr != "" {
		if v, err := strconv.Atoi(channelIDStr); err == nil {
			channelID = v
		}
	}

	var sinceEpoch int64
	if sinceStr := c.Query("since"); sinceStr != "" {
		if v, err := strconv.ParseInt(sinceStr, 10, 64); err == nil {
			sinceEpoch = v
		}
	}

	events, err := h.ctrl.DB.HistoryFor(channelID, sinceEpoch, 100)
	if err != nil {
		utils.RespondError(c, utils.NewControllerError(utils.ErrStorage, err.Error(), channelID))
		return
	}
	utils.RespondOK(c, gin.H{"events": events})
}

func (h *handlers) getStatus(c *gin.Context) {
	snap := h.ctrl.Coord.Snapshot()
	utils.RespondOK(c, gin.H{
		"state": snap.State, "status": snap.Status, "power": snap.Power,
		"pendingTasks": h.ctrl.Queue.PeekPending(),
	})
}
