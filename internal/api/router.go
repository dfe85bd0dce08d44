// PACKAGE API MOUNTS THE CONTROLLER'S COMMAND SURFACE AS A GIN ROUTER.
//
// GROUNDED ON internal/api/routes.go'S SetupRouter SHAPE (gin.New() + gin.Logger()/gin.Recovery()
// MIDDLEWARE, A "/api" ROUTE GROUP). THE EMBEDDED-SVELTE-UI STATIC/SPA HANDLING IS DROPPED — THIS
// CONTROLLER HAS NO BUNDLED FRONTEND, SEE DESIGN.MD — LEAVING A PURE JSON COMMAND SURFACE.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nickheyer/Crepes/internal/controller"
)

// SETUPROUTER BUILDS THE GIN ENGINE EXPOSING SPEC_FULL.MD §6'S ROUTES OVER ctrl
func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	h := &handlers{ctrl: ctrl}

	group := r.Group("/api")
	{
		group.POST("/tasks", h.enqueueTask)
		group.POST("/tasks/current/stop", h.stopCurrent)
		group.POST("/tasks/queue/clear", h.clearQueue)
		group.POST("/tasks/current/pause", h.pauseCurrent)
		group.POST("/tasks/current/resume", h.resumeCurrent)

		group.POST("/channels/:id/on", h.channelOn)
		group.POST("/channels/:id/off", h.channelOff)
		group.GET("/channels/:id", h.getChannel)
		group.PUT("/channels/:id", h.setChannel)

		group.GET("/calibration", h.getCalibration)
		group.PUT("/calibration", h.setCalibration)

		group.PUT("/power-mode", h.setPowerMode)

		group.POST("/errors/clear", h.clearErrors)
		group.POST("/faults/reset", h.resetFault)

		group.POST("/hydraulics/channels/:id/lock", h.lockChannel)
		group.POST("/hydraulics/channels/:id/clear", h.clearChannelLock)
		group.POST("/hydraulics/global/lock", h.lockGlobal)
		group.POST("/hydraulics/global/clear", h.clearGlobalLock)
		group.POST("/hydraulics/channels/:id/override", h.manualOverride)

		group.PUT("/auto-calc/interval", h.setAutoCalcInterval)
		group.PUT("/auto-calc/enabled", h.setAutoCalcEnabled)

		group.GET("/events", h.getEvents)
		group.GET("/status", h.getStatus)
	}

	return r
}
