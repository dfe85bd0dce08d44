package utils

import "github.com/gin-gonic/gin"

// HTTPSTATUSFOR MAPS A CONTROLLER ERRCODE TO AN HTTP STATUS CODE
func HTTPStatusFor(code ErrCode) int {
	switch code {
	case ErrInvalidParam, ErrConfigInvalid, ErrInvalidTransitn:
		return 400
	case ErrNotInitialized:
		return 503
	case ErrBusy, ErrTimeout:
		return 503
	case ErrLocked:
		return 423
	case ErrNoFlow, ErrUnexpectedFlow, ErrHardware:
		return 409
	case ErrStorage:
		return 500
	case ErrNotSupported:
		return 501
	default:
		return 500
	}
}

// RESPONDERROR WRITES A CONTROLLERERROR AS A JSON ENVELOPE
func RespondError(c *gin.Context, err *ControllerError) {
	c.JSON(HTTPStatusFor(err.Code), gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}

// RESPONDOK WRITES A 200 JSON PAYLOAD
func RespondOK(c *gin.Context, payload any) {
	c.JSON(200, payload)
}
