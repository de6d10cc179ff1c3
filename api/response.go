package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorCode = "INTERNAL_SERVER_ERROR"

// envelope is the body of every API response.
type envelope struct {
	Success bool        `json:"success"`
	Code    string      `json:"code"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, code domain.SuccessCode, data interface{}) {
	c.JSON(status, envelope{Success: true, Code: string(code), Data: data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, envelope{Code: "BAD_REQUEST", Error: msg})
}

// StatusFor maps an error to its HTTP status by kind.
func StatusFor(err error) int {
	if errors.Is(err, domain.ErrReservationConfirmUnavailable) {
		return http.StatusConflict
	}
	switch domain.KindOf(err) {
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindBadRequest, domain.KindInvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client. Internal failures are logged and
// replaced by an opaque message.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, envelope{Code: internalErrorCode, Error: "internal server error"})
		return
	}

	var de *domain.Error
	if errors.As(err, &de) {
		c.JSON(status, envelope{Code: de.Code, Error: de.Message})
		return
	}
	c.JSON(status, envelope{Code: "BAD_REQUEST", Error: err.Error()})
}
