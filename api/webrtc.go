package api

import (
	"net/http"

	"github.com/Domenick1991/ownbang/api/middleware"
	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/service/webrtc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebrtcHandler struct {
	service webrtc.WebrtcUseCase
	logger  *zap.Logger
}

type issueTokenRequest struct {
	ReservationID int64       `json:"reservation_id" binding:"required"`
	Role          domain.Role `json:"role" binding:"required"`
}

type revokeTokenRequest struct {
	ReservationID int64       `json:"reservation_id" binding:"required"`
	Token         string      `json:"token" binding:"required"`
	Role          domain.Role `json:"role" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func NewWebrtcHandler(service webrtc.WebrtcUseCase, logger *zap.Logger) *WebrtcHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebrtcHandler{service: service, logger: logger}
}

func (h *WebrtcHandler) Register(router *gin.RouterGroup) {
	router.POST("/webrtcs/token", h.issue)
	router.DELETE("/webrtcs/token", h.revoke)
}

func (h *WebrtcHandler) issue(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.service.IssueToken(c.Request.Context(), webrtc.IssueTokenInput{
		ReservationID: req.ReservationID,
		UserID:        userID,
		Role:          req.Role,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res.Code, tokenResponse{Token: res.Token})
}

func (h *WebrtcHandler) revoke(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req revokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.service.RevokeToken(c.Request.Context(), webrtc.RevokeTokenInput{
		ReservationID: req.ReservationID,
		UserID:        userID,
		Token:         req.Token,
		Role:          req.Role,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res.Code, nil)
}
