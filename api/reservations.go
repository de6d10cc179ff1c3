package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/ownbang/api/middleware"
	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
	logger  *zap.Logger
}

type createReservationRequest struct {
	RoomID          int64     `json:"room_id" binding:"required"`
	ReservationTime time.Time `json:"reservation_time" binding:"required"`
}

type reservationResponse struct {
	ID              int64  `json:"id"`
	RoomID          int64  `json:"room_id"`
	UserID          int64  `json:"user_id"`
	ReservationTime string `json:"reservation_time"`
	Status          string `json:"status"`
}

type reservationListResponse struct {
	Reservations []reservationResponse `json:"reservations"`
}

func NewReservationHandler(service reservation.ReservationUseCase, logger *zap.Logger) *ReservationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationHandler{service: service, logger: logger}
}

// Register mounts the routes on a group that already runs the JWT middleware.
func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/reservations", h.create)
	router.GET("/reservations/me", h.listMine)
	router.PATCH("/reservations/:id/cancel", h.cancel)
	router.PATCH("/reservations/:id/confirm", h.confirm)
	router.GET("/agents/me/reservations", h.listForAgent)
}

func (h *ReservationHandler) create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := h.service.CreateReservation(c.Request.Context(), reservation.CreateReservationInput{
		RoomID:          req.RoomID,
		UserID:          userID,
		ReservationTime: req.ReservationTime,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, res.Code, toReservationResponse(res.Reservation))
}

func (h *ReservationHandler) listMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	res, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res.Code, toListResponse(res.Reservations))
}

func (h *ReservationHandler) listForAgent(c *gin.Context) {
	agentID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	var opts reservation.AgentListOptions
	if raw := c.Query("include_cancelled"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "include_cancelled must be a boolean")
			return
		}
		opts.IncludeCancelled = v
	}

	res, err := h.service.ListForAgent(c.Request.Context(), agentID, opts)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res.Code, toListResponse(res.Reservations))
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}
	res, err := h.service.Withdraw(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res.Code, toReservationResponse(res.Reservation))
}

func (h *ReservationHandler) confirm(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}
	res, err := h.service.Confirm(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, res.Code, toReservationResponse(res.Reservation))
}

func reservationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid reservation id")
		return 0, false
	}
	return id, true
}

func toReservationResponse(r *domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:              r.ID,
		RoomID:          r.RoomID,
		UserID:          r.UserID,
		ReservationTime: r.ReservationTime.Format(time.RFC3339),
		Status:          string(r.Status),
	}
}

func toListResponse(list []domain.Reservation) reservationListResponse {
	out := reservationListResponse{Reservations: make([]reservationResponse, 0, len(list))}
	for i := range list {
		out.Reservations = append(out.Reservations, toReservationResponse(&list[i]))
	}
	return out
}
