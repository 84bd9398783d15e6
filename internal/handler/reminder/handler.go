package reminder

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cropcare/reminder-api/internal/model"
	"github.com/cropcare/reminder-api/internal/service/reminder"
	apperrors "github.com/cropcare/reminder-api/pkg/errors"
	"github.com/cropcare/reminder-api/pkg/httputil"
)

type Handler struct {
	service *reminder.Service
}

func NewHandler(service *reminder.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reminders := r.Group("/reminders")
	{
		reminders.POST("", h.CreateReminder)
		reminders.GET("", h.ListReminders)
		reminders.POST("/schedule", h.GenerateSchedule)
		reminders.POST("/:id/complete", h.CompleteReminder)
		reminders.POST("/:id/snooze", h.SnoozeReminder)
		reminders.DELETE("/:id", h.DeleteReminder)
	}
}

func (h *Handler) CreateReminder(c *gin.Context) {
	var req model.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	created, err := h.service.CreateReminder(c.Request.Context(), req.Treatment, req.Disease, req.Options)
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	httputil.RespondWithCreated(c, created)
}

func (h *Handler) ListReminders(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.ActiveReminders())
}

func (h *Handler) GenerateSchedule(c *gin.Context) {
	var req model.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
		return
	}

	httputil.RespondWithSuccess(c, h.service.GenerateSchedule(req.Treatment, req.Disease))
}

func (h *Handler) CompleteReminder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid reminder ID", err))
		return
	}

	if err := h.service.CompleteReminder(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	httputil.RespondWithNoContent(c)
}

func (h *Handler) SnoozeReminder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid reminder ID", err))
		return
	}

	// Body is optional; an empty snooze uses the default minutes.
	var req model.SnoozeReminderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithError(c, apperrors.NewBadRequest(err.Error(), err))
			return
		}
	}

	if err := h.service.SnoozeReminder(c.Request.Context(), id, req.Minutes); err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	httputil.RespondWithNoContent(c)
}

func (h *Handler) DeleteReminder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid reminder ID", err))
		return
	}

	if err := h.service.DeleteReminder(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}

	httputil.RespondWithNoContent(c)
}
