package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/internal/service"
	syncjobs "github.com/hawkerboys/tms-api/internal/sync"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/response"
)

// SyncHandler exposes sync queue operations and the registry webhook.
type SyncHandler struct {
	sync          *service.SyncService
	webhookSecret string
	logger        *zap.Logger
}

// NewSyncHandler constructs SyncHandler.
func NewSyncHandler(sync *service.SyncService, webhookSecret string, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{sync: sync, webhookSecret: webhookSecret, logger: logger}
}

// Status godoc
// @Summary Sync queue status
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.sync.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// DeadLetters godoc
// @Summary List dead-lettered sync jobs
// @Tags Sync
// @Produce json
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /sync/dead-letters [get]
func (h *SyncHandler) DeadLetters(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	letters, err := h.sync.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, letters, nil)
}

// Requeue godoc
// @Summary Requeue a dead-lettered sync job
// @Tags Sync
// @Produce json
// @Param id path string true "Job ID"
// @Success 204
// @Security BearerAuth
// @Router /sync/dead-letters/{id}/requeue [post]
func (h *SyncHandler) Requeue(c *gin.Context) {
	if err := h.sync.Requeue(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type triggerSyncRequest struct {
	Kind     string `json:"kind" binding:"required"`
	EntityID string `json:"entity_id" binding:"required"`
}

// Trigger godoc
// @Summary Manually queue a sync job
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body triggerSyncRequest true "Sync payload"
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /sync/trigger [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	var req triggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	jobID, err := h.sync.Trigger(c.Request.Context(), syncjobs.JobKind(req.Kind), req.EntityID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"job_id": jobID}, nil)
}

// TestWebhook godoc
// @Summary Registry webhook connectivity check
// @Tags Sync
// @Accept json
// @Produce json
// @Param X-Registry-Signature header string true "Shared webhook secret"
// @Success 200 {object} response.Envelope
// @Router /registry/test-webhook [post]
func (h *SyncHandler) TestWebhook(c *gin.Context) {
	signature := c.GetHeader("X-Registry-Signature")
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(signature), []byte(h.webhookSecret)) != 1 {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature"))
		return
	}
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		payload = nil
	}
	h.logger.Info("registry webhook received", zap.Any("payload", payload))
	response.JSON(c, http.StatusOK, gin.H{"received": true}, nil)
}
