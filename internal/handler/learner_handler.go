package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hawkerboys/tms-api/internal/service"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/response"
)

// LearnerHandler exposes learner endpoints.
type LearnerHandler struct {
	learners *service.LearnerService
}

// NewLearnerHandler constructs LearnerHandler.
func NewLearnerHandler(learners *service.LearnerService) *LearnerHandler {
	return &LearnerHandler{learners: learners}
}

// List godoc
// @Summary List learners
// @Tags Learners
// @Produce json
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /learners [get]
func (h *LearnerHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	learners, pagination, err := h.learners.List(c.Request.Context(), c.Query("search"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, learners, pagination)
}

// Get godoc
// @Summary Get a learner
// @Tags Learners
// @Produce json
// @Param id path string true "Learner ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /learners/{id} [get]
func (h *LearnerHandler) Get(c *gin.Context) {
	learner, err := h.learners.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, learner, nil)
}

// Create godoc
// @Summary Register a learner
// @Tags Learners
// @Accept json
// @Produce json
// @Param payload body service.CreateLearnerRequest true "Learner payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /learners [post]
func (h *LearnerHandler) Create(c *gin.Context) {
	var req service.CreateLearnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	learner, err := h.learners.Create(c.Request.Context(), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, learner)
}

// Update godoc
// @Summary Update a learner
// @Tags Learners
// @Accept json
// @Produce json
// @Param id path string true "Learner ID"
// @Param payload body service.CreateLearnerRequest true "Learner payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /learners/{id} [put]
func (h *LearnerHandler) Update(c *gin.Context) {
	var req service.CreateLearnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	learner, err := h.learners.Update(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, learner, nil)
}
