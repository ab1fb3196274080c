package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hawkerboys/tms-api/internal/models"
	"github.com/hawkerboys/tms-api/internal/service"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/response"
)

// ClassRunHandler exposes class run endpoints.
type ClassRunHandler struct {
	runs *service.ClassRunService
}

// NewClassRunHandler constructs ClassRunHandler.
func NewClassRunHandler(runs *service.ClassRunService) *ClassRunHandler {
	return &ClassRunHandler{runs: runs}
}

// List godoc
// @Summary List class runs
// @Tags ClassRuns
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /class-runs [get]
func (h *ClassRunHandler) List(c *gin.Context) {
	var filter models.ClassRunFilter
	filter.CourseID = c.Query("courseId")
	filter.Status = models.ClassRunStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	runs, pagination, err := h.runs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, pagination)
}

// Get godoc
// @Summary Get a class run with sessions
// @Tags ClassRuns
// @Produce json
// @Param id path string true "Class run ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /class-runs/{id} [get]
func (h *ClassRunHandler) Get(c *gin.Context) {
	run, sessions, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"class_run": run, "sessions": sessions}, nil)
}

// Create godoc
// @Summary Schedule a class run
// @Tags ClassRuns
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRunRequest true "Class run payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /class-runs [post]
func (h *ClassRunHandler) Create(c *gin.Context) {
	var req service.CreateClassRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	run, err := h.runs.Create(c.Request.Context(), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// Update godoc
// @Summary Update a class run
// @Tags ClassRuns
// @Accept json
// @Produce json
// @Param id path string true "Class run ID"
// @Param payload body service.UpdateClassRunRequest true "Class run payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /class-runs/{id} [put]
func (h *ClassRunHandler) Update(c *gin.Context) {
	var req service.UpdateClassRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	run, err := h.runs.Update(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// AddSession godoc
// @Summary Add a session to a class run
// @Tags ClassRuns
// @Accept json
// @Produce json
// @Param id path string true "Class run ID"
// @Param payload body service.AddSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /class-runs/{id}/sessions [post]
func (h *ClassRunHandler) AddSession(c *gin.Context) {
	var req service.AddSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.runs.AddSession(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// ListSessions godoc
// @Summary List sessions of a class run
// @Tags ClassRuns
// @Produce json
// @Param id path string true "Class run ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /class-runs/{id}/sessions [get]
func (h *ClassRunHandler) ListSessions(c *gin.Context) {
	sessions, err := h.runs.ListSessions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}
