package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hawkerboys/tms-api/internal/service"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/response"
)

// ClaimHandler exposes funding claim endpoints.
type ClaimHandler struct {
	claims *service.ClaimService
}

// NewClaimHandler constructs ClaimHandler.
func NewClaimHandler(claims *service.ClaimService) *ClaimHandler {
	return &ClaimHandler{claims: claims}
}

// Submit godoc
// @Summary Submit a funding claim for an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.SubmitClaimRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/claim [post]
func (h *ClaimHandler) Submit(c *gin.Context) {
	var req service.SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resp, err := h.claims.Submit(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}
