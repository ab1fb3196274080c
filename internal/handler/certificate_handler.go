package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hawkerboys/tms-api/internal/service"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
	"github.com/hawkerboys/tms-api/pkg/response"
)

// CertificateHandler exposes assessment and certificate endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// RecordAssessment godoc
// @Summary Record an assessment result
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RecordAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/assessment [post]
func (h *CertificateHandler) RecordAssessment(c *gin.Context) {
	var req service.RecordAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assessment, err := h.certificates.RecordAssessment(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// Issue godoc
// @Summary Issue a completion certificate
// @Tags Certificates
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/certificate [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	cert, err := h.certificates.Issue(c.Request.Context(), c.Param("id"), actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// Download godoc
// @Summary Download a certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Certificate ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/{id}/pdf [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	data, filename, err := h.certificates.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
