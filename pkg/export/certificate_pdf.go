// Package export renders printable documents.
package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/hawkerboys/tms-api/internal/models"
)

// CertificateRenderer produces the printable completion certificate.
type CertificateRenderer struct {
	issuerName string
}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer(issuerName string) *CertificateRenderer {
	if issuerName == "" {
		issuerName = "Hawker Boys Training Academy"
	}
	return &CertificateRenderer{issuerName: issuerName}
}

// Render creates a landscape A4 certificate document.
func (r *CertificateRenderer) Render(detail *models.CertificateDetail) ([]byte, error) {
	if detail == nil {
		return nil, fmt.Errorf("certificate detail required")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 26)
	pdf.CellFormat(0, 16, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "This is to certify that", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, detail.LearnerName, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, "has successfully completed", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, detail.CourseTitle, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Class run %s, concluded %s", detail.RunReferenceCode, detail.RunEndDate.Format("2 January 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued on %s by %s", detail.IssuedOn.Format("2 January 2006"), r.issuerName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "I", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Serial number: %s", detail.SerialNumber), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
