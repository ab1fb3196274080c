package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hawkerboys/tms-api/internal/models"
)

func TestCertificateRendererProducesPDF(t *testing.T) {
	renderer := NewCertificateRenderer("Hawker Boys Training Academy")
	detail := &models.CertificateDetail{
		Certificate: models.Certificate{
			SerialNumber: "CERT-2024-00001",
			IssuedOn:     time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		LearnerName:      "Tan Mei Ling",
		CourseTitle:      "Financial Literacy Basics",
		RunReferenceCode: "FIN-2024-01",
		RunEndDate:       time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	data, err := renderer.Render(detail)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, "%PDF", string(data[:4]))
}

func TestCertificateRendererRequiresDetail(t *testing.T) {
	renderer := NewCertificateRenderer("")
	_, err := renderer.Render(nil)
	require.Error(t, err)
}
