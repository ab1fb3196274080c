package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hawkerboys/tms-api/internal/models"
)

// CertificateRepository handles persistence of assessments and certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// CreateAssessment records an assessment result for an enrollment.
func (r *CertificateRepository) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now
	const query = `INSERT INTO assessments (id, enrollment_id, score, remarks, assessed_on, created_at, updated_at)
        VALUES (:id, :enrollment_id, :score, :remarks, :assessed_on, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// FindAssessmentByEnrollment returns the assessment for an enrollment.
func (r *CertificateRepository) FindAssessmentByEnrollment(ctx context.Context, enrollmentID string) (*models.Assessment, error) {
	const query = `SELECT id, enrollment_id, score, remarks, assessed_on, created_at, updated_at
        FROM assessments WHERE enrollment_id = $1`
	var assessment models.Assessment
	if err := r.db.GetContext(ctx, &assessment, query, enrollmentID); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// Create persists an issued certificate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	cert.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO certificates (id, enrollment_id, serial_number, issued_on, created_at)
        VALUES (:id, :enrollment_id, :serial_number, :issued_on, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByEnrollment returns the certificate for an enrollment, if issued.
func (r *CertificateRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*models.Certificate, error) {
	const query = `SELECT id, enrollment_id, serial_number, issued_on, created_at
        FROM certificates WHERE enrollment_id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, enrollmentID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindDetailByID returns a certificate joined with the learner, course and run
// details needed to render the PDF.
func (r *CertificateRepository) FindDetailByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	const query = `SELECT ct.id, ct.enrollment_id, ct.serial_number, ct.issued_on, ct.created_at,
            l.given_name || ' ' || l.family_name AS learner_name,
            c.title AS course_title,
            cr.reference_code AS run_reference_code,
            cr.end_date AS run_end_date
        FROM certificates ct
        JOIN enrollments e ON e.id = ct.enrollment_id
        JOIN learners l ON l.id = e.learner_id
        JOIN class_runs cr ON cr.id = e.class_run_id
        JOIN courses c ON c.id = cr.course_id
        WHERE ct.id = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountIssuedInYear returns how many certificates were issued in a calendar
// year, used for serial number generation.
func (r *CertificateRepository) CountIssuedInYear(ctx context.Context, year int) (int, error) {
	const query = `SELECT COUNT(*) FROM certificates WHERE EXTRACT(YEAR FROM issued_on) = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, year); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}
