package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkerboys/tms-api/internal/models"
	"github.com/hawkerboys/tms-api/internal/registry"
	appErrors "github.com/hawkerboys/tms-api/pkg/errors"
)

type fakeClaimSubmitter struct {
	payloads []registry.ClaimPayload
	err      error
}

func (f *fakeClaimSubmitter) SubmitClaim(_ context.Context, payload registry.ClaimPayload) (*registry.ClaimResponse, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return &registry.ClaimResponse{ClaimID: "CLM-001"}, nil
}

func completedDetail() *models.EnrollmentDetail {
	regID := "ENR-REG-77"
	nric := "S****123A"
	return &models.EnrollmentDetail{
		Enrollment: models.Enrollment{
			ID:                   "enr-1",
			LearnerID:            "lrn-1",
			ClassRunID:           "run-1",
			Status:               models.EnrollmentStatusCompleted,
			RegistryEnrollmentID: &regID,
		},
		RunReferenceCode:  "FIN-2024-01",
		LearnerMaskedNRIC: &nric,
		LearnerName:       "Tan Mei Ling",
	}
}

func TestClaimSubmitBuildsRegistryPayload(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.details["enr-1"] = completedDetail()
	reg := &fakeClaimSubmitter{}
	svc := NewClaimService(repo, func() ClaimSubmitter { return reg }, &mockAudit{}, nil, nil)

	resp, err := svc.Submit(context.Background(), "enr-1", SubmitClaimRequest{Amount: 350.50}, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "CLM-001", resp.ClaimID)

	require.Len(t, reg.payloads, 1)
	payload := reg.payloads[0]
	assert.Equal(t, "FIN-2024-01", payload.CourseRunCode)
	assert.Equal(t, "S****123A", payload.LearnerIdentifier)
	assert.Equal(t, "ENR-REG-77", payload.EnrolmentReference)
	assert.InDelta(t, 350.50, payload.Amount, 0.001)
}

func TestClaimSubmitRequiresCompletedEnrollment(t *testing.T) {
	repo := newMockEnrollmentRepo()
	detail := completedDetail()
	detail.Status = models.EnrollmentStatusInProgress
	repo.details["enr-1"] = detail
	reg := &fakeClaimSubmitter{}
	svc := NewClaimService(repo, func() ClaimSubmitter { return reg }, nil, nil, nil)

	_, err := svc.Submit(context.Background(), "enr-1", SubmitClaimRequest{Amount: 100}, "usr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Status, appErrors.FromError(err).Status)
	assert.Empty(t, reg.payloads)
}

func TestClaimSubmitRequiresSyncedEnrollment(t *testing.T) {
	repo := newMockEnrollmentRepo()
	detail := completedDetail()
	detail.RegistryEnrollmentID = nil
	repo.details["enr-1"] = detail
	reg := &fakeClaimSubmitter{}
	svc := NewClaimService(repo, func() ClaimSubmitter { return reg }, nil, nil, nil)

	_, err := svc.Submit(context.Background(), "enr-1", SubmitClaimRequest{Amount: 100}, "usr-1")
	require.Error(t, err)
	assert.Empty(t, reg.payloads)
}
