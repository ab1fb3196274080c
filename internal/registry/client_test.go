package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hawkerboys/tms-api/pkg/config"
)

func newTestClient(baseURL string) *Client {
	c := New(config.RegistryConfig{
		BaseURL:      baseURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      5 * time.Second,
		Environment:  "sandbox",
	}, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func tokenHandler(calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_ = r.ParseForm()
		if r.PostFormValue("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "tok-123", TokenType: "Bearer", ExpiresIn: 3600})
	}
}

func TestAuthenticateCachesTokenUntilExpiry(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	first, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	second, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.AccessToken, second.AccessToken)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))

	// Past expiry the cache must refresh.
	now = now.Add(2 * time.Hour)
	_, err = client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&tokenCalls))
}

func TestObtainTokenServerErrorRaisesAuthError(t *testing.T) {
	var tokenCalls, dataCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})
	mux.HandleFunc("/courses", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateCourse(context.Background(), CoursePayload{CourseCode: "FIN-LIT-101"})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusInternalServerError, authErr.Status)
	assert.EqualValues(t, 3, atomic.LoadInt32(&tokenCalls))
	assert.EqualValues(t, 0, atomic.LoadInt32(&dataCalls), "no data call may be attempted without a token")
}

func TestObtainTokenRejectedCredentialsNotRetried(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		http.Error(w, "invalid_client", http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ObtainToken(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
}

func TestCallRetriesServerErrorsThenSucceeds(t *testing.T) {
	var tokenCalls, dataCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	mux.HandleFunc("/courses/courseRuns", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&dataCalls, 1) < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(CourseRunResponse{CourseRunID: "RUN-900"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.CreateCourseRun(context.Background(), CourseRunPayload{CourseRunCode: "FIN-2024-01"})
	require.NoError(t, err)
	assert.Equal(t, "RUN-900", resp.CourseRunID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&dataCalls))
}

func TestCallExhaustsRetryBudget(t *testing.T) {
	var tokenCalls, dataCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	mux.HandleFunc("/courses/courseRuns/enrolments", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SubmitEnrollment(context.Background(), EnrollmentPayload{CourseRunCode: "FIN-2024-01"})

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusInternalServerError, clientErr.Status)
	assert.Equal(t, "boom\n", clientErr.Body)
	assert.EqualValues(t, 3, atomic.LoadInt32(&dataCalls), "exactly 3 attempts, not 4")
}

func TestCallDoesNotRetryClientErrors(t *testing.T) {
	var tokenCalls, dataCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	mux.HandleFunc("/courses", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&dataCalls, 1)
		http.Error(w, "missing courseCode", http.StatusBadRequest)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateCourse(context.Background(), CoursePayload{})

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusBadRequest, clientErr.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&dataCalls), "4xx responses are terminal")
}

func TestCallNoResponseHasZeroStatus(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	srv := httptest.NewServer(mux)

	client := newTestClient(srv.URL)
	_, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	srv.Close()

	_, err = client.SubmitAttendance(context.Background(), AttendancePayload{CourseRunCode: "FIN-2024-01"})
	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 0, clientErr.Status)
	assert.Error(t, errors.Unwrap(clientErr))
}

func TestCallSendsRequiredHeaders(t *testing.T) {
	var tokenCalls int32
	correlationIDs := make(chan string, 2)
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	mux.HandleFunc("/courses/courseRuns/sessions/attendance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "sandbox", r.Header.Get("X-Registry-Env"))
		correlationIDs <- r.Header.Get("X-Correlation-ID")
		_ = json.NewEncoder(w).Encode(AttendanceResponse{Acknowledged: true})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.SubmitAttendance(context.Background(), AttendancePayload{})
	require.NoError(t, err)
	_, err = client.SubmitAttendance(context.Background(), AttendancePayload{})
	require.NoError(t, err)

	first, second := <-correlationIDs, <-correlationIDs
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second, "every call carries a fresh correlation id")
}

func TestSubmitClaimHitsClaimsPath(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", tokenHandler(&tokenCalls))
	mux.HandleFunc("/courses/courseRuns/claims", func(w http.ResponseWriter, r *http.Request) {
		var payload ClaimPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "FIN-2024-01", payload.CourseRunCode)
		assert.Equal(t, "ENR-REG-77", payload.EnrolmentReference)
		_ = json.NewEncoder(w).Encode(ClaimResponse{ClaimID: "CLM-42"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.SubmitClaim(context.Background(), ClaimPayload{
		CourseRunCode:      "FIN-2024-01",
		LearnerIdentifier:  "S****123A",
		EnrolmentReference: "ENR-REG-77",
		Amount:             350.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "CLM-42", resp.ClaimID)
}

func TestRetryDelayDoublesAndCaps(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(1))
	assert.Equal(t, 2*time.Second, retryDelay(2))
	assert.Equal(t, 4*time.Second, retryDelay(3))
	assert.Equal(t, 8*time.Second, retryDelay(4))
	assert.Equal(t, 10*time.Second, retryDelay(5))
	assert.Equal(t, 10*time.Second, retryDelay(9))
}
