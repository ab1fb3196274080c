package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hawkerboys/tms-api/pkg/config"
)

const (
	headerCorrelationID = "X-Correlation-ID"
	headerEnvironment   = "X-Registry-Env"

	maxAttempts      = 3
	baseRetryDelay   = time.Second
	maxRetryDelay    = 10 * time.Second
	tokenGraceWindow = 30 * time.Second
)

// Token is a cached OAuth2 access token with its expiry instant.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Client performs all outbound calls to the training registry. The token
// cache is instance-local: concurrent workers each hold their own, which
// is acceptable because the token grant is idempotent and cheap compared
// to the data calls it fronts.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	environment  string
	httpClient   *http.Client
	logger       *zap.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu    sync.Mutex
	token *Token
}

// New builds a client from the current registry configuration.
func New(cfg config.RegistryConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		environment:  cfg.Environment,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		now:          time.Now,
		sleep:        sleepContext,
	}
}

// ObtainToken performs the OAuth2 client-credentials grant. Transport
// failures and 5xx responses are retried on the same backoff schedule as
// data calls; a 4xx means the credentials were rejected and is terminal.
func (c *Client) ObtainToken(ctx context.Context) (*Token, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
	}

	var lastErr *AuthError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, retryDelay(attempt-1)); err != nil {
				return nil, lastErr
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, &AuthError{Err: err}
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &AuthError{Err: err}
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var tr TokenResponse
			if err := json.Unmarshal(body, &tr); err != nil {
				return nil, &AuthError{Status: resp.StatusCode, Body: string(body), Err: err}
			}
			return &Token{
				AccessToken: tr.AccessToken,
				TokenType:   tr.TokenType,
				ExpiresAt:   c.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
			}, nil
		case resp.StatusCode >= 500:
			lastErr = &AuthError{Status: resp.StatusCode, Body: string(body)}
			continue
		default:
			return nil, &AuthError{Status: resp.StatusCode, Body: string(body)}
		}
	}
	return nil, lastErr
}

// Authenticate returns the cached token while it is still valid and
// refreshes the cache otherwise. A short grace window avoids handing out
// tokens that expire mid-request.
func (c *Client) Authenticate(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()

	if cached != nil && cached.ExpiresAt.After(c.now().Add(tokenGraceWindow)) {
		return cached, nil
	}

	token, err := c.ObtainToken(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// CreateCourse registers a course with the registry.
func (c *Client) CreateCourse(ctx context.Context, payload CoursePayload) (*CourseResponse, error) {
	var out CourseResponse
	if err := c.call(ctx, "create_course", http.MethodPost, "/courses", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCourse updates a previously registered course.
func (c *Client) UpdateCourse(ctx context.Context, courseID string, payload CoursePayload) (*CourseResponse, error) {
	var out CourseResponse
	if err := c.call(ctx, "update_course", http.MethodPut, "/courses/"+url.PathEscape(courseID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCourseRun registers a class run with the registry.
func (c *Client) CreateCourseRun(ctx context.Context, payload CourseRunPayload) (*CourseRunResponse, error) {
	var out CourseRunResponse
	if err := c.call(ctx, "create_course_run", http.MethodPost, "/courses/courseRuns", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCourseRun updates a previously registered class run.
func (c *Client) UpdateCourseRun(ctx context.Context, runID string, payload CourseRunPayload) (*CourseRunResponse, error) {
	var out CourseRunResponse
	if err := c.call(ctx, "update_course_run", http.MethodPut, "/courses/courseRuns/"+url.PathEscape(runID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitEnrollment submits an enrollment to the registry.
func (c *Client) SubmitEnrollment(ctx context.Context, payload EnrollmentPayload) (*EnrollmentResponse, error) {
	var out EnrollmentResponse
	if err := c.call(ctx, "submit_enrollment", http.MethodPost, "/courses/courseRuns/enrolments", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAttendance submits session attendance to the registry.
func (c *Client) SubmitAttendance(ctx context.Context, payload AttendancePayload) (*AttendanceResponse, error) {
	var out AttendanceResponse
	if err := c.call(ctx, "submit_attendance", http.MethodPost, "/courses/courseRuns/sessions/attendance", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitClaim submits a funding claim to the registry.
func (c *Client) SubmitClaim(ctx context.Context, payload ClaimPayload) (*ClaimResponse, error) {
	var out ClaimResponse
	if err := c.call(ctx, "submit_claim", http.MethodPost, "/courses/courseRuns/claims", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call issues one registry operation with bounded retry. Transport
// failures, timeouts and 5xx responses are retried up to maxAttempts
// with the delay doubling from baseRetryDelay and capped at
// maxRetryDelay. 4xx responses are client mistakes, not transient
// faults, and fail on the first attempt.
func (c *Client) call(ctx context.Context, op, method, path string, payload, out interface{}) error {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &ClientError{Op: op, Err: fmt.Errorf("encode payload: %w", err)}
	}

	var lastErr *ClientError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, retryDelay(attempt-1)); err != nil {
				return lastErr
			}
		}

		correlationID := uuid.NewString()
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return &ClientError{Op: op, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(headerEnvironment, c.environment)
		req.Header.Set(headerCorrelationID, correlationID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &ClientError{Op: op, Err: err}
			c.logger.Warn("registry call transport failure",
				zap.String("op", op), zap.Int("attempt", attempt), zap.String("correlation_id", correlationID), zap.Error(err))
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return &ClientError{Op: op, Status: resp.StatusCode, Body: string(respBody), Err: err}
				}
			}
			return nil
		case resp.StatusCode >= 500:
			lastErr = &ClientError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
			c.logger.Warn("registry call server error",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode), zap.String("correlation_id", correlationID))
			continue
		default:
			return &ClientError{Op: op, Status: resp.StatusCode, Body: string(respBody)}
		}
	}
	return lastErr
}

func retryDelay(retries int) time.Duration {
	delay := baseRetryDelay
	for i := 1; i < retries; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
