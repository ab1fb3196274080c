package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func webhookRequest(t *testing.T, h *SyncHandler, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registry/test-webhook", strings.NewReader(`{"ping":"pong"}`))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Registry-Signature", signature)
	}
	c.Request = req
	h.TestWebhook(c)
	return w
}

func TestTestWebhookAcceptsSharedSecret(t *testing.T) {
	h := NewSyncHandler(nil, "hush", nil)
	w := webhookRequest(t, h, "hush")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
}

func TestTestWebhookRejectsBadSignature(t *testing.T) {
	h := NewSyncHandler(nil, "hush", nil)
	w := webhookRequest(t, h, "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTestWebhookDisabledWithoutSecret(t *testing.T) {
	// An empty configured secret disables the endpoint entirely rather
	// than accepting empty signatures.
	h := NewSyncHandler(nil, "", nil)
	w := webhookRequest(t, h, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
