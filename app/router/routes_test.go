package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/handlers"
	"github.com/amirphl/sms-gateway-bridge/app/middleware"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingWebhookFlow struct{}

func (pingWebhookFlow) Handle(context.Context, []byte, businessflow.WebhookHeaders) businessflow.WebhookResult {
	return businessflow.WebhookResult{Status: http.StatusOK, Message: "Ping received"}
}

func newTestRouter(t *testing.T, checks map[string]HealthCheck) *FiberRouter {
	t.Helper()
	ts, err := services.NewTokenService(time.Hour, "sms-gateway-bridge", "api", false, "", "", "test-secret")
	require.NoError(t, err)

	r := NewFiberRouter(Config{
		MetricsEnabled: true,
		AccessLog:      io.Discard,
		HealthChecks:   checks,
	}, Handlers{
		SMS:      handlers.NewSMSHandler(nil),
		Settings: handlers.NewSettingsHandler(nil),
		Inbox:    handlers.NewInboxHandler(nil),
		Webhook:  handlers.NewWebhookHandler(pingWebhookFlow{}),
	}, middleware.NewAuthMiddleware(ts))
	r.SetupRoutes()
	return r
}

func get(t *testing.T, r *FiberRouter, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, map[string]HealthCheck{
		"database": func(context.Context) error { return nil },
	})
	resp, raw := get(t, r, "/api/v1/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body dto.APIResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.True(t, body.Success)

	down := newTestRouter(t, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	resp, raw = get(t, down, "/api/v1/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "SERVICE_UNHEALTHY", body.Error.(map[string]any)["code"])
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, nil)
	for _, path := range []string{"/api/v1/sms/status/abc", "/api/v1/settings/gateway", "/api/v1/sms/incoming"} {
		resp, _ := get(t, r, path)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRouter_WebhookIsPublic(t *testing.T) {
	r := newTestRouter(t, nil)
	resp, err := r.GetApp().Test(httptest.NewRequest(http.MethodPost, webhookPath, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_NotFoundAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)

	resp, _ := get(t, r, "/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, _ = get(t, r, "/api/v1/health")
	resp, raw := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "smsbridge_http_requests_total{method=\"GET\",route=\"/api/v1/health\"")
}
