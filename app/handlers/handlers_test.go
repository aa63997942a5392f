package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSMSFlow struct {
	sendFn       func(req *dto.SendSMSRequest) (*dto.SendSMSResponse, error)
	sendDirectFn func(req *dto.SendSMSRequest) (*dto.SendDirectSMSResponse, error)
	statusFn     func(messageID string) (*dto.SMSStatusResponse, error)
	sendCalls    int
}

func (s *stubSMSFlow) Send(_ context.Context, _ uint, req *dto.SendSMSRequest, _ *businessflow.ClientMetadata) (*dto.SendSMSResponse, error) {
	s.sendCalls++
	return s.sendFn(req)
}

func (s *stubSMSFlow) SendDirect(_ context.Context, _ uint, req *dto.SendSMSRequest, _ *businessflow.ClientMetadata) (*dto.SendDirectSMSResponse, error) {
	return s.sendDirectFn(req)
}

func (s *stubSMSFlow) Status(_ context.Context, _ uint, messageID string) (*dto.SMSStatusResponse, error) {
	return s.statusFn(messageID)
}

// newTestApp mounts h behind a stand-in for the auth middleware
func newTestApp(accountID uint, mount func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		if accountID != 0 {
			c.Locals("account_id", accountID)
		}
		return c.Next()
	})
	mount(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, dto.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out dto.APIResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func validSend() map[string]any {
	return map[string]any{
		"recipients": []string{"+15551234567"},
		"message":    "hello",
	}
}

func TestSMSHandler_Send(t *testing.T) {
	flow := &stubSMSFlow{sendFn: func(req *dto.SendSMSRequest) (*dto.SendSMSResponse, error) {
		return &dto.SendSMSResponse{Message: "SMS queued successfully", MessageID: "abc-1"}, nil
	}}
	app := newTestApp(1, func(app *fiber.App) {
		app.Post("/sms/send", NewSMSHandler(flow).Send)
	})

	resp, body := doJSON(t, app, http.MethodPost, "/sms/send", validSend())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Equal(t, "abc-1", body.Data.(map[string]any)["message_id"])
}

func TestSMSHandler_SendValidation(t *testing.T) {
	flow := &stubSMSFlow{}
	app := newTestApp(1, func(app *fiber.App) {
		app.Post("/sms/send", NewSMSHandler(flow).Send)
	})

	cases := map[string]map[string]any{
		"no recipients":     {"recipients": []string{}, "message": "hi"},
		"short recipient":   {"recipients": []string{"123"}, "message": "hi"},
		"empty message":     {"recipients": []string{"+15551234567"}, "message": ""},
		"sim out of range":  {"recipients": []string{"+15551234567"}, "message": "hi", "sim_number": 4},
		"priority too high": {"recipients": []string{"+15551234567"}, "message": "hi", "priority": 128},
		"id too long":       {"recipients": []string{"+15551234567"}, "message": "hi", "message_id": strings.Repeat("x", 37)},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			resp, body := doJSON(t, app, http.MethodPost, "/sms/send", payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.(map[string]any)["code"])
		})
	}
	assert.Zero(t, flow.sendCalls)

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sms/send", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSMSHandler_SendErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not configured", businessflow.NewBusinessError("GATEWAY_NOT_CONFIGURED", "not configured", businessflow.ErrGatewayNotConfigured), http.StatusBadRequest, "GATEWAY_NOT_CONFIGURED"},
		{"id too long", businessflow.NewBusinessError("MESSAGE_ID_TOO_LONG", "too long", businessflow.ErrMessageIDTooLong), http.StatusBadRequest, "MESSAGE_ID_TOO_LONG"},
		{"decryption", businessflow.NewBusinessError("CREDENTIAL_DECRYPTION_FAILED", "broken", businessflow.ErrCredentialDecryptionFailed), http.StatusInternalServerError, "CREDENTIAL_DECRYPTION_FAILED"},
		{"enqueue", businessflow.NewBusinessError("ENQUEUE_FAILED", "queue", businessflow.ErrEnqueueFailed), http.StatusInternalServerError, "SEND_SMS_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := &stubSMSFlow{sendFn: func(*dto.SendSMSRequest) (*dto.SendSMSResponse, error) { return nil, tc.err }}
			app := newTestApp(1, func(app *fiber.App) {
				app.Post("/sms/send", NewSMSHandler(flow).Send)
			})
			resp, body := doJSON(t, app, http.MethodPost, "/sms/send", validSend())
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, body.Error.(map[string]any)["code"])
		})
	}
}

func TestSMSHandler_MissingAccount(t *testing.T) {
	app := newTestApp(0, func(app *fiber.App) {
		app.Post("/sms/send", NewSMSHandler(&stubSMSFlow{}).Send)
	})
	resp, body := doJSON(t, app, http.MethodPost, "/sms/send", validSend())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_ACCOUNT_ID", body.Error.(map[string]any)["code"])
}

func TestSMSHandler_SendDirectGatewayKinds(t *testing.T) {
	cases := map[services.GatewayErrorKind]int{
		services.GatewayKindBadRequest:           http.StatusBadRequest,
		services.GatewayKindAuthenticationFailed: http.StatusUnauthorized,
		services.GatewayKindNotFound:             http.StatusNotFound,
		services.GatewayKindConflict:             http.StatusConflict,
		services.GatewayKindRateLimited:          http.StatusTooManyRequests,
		services.GatewayKindClientError:          http.StatusBadRequest,
		services.GatewayKindServerError:          http.StatusServiceUnavailable,
		services.GatewayKindNetworkError:         http.StatusServiceUnavailable,
		services.GatewayKindUnexpectedStatus:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		t.Run(string(kind), func(t *testing.T) {
			flow := &stubSMSFlow{sendDirectFn: func(*dto.SendSMSRequest) (*dto.SendDirectSMSResponse, error) {
				ge := &services.GatewayError{Kind: kind, Operation: services.GatewayOperationSend, StatusCode: 418}
				return nil, businessflow.NewBusinessError("GATEWAY_SEND_FAILED", "failed", ge)
			}}
			app := newTestApp(1, func(app *fiber.App) {
				app.Post("/sms/send-direct", NewSMSHandler(flow).SendDirect)
			})
			resp, body := doJSON(t, app, http.MethodPost, "/sms/send-direct", validSend())
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, "GATEWAY_"+strings.ToUpper(string(kind)), body.Error.(map[string]any)["code"])
		})
	}
}

func TestSMSHandler_Status(t *testing.T) {
	var seen string
	flow := &stubSMSFlow{statusFn: func(messageID string) (*dto.SMSStatusResponse, error) {
		seen = messageID
		if messageID == "missing" {
			return nil, &services.GatewayError{Kind: services.GatewayKindNotFound, Operation: services.GatewayOperationStatus, StatusCode: 404}
		}
		return &dto.SMSStatusResponse{Message: "SMS status retrieved", MessageID: messageID, Status: map[string]any{"state": "Delivered"}}, nil
	}}
	app := newTestApp(1, func(app *fiber.App) {
		app.Get("/sms/status/:message_id", NewSMSHandler(flow).Status)
	})

	resp, body := doJSON(t, app, http.MethodGet, "/sms/status/a%20b", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a b", seen)
	status := body.Data.(map[string]any)["status"].(map[string]any)
	assert.Equal(t, "Delivered", status["state"])

	resp, _ = doJSON(t, app, http.MethodGet, "/sms/status/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
