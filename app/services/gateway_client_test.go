package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGatewayClient(defaults GatewayDefaults) *HTTPGatewayClient {
	return NewHTTPGatewayClient(nil, defaults, time.Second, time.Second, log.New(io.Discard, "", 0))
}

func testCredentials(baseURL string) GatewayCredentials {
	return GatewayCredentials{BaseURL: baseURL, Username: "device-user", Password: "s3cret"}
}

func TestSendMessage_Success(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "device-user", user)
		assert.Equal(t, "s3cret", pass)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"id":"abc-1","state":"Pending","recipients":[{"phoneNumber":"+15551234567","state":"Pending"}]}`))
	}))
	defer server.Close()

	client := newTestGatewayClient(GatewayDefaults{})
	ack, err := client.SendMessage(context.Background(), testCredentials(server.URL+"/"), GatewayMessage{
		ID:           "abc-1",
		PhoneNumbers: []string{"+15551234567"},
		Message:      "hi",
	})

	require.NoError(t, err)
	assert.Equal(t, "abc-1", ack.ID)
	assert.Equal(t, "Pending", ack.State)
	require.Len(t, ack.Recipients, 1)
	assert.Equal(t, "+15551234567", ack.Recipients[0].PhoneNumber)

	assert.Equal(t, "hi", received["message"])
	assert.Equal(t, []any{"+15551234567"}, received["phoneNumbers"])
	assert.Equal(t, "abc-1", received["id"])
	assert.NotContains(t, received, "simNumber")
	assert.NotContains(t, received, "withDeliveryReport")
	assert.NotContains(t, received, "priority")
}

func TestSendMessage_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      GatewayErrorKind
		retryable bool
		message   string
	}{
		{"bad request", 400, `{"message":"phone number invalid"}`, GatewayKindBadRequest, false, "phone number invalid"},
		{"unauthorized", 401, `{}`, GatewayKindAuthenticationFailed, false, "request failed with status 401"},
		{"conflict", 409, `{"message":"duplicate id"}`, GatewayKindConflict, false, "duplicate id"},
		{"rate limited", 429, ``, GatewayKindRateLimited, true, "request failed with status 429"},
		{"server error", 500, `oops`, GatewayKindServerError, true, "request failed with status 500"},
		{"bad gateway", 502, ``, GatewayKindServerError, true, "request failed with status 502"},
		{"not found on send", 404, ``, GatewayKindClientError, false, "request failed with status 404"},
		{"unprocessable", 422, ``, GatewayKindClientError, false, "request failed with status 422"},
		{"plain ok is not accepted", 200, `{}`, GatewayKindUnexpectedStatus, false, "request failed with status 200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestGatewayClient(GatewayDefaults{})
			ack, err := client.SendMessage(context.Background(), testCredentials(server.URL), GatewayMessage{
				ID:           "m-1",
				PhoneNumbers: []string{"+15551234567"},
				Message:      "hello",
			})

			require.Error(t, err)
			assert.Nil(t, ack)
			ge, ok := AsGatewayError(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, ge.Kind)
			assert.Equal(t, tt.retryable, ge.Retryable())
			assert.Equal(t, tt.status, ge.StatusCode)
			assert.Equal(t, tt.message, ge.Message)
			assert.Equal(t, server.URL+"/messages", ge.URL)
			assert.NotContains(t, err.Error(), "s3cret")
		})
	}
}

func TestSendMessage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := newTestGatewayClient(GatewayDefaults{})
	_, err := client.SendMessage(context.Background(), testCredentials(baseURL), GatewayMessage{
		PhoneNumbers: []string{"+15551234567"},
		Message:      "hello",
	})

	require.Error(t, err)
	assert.True(t, IsGatewayKind(err, GatewayKindNetworkError))
	ge, _ := AsGatewayError(err)
	assert.True(t, ge.Retryable())
	assert.Equal(t, 0, ge.StatusCode)
}

func TestSendMessage_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewHTTPGatewayClient(nil, GatewayDefaults{}, 50*time.Millisecond, time.Second, log.New(io.Discard, "", 0))
	_, err := client.SendMessage(context.Background(), testCredentials(server.URL), GatewayMessage{
		PhoneNumbers: []string{"+15551234567"},
		Message:      "hello",
	})

	require.Error(t, err)
	assert.True(t, IsGatewayKind(err, GatewayKindNetworkError))
}

func TestBuildSendPayload(t *testing.T) {
	defaults := GatewayDefaults{SimNumber: utils.ToPtr(2), WithDeliveryReport: utils.ToPtr(true)}
	client := newTestGatewayClient(defaults)

	t.Run("defaults apply when unset", func(t *testing.T) {
		p := client.buildSendPayload(GatewayMessage{PhoneNumbers: []string{"+1555"}, Message: "x"})
		require.NotNil(t, p.SimNumber)
		assert.Equal(t, 2, *p.SimNumber)
		require.NotNil(t, p.WithDeliveryReport)
		assert.True(t, *p.WithDeliveryReport)
	})

	t.Run("explicit values override defaults", func(t *testing.T) {
		p := client.buildSendPayload(GatewayMessage{
			PhoneNumbers:       []string{"+1555"},
			Message:            "x",
			SimNumber:          utils.ToPtr(1),
			WithDeliveryReport: utils.ToPtr(false),
		})
		assert.Equal(t, 1, *p.SimNumber)
		assert.False(t, *p.WithDeliveryReport)
	})

	t.Run("priority is clamped", func(t *testing.T) {
		for in, want := range map[int]int{500: 127, -500: -128, 100: 100, 0: 0} {
			p := client.buildSendPayload(GatewayMessage{PhoneNumbers: []string{"+1555"}, Priority: utils.ToPtr(in)})
			require.NotNil(t, p.Priority)
			assert.Equal(t, want, *p.Priority, "priority %d", in)
		}
	})

	t.Run("phone numbers always an array", func(t *testing.T) {
		p := newTestGatewayClient(GatewayDefaults{}).buildSendPayload(GatewayMessage{Message: "x"})
		b, err := json.Marshal(p)
		require.NoError(t, err)
		assert.JSONEq(t, `{"message":"x","phoneNumbers":[]}`, string(b))
	})
}

func TestGetStatus(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.EscapedPath() {
		case "/messages/abc%2F1":
			_, _ = w.Write([]byte(`{"id":"abc/1","state":"Delivered","recipients":[]}`))
		case "/messages/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"message not found"}`))
		case "/messages/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newTestGatewayClient(GatewayDefaults{})
	creds := testCredentials(server.URL)

	status, err := client.GetStatus(context.Background(), creds, "abc/1")
	require.NoError(t, err)
	assert.Equal(t, "Delivered", status["state"])

	_, err = client.GetStatus(context.Background(), creds, "missing")
	assert.True(t, IsGatewayKind(err, GatewayKindNotFound))

	_, err = client.GetStatus(context.Background(), creds, "busy")
	assert.True(t, IsGatewayKind(err, GatewayKindClientError))

	_, err = client.GetStatus(context.Background(), creds, "other")
	assert.True(t, IsGatewayKind(err, GatewayKindServerError))

	_, err = client.GetStatus(context.Background(), creds, "")
	assert.ErrorIs(t, err, ErrEmptyMessageID)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestGatewayClient_TruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// declare more bytes than are written so the connection closes mid-body
		w.Header().Set("Content-Length", "64")
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte(`{"mes`))
	}))
	defer server.Close()

	var logs bytes.Buffer
	client := NewHTTPGatewayClient(nil, GatewayDefaults{}, time.Second, time.Second, log.New(&logs, "", 0))
	creds := testCredentials(server.URL)

	_, err := client.SendMessage(context.Background(), creds, GatewayMessage{ID: "abc-1", PhoneNumbers: []string{"+15551234567"}, Message: "hi"})
	require.Error(t, err)
	assert.True(t, IsGatewayKind(err, GatewayKindServerError))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, logs.String(), "err=unexpected EOF")

	_, err = client.GetStatus(context.Background(), creds, "abc-1")
	require.Error(t, err)
	assert.True(t, IsGatewayKind(err, GatewayKindNetworkError))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestClassifyGatewayStatus_Total(t *testing.T) {
	for _, op := range []GatewayOperation{GatewayOperationSend, GatewayOperationStatus} {
		for status := 100; status <= 599; status++ {
			first := ClassifyGatewayStatus(op, status)
			assert.Equal(t, first, ClassifyGatewayStatus(op, status))

			switch {
			case op == GatewayOperationSend && status == 202, op == GatewayOperationStatus && status == 200:
				assert.Equal(t, GatewayKindNone, first)
			case status >= 500:
				assert.Equal(t, GatewayKindServerError, first)
			case status < 400:
				assert.Equal(t, GatewayKindUnexpectedStatus, first)
			default:
				assert.NotEqual(t, GatewayKindNone, first)
			}
		}
	}

	assert.Equal(t, GatewayKindConflict, ClassifyGatewayStatus(GatewayOperationSend, 409))
	assert.Equal(t, GatewayKindClientError, ClassifyGatewayStatus(GatewayOperationStatus, 409))
	assert.Equal(t, GatewayKindNotFound, ClassifyGatewayStatus(GatewayOperationStatus, 404))
	assert.Equal(t, GatewayKindRateLimited, ClassifyGatewayStatus(GatewayOperationSend, 429))
}

func TestGatewayCredentialsStringRedactsPassword(t *testing.T) {
	creds := testCredentials("https://gw.example.com")
	assert.NotContains(t, creds.String(), "s3cret")
	assert.Contains(t, creds.String(), "REDACTED")
}
