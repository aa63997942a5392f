package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/sms-gateway-bridge/utils"
)

// ErrEmptyMessageID is returned by GetStatus when no id is given
var ErrEmptyMessageID = errors.New("message id cannot be empty")

// GatewayCredentials is a decrypted credential triple. It is never persisted.
type GatewayCredentials struct {
	BaseURL  string
	Username string
	Password string
}

// String keeps the password out of logs and %v formatting
func (c GatewayCredentials) String() string {
	return fmt.Sprintf("{BaseURL:%s Username:%s Password:[REDACTED]}", c.BaseURL, c.Username)
}

// GatewayMessage is one outbound send request
type GatewayMessage struct {
	ID                 string
	PhoneNumbers       []string
	Message            string
	SimNumber          *int
	WithDeliveryReport *bool
	Priority           *int
}

// GatewayRecipientState is the per-recipient state returned by the gateway
type GatewayRecipientState struct {
	PhoneNumber string `json:"phoneNumber"`
	State       string `json:"state"`
	Error       string `json:"error,omitempty"`
}

// GatewayAck is the body of a 202 response to a send
type GatewayAck struct {
	ID         string                  `json:"id"`
	State      string                  `json:"state"`
	Recipients []GatewayRecipientState `json:"recipients,omitempty"`
}

// GatewayStatus is the gateway status object, passed through untouched
type GatewayStatus map[string]any

// GatewayDefaults are applied when a message leaves an optional field unset
type GatewayDefaults struct {
	SimNumber          *int
	WithDeliveryReport *bool
}

// GatewayClient performs the two calls the bridge makes against the gateway
type GatewayClient interface {
	SendMessage(ctx context.Context, creds GatewayCredentials, msg GatewayMessage) (*GatewayAck, error)
	GetStatus(ctx context.Context, creds GatewayCredentials, messageID string) (GatewayStatus, error)
}

type sendPayload struct {
	Message            string   `json:"message"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SimNumber          *int     `json:"simNumber,omitempty"`
	WithDeliveryReport *bool    `json:"withDeliveryReport,omitempty"`
	ID                 string   `json:"id,omitempty"`
	Priority           *int     `json:"priority,omitempty"`
}

// HTTPGatewayClient talks to the gateway REST API with basic auth
type HTTPGatewayClient struct {
	client        *http.Client
	defaults      GatewayDefaults
	sendTimeout   time.Duration
	statusTimeout time.Duration
	logger        *log.Logger
}

// NewHTTPGatewayClient creates a gateway client. A nil client gets a fresh
// http.Client; per-call timeouts are applied through the request context.
func NewHTTPGatewayClient(client *http.Client, defaults GatewayDefaults, sendTimeout, statusTimeout time.Duration, logger *log.Logger) *HTTPGatewayClient {
	if client == nil {
		client = &http.Client{}
	}
	if sendTimeout <= 0 {
		sendTimeout = utils.GatewaySendTimeout
	}
	if statusTimeout <= 0 {
		statusTimeout = utils.GatewayStatusTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPGatewayClient{
		client:        client,
		defaults:      defaults,
		sendTimeout:   sendTimeout,
		statusTimeout: statusTimeout,
		logger:        logger,
	}
}

// buildSendPayload applies defaults and clamps priority
func (c *HTTPGatewayClient) buildSendPayload(msg GatewayMessage) sendPayload {
	phones := msg.PhoneNumbers
	if phones == nil {
		phones = []string{}
	}
	payload := sendPayload{
		Message:      msg.Message,
		PhoneNumbers: phones,
		ID:           msg.ID,
	}

	switch {
	case msg.SimNumber != nil:
		payload.SimNumber = utils.ToPtr(*msg.SimNumber)
	case c.defaults.SimNumber != nil:
		payload.SimNumber = utils.ToPtr(*c.defaults.SimNumber)
	}

	switch {
	case msg.WithDeliveryReport != nil:
		payload.WithDeliveryReport = utils.ToPtr(*msg.WithDeliveryReport)
	case c.defaults.WithDeliveryReport != nil:
		payload.WithDeliveryReport = utils.ToPtr(*c.defaults.WithDeliveryReport)
	}

	if msg.Priority != nil {
		payload.Priority = utils.ToPtr(utils.ClampInt(*msg.Priority, utils.MinPriority, utils.MaxPriority))
	}

	return payload
}

// SendMessage posts a message to {base}/messages and expects 202
func (c *HTTPGatewayClient) SendMessage(ctx context.Context, creds GatewayCredentials, msg GatewayMessage) (*GatewayAck, error) {
	payload := c.buildSendPayload(msg)
	sendURL := strings.TrimRight(creds.BaseURL, "/") + "/messages"

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gateway payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(GatewayOperationSend, GatewayKindClientError, 0, sendURL, "invalid gateway url", err, payload, 0)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(GatewayOperationSend, GatewayKindNetworkError, 0, sendURL, "connection failed", err, payload, time.Since(start))
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	kind := ClassifyGatewayStatus(GatewayOperationSend, resp.StatusCode)
	if kind != GatewayKindNone {
		return nil, c.fail(GatewayOperationSend, kind, resp.StatusCode, sendURL, errorMessage(respBody, resp.StatusCode), readErr, payload, time.Since(start))
	}
	observeGatewayCall(GatewayOperationSend, GatewayKindNone, time.Since(start).Seconds())
	if readErr != nil {
		// the gateway already accepted the message; a resend would duplicate it
		c.logger.Printf("WARNING gateway send accepted but body read failed url=%s message_id=%s err=%v", sendURL, msg.ID, readErr)
	}

	var ack GatewayAck
	if err := json.Unmarshal(respBody, &ack); err != nil {
		c.logger.Printf("WARNING gateway send accepted with unreadable body url=%s message_id=%s err=%v", sendURL, msg.ID, err)
	}
	c.logger.Printf("gateway send accepted url=%s message_id=%s gateway_id=%s state=%s", sendURL, msg.ID, ack.ID, ack.State)
	return &ack, nil
}

// GetStatus fetches {base}/messages/{id} and expects 200
func (c *HTTPGatewayClient) GetStatus(ctx context.Context, creds GatewayCredentials, messageID string) (GatewayStatus, error) {
	if messageID == "" {
		return nil, ErrEmptyMessageID
	}
	statusURL := strings.TrimRight(creds.BaseURL, "/") + "/messages/" + url.PathEscape(messageID)

	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, c.fail(GatewayOperationStatus, GatewayKindClientError, 0, statusURL, "invalid gateway url", err, nil, 0)
	}
	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(GatewayOperationStatus, GatewayKindNetworkError, 0, statusURL, "connection failed", err, nil, time.Since(start))
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	kind := ClassifyGatewayStatus(GatewayOperationStatus, resp.StatusCode)
	if kind != GatewayKindNone {
		return nil, c.fail(GatewayOperationStatus, kind, resp.StatusCode, statusURL, errorMessage(respBody, resp.StatusCode), readErr, nil, time.Since(start))
	}
	if readErr != nil {
		return nil, c.fail(GatewayOperationStatus, GatewayKindNetworkError, resp.StatusCode, statusURL, "status body read failed", readErr, nil, time.Since(start))
	}
	observeGatewayCall(GatewayOperationStatus, GatewayKindNone, time.Since(start).Seconds())

	status := GatewayStatus{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &status); err != nil {
			return nil, c.fail(GatewayOperationStatus, GatewayKindUnexpectedStatus, resp.StatusCode, statusURL, "unreadable status body", err, nil, 0)
		}
	}
	return status, nil
}

// fail logs a failed call with a sanitized payload and builds the typed error
func (c *HTTPGatewayClient) fail(op GatewayOperation, kind GatewayErrorKind, status int, target, message string, cause error, payload any, elapsed time.Duration) *GatewayError {
	if elapsed > 0 {
		observeGatewayCall(op, kind, elapsed.Seconds())
	}

	level := "WARNING"
	if kind == GatewayKindServerError || kind == GatewayKindNetworkError {
		level = "ERROR"
	}
	if p, ok := payload.(sendPayload); ok {
		c.logger.Printf("%s gateway %s failed kind=%s status=%d url=%s payload=%s message=%q err=%v",
			level, op, kind, status, target, sanitizePayload(p), message, cause)
	} else {
		c.logger.Printf("%s gateway %s failed kind=%s status=%d url=%s message=%q err=%v",
			level, op, kind, status, target, message, cause)
	}

	return &GatewayError{
		Kind:       kind,
		Operation:  op,
		StatusCode: status,
		URL:        target,
		Message:    message,
		Err:        cause,
	}
}

// sanitizePayload masks recipients and drops the message text
func sanitizePayload(p sendPayload) string {
	masked := make([]string, 0, len(p.PhoneNumbers))
	for _, phone := range p.PhoneNumbers {
		masked = append(masked, utils.MaskPhone(phone))
	}
	out := map[string]any{
		"id":             p.ID,
		"phoneNumbers":   masked,
		"message_length": len([]rune(p.Message)),
	}
	if p.SimNumber != nil {
		out["simNumber"] = *p.SimNumber
	}
	if p.WithDeliveryReport != nil {
		out["withDeliveryReport"] = *p.WithDeliveryReport
	}
	if p.Priority != nil {
		out["priority"] = *p.Priority
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// errorMessage prefers the gateway's JSON "message" field
func errorMessage(body []byte, status int) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return fmt.Sprintf("request failed with status %d", status)
}

var _ GatewayClient = (*HTTPGatewayClient)(nil)
