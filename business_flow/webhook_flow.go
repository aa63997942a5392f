package businessflow

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/utils"
)

// WebhookHeaders carries the signature headers of a gateway callback
type WebhookHeaders struct {
	Signature string
	Timestamp string
}

// WebhookResult is the HTTP outcome the handler writes back
type WebhookResult struct {
	Status  int
	Code    string
	Message string
}

// WebhookFlow verifies and dispatches gateway callbacks
type WebhookFlow interface {
	Handle(ctx context.Context, body []byte, headers WebhookHeaders) WebhookResult
}

type WebhookFlowImpl struct {
	secret    []byte
	tolerance time.Duration
	q         queue.Queue
	logger    *log.Logger
	now       utils.Clock
}

func NewWebhookFlow(secret string, tolerance time.Duration, q queue.Queue, logger *log.Logger, now utils.Clock) WebhookFlow {
	if tolerance <= 0 {
		tolerance = utils.DefaultWebhookTolerance
	}
	if logger == nil {
		logger = log.Default()
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &WebhookFlowImpl{
		secret:    []byte(secret),
		tolerance: tolerance,
		q:         q,
		logger:    logger,
		now:       now,
	}
}

// SignWebhook computes hex(HMAC-SHA256(secret, body || timestamp))
func SignWebhook(secret, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	mac.Write([]byte(timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *WebhookFlowImpl) Handle(ctx context.Context, body []byte, headers WebhookHeaders) WebhookResult {
	if res, ok := f.verify(body, headers); !ok {
		webhookRequestsTotal.WithLabelValues("unverified", strconv.Itoa(res.Status)).Inc()
		return res
	}

	res, event := f.dispatch(ctx, body)
	webhookRequestsTotal.WithLabelValues(event, strconv.Itoa(res.Status)).Inc()
	return res
}

func (f *WebhookFlowImpl) verify(body []byte, headers WebhookHeaders) (WebhookResult, bool) {
	if len(f.secret) == 0 {
		f.logger.Printf("WARNING webhook signature verification skipped: no secret configured")
		return WebhookResult{}, true
	}

	signature := strings.TrimSpace(headers.Signature)
	timestamp := strings.TrimSpace(headers.Timestamp)
	if signature == "" || timestamp == "" {
		f.logger.Printf("WARNING webhook missing signature or timestamp header")
		return badWebhook("MISSING_SIGNATURE_HEADERS", "Missing signature headers"), false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		f.logger.Printf("WARNING webhook invalid timestamp format timestamp=%q", timestamp)
		return badWebhook("INVALID_TIMESTAMP", "Invalid timestamp format"), false
	}

	now := f.now().Unix()
	future := int64(utils.WebhookFutureSkew / time.Second)
	tolerance := int64(f.tolerance / time.Second)
	if ts > now+future || now-ts > tolerance {
		f.logger.Printf("WARNING webhook timestamp outside window timestamp=%d now=%d", ts, now)
		return badWebhook("TIMESTAMP_OUT_OF_WINDOW", "Timestamp validation failed"), false
	}

	expected := SignWebhook(f.secret, body, timestamp)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		f.logger.Printf("ERROR webhook invalid signature")
		return WebhookResult{Status: http.StatusForbidden, Code: "INVALID_SIGNATURE", Message: "Invalid signature"}, false
	}

	return WebhookResult{}, true
}

func (f *WebhookFlowImpl) dispatch(ctx context.Context, body []byte) (WebhookResult, string) {
	var env dto.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Event == "" || !isJSONObject(env.Payload) {
		f.logger.Printf("WARNING webhook invalid payload structure")
		return badWebhook("INVALID_PAYLOAD", "Invalid payload structure"), ""
	}

	switch env.Event {
	case dto.WebhookEventSMSReceived:
		var p dto.IncomingSMSPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.PhoneNumber == "" || p.Message == "" {
			f.logger.Printf("WARNING webhook sms:received missing required fields device_id=%s", env.DeviceID)
			return badWebhook("MISSING_REQUIRED_FIELDS", "Missing required fields for sms:received event"), env.Event
		}

		task := queue.NewProcessIncomingSMSTask(queue.ProcessIncomingSMSPayload{
			DeviceID: env.DeviceID,
			Payload:  env.Payload,
		})
		if err := f.q.Enqueue(ctx, task, 0); err != nil {
			f.logger.Printf("ERROR webhook enqueue failed device_id=%s err=%v", env.DeviceID, err)
			return WebhookResult{Status: http.StatusInternalServerError, Code: "ENQUEUE_FAILED", Message: "Failed to queue incoming message"}, env.Event
		}

		f.logger.Printf("webhook sms:received queued task_id=%s device_id=%s sender=%s", task.ID, env.DeviceID, utils.MaskPhone(p.PhoneNumber))
		return WebhookResult{Status: http.StatusOK, Message: "Webhook received successfully"}, env.Event

	case dto.WebhookEventSystemPing:
		f.logger.Printf("webhook system ping device_id=%s", env.DeviceID)
		return WebhookResult{Status: http.StatusOK, Message: "Ping received"}, env.Event

	default:
		f.logger.Printf("webhook unhandled event type=%s device_id=%s", env.Event, env.DeviceID)
		return WebhookResult{Status: http.StatusOK, Message: "Event received but not processed"}, "other"
	}
}

func badWebhook(code, message string) WebhookResult {
	return WebhookResult{Status: http.StatusBadRequest, Code: code, Message: message}
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
