package businessflow

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/google/uuid"
)

// SMSFlow is the outbound surface: queue a send, send synchronously, or look up status
type SMSFlow interface {
	Send(ctx context.Context, accountID uint, req *dto.SendSMSRequest, metadata *ClientMetadata) (*dto.SendSMSResponse, error)
	SendDirect(ctx context.Context, accountID uint, req *dto.SendSMSRequest, metadata *ClientMetadata) (*dto.SendDirectSMSResponse, error)
	Status(ctx context.Context, accountID uint, messageID string) (*dto.SMSStatusResponse, error)
}

type SMSFlowImpl struct {
	resolver CredentialResolver
	client   services.GatewayClient
	q        queue.Queue
	logger   *log.Logger
}

func NewSMSFlow(resolver CredentialResolver, client services.GatewayClient, q queue.Queue, logger *log.Logger) SMSFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &SMSFlowImpl{
		resolver: resolver,
		client:   client,
		q:        q,
		logger:   logger,
	}
}

// Send validates the request, checks the account is configured and queues one
// delivery task. No gateway call happens here.
func (f *SMSFlowImpl) Send(ctx context.Context, accountID uint, req *dto.SendSMSRequest, metadata *ClientMetadata) (*dto.SendSMSResponse, error) {
	messageID, err := f.prepare(ctx, accountID, req)
	if err != nil {
		return nil, err
	}

	task := queue.NewDeliverSMSTask(toDeliverPayload(accountID, messageID, req))
	if err := f.q.Enqueue(ctx, task, 0); err != nil {
		f.logger.Printf("ERROR sms enqueue failed account_id=%d message_id=%s %s err=%v", accountID, messageID, metadata, err)
		return nil, NewBusinessError("ENQUEUE_FAILED", "Failed to queue SMS for sending", ErrEnqueueFailed)
	}

	smsQueuedTotal.Inc()
	f.logger.Printf("sms queued account_id=%d message_id=%s task_id=%s recipients=%d %s",
		accountID, messageID, task.ID, len(req.Recipients), metadata)

	return &dto.SendSMSResponse{
		Message:   "SMS queued successfully",
		MessageID: messageID,
	}, nil
}

// SendDirect performs the gateway call inline and surfaces typed gateway errors
func (f *SMSFlowImpl) SendDirect(ctx context.Context, accountID uint, req *dto.SendSMSRequest, metadata *ClientMetadata) (*dto.SendDirectSMSResponse, error) {
	messageID, err := f.prepare(ctx, accountID, req)
	if err != nil {
		return nil, err
	}

	creds, err := f.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	p := toDeliverPayload(accountID, messageID, req)
	ack, err := f.client.SendMessage(ctx, *creds, toGatewayMessage(p))
	if err != nil {
		return nil, NewBusinessError("GATEWAY_SEND_FAILED", "Failed to send SMS through the gateway", err)
	}

	f.logger.Printf("sms sent directly account_id=%d message_id=%s gateway_id=%s state=%s %s",
		accountID, messageID, ack.ID, ack.State, metadata)

	return &dto.SendDirectSMSResponse{
		Message:          "SMS accepted by gateway",
		MessageID:        messageID,
		GatewayMessageID: ack.ID,
		State:            ack.State,
		Recipients:       toRecipientDTOs(ack.Recipients),
	}, nil
}

// Status resolves credentials before any HTTP call and returns the gateway object as-is
func (f *SMSFlowImpl) Status(ctx context.Context, accountID uint, messageID string) (*dto.SMSStatusResponse, error) {
	if messageID == "" {
		return nil, NewBusinessError("MESSAGE_ID_REQUIRED", "Message ID is required", ErrMessageIDRequired)
	}

	creds, err := f.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status, err := f.client.GetStatus(ctx, *creds, messageID)
	if err != nil {
		return nil, NewBusinessError("GATEWAY_STATUS_FAILED", "Failed to get status from the gateway", err)
	}

	return &dto.SMSStatusResponse{
		Message:   "SMS status retrieved",
		MessageID: messageID,
		Status:    status,
	}, nil
}

// prepare validates the request and returns the message id to use
func (f *SMSFlowImpl) prepare(ctx context.Context, accountID uint, req *dto.SendSMSRequest) (string, error) {
	if req == nil {
		return "", NewBusinessError("INVALID_REQUEST", "request is required", nil)
	}

	// client ids are used verbatim so the caller polls with exactly what it sent
	messageID := utils.Deref(req.MessageID)
	if utf8.RuneCountInString(messageID) > utils.MaxMessageIDLength {
		return "", NewBusinessError("MESSAGE_ID_TOO_LONG", "Message ID must be at most 36 characters", ErrMessageIDTooLong)
	}
	if len(req.Recipients) == 0 {
		return "", NewBusinessError("RECIPIENTS_REQUIRED", "At least one recipient is required", ErrRecipientsMissing)
	}
	if req.Message == "" {
		return "", NewBusinessError("MESSAGE_REQUIRED", "Message is required", ErrMessageMissing)
	}

	configured, err := f.resolver.IsConfigured(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !configured {
		return "", NewBusinessError("GATEWAY_NOT_CONFIGURED", "SMS gateway settings are not configured for this account", ErrGatewayNotConfigured)
	}

	if messageID == "" {
		messageID = uuid.NewString()
	}
	return messageID, nil
}

func toDeliverPayload(accountID uint, messageID string, req *dto.SendSMSRequest) queue.DeliverSMSPayload {
	recipients := make([]string, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, strings.TrimSpace(r))
	}
	return queue.DeliverSMSPayload{
		AccountID:          accountID,
		MessageID:          messageID,
		Recipients:         recipients,
		Message:            req.Message,
		SimNumber:          req.SimNumber,
		WithDeliveryReport: req.WithDeliveryReport,
		Priority:           req.Priority,
	}
}

func toGatewayMessage(p queue.DeliverSMSPayload) services.GatewayMessage {
	return services.GatewayMessage{
		ID:                 p.MessageID,
		PhoneNumbers:       p.Recipients,
		Message:            p.Message,
		SimNumber:          p.SimNumber,
		WithDeliveryReport: p.WithDeliveryReport,
		Priority:           p.Priority,
	}
}
