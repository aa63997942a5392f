package handlers

import (
	"github.com/amirphl/sms-gateway-bridge/app/dto"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/gofiber/fiber/v3"
)

type WebhookHandlerInterface interface {
	IncomingSMS(c fiber.Ctx) error
}

// WebhookHandler receives gateway callbacks. It is mounted without JWT auth;
// the HMAC signature is the credential.
type WebhookHandler struct {
	flow businessflow.WebhookFlow
}

func NewWebhookHandler(flow businessflow.WebhookFlow) *WebhookHandler {
	return &WebhookHandler{flow: flow}
}

func (h *WebhookHandler) IncomingSMS(c fiber.Ctx) error {
	body := c.Body()
	if len(body) > utils.WebhookBodyLimit {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.WebhookResponse{Error: "Payload too large"})
	}

	ctx, cancel := createRequestContext(c, "/webhooks/smsgateway/incoming-sms")
	defer cancel()

	res := h.flow.Handle(ctx, body, businessflow.WebhookHeaders{
		Signature: c.Get(utils.SignatureHeader),
		Timestamp: c.Get(utils.TimestampHeader),
	})

	if res.Status >= fiber.StatusBadRequest {
		return c.Status(res.Status).JSON(dto.WebhookResponse{Error: res.Message})
	}
	return c.Status(res.Status).JSON(dto.WebhookResponse{Message: res.Message})
}
