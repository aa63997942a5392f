package handlers

import (
	"net/url"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type SMSHandlerInterface interface {
	Send(c fiber.Ctx) error
	SendDirect(c fiber.Ctx) error
	Status(c fiber.Ctx) error
}

type SMSHandler struct {
	flow      businessflow.SMSFlow
	validator *validator.Validate
}

func NewSMSHandler(flow businessflow.SMSFlow) *SMSHandler {
	return &SMSHandler{flow: flow, validator: validator.New()}
}

// Send queues one message for asynchronous delivery and answers 202 with its id
func (h *SMSHandler) Send(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	var req dto.SendSMSRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := validateRequest(h.validator, &req); errs != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sms/send")
	defer cancel()

	res, err := h.flow.Send(ctx, accountID, &req, requestMetadata(c))
	if err != nil {
		return flowErrorResponse(c, err, "SEND_SMS_FAILED", "Failed to queue SMS")
	}

	return SuccessResponse(c, fiber.StatusAccepted, res.Message, res)
}

// SendDirect calls the gateway inside the request and returns its acknowledgement
func (h *SMSHandler) SendDirect(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	var req dto.SendSMSRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := validateRequest(h.validator, &req); errs != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sms/send-direct")
	defer cancel()

	res, err := h.flow.SendDirect(ctx, accountID, &req, requestMetadata(c))
	if err != nil {
		return flowErrorResponse(c, err, "SEND_SMS_FAILED", "Failed to send SMS")
	}

	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// Status returns the gateway's status object for a message
func (h *SMSHandler) Status(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	messageID, err := url.PathUnescape(c.Params("message_id"))
	if err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid message_id", "VALIDATION_ERROR", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sms/status")
	defer cancel()

	res, err := h.flow.Status(ctx, accountID, messageID)
	if err != nil {
		return flowErrorResponse(c, err, "GET_SMS_STATUS_FAILED", "Failed to get SMS status")
	}

	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
