package handlers

import (
	"fmt"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type InboxHandlerInterface interface {
	ListIncoming(c fiber.Ctx) error
	ExportIncoming(c fiber.Ctx) error
}

type InboxHandler struct {
	flow      businessflow.InboxFlow
	validator *validator.Validate
}

func NewInboxHandler(flow businessflow.InboxFlow) *InboxHandler {
	return &InboxHandler{flow: flow, validator: validator.New()}
}

func (h *InboxHandler) ListIncoming(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	var req dto.ListIncomingSMSRequest
	if err := c.Bind().Query(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if errs := validateRequest(h.validator, &req); errs != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sms/incoming")
	defer cancel()

	res, err := h.flow.ListIncoming(ctx, accountID, &req)
	if err != nil {
		return flowErrorResponse(c, err, "LIST_INCOMING_SMS_FAILED", "Failed to list incoming messages")
	}

	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ExportIncoming downloads the inbox as an xlsx workbook
func (h *InboxHandler) ExportIncoming(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	var sender *string
	if s := c.Query("sender"); s != "" {
		sender = utils.ToPtr(s)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/sms/incoming/export")
	defer cancel()

	res, err := h.flow.ExportIncoming(ctx, accountID, sender)
	if err != nil {
		return flowErrorResponse(c, err, "EXPORT_INCOMING_SMS_FAILED", "Failed to export incoming messages")
	}

	c.Set("Content-Type", xlsxContentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	return c.Send(res.Content)
}
