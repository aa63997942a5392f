package handlers

import (
	"github.com/amirphl/sms-gateway-bridge/app/dto"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type SettingsHandlerInterface interface {
	GetGatewaySettings(c fiber.Ctx) error
	UpdateGatewaySettings(c fiber.Ctx) error
}

type SettingsHandler struct {
	flow      businessflow.SettingsFlow
	validator *validator.Validate
}

func NewSettingsHandler(flow businessflow.SettingsFlow) *SettingsHandler {
	return &SettingsHandler{flow: flow, validator: validator.New()}
}

func (h *SettingsHandler) GetGatewaySettings(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/settings/gateway")
	defer cancel()

	res, err := h.flow.GetGatewaySettings(ctx, accountID)
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
		}
		return flowErrorResponse(c, err, "GET_GATEWAY_SETTINGS_FAILED", "Failed to get gateway settings")
	}

	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// UpdateGatewaySettings stores or clears the gateway credentials of the account
func (h *SettingsHandler) UpdateGatewaySettings(c fiber.Ctx) error {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		return ErrorResponse(c, fiber.StatusUnauthorized, "Account ID not found in context", "MISSING_ACCOUNT_ID", nil)
	}

	var req dto.UpdateGatewaySettingsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := validateRequest(h.validator, &req); errs != nil {
		return ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := createRequestContext(c, "/api/v1/settings/gateway")
	defer cancel()

	res, err := h.flow.UpdateGatewaySettings(ctx, accountID, &req, requestMetadata(c))
	if err != nil {
		if businessflow.IsAccountNotFound(err) {
			return ErrorResponse(c, fiber.StatusNotFound, "Account not found", "ACCOUNT_NOT_FOUND", nil)
		}
		return flowErrorResponse(c, err, "UPDATE_GATEWAY_SETTINGS_FAILED", "Failed to update gateway settings")
	}

	return SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
