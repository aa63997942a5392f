// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/dto"
	"github.com/amirphl/sms-gateway-bridge/app/services"
	businessflow "github.com/amirphl/sms-gateway-bridge/business_flow"
	"github.com/amirphl/sms-gateway-bridge/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

func ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// accountIDFromContext reads the account id stored by the auth middleware
func accountIDFromContext(c fiber.Ctx) (uint, bool) {
	accountID, ok := c.Locals("account_id").(uint)
	return accountID, ok && accountID != 0
}

func requestMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get("X-Request-ID"))
	return metadata
}

func createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	if accountID, ok := accountIDFromContext(c); ok {
		ctx = context.WithValue(ctx, utils.AccountIDKey, accountID)
	}
	return ctx, cancel
}

// validateRequest returns the human readable validation failures, or nil
func validateRequest(v *validator.Validate, req any) []string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		if err.Kind().String() == "slice" {
			return err.Field() + " must contain at least " + err.Param() + " items"
		}
		if isNumericKind(err.Kind().String()) {
			return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		if err.Kind().String() == "slice" {
			return err.Field() + " must contain at most " + err.Param() + " items"
		}
		if isNumericKind(err.Kind().String()) {
			return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
		}
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "url", "http_url":
		return err.Field() + " must be a valid URL"
	default:
		return err.Field() + " is invalid"
	}
}

func isNumericKind(kind string) bool {
	return strings.HasPrefix(kind, "int") || strings.HasPrefix(kind, "uint") || strings.HasPrefix(kind, "float")
}

// gatewayHTTPStatus maps a gateway failure kind onto the status returned to API clients
func gatewayHTTPStatus(kind services.GatewayErrorKind) int {
	switch kind {
	case services.GatewayKindBadRequest, services.GatewayKindClientError:
		return fiber.StatusBadRequest
	case services.GatewayKindAuthenticationFailed:
		return fiber.StatusUnauthorized
	case services.GatewayKindNotFound:
		return fiber.StatusNotFound
	case services.GatewayKindConflict:
		return fiber.StatusConflict
	case services.GatewayKindRateLimited:
		return fiber.StatusTooManyRequests
	case services.GatewayKindServerError, services.GatewayKindNetworkError:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// flowErrorResponse writes the response for an error returned by a business flow.
// Gateway failures keep their kind; business errors keep their code.
func flowErrorResponse(c fiber.Ctx, err error, fallbackCode, fallbackMessage string) error {
	if ge, ok := services.AsGatewayError(err); ok {
		status := gatewayHTTPStatus(ge.Kind)
		if status >= fiber.StatusInternalServerError {
			log.Printf("ERROR gateway call failed path=%s kind=%s status=%d err=%v", c.Path(), ge.Kind, ge.StatusCode, err)
		}
		return ErrorResponse(c, status, gatewayErrorMessage(ge), "GATEWAY_"+strings.ToUpper(string(ge.Kind)), fiber.Map{
			"gateway_status": ge.StatusCode,
		})
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		switch {
		case businessflow.IsCredentialDecryptionFailed(err):
			return ErrorResponse(c, fiber.StatusInternalServerError, be.Message, be.Code, nil)
		case businessflow.IsConfigurationError(err),
			businessflow.IsMessageIDTooLong(err),
			businessflow.IsPartialGatewaySettings(err),
			businessflow.IsInvalidGatewayURL(err),
			errors.Is(err, businessflow.ErrRecipientsMissing),
			errors.Is(err, businessflow.ErrMessageMissing),
			errors.Is(err, businessflow.ErrMessageIDRequired),
			errors.Is(err, businessflow.ErrInvalidPage),
			errors.Is(err, businessflow.ErrInvalidPageSize):
			return ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		}
	}

	log.Printf("ERROR request failed path=%s code=%s err=%v", c.Path(), fallbackCode, err)
	return ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

func gatewayErrorMessage(ge *services.GatewayError) string {
	switch ge.Kind {
	case services.GatewayKindAuthenticationFailed:
		return "SMS gateway rejected the configured credentials"
	case services.GatewayKindNotFound:
		return "Message not found on the SMS gateway"
	case services.GatewayKindRateLimited:
		return "SMS gateway rate limit exceeded"
	case services.GatewayKindServerError, services.GatewayKindNetworkError:
		return "SMS gateway is unavailable"
	default:
		if ge.Message != "" {
			return ge.Message
		}
		return "SMS gateway request failed"
	}
}
