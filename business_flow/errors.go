// Package businessflow contains the use cases of the gateway bridge: sending, status lookup, webhooks and settings
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Account and credential errors
	ErrAccountNotFound            = errors.New("account not found")
	ErrGatewayNotConfigured       = errors.New("sms gateway credentials are not configured")
	ErrCredentialDecryptionFailed = errors.New("sms gateway credentials could not be decrypted")
	ErrAccountFetchFailed         = errors.New("account could not be loaded")

	// Send request errors
	ErrMessageIDTooLong  = errors.New("message id must be at most 36 characters")
	ErrRecipientsMissing = errors.New("at least one recipient is required")
	ErrMessageMissing    = errors.New("message is required")
	ErrMessageIDRequired = errors.New("message id is required")
	ErrEnqueueFailed     = errors.New("failed to queue delivery task")

	// Settings errors
	ErrPartialGatewaySettings = errors.New("base url, username and password must be provided together")
	ErrInvalidGatewayURL      = errors.New("gateway base url must be an absolute http or https url")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

func IsGatewayNotConfigured(err error) bool {
	return errors.Is(err, ErrGatewayNotConfigured)
}

func IsCredentialDecryptionFailed(err error) bool {
	return errors.Is(err, ErrCredentialDecryptionFailed)
}

// IsAccountFetchFailed reports a store failure while loading an account; it is transient
func IsAccountFetchFailed(err error) bool {
	return errors.Is(err, ErrAccountFetchFailed)
}

func IsMessageIDTooLong(err error) bool {
	return errors.Is(err, ErrMessageIDTooLong)
}

func IsPartialGatewaySettings(err error) bool {
	return errors.Is(err, ErrPartialGatewaySettings)
}

func IsInvalidGatewayURL(err error) bool {
	return errors.Is(err, ErrInvalidGatewayURL)
}

// IsConfigurationError groups the errors that mean the account cannot reach a gateway yet
func IsConfigurationError(err error) bool {
	return IsGatewayNotConfigured(err) || IsAccountNotFound(err)
}
