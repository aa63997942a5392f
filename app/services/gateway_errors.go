package services

import (
	"errors"
	"fmt"
	"net/http"
)

// GatewayOperation names the two calls made against the gateway
type GatewayOperation string

const (
	GatewayOperationSend   GatewayOperation = "send"
	GatewayOperationStatus GatewayOperation = "status"
)

// GatewayErrorKind classifies a failed gateway call
type GatewayErrorKind string

const (
	GatewayKindNone                 GatewayErrorKind = ""
	GatewayKindBadRequest           GatewayErrorKind = "bad_request"
	GatewayKindAuthenticationFailed GatewayErrorKind = "authentication_failed"
	GatewayKindNotFound             GatewayErrorKind = "not_found"
	GatewayKindConflict             GatewayErrorKind = "conflict"
	GatewayKindRateLimited          GatewayErrorKind = "rate_limited"
	GatewayKindServerError          GatewayErrorKind = "server_error"
	GatewayKindClientError          GatewayErrorKind = "client_error"
	GatewayKindUnexpectedStatus     GatewayErrorKind = "unexpected_status"
	GatewayKindNetworkError         GatewayErrorKind = "network_error"
)

// Retryable reports whether a later attempt may succeed
func (k GatewayErrorKind) Retryable() bool {
	switch k {
	case GatewayKindRateLimited, GatewayKindServerError, GatewayKindNetworkError:
		return true
	default:
		return false
	}
}

// GatewayError is returned for every unsuccessful gateway call
type GatewayError struct {
	Kind       GatewayErrorKind
	Operation  GatewayOperation
	StatusCode int
	URL        string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gateway %s failed (%s, HTTP %d): %s", e.Operation, e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("gateway %s failed (%s): %v", e.Operation, e.Kind, e.Err)
	}
	return fmt.Sprintf("gateway %s failed (%s): %s", e.Operation, e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the delivery job may re-enqueue after this error
func (e *GatewayError) Retryable() bool {
	return e.Kind.Retryable()
}

// AsGatewayError extracts a *GatewayError from an error chain
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// IsGatewayKind reports whether err is a gateway error of the given kind
func IsGatewayKind(err error, kind GatewayErrorKind) bool {
	ge, ok := AsGatewayError(err)
	return ok && ge.Kind == kind
}

// ClassifyGatewayStatus maps an HTTP status code to an outcome kind. The mapping
// is total: GatewayKindNone means success.
func ClassifyGatewayStatus(op GatewayOperation, status int) GatewayErrorKind {
	switch {
	case op == GatewayOperationSend && status == http.StatusAccepted:
		return GatewayKindNone
	case op == GatewayOperationStatus && status == http.StatusOK:
		return GatewayKindNone
	case status == http.StatusBadRequest:
		return GatewayKindBadRequest
	case status == http.StatusUnauthorized:
		return GatewayKindAuthenticationFailed
	case status == http.StatusNotFound && op == GatewayOperationStatus:
		return GatewayKindNotFound
	case status == http.StatusConflict && op == GatewayOperationSend:
		return GatewayKindConflict
	case status == http.StatusTooManyRequests && op == GatewayOperationSend:
		return GatewayKindRateLimited
	case status >= 500 && status <= 599:
		return GatewayKindServerError
	case status >= 400 && status <= 499:
		return GatewayKindClientError
	default:
		return GatewayKindUnexpectedStatus
	}
}
