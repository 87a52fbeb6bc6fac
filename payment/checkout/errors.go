package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("missing required fields")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("invalid verification token")
	ErrNotFound      = errors.New("payment data not found")
	ErrConfiguration = errors.New("payment configuration error")
	ErrStore         = errors.New("failed to store order data")
)

// GatewayError means the gateway rejected or could not serve a request.
// Retryable is set for transport failures and timeouts, where the caller may
// try again; a definitive rejection carries the gateway's code.
type GatewayError struct {
	Code      int
	Message   string
	Details   json.RawMessage
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("payment gateway unavailable: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway rejected request: code %d: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PaymentFailedError is a definitive verify failure. The pending payment is
// failed and can not be verified again.
type PaymentFailedError struct {
	Code    int
	Message string
	Details json.RawMessage
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment verification failed: code %d: %s", e.Code, e.Message)
}
