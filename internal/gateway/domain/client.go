package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrGatewayUnavailable covers transport failures and timeouts. A prompt
	// may still have been accepted by the gateway even when the HTTP
	// response was lost, so this is retryable only by explicit re-initiation.
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	// ErrGatewayRejected is a business-level rejection by the gateway.
	ErrGatewayRejected = errors.New("gateway_rejected")
)

// Credential is a short-lived bearer token issued by the gateway's OAuth
// endpoint.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Authenticator performs the OAuth credential exchange.
type Authenticator interface {
	Authenticate(ctx context.Context) (Credential, error)
}

// TokenSource yields a valid bearer token, refreshing as needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// STKPushRequest is a payment prompt to a payer's phone.
type STKPushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
}

// STKPushResponse is the gateway's synchronous acceptance of a prompt.
type STKPushResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      string
	Description       string
	CustomerMessage   string
}

// STKQueryResponse is the gateway's view of a previously pushed prompt.
type STKQueryResponse struct {
	CheckoutRequestID string
	ResponseCode      string
	ResultCode        string
	ResultDescription string
}

// Client is the outbound surface of the mobile-money gateway.
type Client interface {
	STKPush(ctx context.Context, req STKPushRequest) (STKPushResponse, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (STKQueryResponse, error)
}
