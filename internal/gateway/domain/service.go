package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrRequestNotFound     = errors.New("push_request_not_found")
	ErrTransactionNotFound = errors.New("gateway_transaction_not_found")
	ErrInvalidPhone        = errors.New("invalid_phone")
	ErrInvalidReference    = errors.New("invalid_reference")
	ErrInvalidAmount       = errors.New("invalid_gateway_amount")
	ErrInvalidCallback     = errors.New("invalid_callback")
)

type InitiatePushRequest struct {
	Phone     string
	Amount    int64
	Reference string
	Actor     string
}

// PushResultCallback is the asynchronous outcome of a pushed prompt.
// Metadata carries name/value pairs (amount, receipt identifier, phone) on
// success.
type PushResultCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int64
	ResultDescription string
	Metadata          []CallbackItem
	Raw               []byte
}

// CallbackItem is one name/value pair from the callback metadata list.
type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

// DepositNotification is an unsolicited confirmation that a payer sent money
// referencing a business account.
type DepositNotification struct {
	TransactionID string
	Amount        string
	BillReference string
	Phone         string
	PayerName     string
	Raw           []byte
}

// PushStatus combines the local record with the gateway's answer for an
// operator-initiated reconciliation of a stuck request.
type PushStatus struct {
	Request      *PushPaymentRequest `json:"request"`
	GatewayState *STKQueryResponse   `json:"gateway_state,omitempty"`
}

// Service initiates payment prompts and ingests gateway notifications.
type Service interface {
	InitiatePush(ctx context.Context, req InitiatePushRequest) (*PushPaymentRequest, error)
	QueryPushStatus(ctx context.Context, checkoutRequestID string) (*PushStatus, error)
	HandlePushResult(ctx context.Context, cb PushResultCallback) error
	ValidateDeposit(ctx context.Context, n DepositNotification) error
	HandleDeposit(ctx context.Context, n DepositNotification) error
}

// Repository persists gateway transactions and push requests.
type Repository interface {
	// InsertTransaction inserts with insert-or-ignore semantics on the
	// gateway transaction id; the bool reports whether the row was new.
	InsertTransaction(ctx context.Context, db *gorm.DB, txn *GatewayTransaction) (bool, error)
	FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*GatewayTransaction, error)
	FindTransactionByGatewayID(ctx context.Context, db *gorm.DB, gatewayTxnID string) (*GatewayTransaction, error)
	MarkTransactionAllocated(ctx context.Context, db *gorm.DB, id snowflake.ID, invoiceID snowflake.ID) error
	ListUnallocated(ctx context.Context, db *gorm.DB, beforeID int64, limit int) ([]GatewayTransaction, error)

	InsertPushRequest(ctx context.Context, db *gorm.DB, req *PushPaymentRequest) error
	FindPushRequestByCheckoutID(ctx context.Context, db *gorm.DB, checkoutRequestID string) (*PushPaymentRequest, error)
	// ResolvePushRequest flips a pending request to its terminal status; the
	// bool reports whether this call performed the transition (false means
	// the request was already resolved).
	ResolvePushRequest(ctx context.Context, db *gorm.DB, id snowflake.ID, status PushRequestStatus, resultCode int64, resultDescription string, payload []byte) (bool, error)
}
