// Package domain contains the mobile-money gateway models: transactions
// ingested from callbacks and the records of prompts we pushed out.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionType distinguishes how the money reached us.
type TransactionType string

const (
	TransactionTypePush    TransactionType = "push"
	TransactionTypeDeposit TransactionType = "deposit"
)

// TransactionStatus is the allocation state of an ingested transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusAllocated TransactionStatus = "allocated"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// GatewayTransaction describes money that has already moved outside the
// system. GatewayTxnID is the idempotency key: exactly one row exists per
// distinct gateway transaction id regardless of delivery retries.
type GatewayTransaction struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	GatewayTxnID  string            `json:"gateway_txn_id" gorm:"type:text;not null;uniqueIndex:ux_gateway_transactions_gateway_txn_id"`
	Type          TransactionType   `json:"type" gorm:"type:text;not null"`
	Amount        int64             `json:"amount" gorm:"not null"`
	Phone         string            `json:"phone" gorm:"type:text;not null;default:''"`
	BillReference string            `json:"bill_reference" gorm:"type:text;not null;default:''"`
	PayerName     string            `json:"payer_name" gorm:"type:text;not null;default:''"`
	Payload       datatypes.JSON    `json:"payload,omitempty" gorm:"type:jsonb"`
	Status        TransactionStatus `json:"status" gorm:"type:text;not null;default:'pending';index"`
	InvoiceID     *snowflake.ID     `json:"invoice_id,omitempty"`
	AllocatedAt   *time.Time        `json:"allocated_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (GatewayTransaction) TableName() string { return "gateway_transactions" }

// PushRequestStatus is the lifecycle of a payment prompt.
type PushRequestStatus string

const (
	PushRequestStatusPending   PushRequestStatus = "pending"
	PushRequestStatusCompleted PushRequestStatus = "completed"
	PushRequestStatusFailed    PushRequestStatus = "failed"
)

// PushPaymentRequest records a prompt sent to a payer's phone. Created only
// once the gateway has accepted the prompt; resolved exactly once by the
// matching result callback.
type PushPaymentRequest struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	CheckoutRequestID string            `json:"checkout_request_id" gorm:"type:text;not null;uniqueIndex:ux_push_payment_requests_checkout_request_id"`
	MerchantRequestID string            `json:"merchant_request_id" gorm:"type:text;not null;default:''"`
	Phone             string            `json:"phone" gorm:"type:text;not null"`
	Amount            int64             `json:"amount" gorm:"not null"`
	AccountReference  string            `json:"account_reference" gorm:"type:text;not null"`
	Status            PushRequestStatus `json:"status" gorm:"type:text;not null;default:'pending';index"`
	ResultCode        *int64            `json:"result_code,omitempty"`
	ResultDescription *string           `json:"result_description,omitempty" gorm:"type:text"`
	Payload           datatypes.JSON    `json:"payload,omitempty" gorm:"type:jsonb"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PushPaymentRequest) TableName() string { return "push_payment_requests" }
