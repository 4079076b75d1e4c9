package domain

import (
	"context"
	"errors"

	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound           = errors.New("invoice_not_found")
	ErrInvalidItems       = errors.New("invalid_items")
	ErrInvalidDiscount    = errors.New("invalid_discount")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidMethod      = errors.New("invalid_method")
	ErrInvoiceClosed      = errors.New("invoice_closed")
	ErrInvoiceHasPayments = errors.New("invoice_has_payments")
	ErrDuplicatePayment   = errors.New("duplicate_payment")
)

// CreateInvoiceItem is one requested line item.
type CreateInvoiceItem struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	UnitAmount  int64  `json:"unit_amount"`
}

type CreateInvoiceRequest struct {
	PatientID      snowflake.ID        `json:"patient_id"`
	Items          []CreateInvoiceItem `json:"items"`
	DiscountAmount int64               `json:"discount_amount"`
	Actor          string              `json:"-"`
}

// ApplyPaymentRequest is the single authoritative funds-application input,
// shared by manual payment entry and the allocation engine.
type ApplyPaymentRequest struct {
	InvoiceID            snowflake.ID
	Amount               int64
	Method               PaymentMethod
	ExternalReference    *string
	GatewayTransactionID *snowflake.ID
	RecordedBy           string
}

type ListInvoiceRequest struct {
	pagination.Pagination
	PatientID snowflake.ID
	Status    InvoiceStatus
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// Service owns the invoice lifecycle and balance invariants.
type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]Payment, error)
	FindPaymentByGatewayTransaction(ctx context.Context, txnID snowflake.ID) (*Payment, error)
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*Payment, error)
	Cancel(ctx context.Context, id snowflake.ID, reason string, actor string) error
}
