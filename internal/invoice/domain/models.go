// Package domain contains the invoice ledger models. All amounts are int64
// minor units.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusPending       InvoiceStatus = "pending"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
	InvoiceStatusRefunded      InvoiceStatus = "refunded"
)

// Closed reports whether the status admits no further payments.
func (s InvoiceStatus) Closed() bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod enumerates how funds were tendered.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCard         PaymentMethod = "card"
	MethodInsurance    PaymentMethod = "insurance"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether the method is one of the accepted values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodMobileMoney, MethodCard, MethodInsurance, MethodBankTransfer:
		return true
	default:
		return false
	}
}

// Invoice identifies a billable patient encounter.
//
// Invariant: PaidAmount + BalanceAmount == TotalAmount at all times, and
// BalanceAmount >= 0. TotalAmount is immutable once any payment exists.
type Invoice struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceNumber  string        `json:"invoice_number" gorm:"type:text;not null;uniqueIndex:ux_invoices_invoice_number"`
	PatientID      snowflake.ID  `json:"patient_id" gorm:"not null;index"`
	Status         InvoiceStatus `json:"status" gorm:"type:text;not null;default:'pending';index"`
	SubtotalAmount int64         `json:"subtotal_amount" gorm:"not null;default:0"`
	TaxAmount      int64         `json:"tax_amount" gorm:"not null;default:0"`
	DiscountAmount int64         `json:"discount_amount" gorm:"not null;default:0"`
	TotalAmount    int64         `json:"total_amount" gorm:"not null;default:0"`
	PaidAmount     int64         `json:"paid_amount" gorm:"not null;default:0"`
	BalanceAmount  int64         `json:"balance_amount" gorm:"not null;default:0"`
	CancelReason   *string       `json:"cancel_reason,omitempty" gorm:"type:text"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []InvoiceItem `json:"items,omitempty" gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceItem is a line on an invoice, snapshotted at creation and immutable
// afterwards.
type InvoiceItem struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	InvoiceID   snowflake.ID `json:"invoice_id" gorm:"not null;index"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Quantity    int64        `json:"quantity" gorm:"not null"`
	UnitAmount  int64        `json:"unit_amount" gorm:"not null"`
	Amount      int64        `json:"amount" gorm:"not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// Payment is an atomic application of funds to exactly one invoice.
// Immutable once created; a reversal is a new compensating record.
type Payment struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey"`
	PaymentNumber        string        `json:"payment_number" gorm:"type:text;not null;uniqueIndex:ux_payments_payment_number"`
	InvoiceID            snowflake.ID  `json:"invoice_id" gorm:"not null;index"`
	Amount               int64         `json:"amount" gorm:"not null"`
	Method               PaymentMethod `json:"method" gorm:"type:text;not null"`
	ExternalReference    *string       `json:"external_reference,omitempty" gorm:"type:text"`
	GatewayTransactionID *snowflake.ID `json:"gateway_transaction_id,omitempty" gorm:"uniqueIndex:ux_payments_gateway_transaction_id"`
	RecordedBy           string        `json:"recorded_by" gorm:"type:text;not null;default:''"`
	CreatedAt            time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
