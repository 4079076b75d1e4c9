package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists invoices and payments. Methods take the handle they
// should run on so the service can hand them a transaction.
type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice, items []InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Invoice, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Invoice, error)
	ListInvoices(ctx context.Context, db *gorm.DB, req ListInvoiceRequest, beforeID int64, limit int) ([]Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
	NextInvoiceSeq(ctx context.Context, db *gorm.DB) (int64, error)
	UpdateSettlement(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	FindPaymentByGatewayTransaction(ctx context.Context, db *gorm.DB, txnID snowflake.ID) (*Payment, error)
}
