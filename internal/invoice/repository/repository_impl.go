package repository

import (
	"context"
	"errors"

	invoicedomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, items []invoicedomain.InvoiceItem) error {
	if err := db.WithContext(ctx).Create(invoice).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*invoicedomain.Invoice, error) {
	q := db.WithContext(ctx)
	if forUpdate && db.Dialector.Name() != "sqlite" {
		// sqlite serializes writers in the transaction itself; a row lock
		// would be rejected by its parser.
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var item invoicedomain.Invoice
	err := q.Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*invoicedomain.Invoice, error) {
	var item invoicedomain.Invoice
	err := db.WithContext(ctx).Where("invoice_number = ?", number).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListInvoices(ctx context.Context, db *gorm.DB, req invoicedomain.ListInvoiceRequest, beforeID int64, limit int) ([]invoicedomain.Invoice, error) {
	q := db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if req.PatientID != 0 {
		q = q.Where("patient_id = ?", req.PatientID)
	}
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var items []invoicedomain.Invoice
	if err := q.Order("id DESC").Limit(limit + 1).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceItem, error) {
	var items []invoicedomain.InvoiceItem
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) NextInvoiceSeq(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices`,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (r *repo) UpdateSettlement(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET status = ?, paid_amount = ?, balance_amount = ?, cancel_reason = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.Status,
		invoice.PaidAmount,
		invoice.BalanceAmount,
		invoice.CancelReason,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *invoicedomain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindPaymentByGatewayTransaction(ctx context.Context, db *gorm.DB, txnID snowflake.ID) (*invoicedomain.Payment, error) {
	var item invoicedomain.Payment
	err := db.WithContext(ctx).Where("gateway_transaction_id = ?", txnID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.Payment, error) {
	var items []invoicedomain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
