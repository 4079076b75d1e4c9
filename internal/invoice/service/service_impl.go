package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	invoicedomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/money"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// invoice numbers are sequential; concurrent creates can collide on the
// unique index and are retried with a fresh sequence.
const numberRetries = 3

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	GenID    *snowflake.Node
	Repo     invoicedomain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     invoicedomain.Repository
	auditSvc auditdomain.Service

	taxRateBps int64
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("invoice.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		taxRateBps: p.Cfg.TaxRateBps,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	if len(req.Items) == 0 {
		return nil, invoicedomain.ErrInvalidItems
	}

	var subtotal int64
	items := make([]invoicedomain.InvoiceItem, 0, len(req.Items))
	for _, line := range req.Items {
		description := strings.TrimSpace(line.Description)
		if description == "" || line.Quantity <= 0 || line.UnitAmount < 0 {
			return nil, invoicedomain.ErrInvalidItems
		}
		amount := line.Quantity * line.UnitAmount
		subtotal += amount
		items = append(items, invoicedomain.InvoiceItem{
			Description: description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitAmount,
			Amount:      amount,
		})
	}

	// Flat tax rate, applied exactly once at creation.
	tax := subtotal * s.taxRateBps / 10000
	if req.DiscountAmount < 0 || req.DiscountAmount > subtotal+tax {
		return nil, invoicedomain.ErrInvalidDiscount
	}
	total := subtotal + tax - req.DiscountAmount

	now := time.Now().UTC()
	invoice := &invoicedomain.Invoice{
		PatientID:      req.PatientID,
		Status:         invoicedomain.InvoiceStatusPending,
		SubtotalAmount: subtotal,
		TaxAmount:      tax,
		DiscountAmount: req.DiscountAmount,
		TotalAmount:    total,
		PaidAmount:     0,
		BalanceAmount:  total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var lastErr error
	for attempt := 0; attempt < numberRetries; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			seq, err := s.repo.NextInvoiceSeq(ctx, tx)
			if err != nil {
				return err
			}

			invoice.ID = s.genID.Generate()
			invoice.InvoiceNumber = money.InvoiceNumber(seq)
			for i := range items {
				items[i].ID = s.genID.Generate()
				items[i].InvoiceID = invoice.ID
				items[i].CreatedAt = now
			}
			return s.repo.InsertInvoice(ctx, tx, invoice, items)
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	invoice.Items = items
	s.auditSvc.Record(ctx, req.Actor, "invoice.created", "invoice", invoice.ID.String(), map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"patient_id":     invoice.PatientID.String(),
		"subtotal":       money.Format(invoice.SubtotalAmount),
		"tax":            money.Format(invoice.TaxAmount),
		"discount":       money.Format(invoice.DiscountAmount),
		"total":          money.Format(invoice.TotalAmount),
		"items":          len(items),
	})
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	items, err := s.repo.ListItems(ctx, s.db, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.Items = items
	return invoice, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*invoicedomain.Invoice, error) {
	number = money.NormalizeReference(number)
	if number == "" {
		return nil, invoicedomain.ErrNotFound
	}
	invoice, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	var beforeID int64
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		beforeID, err = strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	items, err := s.repo.ListInvoices(ctx, s.db, req, beforeID, limit)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: items}
	if len(items) > limit {
		resp.Invoices = items[:limit]
		resp.HasMore = true
		last := resp.Invoices[len(resp.Invoices)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID.String()})
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

func (s *Service) ListPayments(ctx context.Context, invoiceID snowflake.ID) ([]invoicedomain.Payment, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return s.repo.ListPayments(ctx, s.db, invoiceID)
}

func (s *Service) FindPaymentByGatewayTransaction(ctx context.Context, txnID snowflake.ID) (*invoicedomain.Payment, error) {
	return s.repo.FindPaymentByGatewayTransaction(ctx, s.db, txnID)
}

// ApplyPayment is the single authoritative funds-application path, used by
// manual payment entry and by the allocation engine.
//
// The invoice row is locked for the duration of the read-modify-write so two
// payments landing on the same invoice serialize; the payment row is written
// before the invoice update inside one transaction, so a payment can never
// commit without its matching balance decrease.
func (s *Service) ApplyPayment(ctx context.Context, req invoicedomain.ApplyPaymentRequest) (*invoicedomain.Payment, error) {
	if req.Amount <= 0 {
		return nil, invoicedomain.ErrInvalidAmount
	}
	if !req.Method.Valid() {
		return nil, invoicedomain.ErrInvalidMethod
	}

	now := time.Now().UTC()
	payment := &invoicedomain.Payment{
		Amount:               req.Amount,
		Method:               req.Method,
		ExternalReference:    req.ExternalReference,
		GatewayTransactionID: req.GatewayTransactionID,
		RecordedBy:           strings.TrimSpace(req.RecordedBy),
		CreatedAt:            now,
	}

	var before, after invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, req.InvoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if invoice.Status.Closed() {
			return invoicedomain.ErrInvoiceClosed
		}
		before = *invoice

		payment.ID = s.genID.Generate()
		payment.PaymentNumber = money.PaymentNumber(payment.ID)
		payment.InvoiceID = invoice.ID
		if err := s.repo.InsertPayment(ctx, tx, payment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				// the gateway transaction already produced a payment
				return invoicedomain.ErrDuplicatePayment
			}
			return err
		}

		newPaid := invoice.PaidAmount + req.Amount
		newBalance := invoice.TotalAmount - newPaid
		if newBalance < 0 {
			newBalance = 0
		}
		invoice.PaidAmount = invoice.TotalAmount - newBalance
		invoice.BalanceAmount = newBalance
		if newBalance == 0 {
			invoice.Status = invoicedomain.InvoiceStatusPaid
		} else {
			invoice.Status = invoicedomain.InvoiceStatusPartiallyPaid
		}
		invoice.UpdatedAt = now

		if err := s.repo.UpdateSettlement(ctx, tx, invoice); err != nil {
			return err
		}
		after = *invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, payment.RecordedBy, "payment.applied", "invoice", after.ID.String(), map[string]any{
		"payment_number": payment.PaymentNumber,
		"method":         string(payment.Method),
		"amount":         money.Format(payment.Amount),
		"paid_before":    money.Format(before.PaidAmount),
		"paid_after":     money.Format(after.PaidAmount),
		"balance_before": money.Format(before.BalanceAmount),
		"balance_after":  money.Format(after.BalanceAmount),
		"status_before":  string(before.Status),
		"status_after":   string(after.Status),
	})
	return payment, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID, reason string, actor string) error {
	reason = strings.TrimSpace(reason)

	var before, after invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if invoice.Status.Closed() {
			return invoicedomain.ErrInvoiceClosed
		}
		if invoice.PaidAmount > 0 {
			return invoicedomain.ErrInvoiceHasPayments
		}
		before = *invoice

		invoice.Status = invoicedomain.InvoiceStatusCancelled
		if reason != "" {
			invoice.CancelReason = &reason
		}
		invoice.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateSettlement(ctx, tx, invoice); err != nil {
			return err
		}
		after = *invoice
		return nil
	})
	if err != nil {
		return err
	}

	s.auditSvc.Record(ctx, actor, "invoice.cancelled", "invoice", after.ID.String(), map[string]any{
		"invoice_number": after.InvoiceNumber,
		"reason":         reason,
		"status_before":  string(before.Status),
		"status_after":   string(after.Status),
	})
	return nil
}
