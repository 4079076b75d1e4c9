package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	allocationdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation/domain"
	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	invoicedomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/money"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/observability/metrics"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Repo       gatewaydomain.Repository
	InvoiceSvc invoicedomain.Service
	AuditSvc   auditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       gatewaydomain.Repository
	invoiceSvc invoicedomain.Service
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) allocationdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("allocation.service"),
		repo:       p.Repo,
		invoiceSvc: p.InvoiceSvc,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

// Allocate tries to settle a pending gateway transaction against the invoice
// its bill reference names. A transaction that matches nothing, or matches
// an invoice that admits no further payments, is left pending for manual
// allocation. Only infrastructure failures return an error.
func (s *Service) Allocate(ctx context.Context, txn *gatewaydomain.GatewayTransaction) error {
	if txn.Status != gatewaydomain.TransactionStatusPending {
		return nil
	}

	reference := money.NormalizeReference(txn.BillReference)
	if reference == "" {
		s.countOutcome("unmatched")
		return nil
	}

	invoice, err := s.invoiceSvc.GetByNumber(ctx, reference)
	if errors.Is(err, invoicedomain.ErrNotFound) {
		s.countOutcome("unmatched")
		return nil
	}
	if err != nil {
		return err
	}
	if invoice.Status.Closed() {
		s.countOutcome("invoice_closed")
		return nil
	}

	return s.apply(ctx, txn, invoice, "gateway", "auto")
}

// ManualAllocate is the operator path for the unallocated queue: attach a
// pending transaction to a chosen invoice regardless of its bill reference.
func (s *Service) ManualAllocate(ctx context.Context, req allocationdomain.ManualAllocateRequest) (*gatewaydomain.GatewayTransaction, error) {
	txn, err := s.repo.FindTransactionByID(ctx, s.db, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, gatewaydomain.ErrTransactionNotFound
	}
	if txn.Status != gatewaydomain.TransactionStatusPending {
		return nil, allocationdomain.ErrAlreadyAllocated
	}

	invoice, err := s.invoiceSvc.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status.Closed() {
		return nil, allocationdomain.ErrInvoiceNotOpen
	}

	if err := s.apply(ctx, txn, invoice, req.Actor, "manual"); err != nil {
		return nil, err
	}
	return s.repo.FindTransactionByID(ctx, s.db, req.TransactionID)
}

// apply runs the single funds-application path and marks the transaction
// allocated. A duplicate-payment answer means an earlier attempt applied the
// funds but crashed before marking; the mark is completed against the invoice
// that actually received the funds, never the caller's choice.
func (s *Service) apply(ctx context.Context, txn *gatewaydomain.GatewayTransaction, invoice *invoicedomain.Invoice, actor, mode string) error {
	txnID := txn.ID
	externalRef := txn.GatewayTxnID
	_, err := s.invoiceSvc.ApplyPayment(ctx, invoicedomain.ApplyPaymentRequest{
		InvoiceID:            invoice.ID,
		Amount:               txn.Amount,
		Method:               invoicedomain.MethodMobileMoney,
		ExternalReference:    &externalRef,
		GatewayTransactionID: &txnID,
		RecordedBy:           actor,
	})
	if errors.Is(err, invoicedomain.ErrDuplicatePayment) {
		existing, ferr := s.invoiceSvc.FindPaymentByGatewayTransaction(ctx, txn.ID)
		if ferr != nil {
			s.countOutcome("error")
			return ferr
		}
		if existing != nil && existing.InvoiceID != invoice.ID {
			if merr := s.repo.MarkTransactionAllocated(ctx, s.db, txn.ID, existing.InvoiceID); merr != nil {
				return merr
			}
			return allocationdomain.ErrAlreadyAllocated
		}
	} else if err != nil {
		s.countOutcome("error")
		return err
	}

	if err := s.repo.MarkTransactionAllocated(ctx, s.db, txn.ID, invoice.ID); err != nil {
		return err
	}

	s.countOutcome(mode)
	s.auditSvc.Record(ctx, actor, "transaction.allocated", "gateway_transaction", txn.ID.String(), map[string]any{
		"gateway_txn_id": txn.GatewayTxnID,
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"amount":         money.Format(txn.Amount),
		"mode":           mode,
	})
	return nil
}

func (s *Service) ListUnallocated(ctx context.Context, req allocationdomain.ListUnallocatedRequest) (allocationdomain.ListUnallocatedResponse, error) {
	var beforeID int64
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return allocationdomain.ListUnallocatedResponse{}, err
		}
		beforeID, err = strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return allocationdomain.ListUnallocatedResponse{}, err
		}
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	items, err := s.repo.ListUnallocated(ctx, s.db, beforeID, limit)
	if err != nil {
		return allocationdomain.ListUnallocatedResponse{}, err
	}

	resp := allocationdomain.ListUnallocatedResponse{Transactions: items}
	if len(items) > limit {
		resp.Transactions = items[:limit]
		resp.HasMore = true
		last := resp.Transactions[len(resp.Transactions)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID.String()})
		if err != nil {
			return allocationdomain.ListUnallocatedResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

func (s *Service) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.Allocations.WithLabelValues(outcome).Inc()
	}
}
