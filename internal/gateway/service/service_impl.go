package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	allocationdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation/domain"
	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/money"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      gatewaydomain.Repository
	Client    gatewaydomain.Client
	Allocator allocationdomain.Service
	AuditSvc  auditdomain.Service
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      gatewaydomain.Repository
	client    gatewaydomain.Client
	allocator allocationdomain.Service
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
}

func NewService(p Params) gatewaydomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("gateway.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		client:    p.Client,
		allocator: p.Allocator,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

// InitiatePush asks the gateway to prompt the payer's phone. A local record
// is written only after the gateway has accepted the prompt, so there are
// never pending rows for prompts that went nowhere.
func (s *Service) InitiatePush(ctx context.Context, req gatewaydomain.InitiatePushRequest) (*gatewaydomain.PushPaymentRequest, error) {
	if req.Amount <= 0 {
		return nil, gatewaydomain.ErrInvalidAmount
	}
	phone, err := money.NormalizePhone(req.Phone)
	if err != nil {
		return nil, gatewaydomain.ErrInvalidPhone
	}
	reference := money.NormalizeReference(req.Reference)
	if reference == "" {
		return nil, gatewaydomain.ErrInvalidReference
	}

	resp, err := s.client.STKPush(ctx, gatewaydomain.STKPushRequest{
		Phone:            phone,
		Amount:           req.Amount,
		AccountReference: reference,
		Description:      "Invoice " + reference,
	})
	if err != nil {
		s.countPush("error")
		return nil, err
	}
	if resp.ResponseCode != "0" {
		s.countPush("rejected")
		return nil, fmt.Errorf("%w: %s", gatewaydomain.ErrGatewayRejected, resp.Description)
	}

	now := time.Now().UTC()
	record := &gatewaydomain.PushPaymentRequest{
		ID:                s.genID.Generate(),
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Phone:             phone,
		Amount:            req.Amount,
		AccountReference:  reference,
		Status:            gatewaydomain.PushRequestStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.InsertPushRequest(ctx, s.db, record); err != nil {
		// the prompt is already on the payer's phone; losing the record
		// means the result callback will be logged as unknown
		s.log.Error("persist push request",
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.Error(err),
		)
		return nil, err
	}

	s.countPush("accepted")
	s.auditSvc.Record(ctx, req.Actor, "push.initiated", "push_request", record.ID.String(), map[string]any{
		"checkout_request_id": record.CheckoutRequestID,
		"phone":               phone,
		"reference":           reference,
		"amount":              money.Format(req.Amount),
	})
	return record, nil
}

// QueryPushStatus reconciles a stuck prompt against the gateway. A terminal
// failure reported by the gateway resolves the local record the same way the
// missing callback would have.
func (s *Service) QueryPushStatus(ctx context.Context, checkoutRequestID string) (*gatewaydomain.PushStatus, error) {
	req, err := s.repo.FindPushRequestByCheckoutID(ctx, s.db, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, gatewaydomain.ErrRequestNotFound
	}
	if req.Status != gatewaydomain.PushRequestStatusPending {
		return &gatewaydomain.PushStatus{Request: req}, nil
	}

	state, err := s.client.STKQuery(ctx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrGatewayRejected) {
			// the gateway answers query-too-early as a rejection; the
			// prompt is still in flight
			return &gatewaydomain.PushStatus{Request: req}, nil
		}
		return nil, err
	}

	code, parseErr := strconv.ParseInt(strings.TrimSpace(state.ResultCode), 10, 64)
	if parseErr == nil && code != 0 {
		if _, err := s.repo.ResolvePushRequest(ctx, s.db, req.ID, gatewaydomain.PushRequestStatusFailed, code, state.ResultDescription, nil); err != nil {
			return nil, err
		}
		req, err = s.repo.FindPushRequestByCheckoutID(ctx, s.db, checkoutRequestID)
		if err != nil {
			return nil, err
		}
	}
	return &gatewaydomain.PushStatus{Request: req, GatewayState: &state}, nil
}

// HandlePushResult ingests the asynchronous outcome of a prompt. Safe to
// call any number of times for the same delivery.
func (s *Service) HandlePushResult(ctx context.Context, cb gatewaydomain.PushResultCallback) error {
	s.countCallback("push_result")

	req, err := s.repo.FindPushRequestByCheckoutID(ctx, s.db, cb.CheckoutRequestID)
	if err != nil {
		return err
	}
	if req == nil {
		return gatewaydomain.ErrRequestNotFound
	}

	if cb.ResultCode != 0 {
		transitioned, err := s.repo.ResolvePushRequest(ctx, s.db, req.ID, gatewaydomain.PushRequestStatusFailed, cb.ResultCode, cb.ResultDescription, cb.Raw)
		if err != nil {
			return err
		}
		if !transitioned {
			s.countDuplicate("push_result")
			return nil
		}
		s.auditSvc.Record(ctx, "gateway", "push.failed", "push_request", req.ID.String(), map[string]any{
			"checkout_request_id": req.CheckoutRequestID,
			"result_code":         cb.ResultCode,
			"result_description":  cb.ResultDescription,
		})
		return nil
	}

	receipt := callbackString(cb.Metadata, "MpesaReceiptNumber")
	if receipt == "" {
		return gatewaydomain.ErrInvalidCallback
	}
	amount, ok := callbackAmount(cb.Metadata, "Amount")
	if !ok {
		amount = req.Amount
	}
	phone := callbackString(cb.Metadata, "PhoneNumber")
	if phone == "" {
		phone = req.Phone
	}

	now := time.Now().UTC()
	txn := &gatewaydomain.GatewayTransaction{
		ID:            s.genID.Generate(),
		GatewayTxnID:  receipt,
		Type:          gatewaydomain.TransactionTypePush,
		Amount:        amount,
		Phone:         phone,
		BillReference: req.AccountReference,
		Payload:       cb.Raw,
		Status:        gatewaydomain.TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var inserted, transitioned bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if transitioned, err = s.repo.ResolvePushRequest(ctx, tx, req.ID, gatewaydomain.PushRequestStatusCompleted, cb.ResultCode, cb.ResultDescription, cb.Raw); err != nil {
			return err
		}
		inserted, err = s.repo.InsertTransaction(ctx, tx, txn)
		return err
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.countDuplicate("push_result")
		if txn, err = s.repo.FindTransactionByGatewayID(ctx, s.db, receipt); err != nil {
			return err
		}
	}
	if transitioned {
		s.auditSvc.Record(ctx, "gateway", "push.completed", "push_request", req.ID.String(), map[string]any{
			"checkout_request_id": req.CheckoutRequestID,
			"receipt":             receipt,
			"amount":              money.Format(amount),
		})
	}

	return s.allocate(ctx, txn)
}

// ValidateDeposit answers the gateway's pre-commit validation hook. The
// funds have not moved yet, so this is the one callback that may reject.
func (s *Service) ValidateDeposit(ctx context.Context, n gatewaydomain.DepositNotification) error {
	s.countCallback("validation")

	if strings.TrimSpace(n.TransactionID) == "" {
		return gatewaydomain.ErrInvalidCallback
	}
	amount, err := money.ParseAmount(n.Amount)
	if err != nil || amount <= 0 {
		return gatewaydomain.ErrInvalidAmount
	}
	return nil
}

// HandleDeposit ingests a confirmed paybill deposit. The funds have already
// moved, so the notification is always absorbed; matching to an invoice is
// best effort and falls back to the manual allocation queue.
func (s *Service) HandleDeposit(ctx context.Context, n gatewaydomain.DepositNotification) error {
	s.countCallback("deposit")

	if strings.TrimSpace(n.TransactionID) == "" {
		return gatewaydomain.ErrInvalidCallback
	}
	amount, err := money.ParseAmount(n.Amount)
	if err != nil || amount <= 0 {
		return gatewaydomain.ErrInvalidAmount
	}

	phone := strings.TrimSpace(n.Phone)
	if normalized, err := money.NormalizePhone(phone); err == nil {
		phone = normalized
	}

	now := time.Now().UTC()
	txn := &gatewaydomain.GatewayTransaction{
		ID:            s.genID.Generate(),
		GatewayTxnID:  strings.TrimSpace(n.TransactionID),
		Type:          gatewaydomain.TransactionTypeDeposit,
		Amount:        amount,
		Phone:         phone,
		BillReference: money.NormalizeReference(n.BillReference),
		PayerName:     strings.TrimSpace(n.PayerName),
		Payload:       n.Raw,
		Status:        gatewaydomain.TransactionStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	inserted, err := s.repo.InsertTransaction(ctx, s.db, txn)
	if err != nil {
		return err
	}
	if !inserted {
		s.countDuplicate("deposit")
		if txn, err = s.repo.FindTransactionByGatewayID(ctx, s.db, txn.GatewayTxnID); err != nil {
			return err
		}
	} else {
		s.auditSvc.Record(ctx, "gateway", "deposit.received", "gateway_transaction", txn.ID.String(), map[string]any{
			"gateway_txn_id": txn.GatewayTxnID,
			"amount":         money.Format(amount),
			"bill_reference": txn.BillReference,
		})
	}

	return s.allocate(ctx, txn)
}

// allocate hands a pending transaction to the allocation engine. Allocation
// failure never fails the ingestion; the transaction stays in the manual
// queue.
func (s *Service) allocate(ctx context.Context, txn *gatewaydomain.GatewayTransaction) error {
	if txn == nil || txn.Status != gatewaydomain.TransactionStatusPending {
		return nil
	}
	if err := s.allocator.Allocate(ctx, txn); err != nil {
		s.log.Warn("allocate gateway transaction",
			zap.String("gateway_txn_id", txn.GatewayTxnID),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) countCallback(kind string) {
	if s.metrics != nil {
		s.metrics.CallbacksReceived.WithLabelValues(kind).Inc()
	}
}

func (s *Service) countDuplicate(kind string) {
	if s.metrics != nil {
		s.metrics.DuplicateCallbacks.WithLabelValues(kind).Inc()
	}
}

func (s *Service) countPush(outcome string) {
	if s.metrics != nil {
		s.metrics.PushInitiations.WithLabelValues(outcome).Inc()
	}
}

// callbackString pulls a named metadata value, tolerating the gateway's
// habit of sending numbers where strings are expected.
func callbackString(items []gatewaydomain.CallbackItem, name string) string {
	for _, item := range items {
		if item.Name != name || item.Value == nil {
			continue
		}
		switch v := item.Value.(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatInt(int64(v), 10)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// callbackAmount pulls a named metadata value as minor currency units.
func callbackAmount(items []gatewaydomain.CallbackItem, name string) (int64, bool) {
	for _, item := range items {
		if item.Name != name || item.Value == nil {
			continue
		}
		switch v := item.Value.(type) {
		case float64:
			amount, err := money.FromFloat(v)
			if err != nil {
				return 0, false
			}
			return amount, true
		case string:
			amount, err := money.ParseAmount(v)
			if err != nil {
				return 0, false
			}
			return amount, true
		case json.Number:
			amount, err := money.ParseAmount(v.String())
			if err != nil {
				return 0, false
			}
			return amount, true
		}
	}
	return 0, false
}
