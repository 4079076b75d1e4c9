package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	allocationservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation/service"
	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	gatewayrepo "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/repository"
	gatewayservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/service"
	invoicedomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/domain"
	invoicerepo "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/repository"
	invoiceservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/service"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopAuditService struct{}

func (noopAuditService) Record(ctx context.Context, actor, action, targetType, targetID string, metadata map[string]any) {
}

func (noopAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type fakeClient struct {
	pushes    []gatewaydomain.STKPushRequest
	pushResp  gatewaydomain.STKPushResponse
	pushErr   error
	queryResp gatewaydomain.STKQueryResponse
	queryErr  error
}

func (f *fakeClient) STKPush(ctx context.Context, req gatewaydomain.STKPushRequest) (gatewaydomain.STKPushResponse, error) {
	f.pushes = append(f.pushes, req)
	if f.pushErr != nil {
		return gatewaydomain.STKPushResponse{}, f.pushErr
	}
	return f.pushResp, nil
}

func (f *fakeClient) STKQuery(ctx context.Context, checkoutRequestID string) (gatewaydomain.STKQueryResponse, error) {
	if f.queryErr != nil {
		return gatewaydomain.STKQueryResponse{}, f.queryErr
	}
	return f.queryResp, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE invoices (
			id BIGINT PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			patient_id BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			subtotal_amount BIGINT NOT NULL DEFAULT 0,
			tax_amount BIGINT NOT NULL DEFAULT 0,
			discount_amount BIGINT NOT NULL DEFAULT 0,
			total_amount BIGINT NOT NULL DEFAULT 0,
			paid_amount BIGINT NOT NULL DEFAULT 0,
			balance_amount BIGINT NOT NULL DEFAULT 0,
			cancel_reason TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_invoices_invoice_number ON invoices(invoice_number)`,
		`CREATE TABLE invoice_items (
			id BIGINT PRIMARY KEY,
			invoice_id BIGINT NOT NULL,
			description TEXT NOT NULL,
			quantity BIGINT NOT NULL,
			unit_amount BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			payment_number TEXT NOT NULL,
			invoice_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			method TEXT NOT NULL,
			external_reference TEXT,
			gateway_transaction_id BIGINT,
			recorded_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payments_payment_number ON payments(payment_number)`,
		`CREATE UNIQUE INDEX ux_payments_gateway_transaction_id ON payments(gateway_transaction_id) WHERE gateway_transaction_id IS NOT NULL`,
		`CREATE TABLE gateway_transactions (
			id BIGINT PRIMARY KEY,
			gateway_txn_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			bill_reference TEXT NOT NULL DEFAULT '',
			payer_name TEXT NOT NULL DEFAULT '',
			payload TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			invoice_id BIGINT,
			allocated_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_gateway_transactions_gateway_txn_id ON gateway_transactions(gateway_txn_id)`,
		`CREATE TABLE push_payment_requests (
			id BIGINT PRIMARY KEY,
			checkout_request_id TEXT NOT NULL,
			merchant_request_id TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL,
			amount BIGINT NOT NULL,
			account_reference TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			result_code BIGINT,
			result_description TEXT,
			payload TEXT,
			resolved_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_push_payment_requests_checkout_request_id ON push_payment_requests(checkout_request_id)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	client     *fakeClient
	invoiceSvc invoicedomain.Service
	gatewaySvc gatewaydomain.Service
	repo       gatewaydomain.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(20)
	require.NoError(t, err)

	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Cfg:      config.Config{TaxRateBps: 1600},
		GenID:    node,
		Repo:     invoicerepo.Provide(),
		AuditSvc: noopAuditService{},
	})

	repo := gatewayrepo.Provide()
	allocator := allocationservice.NewService(allocationservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		Repo:       repo,
		InvoiceSvc: invoiceSvc,
		AuditSvc:   noopAuditService{},
	})

	client := &fakeClient{}
	gatewaySvc := gatewayservice.NewService(gatewayservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      repo,
		Client:    client,
		Allocator: allocator,
		AuditSvc:  noopAuditService{},
	})

	return &fixture{
		db:         db,
		node:       node,
		client:     client,
		invoiceSvc: invoiceSvc,
		gatewaySvc: gatewaySvc,
		repo:       repo,
	}
}

func (f *fixture) createInvoice(t *testing.T, unitAmount int64) *invoicedomain.Invoice {
	t.Helper()

	invoice, err := f.invoiceSvc.Create(context.Background(), invoicedomain.CreateInvoiceRequest{
		PatientID: f.node.Generate(),
		Items: []invoicedomain.CreateInvoiceItem{
			{Description: "ward stay", Quantity: 1, UnitAmount: unitAmount},
		},
		Actor: "cashier",
	})
	require.NoError(t, err)
	return invoice
}

func TestInitiatePushPersistsOnlyOnAcceptance(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.client.pushResp = gatewaydomain.STKPushResponse{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
	}

	record, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone:     "0712345678",
		Amount:    50000,
		Reference: " inv-000007 ",
		Actor:     "cashier",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", record.CheckoutRequestID)
	assert.Equal(t, gatewaydomain.PushRequestStatusPending, record.Status)
	assert.Equal(t, "INV-000007", record.AccountReference)
	assert.Equal(t, "254712345678", record.Phone)

	require.Len(t, f.client.pushes, 1)
	assert.Equal(t, "254712345678", f.client.pushes[0].Phone)
	assert.Equal(t, "INV-000007", f.client.pushes[0].AccountReference)

	stored, err := f.repo.FindPushRequestByCheckoutID(ctx, f.db, "ws_CO_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestInitiatePushGatewayFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.client.pushErr = gatewaydomain.ErrGatewayUnavailable
	_, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: 50000, Reference: "INV-000001",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayUnavailable)

	f.client.pushErr = nil
	f.client.pushResp = gatewaydomain.STKPushResponse{ResponseCode: "1", Description: "insufficient funds"}
	_, err = f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: 50000, Reference: "INV-000001",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrGatewayRejected)

	var count int64
	require.NoError(t, f.db.Model(&gatewaydomain.PushPaymentRequest{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestInitiatePushValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: 0, Reference: "INV-000001",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidAmount)

	_, err = f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "12345", Amount: 100, Reference: "INV-000001",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidPhone)

	_, err = f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: 100, Reference: "   ",
	})
	assert.ErrorIs(t, err, gatewaydomain.ErrInvalidReference)

	assert.Empty(t, f.client.pushes)
}

func pushCallback(checkoutRequestID, receipt string, amountMajor float64) gatewaydomain.PushResultCallback {
	raw, _ := json.Marshal(map[string]any{"CheckoutRequestID": checkoutRequestID})
	return gatewaydomain.PushResultCallback{
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        0,
		ResultDescription: "The service request is processed successfully.",
		Metadata: []gatewaydomain.CallbackItem{
			{Name: "Amount", Value: amountMajor},
			{Name: "MpesaReceiptNumber", Value: receipt},
			{Name: "PhoneNumber", Value: float64(254712345678)},
		},
		Raw: raw,
	}
}

func TestHandlePushResultSettlesInvoice(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// subtotal 100000, tax 16000, total 116000 minor units = 1160 major
	invoice := f.createInvoice(t, 100000)
	require.Equal(t, "INV-000001", invoice.InvoiceNumber)

	f.client.pushResp = gatewaydomain.STKPushResponse{
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
	}
	_, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone:     "0712345678",
		Amount:    invoice.TotalAmount,
		Reference: invoice.InvoiceNumber,
		Actor:     "cashier",
	})
	require.NoError(t, err)

	err = f.gatewaySvc.HandlePushResult(ctx, pushCallback("ws_CO_1", "RKTQDM7W6S", 1160))
	require.NoError(t, err)

	req, err := f.repo.FindPushRequestByCheckoutID(ctx, f.db, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.PushRequestStatusCompleted, req.Status)
	require.NotNil(t, req.ResolvedAt)

	txn, err := f.repo.FindTransactionByGatewayID(ctx, f.db, "RKTQDM7W6S")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, gatewaydomain.TransactionStatusAllocated, txn.Status)
	assert.Equal(t, int64(116000), txn.Amount)
	require.NotNil(t, txn.InvoiceID)
	assert.Equal(t, invoice.ID, *txn.InvoiceID)

	settled, err := f.invoiceSvc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, settled.Status)
	assert.Equal(t, int64(0), settled.BalanceAmount)
}

func TestHandlePushResultDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	invoice := f.createInvoice(t, 100000)

	f.client.pushResp = gatewaydomain.STKPushResponse{CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}
	_, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: invoice.TotalAmount, Reference: invoice.InvoiceNumber,
	})
	require.NoError(t, err)

	cb := pushCallback("ws_CO_1", "RKTQDM7W6S", 1160)
	require.NoError(t, f.gatewaySvc.HandlePushResult(ctx, cb))
	require.NoError(t, f.gatewaySvc.HandlePushResult(ctx, cb))
	require.NoError(t, f.gatewaySvc.HandlePushResult(ctx, cb))

	var txnCount, paymentCount int64
	require.NoError(t, f.db.Model(&gatewaydomain.GatewayTransaction{}).Count(&txnCount).Error)
	require.NoError(t, f.db.Model(&invoicedomain.Payment{}).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), txnCount)
	assert.Equal(t, int64(1), paymentCount)

	settled, err := f.invoiceSvc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.TotalAmount, settled.PaidAmount)
}

func TestHandlePushResultFailureResolvesRequest(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.client.pushResp = gatewaydomain.STKPushResponse{CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}
	_, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: 50000, Reference: "INV-000001",
	})
	require.NoError(t, err)

	err = f.gatewaySvc.HandlePushResult(ctx, gatewaydomain.PushResultCallback{
		CheckoutRequestID: "ws_CO_1",
		ResultCode:        1032,
		ResultDescription: "Request cancelled by user",
	})
	require.NoError(t, err)

	req, err := f.repo.FindPushRequestByCheckoutID(ctx, f.db, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.PushRequestStatusFailed, req.Status)
	require.NotNil(t, req.ResultCode)
	assert.Equal(t, int64(1032), *req.ResultCode)

	var txnCount int64
	require.NoError(t, f.db.Model(&gatewaydomain.GatewayTransaction{}).Count(&txnCount).Error)
	assert.Equal(t, int64(0), txnCount)
}

func TestHandlePushResultUnknownCheckout(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	err := f.gatewaySvc.HandlePushResult(ctx, pushCallback("ws_CO_unknown", "RCPT", 10))
	assert.ErrorIs(t, err, gatewaydomain.ErrRequestNotFound)
}

func deposit(transID, amount, billRef string) gatewaydomain.DepositNotification {
	return gatewaydomain.DepositNotification{
		TransactionID: transID,
		Amount:        amount,
		BillReference: billRef,
		Phone:         "254712345678",
		PayerName:     "JANE DOE",
	}
}

func TestHandleDepositSettlesInvoice(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	invoice := f.createInvoice(t, 100000)

	err := f.gatewaySvc.HandleDeposit(ctx, deposit("RKTQDM7W6S", "1160.00", " inv-000001 "))
	require.NoError(t, err)

	settled, err := f.invoiceSvc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, settled.Status)

	txn, err := f.repo.FindTransactionByGatewayID(ctx, f.db, "RKTQDM7W6S")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.TransactionStatusAllocated, txn.Status)
	assert.Equal(t, gatewaydomain.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, "JANE DOE", txn.PayerName)
}

func TestHandleDepositDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	invoice := f.createInvoice(t, 100000)

	n := deposit("RKTQDM7W6S", "1160.00", invoice.InvoiceNumber)
	require.NoError(t, f.gatewaySvc.HandleDeposit(ctx, n))
	require.NoError(t, f.gatewaySvc.HandleDeposit(ctx, n))

	var txnCount, paymentCount int64
	require.NoError(t, f.db.Model(&gatewaydomain.GatewayTransaction{}).Count(&txnCount).Error)
	require.NoError(t, f.db.Model(&invoicedomain.Payment{}).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), txnCount)
	assert.Equal(t, int64(1), paymentCount)
}

func TestHandleDepositUnmatchedStaysPending(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	err := f.gatewaySvc.HandleDeposit(ctx, deposit("RK000001", "500.00", "ROOM-4B"))
	require.NoError(t, err)

	txn, err := f.repo.FindTransactionByGatewayID(ctx, f.db, "RK000001")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.TransactionStatusPending, txn.Status)
	assert.Nil(t, txn.InvoiceID)
}

func TestHandleDepositClosedInvoiceStaysPending(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	invoice := f.createInvoice(t, 100000)
	require.NoError(t, f.gatewaySvc.HandleDeposit(ctx, deposit("RK000001", "1160.00", invoice.InvoiceNumber)))

	// invoice is now paid; the second deposit must not reopen it
	require.NoError(t, f.gatewaySvc.HandleDeposit(ctx, deposit("RK000002", "1160.00", invoice.InvoiceNumber)))

	txn, err := f.repo.FindTransactionByGatewayID(ctx, f.db, "RK000002")
	require.NoError(t, err)
	assert.Equal(t, gatewaydomain.TransactionStatusPending, txn.Status)

	settled, err := f.invoiceSvc.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, settled.TotalAmount, settled.PaidAmount)
}

func TestValidateDeposit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	assert.NoError(t, f.gatewaySvc.ValidateDeposit(ctx, deposit("RK1", "500.00", "INV-000001")))
	assert.ErrorIs(t, f.gatewaySvc.ValidateDeposit(ctx, deposit("RK1", "0", "INV-000001")), gatewaydomain.ErrInvalidAmount)
	assert.ErrorIs(t, f.gatewaySvc.ValidateDeposit(ctx, deposit("RK1", "not-money", "INV-000001")), gatewaydomain.ErrInvalidAmount)
	assert.ErrorIs(t, f.gatewaySvc.ValidateDeposit(ctx, deposit("  ", "500.00", "INV-000001")), gatewaydomain.ErrInvalidCallback)
}

func TestQueryPushStatusResolvesTerminalFailure(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	f.client.pushResp = gatewaydomain.STKPushResponse{CheckoutRequestID: "ws_CO_1", ResponseCode: "0"}
	_, err := f.gatewaySvc.InitiatePush(ctx, gatewaydomain.InitiatePushRequest{
		Phone: "0712345678", Amount: 50000, Reference: "INV-000001",
	})
	require.NoError(t, err)

	f.client.queryResp = gatewaydomain.STKQueryResponse{
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
		ResultCode:        "1032",
		ResultDescription: "Request cancelled by user",
	}

	status, err := f.gatewaySvc.QueryPushStatus(ctx, "ws_CO_1")
	require.NoError(t, err)
	require.NotNil(t, status.GatewayState)
	assert.Equal(t, gatewaydomain.PushRequestStatusFailed, status.Request.Status)
}

func TestQueryPushStatusUnknown(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.gatewaySvc.QueryPushStatus(ctx, "ws_CO_missing")
	assert.ErrorIs(t, err, gatewaydomain.ErrRequestNotFound)
}
