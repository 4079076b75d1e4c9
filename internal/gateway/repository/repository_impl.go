package repository

import (
	"context"
	"errors"
	"time"

	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() gatewaydomain.Repository {
	return &repo{}
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *gatewaydomain.GatewayTransaction) (bool, error) {
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway_txn_id"}},
		DoNothing: true,
	}).Create(txn)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindTransactionByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*gatewaydomain.GatewayTransaction, error) {
	var item gatewaydomain.GatewayTransaction
	err := db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) FindTransactionByGatewayID(ctx context.Context, db *gorm.DB, gatewayTxnID string) (*gatewaydomain.GatewayTransaction, error) {
	var item gatewaydomain.GatewayTransaction
	err := db.WithContext(ctx).Where("gateway_txn_id = ?", gatewayTxnID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) MarkTransactionAllocated(ctx context.Context, db *gorm.DB, id snowflake.ID, invoiceID snowflake.ID) error {
	now := time.Now()
	return db.WithContext(ctx).Exec(
		`UPDATE gateway_transactions
		 SET status = ?, invoice_id = ?, allocated_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		gatewaydomain.TransactionStatusAllocated,
		invoiceID,
		now,
		now,
		id,
		gatewaydomain.TransactionStatusPending,
	).Error
}

func (r *repo) ListUnallocated(ctx context.Context, db *gorm.DB, beforeID int64, limit int) ([]gatewaydomain.GatewayTransaction, error) {
	q := db.WithContext(ctx).
		Model(&gatewaydomain.GatewayTransaction{}).
		Where("status = ?", gatewaydomain.TransactionStatusPending)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var items []gatewaydomain.GatewayTransaction
	if err := q.Order("id DESC").Limit(limit + 1).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertPushRequest(ctx context.Context, db *gorm.DB, req *gatewaydomain.PushPaymentRequest) error {
	return db.WithContext(ctx).Create(req).Error
}

func (r *repo) FindPushRequestByCheckoutID(ctx context.Context, db *gorm.DB, checkoutRequestID string) (*gatewaydomain.PushPaymentRequest, error) {
	var item gatewaydomain.PushPaymentRequest
	err := db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) ResolvePushRequest(ctx context.Context, db *gorm.DB, id snowflake.ID, status gatewaydomain.PushRequestStatus, resultCode int64, resultDescription string, payload []byte) (bool, error) {
	now := time.Now()
	// the pending guard makes resolution first-writer-wins under
	// concurrent callback deliveries
	res := db.WithContext(ctx).Exec(
		`UPDATE push_payment_requests
		 SET status = ?, result_code = ?, result_description = ?, payload = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status,
		resultCode,
		resultDescription,
		payload,
		now,
		now,
		id,
		gatewaydomain.PushRequestStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
