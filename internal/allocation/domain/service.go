// Package domain defines the allocation engine: matching ingested gateway
// transactions to open invoices and settling them.
package domain

import (
	"context"
	"errors"

	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

var (
	ErrAlreadyAllocated = errors.New("transaction_already_allocated")
	ErrInvoiceNotOpen   = errors.New("invoice_not_open")
)

type ManualAllocateRequest struct {
	TransactionID snowflake.ID
	InvoiceID     snowflake.ID
	Actor         string
}

type ListUnallocatedRequest struct {
	pagination.Pagination
}

type ListUnallocatedResponse struct {
	pagination.PageInfo
	Transactions []gatewaydomain.GatewayTransaction `json:"transactions"`
}

// Service matches money that has already moved to the invoices it settles.
//
// Allocate is best effort: an unmatched transaction is left pending for the
// manual queue, never failed. ManualAllocate is the operator path for the
// queue and is the only way to attach a transaction to an invoice whose
// number the payer did not reference.
type Service interface {
	Allocate(ctx context.Context, txn *gatewaydomain.GatewayTransaction) error
	ManualAllocate(ctx context.Context, req ManualAllocateRequest) (*gatewaydomain.GatewayTransaction, error)
	ListUnallocated(ctx context.Context, req ListUnallocatedRequest) (ListUnallocatedResponse, error)
}
