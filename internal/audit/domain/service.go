package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

// Service emits audit events for every state-changing ledger operation.
// Record is best-effort: an audit failure must never fail the financial
// operation that triggered it, so it carries no error return. Failures are
// surfaced through logging and the audit failure counter instead.
type Service interface {
	Record(ctx context.Context, actor string, action string, targetType string, targetID string, metadata map[string]any)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, req ListAuditLogRequest, beforeID int64) ([]AuditLog, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
