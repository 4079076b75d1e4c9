package repository

import (
	"context"
	"strings"

	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (id, actor, action, target_type, target_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req auditdomain.ListAuditLogRequest, beforeID int64) ([]auditdomain.AuditLog, error) {
	q := db.WithContext(ctx).Table("audit_logs")

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	if action := strings.TrimSpace(req.Action); action != "" {
		q = q.Where("action = ?", action)
	}
	if targetType := strings.TrimSpace(req.TargetType); targetType != "" {
		q = q.Where("target_type = ?", targetType)
	}
	if targetID := strings.TrimSpace(req.TargetID); targetID != "" {
		q = q.Where("target_id = ?", targetID)
	}
	if req.StartAt != nil {
		q = q.Where("created_at >= ?", *req.StartAt)
	}
	if req.EndAt != nil {
		q = q.Where("created_at <= ?", *req.EndAt)
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	var items []auditdomain.AuditLog
	if err := q.Order("id DESC").Limit(limit + 1).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
