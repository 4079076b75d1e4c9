package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	obsmetrics "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/observability/metrics"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       auditdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       auditdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("audit.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Record writes an audit entry. Write failures are logged and counted but
// never propagated: a lost audit line must not fail a financial operation.
func (s *Service) Record(ctx context.Context, actor string, action string, targetType string, targetID string, metadata map[string]any) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "system"
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := datatypes.JSONMap{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		Metadata:   payload,
		CreatedAt:  time.Now().UTC(),
	}
	if targetID = strings.TrimSpace(targetID); targetID != "" {
		entry.TargetID = &targetID
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.Error(err),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.AuditWriteFailures.Inc()
		}
	}
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var beforeID int64
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		beforeID, err = strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 25
	}

	items, err := s.repo.List(ctx, s.db, req, beforeID)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	resp := auditdomain.ListAuditLogResponse{AuditLogs: items}
	if len(items) > limit {
		resp.AuditLogs = items[:limit]
		resp.HasMore = true
		last := resp.AuditLogs[len(resp.AuditLogs)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID.String()})
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}
