package audit

import (
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/repository"
	auditservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(auditservice.NewService),
)
