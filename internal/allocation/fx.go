package allocation

import (
	allocationservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("allocation.service",
	fx.Provide(allocationservice.NewService),
)
