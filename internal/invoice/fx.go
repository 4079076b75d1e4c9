package invoice

import (
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/repository"
	invoiceservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(invoiceservice.NewService),
)
