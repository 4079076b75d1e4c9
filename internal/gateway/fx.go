package gateway

import (
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/daraja"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/repository"
	gatewayservice "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/service"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/token"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.service",
	fx.Provide(
		fx.Annotate(daraja.NewAuth, fx.As(new(gatewaydomain.Authenticator))),
		fx.Annotate(token.NewCache, fx.As(new(gatewaydomain.TokenSource))),
		fx.Annotate(daraja.NewClient, fx.As(new(gatewaydomain.Client))),
	),
	fx.Provide(repository.Provide),
	fx.Provide(gatewayservice.NewService),
)
