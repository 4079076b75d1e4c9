package main

import (
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/logger"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/migration"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/observability/metrics"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/server"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		metrics.Module,

		// functional domains
		audit.Module,
		invoice.Module,
		gateway.Module,
		allocation.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
