// Package server exposes the ledger engine's HTTP surface: invoice and
// payment operations for hospital staff, and the callback endpoints the
// mobile-money gateway delivers to.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	allocationdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/allocation/domain"
	auditdomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/audit/domain"
	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/config"
	gatewaydomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/gateway/domain"
	invoicedomain "github.com/Hamoudy10/Hospital-Management-System-sub000/internal/invoice/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RequestIDMiddleware propagates the caller's request id, minting one when
// absent, so gateway callback deliveries can be traced across retries.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

type Params struct {
	fx.In

	Engine        *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	InvoiceSvc    invoicedomain.Service
	GatewaySvc    gatewaydomain.Service
	AllocationSvc allocationdomain.Service
	AuditSvc      auditdomain.Service
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	invoiceSvc    invoicedomain.Service
	gatewaySvc    gatewaydomain.Service
	allocationSvc allocationdomain.Service
	auditSvc      auditdomain.Service
}

func NewServer(p Params) *Server {
	s := &Server{
		engine:        p.Engine,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		invoiceSvc:    p.InvoiceSvc,
		gatewaySvc:    p.GatewaySvc,
		allocationSvc: p.AllocationSvc,
		auditSvc:      p.AuditSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api/v1")

	invoices := api.Group("/invoices")
	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoice)
	invoices.POST("/:id/cancel", s.CancelInvoice)
	invoices.GET("/:id/payments", s.ListInvoicePayments)
	invoices.POST("/:id/payments", s.RecordPayment)

	payments := api.Group("/payments")
	payments.POST("/push", s.InitiatePush)
	payments.GET("/push/:checkout_request_id", s.QueryPushStatus)

	gateway := api.Group("/gateway")
	gateway.POST("/push-callback", s.PushCallback)
	gateway.POST("/deposit-validation", s.DepositValidation)
	gateway.POST("/deposit-confirmation", s.DepositConfirmation)

	allocations := api.Group("/allocations")
	allocations.GET("/unallocated", s.ListUnallocated)
	allocations.POST("/manual", s.ManualAllocate)

	api.GET("/audit-logs", s.ListAuditLogs)
}

// actor identifies the staff member behind a request for the audit trail.
func actor(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("X-Actor")); v != "" {
		return v
	}
	return "system"
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)
