package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/admin"
	"github.com/MikeMC777/ecom-ledger/internal/config"
	_ "github.com/MikeMC777/ecom-ledger/internal/docs"
	"github.com/MikeMC777/ecom-ledger/internal/events"
	"github.com/MikeMC777/ecom-ledger/internal/httpx"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
	ord "github.com/MikeMC777/ecom-ledger/internal/order"
	"github.com/MikeMC777/ecom-ledger/internal/payment"
	"github.com/MikeMC777/ecom-ledger/internal/telemetry"
	"github.com/MikeMC777/ecom-ledger/internal/user"
)

func main() {
	cfg := config.Load()
	log := logging.MustNew("order-service", cfg.Env)
	defer func() { _ = log.Sync() }()
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "order-service")
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres_connect_failed", zap.Error(err))
	}
	defer pool.Close()

	pub, err := events.New(events.Options{
		Backend:      cfg.EventsBackend,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
	})
	if err != nil {
		log.Fatal("events_init_failed", zap.Error(err))
	}
	defer func() { _ = pub.Close() }()

	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		log.Warn("razorpay_not_configured")
	}
	gw := payment.NewRazorpay(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.GatewayTimeout)

	identity, err := user.Dial(cfg.UserSvcAddr)
	if err != nil {
		log.Fatal("user_service_dial_failed", zap.Error(err))
	}
	defer func() { _ = identity.Close() }()

	svc := ord.NewService(ord.NewPGRepo(pool), gw, pub, log, ord.Options{
		Currency:         cfg.PaymentCurrency,
		GatewayTimeout:   cfg.GatewayTimeout,
		CancelWindowDays: cfg.CancelWindowDays,
	})
	adm := admin.NewService(admin.NewPGRepo(pool), log, cfg.SnapshotRetentionDays)

	go ord.NewReconciler(svc, cfg.RestockInterval, cfg.RestockBatch, log).Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.Metrics())
	r.GET("/healthz", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	registerRoutes(r, svc, adm, identity)

	srv := &http.Server{Addr: cfg.OrderSvcAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("listening", zap.String("addr", cfg.OrderSvcAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http_server_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http_shutdown_failed", zap.Error(err))
	}
}
