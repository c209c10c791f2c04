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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/config"
	_ "github.com/MikeMC777/ecom-ledger/internal/docs"
	"github.com/MikeMC777/ecom-ledger/internal/httpx"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
	prod "github.com/MikeMC777/ecom-ledger/internal/product"
	"github.com/MikeMC777/ecom-ledger/internal/user"
)

func main() {
	cfg := config.Load()
	log := logging.MustNew("product-service", cfg.Env)
	defer func() { _ = log.Sync() }()
	cfg.Log(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres_connect_failed", zap.Error(err))
	}
	defer pool.Close()

	var repo prod.Repository = prod.NewPGRepo(pool)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		repo = prod.NewCached(repo, rdb, cfg.ProductCacheTTL, log)
	}

	identity, err := user.Dial(cfg.UserSvcAddr)
	if err != nil {
		log.Fatal("user_service_dial_failed", zap.Error(err))
	}
	defer func() { _ = identity.Close() }()

	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(log), httpx.Metrics())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/products", listOnlyHandler(repo))
	r.GET("/products/search", searchHandler(repo))
	r.GET("/products/:id", getProductHandler(repo))

	admin := r.Group("/products", httpx.Identity(identity), httpx.RequireAdmin())
	admin.POST("", createProductHandler(repo))
	admin.PUT("/:id", updateProductHandler(repo))
	admin.DELETE("/:id", deleteProductHandler(repo))
	admin.GET("/trash", trashHandler(repo))
	admin.POST("/:id/restore", restoreHandler(repo))
	admin.DELETE("/:id/permanent", permanentDeleteHandler(repo))

	srv := &http.Server{Addr: cfg.ProductSvcAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("listening", zap.String("addr", cfg.ProductSvcAddr))
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
