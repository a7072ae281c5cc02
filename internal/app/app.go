package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/catalog-engine/internal/cache"
	"github.com/xenking/catalog-engine/internal/catalog"
	"github.com/xenking/catalog-engine/internal/domain/category"
	"github.com/xenking/catalog-engine/internal/domain/image"
	"github.com/xenking/catalog-engine/internal/domain/stock"
	"github.com/xenking/catalog-engine/internal/repository"
	"github.com/xenking/catalog-engine/pkg/health"
	"github.com/xenking/catalog-engine/pkg/httpmiddleware"
)

// MountFunc lets an embedding deployment attach its own transport for the
// catalog service onto the operational mux. This binary itself exposes only
// the health endpoints.
type MountFunc func(mux *http.ServeMux, svc *catalog.Service)

// Run creates all dependencies, starts the operational HTTP server, and
// handles graceful shutdown. It is the single wiring point for the service.
// mount may be nil.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config, mount MountFunc) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health checks.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(10*time.Second))

	// Cache invalidation is optional; without Redis the service runs with a
	// no-op invalidator.
	var invalidator catalog.Cache
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		inv := cache.NewInvalidator(lg.Named("cache"), rdb)
		healthSvc.AddReadinessCheck("redis", 5*time.Second, inv.Ping)
		invalidator = inv
	}

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	variantRepo := repository.NewVariantRepository(pool)
	imageRepo := repository.NewImageRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)

	// Domain services.
	ledger := stock.NewLedger(variantRepo)
	images := image.NewManager(imageRepo, productRepo)
	categories := category.NewGuard(categoryRepo)

	svc := catalog.NewService(lg.Named("catalog"), ledger, images, categories, productRepo, variantRepo, invalidator)

	healthSvc.SetReady(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	if mount != nil {
		mount(mux, svc)
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: drop readiness, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
