package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/auth"
	"github.com/ovaphlow/pictoria/service-api/internal/cache"
	"github.com/ovaphlow/pictoria/service-api/internal/compositor"
	"github.com/ovaphlow/pictoria/service-api/internal/config"
	"github.com/ovaphlow/pictoria/service-api/internal/generation"
	imagerepo "github.com/ovaphlow/pictoria/service-api/internal/generation/repo"
	"github.com/ovaphlow/pictoria/service-api/internal/hanzi"
	hanzirepo "github.com/ovaphlow/pictoria/service-api/internal/hanzi/repo"
	"github.com/ovaphlow/pictoria/service-api/internal/radical"
	radicalrepo "github.com/ovaphlow/pictoria/service-api/internal/radical/repo"
	"github.com/ovaphlow/pictoria/service-api/internal/router"
	"github.com/ovaphlow/pictoria/service-api/internal/storage"
	"github.com/ovaphlow/pictoria/service-api/pkg/database"
	"github.com/ovaphlow/pictoria/service-api/pkg/utilities"
)

func main() {
	cfg := config.Load()

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting pictoria service-api")

	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("config: %v", err)
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := database.Connect(cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()
	db := sqlx.NewDb(sqlDB, cfg.Database.Driver)

	hanziRepo := hanzirepo.NewHanziRepo(db)
	radicalRepo := radicalrepo.NewRadicalRepo(db)
	imageRepo := imagerepo.NewImageRepo(db)
	for name, ensure := range map[string]func(context.Context) error{
		"hanzi":            hanziRepo.EnsureTable,
		"radicals":         radicalRepo.EnsureTable,
		"generated_images": imageRepo.EnsureTable,
	} {
		if err := ensure(ctx); err != nil {
			sugar.Fatalf("ensure table %s: %v", name, err)
		}
	}

	pages, health := pageCache(cfg.Redis, sugar)
	if closer, ok := pages.(*cache.RedisCache); ok {
		defer closer.Close()
	}

	comp, err := newCompositor(cfg.Compositor)
	if err != nil {
		sugar.Fatalf("compositor: %v", err)
	}
	if !comp.Supports("人") {
		sugar.Errorw("character font has no Han glyphs; compositor renders and hanzi-seed generation will return 503",
			"COMPOSITOR_CJK_FONT", cfg.Compositor.CJKFontPath)
	}

	var store storage.ObjectStore
	s3Store, err := storage.NewS3Store(ctx, storage.Config(cfg.S3))
	switch {
	case err == nil:
		store = s3Store
		sugar.Infow("object store ready", "bucket", cfg.S3.Bucket)
	case errors.Is(err, storage.ErrNotConfigured):
		sugar.Info("object store not configured; hanzi-seed generation disabled")
	default:
		sugar.Warnw("object store init failed; hanzi-seed generation disabled", "err", err)
	}

	provider := generation.NewReplicateProvider(cfg.Inference.BaseURL, cfg.Inference.Token, cfg.Inference.Timeout)
	if cfg.Inference.Token == "" {
		sugar.Warn("INFERENCE_API_TOKEN is empty; image generation will fail")
	}

	handler := router.RegisterRoutes(sugar, router.Deps{
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience, cfg.Auth.JWTIssuer),
		Handlers: []router.Registrar{
			hanzi.NewHandler(hanzi.NewService(hanziRepo, pages, sugar), sugar),
			radical.NewHandler(radical.NewService(radicalRepo, pages, sugar), sugar),
			compositor.NewHandler(comp, sugar),
			generation.NewHandler(generation.NewService(imageRepo, provider, comp, store, sugar), sugar),
		},
		Health: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return err
			}
			return health(ctx)
		},
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sugar.Infow("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}

// pageCache prefers Redis and falls back to an in-process cache.
func pageCache(cfg config.RedisConfig, sugar *zap.SugaredLogger) (cache.PageCache, func(context.Context) error) {
	noop := func(context.Context) error { return nil }
	if cfg.Addr == "" {
		sugar.Info("REDIS_ADDR not set; using in-process page cache")
		return cache.NewMemoryCache(cfg.MemoryEntries, cfg.PageTTL), noop
	}
	rc, err := cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB, cfg.PageTTL)
	if err != nil {
		sugar.Warnw("redis unavailable; using in-process page cache", "addr", cfg.Addr, "err", err)
		return cache.NewMemoryCache(cfg.MemoryEntries, cfg.PageTTL), noop
	}
	sugar.Infow("redis page cache ready", "addr", cfg.Addr)
	return rc, rc.Health
}

func newCompositor(cfg config.CompositorConfig) (*compositor.Compositor, error) {
	charFont, err := compositor.LoadFont(cfg.CJKFontPath)
	if err != nil {
		return nil, err
	}
	captionFont, err := compositor.LoadFont(cfg.CaptionFontPath)
	if err != nil {
		return nil, err
	}
	return compositor.New(compositor.Options{CharFont: charFont, CaptionFont: captionFont})
}
