package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"folio/internal/audit"
	"folio/internal/auth"
	"folio/internal/cache"
	"folio/internal/client/alphavantage"
	"folio/internal/config"
	cronrunner "folio/internal/cron"
	"folio/internal/db"
	"folio/internal/events"
	"folio/internal/handler"
	"folio/internal/live"
	"folio/internal/logger"
	"folio/internal/repository"
	gormrepository "folio/internal/repository/gorm"
	"folio/internal/repository/memory"
	"folio/internal/service"

	_ "folio/docs"
)

func main() {
	cfgPath := os.Getenv("FOLIO_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("FOLIO_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store repository.Repository
	var dbConn *db.DB
	if strings.EqualFold(cfg.DB.Driver, "memory") {
		logger.Warn("using in-memory store; data is lost on exit")
		store = memory.New()
	} else {
		dbConn, err = db.Open(cfg.DB)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(dbConn.Gorm)
	}

	quoteCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	if closer, ok := quoteCache.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	auditClient := initAuditClient(cfg.Audit, logger)

	quoteHTTP := &http.Client{Timeout: cfg.Quote.Timeout}
	quoteClient := alphavantage.NewClient(quoteHTTP, cfg.Quote.BaseURL, cfg.Quote.APIKey, cfg.Quote.UserAgent)
	if strings.TrimSpace(cfg.Quote.APIKey) == "" {
		logger.Warn("quote.api_key is empty; provider requests will be rejected")
	}
	oracle := &service.PriceOracle{
		Repo:     store,
		Provider: quoteClient,
		Cache:    quoteCache,
		CacheTTL: cfg.Cache.TTL,
		MaxAge:   cfg.Quote.MaxAge,
		Logger:   logger,
	}

	txEvents := events.NewKafkaPublisher(cfg.Events, logger)
	if txEvents != nil {
		logger.Info("transaction stream enabled", zap.String("topic", cfg.Events.Topic))
		defer txEvents.Close()
	}

	broadcaster := live.New(store, logger, cfg.Live.SendBuffer)
	defer broadcaster.Close()

	ledger := &service.Ledger{
		Repo:                store,
		Prices:              oracle,
		Publisher:           broadcaster,
		LargeTradeThreshold: decimal.NewFromFloat(cfg.Live.LargeTradeThreshold),
		Logger:              logger,
	}
	if txEvents != nil {
		ledger.Events = txEvents
	}
	rebalancer := &service.RebalanceService{Repo: store}
	snapshots := &service.SnapshotService{Repo: store, Logger: logger}
	if auditClient != nil {
		snapshots.Auditor = auditClient
	}

	jwt := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL, Issuer: cfg.Auth.Issuer}
	if strings.EqualFold(cfg.App.Env, "prod") && cfg.Auth.JWTSecret == "dev-secret-change-me" {
		logger.Fatal("auth.jwt_secret must be set in prod")
	}
	authSvc := &auth.Service{Repo: store, JWT: jwt, Logger: logger}
	requireAuth := auth.Middleware(jwt)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORS())
	engine.Use(handler.RequestLogger(logger))
	engine.Use(audit.WriteMiddleware(auditClient, logger))

	healthHandler := &handler.HealthHandler{Ping: func(ctx context.Context) error { return db.Ping(ctx, dbConn) }}
	healthHandler.Register(engine)
	authHandler := &handler.AuthHandler{Service: authSvc}
	authHandler.Register(engine)
	portfolioHandler := &handler.PortfolioHandler{Repo: store, Auth: requireAuth}
	portfolioHandler.Register(engine)
	tradeHandler := &handler.TradeHandler{Ledger: ledger, Rebalance: rebalancer, Auth: requireAuth}
	tradeHandler.Register(engine)
	marketHandler := &handler.MarketHandler{Quotes: oracle, Repo: store, Auth: requireAuth}
	marketHandler.Register(engine)
	notificationHandler := &handler.NotificationHandler{Repo: store, Auth: requireAuth}
	notificationHandler.Register(engine)
	profileHandler := &handler.ProfileHandler{Repo: store, Auth: requireAuth}
	profileHandler.Register(engine)
	liveHandler := &handler.LiveHandler{
		Broadcaster:  broadcaster,
		JWT:          jwt,
		WriteTimeout: cfg.Live.WriteTimeout,
		PingInterval: cfg.Live.PingInterval,
		Logger:       logger,
	}
	liveHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)

	priceSync := &service.PriceSyncService{
		Oracle:    oracle,
		Publisher: broadcaster,
		Scheduler: cronRunner,
		Symbols:   cfg.PriceSync.Symbols,
		Interval:  cfg.PriceSync.Interval,
		Delay:     cfg.PriceSync.Delay,
		Logger:    logger,
	}
	if cfg.PriceSync.Enabled {
		if err := priceSync.Start(ctx); err != nil {
			logger.Fatal("price sync start failed", zap.Error(err))
		}
		defer priceSync.Stop()
	}

	if cfg.Snapshot.Enabled {
		_, err = cronRunner.Add(cfg.Snapshot.Schedule, snapshots.Run)
		if err != nil {
			logger.Fatal("cron add snapshot failed", zap.Error(err))
		}
	}

	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	// close live sessions first so their write loops return before Shutdown waits
	broadcaster.Close()
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func initAuditClient(cfg config.AuditConfig, logger *zap.Logger) *audit.Client {
	c := audit.New(cfg)
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Login(ctx); err != nil {
		logger.Warn("audit login failed (audit logs disabled)", zap.Error(err))
		return nil
	}
	logger.Info("audit login ok")
	return c
}
