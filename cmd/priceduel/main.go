package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"priceduel/internal/config"
	cronrunner "priceduel/internal/cron"
	"priceduel/internal/db"
	"priceduel/internal/feed"
	"priceduel/internal/game"
	"priceduel/internal/handler"
	"priceduel/internal/logger"
	"priceduel/internal/notify"
	gormrepository "priceduel/internal/repository/gorm"
	"priceduel/internal/round"
	"priceduel/internal/sim"
	wshub "priceduel/internal/ws"
)

func main() {
	cfgPath := os.Getenv("DUEL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("DUEL_ENV_ONLY"); envOnlyRaw != "" {
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

	dbConn, err := db.Open(cfg.DB)
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

	store := gormrepository.New(dbConn.Gorm)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	priceFeed, runFeed := buildFeed(cfg.Feed, logger)
	go func() {
		if err := runFeed(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("price feed stopped", zap.Error(err))
		}
	}()

	events := notify.NewHub(logger)
	sink := notify.Multi(events, notify.LogSink{Logger: logger})

	var settleRand *rand.Rand
	if cfg.Game.LossRefundChance > 0 {
		settleRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	session := game.NewSession(game.Options{
		Asset: cfg.Game.Asset,
		Limits: round.Limits{
			MinBet: decimal.NewFromFloat(cfg.Game.MinBet),
			MaxBet: decimal.NewFromFloat(cfg.Game.MaxBet),
		},
		FeeRate:         decimal.NewFromFloat(cfg.Game.FeeRate),
		Liquidity:       decimal.NewFromFloat(cfg.Game.Liquidity),
		AcceptanceFloor: cfg.Game.AcceptanceFloor,
		RoundDuration:   cfg.Game.RoundDuration,
		LockWindow:      cfg.Game.LockWindow,
		PriceFreshness:  cfg.Game.PriceFreshness,
		StartingBalance: decimal.NewFromFloat(cfg.Game.StartingBalance),
		SettlePolicy: round.SettlePolicy{
			LossRefundChance: cfg.Game.LossRefundChance,
			LossRefundRatio:  decimal.NewFromFloat(cfg.Game.LossRefundRatio),
			Rand:             settleRand,
		},
		Feed:   priceFeed,
		Repo:   store,
		Sink:   sink,
		Logger: logger,
	})
	go func() {
		if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("game session stopped", zap.Error(err))
		}
	}()

	if cfg.Sim.Enabled {
		traders := sim.New(sim.Options{
			Traders:         cfg.Sim.Traders,
			MinDelay:        cfg.Sim.MinDelay,
			MaxDelay:        cfg.Sim.MaxDelay,
			Seed:            cfg.Sim.Seed,
			StartingBalance: decimal.NewFromFloat(cfg.Game.StartingBalance),
			Session:         session,
			Repo:            store,
			Logger:          logger,
		})
		go func() {
			if err := traders.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("simulated traders stopped", zap.Error(err))
			}
		}()
	}

	pushHub := wshub.NewHub(events, logger)
	go func() {
		if err := pushHub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("ws hub stopped", zap.Error(err))
		}
	}()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	betHandler := &handler.BetHandler{Session: session}
	betHandler.Register(engine)
	roundHandler := &handler.RoundHandler{Session: session}
	roundHandler.Register(engine)
	tradeHandler := &handler.TradeHandler{Repo: store}
	tradeHandler.Register(engine)
	accountHandler := &handler.AccountHandler{
		Repo:            store,
		StartingBalance: decimal.NewFromFloat(cfg.Game.StartingBalance),
	}
	accountHandler.Register(engine)
	historyHandler := &handler.RoundHistoryHandler{Repo: store}
	historyHandler.Register(engine)
	engine.GET("/ws", gin.WrapF(pushHub.HandleWS))

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Retention.Enabled {
		retention := &cronrunner.Retention{
			Repo:     store,
			TradeTTL: cfg.Retention.TradeTTL,
			RoundTTL: cfg.Retention.RoundTTL,
			Logger:   logger,
		}
		if _, err := cronRunner.Add(cfg.Retention.Schedule, retention.Run); err != nil {
			logger.Warn("cron register retention failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildFeed(cfg config.FeedConfig, logger *zap.Logger) (feed.Feed, func(context.Context) error) {
	if strings.EqualFold(cfg.Mode, "synthetic") {
		f := feed.NewSyntheticFeed(feed.SyntheticOptions{
			StartPrice: cfg.Synthetic.StartPrice,
			StepPct:    cfg.Synthetic.StepPct,
			Interval:   cfg.Synthetic.Interval,
			Seed:       cfg.Synthetic.Seed,
		})
		return f, f.Run
	}
	f := feed.NewBinanceFeed(feed.BinanceOptions{
		URL:    cfg.WSURL,
		Symbol: cfg.Symbol,
		Logger: logger,
	})
	return f, f.Run
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
