package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"crash-casino-backend/internal/config"
	"crash-casino-backend/internal/handlers"
	"crash-casino-backend/internal/middleware"
	"crash-casino-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger.SetLevel(log.DebugLevel)
	}

	var (
		store    services.Store
		counters services.CounterStore
	)
	if cfg.RedisURL != "" {
		redisStore, err := services.NewRedisStore(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer redisStore.Close()
		store = redisStore
		counters = services.NewRedisCounters(redisStore.Client())
		logger.Info("Using redis store", "addr", cfg.RedisURL)
	} else {
		store = services.NewMemoryStore(cfg.StartingBalance)
		counters = services.NewMemoryCounters(quartz.NewReal())
		logger.Warn("REDIS_URL not set, using in-memory store")
	}

	seeds, err := services.NewSeedManager(cfg.HouseEdge, cfg.MaxCrash)
	if err != nil {
		logger.Fatal("Failed to initialize seed manager", "error", err)
	}

	ledger := services.NewLedger(store, logger, cfg.MinBet, cfg.MaxBet)
	gate := services.NewRateGate(counters, logger)
	jwtService := services.NewJWTService(cfg)

	wsHandler := handlers.NewWebSocketHandler(logger)
	engine := services.NewRoundEngine(ledger, seeds, wsHandler, quartz.NewReal(), logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	authHandler := handlers.NewAuthHandler(jwtService)
	gameHandler := handlers.NewGameHandler(engine, ledger, cfg)

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/guest",
		middleware.RateGate(gate, services.CategoryRegistration),
		authHandler.GuestSession)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateGate(gate, services.CategoryAPIGeneral))
	{
		protected.POST("/auth/refresh",
			middleware.RateGate(gate, services.CategoryAuth),
			authHandler.Refresh)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games")
		{
			games.POST("/bet",
				middleware.RateGate(gate, services.CategoryBetPlacement),
				gameHandler.PlaceBet)
			games.POST("/cashout",
				middleware.RateGate(gate, services.CategoryCashout),
				gameHandler.Cashout)
			games.GET("/balance", gameHandler.GetBalance)
			games.GET("/round", gameHandler.GetCurrentRound)
			games.GET("/history", gameHandler.GetHistory)
			games.POST("/verify", gameHandler.VerifyRound)
		}
	}

	if cfg.AdminToken != "" {
		admin := router.Group("/admin")
		admin.Use(func(c *gin.Context) {
			if c.GetHeader("X-Admin-Token") != cfg.AdminToken {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Next()
		})
		admin.POST("/adjust", gameHandler.AdjustBalance)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}
