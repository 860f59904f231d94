package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/irisdrone/pipewatch/config"
	"github.com/irisdrone/pipewatch/database"
	"github.com/irisdrone/pipewatch/handlers"
	"github.com/irisdrone/pipewatch/internal/detection"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/natsserver"
	"github.com/irisdrone/pipewatch/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	logger := logging.New("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close()

	users := database.NewUserStore(database.DB)
	created, err := users.EnsureUser(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail, "admin")
	if err != nil {
		log.Fatalf("❌ Failed to ensure admin user: %v", err)
	}
	if created {
		logger.Info("👤 Created admin user", "username", cfg.AdminUsername)
	}

	// Start embedded NATS server for registry events
	bus, err := natsserver.New(natsserver.Config{Port: cfg.NATSPort})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer bus.Shutdown()
	logger.Info("📡 NATS server started", "port", bus.Port())

	readings := database.NewReadingStore(database.DB)
	generator := detection.NewGenerator(
		detection.NewSeededRand(cfg.SimulationSeed),
		detection.WithIssueProbability(cfg.IssueProbability),
	)

	monitor, err := services.NewMonitor(ctx, services.MonitorConfig{
		Acquirer:  generator,
		Defects:   database.NewDefectStore(database.DB),
		Snapshots: readings,
		Publisher: services.NewEventPublisher(bus),
		Rand:      seededRand(cfg.SimulationSeed, 1),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start monitor: %v", err)
	}
	defer monitor.Close()

	// Initialize feed hub for WebSocket streaming
	feedHub := services.NewFeedHub(bus.Conn())
	if err := feedHub.Subscribe(); err != nil {
		log.Fatalf("❌ Failed to subscribe feed hub: %v", err)
	}
	go feedHub.Run(ctx)
	logger.Info("📺 Feed hub initialized")

	var chatOpts []services.ChatOption
	if cfg.InfluxEnabled() {
		telemetry := services.NewInfluxTelemetry(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxMeasurement)
		defer telemetry.Close()
		chatOpts = append(chatOpts, services.WithContextSource(telemetry))
		logger.Info("📈 Sensor telemetry enabled", "bucket", cfg.InfluxBucket)
	}
	chat := services.NewChatService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITemperature, chatOpts...)
	if !chat.Configured() {
		logger.Warn("⚠️ OPENAI_API_KEY not set, chat assistant disabled")
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.New(handlers.Deps{
		Users:             users,
		Monitor:           monitor,
		Readings:          readings,
		Samples:           services.NewSampleGenerator(seededRand(cfg.SimulationSeed, 2), nil),
		Chat:              chat,
		Hub:               feedHub,
		Bus:               bus,
		JWTSecret:         []byte(cfg.JWTSecret),
		AccessTokenExpiry: cfg.AccessTokenExpiry,
		ChatRatePerMinute: cfg.ChatRatePerMinute,
	}).Register(router)

	go func() {
		if err := monitor.Run(ctx, cfg.RefreshInterval); err != nil {
			logger.Error("❌ Monitor stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("🚀 Server running", "url", "http://localhost:"+cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️ Server shutdown incomplete", "error", err)
	}
}

// seededRand derives an independent source per consumer. A zero seed stays
// time based.
func seededRand(seed, offset uint64) detection.RandSource {
	if seed == 0 {
		return detection.NewSeededRand(0)
	}
	return detection.NewSeededRand(seed + offset)
}
