package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sitepulse/api/analytics"
	"sitepulse/api/chat"
	"sitepulse/api/config"
	"sitepulse/api/database"
	"sitepulse/api/geo"
	"sitepulse/api/handlers"
	"sitepulse/api/live"
	"sitepulse/api/middleware"
	"sitepulse/api/script"
	"sitepulse/api/store"
	"sitepulse/api/stream"
	"sitepulse/api/tracker"
	"sitepulse/api/utils"
)

// Public routes are embedded on third-party sites and accept any origin.
var publicPrefixes = []string{"/api/v1/tracking/track", "/api/v1/tracking/script"}

type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     store.Store
	publisher stream.Publisher
	hub       *live.Hub
	redis     *database.RedisClient
	geo       geo.Resolver
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("API server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	stopHub()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting.")
}

// newApp opens the store lazily and connects the optional Kafka, Redis and
// GeoIP backends. Optional backends that fail to connect are logged and skipped.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	s, err := store.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := stream.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	if err != nil {
		logger.Warn("Kafka publisher disabled", zap.Error(err))
		publisher = stream.NoopPublisher{}
	}

	var rc *database.RedisClient
	if cfg.RedisURL != "" {
		rc, err = database.NewRedis(context.Background(), cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, live counter is local to this instance", zap.Error(err))
			rc = nil
		}
	}

	resolver, err := geo.Open(cfg.GeoIPPath, logger)
	if err != nil {
		logger.Warn("GeoIP lookups disabled", zap.Error(err))
		resolver = geo.NopResolver{}
	}

	return &app{
		cfg:       cfg,
		log:       logger,
		store:     s,
		publisher: publisher,
		hub:       live.NewHub(rc, logger),
		redis:     rc,
		geo:       resolver,
	}, nil
}

func (a *app) router() *gin.Engine {
	provider, err := chat.NewProvider(a.cfg.LLM)
	if err != nil {
		a.log.Warn("LLM provider disabled", zap.Error(err))
		provider = nil
	}

	analyticsSvc := analytics.NewService(a.store, a.log)
	trackingHandlers := handlers.NewTrackingHandlers(
		tracker.New(a.store, a.publisher, a.log).WithGeo(a.geo),
		analyticsSvc,
		script.NewRenderer(a.cfg.PublicURL),
		a.log,
	)
	chatHandlers := handlers.NewChatHandlers(chat.NewService(provider, analyticsSvc, a.store, a.log), a.log)
	healthHandlers := handlers.NewHealthHandlers(a.store, a.cfg.Store.Driver, a.hub, a.log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(a.log))
	r.Use(middleware.CORSMiddleware(a.cfg.Origins, publicPrefixes...))

	r.GET("/", healthHandlers.Root)
	r.GET("/ws/counter", gin.WrapF(a.hub.ServeWS))

	api := r.Group("/api/v1")
	{
		// Public endpoints (embedded on tracked sites)
		api.POST("/tracking/track", trackingHandlers.Track)
		api.GET("/tracking/script", trackingHandlers.Script)
		api.GET("/test", healthHandlers.Test)

		// Dashboard endpoints, guarded when a secret or API key hash is configured
		dashboard := api.Group("/")
		dashboard.Use(middleware.DashboardGuard(a.cfg.Dashboard, a.log))
		{
			dashboard.GET("/tracking/domain/:domain", trackingHandlers.DomainAnalytics)
			dashboard.GET("/tracking/domains", trackingHandlers.Domains)
			dashboard.POST("/send", chatHandlers.Send)
			dashboard.GET("/chat/history", chatHandlers.History)
		}
	}

	return r
}

func (a *app) close() {
	a.publisher.Close()
	if err := a.geo.Close(); err != nil {
		a.log.Warn("Failed to close GeoIP database", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("Failed to close store", zap.Error(err))
	}
}
