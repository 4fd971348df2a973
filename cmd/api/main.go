package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/analytics"
	"github.com/yourusername/proptrack-api/internal/authstate"
	"github.com/yourusername/proptrack-api/internal/config"
	"github.com/yourusername/proptrack-api/internal/gating"
	"github.com/yourusername/proptrack-api/internal/handler"
	"github.com/yourusername/proptrack-api/internal/identity"
	"github.com/yourusername/proptrack-api/internal/merge"
	"github.com/yourusername/proptrack-api/internal/metrics"
	"github.com/yourusername/proptrack-api/internal/middleware"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
	pgRepo "github.com/yourusername/proptrack-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/proptrack-api/internal/repository/redis"
	"github.com/yourusername/proptrack-api/internal/service"
	ws "github.com/yourusername/proptrack-api/internal/websocket"
	"github.com/yourusername/proptrack-api/pkg/auth"
	"github.com/yourusername/proptrack-api/pkg/database"
)

func main() {
	// До загрузки конфигурации пишем в формате по умолчанию
	boot := logger.New(os.Getenv("LOG_LEVEL"), logger.FormatJSON).Sugar().Named("main")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	boot.Infow("Загрузка конфигурации", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		boot.Fatalw("Failed to load config", "error", err)
	}
	logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.For("main")
	defer func() { _ = logger.Sync() }()

	if cfg.Server.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Контекст приложения: отменяется при получении сигнала остановки
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg.Database.PostgresConnectionString(), database.DefaultPoolConfig())
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalw("Failed to get sql.DB", "error", err)
	}
	defer sqlDB.Close()

	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatalw("Failed to migrate database", "error", err)
	}

	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalw("Failed to connect to Redis", "error", err)
	}
	defer redisClient.Close()
	log.Info("Successfully connected to Redis")

	// Репозитории
	userRepo := pgRepo.NewUserRepo(db)
	pinRepo := pgRepo.NewPinRepo(db)
	collectionRepo := pgRepo.NewCollectionRepo(db)
	mergeRecordRepo := pgRepo.NewMergeRecordRepo(db)
	temporaryUserRepo := pgRepo.NewTemporaryUserRepo(db)
	fallbackChannel := pgRepo.NewChannelRepo(db)

	primaryChannel, err := redisRepo.NewChannel(redisClient)
	if err != nil {
		log.Fatalw("Failed to initialize identity channel", "error", err)
	}
	revocations, err := redisRepo.NewRevocations(redisClient)
	if err != nil {
		log.Fatalw("Failed to initialize token revocations", "error", err)
	}

	// Аналитика: журнал, метрики и, при необходимости, Redis
	sinks := []analytics.Sink{analytics.NewLogSink(), metrics.NewCollector(prometheus.DefaultRegisterer)}
	if cfg.Analytics.RedisEnabled {
		sinks = append(sinks, analytics.NewRedisSink(redisClient, cfg.Analytics.Channel))
	}
	tracker := analytics.NewTracker(cfg.Analytics.QueueSize, sinks...)

	// Временная личность
	registrar := identity.NewRegistrar(temporaryUserRepo, tracker, identity.RetryPolicy{
		MaxAttempts:     cfg.Identity.RegistrationMaxAttempts,
		InitialInterval: cfg.Identity.RegistrationInitialBackoff,
		MaxInterval:     cfg.Identity.RegistrationMaxBackoff,
	})
	store := identity.NewStore(primaryChannel, fallbackChannel, registrar, tracker, identity.StoreConfig{
		KeyPrefix:  cfg.Identity.KeyPrefix,
		PrimaryTTL: cfg.Identity.PrimaryTTL,
	})
	reconciler := merge.NewReconciler(mergeRecordRepo, tracker, cfg.Merge.TypeTimeout, pinRepo, collectionRepo)

	// Постоянные сессии
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpirationHrs, revocations)
	if err != nil {
		log.Fatalw("Failed to initialize JWTService", "error", err)
	}
	var emailService service.EmailService = service.NoopEmailService{}
	if cfg.Email.Enabled {
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Fatalw("Failed to initialize email service", "error", err)
		}
		emailService = resendService
	}
	authService, err := service.NewAuthService(userRepo, jwtService, emailService)
	if err != nil {
		log.Fatalw("Failed to initialize AuthService", "error", err)
	}

	// WebSocket: уведомления о смене состояния, в кластере через Redis PubSub
	var pubSubProvider ws.PubSubProvider = ws.NoOpPubSub{}
	if cfg.WebSocket.ClusterEnabled {
		redisProvider, err := ws.NewRedisPubSub(redisClient)
		if err != nil {
			log.Warnw("Не удалось создать Redis PubSub, кластеризация WS неактивна", "error", err)
		} else {
			pubSubProvider = redisProvider
		}
	}
	hub := ws.NewHub(pubSubProvider, cfg.WebSocket.Channel)
	if err := hub.Start(ctx); err != nil {
		log.Fatalw("Failed to start WebSocket hub", "error", err)
	}

	factory := authstate.NewFactory(store, authService, reconciler, tracker, hub, cfg.Merge.DetachedTimeout)

	// Политика отложенных действий
	thresholds := make(map[string]gating.Threshold, len(cfg.Gating.Thresholds))
	for action, th := range cfg.Gating.Thresholds {
		thresholds[action] = gating.Threshold{Counter: th.Counter, Limit: th.Limit}
	}
	policy := gating.NewPolicy(cfg.Gating.AccountRequiredActions, thresholds)
	gate := service.NewGateService(policy, tracker, map[string]service.OwnerCounter{
		service.CounterPins:        pinRepo,
		service.CounterCollections: collectionRepo,
	})

	routes := handler.Routes{
		Identity: middleware.NewIdentityMiddleware(factory, authService, registrar, middleware.IdentityConfig{
			CookieMaxAge: time.Duration(cfg.Identity.DeviceCookieMaxAge) * time.Second,
			CookieDomain: cfg.Server.CookieDomain,
			Secure:       cfg.Server.IsRelease(),
		}),
		RateLimiter: middleware.NewRateLimiter(redisClient),
		Auth:        handler.NewAuthHandler(authService, handler.CookieConfig{Domain: cfg.Server.CookieDomain, Secure: cfg.Server.IsRelease()}),
		IDs:         handler.NewIdentityHandler(gate),
		Records:     handler.NewRecordsHandler(service.NewPinService(pinRepo, gate), service.NewCollectionService(collectionRepo, gate)),
		Admin:       handler.NewAdminHandler(service.NewMergeAuditService(mergeRecordRepo)),
		WS:          handler.NewWSHandler(hub, cfg.Server.AllowedOrigins, cfg.WebSocket.SendBuffer),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": sqlDB.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		}),
		Metrics: promhttp.Handler(),
	}

	router := gin.New()
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	router.Use(ginzap.Ginzap(zapLogger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(zapLogger, true))

	// В production не доверяем прокси-заголовкам
	trusted := []string{"127.0.0.1", "::1"}
	if cfg.Server.IsRelease() {
		trusted = nil
	}
	if err := router.SetTrustedProxies(trusted); err != nil {
		log.Warnw("Failed to set trusted proxies", "error", err)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.DeviceHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.Register(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	cancel()
	shutdownBackground(log, factory, hub, pubSubProvider, registrar, authService, tracker)
	log.Info("Server exited properly")
}

// shutdownBackground останавливает фоновые задачи в порядке зависимостей:
// сначала источники событий, затем трекер, который их принимает.
// Слияния, продолженные в фоне, уведомляют хаб и пишут в трекер, поэтому ждем их первыми.
func shutdownBackground(log *zap.SugaredLogger, factory *authstate.Factory, hub *ws.Hub, provider ws.PubSubProvider, registrar *identity.Registrar, authService *service.AuthService, tracker *analytics.Tracker) {
	factory.Wait()
	hub.Stop()
	if err := provider.Close(); err != nil {
		log.Warnw("Error closing PubSub provider", "error", err)
	}
	registrar.Stop()
	authService.Wait()
	tracker.Close()
}
