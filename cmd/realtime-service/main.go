package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gufagu-backend/internal/database"
	callHandler "gufagu-backend/internal/handler/http/call"
	matchHandler "gufagu-backend/internal/handler/http/match"
	realtimeHandler "gufagu-backend/internal/handler/http/realtime"
	wsHandler "gufagu-backend/internal/handler/ws"
	"gufagu-backend/internal/middleware"
	cassandraRepo "gufagu-backend/internal/repository/cassandra"
	"gufagu-backend/internal/repository/cockroach"
	redisRepo "gufagu-backend/internal/repository/redis"
	"gufagu-backend/internal/service/call"
	"gufagu-backend/internal/service/connection"
	"gufagu-backend/internal/service/matching"
	"gufagu-backend/internal/service/moderation"
	"gufagu-backend/internal/service/signaling"
	"gufagu-backend/pkg/config"
	"gufagu-backend/pkg/constants"
	"gufagu-backend/pkg/jwt"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
	"gufagu-backend/pkg/push"
	"gufagu-backend/pkg/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		logger.InitDefault()
	}
	defer logger.Sync()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Metrics
	appMetrics := metrics.NewMetrics(cfg.Server.ServiceName)
	registry := appMetrics.GetRegistry()

	// 2. CockroachDB (matches, calls, reports, friendships)
	db := connectCockroach(ctx, cfg, registry)
	defer db.Close()

	matchRepo := cockroach.NewMatchRepository(db.Pool)
	callRepo := cockroach.NewCallRepository(db.Pool)
	reportRepo := cockroach.NewReportRepository(db.Pool)
	friendshipRepo := cockroach.NewFriendshipRepository(db.Pool)

	// 3. Cassandra (match transcripts)
	cassDB, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    cfg.Cassandra.Hosts,
		Keyspace: cfg.Cassandra.Keyspace,
		Username: cfg.Cassandra.Username,
		Password: cfg.Cassandra.Password,
		Timeout:  cfg.Cassandra.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassDB.Close()
	logger.Info("Connected to Cassandra", zap.String("keyspace", cfg.Cassandra.Keyspace))

	transcriptRepo := cassandraRepo.NewTranscriptRepository(cassDB)

	// 4. Redis with degraded mode (queue records, presence, push tokens, rate limits)
	redisDB := database.NewRedisDB(&database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	}, registry)
	defer redisDB.Close()

	if err := redisDB.HealthCheck(ctx); err != nil {
		logger.Warn("Redis unavailable at startup, running in degraded mode", zap.Error(err))
	} else {
		logger.Info("Connected to Redis")
	}
	redisDB.StartHealthCheck(ctx, 10*time.Second)

	queueRepo := redisRepo.NewQueueRepository(redisDB, cfg.Realtime.QueueTTL)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB, constants.PresenceTTL)
	pushTokenRepo := redisRepo.NewPushTokenRepository(redisDB)

	// 5. Push provider for missed calls
	pushSvc := push.NewService(newPushProvider(ctx, cfg), pushTokenRepo, appMetrics)

	// 6. Report evidence in MinIO; reports are still filed without it
	var evidence moderation.EvidenceStore
	minioBreaker := resilience.NewBreaker("minio", resilience.DefaultConfig(), registry)
	minioCtx, minioCancel := context.WithTimeout(ctx, constants.PersistTimeout)
	store, err := moderation.NewMinioEvidenceStore(minioCtx, moderation.MinioConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		UseSSL:    cfg.MinIO.UseSSL,
		Bucket:    cfg.MinIO.Bucket,
	}, minioBreaker)
	minioCancel()
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal("Failed to initialize evidence store", zap.Error(err))
		}
		logger.Warn("Evidence store unavailable, reports will be filed without evidence", zap.Error(err))
	} else {
		evidence = store
		logger.Info("Evidence store ready", zap.String("bucket", cfg.MinIO.Bucket))
	}
	moderationSvc := moderation.NewService(reportRepo, evidence, appMetrics)

	// 7. Realtime core
	connections := connection.NewRegistry(presenceRepo, appMetrics)
	relay := signaling.NewRelay(connections, appMetrics)

	matchingSvc := matching.NewService(matching.Deps{
		Matches:    matchRepo,
		Queue:      queueRepo,
		Transcript: transcriptRepo,
		Reporter:   moderationSvc,
		Emitter:    connections,
		Relay:      relay,
		Metrics:    appMetrics,
	}, matching.Config{
		QueueTTL:          cfg.Realtime.QueueTTL,
		WaitPerPosition:   cfg.Realtime.WaitPerPosition,
		MaxInterests:      cfg.Realtime.MaxInterests,
		MaxInterestLength: cfg.Realtime.MaxInterestLength,
		MaxMessageLength:  cfg.Realtime.MaxMessageLength,
	})
	sweeper, err := matchingSvc.StartSweeper(cfg.Realtime.SweepSpec)
	if err != nil {
		logger.Fatal("Failed to start queue sweeper", zap.Error(err))
	}

	friends := call.NewCachedFriends(friendshipRepo, constants.FriendshipCacheTTL, constants.FriendshipCacheSize)
	stopFriendsCleanup := friends.StartCleanup(time.Minute)
	defer stopFriendsCleanup()

	orchestrator := call.NewOrchestrator(call.Deps{
		Calls:     callRepo,
		Friends:   friends,
		Notifier:  pushSvc,
		Directory: connections,
		Relay:     relay,
		Metrics:   appMetrics,
	}, call.Config{RingTimeout: cfg.Realtime.RingTimeout})

	// 8. Identity
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	authenticator := middleware.NewAuthenticator(jwtManager, middleware.NewRedisRevocationChecker(redisDB))
	origins := middleware.AllowOrigins(cfg.Server.AllowedOrigins)

	hub := wsHandler.NewHub(wsHandler.Deps{
		Registry:      connections,
		Matching:      matchingSvc,
		Calls:         orchestrator,
		Authenticator: authenticator,
		Origins:       origins,
		Metrics:       appMetrics,
	}, wsHandler.Config{
		MaxConnections: cfg.Realtime.MaxConnections,
		SendBufferSize: cfg.Realtime.SendBufferSize,
		MaxFrameSize:   cfg.Realtime.MaxFrameSize,
		PingInterval:   cfg.Realtime.PingInterval,
	})

	// 9. Handlers
	callHdlr := callHandler.NewHandler(callRepo, orchestrator)
	matchHdlr := matchHandler.NewHandler(matchRepo, transcriptRepo)
	statsHdlr := realtimeHandler.NewHandler(matchingSvc, orchestrator, connections, presenceRepo, queueRepo)

	// 10. Router
	router := gin.New()
	_ = router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(origins))
	router.Use(middleware.NewPrometheusMiddleware(appMetrics).Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"service":        cfg.Server.ServiceName,
			"redis_degraded": redisDB.IsDegraded(),
			"time":           time.Now().UTC(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(checkCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "cockroach": err.Error()})
			return
		}
		// degraded Redis is tolerated, the service keeps matching in memory
		redisStatus := "ok"
		if err := redisDB.SafePing(checkCtx); err != nil {
			redisStatus = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "redis": redisStatus})
	})
	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	upgradeLimiter := middleware.NewRateLimiter(redisDB, constants.UpgradeRateLimit, constants.RateLimitWindow)
	router.GET("/v1/realtime/ws", upgradeLimiter.Middleware(), hub.ServeWS)

	apiLimiter := middleware.NewRateLimiter(redisDB, constants.APIRateLimit, constants.RateLimitWindow)
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(authenticator))
	v1.Use(apiLimiter.Middleware())
	v1.Use(middleware.Timeout(constants.DefaultTimeout))
	{
		v1.GET("/calls", callHdlr.ListCalls)
		v1.GET("/calls/:id", callHdlr.GetCall)
		v1.GET("/matches", matchHdlr.ListMatches)
		v1.GET("/matches/:id/transcript", matchHdlr.GetTranscript)
		v1.GET("/realtime/stats", statsHdlr.Stats)
	}

	// 11. Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Realtime service starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.String("websocket", "/v1/realtime/ws"))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 12. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	<-sweeper.Stop().Done()
	orchestrator.Shutdown()
	connections.Shutdown(shutdownCtx)
	hub.Wait(shutdownCtx)
	stop()

	logger.Info("Server exited")
}

// connectCockroach connects with linear backoff and exits when the database
// stays unreachable; match and call records cannot be kept without it.
func connectCockroach(ctx context.Context, cfg *config.Config, registry prometheus.Registerer) *database.CockroachDB {
	breaker := resilience.NewBreaker("cockroach", resilience.Config{
		MaxFailures:    5,
		OpenTimeout:    time.Minute,
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}, registry)

	var db *database.CockroachDB
	err := breaker.Execute(ctx, "connect", func(ctx context.Context) error {
		var err error
		db, err = database.NewCockroachDB(ctx, &database.CockroachConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to CockroachDB", zap.Error(err))
	}

	logger.Info("Connected to CockroachDB", zap.String("host", cfg.Database.Host))
	return db
}

// newPushProvider selects the missed-call push provider
func newPushProvider(ctx context.Context, cfg *config.Config) push.Provider {
	switch cfg.Push.Provider {
	case "firebase":
		provider, err := push.NewFirebaseProvider(ctx, cfg.Push.ProjectID)
		if err != nil {
			if cfg.IsProduction() {
				logger.Fatal("Failed to initialize Firebase provider", zap.Error(err))
			}
			logger.Warn("Firebase unavailable, falling back to mock push provider", zap.Error(err))
			return &push.MockProvider{}
		}
		return provider
	case "mock", "":
		logger.Info("Using mock push provider")
		return &push.MockProvider{}
	default:
		logger.Warn("Unknown push provider, falling back to mock", zap.String("provider", cfg.Push.Provider))
		return &push.MockProvider{}
	}
}
