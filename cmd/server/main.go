package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-mfg-scans/internal/cache"
	"github.com/pesio-ai/be-mfg-scans/internal/client"
	"github.com/pesio-ai/be-mfg-scans/internal/config"
	"github.com/pesio-ai/be-mfg-scans/internal/database"
	"github.com/pesio-ai/be-mfg-scans/internal/handler"
	"github.com/pesio-ai/be-mfg-scans/internal/logger"
	"github.com/pesio-ai/be-mfg-scans/internal/middleware"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("SCANS_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("plant_time_zone", cfg.Plant.TimeZone).
		Msg("Starting Packaging Scans Service")

	plantLocation, err := cfg.Plant.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid plant time zone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	ruleRepo := repository.NewArticleRuleRepository(db)
	scanRepo := repository.NewScanRecordRepository(db)

	// Shared rule cache
	var sharedRules service.RuleCacheInterface
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisRuleCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.RuleCache.TTL)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, rule lookups fall back to database")
		}
		sharedRules = redisCache
	}

	// External verification systems
	var qualityDB client.QualityDBClientInterface
	if cfg.QualityDB.DSN != "" {
		qc, err := client.OpenQualityDB(cfg.QualityDB.DSN, cfg.QualityDB.Timeout)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open quality database")
		}
		defer qc.Close()
		qualityDB = qc
	}
	partStatus := client.NewPartStatusClient(cfg.PartStatus.BaseURL, cfg.PartStatus.Timeout)

	events, err := client.NewEventPublisher(cfg.NATS.URL, log.Logger)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, aggregate events disabled")
		events = client.NewDisabledEventPublisher(log.Logger)
	}
	defer events.Close()

	log.Info().
		Bool("redis", sharedRules != nil).
		Bool("quality_db", qualityDB != nil).
		Str("part_status", cfg.PartStatus.BaseURL).
		Str("nats", cfg.NATS.URL).
		Msg("Dependencies initialized")

	// Initialize services
	metrics, err := service.NewMetrics(nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	ruleRegistry := service.NewRuleRegistry(ruleRepo, sharedRules, cfg.RuleCache.TTL, log)
	verifier := service.NewVerifier(qualityDB, partStatus, log)
	scanService := service.NewScanService(ruleRegistry, scanRepo, verifier, events, log,
		service.WithLocation(plantLocation),
		service.WithMetrics(metrics),
	)

	localizer := handler.NewLocalizer()

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(scanService, localizer, db, log)
	mux := http.NewServeMux()
	httpHandler.Routes(mux)

	// Apply middleware
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
		middleware.WithTrustedTerminalHeader(cfg.RateLimit.TrustTerminalHeader),
		middleware.WithIdleTimeout(cfg.RateLimit.IdleTimeout),
	)
	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = middleware.Timeout(cfg.Server.RequestTimeout)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.RequestID(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Setup gRPC server
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.RecoveryInterceptor(log),
		handler.RequestIDInterceptor(),
		handler.LoggingInterceptor(log),
	))
	handler.RegisterScanServiceServer(grpcServer, handler.NewGRPCHandler(scanService, localizer, log))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.ScanServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Server stopped")
}
