package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/repair-orders/internal/access"
	"github.com/joseph-ayodele/repair-orders/internal/async"
	"github.com/joseph-ayodele/repair-orders/internal/cache"
	"github.com/joseph-ayodele/repair-orders/internal/cache/rediscache"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/events"
	"github.com/joseph-ayodele/repair-orders/internal/export"
	"github.com/joseph-ayodele/repair-orders/internal/extract"
	"github.com/joseph-ayodele/repair-orders/internal/ingest"
	"github.com/joseph-ayodele/repair-orders/internal/llm/openai"
	"github.com/joseph-ayodele/repair-orders/internal/metrics"
	"github.com/joseph-ayodele/repair-orders/internal/normalize"
	"github.com/joseph-ayodele/repair-orders/internal/pricelist"
	repo "github.com/joseph-ayodele/repair-orders/internal/repository"
	"github.com/joseph-ayodele/repair-orders/internal/server"
	"github.com/joseph-ayodele/repair-orders/internal/services/batch"
	ingestsvc "github.com/joseph-ayodele/repair-orders/internal/services/ingest"
	"github.com/joseph-ayodele/repair-orders/internal/services/onboarding"
	"github.com/joseph-ayodele/repair-orders/internal/services/operator"
)

func main() {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	var store cache.Store = cache.NewMemoryStore(nil)
	if cfg.Redis.Addr != "" {
		rc := rediscache.New(cfg.Redis.Addr, "orderdesk:")
		if err := rc.Ping(ctx); err != nil {
			logger.Error("failed to reach redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		store = rc
	}

	reg := metrics.NewRegistry()
	acl := access.NewAllowList(cfg.Access.AdminIDs, logger)

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		logger.Error("failed to create event publisher", "backend", cfg.Events.Backend, "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	stationsRepo := repo.NewStationRepository(db, logger)
	operatorsRepo := repo.NewOperatorRepository(db, logger)
	batchesRepo := repo.NewBatchRepository(db, logger)

	normalizer := normalize.NewNormalizer(normalize.Config{
		Pdftoppm: cfg.Normalize.Pdftoppm,
		Antiword: cfg.Normalize.Antiword,
		Unrar:    cfg.Normalize.Unrar,
		WorkDir:  cfg.Normalize.WorkDir,
	}, logger)
	llmClient := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	adapter := extract.NewAdapter(normalizer, llmClient, cfg.LLM.Timeout, reg, logger)

	var (
		catalog     pricelist.CatalogProvider
		invalidator server.CatalogInvalidator
	)
	if cfg.Pricelist.CSVURL != "" {
		c := pricelist.NewCache(store,
			pricelist.NewHTTPSource(cfg.Pricelist.CSVURL, cfg.Pricelist.Timeout, logger),
			cfg.Pricelist.TTL, logger, pricelist.WithMetrics(reg))
		catalog, invalidator = c, c
	} else {
		logger.Warn("pricelist.disabled", "reason", "PRICELIST_CSV_URL not set")
	}
	validator := pricelist.NewValidator(catalog, reg, logger)

	batchService := batch.NewService(batchesRepo, stationsRepo, acl, logger,
		batch.WithPublisher(publisher), batch.WithMetrics(reg))
	operatorService := operator.NewService(operatorsRepo, acl, logger)
	flow := onboarding.NewFlow(store, operatorService, acl, logger,
		onboarding.WithConfigurer(onboarding.NewStoreConfigurer(store)),
		onboarding.WithTTL(cfg.Onboarding.StateTTL))

	ingestService := ingestsvc.NewService(normalizer, adapter, validator, batchService, stationsRepo, operatorService, logger)
	queue := async.NewProcessorQueue(ingestService, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithProcessTimeout(cfg.Ingest.ProcessTimeout),
	)

	exportService := export.NewService(batchService, operatorsRepo, acl, logger)
	scheduler := export.NewScheduler(exportService, export.DirDeliverer{Dir: cfg.Reports.Dir},
		cfg.Reports.Weekday, cfg.Reports.Hour, logger)
	go scheduler.Run(ctx)

	if cfg.Inbox.Dir != "" {
		if err := os.MkdirAll(cfg.Inbox.Dir, 0o755); err != nil {
			logger.Error("failed to create inbox", "dir", cfg.Inbox.Dir, "error", err)
			os.Exit(1)
		}
		inbox := ingest.NewInbox(cfg.Inbox.Dir, queue, logger)
		go func() {
			if err := inbox.Run(ctx, cfg.Inbox.Debounce); err != nil {
				logger.Error("inbox stopped", "error", err)
			}
		}()
	}

	h := server.NewHandler(server.Deps{
		Batches:    batchService,
		Operators:  operatorService,
		Onboarding: flow,
		Export:     exportService,
		Queue:      queue,
		Catalog:    invalidator,
		Access:     acl,
		Metrics:    reg,
		DB:         db,
		UploadDir:  cfg.Normalize.WorkDir,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("orderdesk listening", "http_addr", cfg.Server.HTTPAddr, "grpc_addr", cfg.Server.GRPCAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
}
