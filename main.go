package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/TicketWorks/ticket-review-backend/config"
	"github.com/TicketWorks/ticket-review-backend/handlers"
	"github.com/TicketWorks/ticket-review-backend/internal/session"
	"github.com/TicketWorks/ticket-review-backend/internal/workflow"
	"github.com/TicketWorks/ticket-review-backend/logger"
	"github.com/TicketWorks/ticket-review-backend/router"
	"github.com/TicketWorks/ticket-review-backend/services"
	"github.com/TicketWorks/ticket-review-backend/store/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Database pool
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
	log.Infow("Connecting to database", "conn", logger.MaskConnectionString(connStr))
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		log.Fatalf("Failed to parse database config: %v", err)
	}
	if cfg.IsProduction() {
		poolConfig.ConnConfig.TLSConfig = &tls.Config{
			ServerName: cfg.Database.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Redis for the court search cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Warnw("Failed to close redis client", "error", err)
		}
	}()

	// Stores and external collaborators
	catalog := services.NewCachedCatalog(postgres.NewPgCourtStore(pool), redisClient)
	auditStore := postgres.NewPgAuditStore(pool)
	caseAPI := services.NewCaseAPIClient(cfg.CaseAPI.APIUrl, cfg.CaseAPI.APIKey)
	log.Infow("Case API configured",
		"url", cfg.CaseAPI.APIUrl,
		"apiKey", logger.MaskSensitiveString(cfg.CaseAPI.APIKey, 3, 2))
	coverage := services.NewCoverageClient(cfg.Coverage.APIUrl, cfg.Coverage.APIKey)
	processing := services.NewProcessingClient(cfg.Processing.APIUrl, cfg.Processing.APIKey)

	deps := workflow.Dependencies{
		Catalog:    catalog,
		Cases:      caseAPI,
		Documents:  caseAPI,
		Options:    caseAPI,
		Audit:      auditStore,
		Tickets:    caseAPI,
		Coverage:   coverage,
		Processing: processing,
	}
	sessionCfg := workflow.Config{
		ManualProcessingEnabled: cfg.Review.ManualProcessingEnabled,
		SaveErrorClearAfter:     time.Duration(cfg.Review.SaveErrorClearSeconds) * time.Second,
	}
	manager := session.NewManager(deps, sessionCfg)

	r := router.SetupRouter(router.Dependencies{
		Config:         cfg,
		SessionHandler: handlers.NewSessionHandler(manager),
		CourtHandler:   handlers.NewCourtHandler(manager),
		HealthHandler:  handlers.NewHealthHandler(pool, redisClient, cfg.Server.Version),
		Logger:         log,
	})

	log.Infof("Starting server on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
