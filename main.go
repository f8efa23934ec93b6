package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	_ "github.com/askdb-io/askdb-engine/pkg/adapters/datasource/mssql"
	_ "github.com/askdb-io/askdb-engine/pkg/adapters/datasource/postgres"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/config"
	"github.com/askdb-io/askdb-engine/pkg/crypto"
	"github.com/askdb-io/askdb-engine/pkg/database"
	"github.com/askdb-io/askdb-engine/pkg/handlers"
	"github.com/askdb-io/askdb-engine/pkg/llm"
	"github.com/askdb-io/askdb-engine/pkg/logging"
	"github.com/askdb-io/askdb-engine/pkg/middleware"
	"github.com/askdb-io/askdb-engine/pkg/repositories"
	"github.com/askdb-io/askdb-engine/pkg/services"
	sqlguard "github.com/askdb-io/askdb-engine/pkg/sql"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	// Migrations run over database/sql; the app itself uses pgxpool.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	encryptor, err := crypto.NewCredentialEncryptor(cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("Failed to create credential encryptor", zap.Error(err))
	}

	chatClient, err := llm.NewChatClient(cfg.LLM.Provider, &llm.Config{
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create chat client", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	credRepo := repositories.NewCredentialRepository(db)
	chatRepo := repositories.NewChatRepository(db)

	// Services
	broker := datasource.NewBroker(datasource.BrokerOptions{
		MaxOpenConnections: cfg.Broker.MaxOpenConnections,
		SessionTTL:         cfg.Broker.SessionTTL(),
		ConnectTimeout:     cfg.Broker.ConnectTimeout(),
	}, logger)
	vault := services.NewCredentialVault(credRepo, encryptor, services.VaultOptions{
		AllowOverwrite: cfg.Vault.AllowOverwrite,
	}, logger)
	policy := sqlguard.DefaultPolicy()
	if cfg.Guard.PolicyFile != "" {
		policy, err = sqlguard.LoadPolicy(cfg.Guard.PolicyFile)
		if err != nil {
			logger.Fatal("Failed to load guard policy", zap.Error(err))
		}
		logger.Warn("Guard policy loaded from file",
			zap.String("policy_file", cfg.Guard.PolicyFile),
			zap.Bool("allow_mutating", policy.AllowMutating),
			zap.Bool("allow_destructive", policy.AllowDestructive))
	}

	generator := services.NewQueryGenerator(chatClient, logger)
	executor := services.NewTurnExecutor(generator, sqlguard.NewGuard(policy), services.ExecutorOptions{
		MaxAttempts:    cfg.Executor.MaxAttempts,
		MaxRows:        cfg.Executor.MaxRows,
		MaxResultBytes: cfg.Executor.MaxResultBytes,
		QueryTimeout:   cfg.Executor.QueryTimeout(),
	}, logger)
	orchestrator := services.NewConversationOrchestrator(
		vault, broker, services.NewSchemaIntrospector(logger), executor, generator,
		chatRepo, cfg.Schema.MaxPromptChars, logger)
	userService := services.NewUserService(userRepo, logger)

	// HTTP routes
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(mux)
	handlers.NewCredentialsHandler(vault, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(orchestrator, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting askdb-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
