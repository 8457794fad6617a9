// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agent-wallet-service/internal/agent"
	"agent-wallet-service/internal/chains/sol"
	"agent-wallet-service/internal/config"
	"agent-wallet-service/internal/events"
	"agent-wallet-service/internal/handler"
	"agent-wallet-service/internal/repository"
	"agent-wallet-service/internal/router"
	"agent-wallet-service/internal/security"
	"agent-wallet-service/internal/server"
	"agent-wallet-service/internal/session"
	"agent-wallet-service/internal/tools"
	"agent-wallet-service/internal/usecase"
	"agent-wallet-service/pkg/cache"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const defaultWebhookPath = "/bot/webhook"

func main() {
	// Load .env
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting agent wallet service")

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	// ============================================================================
	// Credential vault
	// ============================================================================
	var provider security.VaultProvider
	switch cfg.Security.VaultProvider {
	case "file":
		provider, err = security.NewFileVaultProvider(cfg.Security.FileVaultDir, cfg.Security.FileVaultKey)
		if err != nil {
			logger.Fatal("failed to open file vault", zap.Error(err))
		}
	default:
		provider = security.NewEnvVaultProvider()
	}
	vault := security.NewVault(provider, logger)

	masterKey, err := vault.GetMasterKey(ctx)
	if err != nil {
		logger.Fatal("master key unavailable", zap.Error(err))
	}
	encryption, err := security.NewEncryption(masterKey)
	if err != nil {
		logger.Fatal("invalid master key", zap.Error(err))
	}
	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)

	// ============================================================================
	// Wallet store
	// ============================================================================
	var walletStore usecase.WalletStore
	switch cfg.DBDriver {
	case "postgres":
		pool, err := config.ConnectDB(cfg.DB, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		repo := repository.NewWalletRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to ensure wallet schema", zap.Error(err))
		}
		walletStore = repo
	default:
		logger.Warn("using in-memory wallet store; wallets are lost on restart")
		walletStore = repository.NewMemoryWalletRepository()
	}

	// ============================================================================
	// Redis (sessions, agent threads, rate limiting)
	// ============================================================================
	var redisCache *cache.Cache
	if cfg.Session.Backend == "redis" || cfg.RateLimit.Enabled {
		redisCache = cache.NewCache(cfg.Redis.Addrs, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.UseCluster)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			cancel()
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		cancel()
		defer redisCache.Close()
		logger.Info("connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	var sessions session.Store = session.NewMemoryStore()
	if cfg.Session.Backend == "redis" {
		sessions = session.NewRedisStore(redisCache.Client(), cfg.Session.TTL)
	}

	// ============================================================================
	// Chain, events, agent
	// ============================================================================
	chain := sol.NewClient(cfg.Solana.RPCURL, cfg.Solana.Commitment, cfg.Solana.PollInterval, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	}
	defer publisher.Close()

	var threads agent.ThreadStore = agent.NewMemoryThreadStore()
	if redisCache != nil {
		threads = agent.NewRedisThreadStore(redisCache, cfg.Agent.ThreadTTL)
	}

	var localAgent agent.PromptService
	if cfg.Agent.OpenAIKey != "" {
		registry := tools.NewRegistry(chain, tools.NewJupiterClient(cfg.Solana.JupiterURL, logger), logger)
		localAgent = agent.NewService(
			agent.NewOpenAICompleter(cfg.Agent.OpenAIKey, cfg.Agent.OpenAIBaseURL),
			cfg.Agent.Model,
			registry,
			threads,
			cfg.Agent.MaxToolRounds,
			logger,
		)
	}

	// Chat goes to the remote agent when one is configured.
	chatAgent := localAgent
	if cfg.Agent.RemoteURL != "" {
		chatAgent = agent.NewRemoteClient(cfg.Agent.RemoteURL, cfg.Agent.Timeout, logger)
	}
	httpAgent := localAgent
	if httpAgent == nil {
		httpAgent = chatAgent
	}

	// ============================================================================
	// Usecases and transports
	// ============================================================================
	walletUC := usecase.NewWalletUsecase(walletStore, chain, encryption, hasher, logger)
	transactionUC := usecase.NewTransactionUsecase(
		walletStore,
		chain,
		encryption,
		publisher,
		cfg.Solana.ConfirmTimeout,
		cfg.Solana.RPCTimeout,
		cfg.Solana.ExplorerBase,
		logger,
	)

	var (
		bot             *tgbotapi.BotAPI
		telegramHandler *handler.TelegramHandler
		webhookPath     string
	)
	if cfg.Telegram.Enabled {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal("failed to connect to telegram", zap.Error(err))
		}
		bot.Debug = cfg.Telegram.Debug
		logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

		conversationUC := usecase.NewConversationUsecase(
			walletUC,
			transactionUC,
			chatAgent,
			handler.NewTelegramMessenger(bot, logger),
			sessions,
			cfg.Solana.Network,
			cfg.Agent.Timeout,
			logger,
		)
		telegramHandler = handler.NewTelegramHandler(context.Background(), bot, conversationUC, logger)
		if err := telegramHandler.RegisterCommands(); err != nil {
			logger.Warn("failed to register bot commands", zap.Error(err))
		}

		if cfg.Telegram.WebhookURL != "" {
			webhookPath = defaultWebhookPath
			if u, err := url.Parse(cfg.Telegram.WebhookURL); err == nil && u.Path != "" {
				webhookPath = u.Path
			}
		}
	}

	rateLimit := router.RateLimit{}
	if cfg.RateLimit.Enabled {
		rateLimit = router.RateLimit{
			Cache:         redisCache,
			Limit:         cfg.RateLimit.Limit,
			Window:        cfg.RateLimit.Window,
			BlockDuration: cfg.RateLimit.BlockDuration,
		}
	}

	r := router.SetupRoutes(
		handler.NewPromptHandler(httpAgent, logger),
		telegramHandler,
		router.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RateLimit:      rateLimit,
			WebhookPath:    webhookPath,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start http server", zap.Error(err))
		}
	}()

	grpcServer := server.NewGRPCServer(cfg.GRPCAddr, logger)
	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	// ============================================================================
	// Telegram delivery
	// ============================================================================
	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()

	if bot != nil {
		if webhookPath != "" {
			wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
			if err != nil {
				logger.Fatal("invalid telegram webhook url", zap.Error(err))
			}
			if _, err := bot.Request(wh); err != nil {
				logger.Fatal("failed to set telegram webhook", zap.Error(err))
			}
			logger.Info("telegram webhook registered", zap.String("path", webhookPath))
		} else {
			if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
				logger.Warn("failed to clear telegram webhook", zap.Error(err))
			}
			u := tgbotapi.NewUpdate(0)
			u.Timeout = cfg.Telegram.PollTimeout
			go telegramHandler.Poll(pollCtx, bot.GetUpdatesChan(u))
		}
	}

	grpcServer.SetServing(true)
	logger.Info("agent wallet service started",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("grpc_addr", cfg.GRPCAddr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	grpcServer.SetServing(false)

	if bot != nil && webhookPath == "" {
		bot.StopReceivingUpdates()
	}
	stopPolling()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shutdown", zap.Error(err))
	}

	if telegramHandler != nil {
		done := make(chan struct{})
		go func() {
			telegramHandler.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			logger.Warn("chat events still in flight at shutdown")
		}
	}

	grpcServer.Stop()
	logger.Info("server stopped")
}
