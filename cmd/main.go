package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"holderbot/config"
	"holderbot/internal/handler"
	"holderbot/internal/repository"
	"holderbot/internal/solana"
	"holderbot/internal/verify"
	"holderbot/traits/database"
	"holderbot/traits/logger"

	"github.com/go-telegram/bot"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	zapLogger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		zapLogger.Error("error init config", zap.Error(err))
		return
	}

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		zapLogger.Error("invalid configuration", zap.Error(err))
		return
	}

	zapLogger.Info("Starting holderbot",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("deposit_address", cfg.DepositAddress),
	)

	// Initialize database
	db, err := database.InitDatabase(cfg, zapLogger)
	if err != nil {
		zapLogger.Error("failed to initialize database", zap.Error(err))
		return
	}
	defer db.Close()

	// Create database tables
	if err := database.CreateTables(db, zapLogger); err != nil {
		zapLogger.Error("failed to create tables", zap.Error(err))
		return
	}

	// Initialize repositories
	loyaltyRepo := repository.NewLoyaltyRepository(db, zapLogger, repository.UnlockRule{
		Referrals:     cfg.UnlockReferrals,
		SpendLamports: cfg.UnlockSpendLamports,
	})
	purchaseRepo := repository.NewPurchaseRepository(db, zapLogger)

	// Claim registry: Redis when configured, in-process otherwise
	var claims verify.ClaimRegistry
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		claims = verify.NewRedisClaims(rdb, cfg.ClaimTTL)
		zapLogger.Info("Using Redis claim registry", zap.String("addr", cfg.RedisAddr))
	} else {
		claims = verify.NewMemoryClaims()
		zapLogger.Info("Using in-memory claim registry")
	}

	// Payment verifier over Solana JSON-RPC
	rpcClient := solana.NewRPCClient(cfg.RPCURL, zapLogger)
	verifier := verify.New(rpcClient, claims, verify.Config{
		DepositAddress: cfg.DepositAddress,
		Tolerance:      cfg.VerifyToleranceLamports,
		MaxAttempts:    cfg.VerifyMaxAttempts,
		PollInterval:   cfg.VerifyPollInterval,
		SignatureLimit: cfg.VerifySignatureLimit,
	}, zapLogger)

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Notifier and admin event feed
	notifier := handler.NewNotifier(zapLogger)
	feed := handler.NewFeedHub(zapLogger)
	go feed.Run(ctx)

	// Create handler
	handl := handler.NewHandler(cfg, zapLogger, db, loyaltyRepo, purchaseRepo, verifier, notifier, feed)

	// Create bot instance
	opts := []bot.Option{
		bot.WithDefaultHandler(handl.DefaultHandler),
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		zapLogger.Error("error creating bot", zap.Error(err))
		return
	}

	// Set up graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-stop
		zapLogger.Info("Shutdown signal received")
		cancel()
	}()

	// Start web server
	go handl.StartWebServer(ctx)
	zapLogger.Info("Web server started", zap.String("address", cfg.GetServerAddress()))

	// Start bot
	zapLogger.Info("Bot started successfully")
	b.Start(ctx)

	zapLogger.Info("Application stopped successfully")
}
