package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/cipherchat/internal/config"
	"github.com/prudhvinik1/cipherchat/internal/database"
	"github.com/prudhvinik1/cipherchat/internal/deployments"
	"github.com/prudhvinik1/cipherchat/internal/handlers"
	"github.com/prudhvinik1/cipherchat/internal/repositories"
	"github.com/prudhvinik1/cipherchat/internal/services"
	"github.com/sirupsen/logrus"
)

// memoryDatabaseURL keeps messages and events in process instead of Postgres.
const memoryDatabaseURL = "memory://"

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logrus.SetLevel(cfg.LogLevel)

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logrus.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	var (
		messageRepo repositories.MessageRepository
		eventRepo   repositories.EventRepository
	)
	if cfg.DatabaseURL == memoryDatabaseURL {
		logrus.Warn("Using in-memory message store, nothing will persist")
		messageRepo = repositories.NewMemoryMessageRepository()
		eventRepo = repositories.NewMemoryEventRepository()
	} else {
		postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("Failed to create postgres pool: %v", err)
		}
		defer postgresPool.Close()

		if err := database.Migrate(ctx, postgresPool); err != nil {
			logrus.Fatalf("Failed to migrate database: %v", err)
		}
		messageRepo = repositories.NewPostgresMessageRepository(postgresPool)
		eventRepo = repositories.NewRedisEventRepository(redisClient)
	}

	messageService := services.NewMessageService(cfg.ContractAddress, messageRepo, eventRepo)
	authService := services.NewAuthService(
		repositories.NewRedisChallengeRepository(redisClient),
		repositories.NewRedisSessionRepository(redisClient),
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.ChallengeTTL,
		cfg.ChainID,
	)

	deployed := loadDeployments(ctx, cfg)
	router := handlers.NewRouter(handlers.NewHandler(messageService, authService, deployed))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logrus.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logrus.WithFields(logrus.Fields{
		"port":     cfg.ServerPort,
		"contract": cfg.ContractAddress.Hex(),
		"chain_id": cfg.ChainID,
	}).Info("Starting server")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logrus.Fatalf("Server error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
}

// loadDeployments reads the deployment file and makes sure the contract this
// server hosts is listed under its own chain id.
func loadDeployments(ctx context.Context, cfg *config.Config) deployments.Map {
	deployed, err := deployments.NewLoader(cfg.DeploymentsFile, nil).Load(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"file":  cfg.DeploymentsFile,
			"error": err.Error(),
		}).Warn("Deployment file unavailable, serving only this contract")
		deployed = deployments.Map{}
	}

	network := strconv.FormatUint(cfg.ChainID, 10)
	if existing, ok := deployed[network]; ok && existing != cfg.ContractAddress {
		logrus.WithFields(logrus.Fields{
			"network":  network,
			"file":     existing.Hex(),
			"contract": cfg.ContractAddress.Hex(),
		}).Warn("Deployment file disagrees with CONTRACT_ADDRESS, using CONTRACT_ADDRESS")
	}
	deployed[network] = cfg.ContractAddress
	return deployed
}
