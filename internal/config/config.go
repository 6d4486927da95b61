package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	JWTExpiry       time.Duration
	ChallengeTTL    time.Duration
	ChainID         uint64
	ContractAddress common.Address
	DeploymentsFile string
	LogLevel        logrus.Level
}

// ClientConfig drives cmd/chatctl.
type ClientConfig struct {
	RPCURL      string
	Network     string
	Deployments string
	PrivateKey  string
	LocalDB     string
	LogLevel    logrus.Level
}

func LoadConfig() (*Config, error) {
	expiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "24h"))
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}
	challengeTTL, err := time.ParseDuration(getEnv("CHALLENGE_TTL", "5m"))
	if err != nil {
		return nil, errors.New("invalid CHALLENGE_TTL format")
	}
	chainID, err := strconv.ParseUint(getEnv("CHAIN_ID", "31337"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid CHAIN_ID format")
	}
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiry:       expiry,
		ChallengeTTL:    challengeTTL,
		ChainID:         chainID,
		DeploymentsFile: getEnv("DEPLOYMENTS_FILE", "deployments.json"),
		LogLevel:        level,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	contract := os.Getenv("CONTRACT_ADDRESS")
	if !common.IsHexAddress(contract) {
		return nil, errors.New("CONTRACT_ADDRESS must be a hex address")
	}
	cfg.ContractAddress = common.HexToAddress(contract)

	return cfg, nil
}

func LoadClientConfig() (*ClientConfig, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "warn"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &ClientConfig{
		RPCURL:      getEnv("CHAT_RPC_URL", "http://localhost:8080"),
		Network:     getEnv("CHAT_NETWORK", "31337"),
		Deployments: getEnv("CHAT_DEPLOYMENTS", "http://localhost:8080/v1/deployments"),
		PrivateKey:  os.Getenv("CHAT_PRIVATE_KEY"),
		LocalDB:     getEnv("CHAT_LOCAL_DB", home+"/.cipherchat.db"),
		LogLevel:    level,
	}, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
