package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/cipherchat")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, uint64(31337), cfg.ChainID)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), cfg.ContractAddress)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfig_InvalidContract(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONTRACT_ADDRESS", "not-an-address")

	_, err := LoadConfig()

	require.Error(t, err)
}

func TestLoadConfig_InvalidExpiry(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_EXPIRY", "tomorrow")

	_, err := LoadConfig()

	require.Error(t, err)
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("CHAT_NETWORK", "11155111")
	t.Setenv("CHAT_LOCAL_DB", "/tmp/chat.db")

	cfg, err := LoadClientConfig()

	require.NoError(t, err)
	assert.Equal(t, "11155111", cfg.Network)
	assert.Equal(t, "/tmp/chat.db", cfg.LocalDB)
	assert.Equal(t, "http://localhost:8080", cfg.RPCURL)
}
