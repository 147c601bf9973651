// Package config loads the solver's runtime configuration from a .env
// file and the process environment, following the teacher's
// ENV > .env file > defaults precedence.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config is every environment-derived setting the solver daemon needs.
// There are no hidden defaults beyond the ones listed here.
type Config struct {
	RPCURL               string
	PrivateKeyHex        string
	LatchHookAddress     common.Address
	PoolID               [32]byte
	Currency0            common.Address
	Currency1            common.Address
	PoolFee              uint32
	TickSpacing          int32
	SolverRewardsAddress common.Address
	HasRewardsAddress    bool
	CircuitDir           string
	PollInterval         time.Duration
	LogLevel             string
	MaxRetries           int
	RetryBaseDelay       time.Duration
	HealthAddr           string
}

// Load reads .env (if present) from envPath, then overlays process
// environment variables, and validates the required fields. envPath ==
// "" loads ".env" from the working directory; godotenv.Load failing to
// find a file is not an error.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		CircuitDir:     getEnv("CIRCUIT_DIR", "../circuits"),
		PollInterval:   time.Duration(getEnvInt("POLL_INTERVAL_MS", 12000)) * time.Millisecond,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxRetries:     getEnvInt("MAX_RETRIES", 5),
		RetryBaseDelay: time.Duration(getEnvInt("RETRY_BASE_DELAY_MS", 200)) * time.Millisecond,
		HealthAddr:     getEnv("HEALTH_ADDR", ":8090"),
	}

	cfg.RPCURL = os.Getenv("RPC_URL")
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("config: RPC_URL is required")
	}

	cfg.PrivateKeyHex = os.Getenv("PRIVATE_KEY")
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("config: PRIVATE_KEY is required")
	}

	hookStr := os.Getenv("LATCH_HOOK_ADDRESS")
	if !common.IsHexAddress(hookStr) {
		return nil, fmt.Errorf("config: LATCH_HOOK_ADDRESS is required and must be a valid address, got %q", hookStr)
	}
	cfg.LatchHookAddress = common.HexToAddress(hookStr)

	poolID, err := parseBytes32(os.Getenv("POOL_ID"))
	if err != nil {
		return nil, fmt.Errorf("config: POOL_ID: %w", err)
	}
	cfg.PoolID = poolID

	c0Str := os.Getenv("CURRENCY0")
	c1Str := os.Getenv("CURRENCY1")
	if !common.IsHexAddress(c0Str) || !common.IsHexAddress(c1Str) {
		return nil, fmt.Errorf("config: CURRENCY0 and CURRENCY1 must be valid addresses")
	}
	cfg.Currency0 = common.HexToAddress(c0Str)
	cfg.Currency1 = common.HexToAddress(c1Str)
	if strings.ToLower(cfg.Currency0.Hex()) >= strings.ToLower(cfg.Currency1.Hex()) {
		return nil, fmt.Errorf("config: CURRENCY0 must sort before CURRENCY1")
	}

	poolFee, err := strconv.ParseUint(os.Getenv("POOL_FEE"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("config: POOL_FEE must be an integer: %w", err)
	}
	cfg.PoolFee = uint32(poolFee)

	tickSpacing, err := strconv.ParseInt(os.Getenv("TICK_SPACING"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("config: TICK_SPACING must be an integer: %w", err)
	}
	cfg.TickSpacing = int32(tickSpacing)

	if rewardsStr := os.Getenv("SOLVER_REWARDS_ADDRESS"); rewardsStr != "" {
		if !common.IsHexAddress(rewardsStr) {
			return nil, fmt.Errorf("config: SOLVER_REWARDS_ADDRESS must be a valid address if set")
		}
		cfg.SolverRewardsAddress = common.HexToAddress(rewardsStr)
		cfg.HasRewardsAddress = true
	}

	return cfg, nil
}

func parseBytes32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}
