// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"crowdgate/pkg/domain"
)

// Server captures process-level configuration.
type Server struct {
	Addr           string
	RequestTimeout time.Duration

	// DatabaseURL enables the PostgreSQL ledger store when set; empty runs
	// on the in-memory store.
	DatabaseURL string

	Redis RedisConfig
	Kafka KafkaConfig

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	TokenTTL      time.Duration

	OperatorUser         string
	OperatorPasswordHash string

	RateLimit       int
	RateLimitWindow time.Duration

	Sale SaleConfig
}

// RedisConfig configures the shared rate limit store. Empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers         []string
	ComplianceTopic string
	OperationsTopic string
}

// SaleConfig is the sale's launch configuration.
type SaleConfig struct {
	SaleAddress    common.Address
	Price          *big.Int
	StartTime      time.Time
	EndTime        time.Time
	Wallet         common.Address
	TeamWallet     common.Address
	CompanyWallet  common.Address
	AdvisorsWallet common.Address
	TotalTokens    *big.Int
	TeamShare      *big.Int
	TokenCap       *big.Int
	Signers        []common.Address
}

// FromEnv builds a Server config from environment variables. Sale parameters
// are required; everything else has a development default.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:           envOr("CROWDGATE_ADDR", ":8080"),
		RequestTimeout: envDuration("CROWDGATE_REQUEST_TIMEOUT", 15*time.Second),
		DatabaseURL:    os.Getenv("CROWDGATE_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CROWDGATE_REDIS_URL"),
			PoolSize:     envInt("CROWDGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("CROWDGATE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("CROWDGATE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("CROWDGATE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("CROWDGATE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			ComplianceTopic: envOr("CROWDGATE_KAFKA_COMPLIANCE_TOPIC", "crowdgate.audit.compliance"),
			OperationsTopic: envOr("CROWDGATE_KAFKA_OPERATIONS_TOPIC", "crowdgate.audit.operations"),
		},
		JWTSigningKey:        envOr("CROWDGATE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:            envOr("CROWDGATE_JWT_ISSUER", "crowdgate"),
		JWTAudience:          envOr("CROWDGATE_JWT_AUDIENCE", "crowdgate"),
		TokenTTL:             envDuration("CROWDGATE_TOKEN_TTL", time.Hour),
		OperatorUser:         os.Getenv("CROWDGATE_OPERATOR_USER"),
		OperatorPasswordHash: os.Getenv("CROWDGATE_OPERATOR_PASSWORD_HASH"),
		RateLimit:            envInt("CROWDGATE_RATE_LIMIT", 30),
		RateLimitWindow:      envDuration("CROWDGATE_RATE_LIMIT_WINDOW", time.Minute),
	}

	if brokers := os.Getenv("CROWDGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	sale, err := saleFromEnv()
	if err != nil {
		return Server{}, err
	}
	cfg.Sale = sale
	return cfg, nil
}

func saleFromEnv() (SaleConfig, error) {
	var sale SaleConfig
	var err error

	if sale.SaleAddress, err = requiredAddress("CROWDGATE_SALE_ADDRESS"); err != nil {
		return sale, err
	}
	if sale.Wallet, err = requiredAddress("CROWDGATE_SALE_WALLET"); err != nil {
		return sale, err
	}
	sale.TeamWallet = optionalAddress("CROWDGATE_SALE_TEAM_WALLET")
	sale.CompanyWallet = optionalAddress("CROWDGATE_SALE_COMPANY_WALLET")
	sale.AdvisorsWallet = optionalAddress("CROWDGATE_SALE_ADVISORS_WALLET")

	if sale.Price, err = requiredAmount("CROWDGATE_SALE_PRICE"); err != nil {
		return sale, err
	}
	if sale.TotalTokens, err = requiredAmount("CROWDGATE_SALE_TOTAL_TOKENS"); err != nil {
		return sale, err
	}
	if sale.TeamShare, err = requiredAmount("CROWDGATE_SALE_TEAM_SHARE"); err != nil {
		return sale, err
	}
	if sale.TokenCap, err = requiredAmount("CROWDGATE_TOKEN_CAP"); err != nil {
		return sale, err
	}

	if sale.StartTime, err = requiredTime("CROWDGATE_SALE_START"); err != nil {
		return sale, err
	}
	if sale.EndTime, err = requiredTime("CROWDGATE_SALE_END"); err != nil {
		return sale, err
	}

	raw := os.Getenv("CROWDGATE_KYC_SIGNERS")
	if raw == "" {
		return sale, fmt.Errorf("CROWDGATE_KYC_SIGNERS is required")
	}
	for _, part := range strings.Split(raw, ",") {
		addr, err := domain.ParseAddress(strings.TrimSpace(part))
		if err != nil {
			return sale, fmt.Errorf("CROWDGATE_KYC_SIGNERS: %w", err)
		}
		sale.Signers = append(sale.Signers, addr)
	}

	return sale, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func requiredAddress(key string) (common.Address, error) {
	v := os.Getenv(key)
	if v == "" {
		return common.Address{}, fmt.Errorf("%s is required", key)
	}
	addr, err := domain.ParseAddress(v)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", key, err)
	}
	return addr, nil
}

func optionalAddress(key string) common.Address {
	v := os.Getenv(key)
	if v == "" {
		return common.Address{}
	}
	addr, err := domain.ParseAddress(v)
	if err != nil {
		return common.Address{}
	}
	return addr
}

func requiredAmount(key string) (*big.Int, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	amount, err := domain.ParseAmount(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return amount, nil
}

func requiredTime(key string) (time.Time, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}
