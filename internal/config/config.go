// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	HTTPAddr  string
	GRPCAddr  string
	DBDriver  string // "memory", "postgres"
	DB        DBConfig
	Redis     RedisConfig
	Session   SessionConfig
	Solana    SolanaConfig
	Security  SecurityConfig
	Telegram  TelegramConfig
	Agent     AgentConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	Addrs      []string
	Password   string
	DB         int
	UseCluster bool
}

type SessionConfig struct {
	Backend string // "memory", "redis"
	TTL     time.Duration
}

type SolanaConfig struct {
	Network        string // mainnet-beta, devnet, testnet
	RPCURL         string
	Commitment     string
	ConfirmTimeout time.Duration
	RPCTimeout     time.Duration
	PollInterval   time.Duration
	ExplorerBase   string
	JupiterURL     string
}

type SecurityConfig struct {
	VaultProvider string // "env", "file"
	FileVaultDir  string
	FileVaultKey  string
	BcryptCost    int
}

type TelegramConfig struct {
	Enabled     bool
	BotToken    string
	WebhookURL  string
	PollTimeout int
	Debug       bool
}

type AgentConfig struct {
	RemoteURL     string
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string
	MaxToolRounds int
	Timeout       time.Duration
	ThreadTTL     time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RateLimitConfig struct {
	Enabled       bool
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load(logger *zap.Logger) (*Config, error) {
	// ============================================================================
	// Solana Configuration
	// ============================================================================
	solNetwork := getEnv("SOLANA_NETWORK", "mainnet-beta")
	solRPCURL := getEnv("SOLANA_RPC_URL", "")

	// Public endpoints when no RPC URL is set
	if solRPCURL == "" {
		switch solNetwork {
		case "devnet":
			solRPCURL = "https://api.devnet.solana.com"
		case "testnet":
			solRPCURL = "https://api.testnet.solana.com"
		default:
			solRPCURL = "https://api.mainnet-beta.solana.com"
		}
	}

	explorerBase := getEnv("EXPLORER_BASE_URL", "https://solscan.io/tx/")

	// ============================================================================
	// Chat transport and agent
	// ============================================================================
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramEnabled := getEnvAsBool("TELEGRAM_ENABLED", botToken != "")

	agentRemote := os.Getenv("AI_AGENT_API_URL")
	openAIKey := os.Getenv("OPENAI_API_KEY")

	origins := []string{"http://localhost:3000", "http://localhost:3001", "https://vortexus.vercel.app"}
	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		origins = append(origins, frontend)
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":9090"),
		DBDriver: getEnv("DB_DRIVER", "memory"),
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            os.Getenv("DB_USER"),
			Password:        os.Getenv("DB_PASSWORD"),
			Name:            os.Getenv("DB_NAME"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addrs:      getEnvAsList("REDIS_ADDR", []string{"localhost:6379"}),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvAsInt("REDIS_DB", 0),
			UseCluster: getEnvAsBool("REDIS_CLUSTER", false),
		},
		Session: SessionConfig{
			Backend: getEnv("SESSION_BACKEND", "memory"),
			TTL:     getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		},
		Solana: SolanaConfig{
			Network:        solNetwork,
			RPCURL:         solRPCURL,
			Commitment:     getEnv("SOLANA_COMMITMENT", "confirmed"),
			ConfirmTimeout: getEnvAsDuration("SOLANA_CONFIRM_TIMEOUT", 90*time.Second),
			RPCTimeout:     getEnvAsDuration("SOLANA_RPC_TIMEOUT", 15*time.Second),
			PollInterval:   getEnvAsDuration("SOLANA_POLL_INTERVAL", 2*time.Second),
			ExplorerBase:   explorerBase,
			JupiterURL:     getEnv("JUPITER_API_URL", "https://quote-api.jup.ag/v6"),
		},
		Security: SecurityConfig{
			VaultProvider: getEnv("VAULT_PROVIDER", "env"),
			FileVaultDir:  getEnv("FILE_VAULT_DIR", "./vault"),
			FileVaultKey:  os.Getenv("FILE_VAULT_KEY"),
			BcryptCost:    getEnvAsInt("BCRYPT_COST", 10),
		},
		Telegram: TelegramConfig{
			Enabled:     telegramEnabled,
			BotToken:    botToken,
			WebhookURL:  os.Getenv("TELEGRAM_WEBHOOK_URL"),
			PollTimeout: getEnvAsInt("TELEGRAM_POLL_TIMEOUT", 60),
			Debug:       getEnvAsBool("TELEGRAM_DEBUG", false),
		},
		Agent: AgentConfig{
			RemoteURL:     agentRemote,
			OpenAIKey:     openAIKey,
			OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxToolRounds: getEnvAsInt("AGENT_MAX_TOOL_ROUNDS", 5),
			Timeout:       getEnvAsDuration("AGENT_TIMEOUT", 60*time.Second),
			ThreadTTL:     getEnvAsDuration("AGENT_THREAD_TTL", 7*24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TRANSACTION_TOPIC", "wallet.transactions"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("PROMPT_RATE_LIMIT_ENABLED", false),
			Limit:         getEnvAsInt("PROMPT_RATE_LIMIT", 30),
			Window:        getEnvAsDuration("PROMPT_RATE_WINDOW", time.Minute),
			BlockDuration: getEnvAsDuration("PROMPT_RATE_BLOCK", 5*time.Minute),
		},
		CORS: CORSConfig{AllowedOrigins: origins},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		zap.String("solana_network", cfg.Solana.Network),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("session_backend", cfg.Session.Backend),
		zap.Bool("telegram_enabled", cfg.Telegram.Enabled),
		zap.Bool("telegram_webhook", cfg.Telegram.WebhookURL != ""),
		zap.Bool("agent_remote", cfg.Agent.RemoteURL != ""),
		zap.Bool("kafka_enabled", len(cfg.Kafka.Brokers) > 0))

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "memory":
	case "postgres":
		if c.DB.User == "" || c.DB.Name == "" {
			return fmt.Errorf("DB_USER and DB_NAME are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.Session.Backend)
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when telegram is enabled")
	}
	if c.Agent.RemoteURL == "" && c.Agent.OpenAIKey == "" {
		return fmt.Errorf("either AI_AGENT_API_URL or OPENAI_API_KEY must be set")
	}
	if c.Security.VaultProvider == "file" && c.Security.FileVaultKey == "" {
		return fmt.Errorf("FILE_VAULT_KEY is required for the file vault provider")
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
