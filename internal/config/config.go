package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"studyforge/internal/domain"
	"studyforge/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Provider types understood by the adapter factory.
const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderLorem      = "lorem"
)

type Config struct {
	Server     ServerConfig                              `mapstructure:"server"`
	Logger     LoggerConfig                              `mapstructure:"logger"`
	Redis      RedisConfig                               `mapstructure:"redis"`
	Database   DatabaseConfig                            `mapstructure:"database"`
	Auth       AuthConfig                                `mapstructure:"auth"`
	Generation GenerationConfig                          `mapstructure:"generation"`
	Validation map[domain.ItemKind]validation.Thresholds `mapstructure:"validation" validate:"dive"`
	Preamble   PreambleConfig                            `mapstructure:"preamble"`
	Providers  []ProviderConfig                          `mapstructure:"providers" validate:"dive"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Env   string `mapstructure:"env"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// DatabaseConfig points at the sqlite file holding run diagnostics. An empty
// path disables persistence.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig enables bearer-token auth when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type GenerationConfig struct {
	Backoff          time.Duration `mapstructure:"backoff" validate:"gte=0"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	MinAttemptWindow time.Duration `mapstructure:"min_attempt_window" validate:"gte=0"`
	CountMin         int           `mapstructure:"count_min" validate:"gt=0"`
	CountMax         int           `mapstructure:"count_max" validate:"gtefield=CountMin"`
	MaxSourceChars   int           `mapstructure:"max_source_chars" validate:"gt=0"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	TokensPerItem    int           `mapstructure:"tokens_per_item" validate:"gt=0"`
}

type PreambleConfig struct {
	ExtraRulesFile string `mapstructure:"extra_rules_file"`
}

type ProviderConfig struct {
	ID              string        `mapstructure:"id" validate:"required"`
	Type            string        `mapstructure:"type" validate:"required,oneof=gemini openai anthropic openrouter ollama lorem"`
	Model           string        `mapstructure:"model"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Priority        int           `mapstructure:"priority"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens" validate:"gte=0"`
	Local           bool          `mapstructure:"local"`
	// Serialize forces one call at a time for models that are not safe for
	// concurrent use.
	Serialize bool `mapstructure:"serialize"`
}

// IsLocal reports whether the provider runs in-process or on the host.
func (p ProviderConfig) IsLocal() bool {
	return p.Local || p.Type == ProviderOllama || p.Type == ProviderLorem
}

// apiKeyEnv maps provider types onto the environment variable holding their key.
var apiKeyEnv = map[string]string{
	ProviderGemini:     "GEMINI_API_KEY",
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderAnthropic:  "ANTHROPIC_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
}

var validate = validator.New()

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Add config paths based on environment
	if os.Getenv("ENV") == "test" {
		v.AddConfigPath("../../configs")
		v.AddConfigPath("../../")
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	return load(v)
}

// LoadConfigFrom reads configuration from an explicit file.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if configFile := v.ConfigFileUsed(); configFile != "" {
		absPath, _ := filepath.Abs(configFile)
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", absPath)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "development")
	v.SetDefault("redis.db", 0)
	v.SetDefault("generation.backoff", "5s")
	v.SetDefault("generation.request_timeout", "90s")
	v.SetDefault("generation.min_attempt_window", "500ms")
	v.SetDefault("generation.count_min", 1)
	v.SetDefault("generation.count_max", 20)
	v.SetDefault("generation.max_source_chars", 4000)
	v.SetDefault("generation.cache_ttl", "1h")
	v.SetDefault("generation.tokens_per_item", 120)
}

// DefaultProviders is the catalog used when the file lists none. Remote
// entries without a key are skipped at startup.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{ID: "gemini", Type: ProviderGemini, Model: "gemini-2.0-flash", Priority: 1, Timeout: 30 * time.Second, MaxRetries: 2, MaxOutputTokens: 2048},
		{ID: "openai", Type: ProviderOpenAI, Model: "gpt-4o-mini", Priority: 2, Timeout: 30 * time.Second, MaxRetries: 2, MaxOutputTokens: 2048},
		{ID: "anthropic", Type: ProviderAnthropic, Model: "claude-3-5-haiku-latest", Priority: 3, Timeout: 30 * time.Second, MaxRetries: 2, MaxOutputTokens: 2048},
		{ID: "openrouter", Type: ProviderOpenRouter, Model: "meta-llama/llama-3.1-8b-instruct:free", BaseURL: "https://openrouter.ai/api/v1", Priority: 4, Timeout: 30 * time.Second, MaxRetries: 2, MaxOutputTokens: 2048},
		{ID: "ollama", Type: ProviderOllama, Model: "llama3.2", BaseURL: "http://localhost:11434", Priority: 10, Timeout: 60 * time.Second, MaxRetries: 1, MaxOutputTokens: 2048, Local: true, Serialize: true},
	}
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logger.Level = strings.ToLower(level)
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Logger.Env = env
	}
	if redisAddress := os.Getenv("REDIS_ADDRESS"); redisAddress != "" {
		cfg.Redis.Address = redisAddress
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.Redis.Password = redisPassword
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKey != "" {
			continue
		}
		if name, ok := apiKeyEnv[p.Type]; ok {
			p.APIKey = os.Getenv(name)
		}
	}
}

// Validate checks field constraints and provider id uniqueness.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("invalid config: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	for kind := range c.Validation {
		if !kind.Valid() {
			return fmt.Errorf("invalid config: unknown item kind %q in validation thresholds", kind)
		}
	}
	return nil
}

// CountBounds returns the accepted item-count range.
func (c *Config) CountBounds() validation.CountBounds {
	return validation.CountBounds{Min: c.Generation.CountMin, Max: c.Generation.CountMax}
}
