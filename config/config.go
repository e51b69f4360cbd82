// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type StripeConfig struct {
	SecretKey  string
	PublicKey  string
	WebhookKey string
	ProductID  string
	PriceID    string
}

// Enabled reports whether the first plan is gated behind checkout.
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != "" && s.PriceID != ""
}

type LLMConfig struct {
	// Provider is "openai" (go-openai) or "openai-go" (official SDK).
	Provider  string
	BaseURL   string
	Model     string
	APIKeys   string
	MaxTokens int
	// Timeout bounds one provider request; GenerationTimeout bounds a whole
	// generation including rotation across keys.
	Timeout           time.Duration
	GenerationTimeout time.Duration
	// Extra message fragments mapped onto auth and quota failures.
	AuthPatterns  []string
	QuotaPatterns []string
}

type StorageConfig struct {
	// Driver is one of file, sqlite, postgres, redis, memory.
	Driver     string
	Dir        string
	SQLitePath string
	KeyPrefix  string
}

type Config struct {
	Env      string
	Telegram struct {
		Token string
		Debug bool
	}
	LLM     LLMConfig
	Storage StorageConfig
	DB      DBConfig
	Redis   RedisConfig
	Stripe  StripeConfig
	Server  struct {
		Port string
	}
	ShutdownTimeout time.Duration
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.fitgenius")

	setDefaults(v)

	// LLM.APIKeys <- LLM_APIKEYS, and so on
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			envValue := os.Getenv(envVar)
			if envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Env", "production")
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("Telegram.Token", "")
	v.SetDefault("Telegram.Debug", false)
	v.SetDefault("LLM.Provider", "openai")
	v.SetDefault("LLM.BaseURL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("LLM.Model", "gemini-2.5-flash")
	v.SetDefault("LLM.APIKeys", "")
	v.SetDefault("LLM.MaxTokens", 8000)
	v.SetDefault("LLM.Timeout", 2*time.Minute)
	v.SetDefault("LLM.GenerationTimeout", 6*time.Minute)
	v.SetDefault("LLM.AuthPatterns", []string{})
	v.SetDefault("LLM.QuotaPatterns", []string{})
	v.SetDefault("Storage.Driver", "file")
	v.SetDefault("Storage.Dir", "data")
	v.SetDefault("Storage.SQLitePath", "fitgenius.db")
	v.SetDefault("Storage.KeyPrefix", "fitgenius_data_v4")
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.User", "postgres")
	v.SetDefault("DB.Password", "postgres")
	v.SetDefault("DB.DBName", "fitgenius")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)
	v.SetDefault("Redis.KeyPrefix", "")
	v.SetDefault("Stripe.SecretKey", "")
	v.SetDefault("Stripe.PublicKey", "")
	v.SetDefault("Stripe.WebhookKey", "")
	v.SetDefault("Stripe.ProductID", "")
	v.SetDefault("Stripe.PriceID", "")
}

// bindLegacyEnv keeps the flat variable names from the .env example working.
func bindLegacyEnv(v *viper.Viper) {
	binds := map[string]string{
		"Telegram.Token":    "TELEGRAM_TOKEN",
		"LLM.Model":         "LLM_MODEL",
		"LLM.BaseURL":       "LLM_BASE_URL",
		"Storage.Driver":    "STORAGE_DRIVER",
		"DB.Host":           "DB_HOST",
		"DB.Port":           "DB_PORT",
		"DB.User":           "DB_USER",
		"DB.Password":       "DB_PASSWORD",
		"DB.DBName":         "DB_NAME",
		"DB.SSLMode":        "DB_SSL_MODE",
		"Redis.Addr":        "REDIS_ADDR",
		"Stripe.SecretKey":  "STRIPE_SECRET_KEY",
		"Stripe.PublicKey":  "STRIPE_PUBLIC_KEY",
		"Stripe.WebhookKey": "STRIPE_WEBHOOK_KEY",
		"Stripe.ProductID":  "STRIPE_PRODUCT_ID",
		"Stripe.PriceID":    "STRIPE_PRICE_ID",
		"Server.Port":       "SERVER_PORT",
	}
	for key, env := range binds {
		_ = v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
	// API_KEYS is the comma separated multi-key form
	_ = v.BindEnv("LLM.APIKeys", "LLM_APIKEYS", "LLM_API_KEYS", "API_KEYS", "API_KEY")
	_ = v.BindEnv("LLM.GenerationTimeout", "LLM_GENERATIONTIMEOUT", "LLM_GENERATION_TIMEOUT")
}
