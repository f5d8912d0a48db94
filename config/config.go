package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Stripe        StripeConfig
	OpenAI        OpenAIConfig
	Email         EmailConfig
	Voice         VoiceConfig
	Storage       StorageConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
	Cache         CacheConfig
	UserSession   UserSessionConfig
	Admin         AdminConfig
	Entitlement   EntitlementConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	BaseURL        string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	ProPriceID       string
	SuccessURL       string
	CancelURL        string
	CheckoutTimeout  int      // seconds; the client aborts checkout creation past this
	BlockedHosts     []string // known test/demo checkout hosts, rejected as misconfiguration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type EmailConfig struct {
	APIKey     string
	BaseURL    string
	FromEmail  string
	FromName   string
	AdminEmail string
}

type VoiceConfig struct {
	APIKey  string
	BaseURL string
	AgentID string
}

type StorageConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Endpoint        string
	Region          string
}

type LoggingConfig struct {
	Level string
	Dir   string
}

type ObservabilityConfig struct {
	OTLPEndpoint      string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

type CacheConfig struct {
	DiscountTTLSeconds int // Discount-code cache TTL in seconds
}

type UserSessionConfig struct {
	JWTSecret            string
	JWTIssuer            string
	SessionTTLHours      int
	LoginTokenTTLMinutes int
	CookieDomain         string
	CookieSecure         bool
}

type AdminConfig struct {
	AllowedEmails []string
	PasswordHash  string // bcrypt hash shared by admin accounts
}

type EntitlementConfig struct {
	MockSessionLimit  int // full_mock sessions per rolling 30-day window
	AudioSessionLimit int // voice_mock sessions per rolling 30-day window
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("PORT", "8081")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("BASE_URL", "https://talendro.com")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "https://talendro.com,https://www.talendro.com")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "")
	v.SetDefault("O11Y_BE_SERVICE_NAME", "talendro-api")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "talendro")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "talendro-api")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,alloc_objects,goroutines,mutex,block")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)
	v.SetDefault("DISCOUNT_CACHE_TTL", 300) // 5 minutes in seconds
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com")
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("SENDGRID_BASE_URL", "https://api.sendgrid.com")
	v.SetDefault("SENDGRID_FROM_EMAIL", "coach@talendro.com")
	v.SetDefault("SENDGRID_FROM_NAME", "Talendro Interview Coach")
	v.SetDefault("VOICE_BASE_URL", "https://api.elevenlabs.io")
	v.SetDefault("STRIPE_CHECKOUT_TIMEOUT_SECONDS", 20)
	v.SetDefault("STRIPE_BLOCKED_CHECKOUT_HOSTS", "checkout.stripe.dev,demo.checkout.stripe.com")
	v.SetDefault("PRO_MOCK_SESSION_LIMIT", 6)
	v.SetDefault("PRO_AUDIO_SESSION_LIMIT", 4)

	// User session defaults
	v.SetDefault("JWT_ISSUER", "talendro-api")
	v.SetDefault("SESSION_TTL_HOURS", 24)
	v.SetDefault("LOGIN_TOKEN_TTL_MINUTES", 15)
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			BaseURL:        v.GetString("BASE_URL"),
			AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			MaxConns: 20,
			MinConns: 2,
		},
		Stripe: StripeConfig{
			SecretKey:       v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:   v.GetString("STRIPE_WEBHOOK_SECRET"),
			ProPriceID:      v.GetString("STRIPE_PRO_PRICE_ID"),
			SuccessURL:      v.GetString("STRIPE_SUCCESS_URL"),
			CancelURL:       v.GetString("STRIPE_CANCEL_URL"),
			CheckoutTimeout: v.GetInt("STRIPE_CHECKOUT_TIMEOUT_SECONDS"),
			BlockedHosts:    splitAndTrim(v.GetString("STRIPE_BLOCKED_CHECKOUT_HOSTS")),
		},
		OpenAI: OpenAIConfig{
			APIKey:  v.GetString("OPENAI_API_KEY"),
			BaseURL: v.GetString("OPENAI_BASE_URL"),
			Model:   v.GetString("OPENAI_MODEL"),
		},
		Email: EmailConfig{
			APIKey:     v.GetString("SENDGRID_API_KEY"),
			BaseURL:    v.GetString("SENDGRID_BASE_URL"),
			FromEmail:  v.GetString("SENDGRID_FROM_EMAIL"),
			FromName:   v.GetString("SENDGRID_FROM_NAME"),
			AdminEmail: v.GetString("ADMIN_SUPPORT_EMAIL"),
		},
		Voice: VoiceConfig{
			APIKey:  v.GetString("VOICE_API_KEY"),
			BaseURL: v.GetString("VOICE_BASE_URL"),
			AgentID: v.GetString("VOICE_AGENT_ID"),
		},
		Storage: StorageConfig{
			AccessKeyID:     v.GetString("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("STORAGE_SECRET_ACCESS_KEY"),
			BucketName:      v.GetString("STORAGE_BUCKET_NAME"),
			Endpoint:        v.GetString("STORAGE_ENDPOINT"),
			Region:          v.GetString("STORAGE_REGION"),
		},
		Logging: LoggingConfig{
			Level: v.GetString("LOG_LEVEL"),
			Dir:   v.GetString("LOG_DIR"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint:      v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
		Cache: CacheConfig{
			DiscountTTLSeconds: v.GetInt("DISCOUNT_CACHE_TTL"),
		},
		UserSession: UserSessionConfig{
			JWTSecret:            v.GetString("JWT_SECRET"),
			JWTIssuer:            v.GetString("JWT_ISSUER"),
			SessionTTLHours:      v.GetInt("SESSION_TTL_HOURS"),
			LoginTokenTTLMinutes: v.GetInt("LOGIN_TOKEN_TTL_MINUTES"),
			CookieDomain:         v.GetString("COOKIE_DOMAIN"),
			CookieSecure:         v.GetBool("COOKIE_SECURE"),
		},
		Admin: AdminConfig{
			AllowedEmails: splitAndTrim(v.GetString("ADMIN_ALLOWED_EMAILS")),
			PasswordHash:  v.GetString("ADMIN_PASSWORD_HASH"),
		},
		Entitlement: EntitlementConfig{
			MockSessionLimit:  v.GetInt("PRO_MOCK_SESSION_LIMIT"),
			AudioSessionLimit: v.GetInt("PRO_AUDIO_SESSION_LIMIT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// IsDevelopment returns true when running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development"
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
