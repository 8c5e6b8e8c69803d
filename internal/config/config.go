package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewMailSettingsHolder),
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	AppBaseURL       string
	HTTPAddr         string
	AuthCookieSecure bool
	NodeID           int64

	InternalAPIToken  string
	SessionRelayToken string
	SessionTTL        time.Duration

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Mail     MailConfig
	Accept   AcceptConfig
	Dispatch DispatchConfig
}

// MailConfig holds the mail relay credentials and endpoints.
type MailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Sender       string
	TokenURL     string
	SendURL      string
	SettingsPath string
}

// AcceptConfig controls the acceptance page behavior.
type AcceptConfig struct {
	RedirectDelay time.Duration
	SignInPath    string
	ListingPath   string
	PageTTL       time.Duration
	MarkerTTL     time.Duration
}

// DispatchConfig controls the invite outbox dispatcher.
type DispatchConfig struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	LockTTL     time.Duration
}

const (
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	DefaultSendURL  = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	environment := v.GetString("ENVIRONMENT")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = v.GetBool("AUTH_COOKIE_SECURE")
	}

	return Config{
		AppName:          v.GetString("APP_SERVICE"),
		AppVersion:       v.GetString("APP_VERSION"),
		Environment:      environment,
		AppBaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("APP_BASE_URL")), "/"),
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		AuthCookieSecure: authCookieSecure,
		NodeID:           v.GetInt64("NODE_ID"),

		InternalAPIToken:  strings.TrimSpace(v.GetString("INTERNAL_API_TOKEN")),
		SessionRelayToken: strings.TrimSpace(v.GetString("SESSION_RELAY_TOKEN")),
		SessionTTL:        v.GetDuration("SESSION_TTL"),

		OTLPEndpoint:     v.GetString("OTLP_ENDPOINT"),

		DBType:            v.GetString("DATABASE_TYPE"),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetInt("DATABASE_CONN_MAX_IDLE_TIME"),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		Mail: MailConfig{
			ClientID:     strings.TrimSpace(v.GetString("MAIL_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(v.GetString("MAIL_CLIENT_SECRET")),
			RefreshToken: strings.TrimSpace(v.GetString("MAIL_REFRESH_TOKEN")),
			Sender:       strings.TrimSpace(v.GetString("MAIL_SENDER")),
			TokenURL:     strings.TrimSpace(v.GetString("MAIL_TOKEN_URL")),
			SendURL:      strings.TrimSpace(v.GetString("MAIL_SEND_URL")),
			SettingsPath: strings.TrimSpace(v.GetString("MAIL_SETTINGS_PATH")),
		},
		Accept: AcceptConfig{
			RedirectDelay: v.GetDuration("ACCEPT_REDIRECT_DELAY"),
			SignInPath:    v.GetString("ACCEPT_SIGN_IN_PATH"),
			ListingPath:   v.GetString("ACCEPT_LISTING_PATH"),
			PageTTL:       v.GetDuration("ACCEPT_PAGE_TTL"),
			MarkerTTL:     v.GetDuration("ACCEPT_MARKER_TTL"),
		},
		Dispatch: DispatchConfig{
			Enabled:     v.GetBool("DISPATCH_ENABLED"),
			Interval:    v.GetDuration("DISPATCH_INTERVAL"),
			BatchSize:   v.GetInt("DISPATCH_BATCH_SIZE"),
			MaxAttempts: v.GetInt("DISPATCH_MAX_ATTEMPTS"),
			LockTTL:     v.GetDuration("DISPATCH_LOCK_TTL"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_SERVICE", "eventcrew")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("AUTH_COOKIE_SECURE", false)
	v.SetDefault("NODE_ID", 1)
	v.SetDefault("OTLP_ENDPOINT", "localhost:4318")

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "eventcrew")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 20)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 1800)
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", 300)

	v.SetDefault("SESSION_TTL", 12*time.Hour)

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("MAIL_TOKEN_URL", DefaultTokenURL)
	v.SetDefault("MAIL_SEND_URL", DefaultSendURL)

	v.SetDefault("ACCEPT_REDIRECT_DELAY", 2*time.Second)
	v.SetDefault("ACCEPT_SIGN_IN_PATH", "/auth/sign-in")
	v.SetDefault("ACCEPT_LISTING_PATH", "/events")
	v.SetDefault("ACCEPT_PAGE_TTL", 30*time.Minute)
	v.SetDefault("ACCEPT_MARKER_TTL", 24*time.Hour)

	v.SetDefault("DISPATCH_ENABLED", true)
	v.SetDefault("DISPATCH_INTERVAL", 5*time.Second)
	v.SetDefault("DISPATCH_BATCH_SIZE", 25)
	v.SetDefault("DISPATCH_MAX_ATTEMPTS", 5)
	v.SetDefault("DISPATCH_LOCK_TTL", 30*time.Second)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}
