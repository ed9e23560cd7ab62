package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	Admin         AdminConfig
	RateLimit     RateLimitConfig
	Stripe        StripeConfig
	SMTP          SMTPConfig
	Checkout      CheckoutConfig
	Subscriptions SubscriptionsConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ODDFELLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"ODDFELLOW_APP_PORT" required:"true"`
	SiteURL      string `envconfig:"ODDFELLOW_SITE_URL" default:"http://localhost:5173"`
	LogLevel     string `envconfig:"ODDFELLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ODDFELLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ODDFELLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	Driver string `envconfig:"ODDFELLOW_DB_DRIVER" default:"sqlite"`

	// Path is the sqlite database file. Ignored when Driver is postgres.
	Path string `envconfig:"ODDFELLOW_DB_PATH" default:"data/storefront.db"`

	DSN string `envconfig:"ODDFELLOW_DB_DSN"`

	LegacyHost     string `envconfig:"ODDFELLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"ODDFELLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ODDFELLOW_DB_USER"`
	LegacyPassword string `envconfig:"ODDFELLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"ODDFELLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"ODDFELLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ODDFELLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ODDFELLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ODDFELLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ODDFELLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ODDFELLOW_REDIS_URL" required:"true"`
	Password     string        `envconfig:"ODDFELLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"ODDFELLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ODDFELLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ODDFELLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ODDFELLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ODDFELLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ODDFELLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type AdminConfig struct {
	Token string `envconfig:"ODDFELLOW_ADMIN_TOKEN" required:"true"`
}

type RateLimitConfig struct {
	CheckoutWindow  time.Duration `envconfig:"ODDFELLOW_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit int           `envconfig:"ODDFELLOW_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"10"`
	WebhookWindow   time.Duration `envconfig:"ODDFELLOW_RATE_LIMIT_WEBHOOK_WINDOW" default:"1m"`
	WebhookLimit    int           `envconfig:"ODDFELLOW_RATE_LIMIT_WEBHOOK_LIMIT" default:"120"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"ODDFELLOW_STRIPE_API_KEY" required:"true"`
	WebhookSecret string `envconfig:"ODDFELLOW_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env           string `envconfig:"ODDFELLOW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SMTPConfig struct {
	Host        string `envconfig:"ODDFELLOW_SMTP_HOST"`
	Port        int    `envconfig:"ODDFELLOW_SMTP_PORT" default:"587"`
	Username    string `envconfig:"ODDFELLOW_SMTP_USERNAME"`
	Password    string `envconfig:"ODDFELLOW_SMTP_PASSWORD"`
	DefaultFrom string `envconfig:"ODDFELLOW_SMTP_FROM_EMAIL" default:"orders@oddfellowcoffee.com"`
}

// Enabled reports whether outbound email is configured. Email sends are
// skipped with a warning when it is not.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

type CheckoutConfig struct {
	LocalZip             string        `envconfig:"ODDFELLOW_LOCAL_ZIP" default:"74653"`
	FlatShippingCents    int64         `envconfig:"ODDFELLOW_FLAT_SHIPPING_CENTS" default:"599"`
	SessionTTL           time.Duration `envconfig:"ODDFELLOW_CHECKOUT_SESSION_TTL" default:"30m"`
	PendingOrderMaxAge   time.Duration `envconfig:"ODDFELLOW_PENDING_ORDER_MAX_AGE" default:"1h"`
	WebhookEventCacheTTL time.Duration `envconfig:"ODDFELLOW_WEBHOOK_EVENT_CACHE_TTL" default:"720h"`
}

type SubscriptionsConfig struct {
	FirstDeliveryLeadDays int           `envconfig:"ODDFELLOW_SUBSCRIPTION_FIRST_DELIVERY_LEAD_DAYS" default:"5"`
	ManageTokenSecret     string        `envconfig:"ODDFELLOW_SUBSCRIPTION_MANAGE_TOKEN_SECRET" required:"true"`
	ManageTokenTTL        time.Duration `envconfig:"ODDFELLOW_SUBSCRIPTION_MANAGE_TOKEN_TTL" default:"720h"`
}

type CronConfig struct {
	DigestHour    int           `envconfig:"ODDFELLOW_CRON_DIGEST_HOUR" default:"6"`
	TickInterval  time.Duration `envconfig:"ODDFELLOW_CRON_TICK_INTERVAL" default:"1m"`
	LockTTL       time.Duration `envconfig:"ODDFELLOW_CRON_LOCK_TTL" default:"5m"`
	DigestEnabled bool          `envconfig:"ODDFELLOW_CRON_DIGEST_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.Path
		}
		return nil
	}

	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
