package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "craftcv"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CRAFTCV_DB_DSN"
	EnvDBHost = "CRAFTCV_DB_HOST"
	EnvDBUser = "CRAFTCV_DB_USER"
	EnvDBName = "CRAFTCV_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	MoMo         MoMoConfig
	VNPay        VNPayConfig
	Reconcile    ReconcileConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"CRAFTCV_APP_ENV" required:"true"`
	Port         string `envconfig:"CRAFTCV_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRAFTCV_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRAFTCV_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CRAFTCV_DB_DSN"`
	Driver string `envconfig:"CRAFTCV_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRAFTCV_DB_HOST"`
	LegacyPort     int    `envconfig:"CRAFTCV_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRAFTCV_DB_USER"`
	LegacyPassword string `envconfig:"CRAFTCV_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRAFTCV_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRAFTCV_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRAFTCV_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRAFTCV_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRAFTCV_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRAFTCV_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRAFTCV_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CRAFTCV_REDIS_ADDR"`
	Password     string        `envconfig:"CRAFTCV_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRAFTCV_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRAFTCV_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRAFTCV_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRAFTCV_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRAFTCV_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRAFTCV_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CRAFTCV_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CRAFTCV_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CRAFTCV_JWT_EXPIRATION_MINUTES" default:"60"`
}

// MoMoConfig carries the push-provider credentials and endpoints.
type MoMoConfig struct {
	PartnerCode    string        `envconfig:"CRAFTCV_MOMO_PARTNER_CODE" required:"true"`
	AccessKey      string        `envconfig:"CRAFTCV_MOMO_ACCESS_KEY" required:"true"`
	SecretKey      string        `envconfig:"CRAFTCV_MOMO_SECRET_KEY" required:"true"`
	Endpoint       string        `envconfig:"CRAFTCV_MOMO_ENDPOINT" default:"https://test-payment.momo.vn"`
	IPNURL         string        `envconfig:"CRAFTCV_MOMO_IPN_URL" required:"true"`
	RedirectURL    string        `envconfig:"CRAFTCV_MOMO_REDIRECT_URL" required:"true"`
	RequestTimeout time.Duration `envconfig:"CRAFTCV_MOMO_REQUEST_TIMEOUT" default:"10s"`
}

// VNPayConfig carries the redirect-capture provider credentials.
type VNPayConfig struct {
	TMNCode    string `envconfig:"CRAFTCV_VNPAY_TMN_CODE" required:"true"`
	HashSecret string `envconfig:"CRAFTCV_VNPAY_HASH_SECRET" required:"true"`
	PayURL     string `envconfig:"CRAFTCV_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
}

// ReconcileConfig tunes the interactive poller and the background sweeper.
type ReconcileConfig struct {
	PollInterval          time.Duration `envconfig:"CRAFTCV_RECONCILE_POLL_INTERVAL" default:"5s"`
	PollAttempts          int           `envconfig:"CRAFTCV_RECONCILE_POLL_ATTEMPTS" default:"12"`
	SweepInterval         time.Duration `envconfig:"CRAFTCV_RECONCILE_SWEEP_INTERVAL" default:"1m"`
	StaleAfter            time.Duration `envconfig:"CRAFTCV_RECONCILE_STALE_AFTER" default:"2m"`
	SweepBatchSize        int           `envconfig:"CRAFTCV_RECONCILE_SWEEP_BATCH_SIZE" default:"50"`
	LockTTL               time.Duration `envconfig:"CRAFTCV_RECONCILE_LOCK_TTL" default:"90s"`
	WebhookIdempotencyTTL time.Duration `envconfig:"CRAFTCV_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRAFTCV_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
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
