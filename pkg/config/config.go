package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every hub environment variable.
	EnvPrefix = "SARA_HUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Broker BrokerConfig
	Hub    HubConfig
	Bot    BotConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Broker.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SARA_HUB_APP_ENV" required:"true"`
	Port         string `envconfig:"SARA_HUB_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"SARA_HUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SARA_HUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SARA_HUB_DB_DSN"`

	Host     string `envconfig:"SARA_HUB_DB_HOST"`
	Port     int    `envconfig:"SARA_HUB_DB_PORT" default:"5432"`
	User     string `envconfig:"SARA_HUB_DB_USER"`
	Password string `envconfig:"SARA_HUB_DB_PASSWORD"`
	Name     string `envconfig:"SARA_HUB_DB_NAME"`
	SSLMode  string `envconfig:"SARA_HUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SARA_HUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SARA_HUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SARA_HUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SARA_HUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"SARA_HUB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SARA_HUB_REDIS_URL"`
	Address      string        `envconfig:"SARA_HUB_REDIS_ADDR"`
	Password     string        `envconfig:"SARA_HUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"SARA_HUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SARA_HUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SARA_HUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SARA_HUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SARA_HUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SARA_HUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"SARA_HUB_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SARA_HUB_JWT_ISSUER" required:"true"`
}

// BrokerConfig selects the topic broker backend. The redis backend needs a
// reachable Redis at process start; absence is a startup failure, not a
// per-message error.
type BrokerConfig struct {
	Backend string `envconfig:"SARA_HUB_BROKER" default:"memory"`
}

func (b BrokerConfig) validate() error {
	switch b.Backend {
	case BrokerMemory, BrokerRedis:
		return nil
	default:
		return fmt.Errorf("unknown broker backend %q", b.Backend)
	}
}

type HubConfig struct {
	SessionBuffer   int           `envconfig:"SARA_HUB_SESSION_BUFFER" default:"64"`
	WriteTimeout    time.Duration `envconfig:"SARA_HUB_WRITE_TIMEOUT" default:"10s"`
	UnreadPushLimit int           `envconfig:"SARA_HUB_UNREAD_PUSH_LIMIT" default:"10"`
	MaxMessageBytes int64         `envconfig:"SARA_HUB_MAX_MESSAGE_BYTES" default:"65536"`
	AllowAnyOrigin  bool          `envconfig:"SARA_HUB_ALLOW_ANY_ORIGIN" default:"false"`
}

type BotConfig struct {
	URL     string        `envconfig:"SARA_HUB_BOT_URL" default:"http://localhost:11434"`
	Model   string        `envconfig:"SARA_HUB_BOT_MODEL" default:"llama3"`
	Timeout time.Duration `envconfig:"SARA_HUB_BOT_TIMEOUT" default:"60s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := []struct {
		env   string
		value string
	}{
		{"SARA_HUB_DB_HOST", db.Host},
		{"SARA_HUB_DB_USER", db.User},
		{"SARA_HUB_DB_NAME", db.Name},
	}
	for _, part := range parts {
		if part.value == "" {
			missing = append(missing, part.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either SARA_HUB_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
