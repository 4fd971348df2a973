package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Merge     MergeConfig     `mapstructure:"merge"`
	Gating    GatingConfig    `mapstructure:"gating"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Email     EmailConfig     `mapstructure:"email"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`
	WriteTimeout   int      `mapstructure:"write_timeout"`
	Mode           string   `mapstructure:"mode"` // debug или release
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	CookieDomain   string   `mapstructure:"cookie_domain"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	Mode       string   `mapstructure:"mode"`
	Addrs      []string `mapstructure:"addrs"`
	Addr       string   `mapstructure:"addr"`
	Password   string   `mapstructure:"password"`
	DB         int      `mapstructure:"db"`
	MasterName string   `mapstructure:"master_name"`

	// MaxRetries: -1 - бесконечно, 0 - без ретраев.
	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс
}

// JWTConfig содержит настройки токенов постоянной сессии
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expiration_hrs"`
	Issuer        string `mapstructure:"issuer"`
}

// IdentityConfig описывает хранение временной личности и политику ее регистрации
type IdentityConfig struct {
	// KeyPrefix - префикс ключа в каналах хранения, к нему добавляется device id.
	KeyPrefix string `mapstructure:"key_prefix"`
	// PrimaryTTL - срок жизни значения в основном канале (Redis).
	PrimaryTTL time.Duration `mapstructure:"primary_ttl"`
	// DeviceCookieMaxAge - срок жизни куки device_id в секундах.
	DeviceCookieMaxAge int `mapstructure:"device_cookie_max_age"`

	RegistrationMaxAttempts    int           `mapstructure:"registration_max_attempts"`
	RegistrationInitialBackoff time.Duration `mapstructure:"registration_initial_backoff"`
	RegistrationMaxBackoff     time.Duration `mapstructure:"registration_max_backoff"`
}

// MergeConfig задает таймауты протокола слияния
type MergeConfig struct {
	// TypeTimeout ограничивает переназначение одного типа записей.
	TypeTimeout time.Duration `mapstructure:"type_timeout"`
	// DetachedTimeout ограничивает слияние целиком после того, как вызывающий перестал ждать.
	DetachedTimeout time.Duration `mapstructure:"detached_timeout"`
}

// ThresholdConfig - порог по счетчику для действия
type ThresholdConfig struct {
	Counter string `mapstructure:"counter"`
	Limit   int    `mapstructure:"limit"`
}

// GatingConfig содержит правила отложенных до регистрации действий
type GatingConfig struct {
	AccountRequiredActions []string                   `mapstructure:"account_required_actions"`
	Thresholds             map[string]ThresholdConfig `mapstructure:"thresholds"`
}

// AnalyticsConfig содержит настройки трекера событий
type AnalyticsConfig struct {
	RedisEnabled bool   `mapstructure:"redis_enabled"`
	Channel      string `mapstructure:"channel"`
	QueueSize    int    `mapstructure:"queue_size"`
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// LoggingConfig содержит настройки логирования
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WebSocketConfig содержит настройки канала уведомлений о смене состояния
type WebSocketConfig struct {
	ClusterEnabled bool   `mapstructure:"cluster_enabled"`
	Channel        string `mapstructure:"channel"`
	SendBuffer     int    `mapstructure:"send_buffer"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL подключения для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// IsRelease сообщает, запущен ли сервер в production режиме
func (s *ServerConfig) IsRelease() bool {
	return s.Mode == "release"
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)
	vip.SetDefault("server.mode", "debug")
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")

	vip.SetDefault("jwt.expiration_hrs", 24)
	vip.SetDefault("jwt.issuer", "proptrack-api")

	vip.SetDefault("identity.key_prefix", "temp_user_id")
	vip.SetDefault("identity.primary_ttl", 30*24*time.Hour)
	vip.SetDefault("identity.device_cookie_max_age", 400*24*60*60)
	vip.SetDefault("identity.registration_max_attempts", 5)
	vip.SetDefault("identity.registration_initial_backoff", 500*time.Millisecond)
	vip.SetDefault("identity.registration_max_backoff", 30*time.Second)

	vip.SetDefault("merge.type_timeout", 10*time.Second)
	vip.SetDefault("merge.detached_timeout", time.Minute)

	vip.SetDefault("gating.account_required_actions", []string{"comment", "share", "save_note", "set_alert"})
	vip.SetDefault("gating.thresholds", map[string]interface{}{
		"pin":               map[string]interface{}{"counter": "pins", "limit": 25},
		"create_collection": map[string]interface{}{"counter": "collections", "limit": 3},
	})

	vip.SetDefault("analytics.redis_enabled", true)
	vip.SetDefault("analytics.channel", "analytics_events")
	vip.SetDefault("analytics.queue_size", 1024)

	vip.SetDefault("logging.level", "info")
	vip.SetDefault("logging.format", "json")

	vip.SetDefault("websocket.channel", "identity_state_events")
	vip.SetDefault("websocket.send_buffer", 16)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // новый экземпляр, без глобального состояния
	log := logger.For("Config")

	setDefaults(vip)

	bindings := map[string]string{
		"server.port":          "SERVER_PORT",
		"server.mode":          "SERVER_MODE",
		"server.cookie_domain": "SERVER_COOKIE_DOMAIN",

		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.dbname":   "DATABASE_DBNAME",
		"database.sslmode":  "DATABASE_SSLMODE",

		"redis.mode":        "REDIS_MODE",
		"redis.addrs":       "REDIS_ADDRS",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"redis.db":          "REDIS_DB",
		"redis.master_name": "REDIS_MASTER_NAME",

		"jwt.secret":         "JWT_SECRET",
		"jwt.expiration_hrs": "JWT_EXPIRATION_HRS",

		"identity.primary_ttl": "IDENTITY_PRIMARY_TTL",

		"analytics.redis_enabled": "ANALYTICS_REDIS_ENABLED",

		"email.enabled":        "EMAIL_ENABLED",
		"email.resend_api_key": "RESEND_API_KEY",
		"email.from":           "EMAIL_FROM",

		"logging.level":  "LOGGING_LEVEL",
		"logging.format": "LOGGING_FORMAT",

		"websocket.cluster_enabled": "WEBSOCKET_CLUSTER_ENABLED",
	}
	for key, env := range bindings {
		if err := vip.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файл не обязателен: значения могут прийти из окружения
		if err := vip.ReadInConfig(); err != nil {
			log.Warnf("Не удалось прочитать файл конфигурации '%s', используются переменные окружения/умолчания: %v", configPath, err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// REDIS_ADDRS приходит одной строкой через запятую
	if len(cfg.Redis.Addrs) == 1 && strings.Contains(cfg.Redis.Addrs[0], ",") {
		cfg.Redis.Addrs = strings.Split(cfg.Redis.Addrs[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Server.IsRelease() {
		log.Infow("Загруженные значения конфигурации",
			"database_host", cfg.Database.Host,
			"database_name", cfg.Database.DBName,
			"redis_mode", cfg.Redis.Mode,
			"identity_primary_ttl", cfg.Identity.PrimaryTTL,
			"account_required_actions", cfg.Gating.AccountRequiredActions,
			"analytics_redis", cfg.Analytics.RedisEnabled,
			"email_enabled", cfg.Email.Enabled,
		)
	}

	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if c.Server.IsRelease() && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes in release mode")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Server.IsRelease() && c.Database.Password == "" {
		return fmt.Errorf("database password is required in release mode (check DATABASE_PASSWORD env var)")
	}
	if c.Identity.PrimaryTTL <= 0 {
		return fmt.Errorf("identity.primary_ttl must be positive")
	}
	if c.Identity.RegistrationMaxAttempts < 1 {
		return fmt.Errorf("identity.registration_max_attempts must be at least 1")
	}
	for action, th := range c.Gating.Thresholds {
		if th.Counter == "" || th.Limit < 0 {
			return fmt.Errorf("gating threshold for action %q is invalid", action)
		}
	}
	if c.Email.Enabled && (c.Email.ResendAPIKey == "" || c.Email.From == "") {
		return fmt.Errorf("email is enabled but RESEND_API_KEY or EMAIL_FROM is not set")
	}
	return nil
}
