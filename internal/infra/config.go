package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации дашборда.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	SecureAccess SecureAccessConfig `mapstructure:"secure_access"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Snapshot     SnapshotConfig     `mapstructure:"snapshot"`
	Dashboard    DashboardConfig    `mapstructure:"dashboard"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logger       LoggerConfig       `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	MetricsAddr  string        `mapstructure:"metrics_addr"` // пустая строка отключает /metrics
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SecureAccessConfig описывает подключение к REST API Cisco Secure Access.
type SecureAccessConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	APISecret      string        `mapstructure:"api_secret"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RateLimit      float64       `mapstructure:"rate_limit"` // запросов в секунду
	RateBurst      int           `mapstructure:"rate_burst"`
	// Проверка TLS отключена в исходном дашборде (verify=False), здесь это явный флаг
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`

	IdentityLimit     int `mapstructure:"identity_limit"`
	UserSummaryChunk  int `mapstructure:"user_summary_chunk"`
	VPNPageSize       int `mapstructure:"vpn_page_size"`
	ResourcePageSize  int `mapstructure:"resource_page_size"`
	ZTNAPageSize      int `mapstructure:"ztna_page_size"`
	ZTNAMaxOffset     int `mapstructure:"ztna_max_offset"`
	BreakerMaxFailure int `mapstructure:"breaker_max_failures"`
}

// HasCredentials сообщает, заданы ли ключ и секрет API.
func (c SecureAccessConfig) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// CacheConfig настраивает кэш ответов API.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // memory, redis
	TTL      time.Duration `mapstructure:"ttl"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
}

// SnapshotConfig настраивает хранение почасовых снимков активности ZTNA.
type SnapshotConfig struct {
	Backend     string `mapstructure:"backend"` // file, postgres
	Dir         string `mapstructure:"dir"`
	DatabaseURL string `mapstructure:"database_url"`
}

// DashboardConfig — параметры отображения.
type DashboardConfig struct {
	Timezone     string `mapstructure:"timezone"`
	DayStartHour int    `mapstructure:"day_start_hour"`
	Language     string `mapstructure:"language"`
	Author       string `mapstructure:"author"`
	Logo1Path    string `mapstructure:"logo1_path"`
	Logo2Path    string `mapstructure:"logo2_path"`
}

// AuthConfig включает basic auth для страницы. Пустой username — доступ открыт.
type AuthConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"` // bcrypt
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// legacyEnv — имена переменных окружения исходного дашборда.
var legacyEnv = map[string]string{
	"secure_access.api_key":    "API_KEY",
	"secure_access.api_secret": "API_SECRET",
	"dashboard.logo1_path":     "LOGO1_PATH",
	"dashboard.logo2_path":     "LOGO2_PATH",
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// SECURE_ACCESS_API_KEY=... перекроет secure_access.api_key
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет — работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8501")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.read_timeout", 10*time.Second)
	// Первая загрузка страницы может долго ходить в API
	v.SetDefault("server.write_timeout", 5*time.Minute)

	v.SetDefault("secure_access.base_url", "https://api.sse.cisco.com")
	v.SetDefault("secure_access.request_timeout", 60*time.Second)
	v.SetDefault("secure_access.max_retries", 5)
	v.SetDefault("secure_access.retry_delay", 1*time.Second)
	v.SetDefault("secure_access.rate_limit", 10.0)
	v.SetDefault("secure_access.rate_burst", 5)
	v.SetDefault("secure_access.insecure_skip_verify", false)
	v.SetDefault("secure_access.identity_limit", 2000)
	v.SetDefault("secure_access.user_summary_chunk", 100)
	v.SetDefault("secure_access.vpn_page_size", 500)
	v.SetDefault("secure_access.resource_page_size", 100)
	v.SetDefault("secure_access.ztna_page_size", 5000)
	v.SetDefault("secure_access.ztna_max_offset", 15000)
	v.SetDefault("secure_access.breaker_max_failures", 5)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.addr", "localhost:6379")

	v.SetDefault("snapshot.backend", "file")
	v.SetDefault("snapshot.dir", "ztna_data")

	v.SetDefault("dashboard.timezone", "America/Mexico_City")
	v.SetDefault("dashboard.day_start_hour", 5)
	v.SetDefault("dashboard.language", "es")
	v.SetDefault("dashboard.author", "Tavo Medina")
	v.SetDefault("dashboard.logo1_path", "default_logo1.png")
	v.SetDefault("dashboard.logo2_path", "default_logo2.png")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Validate отсекает заведомо неработающие значения.
func (c *Config) Validate() error {
	sa := c.SecureAccess
	switch {
	case sa.BaseURL == "":
		return errors.New("config: secure_access.base_url is required")
	case sa.MaxRetries < 1:
		return errors.New("config: secure_access.max_retries must be >= 1")
	case sa.IdentityLimit <= 0, sa.UserSummaryChunk <= 0, sa.VPNPageSize <= 0,
		sa.ResourcePageSize <= 0, sa.ZTNAPageSize <= 0:
		return errors.New("config: secure_access page sizes must be positive")
	case sa.ZTNAMaxOffset < sa.ZTNAPageSize:
		return errors.New("config: secure_access.ztna_max_offset must be >= ztna_page_size")
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Snapshot.Backend {
	case "file":
		if c.Snapshot.Dir == "" {
			return errors.New("config: snapshot.dir is required for file backend")
		}
	case "postgres":
		if c.Snapshot.DatabaseURL == "" {
			return errors.New("config: snapshot.database_url is required for postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown snapshot backend %q", c.Snapshot.Backend)
	}

	if c.Dashboard.DayStartHour < 0 || c.Dashboard.DayStartHour > 23 {
		return errors.New("config: dashboard.day_start_hour must be within 0..23")
	}
	if c.Auth.Username != "" && c.Auth.PasswordHash == "" {
		return errors.New("config: auth.password_hash is required when auth.username is set")
	}
	return nil
}
