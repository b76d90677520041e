// /internal/config/config.go
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

// Config agrupa todas as configurações da aplicação.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	JWT       JWTConfig
	Redis     RedisConfig
	Log       LogConfig
	Media     MediaConfig
	Mail      MailConfig
	Stats     StatsConfig
	Templates TemplatesConfig
}

type ServerConfig struct {
	Port        string
	Mode        string
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string
	URL    string
}

type SessionConfig struct {
	Secret string
	Name   string
}

type JWTConfig struct {
	Secret        string
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Issuer        string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level         string
	RequestTime   bool  `mapstructure:"request_time"`
	SlowRequestMS int64 `mapstructure:"slow_request_ms"`
}

type MediaConfig struct {
	Root string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type TemplatesConfig struct {
	Glob string
}

var supportedDrivers = map[string]bool{
	"postgres": true,
	"mysql":    true,
	"sqlite":   true,
}

// Load lê o .env (se existir), o config.yaml opcional e as variáveis GESTAO_*.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("erro ao carregar o arquivo .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GESTAO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("erro ao ler config.yaml: %w", err)
		}
	}

	// PORT e DATABASE_URL também valem sem o prefixo.
	if port := os.Getenv("PORT"); port != "" {
		v.SetDefault("server.port", port)
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		v.SetDefault("database.url", dsn)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("erro ao interpretar configuração: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "gestao.db")
	v.SetDefault("session.name", "gestao-session")
	v.SetDefault("session.secret", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 60*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "gestao-clientes")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.request_time", true)
	v.SetDefault("log.slow_request_ms", 1000)
	v.SetDefault("media.root", "media")
	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "nao-responda@gestao.local")
	v.SetDefault("stats.cache_ttl", 30*time.Second)
	v.SetDefault("templates.glob", "internal/view/templates/*.html")
}

// Validate confere se a configuração é utilizável.
func (c *Config) Validate() error {
	if !supportedDrivers[c.Database.Driver] {
		return fmt.Errorf("driver de banco de dados não suportado: %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.New("database.url não informado")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "test" {
		if c.Session.Secret == "" {
			return errors.New("session.secret é obrigatório fora do modo debug")
		}
		if c.JWT.Secret == "" || c.JWT.RefreshSecret == "" {
			return errors.New("jwt.secret e jwt.refresh_secret são obrigatórios fora do modo debug")
		}
	}
	if c.Session.Secret == "" {
		c.Session.Secret = "gestao-dev-session-secret"
	}
	if c.JWT.Secret == "" {
		c.JWT.Secret = "gestao-dev-jwt-secret"
	}
	if c.JWT.RefreshSecret == "" {
		c.JWT.RefreshSecret = c.JWT.Secret + "-refresh"
	}
	return nil
}

// SlowRequestThreshold devolve o limite de requisição lenta.
func (c LogConfig) SlowRequestThreshold() time.Duration {
	if c.SlowRequestMS <= 0 {
		return time.Second
	}
	return time.Duration(c.SlowRequestMS) * time.Millisecond
}
