// Package config загружает конфигурацию сервера из файла и переменных окружения.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — полная конфигурация сервера
type Config struct {
	Addr          string        `mapstructure:"addr"`           // адрес HTTP сервера
	DatabasePath  string        `mapstructure:"database_path"`  // путь к файлу SQLite
	LogLevel      string        `mapstructure:"log_level"`      // debug / info / warn / error
	LogFormat     string        `mapstructure:"log_format"`     // text / json
	ImageDir      string        `mapstructure:"image_dir"`      // каталог изображений профилей
	BaseURL       string        `mapstructure:"base_url"`       // внешний URL для ссылок в письмах
	TokenTTL      time.Duration `mapstructure:"token_ttl"`      // скользящее окно сессионного токена
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // периодичность фоновой чистки
	RateLimit     int           `mapstructure:"rate_limit"`     // запросов на IP за окно
	RateWindow    time.Duration `mapstructure:"rate_window"`    // окно rate limiter

	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig — настройки почтового транспорта
type SMTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	Pass string `mapstructure:"pass"`
	From string `mapstructure:"from"`
}

// Load читает config.yaml (путь опционален) и env с префиксом ACCOUNTD_
// Env всегда перекрывает файл: ACCOUNTD_SMTP_PASS, ACCOUNTD_ADDR и т.д.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", ":8080")
	v.SetDefault("database_path", "accountd.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("image_dir", "images")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("token_ttl", 7*24*time.Hour)
	v.SetDefault("sweep_interval", time.Hour)
	v.SetDefault("rate_limit", 100)
	v.SetDefault("rate_window", time.Minute)
	// Пустые значения по умолчанию регистрируют ключи в viper:
	// без этого AutomaticEnv не увидит ACCOUNTD_SMTP_* переменные
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.pass", "")
	v.SetDefault("smtp.from", "")

	v.SetEnvPrefix("ACCOUNTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	return nil
}
