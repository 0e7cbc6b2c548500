package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Invoice  InvoiceConfig  `yaml:"invoice"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	Migrate         bool          `yaml:"migrate"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type InvoiceConfig struct {
	TxTimeout        time.Duration `yaml:"txTimeout"`
	MaxRetryAttempts int           `yaml:"maxRetryAttempts"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            3306,
			User:            "facturador",
			Password:        "secret",
			Name:            "facturador",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
		Invoice: InvoiceConfig{
			TxTimeout:        5 * time.Second,
			MaxRetryAttempts: 3,
		},
	}
}

// Load resolves the configuration from environment variables, falling back
// to the values in base.
func Load(base Config) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", base.Server.Port)
	v.SetDefault("SERVER_READ_TIMEOUT", base.Server.ReadTimeout.String())
	v.SetDefault("SERVER_WRITE_TIMEOUT", base.Server.WriteTimeout.String())
	v.SetDefault("DB_HOST", base.Database.Host)
	v.SetDefault("DB_PORT", base.Database.Port)
	v.SetDefault("DB_USER", base.Database.User)
	v.SetDefault("DB_PASSWORD", base.Database.Password)
	v.SetDefault("DB_NAME", base.Database.Name)
	v.SetDefault("DB_MAX_OPEN_CONNS", base.Database.MaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", base.Database.MaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME", base.Database.ConnMaxLifetime.String())
	v.SetDefault("DB_MIGRATE", base.Database.Migrate)
	v.SetDefault("LOG_LEVEL", base.Log.Level)
	v.SetDefault("INVOICE_TX_TIMEOUT", base.Invoice.TxTimeout.String())
	v.SetDefault("INVOICE_MAX_RETRY_ATTEMPTS", base.Invoice.MaxRetryAttempts)
	v.SetDefault("JWT_SECRET", base.Auth.JWTSecret)

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "DB_CONN_MAX_LIFETIME", "INVOICE_TX_TIMEOUT",
	} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		durations[key] = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("SERVER_PORT"),
			ReadTimeout:  durations["SERVER_READ_TIMEOUT"],
			WriteTimeout: durations["SERVER_WRITE_TIMEOUT"],
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
			Migrate:         v.GetBool("DB_MIGRATE"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Invoice: InvoiceConfig{
			TxTimeout:        durations["INVOICE_TX_TIMEOUT"],
			MaxRetryAttempts: v.GetInt("INVOICE_MAX_RETRY_ATTEMPTS"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
	}

	if cfg.Invoice.MaxRetryAttempts < 1 {
		cfg.Invoice.MaxRetryAttempts = 1
	}

	return cfg, nil
}
