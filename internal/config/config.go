package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Media    MediaConfig    `mapstructure:"media"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	PublicURL   string   `mapstructure:"public_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite|postgres
	DSN    string `mapstructure:"dsn"`
}

type AuthConfig struct {
	HMACSecret string `mapstructure:"hmac_secret"`
	// Seed account created at startup when the users table is empty.
	AdminUser     string `mapstructure:"admin_user"`
	AdminPassHash string `mapstructure:"admin_pass_hash"` // bcrypt
}

type MediaConfig struct {
	BasePath    string `mapstructure:"base_path"`
	TokenTTLMin int    `mapstructure:"token_ttl_min"`
}

type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Debug      bool   `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")

	v.SetDefault("auth.hmac_secret", "supersecret-dev-key")
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_pass_hash", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji")

	v.SetDefault("media.base_path", "./data")
	v.SetDefault("media.token_ttl_min", 240)

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.debug", false)
}

// Load reads config.yaml (optional), REVIEW_-prefixed environment variables
// and defaults, and watches the file for changes. Reload messages go to the
// global zap logger, which main swaps in once logging is configured.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("REVIEW") // e.g., REVIEW_SERVER_ADDR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		zap.L().Info("configuration file changed, reloading", zap.String("file", e.Name))
		if err := v.Unmarshal(cfg); err != nil {
			zap.L().Error("error reloading configuration", zap.Error(err))
		}
	})

	return cfg, nil
}
