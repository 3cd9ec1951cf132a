package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type RoomConfig struct {
	MaxUsers        int           `mapstructure:"max_users"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	OfflineTimeout  time.Duration `mapstructure:"offline_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ReaperEnabled   bool          `mapstructure:"reaper_enabled"`
	AdminIDs        []string      `mapstructure:"admin_ids"`
}

type RateConfig struct {
	CreateLimit    int           `mapstructure:"create_limit"`
	CreateInterval time.Duration `mapstructure:"create_interval"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Origins    []string      `mapstructure:"allowed_origins"`
	Room       RoomConfig    `mapstructure:"room"`
	Rate       RateConfig    `mapstructure:"rate"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8443)
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "lobby-dev-secret")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("allowed_origins", []string{"*"})

	v.SetDefault("room.max_users", 50)
	v.SetDefault("room.cleanup_interval", "10m")
	v.SetDefault("room.offline_timeout", "30m")
	v.SetDefault("room.idle_timeout", "1h")
	v.SetDefault("room.reaper_enabled", true)
	v.SetDefault("room.admin_ids", []string{"admin"})

	v.SetDefault("rate.create_limit", 5)
	v.SetDefault("rate.create_interval", "1m")
}

// Load reads config/config.<CONFIG_ENV>.yaml when present, then LOBBY_* env overrides.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Bool("reaper", cfg.Room.ReaperEnabled).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if len(c.Origins) == 0 {
		errs = append(errs, errors.New("allowed_origins must not be empty"))
	}
	if c.Room.MaxUsers <= 0 {
		errs = append(errs, errors.New("room.max_users must be positive"))
	}
	if c.Room.CleanupInterval <= 0 || c.Room.OfflineTimeout <= 0 || c.Room.IdleTimeout <= 0 {
		errs = append(errs, errors.New("room timeouts must be positive"))
	}
	if c.Rate.CreateLimit <= 0 || c.Rate.CreateInterval <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
