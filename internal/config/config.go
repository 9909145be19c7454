package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string       `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	Server   ServerConfig `mapstructure:"server"`
	Peer     PeerConfig   `mapstructure:"peer"`
}

// ServerConfig drives cmd/server.
type ServerConfig struct {
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	Secret       string        `mapstructure:"secret" validate:"required"`
	ReadLimit    int64         `mapstructure:"read_limit" validate:"min=512"`
	PingPeriod   time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	WriteWait    time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	MailboxSize  int           `mapstructure:"mailbox_size" validate:"min=1"`
	JoinLimit    int           `mapstructure:"join_limit" validate:"min=1"`
	JoinInterval time.Duration `mapstructure:"join_interval" validate:"gt=0"`
}

// PeerConfig drives cmd/peer.
type PeerConfig struct {
	URL  string `mapstructure:"url" validate:"required,url"`
	Room string `mapstructure:"room" validate:"required"`
	Role string `mapstructure:"role" validate:"oneof=host client"`
	Name string `mapstructure:"name" validate:"required,max=36"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"log-level": "log_level",
	"url":       "peer.url",
	"room":      "peer.room",
	"role":      "peer.role",
	"name":      "peer.name",
}

// PeerFlags registers the cmd/peer flags understood by Load.
func PeerFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("url", "", "room server websocket url")
	fs.String("room", "", "room to listen on or connect to")
	fs.String("role", "", "host or client")
	fs.String("name", "", "display name")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.secret", "roomlink-dev-secret")
	v.SetDefault("server.read_limit", 32768)
	v.SetDefault("server.ping_period", "54s")
	v.SetDefault("server.write_wait", "5s")
	v.SetDefault("server.mailbox_size", 256)
	v.SetDefault("server.join_limit", 5)
	v.SetDefault("server.join_interval", "10s")

	v.SetDefault("peer.url", "ws://localhost:8080/api/ws")
	v.SetDefault("peer.room", "lobby")
	v.SetDefault("peer.role", "client")
	v.SetDefault("peer.name", "peer")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default), then
// ROOMLINK_* environment variables, then flags set on fs. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("roomlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for flag, key := range flagKeys {
			f := fs.Lookup(flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Debug().Str("module", "config").Str("mode", cfg.Server.Mode).Int("port", cfg.Server.Port).Msg("config ready")
	return &cfg, nil
}
