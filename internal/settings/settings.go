// Package settings loads runtime settings from defaults, an optional config
// file, a .env file and WEBDECK_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds everything the server needs at startup.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server"`
	Deck      DeckSettings      `mapstructure:"deck"`
	History   HistorySettings   `mapstructure:"history"`
	Sound     SoundSettings     `mapstructure:"sound"`
	Relay     RelaySettings     `mapstructure:"relay"`
	Discovery DiscoverySettings `mapstructure:"discovery"`
}

type ServerSettings struct {
	Port      int    `mapstructure:"port"`
	WebRoot   string `mapstructure:"web_root"`
	IconsRoot string `mapstructure:"icons_root"`
}

type DeckSettings struct {
	ConfigPath  string        `mapstructure:"config_path"`
	PresetsDir  string        `mapstructure:"presets_dir"`
	Tick        time.Duration `mapstructure:"tick"`
	PostgresURL string        `mapstructure:"postgres_url"`
}

// HistorySettings: an empty Path disables the execution log.
type HistorySettings struct {
	Path string `mapstructure:"path"`
}

type SoundSettings struct {
	Dir string `mapstructure:"dir"`
}

// RelaySettings: an empty RedisAddr disables the relay.
type RelaySettings struct {
	RedisAddr string `mapstructure:"redis_addr"`
	Channel   string `mapstructure:"channel"`
}

type DiscoverySettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 9002)
	v.SetDefault("server.web_root", "web")
	v.SetDefault("server.icons_root", "assets/icons")
	v.SetDefault("deck.config_path", "config.json")
	v.SetDefault("deck.presets_dir", "presets")
	v.SetDefault("deck.tick", 16*time.Millisecond)
	v.SetDefault("deck.postgres_url", "")
	v.SetDefault("history.path", "webdeck.db")
	v.SetDefault("sound.dir", "assets/sounds")
	v.SetDefault("relay.redis_addr", "")
	v.SetDefault("relay.channel", "webdeck")
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.service", "_webdeck._tcp")
}

// Load reads settings. configFile may be empty, in which case webdeck.{toml,yaml,json}
// is looked up in the working directory. A missing .env or config file is not
// an error.
func Load(configFile string) (Settings, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("webdeck")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WEBDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return Settings{}, fmt.Errorf("server.port %d out of range", s.Server.Port)
	}
	if s.Deck.Tick <= 0 {
		s.Deck.Tick = 16 * time.Millisecond
	}
	return s, nil
}
