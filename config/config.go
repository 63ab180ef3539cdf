package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"soundboard/sound"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Output backends.
const (
	BackendSpeaker = "speaker"
	BackendFFmpeg  = "ffmpeg"
	BackendDiscord = "discord"
)

// Config holds all configuration for the application
type Config struct {
	// Sound library configuration
	Library LibraryConfig `mapstructure:"library"`

	// Playback configuration
	Playback PlaybackConfig `mapstructure:"playback"`

	// Discord configuration
	Discord DiscordConfig `mapstructure:"discord"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// LibraryConfig holds sound library configuration
type LibraryConfig struct {
	Dir string `mapstructure:"dir"`
}

// PlaybackConfig holds playback settings and the output device
type PlaybackConfig struct {
	MasterVolume int           `mapstructure:"master_volume"`
	LoopDefault  bool          `mapstructure:"loop_default"`
	AllowOverlap bool          `mapstructure:"allow_overlap"`
	SampleRate   int           `mapstructure:"sample_rate"`
	Backend      string        `mapstructure:"backend"` // speaker, ffmpeg or discord
	Latency      time.Duration `mapstructure:"latency"`
	Device       string        `mapstructure:"device"`        // ffmpeg output device
	DeviceFormat string        `mapstructure:"device_format"` // ffmpeg output format, e.g. alsa or pulse
	FFmpeg       string        `mapstructure:"ffmpeg"`        // path to the ffmpeg binary
}

// DiscordConfig holds Discord-specific configuration
type DiscordConfig struct {
	Token          string `mapstructure:"token"`
	GuildID        string `mapstructure:"guild_id"`
	VoiceChannelID string `mapstructure:"voice_channel_id"`
	WebhookURL     string `mapstructure:"webhook_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Settings returns the playback settings fed to every trigger.
func (c *Config) Settings() sound.Settings {
	return sound.Settings{
		MasterVolume: c.Playback.MasterVolume,
		LoopDefault:  c.Playback.LoopDefault,
		AllowOverlap: c.Playback.AllowOverlap,
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults() {
	defaults := sound.DefaultSettings()

	viper.SetDefault("library.dir", "./sounds")
	viper.SetDefault("playback.master_volume", defaults.MasterVolume)
	viper.SetDefault("playback.loop_default", defaults.LoopDefault)
	viper.SetDefault("playback.allow_overlap", defaults.AllowOverlap)
	viper.SetDefault("playback.sample_rate", 48000)
	viper.SetDefault("playback.backend", BackendSpeaker)
	viper.SetDefault("playback.latency", "100ms")
	viper.SetDefault("playback.device", "default")
	viper.SetDefault("playback.device_format", "alsa")
	viper.SetDefault("playback.ffmpeg", "ffmpeg")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// A .env file is optional; variables already set win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	setDefaults()

	// Read config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.soundboard")
	viper.AddConfigPath("/etc/soundboard")

	// Allow environment variables
	viper.SetEnvPrefix("SOUNDBOARD")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Library.Dir == "" {
		return &ConfigError{Field: "library.dir", Message: "sound library directory is required"}
	}
	if c.Playback.MasterVolume < 0 || c.Playback.MasterVolume > 100 {
		return &ConfigError{Field: "playback.master_volume", Message: "must be between 0 and 100"}
	}
	if c.Playback.SampleRate <= 0 {
		return &ConfigError{Field: "playback.sample_rate", Message: "must be positive"}
	}

	switch c.Playback.Backend {
	case BackendSpeaker:
	case BackendFFmpeg:
		if c.Playback.Device == "" {
			return &ConfigError{Field: "playback.device", Message: "ffmpeg output device is required"}
		}
	case BackendDiscord:
		if err := c.ValidateDiscord(); err != nil {
			return err
		}
	default:
		return &ConfigError{Field: "playback.backend", Message: fmt.Sprintf("unknown backend %q", c.Playback.Backend)}
	}

	return nil
}

// ValidateDiscord checks the settings the Discord bot needs.
func (c *Config) ValidateDiscord() error {
	if c.Discord.Token == "" {
		return &ConfigError{Field: "discord.token", Message: "Discord token is required"}
	}
	if c.Discord.GuildID == "" {
		return &ConfigError{Field: "discord.guild_id", Message: "Discord guild ID is required"}
	}
	if c.Discord.VoiceChannelID == "" {
		return &ConfigError{Field: "discord.voice_channel_id", Message: "Discord voice channel ID is required"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
