package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	ffaudio "github.com/disgoorg/ffmpeg-audio"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"soundboard/codec"
	"soundboard/config"
	"soundboard/logger"
	"soundboard/sound"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating soundboard configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging for validation
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// Validate configuration
		if err := cfg.Validate(); err != nil {
			slog.Error("Configuration validation failed", slog.Any("error", err))
			return err
		}

		slog.Info("Configuration is valid")
		fmt.Println("✅ Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Setup basic logging
		if err := logger.Setup("info", "text"); err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}

		// Load configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Println("Current Configuration:")
		fmt.Printf("  Library:\n")
		fmt.Printf("    Dir: %s\n", describeLibrary(cmd.Context(), cfg.Library.Dir))
		fmt.Printf("  Playback:\n")
		fmt.Printf("    Master Volume: %d\n", cfg.Playback.MasterVolume)
		fmt.Printf("    Loop Default: %t\n", cfg.Playback.LoopDefault)
		fmt.Printf("    Allow Overlap: %t\n", cfg.Playback.AllowOverlap)
		fmt.Printf("    Sample Rate: %d\n", cfg.Playback.SampleRate)
		fmt.Printf("    Backend: %s\n", cfg.Playback.Backend)
		fmt.Printf("    Latency: %s\n", cfg.Playback.Latency)
		fmt.Printf("    Device: %s (%s)\n", cfg.Playback.Device, cfg.Playback.DeviceFormat)
		fmt.Printf("    FFmpeg: %s (%s)\n", cfg.Playback.FFmpeg, ffmpegStatus(cfg.Playback.FFmpeg))
		fmt.Printf("  Discord:\n")
		fmt.Printf("    Token: %s\n", maskToken(cfg.Discord.Token))
		fmt.Printf("    Guild ID: %s\n", cfg.Discord.GuildID)
		fmt.Printf("    Voice Channel ID: %s\n", cfg.Discord.VoiceChannelID)
		fmt.Printf("    Webhook URL: %s\n", maskURL(cfg.Discord.WebhookURL))
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    Format: %s\n", cfg.Logging.Format)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}

// describeLibrary resolves the library directory and summarises what is in
// it.
func describeLibrary(ctx context.Context, dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	library, err := sound.NewDirStore(dir)
	if err != nil {
		return fmt.Sprintf("%s (unavailable: %v)", dir, err)
	}
	sounds, err := library.Sounds(ctx)
	if err != nil {
		return fmt.Sprintf("%s (unreadable: %v)", dir, err)
	}

	var total int64
	for _, snd := range sounds {
		total += snd.Size
	}
	return fmt.Sprintf("%s (%d sounds, %s)", dir, len(sounds), humanize.Bytes(uint64(total)))
}

// ffmpegStatus reports whether the ffmpeg fallback decoder can run.
func ffmpegStatus(exec string) string {
	if codec.NewFFmpeg(ffaudio.WithExec(exec)).Available() {
		return "available"
	}
	return "not found, WebM/Opus/MP4/AAC sounds will not play"
}

// maskToken masks a Discord token for display
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}

// maskURL masks a webhook URL for display
func maskURL(url string) string {
	if len(url) <= 20 {
		return "***"
	}
	return url[:20] + "***"
}
