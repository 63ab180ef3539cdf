package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"soundboard/bot"
)

// serveCmd runs the Discord bot
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the board as a Discord bot",
	Long: `Join the configured Discord voice channel and play sounds on request
through the /play, /stop, /nowplaying and /sounds slash commands.

If a webhook URL is configured, every change of the playing sound is
posted to it.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("discord-token", "", "Discord bot token")
	serveCmd.Flags().String("discord-webhook", "", "Discord webhook URL")

	viper.BindPFlag("discord.token", serveCmd.Flags().Lookup("discord-token"))
	viper.BindPFlag("discord.webhook_url", serveCmd.Flags().Lookup("discord-webhook"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDiscord(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	voice := bot.NewVoiceOutput()
	b, err := newBoard(cfg, voice, bot.SampleRate)
	if err != nil {
		return err
	}
	defer b.Engine().Close()

	d := bot.New(&cfg.Discord, b, voice)
	if err := d.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize Discord: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		d.Stop()
		return err
	}

	var notified <-chan struct{}
	if cfg.Discord.WebhookURL != "" {
		notifyCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		notified = bot.NewNotifier(cfg.Discord.WebhookURL, b).Start(notifyCtx)
	}

	<-ctx.Done()
	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down gracefully...")

	d.Stop()
	if notified != nil {
		<-notified
	}
	return nil
}
