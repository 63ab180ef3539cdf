package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"soundboard/playback"
)

// playCmd plays sounds from the command line
var playCmd = &cobra.Command{
	Use:   "play <sound>...",
	Short: "Play sounds and wait for them to finish",
	Long: `Play one or more sounds by name or id. Sounds play one after another;
with --overlap they all start at once. Press Ctrl+C to stop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Int("volume", -1, "volume from 0 to 100 (default is the master volume)")
	playCmd.Flags().Bool("loop", false, "repeat until interrupted")
	playCmd.Flags().Bool("overlap", false, "play all sounds at the same time")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := newLocalOutput(cfg)
	if err != nil {
		return err
	}
	b, err := newBoard(cfg, out, cfg.Playback.SampleRate)
	if err != nil {
		return err
	}
	defer b.Engine().Close()

	var opts []playback.PlayOption
	if v, _ := cmd.Flags().GetInt("volume"); v >= 0 {
		opts = append(opts, playback.WithVolume(v))
	}
	if cmd.Flags().Changed("loop") {
		loop, _ := cmd.Flags().GetBool("loop")
		opts = append(opts, playback.WithLoop(loop))
	}
	overlap, _ := cmd.Flags().GetBool("overlap")
	opts = append(opts, playback.WithOverlap(overlap))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var handles []*playback.Handle
	for _, ref := range args {
		snd, h, err := b.Play(ctx, ref, opts...)
		if err != nil {
			return fmt.Errorf("failed to play %s: %w", ref, err)
		}
		if h == nil {
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "▶ %s (%s)\n", snd.Name, h.Duration().Round(100*time.Millisecond))

		if overlap {
			handles = append(handles, h)
			continue
		}
		if !wait(ctx, h) {
			return nil
		}
	}

	for _, h := range handles {
		if !wait(ctx, h) {
			return nil
		}
	}
	return nil
}

// wait blocks until h ends. It reports false if ctx was cancelled first.
func wait(ctx context.Context, h *playback.Handle) bool {
	select {
	case <-h.Done():
		return true
	case <-ctx.Done():
		slog.Debug("Interrupted, stopping playback")
		return false
	}
}
