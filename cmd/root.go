package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"soundboard/board"
	"soundboard/playback"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "soundboard",
	Short: "A soundboard for your speakers and Discord voice channels",
	Long: `Soundboard plays short audio clips from a library directory on demand.

Run without a subcommand to open the interactive board: type the name of a
sound to play it, prefix it with + to layer it over what is playing, or use
stop, list and quit. Use "soundboard serve" to drive the board from Discord.`,
	RunE: runBoard,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("library", "l", "./sounds", "sound library directory")
	rootCmd.PersistentFlags().String("backend", "speaker", "audio output (speaker, ffmpeg)")
	rootCmd.PersistentFlags().String("device", "default", "ffmpeg output device")
	rootCmd.PersistentFlags().Int("master-volume", 80, "master volume (0-100)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	// Bind flags to viper
	viper.BindPFlag("library.dir", rootCmd.PersistentFlags().Lookup("library"))
	viper.BindPFlag("playback.backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("playback.device", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("playback.master_volume", rootCmd.PersistentFlags().Lookup("master-volume"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if verbose {
		viper.Set("logging.level", "debug")
	}
}

// runBoard opens the interactive board on stdin.
func runBoard(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runREPL(ctx, b, cmd.InOrStdin(), cmd.OutOrStdout(), isTerminal(os.Stdin))
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// lockedWriter serialises writes from the prompt loop and the now playing
// watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.w, format, args...)
}

// runREPL reads board commands from in until quit, EOF or ctx is done.
func runREPL(ctx context.Context, b *board.Board, in io.Reader, w io.Writer, prompt bool) error {
	out := &lockedWriter{w: w}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates, unsubscribe := b.Engine().Subscribe()

	// The watcher ends once unsubscribe closes its channel.
	var watch sync.WaitGroup
	defer watch.Wait()
	defer unsubscribe()

	watch.Add(1)
	go func() {
		defer watch.Done()
		watchNowPlaying(ctx, b, updates, out)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if prompt {
			out.Printf("> ")
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}

		if quit := handleLine(ctx, b, strings.TrimSpace(line), out); quit {
			return nil
		}
	}
}

// handleLine runs one board command and reports whether the user asked to
// quit.
func handleLine(ctx context.Context, b *board.Board, line string, out *lockedWriter) bool {
	switch line {
	case "":
		return false
	case "quit", "exit":
		return true
	case "stop":
		b.Stop()
		return false
	case "list":
		sounds, err := b.Sounds(ctx)
		if err != nil {
			out.Printf("error: %v\n", err)
			return false
		}
		for _, snd := range sounds {
			out.Printf("  %s\n", snd.Name)
		}
		return false
	case "help":
		out.Printf("type a sound name to play it, +name to layer it, or stop, list, quit\n")
		return false
	}

	var opts []playback.PlayOption
	if ref, ok := strings.CutPrefix(line, "+"); ok {
		line = strings.TrimSpace(ref)
		opts = append(opts, playback.WithOverlap(true))
	}

	if _, _, err := b.Play(ctx, line, opts...); err != nil {
		if errors.Is(err, board.ErrUnknownSound) {
			out.Printf("no sound called %q\n", line)
		} else {
			out.Printf("error: %v\n", err)
		}
	}
	return false
}

// watchNowPlaying prints every change of the playing sound.
func watchNowPlaying(ctx context.Context, b *board.Board, updates <-chan string, out *lockedWriter) {
	last, ok := <-updates
	if !ok {
		return
	}

	for id := range updates {
		if id == last {
			continue
		}
		last = id

		if id == "" {
			out.Printf("■ stopped\n")
			continue
		}
		name := id
		if snd, found, err := b.Resolve(ctx, id); err == nil && found {
			name = snd.Name
		}
		out.Printf("▶ %s\n", name)
	}
}
