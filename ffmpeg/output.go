package ffmpeg

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"

	ffaudio "github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"
)

const (
	// DefaultDevice is the ALSA device used when none is configured.
	DefaultDevice = "default"
	// DefaultFormat is the ffmpeg output format used when none is configured.
	DefaultFormat = "alsa"

	channels = 2
)

// Output plays the engine mix through an ffmpeg process that writes to an
// output device such as ALSA or PulseAudio. Samples are pulled from the mix
// in small chunks and piped to ffmpeg as signed 16-bit PCM; the device's own
// pace blocks the pipe and keeps the pull in real time.
type Output struct {
	exec   string
	device string
	format string
	chunk  int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// Option configures an Output.
type Option func(*Output)

// WithExec sets the path to the ffmpeg binary.
func WithExec(path string) Option {
	return func(o *Output) {
		if path != "" {
			o.exec = path
		}
	}
}

// WithDevice sets the output device and the ffmpeg format that drives it,
// e.g. "default" with "alsa" or "default" with "pulse".
func WithDevice(format, device string) Option {
	return func(o *Output) {
		if format != "" {
			o.format = format
		}
		if device != "" {
			o.device = device
		}
	}
}

// WithChunk sets how many frames are pulled from the mix per write.
func WithChunk(frames int) Option {
	return func(o *Output) {
		if frames > 0 {
			o.chunk = frames
		}
	}
}

// NewOutput creates an ffmpeg output. Nothing is started until Init.
func NewOutput(opts ...Option) *Output {
	o := &Output{
		exec:   ffaudio.DefaultConfig().Exec,
		device: DefaultDevice,
		format: DefaultFormat,
		chunk:  960,
		logger: slog.With("component", "ffmpeg-output"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// args builds the ffmpeg command line for a raw stereo input at rate.
func (o *Output) args(rate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-f", o.format,
		o.device,
	}
}

// Init starts ffmpeg and begins pulling from bus.
func (o *Output) Init(sampleRate beep.SampleRate, bus beep.Streamer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cmd != nil {
		return errors.New("ffmpeg output is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, o.exec, o.args(int(sampleRate))...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	o.cmd = cmd
	o.stdin = stdin
	o.cancel = cancel
	o.done = make(chan struct{})

	go o.pump(bus, stdin)
	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			o.logger.Error("ffmpeg process exited", slog.Any("error", err))
		}
	}()

	o.logger.Info("ffmpeg output started",
		slog.String("format", o.format),
		slog.String("device", o.device),
		slog.Int("sample_rate", int(sampleRate)))
	return nil
}

// pump streams the mix into w until the write side fails.
func (o *Output) pump(bus beep.Streamer, w io.Writer) {
	defer close(o.done)

	bw := bufio.NewWriterSize(w, o.chunk*channels*2)
	samples := make([][2]float64, o.chunk)
	for {
		o.mu.Lock()
		bus.Stream(samples)
		o.mu.Unlock()

		if err := writeFrames(bw, samples); err != nil {
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
	}
}

// writeFrames encodes stereo float samples as interleaved little-endian
// int16, clipping anything outside [-1, 1].
func writeFrames(w io.Writer, samples [][2]float64) error {
	var buf [channels * 2]byte
	for _, frame := range samples {
		for c := range channels {
			binary.LittleEndian.PutUint16(buf[c*2:], uint16(toInt16(frame[c])))
		}
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

// Lock pauses the pull from the mix.
func (o *Output) Lock() {
	o.mu.Lock()
}

func (o *Output) Unlock() {
	o.mu.Unlock()
}

// Close stops ffmpeg and waits for the pump to exit.
func (o *Output) Close() error {
	o.mu.Lock()
	if o.cmd == nil {
		o.mu.Unlock()
		return nil
	}
	stdin, cancel, done := o.stdin, o.cancel, o.done
	o.cmd, o.stdin, o.cancel = nil, nil, nil
	o.mu.Unlock()

	if err := stdin.Close(); err != nil {
		o.logger.Debug("Failed to close ffmpeg stdin", slog.Any("error", err))
	}
	cancel()
	<-done
	return nil
}
