package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disgoorg/ffmpeg-audio"
	"github.com/gopxl/beep/v2"
)

// FFmpeg decodes any container the ffmpeg binary understands by piping the
// payload through it and reading back signed 16-bit PCM.
type FFmpeg struct {
	exec       string
	channels   int
	sampleRate int
	logger     *slog.Logger
}

var _ Decoder = (*FFmpeg)(nil)

// NewFFmpeg creates an ffmpeg-backed decoder. Output defaults to stereo at
// the ffmpeg-audio default sample rate.
func NewFFmpeg(opts ...ffmpeg.ConfigOpt) *FFmpeg {
	cfg := ffmpeg.DefaultConfig()
	cfg.Apply(append([]ffmpeg.ConfigOpt{ffmpeg.WithChannels(2)}, opts...))

	return &FFmpeg{
		exec:       cfg.Exec,
		channels:   cfg.Channels,
		sampleRate: cfg.SampleRate,
		logger:     slog.With("component", "ffmpeg-decoder"),
	}
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.exec)
	return err == nil
}

func (f *FFmpeg) Decode(ctx context.Context, c Container, data []byte) (*Decoded, error) {
	if !f.Available() {
		return nil, fmt.Errorf("%w: %s needs %s on PATH", ErrUnsupported, c, f.exec)
	}

	cmd := exec.CommandContext(ctx, f.exec,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-f", "s16le",
		"-ac", strconv.Itoa(f.channels),
		"-ar", strconv.Itoa(f.sampleRate),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, c, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("failed to run ffmpeg: %w", err)
	}

	pcm := make([]int16, len(out)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(f.sampleRate),
		NumChannels: f.channels,
		Precision:   2,
	}

	f.logger.Debug("Decoded audio through ffmpeg",
		slog.String("container", string(c)),
		slog.Int("bytes", len(data)),
		slog.Int("samples", len(pcm)))

	return bufferStream(c, format, newPCMStreamer(pcm, f.channels))
}

// NewDefault returns the decoder the application uses: native decoders with
// ffmpeg as the fallback for browser recording formats.
func NewDefault(opts ...ffmpeg.ConfigOpt) *Registry {
	return NewRegistry(NewFFmpeg(opts...))
}
