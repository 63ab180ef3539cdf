package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Decoded is an encoded payload turned into ready-to-play samples. It is
// never modified after the decoder returns it.
type Decoded struct {
	Buffer    *beep.Buffer
	Format    beep.Format
	Container Container
}

// Len returns the number of sample frames.
func (d *Decoded) Len() int { return d.Buffer.Len() }

// Duration returns the playing time at the native sample rate.
func (d *Decoded) Duration() time.Duration { return d.Format.SampleRate.D(d.Buffer.Len()) }

// Channels returns the channel count of the source material.
func (d *Decoded) Channels() int { return d.Format.NumChannels }

// Decoder converts encoded bytes into a Decoded resource.
type Decoder interface {
	Decode(ctx context.Context, c Container, data []byte) (*Decoded, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, c Container, data []byte) (*Decoded, error)

func (f DecoderFunc) Decode(ctx context.Context, c Container, data []byte) (*Decoded, error) {
	return f(ctx, c, data)
}

// Registry decodes WAV, MP3, FLAC and Ogg Vorbis natively and hands every
// other container to a fallback decoder.
type Registry struct {
	fallback Decoder
	logger   *slog.Logger
}

var _ Decoder = (*Registry)(nil)

// NewRegistry returns a registry using fallback for containers that have no
// native decoder. A nil fallback makes those containers unsupported.
func NewRegistry(fallback Decoder) *Registry {
	return &Registry{
		fallback: fallback,
		logger:   slog.With("component", "codec"),
	}
}

func (r *Registry) Decode(ctx context.Context, c Container, data []byte) (*Decoded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch c {
	case WAV:
		streamer, format, err = wav.Decode(bytes.NewReader(data))
	case MP3:
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case FLAC:
		streamer, format, err = flac.Decode(bytes.NewReader(data))
	case Vorbis:
		streamer, format, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		if r.fallback == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, c)
		}
		return r.fallback.Decode(ctx, c, data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, c, err)
	}
	defer streamer.Close()

	decoded, err := bufferStream(c, format, streamer)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Decoded audio",
		slog.String("container", string(c)),
		slog.Duration("duration", decoded.Duration()),
		slog.Int("channels", decoded.Channels()),
		slog.Duration("took", time.Since(start)))

	return decoded, nil
}

// bufferStream drains a streamer into memory.
func bufferStream(c Container, format beep.Format, s beep.Streamer) (*Decoded, error) {
	buffer := beep.NewBuffer(format)
	buffer.Append(s)

	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, c, err)
	}
	if buffer.Len() == 0 {
		return nil, fmt.Errorf("%w: %s: no samples", ErrCorrupt, c)
	}

	return &Decoded{
		Buffer:    buffer,
		Format:    format,
		Container: c,
	}, nil
}
