package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/disgoorg/audio/opus"
	"github.com/disgoorg/audio/pcm"
	"github.com/disgoorg/disgo/voice"
	"github.com/gopxl/beep/v2"

	"soundboard/playback"
)

const (
	// SampleRate is the only rate Discord voice accepts.
	SampleRate = 48000
	Channels   = 2
	// FrameSize is one 20ms Opus frame per channel.
	FrameSize = 960
)

// ErrNotConnected means the voice connection is not open.
var ErrNotConnected = errors.New("voice connection is not open")

var (
	_ playback.Output   = (*VoiceOutput)(nil)
	_ pcm.FrameProvider = (*VoiceOutput)(nil)
)

// VoiceOutput plays the engine mix into a Discord voice channel. Discord
// asks for a PCM frame every 20ms; each request pulls one frame from the
// mix bus.
type VoiceOutput struct {
	mu      sync.Mutex
	bus     beep.Streamer
	samples [][2]float64

	state  sync.Mutex
	conn   voice.Conn
	closed bool

	logger *slog.Logger
}

// NewVoiceOutput creates an output that is not yet connected.
func NewVoiceOutput() *VoiceOutput {
	return &VoiceOutput{
		samples: make([][2]float64, FrameSize),
		logger:  slog.With("component", "voice"),
	}
}

// Attach hands an open voice connection to the output.
func (v *VoiceOutput) Attach(conn voice.Conn) {
	v.state.Lock()
	defer v.state.Unlock()

	v.conn = conn
	v.closed = false
}

// Connected reports whether an open connection is attached.
func (v *VoiceOutput) Connected() bool {
	v.state.Lock()
	defer v.state.Unlock()

	return v.conn != nil && !v.closed
}

// Init starts feeding the mix to the voice connection. It is refused until
// a connection is attached, so the engine retries on the next play.
func (v *VoiceOutput) Init(sampleRate beep.SampleRate, bus beep.Streamer) error {
	if int(sampleRate) != SampleRate {
		return fmt.Errorf("discord voice needs %d Hz, engine mixes at %d Hz", SampleRate, sampleRate)
	}

	v.state.Lock()
	defer v.state.Unlock()

	if v.conn == nil || v.closed {
		return ErrNotConnected
	}

	v.mu.Lock()
	v.bus = bus
	v.mu.Unlock()

	encoder, err := opus.NewEncoder(SampleRate, Channels, opus.ApplicationAudio)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}
	provider, err := pcm.NewOpusProvider(encoder, v)
	if err != nil {
		return fmt.Errorf("failed to create opus provider: %w", err)
	}

	if err := v.conn.SetSpeaking(context.Background(), voice.SpeakingFlagMicrophone); err != nil {
		return fmt.Errorf("failed to set speaking flag: %w", err)
	}
	v.conn.SetOpusFrameProvider(provider)

	v.logger.Info("Voice output started")
	return nil
}

// ProvidePCMFrame pulls one frame of interleaved stereo int16 from the mix.
func (v *VoiceOutput) ProvidePCMFrame() ([]int16, error) {
	v.state.Lock()
	closed := v.closed
	v.state.Unlock()
	if closed {
		return nil, io.EOF
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.bus == nil {
		return make([]int16, FrameSize*Channels), nil
	}

	v.bus.Stream(v.samples)
	frame := make([]int16, 0, FrameSize*Channels)
	for _, s := range v.samples {
		frame = append(frame, toInt16(s[0]), toInt16(s[1]))
	}
	return frame, nil
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

func (v *VoiceOutput) Lock() {
	v.mu.Lock()
}

func (v *VoiceOutput) Unlock() {
	v.mu.Unlock()
}

// Close is called by the opus provider when it shuts down. It marks the
// output closed without tearing down the connection.
func (v *VoiceOutput) Close() {
	v.state.Lock()
	defer v.state.Unlock()

	v.closed = true
}

// Disconnect leaves the voice channel.
func (v *VoiceOutput) Disconnect(ctx context.Context) {
	v.state.Lock()
	conn := v.conn
	v.conn = nil
	v.closed = true
	v.state.Unlock()

	if conn != nil {
		conn.Close(ctx)
	}
}
