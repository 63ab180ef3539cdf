package playback

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/google/uuid"

	"soundboard/codec"
)

// Handle is one live playback instance. It is created by Engine.Play and
// ends either when the sound finishes or when it is stopped.
type Handle struct {
	id       string
	soundID  string
	seq      uint64
	loop     bool
	volume   int
	duration time.Duration

	src     beep.Streamer
	stopped atomic.Bool
	ended   atomic.Bool
	onEnd   func(*Handle)

	done     chan struct{}
	doneOnce sync.Once

	engine *Engine
}

var _ beep.Streamer = (*Handle)(nil)

func newHandle(e *Engine, seq uint64, decoded *codec.Decoded, cfg playConfig) *Handle {
	return &Handle{
		id:       uuid.NewString(),
		soundID:  cfg.soundID,
		seq:      seq,
		loop:     cfg.loop,
		volume:   cfg.volume,
		duration: decoded.Duration(),
		src:      newPipeline(decoded, e.sampleRate, cfg.volume, cfg.loop),
		onEnd:    e.complete,
		done:     make(chan struct{}),
		engine:   e,
	}
}

// newPipeline builds a fresh playback chain over a shared decoded buffer:
// buffer (looped if asked), resampled to the device rate, then gain.
func newPipeline(decoded *codec.Decoded, rate beep.SampleRate, volume int, loop bool) beep.Streamer {
	buf := decoded.Buffer

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if loop {
		s = beep.Loop(-1, buf.Streamer(0, buf.Len()))
	}
	if decoded.Format.SampleRate != rate {
		s = beep.Resample(4, decoded.Format.SampleRate, rate, s)
	}

	return &effects.Gain{
		Streamer: s,
		Gain:     gain(volume) - 1,
	}
}

// ID is unique per instance.
func (h *Handle) ID() string { return h.id }

// SoundID is the logical sound this instance was started for, if any.
func (h *Handle) SoundID() string { return h.soundID }

// Loop reports whether the instance repeats until stopped.
func (h *Handle) Loop() bool { return h.loop }

// Volume is the 0-100 volume the instance was started with.
func (h *Handle) Volume() int { return h.volume }

// Duration is the length of one pass through the sound.
func (h *Handle) Duration() time.Duration { return h.duration }

// Done is closed once the instance has finished or been stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Stop silences this instance. Stopping an instance that already ended is
// a no-op.
func (h *Handle) Stop() {
	h.engine.stop(h)
}

// Stream implements beep.Streamer. It runs on the output's goroutine.
func (h *Handle) Stream(samples [][2]float64) (n int, ok bool) {
	if h.stopped.Load() || h.ended.Load() {
		return 0, false
	}

	n, ok = h.src.Stream(samples)
	if !ok || n < len(samples) {
		if h.ended.CompareAndSwap(false, true) && !h.stopped.Load() {
			h.onEnd(h)
		}
		return n, n > 0
	}
	return n, true
}

// Err reports a failure of the underlying pipeline. Decoded buffers do not
// fail, so in practice it is always nil.
func (h *Handle) Err() error {
	return h.src.Err()
}

// halt marks the instance stopped so the mixer drops it on its next pull.
func (h *Handle) halt() {
	h.stopped.Store(true)
	h.finish()
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}
