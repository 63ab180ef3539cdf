package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gopxl/beep/v2"

	"soundboard/codec"
	"soundboard/sound"
)

// DefaultSampleRate is the mix rate used when none is configured.
const DefaultSampleRate = beep.SampleRate(48000)

// Engine turns audio blobs into sound. It owns the decoded-audio cache, the
// set of live instances, and the playing id that the UI highlights.
//
// All changes to the active set and the playing id happen under one lock,
// so an observer never sees an id that no live instance carries.
type Engine struct {
	out        Output
	decoder    codec.Decoder
	sampleRate beep.SampleRate
	logger     *slog.Logger

	cache *cache
	bus   *bus

	initMu sync.Mutex
	ready  bool

	mu     sync.Mutex
	closed bool

	// Every Play takes a ticket. Tickets below cutoff are superseded.
	tickets uint64
	cutoff  uint64

	seq       uint64
	active    map[*Handle]struct{}
	playingID string
	watchers  map[chan string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecoder replaces the default decoder.
func WithDecoder(d codec.Decoder) Option {
	return func(e *Engine) { e.decoder = d }
}

// WithSampleRate sets the rate the engine mixes at.
func WithSampleRate(rate beep.SampleRate) Option {
	return func(e *Engine) { e.sampleRate = rate }
}

// WithLogger replaces the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine playing through out. The output is not touched
// until InitContext or the first Play.
func New(out Output, opts ...Option) *Engine {
	e := &Engine{
		out:        out,
		sampleRate: DefaultSampleRate,
		logger:     slog.With("component", "playback"),
		cache:      newCache(),
		bus:        &bus{},
		active:     make(map[*Handle]struct{}),
		watchers:   make(map[chan string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.decoder == nil {
		e.decoder = codec.NewDefault()
	}
	return e
}

// SampleRate is the rate the engine mixes at.
func (e *Engine) SampleRate() beep.SampleRate { return e.sampleRate }

// InitContext brings the output up. It is safe to call any number of
// times; once it has succeeded, further calls do nothing. Some platforms
// only grant audio after a user gesture, so UIs call this on first input.
func (e *Engine) InitContext() error {
	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.ready {
		return nil
	}
	if err := e.out.Init(e.sampleRate, e.bus); err != nil {
		return err
	}
	e.ready = true
	e.logger.Debug("Audio output ready", slog.Int("sample_rate", int(e.sampleRate)))
	return nil
}

// Play decodes blob (or reuses an earlier decode of the same blob) and
// starts one new instance of it.
//
// Without WithOverlap, every instance already playing is stopped in the
// same step that starts the new one. If StopAll is called, or a Play
// without overlap that was triggered later starts first, while this call is
// still decoding, the call returns a nil handle and a nil error and nothing
// is played. A Play that fails supersedes nothing.
//
// Errors wrap ErrInvalidInput, ErrDecode or ErrPlaybackDenied. None of them
// change the active set or the playing id.
func (e *Engine) Play(ctx context.Context, blob *sound.Blob, opts ...PlayOption) (*Handle, error) {
	cfg := newPlayConfig(opts)

	if blob == nil || blob.Size() == 0 {
		return nil, fmt.Errorf("%w: no audio data", ErrInvalidInput)
	}
	container, err := codec.Sniff(blob.Bytes(), blob.Type())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ticket, err := e.acquire()
	if err != nil {
		return nil, err
	}

	decoded, err := e.cache.load(ctx, blob, container, e.decoder)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		e.logger.Warn("Decode failed",
			slog.String("blob", blob.ID()),
			slog.String("container", string(container)),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := e.InitContext(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlaybackDenied, err)
	}

	return e.start(ticket, decoded, cfg)
}

// acquire hands out the ticket a Play is ordered by. Taking a ticket
// changes nothing else, so a Play that fails later leaves no trace.
func (e *Engine) acquire() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrClosed
	}
	e.tickets++
	return e.tickets, nil
}

// start registers the instance unless the ticket was superseded. A
// non-overlapping start supersedes every request that took its ticket
// earlier; later requests still go ahead.
func (e *Engine) start(ticket uint64, decoded *codec.Decoded, cfg playConfig) (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if ticket < e.cutoff {
		e.logger.Debug("Dropping superseded play", slog.String("sound", cfg.soundID))
		return nil, nil
	}
	if !cfg.allowOverlap {
		e.cutoff = ticket + 1
	}

	e.seq++
	h := newHandle(e, e.seq, decoded, cfg)
	prev := e.playingID

	e.out.Lock()
	if !cfg.allowOverlap {
		e.haltAllLocked()
	}
	e.bus.mixer.Add(h)
	e.out.Unlock()

	e.active[h] = struct{}{}
	if cfg.soundID != "" {
		e.playingID = cfg.soundID
	}
	e.publishLocked(prev)

	e.logger.Debug("Started playback",
		slog.String("instance", h.id),
		slog.String("sound", cfg.soundID),
		slog.Int("volume", cfg.volume),
		slog.Bool("loop", cfg.loop),
		slog.Bool("overlap", cfg.allowOverlap),
		slog.Int("active", len(e.active)))

	return h, nil
}

// StopAll stops every live instance and clears the playing id. Plays still
// decoding when StopAll is called will not start. It never fails.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cutoff = e.tickets + 1
	if len(e.active) == 0 && e.playingID == "" {
		return
	}

	prev := e.playingID
	e.out.Lock()
	n := e.haltAllLocked()
	e.out.Unlock()
	e.publishLocked(prev)

	e.logger.Debug("Stopped all playback", slog.Int("stopped", n))
}

// haltAllLocked stops every active instance and clears the playing id.
// Callers hold e.mu and the output lock.
func (e *Engine) haltAllLocked() int {
	n := len(e.active)
	for h := range e.active {
		h.halt()
	}
	clear(e.active)
	e.playingID = ""
	return n
}

func (e *Engine) stop(h *Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[h]; !ok {
		return
	}

	e.out.Lock()
	h.halt()
	e.out.Unlock()

	e.removeLocked(h)
}

// complete is called when an instance runs out of samples. The output
// goroutine may hold its own lock at that point, so the bookkeeping runs
// on a goroutine of its own.
func (e *Engine) complete(h *Handle) {
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		h.finish()
		if _, ok := e.active[h]; !ok {
			return
		}
		e.removeLocked(h)

		e.logger.Debug("Playback finished",
			slog.String("instance", h.id),
			slog.String("sound", h.soundID),
			slog.Int("active", len(e.active)))
	}()
}

// removeLocked drops h from the active set and repairs the playing id: if
// h carried it and nothing else does, the id moves to the most recently
// started instance that has one, or is cleared.
func (e *Engine) removeLocked(h *Handle) {
	prev := e.playingID
	delete(e.active, h)

	switch {
	case len(e.active) == 0:
		e.playingID = ""
	case h.soundID != "" && h.soundID == e.playingID && !e.carriesLocked(h.soundID):
		e.playingID = e.latestSoundIDLocked()
	}

	e.publishLocked(prev)
}

func (e *Engine) carriesLocked(id string) bool {
	for h := range e.active {
		if h.soundID == id {
			return true
		}
	}
	return false
}

// latestSoundIDLocked returns the sound id of the most recently started
// active instance that has one.
func (e *Engine) latestSoundIDLocked() string {
	var latest *Handle
	for h := range e.active {
		if h.soundID != "" && (latest == nil || h.seq > latest.seq) {
			latest = h
		}
	}
	if latest == nil {
		return ""
	}
	return latest.soundID
}

// PlayingID returns the sound id currently shown as playing, or "".
//
// The id is set by every Play that carries one. When the instance holding
// it ends or is stopped while others keep playing, the id moves to the most
// recently started remaining instance that has one, so it always names a
// sound that is actually audible. It is cleared once nothing carries an id.
func (e *Engine) PlayingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.playingID
}

// State is a consistent snapshot of the engine.
type State struct {
	Active    int
	PlayingID string
}

// State returns the active instance count and playing id as of one moment.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return State{Active: len(e.active), PlayingID: e.playingID}
}

// Subscribe returns a channel carrying the playing id. It receives the
// current value at once and then every change; a slow reader only ever
// sees the latest value. Call the returned func to unsubscribe.
func (e *Engine) Subscribe() (<-chan string, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan string, 1)
	ch <- e.playingID
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	e.watchers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()

			if _, ok := e.watchers[ch]; ok {
				delete(e.watchers, ch)
				close(ch)
			}
		})
	}
}

// publishLocked notifies watchers if the playing id changed from prev.
func (e *Engine) publishLocked(prev string) {
	if e.playingID == prev {
		return
	}
	for ch := range e.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- e.playingID
	}
}

// Close stops all playback, ends every subscription and releases the
// output if it can be closed. Play fails with ErrClosed afterwards.
func (e *Engine) Close() error {
	e.StopAll()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for ch := range e.watchers {
		close(ch)
	}
	clear(e.watchers)
	e.mu.Unlock()

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if c, ok := e.out.(io.Closer); ok && e.ready {
		e.ready = false
		return c.Close()
	}
	return nil
}
