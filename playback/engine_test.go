package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"

	"soundboard/codec"
	"soundboard/sound"
)

// fakeOutput stands in for the audio device. Tests pull samples from the
// bus by hand instead of a device goroutine doing it.
type fakeOutput struct {
	mu      sync.Mutex
	bus     beep.Streamer
	initErr error
	inits   int
}

func (o *fakeOutput) Init(_ beep.SampleRate, bus beep.Streamer) error {
	o.inits++
	if o.initErr != nil {
		return o.initErr
	}
	o.bus = bus
	return nil
}

func (o *fakeOutput) Lock()   { o.mu.Lock() }
func (o *fakeOutput) Unlock() { o.mu.Unlock() }

func (o *fakeOutput) pull(frames int) [][2]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	samples := make([][2]float64, frames)
	if o.bus != nil {
		o.bus.Stream(samples)
	}
	return samples
}

// fakeDecoder produces constant-valued audio and counts its calls.
type fakeDecoder struct {
	mu      sync.Mutex
	calls   int
	frames  map[string]int
	value   float64
	err     error
	started chan struct{}
	gate    chan struct{}
}

func newFakeDecoder() *fakeDecoder {
	return &fakeDecoder{frames: make(map[string]int), value: 0.5}
}

func (d *fakeDecoder) Decode(_ context.Context, c codec.Container, data []byte) (*codec.Decoded, error) {
	d.mu.Lock()
	d.calls++
	err := d.err
	frames, ok := d.frames[string(data)]
	started, gate := d.started, d.gate
	d.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		frames = 48000
	}
	return constDecoded(c, frames, d.value), nil
}

func (d *fakeDecoder) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func constDecoded(c codec.Container, frames int, value float64) *codec.Decoded {
	format := beep.Format{SampleRate: DefaultSampleRate, NumChannels: 2, Precision: 2}
	buf := beep.NewBuffer(format)
	left := frames
	buf.Append(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left == 0 {
			return 0, false
		}
		n := min(left, len(samples))
		for i := range samples[:n] {
			samples[i] = [2]float64{value, value}
		}
		left -= n
		return n, true
	}))
	return &codec.Decoded{Buffer: buf, Format: format, Container: c}
}

// wavBlob returns a blob that sniffs as WAV. tag makes its bytes unique so
// the fake decoder can size it.
func wavBlob(tag string) *sound.Blob {
	return sound.NewBlob([]byte("RIFF\x00\x00\x00\x00WAVE"+tag), "audio/wav")
}

func newTestEngine(t *testing.T) (*Engine, *fakeOutput, *fakeDecoder) {
	t.Helper()
	out := &fakeOutput{}
	dec := newFakeDecoder()
	e := New(out, WithDecoder(dec))
	t.Cleanup(func() { e.Close() })
	return e, out, dec
}

func mustPlay(t *testing.T, e *Engine, blob *sound.Blob, opts ...PlayOption) *Handle {
	t.Helper()
	h, err := e.Play(context.Background(), blob, opts...)
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if h == nil {
		t.Fatal("Play() returned nil handle")
	}
	return h
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("instance %s did not finish", h.ID())
	}
}

func TestPlayExclusiveStopsPrevious(t *testing.T) {
	e, _, _ := newTestEngine(t)

	a := mustPlay(t, e, wavBlob("a"), WithSoundID("a"))
	b := mustPlay(t, e, wavBlob("b"), WithSoundID("b"))

	select {
	case <-a.Done():
	default:
		t.Error("first instance still running after exclusive play")
	}

	got := e.State()
	if got.Active != 1 || got.PlayingID != "b" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:b}", got)
	}

	select {
	case <-b.Done():
		t.Error("second instance finished early")
	default:
	}
}

func TestPlayOverlapKeepsBoth(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustPlay(t, e, wavBlob("a"), WithSoundID("a"), WithOverlap(true))
	mustPlay(t, e, wavBlob("b"), WithSoundID("b"), WithOverlap(true))

	got := e.State()
	if got.Active != 2 || got.PlayingID != "b" {
		t.Errorf("State() = %+v, want {Active:2 PlayingID:b}", got)
	}
}

func TestPlayWithoutSoundIDKeepsIndicator(t *testing.T) {
	e, _, _ := newTestEngine(t)

	mustPlay(t, e, wavBlob("a"), WithSoundID("a"), WithOverlap(true))
	mustPlay(t, e, wavBlob("preview"), WithOverlap(true))

	if got := e.PlayingID(); got != "a" {
		t.Errorf("PlayingID() = %q, want %q", got, "a")
	}

	// An exclusive play without an id stops "a", so nothing carries it.
	mustPlay(t, e, wavBlob("preview"))
	if got := e.State(); got.Active != 1 || got.PlayingID != "" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:}", got)
	}
}

func TestPlayInvalidInput(t *testing.T) {
	e, _, dec := newTestEngine(t)
	mustPlay(t, e, wavBlob("a"), WithSoundID("a"))
	before := e.State()

	tests := []struct {
		name string
		blob *sound.Blob
	}{
		{name: "nil blob", blob: nil},
		{name: "empty blob", blob: sound.NewBlob(nil, "audio/wav")},
		{name: "not audio", blob: sound.NewBlob([]byte("hello world"), "text/plain")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := e.Play(context.Background(), tt.blob, WithSoundID("x"))
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("Play() error = %v, want ErrInvalidInput", err)
			}
			if h != nil {
				t.Error("Play() returned a handle on error")
			}
			if got := e.State(); got != before {
				t.Errorf("State() = %+v, want unchanged %+v", got, before)
			}
		})
	}

	if got := dec.callCount(); got != 1 {
		t.Errorf("decoder called %d times, want 1", got)
	}
}

func TestPlayDecodeError(t *testing.T) {
	e, _, dec := newTestEngine(t)
	mustPlay(t, e, wavBlob("a"), WithSoundID("a"))

	dec.mu.Lock()
	dec.err = codec.ErrCorrupt
	dec.mu.Unlock()

	h, err := e.Play(context.Background(), wavBlob("corrupt"), WithSoundID("c"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("Play() error = %v, want ErrDecode", err)
	}
	if !errors.Is(err, codec.ErrCorrupt) {
		t.Errorf("Play() error = %v, want it to wrap codec.ErrCorrupt", err)
	}
	if h != nil {
		t.Error("Play() returned a handle on error")
	}
	if got := e.State(); got.Active != 1 || got.PlayingID != "a" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:a}", got)
	}

	dec.mu.Lock()
	dec.err = nil
	dec.mu.Unlock()

	mustPlay(t, e, wavBlob("d"), WithSoundID("d"))
	if got := e.State(); got.Active != 1 || got.PlayingID != "d" {
		t.Errorf("State() after recovery = %+v, want {Active:1 PlayingID:d}", got)
	}
}

func TestStopAll(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// No instances: nothing to do, nothing to fail.
	e.StopAll()
	if got := e.State(); got != (State{}) {
		t.Errorf("State() = %+v, want zero", got)
	}

	a := mustPlay(t, e, wavBlob("a"), WithSoundID("a"), WithOverlap(true))
	b := mustPlay(t, e, wavBlob("b"), WithSoundID("b"), WithOverlap(true))

	e.StopAll()
	e.StopAll()

	if got := e.State(); got != (State{}) {
		t.Errorf("State() = %+v, want zero", got)
	}
	waitDone(t, a)
	waitDone(t, b)
}

func TestStoppedInstancesLeaveTheMix(t *testing.T) {
	e, out, _ := newTestEngine(t)

	mustPlay(t, e, wavBlob("a"), WithOverlap(true))
	if s := out.pull(16); s[0][0] == 0 {
		t.Fatal("expected audible samples while playing")
	}

	e.StopAll()
	for _, s := range out.pull(16) {
		if s != [2]float64{} {
			t.Fatalf("got sample %v after StopAll, want silence", s)
		}
	}
}

func TestHandleStop(t *testing.T) {
	e, _, _ := newTestEngine(t)

	a := mustPlay(t, e, wavBlob("a"), WithSoundID("a"), WithOverlap(true))
	b := mustPlay(t, e, wavBlob("b"), WithSoundID("b"), WithOverlap(true))

	b.Stop()
	waitDone(t, b)
	if got := e.State(); got.Active != 1 || got.PlayingID != "a" {
		t.Errorf("State() after stopping b = %+v, want {Active:1 PlayingID:a}", got)
	}

	a.Stop()
	a.Stop()
	if got := e.State(); got != (State{}) {
		t.Errorf("State() after stopping a = %+v, want zero", got)
	}
}

func TestCacheReusesDecodePerBlob(t *testing.T) {
	e, _, dec := newTestEngine(t)

	blob := wavBlob("a")
	mustPlay(t, e, blob)
	mustPlay(t, e, blob)

	if got := dec.callCount(); got != 1 {
		t.Errorf("decoder called %d times for one blob, want 1", got)
	}

	// Same bytes, different blob: a separate entry.
	mustPlay(t, e, wavBlob("a"))
	if got := dec.callCount(); got != 2 {
		t.Errorf("decoder called %d times, want 2", got)
	}
}

func TestNaturalCompletionClearsPlayingID(t *testing.T) {
	e, out, dec := newTestEngine(t)
	dec.frames["RIFF\x00\x00\x00\x00WAVEshort"] = 100

	h := mustPlay(t, e, wavBlob("short"), WithSoundID("short"))
	if got := e.PlayingID(); got != "short" {
		t.Fatalf("PlayingID() = %q, want %q", got, "short")
	}

	out.pull(512)
	waitDone(t, h)

	if got := e.State(); got != (State{}) {
		t.Errorf("State() = %+v, want zero", got)
	}
}

func TestPlayingIDFollowsRemainingInstance(t *testing.T) {
	e, out, dec := newTestEngine(t)
	dec.frames["RIFF\x00\x00\x00\x00WAVEshort"] = 100

	mustPlay(t, e, wavBlob("long"), WithSoundID("long"), WithOverlap(true))
	short := mustPlay(t, e, wavBlob("short"), WithSoundID("short"), WithOverlap(true))

	out.pull(512)
	waitDone(t, short)

	if got := e.State(); got.Active != 1 || got.PlayingID != "long" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:long}", got)
	}
}

func TestLoopingInstanceNeverCompletes(t *testing.T) {
	e, out, dec := newTestEngine(t)
	dec.frames["RIFF\x00\x00\x00\x00WAVEloop"] = 100

	h := mustPlay(t, e, wavBlob("loop"), WithSoundID("loop"), WithLoop(true))
	for range 10 {
		out.pull(512)
	}

	select {
	case <-h.Done():
		t.Fatal("looping instance finished on its own")
	case <-time.After(20 * time.Millisecond):
	}
	if got := e.State(); got.Active != 1 || got.PlayingID != "loop" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:loop}", got)
	}

	h.Stop()
	waitDone(t, h)
	if got := e.State(); got != (State{}) {
		t.Errorf("State() after Stop = %+v, want zero", got)
	}
}

func TestVolumeIsLinearGain(t *testing.T) {
	tests := []struct {
		volume int
		want   float64
	}{
		{volume: 100, want: 0.5},
		{volume: 50, want: 0.25},
		{volume: 0, want: 0},
		{volume: 250, want: 0.5},
		{volume: -10, want: 0},
	}

	for _, tt := range tests {
		e, out, _ := newTestEngine(t)
		mustPlay(t, e, wavBlob("a"), WithVolume(tt.volume))

		got := out.pull(8)[4][0]
		if math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("volume %d: sample = %v, want %v", tt.volume, got, tt.want)
		}
	}
}

func TestStopAllCancelsPendingPlay(t *testing.T) {
	e, _, dec := newTestEngine(t)
	dec.started = make(chan struct{}, 1)
	dec.gate = make(chan struct{})

	blob := wavBlob("slow")
	type result struct {
		h   *Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := e.Play(context.Background(), blob, WithSoundID("slow"))
		done <- result{h, err}
	}()

	<-dec.started
	e.StopAll()
	close(dec.gate)

	res := <-done
	if res.err != nil || res.h != nil {
		t.Fatalf("Play() = (%v, %v), want (nil, nil)", res.h, res.err)
	}
	if got := e.State(); got != (State{}) {
		t.Errorf("State() = %+v, want zero", got)
	}

	// The decode still landed in the cache.
	dec.mu.Lock()
	dec.started, dec.gate = nil, nil
	dec.mu.Unlock()
	mustPlay(t, e, blob)
	if got := dec.callCount(); got != 1 {
		t.Errorf("decoder called %d times, want 1", got)
	}
}

func TestLaterExclusivePlaySupersedesPendingPlay(t *testing.T) {
	e, _, dec := newTestEngine(t)
	gate := make(chan struct{})
	dec.started = make(chan struct{}, 1)
	dec.gate = gate

	done := make(chan *Handle, 1)
	go func() {
		h, _ := e.Play(context.Background(), wavBlob("slow"), WithSoundID("slow"), WithOverlap(true))
		done <- h
	}()
	<-dec.started

	dec.mu.Lock()
	dec.started, dec.gate = nil, nil
	dec.mu.Unlock()

	mustPlay(t, e, wavBlob("fast"), WithSoundID("fast"))
	close(gate)

	if h := <-done; h != nil {
		t.Error("superseded play started an instance")
	}
	if got := e.State(); got.Active != 1 || got.PlayingID != "fast" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:fast}", got)
	}
}

func TestFailedPlayKeepsPendingPlay(t *testing.T) {
	tests := []struct {
		name    string
		fail    func(e *Engine, out *fakeOutput, dec *fakeDecoder) error
		wantErr error
	}{
		{
			name: "decode error",
			fail: func(e *Engine, _ *fakeOutput, dec *fakeDecoder) error {
				dec.mu.Lock()
				dec.err = codec.ErrCorrupt
				dec.mu.Unlock()
				defer func() {
					dec.mu.Lock()
					dec.err = nil
					dec.mu.Unlock()
				}()

				_, err := e.Play(context.Background(), wavBlob("bad"), WithSoundID("bad"))
				return err
			},
			wantErr: ErrDecode,
		},
		{
			name: "playback denied",
			fail: func(e *Engine, out *fakeOutput, _ *fakeDecoder) error {
				out.initErr = errors.New("device busy")
				defer func() { out.initErr = nil }()

				_, err := e.Play(context.Background(), wavBlob("denied"), WithSoundID("denied"))
				return err
			},
			wantErr: ErrPlaybackDenied,
		},
		{
			name: "cancelled context",
			fail: func(e *Engine, _ *fakeOutput, dec *fakeDecoder) error {
				gate := make(chan struct{})
				defer close(gate)
				dec.mu.Lock()
				dec.gate = gate
				dec.mu.Unlock()
				defer func() {
					dec.mu.Lock()
					dec.gate = nil
					dec.mu.Unlock()
				}()

				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				_, err := e.Play(ctx, wavBlob("cancelled"), WithSoundID("cancelled"))
				return err
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, out, dec := newTestEngine(t)
			gate := make(chan struct{})
			dec.started = make(chan struct{}, 1)
			dec.gate = gate

			type result struct {
				h   *Handle
				err error
			}
			done := make(chan result, 1)
			go func() {
				h, err := e.Play(context.Background(), wavBlob("a"), WithSoundID("a"))
				done <- result{h, err}
			}()
			<-dec.started

			dec.mu.Lock()
			dec.started, dec.gate = nil, nil
			dec.mu.Unlock()

			if err := tt.fail(e, out, dec); !errors.Is(err, tt.wantErr) {
				t.Fatalf("failing Play() error = %v, want %v", err, tt.wantErr)
			}
			close(gate)

			res := <-done
			if res.err != nil || res.h == nil {
				t.Fatalf("pending Play() = (%v, %v), want a handle", res.h, res.err)
			}
			if got := e.State(); got.Active != 1 || got.PlayingID != "a" {
				t.Errorf("State() = %+v, want {Active:1 PlayingID:a}", got)
			}
		})
	}
}

func TestEarlierExclusivePlayDoesNotSupersedeLaterOne(t *testing.T) {
	e, _, dec := newTestEngine(t)
	first, second := make(chan struct{}), make(chan struct{})
	dec.started = make(chan struct{}, 1)
	dec.gate = first

	type result struct {
		h   *Handle
		err error
	}
	play := func(tag string) <-chan result {
		done := make(chan result, 1)
		go func() {
			h, err := e.Play(context.Background(), wavBlob(tag), WithSoundID(tag))
			done <- result{h, err}
		}()
		return done
	}

	doneA := play("a")
	<-dec.started
	dec.mu.Lock()
	dec.gate = second
	dec.mu.Unlock()

	doneB := play("b")
	<-dec.started

	close(first)
	a := <-doneA
	if a.err != nil || a.h == nil {
		t.Fatalf("Play(a) = (%v, %v), want a handle", a.h, a.err)
	}

	close(second)
	b := <-doneB
	if b.err != nil || b.h == nil {
		t.Fatalf("Play(b) = (%v, %v), want a handle", b.h, b.err)
	}

	waitDone(t, a.h)
	if got := e.State(); got.Active != 1 || got.PlayingID != "b" {
		t.Errorf("State() = %+v, want {Active:1 PlayingID:b}", got)
	}
}

func TestPlaybackDenied(t *testing.T) {
	e, out, dec := newTestEngine(t)
	out.initErr = errors.New("no output device")

	blob := wavBlob("a")
	h, err := e.Play(context.Background(), blob, WithSoundID("a"))
	if !errors.Is(err, ErrPlaybackDenied) {
		t.Fatalf("Play() error = %v, want ErrPlaybackDenied", err)
	}
	if h != nil {
		t.Error("Play() returned a handle on error")
	}
	if got := e.State(); got != (State{}) {
		t.Errorf("State() = %+v, want zero", got)
	}

	out.initErr = nil
	mustPlay(t, e, blob, WithSoundID("a"))
	if got := dec.callCount(); got != 1 {
		t.Errorf("decoder called %d times, want 1", got)
	}
}

func TestInitContextIsIdempotent(t *testing.T) {
	e, out, _ := newTestEngine(t)

	for range 3 {
		if err := e.InitContext(); err != nil {
			t.Fatalf("InitContext() error = %v", err)
		}
	}
	mustPlay(t, e, wavBlob("a"))

	if out.inits != 1 {
		t.Errorf("output initialized %d times, want 1", out.inits)
	}
}

func TestSubscribe(t *testing.T) {
	e, _, _ := newTestEngine(t)

	ch, cancel := e.Subscribe()
	defer cancel()

	if got := <-ch; got != "" {
		t.Fatalf("initial value = %q, want empty", got)
	}

	mustPlay(t, e, wavBlob("a"), WithSoundID("a"))
	if got := <-ch; got != "a" {
		t.Errorf("after play = %q, want %q", got, "a")
	}

	e.StopAll()
	if got := <-ch; got != "" {
		t.Errorf("after StopAll = %q, want empty", got)
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}

func TestExclusivePlaysKeepOneInstance(t *testing.T) {
	e, _, _ := newTestEngine(t)

	blobs := []*sound.Blob{wavBlob("a"), wavBlob("b"), wavBlob("c")}
	for i := range 12 {
		overlap := i%4 == 3
		mustPlay(t, e, blobs[i%len(blobs)], WithOverlap(overlap), WithSoundID(string(rune('a'+i%3))))

		got := e.State()
		if !overlap && got.Active != 1 {
			t.Fatalf("play %d: %d active instances, want 1", i, got.Active)
		}
		if got.PlayingID == "" {
			t.Fatalf("play %d: empty playing id with %d active", i, got.Active)
		}
	}
}

func TestClosedEngineRejectsPlay(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustPlay(t, e, wavBlob("a"))

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := e.Play(context.Background(), wavBlob("b")); !errors.Is(err, ErrClosed) {
		t.Errorf("Play() after Close error = %v, want ErrClosed", err)
	}
	if got := e.State(); got != (State{}) {
		t.Errorf("State() = %+v, want zero", got)
	}
}
