package sound

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

// mixRate is the sample rate the speaker is initialized with. Decoded
// streams at other rates are resampled on the fly.
const mixRate = beep.SampleRate(44100)

// fadeSlice is the time-slice granularity of the linear fade-out ramp.
const fadeSlice = 50 * time.Millisecond

// playHandle tracks one in-flight playback so Stop and the end-of-stream
// callback can both release the waiter without racing.
type playHandle struct {
	done chan struct{}
	once sync.Once
}

func (h *playHandle) finish() {
	h.once.Do(func() { close(h.done) })
}

// LocalBackend plays sounds through the system mixer via beep/speaker.
type LocalBackend struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	level   float64 // linear volume [0,1]
	vol     *effects.Volume
	current *playHandle
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates the local mixer backend at full volume.
func NewLocalBackend(log *zap.SugaredLogger) *LocalBackend {
	return &LocalBackend{log: log, level: 1.0}
}

// Init opens the speaker with a 100 ms buffer.
func (b *LocalBackend) Init() error {
	return speaker.Init(mixRate, mixRate.N(time.Second/10))
}

// Play decodes the asset and plays it, blocking until the stream ends or
// Stop interrupts it.
func (b *LocalBackend) Play(info Info) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", info.Path, err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(info.Path)) {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	default:
		streamer, format, err = mp3.Decode(f)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", info.Path, err)
	}
	defer streamer.Close()

	var stream beep.Streamer = streamer
	if format.SampleRate != mixRate {
		stream = beep.Resample(4, format.SampleRate, mixRate, streamer)
	}

	h := &playHandle{done: make(chan struct{})}

	b.mu.Lock()
	vol := &effects.Volume{
		Streamer: stream,
		Base:     2,
		Volume:   gain(b.level),
		Silent:   b.level <= 0,
	}
	b.vol = vol
	b.current = h
	b.mu.Unlock()

	speaker.Play(beep.Seq(vol, beep.Callback(h.finish)))
	<-h.done

	b.mu.Lock()
	if b.current == h {
		b.current = nil
		b.vol = nil
	}
	b.mu.Unlock()
	return nil
}

// IsPlaying reports whether a stream is currently active.
func (b *LocalBackend) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current != nil
}

// Stop drops the active stream and releases the Play waiter. Safe to call
// concurrently and when nothing is playing.
func (b *LocalBackend) Stop() {
	b.mu.Lock()
	h := b.current
	b.mu.Unlock()

	speaker.Clear()
	if h != nil {
		h.finish()
	}
}

// SetVolume sets the linear playback level and applies it to the active
// stream immediately. The caller is responsible for clamping.
func (b *LocalBackend) SetVolume(v float64) {
	b.mu.Lock()
	b.level = v
	vol := b.vol
	b.mu.Unlock()

	if vol != nil {
		speaker.Lock()
		vol.Volume = gain(v)
		vol.Silent = v <= 0
		speaker.Unlock()
	}
}

// FadeOut ramps the active stream down linearly over d in fixed slices,
// then stops playback. The configured level is restored for the next Play.
func (b *LocalBackend) FadeOut(d time.Duration) {
	b.mu.Lock()
	vol := b.vol
	start := b.level
	b.mu.Unlock()

	if vol == nil {
		return
	}

	steps := int(d / fadeSlice)
	if steps < 1 {
		steps = 1
	}
	for i := 1; i <= steps; i++ {
		lv := start * (1 - float64(i)/float64(steps))
		speaker.Lock()
		vol.Volume = gain(lv)
		vol.Silent = lv <= 0.001
		speaker.Unlock()
		time.Sleep(fadeSlice)
	}
	b.Stop()
}

// Close stops playback. The speaker itself has no teardown call.
func (b *LocalBackend) Close() error {
	b.Stop()
	return nil
}

// gain converts a linear [0,1] level to beep's base-2 exponential volume.
func gain(level float64) float64 {
	if level <= 0 {
		return -10 // silent anyway, kept finite
	}
	return math.Log2(level)
}
