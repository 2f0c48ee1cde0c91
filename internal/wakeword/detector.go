// Package wakeword provides always-on wake phrase detection using the
// openWakeWord ONNX chain (melspectrogram, embedding, classifier) over
// a miniaudio capture stream.
package wakeword

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/domain"
)

const audioQueueCap = 32

// Config holds model paths and detection tuning for a Detector.
type Config struct {
	WakeModel  string // phrase classifier, e.g. "models/hey_juno.onnx"
	MelModel   string // melspectrogram.onnx
	EmbedModel string // embedding_model.onnx
	OnnxLib    string // onnxruntime shared library

	Threshold float64       // window max at or above this fires (default 0.3)
	Cooldown  time.Duration // min gap between detections (default 1.5 s)
}

func (c *Config) defaults() {
	if c.Threshold <= 0 {
		c.Threshold = 0.3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 1500 * time.Millisecond
	}
}

// Detector listens for the wake phrase on the default capture device.
// Observers registered with Subscribe are notified on every detection;
// Listen offers a blocking pull-style view of the same events.
type Detector struct {
	cfg Config
	log *zap.SugaredLogger

	mu        sync.Mutex
	paused    bool
	needReset bool
	detected  bool
	observers []func()
}

var _ domain.WakeListener = (*Detector)(nil)

// New creates a Detector. Call Start in its own goroutine to begin
// capturing.
func New(cfg Config, log *zap.SugaredLogger) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg, log: log}
}

// Subscribe registers a callback fired on each detection. Each callback
// runs in its own goroutine, so a slow observer cannot stall capture.
func (d *Detector) Subscribe(fn func()) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// Pause stops scoring without releasing the capture device, used while
// the assistant itself is speaking.
func (d *Detector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume re-enables scoring after a Pause.
func (d *Detector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.needReset = true
	d.mu.Unlock()
}

// Listen blocks until the wake phrase is heard or the context ends.
// It returns true on detection. Each detection is consumed by exactly
// one Listen call.
func (d *Detector) Listen(ctx context.Context) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			d.mu.Lock()
			if d.detected {
				d.detected = false
				d.mu.Unlock()
				return true
			}
			d.mu.Unlock()
		}
	}
}

// Start initialises ONNX and the capture device, then scores audio
// until the context ends. Blocking.
func (d *Detector) Start(ctx context.Context) error {
	ort.SetSharedLibraryPath(d.cfg.OnnxLib)
	if err := ort.InitializeEnvironment(); err != nil {
		return err
	}
	defer ort.DestroyEnvironment()

	pipe, err := newPipeline(d.cfg.MelModel, d.cfg.EmbedModel, d.cfg.WakeModel)
	if err != nil {
		return err
	}
	defer pipe.close()

	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return err
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = sampleRate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	audioCh := make(chan []int16, audioQueueCap)
	var drops atomic.Int64

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			pcm := make([]int16, len(raw)/2)
			for i := range pcm {
				pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			}
			select {
			case audioCh <- pcm:
			default:
				drops.Add(1)
			}
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		return err
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return err
	}
	defer device.Stop()
	d.log.Infow("wake word detection started",
		"model", d.cfg.WakeModel, "threshold", d.cfg.Threshold)

	rem := make([]int16, 0, chunkSamples*2)
	lastDetect := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-audioCh:
			if d.isPaused() {
				continue
			}
			if d.consumeReset() {
				pipe.reset()
				rem = rem[:0]
			}

			rem = append(rem, frame...)
			for len(rem) >= chunkSamples {
				chunk := rem[:chunkSamples]
				n := copy(rem, rem[chunkSamples:])
				rem = rem[:n]

				max, scored, err := pipe.feed(chunk)
				if err != nil {
					d.log.Errorw("wake word scoring failed", "error", err)
					continue
				}
				if !scored {
					continue
				}

				now := time.Now()
				if float64(max) >= d.cfg.Threshold && now.Sub(lastDetect) > d.cfg.Cooldown {
					d.log.Infow("wake word detected", "score", max, "drops", drops.Load())
					lastDetect = now
					pipe.clearScores()
					d.notify()
				}
			}
		}
	}
}

func (d *Detector) isPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *Detector) consumeReset() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.needReset {
		d.needReset = false
		return true
	}
	return false
}

func (d *Detector) notify() {
	d.mu.Lock()
	d.detected = true
	observers := append(([]func())(nil), d.observers...)
	d.mu.Unlock()
	for _, fn := range observers {
		go fn()
	}
}
