package wakeword

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mkessler/juno/internal/logger"
)

func testDetector() *Detector {
	return New(Config{WakeModel: "wake.onnx"}, logger.Nop())
}

func TestSubscribeObserversFireOnDetection(t *testing.T) {
	d := testDetector()

	var wg sync.WaitGroup
	wg.Add(2)
	calls := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		d.Subscribe(func() {
			calls <- struct{}{}
			wg.Done()
		})
	}

	d.notify()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observers were not notified")
	}
	assert.Len(t, calls, 2)
}

func TestListenConsumesDetectionOnce(t *testing.T) {
	d := testDetector()
	d.notify()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, d.Listen(ctx), "pending detection is delivered")

	// The detection was consumed; a second Listen blocks until timeout.
	short, cancelShort := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancelShort()
	assert.False(t, d.Listen(short))
}

func TestPauseAndResumeFlags(t *testing.T) {
	d := testDetector()
	assert.False(t, d.isPaused())

	d.Pause()
	assert.True(t, d.isPaused())
	assert.False(t, d.consumeReset(), "pausing alone does not flush the pipeline")

	d.Resume()
	assert.False(t, d.isPaused())
	assert.True(t, d.consumeReset(), "resuming flushes stale audio once")
	assert.False(t, d.consumeReset())
}
