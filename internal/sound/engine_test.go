package sound

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/juno/internal/logger"
)

// mockBackend records calls and simulates playback taking playDur.
type mockBackend struct {
	mu          sync.Mutex
	played      []string
	playDur     time.Duration
	volumes     []float64
	fades       []time.Duration
	stopped     int
	playing     bool
	inFlight    int
	maxInFlight int
	unblock     chan struct{}
}

func newMockBackend() *mockBackend {
	return &mockBackend{playDur: 10 * time.Millisecond, unblock: make(chan struct{})}
}

func (m *mockBackend) Init() error { return nil }

func (m *mockBackend) Play(info Info) error {
	m.mu.Lock()
	m.played = append(m.played, info.ID)
	m.playing = true
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()

	select {
	case <-m.unblock:
	case <-time.After(m.playDur):
	}

	m.mu.Lock()
	m.playing = false
	m.inFlight--
	m.mu.Unlock()
	return nil
}

func (m *mockBackend) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *mockBackend) Stop() {
	m.mu.Lock()
	m.stopped++
	m.mu.Unlock()
}

func (m *mockBackend) SetVolume(v float64) {
	m.mu.Lock()
	m.volumes = append(m.volumes, v)
	m.mu.Unlock()
}

func (m *mockBackend) FadeOut(d time.Duration) {
	m.mu.Lock()
	m.fades = append(m.fades, d)
	m.mu.Unlock()
	m.Stop()
}

func (m *mockBackend) Close() error { return nil }

func (m *mockBackend) playCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.played)
}

func (m *mockBackend) peakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func testEngine(t *testing.T, backend Backend, fade time.Duration) (*Engine, *Registry) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"chime.mp3", "siren.mp3", "rain.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("ID3"), 0o644))
	}
	r := NewRegistry(logger.Nop())
	r.Scan(dir)
	return NewEngine(r, backend, logger.Nop(), WithFadeOut(fade)), r
}

func TestEnginePlayUnknownID(t *testing.T) {
	backend := newMockBackend()
	e, _ := testEngine(t, backend, 50*time.Millisecond)

	assert.False(t, e.Play("ghost", true))
	assert.Equal(t, 0, backend.playCount())
}

func TestEnginePlayBlocking(t *testing.T) {
	backend := newMockBackend()
	e, _ := testEngine(t, backend, 50*time.Millisecond)

	start := time.Now()
	assert.True(t, e.Play("chime", true))
	assert.GreaterOrEqual(t, time.Since(start), backend.playDur)
	assert.Equal(t, 1, backend.playCount())
}

func TestEngineVolumeClamping(t *testing.T) {
	backend := newMockBackend()
	e, _ := testEngine(t, backend, 50*time.Millisecond)

	for _, v := range []float64{-10, 0, 0.5, 1.0, 150} {
		e.SetVolume(v)
	}
	assert.Equal(t, []float64{0, 0, 0.5, 1.0, 1.0}, backend.volumes)
}

func TestEngineLoopStopsWithinFade(t *testing.T) {
	backend := newMockBackend()
	fade := 30 * time.Millisecond
	e, _ := testEngine(t, backend, fade)

	require.True(t, e.PlayLoop("rain", time.Minute))
	time.Sleep(25 * time.Millisecond)
	require.Greater(t, backend.playCount(), 0)

	start := time.Now()
	e.StopLoop()
	assert.LessOrEqual(t, time.Since(start), fade+150*time.Millisecond)
	assert.Equal(t, []time.Duration{fade}, backend.fades)

	// No further iterations after the stop.
	n := backend.playCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, backend.playCount())
}

func TestEngineSecondLoopStopsFirst(t *testing.T) {
	backend := newMockBackend()
	e, _ := testEngine(t, backend, 10*time.Millisecond)

	require.True(t, e.PlayLoop("rain", time.Minute))
	time.Sleep(15 * time.Millisecond)
	require.True(t, e.PlayLoop("siren", time.Minute))
	time.Sleep(25 * time.Millisecond)
	e.StopLoop()

	// The first loop got faded out when the second started.
	assert.Len(t, backend.fades, 2)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Contains(t, backend.played, "rain")
	assert.Contains(t, backend.played, "siren")
}

func TestEngineConcurrentPlayLoopKeepsSingleLoop(t *testing.T) {
	backend := newMockBackend()
	e, _ := testEngine(t, backend, 2*time.Millisecond)

	// Hammer PlayLoop from several goroutines at once, the way simultaneous
	// alarms would. Only the winning loop may be playing at any moment.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.PlayLoop("rain", time.Minute)
		}()
	}
	wg.Wait()
	time.Sleep(30 * time.Millisecond)

	assert.LessOrEqual(t, backend.peakInFlight(), 1)

	// A single StopLoop silences whichever loop won.
	e.StopLoop()
	n := backend.playCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, backend.playCount())
}

func TestEngineStopLoopIdempotent(t *testing.T) {
	backend := newMockBackend()
	e, _ := testEngine(t, backend, 10*time.Millisecond)

	e.StopLoop()
	assert.Empty(t, backend.fades)

	require.True(t, e.PlayLoop("rain", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)
	e.StopLoop()
	e.StopLoop()
	assert.Len(t, backend.fades, 1)
}
