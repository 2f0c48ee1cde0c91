package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/juno/internal/domain"
	"github.com/mkessler/juno/internal/logger"
)

// ── Mocks ────────────────────────────────────────────────────────

type wakeMock struct {
	hits int
}

func (w *wakeMock) Listen(ctx context.Context) bool {
	if w.hits <= 0 {
		<-ctx.Done()
		return false
	}
	w.hits--
	return true
}

type recorderMock struct {
	audio []byte
	err   error
}

func (r *recorderMock) Record(ctx context.Context) ([]byte, error) { return r.audio, r.err }

type transcriberMock struct {
	text string
	err  error
}

func (t *transcriberMock) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return t.text, t.err
}

type dispatcherMock struct {
	response string
	err      error
	got      string
}

func (d *dispatcherMock) Dispatch(ctx context.Context, text string) (string, error) {
	d.got = text
	return d.response, d.err
}

type playerMock struct {
	mu     sync.Mutex
	played []string
}

func (p *playerMock) Play(id string, block bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, id)
	return true
}

func (p *playerMock) PlayLoop(id string, d time.Duration) bool { return true }
func (p *playerMock) StopLoop()                                {}
func (p *playerMock) SetVolume(v float64)                      {}

func (p *playerMock) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type gateMock struct {
	mu      sync.Mutex
	pauses  int
	resumes int
}

func (g *gateMock) Pause() {
	g.mu.Lock()
	g.pauses++
	g.mu.Unlock()
}

func (g *gateMock) Resume() {
	g.mu.Lock()
	g.resumes++
	g.mu.Unlock()
}

func (g *gateMock) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pauses, g.resumes
}

type speakerMock struct {
	spoken []string
	err    error
}

func (s *speakerMock) Say(ctx context.Context, category, text string, block bool) error {
	s.spoken = append(s.spoken, text)
	return s.err
}

func testDeps() (*Deps, *playerMock, *speakerMock, *dispatcherMock) {
	player := &playerMock{}
	speaker := &speakerMock{}
	dispatcher := &dispatcherMock{response: "Erledigt"}
	deps := &Deps{
		Wake:       &wakeMock{hits: 1},
		Recorder:   &recorderMock{audio: []byte("wav")},
		Transcribe: &transcriberMock{text: "Mach das Licht an"},
		Dispatch:   dispatcher,
		Player:     player,
		Speaker:    speaker,
		Log:        logger.Nop(),
	}
	return deps, player, speaker, dispatcher
}

// ── Tests ────────────────────────────────────────────────────────

func TestWakeWordAdvancesAndChimes(t *testing.T) {
	deps, player, _, _ := testDeps()

	state := NewWaiting(deps)
	tr := state.Process(context.Background())
	require.Equal(t, KindContinue, tr.Kind)
	assert.Equal(t, "wake_word_detected", tr.Next.Name())

	tr = tr.Next.Process(context.Background())
	require.Equal(t, KindContinue, tr.Kind)
	assert.Equal(t, "transcribing", tr.Next.Name())
	assert.Equal(t, []string{"wakesound"}, player.ids())
}

func TestFullCycleSpeaksResponse(t *testing.T) {
	deps, _, speaker, dispatcher := testDeps()

	state := NewWaiting(deps)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		tr := state.Process(ctx)
		if tr.Kind != KindContinue {
			require.Equal(t, KindRestart, tr.Kind)
			assert.NoError(t, tr.Err)
			assert.Equal(t, "Mach das Licht an", dispatcher.got)
			assert.Equal(t, []string{"Erledigt"}, speaker.spoken)
			return
		}
		state = tr.Next
	}
	t.Fatal("cycle did not terminate")
}

func TestBlankTranscriptFails(t *testing.T) {
	deps, _, _, _ := testDeps()
	deps.Transcribe = &transcriberMock{text: "   "}

	cueFired := false
	deps.ErrorCue = func(ctx context.Context) { cueFired = true }

	tr := (&transcribing{deps, []byte("wav")}).Process(context.Background())
	require.Equal(t, KindContinue, tr.Kind)
	require.Equal(t, "failed", tr.Next.Name())

	tr = tr.Next.Process(context.Background())
	assert.Equal(t, KindRestart, tr.Kind)
	assert.ErrorIs(t, tr.Err, domain.ErrNoSpeech)
	assert.True(t, cueFired)
}

func TestDispatchErrorTerminatesDistinctly(t *testing.T) {
	deps, _, speaker, _ := testDeps()
	boom := errors.New("boom")
	deps.Dispatch = &dispatcherMock{err: boom}

	tr := (&dispatching{deps, "egal"}).Process(context.Background())
	require.Equal(t, KindContinue, tr.Kind)
	assert.Equal(t, "failed", tr.Next.Name())
	assert.Empty(t, speaker.spoken, "errors are not spoken as responses")

	tr = tr.Next.Process(context.Background())
	assert.Equal(t, KindRestart, tr.Kind)
	assert.ErrorIs(t, tr.Err, boom)
}

func TestSilenceAfterWakeRestartsQuietly(t *testing.T) {
	deps, _, _, _ := testDeps()
	deps.Recorder = &recorderMock{err: domain.ErrNoSpeech}
	cueFired := false
	deps.ErrorCue = func(ctx context.Context) { cueFired = true }

	tr := (&detected{deps}).Process(context.Background())
	assert.Equal(t, KindRestart, tr.Kind)
	assert.False(t, cueFired, "silence is not an error")
}

func TestMicGatePausedDuringInteraction(t *testing.T) {
	deps, _, _, _ := testDeps()
	gate := &gateMock{}
	deps.Gate = gate

	// Hearing the wake phrase mutes the mic for the rest of the cycle.
	tr := (&detected{deps}).Process(context.Background())
	require.Equal(t, KindContinue, tr.Kind)
	pauses, resumes := gate.counts()
	assert.Equal(t, 1, pauses)
	assert.Equal(t, 0, resumes, "gate stays closed until the cycle restarts")
}

func TestMicGateReopensEachCycle(t *testing.T) {
	deps, _, _, _ := testDeps()
	gate := &gateMock{}
	deps.Gate = gate
	deps.Wake = &wakeMock{hits: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := NewDriver(deps).Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	pauses, resumes := gate.counts()
	assert.Equal(t, 2, pauses, "one pause per interaction")
	assert.Equal(t, 2, resumes, "one resume per restart")
}

func TestDriverStopsWhenContextEnds(t *testing.T) {
	deps, _, _, _ := testDeps()
	deps.Wake = &wakeMock{hits: 0}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewDriver(deps).Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("driver did not stop")
	}
}

func TestDriverRecoversFromPanic(t *testing.T) {
	deps, _, speaker, _ := testDeps()
	wake := &wakeMock{hits: 2}
	deps.Wake = wake

	calls := 0
	deps.Transcribe = transcriberFunc(func(ctx context.Context, wav []byte) (string, error) {
		calls++
		if calls == 1 {
			panic("transcriber exploded")
		}
		return "Wie spät ist es", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := NewDriver(deps).Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, calls, "second cycle ran after the panic")
	assert.Equal(t, []string{"Erledigt"}, speaker.spoken)
}

type transcriberFunc func(ctx context.Context, wav []byte) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return f(ctx, wav)
}
