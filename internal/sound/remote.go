package sound

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkessler/juno/internal/sonos"
)

const (
	transportPoll = 500 * time.Millisecond
	playWaitMax   = 15 * time.Minute
)

// RemoteBackend serves the sound directory over HTTP and instructs a
// Sonos device to stream from it. The device pulls files itself, so the
// local machine needs no audio hardware.
type RemoteBackend struct {
	sonos    *sonos.Client
	root     string
	port     int
	localIP  string
	server   *http.Server
	log      *zap.SugaredLogger
	maxVol   int
	poll     time.Duration
	ctx      context.Context
	cancelFn context.CancelFunc

	mu      sync.Mutex
	playing bool
}

// NewRemoteBackend creates a backend that plays through the given Sonos
// client, serving files below root on the given port.
func NewRemoteBackend(client *sonos.Client, root string, port int, log *zap.SugaredLogger) *RemoteBackend {
	return &RemoteBackend{
		sonos:  client,
		root:   root,
		port:   port,
		log:    log,
		maxVol: 40,
		poll:   transportPoll,
	}
}

var _ Backend = (*RemoteBackend)(nil)

// Init starts the file server and verifies the Sonos device answers.
func (b *RemoteBackend) Init() error {
	ip, err := localIP()
	if err != nil {
		return fmt.Errorf("determine local ip: %w", err)
	}
	b.localIP = ip

	b.ctx, b.cancelFn = context.WithCancel(context.Background())

	b.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", b.port),
		Handler: http.FileServer(http.Dir(b.root)),
	}
	ln, err := net.Listen("tcp", b.server.Addr)
	if err != nil {
		return fmt.Errorf("sound file server: %w", err)
	}
	go func() {
		if err := b.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			b.log.Errorw("sound file server stopped", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
	defer cancel()
	if _, err := b.sonos.TransportState(ctx); err != nil {
		return fmt.Errorf("sonos device unreachable: %w", err)
	}

	b.log.Infow("remote playback ready", "ip", b.localIP, "port", b.port)
	return nil
}

// Play streams the sound on the Sonos device and blocks until the
// device reports it stopped.
func (b *RemoteBackend) Play(info Info) error {
	uri, err := b.uriFor(info)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.playing = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.playing = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	err = b.sonos.PlayURI(ctx, uri)
	cancel()
	if err != nil {
		return err
	}

	// The device reports TRANSITIONING briefly before PLAYING; wait
	// that out before treating STOPPED as finished. A short clip can
	// start and finish between two polls, so a STOPPED seen repeatedly
	// counts as finished even when PLAYING was never observed.
	started := false
	stoppedPolls := 0
	deadline := time.Now().Add(playWaitMax)
	for {
		select {
		case <-b.ctx.Done():
			return b.ctx.Err()
		case <-time.After(b.poll):
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("sonos playback of %s did not finish within %s", info.ID, playWaitMax)
		}
		ctx, cancel := context.WithTimeout(b.ctx, 3*time.Second)
		state, err := b.sonos.TransportState(ctx)
		cancel()
		if err != nil {
			return err
		}
		switch state {
		case "PLAYING":
			started = true
			stoppedPolls = 0
		case "STOPPED", "PAUSED_PLAYBACK":
			stoppedPolls++
			if started || stoppedPolls >= 4 {
				return nil
			}
		}
	}
}

// IsPlaying reports whether a Play call is in flight.
func (b *RemoteBackend) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

// Stop halts playback on the device.
func (b *RemoteBackend) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.sonos.Stop(ctx); err != nil {
		b.log.Warnw("sonos stop failed", "error", err)
	}
}

// SetVolume maps the linear level onto the device volume scale.
func (b *RemoteBackend) SetVolume(v float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.sonos.SetVolume(ctx, int(v*float64(b.maxVol))); err != nil {
		b.log.Warnw("sonos volume failed", "error", err)
	}
}

// FadeOut ramps the device volume down over the duration, stops
// playback, then restores the previous volume.
func (b *RemoteBackend) FadeOut(d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d+10*time.Second)
	defer cancel()

	start, err := b.sonos.Volume(ctx)
	if err != nil {
		b.log.Warnw("sonos volume read failed", "error", err)
		b.Stop()
		return
	}

	steps := 10
	for i := 1; i <= steps; i++ {
		v := start * (steps - i) / steps
		if err := b.sonos.SetVolume(ctx, v); err != nil {
			break
		}
		time.Sleep(d / time.Duration(steps))
	}
	b.Stop()
	if err := b.sonos.SetVolume(ctx, start); err != nil {
		b.log.Warnw("sonos volume restore failed", "error", err)
	}
}

// Close shuts down the file server.
func (b *RemoteBackend) Close() error {
	if b.cancelFn != nil {
		b.cancelFn()
	}
	if b.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return b.server.Shutdown(ctx)
}

// uriFor builds the HTTP URL the device fetches, verifying the file is
// actually reachable first. A wrong network setup otherwise fails
// silently on the device side.
func (b *RemoteBackend) uriFor(info Info) (string, error) {
	rel, err := filepath.Rel(b.root, info.Path)
	if err != nil {
		return "", fmt.Errorf("sound outside root: %w", err)
	}
	uri := fmt.Sprintf("http://%s:%d/%s", b.localIP, b.port, filepath.ToSlash(rel))

	resp, err := http.Head(uri)
	if err != nil {
		return "", fmt.Errorf("sound not reachable at %s: %w", uri, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sound not reachable at %s: %s", uri, resp.Status)
	}
	return uri, nil
}

// localIP finds the outbound interface address. The UDP dial sends no
// packets; it only resolves routing.
func localIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	addr := conn.LocalAddr().String()
	return addr[:strings.LastIndex(addr, ":")], nil
}
