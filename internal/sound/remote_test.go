package sound

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/juno/internal/logger"
	"github.com/mkessler/juno/internal/sonos"
)

// fakeZone mimics the UPnP control endpoints of a zone player. It
// answers every GetTransportInfo with the configured state.
func fakeZone(t *testing.T, state string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.Header.Get("SOAPACTION")
		switch {
		case strings.Contains(action, "GetTransportInfo"):
			w.Write([]byte(`<s:Envelope><s:Body><CurrentTransportState>` +
				state + `</CurrentTransportState></s:Body></s:Envelope>`))
		case strings.Contains(action, "GetVolume"):
			w.Write([]byte(`<s:Envelope><s:Body><CurrentVolume>20</CurrentVolume></s:Body></s:Envelope>`))
		default:
			w.Write([]byte(`<s:Envelope><s:Body></s:Body></s:Envelope>`))
		}
	}))
}

// testRemoteBackend wires a RemoteBackend to a fake zone player and a
// local file server, bypassing Init's network discovery.
func testRemoteBackend(t *testing.T, zone *httptest.Server) (*RemoteBackend, Info) {
	t.Helper()

	root := t.TempDir()
	path := filepath.Join(root, "ring.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o644))

	files := httptest.NewServer(http.FileServer(http.Dir(root)))
	t.Cleanup(files.Close)
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(files.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client := sonos.New("unused", logger.Nop(), sonos.WithBaseURL(zone.URL))
	b := NewRemoteBackend(client, root, port, logger.Nop())
	b.localIP = host
	b.poll = 2 * time.Millisecond
	b.ctx, b.cancelFn = context.WithCancel(context.Background())
	t.Cleanup(b.cancelFn)

	return b, Info{ID: "ring", Path: path, Category: "default", Filename: "ring.mp3"}
}

func TestRemotePlayFinishesWhenStartIsMissed(t *testing.T) {
	// A clip shorter than the poll cadence never shows up as PLAYING;
	// the device reports STOPPED on every poll. Play must still return.
	zone := fakeZone(t, "STOPPED")
	defer zone.Close()
	b, info := testRemoteBackend(t, zone)

	done := make(chan error, 1)
	go func() { done <- b.Play(info) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return for a clip that already stopped")
	}
	assert.False(t, b.IsPlaying())
}

func TestRemotePlayStopsWhenContextEnds(t *testing.T) {
	// A device stuck in TRANSITIONING must not hold Play past shutdown.
	zone := fakeZone(t, "TRANSITIONING")
	defer zone.Close()
	b, info := testRemoteBackend(t, zone)

	done := make(chan error, 1)
	go func() { done <- b.Play(info) }()

	time.Sleep(20 * time.Millisecond)
	b.cancelFn()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after shutdown")
	}
}
