package workflow

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/juno/internal/domain"
	"github.com/mkessler/juno/internal/hue"
	"github.com/mkessler/juno/internal/logger"
	"github.com/mkessler/juno/internal/spotify"
)

// modelStub classifies every utterance the same way.
type modelStub struct {
	name     string
	response string
}

func (m *modelStub) Classify(ctx context.Context, text string, regs []Registration) (string, error) {
	return m.name, nil
}

func (m *modelStub) Respond(ctx context.Context, text string) (string, error) {
	return m.response, nil
}

// agentStub invokes a named tool with fixed arguments and echoes its
// result.
type agentStub struct {
	tool string
	args map[string]any
}

func (a *agentStub) Run(ctx context.Context, system, user string, tools []Tool) (string, error) {
	for _, t := range tools {
		if t.Name == a.tool {
			return t.Run(ctx, a.args)
		}
	}
	return "no tool ran", nil
}

func TestRegistryLookup(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, text string) (string, error) {
		return "ok", nil
	})
	r := NewRegistry(Registration{Name: "lights", Handler: handler})

	reg, err := r.Get("lights")
	require.NoError(t, err)
	assert.Equal(t, "lights", reg.Name)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestDispatchRoutesToHandler(t *testing.T) {
	var got string
	handler := HandlerFunc(func(ctx context.Context, text string) (string, error) {
		got = text
		return "Licht ist an", nil
	})
	r := NewRegistry(Registration{Name: "lights", Handler: handler})
	d := NewDispatcher(r, &modelStub{name: "lights"}, logger.Nop())

	out, err := d.Dispatch(context.Background(), "Mach das Licht an")
	require.NoError(t, err)
	assert.Equal(t, "Licht ist an", out)
	assert.Equal(t, "Mach das Licht an", got)
}

func TestDispatchFallsBackToChat(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, &modelStub{name: "chat", response: "Hallo"}, logger.Nop())

	out, err := d.Dispatch(context.Background(), "Wie geht es dir?")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", out)

	// An unknown label from the classifier gets the same treatment.
	d = NewDispatcher(r, &modelStub{name: "nonsense", response: "Hallo"}, logger.Nop())
	out, err = d.Dispatch(context.Background(), "blub")
	require.NoError(t, err)
	assert.Equal(t, "Hallo", out)
}

func TestDispatchNotifiesObservers(t *testing.T) {
	handler := HandlerFunc(func(ctx context.Context, text string) (string, error) {
		return "ok", nil
	})
	r := NewRegistry(Registration{Name: "music", SoundCategory: "loading", Handler: handler})
	d := NewDispatcher(r, &modelStub{name: "music"}, logger.Nop())

	selected := make(chan Registration, 1)
	d.OnSelect(func(reg Registration) { selected <- reg })

	_, err := d.Dispatch(context.Background(), "Musik an")
	require.NoError(t, err)

	select {
	case reg := <-selected:
		assert.Equal(t, "music", reg.Name)
		assert.Equal(t, "loading", reg.SoundCategory)
	case <-time.After(time.Second):
		t.Fatal("observer was not notified")
	}
}

func TestToggleCommandFlipsHueGroup(t *testing.T) {
	var putBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/groups/2":
			w.Write([]byte(`{"name":"Schlafzimmer","state":{"any_on":true}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/groups/2/action":
			raw, _ := io.ReadAll(r.Body)
			putBody = string(raw)
			w.Write([]byte(`[{"success":{"/groups/2/action/on":false}}]`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := hue.NewClient("bridge", "user", logger.Nop(), hue.WithBaseURL(srv.URL))
	agent := &agentStub{tool: "toggle_room", args: map[string]any{"group_id": "2"}}
	lights := NewLights(client, agent, logger.Nop())

	r := NewRegistry(lights.Registration())
	d := NewDispatcher(r, &modelStub{name: "lights"}, logger.Nop())

	out, err := d.Dispatch(context.Background(), "Licht im Schlafzimmer umschalten")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	// The group reported any_on, so the toggle switches it off.
	assert.JSONEq(t, `{"on":false}`, putBody)
}

func TestListLightsReportsLampState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lights", r.URL.Path)
		w.Write([]byte(`{
			"1": {"name":"Stehlampe","state":{"on":true,"bri":200,"reachable":true}},
			"2": {"name":"Flur","state":{"on":false,"bri":0,"reachable":false}}
		}`))
	}))
	defer srv.Close()

	client := hue.NewClient("bridge", "user", logger.Nop(), hue.WithBaseURL(srv.URL))
	agent := &agentStub{tool: "list_lights", args: map[string]any{}}
	lights := NewLights(client, agent, logger.Nop())

	out, err := lights.Handle(context.Background(), "Welche Lampen sind an?")
	require.NoError(t, err)
	assert.Contains(t, out, "Stehlampe (on, brightness 200)")
	assert.Contains(t, out, "Flur (off, unreachable)")
}

func TestVolumeCommandReachesSpotify(t *testing.T) {
	var volumeParam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		case "/me/player/volume":
			volumeParam = r.URL.Query().Get("volume_percent")
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := spotify.NewClient("id", "secret", "refresh", logger.Nop(),
		spotify.WithEndpoints(srv.URL, srv.URL+"/token"))

	// The agent stands in for the model turning "auf 5" into 50 percent.
	agent := &agentStub{tool: "spotify_set_volume", args: map[string]any{"percent": float64(50)}}
	music := NewMusic(client, agent, logger.Nop())

	r := NewRegistry(music.Registration())
	d := NewDispatcher(r, &modelStub{name: "music"}, logger.Nop())

	out, err := d.Dispatch(context.Background(), "Setze die Lautstärke auf 5")
	require.NoError(t, err)
	assert.Equal(t, "volume set to 50", out)
	assert.Equal(t, "50", volumeParam)
}
