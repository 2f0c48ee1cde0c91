package hue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler/juno/internal/logger"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("ignored", "user1", logger.Nop())
	c.base = srv.URL + "/api/user1"
	return c
}

func TestLights(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/user1/lights", r.URL.Path)
		w.Write([]byte(`{"1":{"name":"Desk","state":{"on":true,"bri":200,"reachable":true}}}`))
	})

	lights, err := c.Lights(context.Background())
	require.NoError(t, err)
	require.Len(t, lights, 1)
	assert.Equal(t, "Desk", lights["1"].Name)
	assert.True(t, lights["1"].State.On)
}

func TestSetGroupOn(t *testing.T) {
	var got map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/user1/groups/0/action", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`[{"success":{"/groups/0/action/on":false}}]`))
	})

	require.NoError(t, c.SetGroupOn(context.Background(), "0", false))
	assert.Equal(t, map[string]any{"on": false}, got)
}

func TestBridgeErrorSurfaces(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"error":{"type":1,"description":"unauthorized user"}}]`))
	})

	err := c.SetGroupOn(context.Background(), "0", true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unauthorized"))
}

func TestToggleGroupFlipsAnyOn(t *testing.T) {
	var action map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"name":"Bedroom","state":{"any_on":true}}`))
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&action))
		w.Write([]byte(`[]`))
	})

	require.NoError(t, c.ToggleGroup(context.Background(), "2"))
	assert.Equal(t, map[string]any{"on": false}, action)
}

func TestFlashSendsAlert(t *testing.T) {
	var action map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&action))
		w.Write([]byte(`[]`))
	})

	require.NoError(t, c.Flash(context.Background(), "0"))
	assert.Equal(t, map[string]any{"alert": "select"}, action)
}
