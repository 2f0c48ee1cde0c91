// Package hue controls Philips Hue lights through the bridge's local
// REST API.
package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ── Wire types ───────────────────────────────────────────────────

// Light is one lamp as reported by the bridge.
type Light struct {
	Name  string `json:"name"`
	State struct {
		On        bool `json:"on"`
		Bri       int  `json:"bri"`
		Reachable bool `json:"reachable"`
	} `json:"state"`
}

// Group is a room or zone.
type Group struct {
	Name  string `json:"name"`
	State struct {
		AnyOn bool `json:"any_on"`
	} `json:"state"`
}

type action struct {
	On    *bool   `json:"on,omitempty"`
	Bri   *int    `json:"bri,omitempty"`
	Scene *string `json:"scene,omitempty"`
	Alert *string `json:"alert,omitempty"`
}

// ── Client ───────────────────────────────────────────────────────

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithBaseURL overrides the bridge address, for tests.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.base = base }
}

// Client talks to a Hue bridge on the local network.
type Client struct {
	base string
	http *http.Client
	log  *zap.SugaredLogger
}

// NewClient creates a Hue client for the bridge at bridgeIP using a
// previously registered API user.
func NewClient(bridgeIP, userID string, log *zap.SugaredLogger, opts ...ClientOption) *Client {
	c := &Client{
		base: fmt.Sprintf("http://%s/api/%s", bridgeIP, userID),
		http: &http.Client{Timeout: 5 * time.Second},
		log:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lights returns all lamps keyed by bridge ID.
func (c *Client) Lights(ctx context.Context) (map[string]Light, error) {
	var lights map[string]Light
	if err := c.get(ctx, "/lights", &lights); err != nil {
		return nil, err
	}
	return lights, nil
}

// Groups returns all rooms and zones keyed by bridge ID.
func (c *Client) Groups(ctx context.Context) (map[string]Group, error) {
	var groups map[string]Group
	if err := c.get(ctx, "/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// SetGroupOn switches a whole room on or off. Group "0" addresses every
// light the bridge knows.
func (c *Client) SetGroupOn(ctx context.Context, groupID string, on bool) error {
	return c.put(ctx, "/groups/"+groupID+"/action", action{On: &on})
}

// SetGroupBrightness sets a room's brightness, 0-254.
func (c *Client) SetGroupBrightness(ctx context.Context, groupID string, bri int) error {
	if bri < 0 {
		bri = 0
	}
	if bri > 254 {
		bri = 254
	}
	on := bri > 0
	return c.put(ctx, "/groups/"+groupID+"/action", action{On: &on, Bri: &bri})
}

// ToggleGroup flips a room based on its any_on state.
func (c *Client) ToggleGroup(ctx context.Context, groupID string) error {
	var g Group
	if err := c.get(ctx, "/groups/"+groupID, &g); err != nil {
		return err
	}
	return c.SetGroupOn(ctx, groupID, !g.State.AnyOn)
}

// RecallScene applies a scene to a group.
func (c *Client) RecallScene(ctx context.Context, groupID, sceneID string) error {
	return c.put(ctx, "/groups/"+groupID+"/action", action{Scene: &sceneID})
}

// Flash blinks a group once, the visual half of the assistant's error
// cue.
func (c *Client) Flash(ctx context.Context, groupID string) error {
	alert := "select"
	return c.put(ctx, "/groups/"+groupID+"/action", action{Alert: &alert})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hue: %s %s: %s", req.Method, req.URL.Path, resp.Status)
	}

	// The bridge answers writes with a JSON array that may carry
	// per-field errors despite the 200.
	var results []map[string]json.RawMessage
	if json.Unmarshal(raw, &results) == nil {
		for _, r := range results {
			if e, ok := r["error"]; ok {
				return fmt.Errorf("hue: %s", string(e))
			}
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("hue: decoding response: %w", err)
		}
	}
	return nil
}
