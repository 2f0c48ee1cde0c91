// Package sonos drives a Sonos zone player over its UPnP control
// endpoints: AVTransport for play/stop of URIs and RenderingControl for
// volume. Only the handful of actions the assistant needs are wrapped.
package sonos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

const (
	avTransportControl      = "/MediaRenderer/AVTransport/Control"
	renderingControl        = "/MediaRenderer/RenderingControl/Control"
	avTransportService      = "urn:schemas-upnp-org:service:AVTransport:1"
	renderingControlService = "urn:schemas-upnp-org:service:RenderingControl:1"
)

// Client talks to a single Sonos device by IP.
type Client struct {
	host string
	http *http.Client
	log  *zap.SugaredLogger
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the device address, for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.host = base }
}

// New creates a Sonos client for the device at ip (port 1400 assumed).
func New(ip string, log *zap.SugaredLogger, opts ...Option) *Client {
	c := &Client{
		host: fmt.Sprintf("http://%s:1400", ip),
		http: &http.Client{Timeout: 5 * time.Second},
		log:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlayURI points the device at a URI and starts playback.
func (c *Client) PlayURI(ctx context.Context, uri string) error {
	setBody := fmt.Sprintf(
		`<InstanceID>0</InstanceID><CurrentURI>%s</CurrentURI><CurrentURIMetaData></CurrentURIMetaData>`, uri)
	if _, err := c.soap(ctx, avTransportControl, avTransportService, "SetAVTransportURI", setBody); err != nil {
		return fmt.Errorf("set transport uri: %w", err)
	}
	if _, err := c.soap(ctx, avTransportControl, avTransportService, "Play",
		`<InstanceID>0</InstanceID><Speed>1</Speed>`); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Stop halts playback.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.soap(ctx, avTransportControl, avTransportService, "Stop", `<InstanceID>0</InstanceID>`)
	return err
}

// TransportState returns the device transport state, e.g. "PLAYING",
// "STOPPED", "TRANSITIONING".
func (c *Client) TransportState(ctx context.Context) (string, error) {
	resp, err := c.soap(ctx, avTransportControl, avTransportService, "GetTransportInfo",
		`<InstanceID>0</InstanceID>`)
	if err != nil {
		return "", err
	}
	state := extractTag(resp, "CurrentTransportState")
	if state == "" {
		return "", fmt.Errorf("no transport state in response")
	}
	return state, nil
}

// SetVolume sets the device volume, 0-100.
func (c *Client) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	body := fmt.Sprintf(
		`<InstanceID>0</InstanceID><Channel>Master</Channel><DesiredVolume>%d</DesiredVolume>`, volume)
	_, err := c.soap(ctx, renderingControl, renderingControlService, "SetVolume", body)
	return err
}

// Volume reads the current device volume, 0-100.
func (c *Client) Volume(ctx context.Context) (int, error) {
	resp, err := c.soap(ctx, renderingControl, renderingControlService, "GetVolume",
		`<InstanceID>0</InstanceID><Channel>Master</Channel>`)
	if err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(extractTag(resp, "CurrentVolume"), "%d", &v); err != nil {
		return 0, fmt.Errorf("parse volume: %w", err)
	}
	return v, nil
}

// soap performs one UPnP action and returns the raw response body.
func (c *Client) soap(ctx context.Context, path, service, action, body string) (string, error) {
	envelope := fmt.Sprintf(
		`<?xml version="1.0" encoding="utf-8"?>`+
			`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" `+
			`s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`+
			`<s:Body><u:%s xmlns:u="%s">%s</u:%s></s:Body></s:Envelope>`,
		action, service, body, action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path,
		bytes.NewReader([]byte(envelope)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf(`"%s#%s"`, service, action))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sonos %s: %s: %s", action, resp.Status, truncate(string(raw), 200))
	}

	c.log.Debugw("sonos action ok", "action", action)
	return string(raw), nil
}

// extractTag pulls the text content of the first occurrence of an XML tag.
// Sonos responses are flat enough that a full XML parse buys nothing.
func extractTag(xml, tag string) string {
	re := regexp.MustCompile(`<` + tag + `>([^<]*)</` + tag + `>`)
	if m := re.FindStringSubmatch(xml); len(m) == 2 {
		return m[1]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
