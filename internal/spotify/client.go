// Package spotify controls music playback through the Spotify Web API.
// The client authenticates with a long-lived refresh token obtained
// once during setup and renews access tokens as they expire.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	apiBase  = "https://api.spotify.com/v1"
	tokenURL = "https://accounts.spotify.com/api/token"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithEndpoints overrides the API and token URLs, for tests.
func WithEndpoints(api, token string) ClientOption {
	return func(c *Client) {
		c.api = api
		c.tokenURL = token
	}
}

// Client talks to the Spotify Web API on behalf of one account.
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string
	api          string
	tokenURL     string
	http         *http.Client
	log          *zap.SugaredLogger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewClient creates a Spotify client from app credentials and a user
// refresh token.
func NewClient(clientID, clientSecret, refreshToken string, log *zap.SugaredLogger, opts ...ClientOption) *Client {
	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		api:          apiBase,
		tokenURL:     tokenURL,
		http:         &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play resumes playback on the active device. With a non-empty query it
// searches for the best track match and plays that instead.
func (c *Client) Play(ctx context.Context, query string) error {
	if query == "" {
		return c.call(ctx, http.MethodPut, "/me/player/play", nil)
	}

	uri, name, err := c.searchTrack(ctx, query)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(`{"uris":["%s"]}`, uri)
	if err := c.call(ctx, http.MethodPut, "/me/player/play", strings.NewReader(body)); err != nil {
		return err
	}
	c.log.Infow("playing", "track", name)
	return nil
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) error {
	return c.call(ctx, http.MethodPut, "/me/player/pause", nil)
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/me/player/next", nil)
}

// SetVolume sets the active device volume, 0-100.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return c.call(ctx, http.MethodPut, "/me/player/volume?volume_percent="+strconv.Itoa(percent), nil)
}

// NowPlaying returns "artist – title" of the current track, or an empty
// string when nothing plays.
func (c *Client) NowPlaying(ctx context.Context) (string, error) {
	req, err := c.request(ctx, http.MethodGet, "/me/player/currently-playing", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify: %s", resp.Status)
	}

	var body struct {
		Item struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"item"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Item.Name == "" {
		return "", nil
	}
	artist := ""
	if len(body.Item.Artists) > 0 {
		artist = body.Item.Artists[0].Name + " – "
	}
	return artist + body.Item.Name, nil
}

func (c *Client) searchTrack(ctx context.Context, query string) (uri, name string, err error) {
	path := "/search?type=track&limit=1&q=" + url.QueryEscape(query)
	req, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("spotify search: %s", resp.Status)
	}

	var body struct {
		Tracks struct {
			Items []struct {
				URI  string `json:"uri"`
				Name string `json:"name"`
			} `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	if len(body.Tracks.Items) == 0 {
		return "", "", fmt.Errorf("no track found for %q", query)
	}
	return body.Tracks.Items[0].URI, body.Tracks.Items[0].Name, nil
}

// call performs a player command where Spotify answers 204 on success.
func (c *Client) call(ctx context.Context, method, path string, body io.Reader) error {
	req, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("spotify: no active playback device")
	default:
		return fmt.Errorf("spotify: %s %s: %s", method, path, resp.Status)
	}
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.api+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

// token returns a valid access token, refreshing when the cached one is
// within a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.expiresAt) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	creds := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify token refresh: %s", resp.Status)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}

	c.accessToken = body.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	c.log.Debug("spotify access token refreshed")
	return c.accessToken, nil
}
