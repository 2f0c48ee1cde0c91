// Package notion manages the to-do list stored in a Notion database.
package notion

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

const (
	apiBase    = "https://api.notion.com/v1"
	apiVersion = "2022-06-28"
)

// Todo is one entry of the to-do database.
type Todo struct {
	PageID string
	Title  string
	Done   bool
}

// Client talks to the Notion API for a single to-do database.
type Client struct {
	secret     string
	databaseID string
	http       *http.Client
	log        *zap.SugaredLogger
}

// NewClient creates a Notion client bound to one database.
func NewClient(secret, databaseID string, log *zap.SugaredLogger) *Client {
	return &Client{
		secret:     secret,
		databaseID: databaseID,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Add creates a new unchecked to-do entry.
func (c *Client) Add(ctx context.Context, title string) error {
	body := map[string]any{
		"parent": map[string]any{"database_id": c.databaseID},
		"properties": map[string]any{
			"Name": map[string]any{
				"title": []map[string]any{
					{"text": map[string]any{"content": title}},
				},
			},
			"Done": map[string]any{"checkbox": false},
		},
	}
	if err := c.post(ctx, "/pages", body, nil); err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	c.log.Infow("todo created", "title", title)
	return nil
}

// Open returns all unchecked entries, newest first.
func (c *Client) Open(ctx context.Context) ([]Todo, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": "Done",
			"checkbox": map[string]any{"equals": false},
		},
		"sorts": []map[string]any{
			{"timestamp": "created_time", "direction": "descending"},
		},
	}

	var resp struct {
		Results []struct {
			ID         string `json:"id"`
			Properties struct {
				Name struct {
					Title []struct {
						PlainText string `json:"plain_text"`
					} `json:"title"`
				} `json:"Name"`
				Done struct {
					Checkbox bool `json:"checkbox"`
				} `json:"Done"`
			} `json:"properties"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/databases/"+c.databaseID+"/query", body, &resp); err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}

	todos := make([]Todo, 0, len(resp.Results))
	for _, r := range resp.Results {
		title := ""
		if len(r.Properties.Name.Title) > 0 {
			title = r.Properties.Name.Title[0].PlainText
		}
		todos = append(todos, Todo{PageID: r.ID, Title: title, Done: r.Properties.Done.Checkbox})
	}
	return todos, nil
}

// Check marks an entry as done.
func (c *Client) Check(ctx context.Context, pageID string) error {
	body := map[string]any{
		"properties": map[string]any{
			"Done": map[string]any{"checkbox": true},
		},
	}
	if err := c.patch(ctx, "/pages/"+pageID, body); err != nil {
		return fmt.Errorf("check todo: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPatch, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, apiBase+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("notion: %s: %s", resp.Status, apiErr.Message)
		}
		return fmt.Errorf("notion: %s", resp.Status)
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
