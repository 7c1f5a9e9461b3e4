// Package viewerapi is the read-side client for the collector: the merged
// event feed and the raw screenshot store.
package viewerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/uxtrace/uxtrace/internal/models"
)

type Client struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	shotsCache  []models.ScreenshotRecord
	shotsLoaded bool
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Events fetches the full merged feed, newest first.
func (c *Client) Events(ctx context.Context) ([]models.FeedEvent, error) {
	var events []models.FeedEvent
	if err := c.getJSON(ctx, "/events-json", &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Screenshots fetches the raw screenshot store. The first successful result
// is cached for the client's lifetime; a fetch failure never clears a
// previously loaded cache.
func (c *Client) Screenshots(ctx context.Context) ([]models.ScreenshotRecord, error) {
	c.mu.Lock()
	if c.shotsLoaded {
		cached := c.shotsCache
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	var shots []models.ScreenshotRecord
	if err := c.getJSON(ctx, "/data/screenshots.json", &shots); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.shotsCache = shots
	c.shotsLoaded = true
	c.mu.Unlock()
	return shots, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Cache-Control", "no-store")

	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("could not load %s (HTTP %d)", path, response.StatusCode)
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
