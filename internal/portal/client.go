// Package portal implements the directory service client. The portal is the
// external registry stream consumers query to discover live streams; the
// relay only ever announces a stream and withdraws it again.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-streamer/internal/relay"
)

const requestTimeout = 10 * time.Second

// Client publishes stream availability to the portal over HTTP.
// It implements relay.Publisher.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient returns a Client for the portal at baseURL (e.g.
// "http://portal:9500"). A trailing slash on baseURL is ignored.
func NewClient(baseURL string, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

// Register announces the stream described by d.
// POST {base}/streams with the JSON-encoded descriptor.
func (c *Client) Register(ctx context.Context, d relay.Descriptor) error {
	return c.post(ctx, c.baseURL+"/streams", d)
}

// Deregister withdraws the stream described by d.
// POST {base}/streams/{name}/close with the JSON-encoded descriptor.
func (c *Client) Deregister(ctx context.Context, d relay.Descriptor) error {
	return c.post(ctx, c.baseURL+"/streams/"+url.PathEscape(string(d.Name))+"/close", d)
}

func (c *Client) post(ctx context.Context, endpoint string, d relay.Descriptor) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building portal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close()

	// No response payload is consumed beyond success or failure.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("portal returned status %d for %s", resp.StatusCode, endpoint)
	}

	c.log.Debug("portal call succeeded", slog.String("endpoint", endpoint))
	return nil
}
