// Package httptransport adapts the bot core to a JSON chat gateway: an
// outbound client implementing transport.Messenger, and an inbound router
// serving the gateway's event webhook plus the admin surface.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"sigreg/internal/transport"
)

// Gateway is an HTTP client for the chat gateway. It implements
// transport.Messenger.
type Gateway struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

type GatewayOption func(g *Gateway)

func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.client = client
	}
}

// NewGateway constructs a client for the gateway at baseURL.
func NewGateway(baseURL string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type sendRequest struct {
	ChatID int64 `json:"chat_id"`
	transport.Screen
}

type editRequest struct {
	Ref transport.MessageRef `json:"ref"`
	transport.Screen
}

type notifyRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// SendScreen posts a new message and returns the gateway's reference to it.
func (g *Gateway) SendScreen(ctx context.Context, chatID int64, screen transport.Screen) (transport.MessageRef, error) {
	var ref transport.MessageRef
	err := g.post(ctx, "/send", sendRequest{ChatID: chatID, Screen: screen}, &ref)
	return ref, err
}

// EditScreen replaces the content of an earlier message in place.
func (g *Gateway) EditScreen(ctx context.Context, ref transport.MessageRef, screen transport.Screen) error {
	return g.post(ctx, "/edit", editRequest{Ref: ref, Screen: screen}, nil)
}

// Notify sends plain text without a keyboard.
func (g *Gateway) Notify(ctx context.Context, chatID int64, text string) error {
	return g.post(ctx, "/notify", notifyRequest{ChatID: chatID, Text: text}, nil)
}

func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway %s: unexpected status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}
