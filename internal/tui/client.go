// Package tui implements the terminal dashboard: a bubbletea program that
// connects to a running bridge gateway's websocket event feed and renders a
// live table of bridge sessions.
package tui

import (
	"context"
	"fmt"

	"github.com/coder/websocket"

	"github.com/dohr-michael/polybridge/internal/gateway/ws"
)

// Client reads broadcast event frames off a gateway's admin websocket.
type Client struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial connects to a gateway's /api/ws endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial: %w", err)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{conn: conn, ctx: clientCtx, cancel: cancel}, nil
}

// ReadFrame reads the next broadcast frame from the connection.
func (c *Client) ReadFrame() (ws.Frame, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return ws.Frame{}, err
	}
	return ws.UnmarshalFrame(data)
}

// Close gracefully closes the connection.
func (c *Client) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "dashboard closed")
}
