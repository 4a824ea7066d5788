// Package client talks to a quickpoll server over its websocket endpoint.
package client

import (
	"context"
	"fmt"

	"github.com/coder/websocket"

	"quickpoll/internal/events"
)

type Conn struct {
	ws *websocket.Conn
}

func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) Send(ctx context.Context, event string, data any) error {
	frame, err := events.Encode(event, data)
	if err != nil {
		return err
	}
	if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("sending %s: %w", event, err)
	}
	return nil
}

// Next blocks until the server sends an event.
func (c *Conn) Next(ctx context.Context) (events.Envelope, error) {
	_, frame, err := c.ws.Read(ctx)
	if err != nil {
		return events.Envelope{}, err
	}
	return events.Decode(frame)
}

func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "client exit")
}
