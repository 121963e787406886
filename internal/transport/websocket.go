// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient connects to the device's JSON websocket, subscribes, and forwards
// every text message as an EventMessage. After a disconnect it waits
// ReconnectInterval and dials again; a zero interval means no reconnect.
type WSClient struct {
	URL               string
	Subscription      Subscription
	ReconnectInterval time.Duration

	Dialer *websocket.Dialer // nil means websocket.DefaultDialer
}

func (c *WSClient) Run(ctx context.Context, events chan<- Event) error {
	for {
		err := c.session(ctx, events)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !send(ctx, events, Event{Kind: EventError, Err: err}) {
			return nil
		}
		if c.ReconnectInterval <= 0 {
			return err
		}

		log.Printf("ws: reconnecting to %s in %v", c.URL, c.ReconnectInterval)
		select {
		case <-time.After(c.ReconnectInterval):
		case <-ctx.Done():
			return nil
		}
	}
}

// session runs one connection from dial to close. A clean close by the peer
// is reported as EventClose and returns nil.
func (c *WSClient) session(ctx context.Context, events chan<- Event) error {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.URL, err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	if !send(ctx, events, Event{Kind: EventOpen}) {
		return nil
	}

	sub, err := c.Subscription.Marshal()
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	log.Printf("ws: opened connection - subscribing to messages with %s", sub)
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("send subscription: %w", err)
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				send(ctx, events, Event{Kind: EventClose, CloseCode: ce.Code, CloseText: ce.Text})
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !send(ctx, events, Event{Kind: EventMessage, Data: data}) {
			return nil
		}
	}
}
