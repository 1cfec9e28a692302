package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SubscribeEvents opens the live event feed. The channel is closed when ctx
// ends or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan Event, error) {
	token, err := c.requireToken(ctx)
	if err != nil {
		return nil, err
	}

	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/events/ws"
	u.RawQuery = url.Values{"access_token": {token}}.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "event stream rejected"}
		}
		return nil, &TransportError{Op: "GET /api/events/ws", Err: err}
	}

	events := make(chan Event, 16)
	c.pumpEvents(ctx, conn, events)
	return events, nil
}

// pumpEvents reads events from conn into events until the connection drops or
// ctx ends. The returned channel is closed once both goroutines have exited.
func (c *Client) pumpEvents(ctx context.Context, conn *websocket.Conn, events chan<- Event) <-chan struct{} {
	readerDone := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readerDone:
		}
	}()
	go func() {
		defer close(readerDone)
		defer close(events)
		defer conn.Close()
		for {
			var evt Event
			if err := conn.ReadJSON(&evt); err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("event stream closed", zap.Error(err))
				}
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return stopped
}
