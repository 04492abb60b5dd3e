package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/quasarhq/quasar/internal/model"
)

// subscribeMessage is the wire shape sent on Subscribe/Unsubscribe. Most
// exchange feeds accept some variant of this envelope; providers with a
// different wire protocol implement providercontract.LiveSession directly
// instead of using WSSession.
type subscribeMessage struct {
	Action   string   `json:"action"`
	Interval string   `json:"interval,omitempty"`
	Symbols  []string `json:"symbols"`
}

// ParseFunc decodes one raw WebSocket message into zero or more bars.
type ParseFunc func(msg []byte) ([]model.Bar, error)

// WSSession is a providercontract.LiveSession backed by
// github.com/gorilla/websocket, for providers whose feed speaks a plain
// JSON-over-WebSocket protocol. Reads are interruptible via context by
// closing the underlying connection when ctx is done, since gorilla's
// ReadMessage has no native context support.
type WSSession struct {
	conn  *websocket.Conn
	parse ParseFunc
}

// DialWS opens a WebSocket connection to url and wraps it as a
// providercontract.LiveSession using parse to decode incoming frames.
func DialWS(ctx context.Context, url string, header http.Header, parse ParseFunc) (*WSSession, error) {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("live: dialing %s: %w", url, err)
	}
	return &WSSession{conn: conn, parse: parse}, nil
}

// Subscribe sends a {"action":"subscribe", ...} envelope.
func (s *WSSession) Subscribe(ctx context.Context, interval string, symbols []string) error {
	return s.send(subscribeMessage{Action: "subscribe", Interval: interval, Symbols: symbols})
}

// Unsubscribe sends a {"action":"unsubscribe", ...} envelope.
func (s *WSSession) Unsubscribe(ctx context.Context, symbols []string) error {
	return s.send(subscribeMessage{Action: "unsubscribe", Symbols: symbols})
}

func (s *WSSession) send(msg subscribeMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, raw)
}

// ReadMessage blocks on the underlying connection until a frame arrives,
// ctx is canceled, or the connection errors. Canceling ctx closes the
// connection to unblock the in-flight read.
func (s *WSSession) ReadMessage(ctx context.Context) ([]byte, error) {
	type result struct {
		msg []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, msg, err := s.conn.ReadMessage()
		done <- result{msg, err}
	}()

	select {
	case <-ctx.Done():
		s.conn.Close()
		<-done
		return nil, ctx.Err()
	case r := <-done:
		return r.msg, r.err
	}
}

// ParseMessage delegates to the ParseFunc supplied to DialWS.
func (s *WSSession) ParseMessage(msg []byte) ([]model.Bar, error) {
	return s.parse(msg)
}

// Close closes the underlying connection.
func (s *WSSession) Close() error {
	return s.conn.Close()
}
