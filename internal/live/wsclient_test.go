package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/quasarhq/quasar/internal/model"
)

func echoBarServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// First frame in is the subscribe envelope; echo one bar back per
		// symbol requested, then block until the client disconnects.
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub subscribeMessage
		require.NoError(t, json.Unmarshal(raw, &sub))
		for _, sym := range sub.Symbols {
			bar := []model.Bar{{Sym: sym, C: 100, TS: time.Now()}}
			payload, _ := json.Marshal(bar)
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func parseBars(msg []byte) ([]model.Bar, error) {
	var bars []model.Bar
	if err := json.Unmarshal(msg, &bars); err != nil {
		return nil, err
	}
	return bars, nil
}

func TestWSSessionSubscribeAndReadMessage(t *testing.T) {
	srv := echoBarServer(t)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	session, err := DialWS(context.Background(), wsURL, nil, parseBars)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Subscribe(context.Background(), "1m", []string{"BTC", "ETH"}))

	msg, err := session.ReadMessage(context.Background())
	require.NoError(t, err)
	bars, err := session.ParseMessage(msg)
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestWSSessionReadMessageRespectsContextCancellation(t *testing.T) {
	srv := echoBarServer(t)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	session, err := DialWS(context.Background(), wsURL, nil, parseBars)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Subscribe(context.Background(), "1m", nil))
	// Drain the (empty-symbols) reply phase: server writes nothing, so the
	// next read blocks until our ctx cancellation closes the connection.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = session.ReadMessage(ctx)
	require.Error(t, err)
}
