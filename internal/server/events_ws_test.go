package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/folio/internal/events"
)

func dialEventStream(t *testing.T, bus *events.Bus) *websocket.Conn {
	t.Helper()

	handler := NewEventsWSHandler(bus, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(handler.ServeHTTP))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func TestEventsWS_SendsConnectedFrameFirst(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	conn := dialEventStream(t, bus)

	frame := readFrame(t, conn)
	assert.Equal(t, "connected", frame["type"])
	assert.NotEmpty(t, frame["timestamp"])
}

func TestEventsWS_StreamsPublishedEvents(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	conn := dialEventStream(t, bus)

	// Consume the connected frame; the subscription is live once it arrives
	readFrame(t, conn)

	bus.Publish(events.QuotesRefreshed, "portfolio", map[string]interface{}{
		"priced": float64(3),
	})

	frame := readFrame(t, conn)
	assert.Equal(t, string(events.QuotesRefreshed), frame["type"])
	assert.Equal(t, "portfolio", frame["module"])
	assert.NotEmpty(t, frame["id"])

	data, ok := frame["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["priced"])
}

func TestEventsWS_StreamsEventsInOrder(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	conn := dialEventStream(t, bus)
	readFrame(t, conn)

	bus.Publish(events.PortfolioChanged, "holdings", nil)
	bus.Publish(events.QuotesRefreshed, "portfolio", nil)

	first := readFrame(t, conn)
	second := readFrame(t, conn)
	assert.Equal(t, string(events.PortfolioChanged), first["type"])
	assert.Equal(t, string(events.QuotesRefreshed), second["type"])
}
