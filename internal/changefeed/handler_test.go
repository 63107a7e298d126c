package changefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialFeed(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/feed?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestFeedHandlerStreamsChanges(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, nil).WithPingInterval(time.Hour).HandleWebSocket))
	defer srv.Close()

	conn := dialFeed(t, srv, "store_id=S1&professional=Ana&from=2024-05-01")
	hello := readFrame(t, conn)
	require.Equal(t, "subscribed", hello.Type)
	require.NotNil(t, hello.Identity)
	assert.Equal(t, "Ana", hello.Identity.Professional)

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), Event{StoreID: "S2", Day: "2024-05-03"}))

	change := readFrame(t, conn)
	assert.Equal(t, "change", change.Type)
	require.NotNil(t, change.Event)
	assert.Equal(t, "S2", change.Event.StoreID)

	require.NoError(t, conn.WriteJSON(Frame{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)
}

func TestFeedHandlerReleasesSubscriptionOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, nil).HandleWebSocket))
	defer srv.Close()

	conn := dialFeed(t, srv, "")
	readFrame(t, conn)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFeedHandlerServerPing(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	srv := httptest.NewServer(http.HandlerFunc(NewHandler(hub, nil).WithPingInterval(20 * time.Millisecond).HandleWebSocket))
	defer srv.Close()

	conn := dialFeed(t, srv, "")
	readFrame(t, conn)
	assert.Equal(t, "ping", readFrame(t, conn).Type)
}
