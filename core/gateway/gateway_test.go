package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/gateway"
	"github.com/dmitrymomot/relay/core/protocol"
	"github.com/dmitrymomot/relay/core/relay"
)

func newTestGateway(t *testing.T, hub *relay.Hub, opts ...gateway.Option) *httptest.Server {
	t.Helper()

	gw := gateway.New("127.0.0.1:0", hub, opts...)
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func writePacket(t *testing.T, ws *websocket.Conn, p protocol.ClientPacket) {
	t.Helper()

	line, err := protocol.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, append(line, '\n')))
}

func readPacket(t *testing.T, ws *websocket.Conn) protocol.ServerPacket {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	typ, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	require.True(t, strings.HasSuffix(string(data), "\n"), "one line per frame")

	p, err := protocol.UnmarshalServer(data[:len(data)-1])
	require.NoError(t, err)
	return p
}

func waitSubscribers(t *testing.T, hub *relay.Hub, group string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		g, ok := hub.Groups().Get(group)
		return ok && g.Subscribers() == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGateway_Health(t *testing.T) {
	t.Parallel()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()

		srv := newTestGateway(t, relay.NewHub())
		status, body := get(t, srv.URL+"/health/live")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ALIVE", body)
	})

	t.Run("readiness with passing checks", func(t *testing.T) {
		t.Parallel()

		ok := func(context.Context) error { return nil }
		srv := newTestGateway(t, relay.NewHub(), gateway.WithChecks(ok, ok))
		status, body := get(t, srv.URL+"/health/ready")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "READY", body)
	})

	t.Run("readiness with failing check", func(t *testing.T) {
		t.Parallel()

		failing := func(context.Context) error { return errors.New("redis down") }
		srv := newTestGateway(t, relay.NewHub(), gateway.WithChecks(failing))
		status, _ := get(t, srv.URL+"/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})
}

func TestGateway_Stats(t *testing.T) {
	t.Parallel()

	hub := relay.NewHub()
	srv := newTestGateway(t, hub)

	ws := dialWS(t, srv)
	writePacket(t, ws, protocol.Join{Group: "cats"})
	waitSubscribers(t, hub, "cats", 1)

	status, body := get(t, srv.URL+"/stats")
	require.Equal(t, http.StatusOK, status)

	var stats relay.Stats
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, relay.Stats{Groups: 1, Connections: 1}, stats)
}

func TestGateway_WebSocketRelay(t *testing.T) {
	t.Parallel()

	hub := relay.NewHub()
	srv := newTestGateway(t, hub)

	a, b := dialWS(t, srv), dialWS(t, srv)
	writePacket(t, a, protocol.Join{Group: "cats"})
	waitSubscribers(t, hub, "cats", 1)

	writePacket(t, b, protocol.Send{Group: "cats", Message: "meow"})
	assert.Equal(t, protocol.Message{Group: "cats", Message: "meow"}, readPacket(t, a))

	writePacket(t, b, protocol.Send{Group: "birds", Message: "tweet"})
	assert.Equal(t, protocol.Error{
		Text: "Can't send message 'tweet' to the group 'birds' because the group does not exist",
	}, readPacket(t, b))
}

func TestGateway_FramesAreStreamChunks(t *testing.T) {
	t.Parallel()

	hub := relay.NewHub()
	srv := newTestGateway(t, hub)
	ws := dialWS(t, srv)

	// Two packets in one frame, then one packet split across two frames.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"Join":{"group":"a"}}`+"\n"+`{"Join":{"group":"b"}}`+"\n")))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"Send":{"group":"a",`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`"message":"hi"}}`+"\n")))

	assert.Equal(t, protocol.Message{Group: "a", Message: "hi"}, readPacket(t, ws))
	waitSubscribers(t, hub, "b", 1)
}

func TestGateway_DisconnectDropsSubscriptions(t *testing.T) {
	t.Parallel()

	hub := relay.NewHub()
	srv := newTestGateway(t, hub)

	ws := dialWS(t, srv)
	writePacket(t, ws, protocol.Join{Group: "cats"})
	waitSubscribers(t, hub, "cats", 1)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = ws.Close()

	waitSubscribers(t, hub, "cats", 0)
	require.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestGateway_MalformedPacketClosesSocket(t *testing.T) {
	t.Parallel()

	srv := newTestGateway(t, relay.NewHub())
	ws := dialWS(t, srv)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("garbage\n")))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestGateway_OriginCheck(t *testing.T) {
	t.Parallel()

	srv := newTestGateway(t, relay.NewHub(), gateway.WithAllowedOrigins("https://chat.example.com"))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://chat.example.com"}})
	require.NoError(t, err)
	_ = ws.Close()
}

func TestGateway_Lifecycle(t *testing.T) {
	t.Parallel()

	hub := relay.NewHub()
	gw := gateway.New("127.0.0.1:0", hub, gateway.WithShutdownTimeout(2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- gw.Run(ctx)() }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("gateway did not stop")
	}
	hub.Close()
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	_, err := gateway.NewFromConfig(gateway.Config{}, relay.NewHub())
	assert.ErrorIs(t, err, gateway.ErrMissingAddress)

	gw, err := gateway.NewFromConfig(gateway.Config{Addr: "127.0.0.1:0", AllowedOrigins: []string{"*"}}, relay.NewHub())
	require.NoError(t, err)
	assert.NotNil(t, gw)
}

func TestGateway_RefusesUpgradesAfterStop(t *testing.T) {
	t.Parallel()

	hub := relay.NewHub()
	gw := gateway.New("127.0.0.1:0", hub)
	require.NoError(t, gw.Stop())

	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if ws != nil {
		_ = ws.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	status, _ := get(t, srv.URL+"/health/live")
	assert.Equal(t, http.StatusOK, status, "health endpoints keep answering while draining")
}
