package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sockchat/internal/app/user"
)

func startHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	h := NewHub(opts...)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// startServer exposes h over a test WebSocket endpoint; the identity comes from ?u=.
func startServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = h.Serve(conn, user.Identity{Username: r.URL.Query().Get("u")})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, username string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?u=" + username

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readUserEvent(t *testing.T, conn *websocket.Conn) UserEvent {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, EventUser, env.Event)

	var ev UserEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	return ev
}

func readChatMessage(t *testing.T, conn *websocket.Conn) ChatMessage {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, EventChatMessage, env.Event)

	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	return msg
}

func sendChat(t *testing.T, conn *websocket.Conn, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: EventChatMessage, Data: raw}))
}

func TestHubTwoUserScenario(t *testing.T) {
	h := startHub(t)
	srv := startServer(t, h)

	a := dial(t, srv, "alice")
	assert.Equal(t, UserEvent{Username: "alice", CurrentUsers: 1, Connected: true}, readUserEvent(t, a))

	b := dial(t, srv, "bob")
	assert.Equal(t, UserEvent{Username: "bob", CurrentUsers: 2, Connected: true}, readUserEvent(t, a))
	assert.Equal(t, UserEvent{Username: "bob", CurrentUsers: 2, Connected: true}, readUserEvent(t, b))

	sendChat(t, a, "hi")
	assert.Equal(t, ChatMessage{Username: "alice", Message: "hi"}, readChatMessage(t, a), "sender receives its own message")
	assert.Equal(t, ChatMessage{Username: "alice", Message: "hi"}, readChatMessage(t, b))

	require.NoError(t, b.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = b.Close()

	assert.Equal(t, UserEvent{Username: "bob", CurrentUsers: 1, Connected: false}, readUserEvent(t, a))
	assert.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubAcceptsObjectPayloadAndSkipsGarbage(t *testing.T) {
	h := startHub(t)
	srv := startServer(t, h)

	a := dial(t, srv, "alice")
	readUserEvent(t, a)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, a.WriteJSON(Envelope{Event: "typing", Data: json.RawMessage(`{}`)}))
	sendChat(t, a, map[string]string{"message": "object form"})

	assert.Equal(t, ChatMessage{Username: "alice", Message: "object form"}, readChatMessage(t, a))
}

func TestHubOversizedFrameClosesConnection(t *testing.T) {
	h := startHub(t)
	srv := startServer(t, h)

	a := dial(t, srv, "alice")
	readUserEvent(t, a)

	b := dial(t, srv, "bob")
	readUserEvent(t, a)
	readUserEvent(t, b)

	// The server may close mid-write, so the write error is not interesting.
	_ = b.WriteJSON(Envelope{Event: EventChatMessage, Data: json.RawMessage(`"` + strings.Repeat("x", MaxFrameBytes) + `"`)})

	assert.Equal(t, UserEvent{Username: "bob", CurrentUsers: 1, Connected: false}, readUserEvent(t, a))
}

// fakeClient is a connection-less client driven through the hub channels directly.
func fakeClient(h *Hub, name string, buffer int) *Client {
	return &Client{
		hub:      h,
		identity: user.Identity{Username: name},
		send:     make(chan []byte, buffer),
		logger:   zerolog.Nop(),
	}
}

func nextFrame(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame, ok := <-c.send:
		require.True(t, ok, "send queue closed")
		var env Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return Envelope{}
	}
}

func nextUserEvent(t *testing.T, c *Client) UserEvent {
	t.Helper()
	env := nextFrame(t, c)
	require.Equal(t, EventUser, env.Event)

	var ev UserEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	return ev
}

func TestHubCounterMatchesOpenConnections(t *testing.T) {
	h := startHub(t)

	observer := fakeClient(h, "observer", 64)
	h.register <- observer
	require.Equal(t, int64(1), nextUserEvent(t, observer).CurrentUsers)

	var clients []*Client
	for _, name := range []string{"a", "b", "c", "d"} {
		c := fakeClient(h, name, 64)
		clients = append(clients, c)
		h.register <- c
	}
	for want := int64(2); want <= 5; want++ {
		assert.Equal(t, want, nextUserEvent(t, observer).CurrentUsers)
	}

	h.unregister <- clients[1]
	h.unregister <- clients[1]
	h.unregister <- clients[3]

	ev := nextUserEvent(t, observer)
	assert.Equal(t, UserEvent{Username: "b", CurrentUsers: 4, Connected: false}, ev)
	ev = nextUserEvent(t, observer)
	assert.Equal(t, UserEvent{Username: "d", CurrentUsers: 3, Connected: false}, ev)

	assert.Eventually(t, func() bool { return h.Connections() == 3 }, time.Second, 5*time.Millisecond)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	h := startHub(t)

	fast := fakeClient(h, "fast", 64)
	h.register <- fast
	nextUserEvent(t, fast)

	slow := fakeClient(h, "slow", 1)
	h.register <- slow
	nextUserEvent(t, fast)

	h.inbound <- inboundMessage{from: fast, text: "flood"}

	assert.Equal(t, EventChatMessage, nextFrame(t, fast).Event)
	assert.Equal(t, UserEvent{Username: "slow", CurrentUsers: 1, Connected: false}, nextUserEvent(t, fast))

	<-slow.send
	_, open := <-slow.send
	assert.False(t, open, "slow consumer's queue must be closed")
}

func TestHubIgnoresMessagesFromClosedConnections(t *testing.T) {
	h := startHub(t)

	a := fakeClient(h, "a", 64)
	b := fakeClient(h, "b", 64)
	h.register <- a
	h.register <- b
	nextUserEvent(t, a)
	nextUserEvent(t, a)

	h.unregister <- b
	nextUserEvent(t, a)

	h.inbound <- inboundMessage{from: b, text: "ghost"}
	h.inbound <- inboundMessage{from: a, text: "real"}

	env := nextFrame(t, a)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "real", msg.Message)
}

type recordingPublisher struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func TestHubPublishesLocalEventsOnly(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewHub()
	h.SetPublisher(pub)
	go h.Run()
	t.Cleanup(h.Stop)

	a := fakeClient(h, "a", 64)
	h.register <- a
	nextUserEvent(t, a)

	h.inbound <- inboundMessage{from: a, text: "hello"}
	nextFrame(t, a)

	remote, err := encodeFrame(EventChatMessage, ChatMessage{Username: "zed", Message: "from afar"})
	require.NoError(t, err)
	h.DeliverRemote(remote)

	env := nextFrame(t, a)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "zed", msg.Username)

	assert.Equal(t, 2, pub.count(), "remote frames must not be re-published")
}

type stubCounter struct {
	mu    sync.Mutex
	value int64
	err   error
}

func (c *stubCounter) Add(_ context.Context, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.value += delta
	return c.value, nil
}

func (c *stubCounter) get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func TestHubUsesSharedCounter(t *testing.T) {
	counter := &stubCounter{value: 7}
	h := NewHub(WithCounter(counter))
	go h.Run()

	a := fakeClient(h, "a", 64)
	h.register <- a
	assert.Equal(t, int64(8), nextUserEvent(t, a).CurrentUsers)

	h.Stop()

	_, open := <-a.send
	assert.False(t, open)
	assert.Equal(t, int64(7), counter.get(), "stop returns this instance's connections")
	assert.Equal(t, 0, h.Connections())
}

func TestHubCounterFailureFallsBackToLocalCount(t *testing.T) {
	h := startHub(t, WithCounter(&stubCounter{err: errors.New("redis down")}))

	a := fakeClient(h, "a", 64)
	h.register <- a
	assert.Equal(t, int64(1), nextUserEvent(t, a).CurrentUsers)
}

func TestHubStopIsIdempotent(t *testing.T) {
	h := NewHub()
	go h.Run()

	h.Stop()
	h.Stop()

	assert.Equal(t, 0, h.Connections())
}
