package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sockchat/internal/app/user"
	"sockchat/internal/pkg/logx"
)

const (
	inboundChannelBuffer = 256
	remoteChannelBuffer  = 256

	// externalCallTimeout bounds counter and publish calls made from the hub loop.
	externalCallTimeout = 2 * time.Second
)

// ErrHubStopped is returned by Serve once the hub has shut down.
var ErrHubStopped = errors.New("chat: hub stopped")

type inboundMessage struct {
	from *Client
	text string
}

// Hub is the room's event loop. One goroutine (Run) owns the client set and the counter;
// every state change goes through its channels.
type Hub struct {
	// open connections. Only touched by Run.
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	remote     chan []byte

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	counter   Counter
	publisher Publisher

	// mirror of len(clients) for readers outside the loop.
	open atomic.Int64

	logger zerolog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithCounter replaces the in-process presence counter, e.g. with a shared Redis counter.
func WithCounter(c Counter) HubOption {
	return func(h *Hub) {
		h.counter = c
	}
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage, inboundChannelBuffer),
		remote:     make(chan []byte, remoteChannelBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		counter:    &localCounter{},
		logger:     logx.Component("hub"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// SetPublisher attaches a cross-instance publisher. It must be called before Run.
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

// Serve attaches an accepted connection to the room and blocks until it closes.
func (h *Hub) Serve(conn *websocket.Conn, identity user.Identity) error {
	c := newClient(h, conn, identity)

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return ErrHubStopped
	}

	go c.writePump()
	c.readPump()

	return nil
}

// DeliverRemote queues a frame published by another instance for local delivery only.
func (h *Hub) DeliverRemote(frame []byte) {
	select {
	case h.remote <- frame:
	case <-h.done:
	default:
		h.logger.Warn().Msg("Remote channel full, dropping frame from peer instance.")
	}
}

// Connections returns the number of connections open on this instance.
func (h *Hub) Connections() int {
	return int(h.open.Load())
}

// Stop closes every connection and ends Run. It blocks until Run has returned.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

// Run is the event loop. It returns after Stop.
func (h *Hub) Run() {
	defer close(h.done)
	defer h.shutdown()

	h.logger.Info().Msg("Hub started.")

	for {
		select {
		case c := <-h.register:
			h.join(c)

		case c := <-h.unregister:
			h.leave(c)

		case msg := <-h.inbound:
			if _, ok := h.clients[msg.from]; !ok {
				continue
			}
			h.emit(EventChatMessage, ChatMessage{Username: msg.from.identity.Username, Message: msg.text})

		case frame := <-h.remote:
			h.broadcastLocal(frame)

		case <-h.stop:
			return
		}
	}
}

func (h *Hub) join(c *Client) {
	h.clients[c] = struct{}{}
	h.open.Store(int64(len(h.clients)))

	n := h.addPresence(1)

	c.logger.Info().Int64("current_users", n).Msg("User connected.")
	h.emit(EventUser, UserEvent{Username: c.identity.Username, CurrentUsers: n, Connected: true})
}

// leave removes c if it is still open. A connection that already left (for example after
// being dropped as a slow consumer) is ignored so it is never counted twice.
func (h *Hub) leave(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	delete(h.clients, c)
	close(c.send)
	h.open.Store(int64(len(h.clients)))

	n := h.addPresence(-1)

	c.logger.Info().Int64("current_users", n).Msg("User disconnected.")
	h.emit(EventUser, UserEvent{Username: c.identity.Username, CurrentUsers: n, Connected: false})
}

func (h *Hub) addPresence(delta int64) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	n, err := h.counter.Add(ctx, delta)
	if err != nil {
		h.logger.Error().Err(err).Int64("delta", delta).Msg("Presence counter update failed, reporting local count.")
		return int64(len(h.clients))
	}
	return n
}

// emit broadcasts a locally originated event here and, in cluster mode, to the other instances.
func (h *Hub) emit(event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Error encoding frame for broadcast.")
		return
	}

	h.broadcastLocal(frame)

	if h.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), externalCallTimeout)
	defer cancel()

	if err := h.publisher.Publish(ctx, frame); err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Failed to publish frame to peer instances.")
	}
}

// broadcastLocal queues frame for every open connection, sender included. Connections whose
// queue is full are disconnected after the fan-out.
func (h *Hub) broadcastLocal(frame []byte) {
	var slow []*Client

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}

	for _, c := range slow {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, disconnecting.")
		h.leave(c)
	}
}

func (h *Hub) shutdown() {
	n := len(h.clients)

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.open.Store(0)

	if n > 0 {
		// Give back this instance's share of a shared counter.
		_ = h.addPresence(-int64(n))
	}

	h.logger.Info().Int("closed_connections", n).Msg("Hub stopped.")
}
