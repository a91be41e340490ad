package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "nhooyr.io/websocket"
)

var ErrClosed = errors.New("transport closed")

// Handler receives inbound events and the disconnect notification.
// HandleEvent runs on the connection's read goroutine, so events from one
// connection are handled in order. HandleDisconnect runs exactly once per
// connection, after it has left every room.
type Handler interface {
	HandleEvent(ctx context.Context, id ConnID, event string, data json.RawMessage)
	HandleDisconnect(id ConnID)
}

type Options struct {
	SendBuffer      int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	OriginPatterns  []string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 20 * time.Second
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 1 << 20
	}
	o.OriginPatterns = hostPatterns(o.OriginPatterns)
	if len(o.OriginPatterns) == 0 {
		o.OriginPatterns = []string{"*"}
	}
	return o
}

// hostPatterns turns CORS-style origins ("https://app.example.com") into the
// host patterns the websocket accept check matches against. Bare host
// patterns pass through unchanged.
func hostPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if strings.Contains(o, "://") {
			u, err := url.Parse(o)
			if err != nil || u.Host == "" {
				continue
			}
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}

// Hub owns every live connection and the room grouping over them.
type Hub struct {
	// Handler must be set before the hub serves connections.
	Handler Handler

	log  *slog.Logger
	opts Options

	mu     sync.RWMutex
	conns  map[ConnID]*Conn
	rooms  map[string]map[ConnID]*Conn
	closed bool

	live sync.WaitGroup
}

func NewHub(log *slog.Logger, opts Options) *Hub {
	return &Hub{
		log:   log,
		opts:  opts.withDefaults(),
		conns: make(map[ConnID]*Conn),
		rooms: make(map[string]map[ConnID]*Conn),
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	c, err := ws.Accept(w, r, &ws.AcceptOptions{
		OriginPatterns:  h.opts.OriginPatterns,
		CompressionMode: ws.CompressionDisabled,
	})
	if err != nil {
		h.log.Warn("ws.accept", "err", err)
		return
	}
	c.SetReadLimit(h.opts.MaxMessageBytes)

	ctx, cancel := context.WithCancel(context.Background())
	conn := newConn(ConnID(uuid.NewString()), c, h.opts.SendBuffer)
	conn.cancel = cancel
	if err := h.register(conn); err != nil {
		cancel()
		_ = c.Close(ws.StatusGoingAway, "shutting down")
		return
	}

	go conn.writeLoop(ctx, h.opts.WriteTimeout, h.opts.PingInterval)
	h.readLoop(ctx, conn)

	cancel()
	h.disconnect(conn)
	_ = c.Close(ws.StatusNormalClosure, "bye")
}

func (h *Hub) readLoop(ctx context.Context, c *Conn) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if status := ws.CloseStatus(err); status != ws.StatusNormalClosure && status != ws.StatusGoingAway && ctx.Err() == nil {
				h.log.Debug("ws.read", "conn", c.id, "err", err)
			}
			return
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		f, err := decode(data)
		if err != nil {
			metricFramesIn.WithLabelValues("malformed").Inc()
			h.log.Debug("ws.frame.malformed", "conn", c.id, "err", err)
			continue
		}
		metricFramesIn.WithLabelValues("ok").Inc()
		if h.Handler != nil {
			h.Handler.HandleEvent(ctx, c.id, f.Event, f.Data)
		}
	}
}

func (h *Hub) register(c *Conn) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.conns[c.id] = c
	h.live.Add(1)
	n := len(h.conns)
	h.mu.Unlock()

	gaugeConnections.Set(float64(n))
	h.log.Info("connected", "conn", c.id)
	return nil
}

// disconnect removes c from the hub and every room, then notifies the
// handler. Safe to call more than once; only the first call has effect.
func (h *Hub) disconnect(c *Conn) {
	c.leaveOnce.Do(func() {
		h.mu.Lock()
		delete(h.conns, c.id)
		for room := range c.rooms {
			members := h.rooms[room]
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		c.rooms = nil
		conns, rooms := len(h.conns), len(h.rooms)
		h.mu.Unlock()

		gaugeConnections.Set(float64(conns))
		gaugeRooms.Set(float64(rooms))
		h.log.Info("disconnected", "conn", c.id)

		if h.Handler != nil {
			h.Handler.HandleDisconnect(c.id)
		}
		h.live.Done()
	})
}

// Join adds a connection to a room, creating the room on first use.
// It reports false when the connection is gone.
func (h *Hub) Join(id ConnID, room string) bool {
	h.mu.Lock()
	c, ok := h.conns[id]
	if !ok || c.rooms == nil {
		h.mu.Unlock()
		return false
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[ConnID]*Conn)
		h.rooms[room] = members
	}
	members[id] = c
	c.rooms[room] = struct{}{}
	n := len(h.rooms)
	h.mu.Unlock()

	gaugeRooms.Set(float64(n))
	return true
}

// Publish sends an event to the members of room at the time of the call,
// skipping except. An empty except reaches every member.
// It returns the number of connections the frame was queued to.
func (h *Hub) Publish(room, event string, payload any, except ConnID) int {
	b, err := encode(event, payload)
	if err != nil {
		h.log.Warn("publish.encode", "event", event, "err", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(b) {
			sent++
		} else {
			h.log.Debug("publish.drop", "conn", c.id, "room", room, "event", event)
		}
	}
	return sent
}

// SendDirect sends an event to a single connection.
func (h *Hub) SendDirect(id ConnID, event string, payload any) bool {
	h.mu.RLock()
	c, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	b, err := encode(event, payload)
	if err != nil {
		h.log.Warn("send.encode", "event", event, "err", err)
		return false
	}
	return c.enqueue(b)
}

// Members lists the connections currently in room.
func (h *Hub) Members(room string) []ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ConnID, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		out = append(out, id)
	}
	return out
}

func (h *Hub) Stats() (rooms, conns int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms), len(h.conns)
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Close stops accepting connections, tears down the open ones and waits
// until each has been through disconnect handling or ctx expires.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	open := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		open = append(open, c)
	}
	h.mu.Unlock()

	// each read loop observes its cancel and runs disconnect itself
	for _, c := range open {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
