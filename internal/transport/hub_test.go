package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liveview/relay/internal/logging"
)

type recordingHandler struct {
	mu          sync.Mutex
	events      []string
	disconnects map[ConnID]int
}

func (r *recordingHandler) HandleEvent(_ context.Context, id ConnID, event string, _ json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(id)+":"+event)
}

func (r *recordingHandler) HandleDisconnect(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disconnects == nil {
		r.disconnects = make(map[ConnID]int)
	}
	r.disconnects[id]++
}

func (r *recordingHandler) disconnectCount(id ConnID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnects[id]
}

func newTestHub(t *testing.T) (*Hub, *recordingHandler) {
	t.Helper()
	h := NewHub(logging.Discard(), Options{SendBuffer: 4})
	rec := &recordingHandler{}
	h.Handler = rec
	return h, rec
}

func attach(t *testing.T, h *Hub, id ConnID) *Conn {
	t.Helper()
	c := newConn(id, nil, h.opts.SendBuffer)
	// no socket or read loop here, so cancelling tears down directly
	c.cancel = func() { h.disconnect(c) }
	require.NoError(t, h.register(c))
	return c
}

func drain(c *Conn) []Frame {
	var out []Frame
	for {
		select {
		case b := <-c.out:
			f, _ := decode(b)
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestPublishExcludesSender(t *testing.T) {
	h, _ := newTestHub(t)
	a := attach(t, h, "a")
	b := attach(t, h, "b")
	c := attach(t, h, "c")
	other := attach(t, h, "other")

	for _, id := range []ConnID{"a", "b", "c"} {
		require.True(t, h.Join(id, "4821"))
	}
	require.True(t, h.Join("other", "1111"))

	sent := h.Publish("4821", "draw", json.RawMessage(`{"room":"4821","x":10}`), "a")
	assert.Equal(t, 2, sent)

	assert.Empty(t, drain(a))
	assert.Empty(t, drain(other))
	for _, conn := range []*Conn{b, c} {
		frames := drain(conn)
		require.Len(t, frames, 1)
		assert.Equal(t, "draw", frames[0].Event)
		assert.JSONEq(t, `{"room":"4821","x":10}`, string(frames[0].Data))
	}
}

func TestPublishToEveryone(t *testing.T) {
	h, _ := newTestHub(t)
	a := attach(t, h, "a")
	b := attach(t, h, "b")
	h.Join("a", "r")
	h.Join("b", "r")

	assert.Equal(t, 2, h.Publish("r", "session-ended", nil, ""))
	for _, conn := range []*Conn{a, b} {
		frames := drain(conn)
		require.Len(t, frames, 1)
		assert.Equal(t, "session-ended", frames[0].Event)
		assert.Nil(t, frames[0].Data)
	}
}

func TestPublishUnknownRoom(t *testing.T) {
	h, _ := newTestHub(t)
	attach(t, h, "a")
	assert.Equal(t, 0, h.Publish("nope", "draw", nil, "a"))
}

func TestSendDirect(t *testing.T) {
	h, _ := newTestHub(t)
	a := attach(t, h, "a")

	require.True(t, h.SendDirect("a", "your-code", "4821"))
	assert.False(t, h.SendDirect("missing", "your-code", "4821"))

	frames := drain(a)
	require.Len(t, frames, 1)
	assert.Equal(t, "your-code", frames[0].Event)
	assert.Equal(t, `"4821"`, string(frames[0].Data))
}

func TestFullOutboxDrops(t *testing.T) {
	h, _ := newTestHub(t)
	a := attach(t, h, "a")
	for i := 0; i < h.opts.SendBuffer; i++ {
		require.True(t, h.SendDirect("a", "draw", nil))
	}
	assert.False(t, h.SendDirect("a", "draw", nil))
	assert.Len(t, drain(a), h.opts.SendBuffer)
}

func TestJoinIsIdempotent(t *testing.T) {
	h, _ := newTestHub(t)
	attach(t, h, "a")
	h.Join("a", "r")
	h.Join("a", "r")
	assert.Equal(t, []ConnID{"a"}, h.Members("r"))
	assert.False(t, h.Join("ghost", "r"))
}

func TestDisconnectLeavesRoomsOnce(t *testing.T) {
	h, rec := newTestHub(t)
	a := attach(t, h, "a")
	attach(t, h, "b")
	h.Join("a", "r1")
	h.Join("a", "r2")
	h.Join("b", "r1")

	h.disconnect(a)
	h.disconnect(a)

	assert.Equal(t, 1, rec.disconnectCount("a"))
	assert.Equal(t, []ConnID{"b"}, h.Members("r1"))
	assert.Empty(t, h.Members("r2"))

	rooms, conns := h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, conns)
	assert.False(t, h.SendDirect("a", "x", nil))
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	h, rec := newTestHub(t)
	a := attach(t, h, "a")
	attach(t, h, "b")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))

	assert.True(t, h.Closed())
	assert.Equal(t, 1, rec.disconnectCount("a"))
	assert.Equal(t, 1, rec.disconnectCount("b"))

	// a late teardown from the connection's own goroutine is a no-op
	h.disconnect(a)
	assert.Equal(t, 1, rec.disconnectCount("a"))

	err := h.register(newConn("late", nil, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEncode(t *testing.T) {
	b, err := encode("peer-joined", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"peer-joined"}`, string(b))

	b, err = encode("join-failed", "Invalid or expired code")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"join-failed","data":"Invalid or expired code"}`, string(b))

	raw := json.RawMessage(`{"sdp":"v=0","type":"offer"}`)
	b, err = encode("offer", raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"offer","data":{"sdp":"v=0","type":"offer"}}`, string(b))
}

func TestDecode(t *testing.T) {
	f, err := decode([]byte(`{"event":"join-code","data":"4821"}`))
	require.NoError(t, err)
	assert.Equal(t, "join-code", f.Event)
	assert.Equal(t, `"4821"`, string(f.Data))

	_, err = decode([]byte(`{"data":1}`))
	assert.Error(t, err)
	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}
