package transport

import (
	"context"
	"sync"
	"time"

	ws "nhooyr.io/websocket"
)

// Conn is one browser peer. Room membership lives in the hub and is
// guarded by the hub's lock.
type Conn struct {
	id  ConnID
	ws  *ws.Conn
	out chan []byte

	rooms map[string]struct{}

	cancel    context.CancelFunc
	leaveOnce sync.Once
}

func newConn(id ConnID, c *ws.Conn, buffer int) *Conn {
	return &Conn{
		id:     id,
		ws:     c,
		out:    make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
		cancel: func() {},
	}
}

func (c *Conn) ID() ConnID { return c.id }

// enqueue adds to the outbox without blocking; a full outbox drops the frame.
func (c *Conn) enqueue(b []byte) bool {
	select {
	case c.out <- b:
		metricFramesOut.Inc()
		return true
	default:
		metricDrops.Inc()
		return false
	}
}

// writeLoop sends outbound frames + periodic pings.
// Exits when ctx is cancelled or a write fails.
func (c *Conn) writeLoop(ctx context.Context, writeTimeout, pingInterval time.Duration) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, ws.MessageText, b)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
