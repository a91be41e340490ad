package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"liveview/relay/internal/codes"
	"liveview/relay/internal/events"
	"liveview/relay/internal/transport"
)

// Wire event names.
const (
	EventRequestCode  = "request-code"
	EventYourCode     = "your-code"
	EventJoinCode     = "join-code"
	EventJoinSuccess  = "join-success"
	EventJoinFailed   = "join-failed"
	EventPeerJoined   = "peer-joined"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventDraw         = "draw"
	EventClearCanvas  = "clear-canvas"
	EventSessionEnded = "session-ended"
)

// InvalidCodeReason is sent with join-failed.
const InvalidCodeReason = "Invalid or expired code"

// signalFields maps each signaling event to the field whose value is relayed.
var signalFields = map[string]string{
	EventOffer:        "offer",
	EventAnswer:       "answer",
	EventICECandidate: "candidate",
}

// Room names a fan-out group. Its value is the code it was created for.
type Room string

// Transport is the part of the messaging layer the engine drives.
type Transport interface {
	Join(id transport.ConnID, room string) bool
	Publish(room, event string, payload any, except transport.ConnID) int
	SendDirect(id transport.ConnID, event string, payload any) bool
}

// Engine implements the per-connection event handlers on top of the code
// registry. It holds no state of its own.
type Engine struct {
	codes  *codes.Registry
	tr     Transport
	events *events.Store
	log    *slog.Logger
}

func New(reg *codes.Registry, tr Transport, ev *events.Store, log *slog.Logger) *Engine {
	return &Engine{codes: reg, tr: tr, events: ev, log: log}
}

// HandleEvent dispatches one inbound event from connection id.
func (e *Engine) HandleEvent(_ context.Context, id transport.ConnID, event string, data json.RawMessage) {
	switch event {
	case EventRequestCode:
		e.requestCode(id)
	case EventJoinCode:
		e.joinCode(id, data)
	case EventOffer, EventAnswer, EventICECandidate:
		e.relaySignal(id, event, data)
	case EventDraw:
		e.relayDraw(id, data)
	case EventClearCanvas:
		e.relayClear(id, data)
	default:
		metricEvents.WithLabelValues("unknown", "ignored").Inc()
		e.log.Debug("relay.unknown_event", "conn", id, "event", event)
	}
}

// HandleDisconnect releases every code id owned and tells each of those
// rooms the session is over. A second call finds nothing to release.
func (e *Engine) HandleDisconnect(id transport.ConnID) {
	released := e.codes.Release(string(id))
	for _, code := range released {
		n := e.tr.Publish(code, EventSessionEnded, nil, "")
		metricSessionsEnded.Inc()
		e.events.Append(code, "session_ended", map[string]any{"owner": string(id), "notified": n})
	}
	if len(released) > 0 {
		e.log.Info("relay.session_ended", "conn", id, "codes", released)
	}
}

func (e *Engine) requestCode(id transport.ConnID) {
	code, err := e.codes.Allocate(string(id))
	if err != nil {
		metricEvents.WithLabelValues(EventRequestCode, "exhausted").Inc()
		if errors.Is(err, codes.ErrCodeSpaceExhausted) {
			e.log.Error("relay.request_code", "conn", id, "err", err)
		}
		return
	}
	if !e.tr.Join(id, code) {
		// the connection went away between allocation and join; older
		// codes stay for HandleDisconnect to end properly
		e.codes.ReleaseCode(code, string(id))
		metricEvents.WithLabelValues(EventRequestCode, "gone").Inc()
		return
	}
	e.tr.SendDirect(id, EventYourCode, code)
	e.events.Append(code, "code_allocated", map[string]any{"owner": string(id)})
	metricEvents.WithLabelValues(EventRequestCode, "ok").Inc()
	e.log.Debug("relay.code_allocated", "conn", id, "code", code)
}

func (e *Engine) joinCode(id transport.ConnID, data json.RawMessage) {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		// still answered: the asker is waiting for a join result
		metricEvents.WithLabelValues(EventJoinCode, "malformed").Inc()
		e.log.Debug("relay.join.malformed", "conn", id, "err", err)
	}

	owner, ok := e.codes.Lookup(code)
	if !ok {
		metricJoins.WithLabelValues("failed").Inc()
		e.tr.SendDirect(id, EventJoinFailed, InvalidCodeReason)
		return
	}
	e.tr.Join(id, code)
	e.tr.SendDirect(id, EventJoinSuccess, code)
	e.tr.Publish(code, EventPeerJoined, nil, id)

	metricJoins.WithLabelValues("success").Inc()
	e.events.Append(code, "peer_joined", map[string]any{"guest": string(id), "owner": owner})
	e.log.Debug("relay.joined", "conn", id, "code", code)
}

func (e *Engine) relaySignal(id transport.ConnID, event string, data json.RawMessage) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		e.drop(id, event, "payload")
		return
	}
	room, ok := roomOf(msg["room"])
	if !ok {
		e.drop(id, event, "room")
		return
	}
	e.fanout(id, room, event, msg[signalFields[event]])
}

func (e *Engine) relayDraw(id transport.ConnID, data json.RawMessage) {
	var msg struct {
		Room json.RawMessage `json:"room"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		e.drop(id, EventDraw, "payload")
		return
	}
	room, ok := roomOf(msg.Room)
	if !ok {
		e.drop(id, EventDraw, "room")
		return
	}
	e.fanout(id, room, EventDraw, data)
}

func (e *Engine) relayClear(id transport.ConnID, data json.RawMessage) {
	room, ok := roomOf(data)
	if !ok {
		e.drop(id, EventClearCanvas, "room")
		return
	}
	e.fanout(id, room, EventClearCanvas, nil)
}

// fanout relays to every other member of room; no registry lookup.
func (e *Engine) fanout(from transport.ConnID, room Room, event string, payload json.RawMessage) {
	var p any
	if payload != nil {
		p = payload
	}
	n := e.tr.Publish(string(room), event, p, from)
	metricFanout.Observe(float64(n))
	metricEvents.WithLabelValues(event, "relayed").Inc()
}

func (e *Engine) drop(id transport.ConnID, event, reason string) {
	metricEvents.WithLabelValues(event, "dropped").Inc()
	e.log.Debug("relay.drop", "conn", id, "event", event, "reason", reason)
}

// roomOf reads a room name from a JSON string.
func roomOf(raw json.RawMessage) (Room, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", false
	}
	return Room(s), true
}
