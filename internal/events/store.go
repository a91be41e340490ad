package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxPerCode caps the history kept for a single code.
const MaxPerCode = 200

type Event struct {
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Store keeps the lifecycle history of each code. Keys are codes, so the
// number of histories is bounded by the code space.
type Store struct {
	mu     sync.RWMutex
	byCode map[string]*history
	now    func() time.Time
}

// history holds the newest entries of one code. Once entries have been
// dropped a single events_truncated marker trails them, counting every
// drop so far.
type history struct {
	events  []Event
	marker  *Event
	dropped int
}

func NewStore() *Store {
	return &Store{byCode: make(map[string]*history), now: time.Now}
}

func (s *Store) Append(code, typ string, payload map[string]any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Code:      code,
		Type:      typ,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.byCode[code]
	if h == nil {
		h = &history{}
		s.byCode[code] = h
	}
	h.events = append(h.events, evt)

	limit := MaxPerCode
	if h.marker != nil {
		limit--
	}
	if l := len(h.events); l > limit {
		// the marker takes one slot so the total stays at MaxPerCode
		keep := MaxPerCode - 1
		h.dropped += l - keep
		h.events = append([]Event(nil), h.events[l-keep:]...)
		if h.marker == nil {
			h.marker = &Event{ID: uuid.NewString(), Code: code, Type: "events_truncated"}
		}
		h.marker.Timestamp = s.now().UTC()
	}
	return evt
}

// List returns a copy of the history for code, oldest first, with the
// truncation marker last when there is one.
func (s *Store) List(code string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.byCode[code]
	if h == nil {
		return []Event{}
	}
	out := make([]Event, len(h.events), len(h.events)+1)
	copy(out, h.events)
	if h.marker != nil {
		m := *h.marker
		m.Payload = map[string]any{"dropped": h.dropped, "kept": len(h.events)}
		out = append(out, m)
	}
	return out
}
