package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"liveview/relay/internal/codes"
	"liveview/relay/internal/events"
	"liveview/relay/internal/health"
	"liveview/relay/internal/transport"
)

// RootBanner is the body of GET /.
const RootBanner = "✅ Live View Backend Running"

type Handlers struct {
	reg    *codes.Registry
	hub    *transport.Hub
	events *events.Store
	log    *slog.Logger
}

func NewHandlers(reg *codes.Registry, hub *transport.Hub, ev *events.Store, log *slog.Logger) *Handlers {
	return &Handlers{reg: reg, hub: hub, events: ev, log: log}
}

func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootBanner))
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	st := health.CheckAll(r.Context(), h.reg, h.hub)
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
		h.log.Warn("readyz.fail", "status", st.String())
	}
	writeJSON(w, code, st)
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !codes.Valid(code) {
		http.Error(w, "invalid code", http.StatusBadRequest)
		return
	}
	evts := h.events.List(code)
	if len(evts) == 0 {
		http.NotFound(w, r)
		return
	}
	_, live := h.reg.Lookup(code)
	writeJSON(w, http.StatusOK, map[string]any{
		"code":   code,
		"live":   live,
		"events": evts,
	})
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
