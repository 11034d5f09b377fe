package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/store"
)

// DefaultEventLimit is the number of events returned when no limit is given.
const DefaultEventLimit = 100

// SessionsHandler exposes recorded sessions and their label events.
type SessionsHandler struct {
	store  *store.Store
	active *gesture.Sessions
}

// NewSessionsHandler creates a new SessionsHandler. active may be nil.
func NewSessionsHandler(s *store.Store, active *gesture.Sessions) *SessionsHandler {
	return &SessionsHandler{store: s, active: active}
}

type sessionResponse struct {
	*store.Session
	Active bool `json:"active"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type listEventsResponse struct {
	Session string         `json:"session"`
	Events  []*store.Event `json:"events"`
}

// List handles GET /api/sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		active := false
		if h.active != nil {
			_, active = h.active.Lookup(s.ID)
		}
		response.Sessions = append(response.Sessions, sessionResponse{Session: s, Active: active})
	}

	writeJSON(w, http.StatusOK, response)
}

// Events handles GET /api/sessions/:id/events?limit=N.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	limit := DefaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}

	writeJSON(w, http.StatusOK, listEventsResponse{Session: id, Events: events})
}
