package api

import (
	"github.com/cyclopcam/logs"

	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/store"
)

// Recorder persists session activity. Frame counts are accumulated per
// session and an event is written each time the label changes. A Recorder
// without a store does nothing.
type Recorder struct {
	store *store.Store
	log   logs.Log
}

// NewRecorder creates a Recorder. s may be nil.
func NewRecorder(s *store.Store, log logs.Log) *Recorder {
	return &Recorder{store: s, log: log}
}

// Open registers a session if it is not known yet.
func (r *Recorder) Open(id string, source store.SessionSource) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Sessions().Ensure(id, source); err != nil {
		r.log.Warnf("Failed to open session %v: %v", id, err)
	}
}

// Observe records one recognized frame.
func (r *Recorder) Observe(id string, res gesture.Result) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Sessions().Touch(id, 1, string(res.Label)); err != nil {
		r.log.Warnf("Failed to update session %v: %v", id, err)
		return
	}
	if !res.Changed {
		return
	}
	ev := &store.Event{
		SessionID: id,
		Label:     string(res.Label),
		Source:    string(res.Source),
		Score:     float64(res.Score),
	}
	if err := r.store.Events().Create(ev); err != nil {
		r.log.Warnf("Failed to record event for session %v: %v", id, err)
	}
}

// Close marks a session closed.
func (r *Recorder) Close(id string) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Sessions().Close(id); err != nil {
		r.log.Debugf("Close session %v: %v", id, err)
	}
}
