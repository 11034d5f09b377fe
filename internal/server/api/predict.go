package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/store"
)

// MaxFrameBytes bounds the size of a predict request body.
const MaxFrameBytes = 10 << 20

// PredictHandler labels a single frame.
//
// The body is either a raw encoded image, or JSON of the form
// {"frame": "<base64>", "session": "<id>"}. The session may also be passed as
// the "session" query parameter. Frames without a session are labelled by a
// throwaway recognizer, so they never share a window with other callers.
type PredictHandler struct {
	engine   *gesture.Engine
	sessions *gesture.Sessions
	recorder *Recorder
}

// NewPredictHandler creates a new PredictHandler.
func NewPredictHandler(engine *gesture.Engine, sessions *gesture.Sessions, recorder *Recorder) *PredictHandler {
	return &PredictHandler{engine: engine, sessions: sessions, recorder: recorder}
}

type predictRequest struct {
	Frame   string `json:"frame"`
	Session string `json:"session"`
}

// PredictResponse is the JSON body returned by the predict endpoint.
type PredictResponse struct {
	Gesture string  `json:"gesture"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
	Window  int     `json:"window"`
	Session string  `json:"session,omitempty"`
}

func (h *PredictHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFrameBytes)

	sessionID := r.URL.Query().Get("session")
	var frame []byte

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Frame == "" {
			writeError(w, http.StatusBadRequest, "Frame is required")
			return
		}
		if req.Session != "" {
			sessionID = req.Session
		}
		// Undecodable base64 is labelled INVALID_FRAME like any other bad image
		frame, _ = DecodeFrame(req.Frame)
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Frame too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Failed to read body")
			return
		}
		if len(data) == 0 {
			writeError(w, http.StatusBadRequest, "Frame is required")
			return
		}
		frame = data
	}

	var rec *gesture.Recognizer
	if sessionID != "" {
		rec = h.sessions.Get(sessionID)
		h.recorder.Open(sessionID, store.SourceHTTP)
	} else {
		rec = h.engine.NewRecognizer()
	}

	res := rec.Recognize(frame)
	if sessionID != "" {
		h.recorder.Observe(sessionID, res)
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Gesture: string(res.Label),
		Source:  string(res.Source),
		Score:   res.Score,
		Window:  res.Window,
		Session: sessionID,
	})
}
