// Package server provides the HTTP and websocket front end of the recognizer.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/go-chi/httprate"
	"github.com/julienschmidt/httprouter"

	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/server/api"
	"github.com/ayusman/signbridge/internal/store"
)

// Config holds the server configuration. Every field is optional; routes
// whose collaborators are missing are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    *gesture.Engine
	Sessions  *gesture.Sessions
	Recorder  *api.Recorder
	// Frames feeds the MJPEG stream.
	Frames FrameSource
	// Hub receives live camera events for /ws/live.
	Hub       *Hub
	ModelPath string
	// RateLimitPerMin limits /api/predict per client IP. Zero disables it.
	RateLimitPerMin int
	Log             logs.Log
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router *httprouter.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log, _ = logs.NewLog()
	}
	if config.Engine != nil && config.Sessions == nil {
		config.Sessions = gesture.NewSessions(config.Engine)
	}
	if config.Sessions != nil && config.Recorder != nil {
		config.Sessions.OnEvict(config.Recorder.Close)
	}
	s := &Server{
		config: config,
		router: httprouter.New(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.router.HandlerFunc(http.MethodGet, "/api/health", s.handleHealth)

	if s.config.Engine != nil {
		var predict http.Handler = api.NewPredictHandler(s.config.Engine, s.config.Sessions, s.config.Recorder)
		if s.config.RateLimitPerMin > 0 {
			limited := httprate.Limit(s.config.RateLimitPerMin, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
			predict = limited(predict)
		}
		s.router.Handler(http.MethodPost, "/api/predict", predict)
		s.router.Handler(http.MethodGet, "/ws", NewStreamSocket(s.config.Sessions, s.config.Recorder, s.config.Log))
	}

	if s.config.Store != nil {
		s.router.Handler(http.MethodGet, "/api/sign-mapping", api.NewMappingHandler(s.config.Store))
		sessions := api.NewSessionsHandler(s.config.Store, s.config.Sessions)
		s.router.HandlerFunc(http.MethodGet, "/api/sessions", sessions.List)
		s.router.HandlerFunc(http.MethodGet, "/api/sessions/:id/events", sessions.Events)
	}

	if s.config.Hub != nil {
		s.router.Handler(http.MethodGet, "/ws/live", s.config.Hub)
	}

	if s.config.Frames != nil {
		s.router.Handler(http.MethodGet, "/api/stream", NewStreamHandler(s.config.Frames))
	}

	if s.config.StaticDir != "" {
		s.router.NotFound = http.FileServer(http.Dir(s.config.StaticDir))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status         string         `json:"status"`
	Uptime         string         `json:"uptime"`
	Backend        string         `json:"backend"`
	ModelPath      string         `json:"model_path,omitempty"`
	GestureWeights bool           `json:"gesture_weights"`
	Window         int            `json:"window"`
	Sessions       int            `json:"sessions"`
	Stats          *gesture.Stats `json:"stats,omitempty"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.start).Round(time.Second).String(),
		Backend: "absent",
	}

	if s.config.ModelPath != "" {
		response.ModelPath = s.config.ModelPath
		if _, err := os.Stat(s.config.ModelPath); err == nil {
			response.GestureWeights = true
		}
	}
	if e := s.config.Engine; e != nil {
		stats := e.Stats()
		response.Backend = e.State().String()
		response.Window = e.Window()
		response.Stats = &stats
	}
	if s.config.Sessions != nil {
		response.Sessions = s.config.Sessions.Len()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
