// Package app runs recognition continuously against a local camera.
package app

import (
	"errors"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"gocv.io/x/gocv"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/gesture"
	"github.com/ayusman/signbridge/internal/store"
)

// SessionID is the session under which camera frames are recognized.
const SessionID = "camera"

// Recorder persists session activity.
type Recorder interface {
	Open(id string, source store.SessionSource)
	Observe(id string, res gesture.Result)
	Close(id string)
}

// Publisher broadcasts events to live listeners.
type Publisher interface {
	Publish(v any)
}

// LiveEvent is published whenever the camera label changes.
type LiveEvent struct {
	Type      string  `json:"type"`
	Session   string  `json:"session"`
	Gesture   string  `json:"gesture"`
	Source    string  `json:"source"`
	Score     float32 `json:"score,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// Config holds the collaborators of an App. Recorder and Publisher are optional.
type Config struct {
	Camera    capture.Camera
	Sessions  *gesture.Sessions
	Recorder  Recorder
	Publisher Publisher
	// FPS overrides the camera frame rate when positive.
	FPS int
	Log logs.Log
}

// App feeds camera frames through a recognizer and publishes label changes.
type App struct {
	config  Config
	enabled bool
	mu      sync.RWMutex
	stopCh  chan struct{}
	done    chan struct{}

	frameMu sync.Mutex
	latest  *gocv.Mat
}

// New creates an App. Detection starts enabled.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Sessions == nil {
		return nil, errors.New("app: sessions are required")
	}
	if config.Log == nil {
		config.Log, _ = logs.NewLog()
	}
	return &App{config: config, enabled: true}, nil
}

// SetEnabled enables or disables recognition. Frames are still read while
// disabled so the stream endpoint keeps working.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether recognition is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera and begins the capture loop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return err
	}
	if a.config.FPS > 0 {
		a.config.Camera.SetFPS(a.config.FPS)
	}
	if a.config.Recorder != nil {
		a.config.Recorder.Open(SessionID, store.SourceCamera)
	}
	a.config.Sessions.Get(SessionID)

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	a.config.Log.Infof("Camera pipeline started at %v fps", a.config.Camera.FPS())
	return nil
}

// Stop halts the capture loop and releases the camera.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done := a.stopCh, a.done
	a.stopCh, a.done = nil, nil
	a.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done
	a.release()
}

// stopped is called by a pipeline that ended on its own. It clears the
// running state unless Stop already has. The lock is held across release so
// a concurrent Start cannot open the camera in between.
func (a *App) stopped(stopCh chan struct{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopCh != stopCh {
		return
	}
	a.stopCh, a.done = nil, nil
	a.release()
}

// release frees the camera and ends the camera session.
func (a *App) release() {
	if err := a.config.Camera.Close(); err != nil {
		a.config.Log.Warnf("Error closing camera: %v", err)
	}
	a.frameMu.Lock()
	if a.latest != nil {
		a.latest.Close()
		a.latest = nil
	}
	a.frameMu.Unlock()

	a.config.Sessions.Close(SessionID)
	if a.config.Recorder != nil {
		a.config.Recorder.Close(SessionID)
	}
	a.config.Log.Infof("Camera pipeline stopped")
}

// Running reports whether the capture loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.config.Camera
}

// ReadFrame returns a copy of the most recent camera frame, so viewers can
// watch without taking frames from the pipeline. The caller must close it.
func (a *App) ReadFrame() (*gocv.Mat, error) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	if a.latest == nil {
		return nil, capture.ErrNoFrame
	}
	m := a.latest.Clone()
	return &m, nil
}

// FPS returns the camera frame rate.
func (a *App) FPS() int {
	return a.config.Camera.FPS()
}

func (a *App) keepFrame(frame *gocv.Mat) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	if a.latest == nil {
		m := frame.Clone()
		a.latest = &m
		return
	}
	frame.CopyTo(a.latest)
}

// ProcessFrame recognizes one frame in the camera session. Label changes are
// published and recorded.
func (a *App) ProcessFrame(frame *gocv.Mat) gesture.Result {
	// The session may have been dropped while recognition was disabled
	if _, ok := a.config.Sessions.Lookup(SessionID); !ok && a.config.Recorder != nil {
		a.config.Recorder.Open(SessionID, store.SourceCamera)
	}
	res := a.config.Sessions.Get(SessionID).RecognizeFrame(frame)

	if a.config.Recorder != nil {
		a.config.Recorder.Observe(SessionID, res)
	}
	if res.Changed && a.config.Publisher != nil {
		a.config.Publisher.Publish(LiveEvent{
			Type:      "gesture",
			Session:   SessionID,
			Gesture:   string(res.Label),
			Source:    string(res.Source),
			Score:     res.Score,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return res
}
