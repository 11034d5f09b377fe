package app

import (
	"errors"
	"time"

	"github.com/ayusman/signbridge/internal/capture"
)

// runPipeline reads frames at the camera rate until stopCh is closed.
// A camera that is closed underneath the loop ends it, and the App is
// left stopped so Start can open the camera again.
func (a *App) runPipeline(stopCh chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := a.config.Camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			// Pick up rate changes made through the camera
			if cur := a.config.Camera.FPS(); cur > 0 && cur != fps {
				fps = cur
				ticker.Reset(time.Second / time.Duration(fps))
			}

			frame, err := a.config.Camera.ReadFrame()
			if err != nil {
				if errors.Is(err, capture.ErrCameraNotOpen) {
					a.config.Log.Warnf("Camera closed, stopping pipeline")
					a.stopped(stopCh)
					return
				}
				failures++
				if failures == 1 || failures%100 == 0 {
					a.config.Log.Warnf("Error reading frame (%v so far): %v", failures, err)
				}
				continue
			}
			failures = 0
			a.keepFrame(frame)

			if a.IsEnabled() {
				res := a.ProcessFrame(frame)
				if res.Changed {
					a.config.Log.Debugf("Camera gesture: %v (%v)", res.Label, res.Source)
				}
			}
			frame.Close()
		}
	}
}
