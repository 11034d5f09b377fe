package gesture

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/classifier/classifiertest"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/feature"
)

// encodedFrame returns a small valid JPEG.
func encodedFrame(t *testing.T) []byte {
	t.Helper()
	mat := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	require.NoError(t, err)
	defer buf.Close()
	return buf.GetBytes()
}

func rightHand() *detector.Holistic {
	return &detector.Holistic{Pose: detector.FullPose(), RightHand: detector.OpenPalmHand()}
}

func leftHand() *detector.Holistic {
	return &detector.Holistic{Pose: detector.FullPose(), LeftHand: detector.OpenPalmHand()}
}

// scriptExtractor returns a fixed sequence of results, one per call, cycling.
type scriptExtractor struct {
	mu     sync.Mutex
	script []*detector.Holistic
	next   int
}

func (s *scriptExtractor) Extract(frame *gocv.Mat) (*detector.Holistic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.script[s.next%len(s.script)]
	s.next++
	return h, nil
}

func (s *scriptExtractor) Close() error { return nil }

// fakeBackend records the window lengths it was asked to classify.
type fakeBackend struct {
	kind  classifier.Kind
	need  int
	label string

	mu       sync.Mutex
	lengths  []int
	failures int
}

func (f *fakeBackend) Kind() classifier.Kind { return f.kind }

func (f *fakeBackend) Accepts(w []feature.Vector) bool {
	if f.kind == classifier.KindSequence {
		return len(w) == f.need
	}
	return len(w) > 0
}

func (f *fakeBackend) Classify(w []feature.Vector) (classifier.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lengths = append(f.lengths, len(w))
	if f.failures > 0 {
		f.failures--
		return classifier.Prediction{}, &classifier.InferenceError{Kind: f.kind, Err: errors.New("boom")}
	}
	return classifier.Prediction{Index: 0, Label: f.label, Score: 0.9}, nil
}

func (f *fakeBackend) Window() int { return f.need }

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.lengths...)
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name string
		set  map[int]float32
		want Label
	}{
		{"all zero", nil, NoHands},
		{"right hand first index", map[int]float32{feature.RightHandOffset: 0.4}, Hello},
		{"right hand last index", map[int]float32{feature.FaceOffset - 1: 0.4}, Hello},
		{"left hand first index", map[int]float32{feature.LeftHandOffset: 0.4}, HelloLeft},
		{"left hand last index", map[int]float32{feature.RightHandOffset - 1: 0.4}, HelloLeft},
		{"right wins over left", map[int]float32{feature.LeftHandOffset: 1, feature.RightHandOffset: 1}, Hello},
		{"negative coordinates count", map[int]float32{feature.RightHandOffset + 5: -0.3}, Hello},
		{"below epsilon", map[int]float32{feature.RightHandOffset: 1e-7}, NoHands},
		{"pose only", map[int]float32{0: 0.5, 100: 0.5}, NoHands},
		{"face only", map[int]float32{feature.FaceOffset: 0.5}, NoHands},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v feature.Vector
			for i, x := range tt.set {
				v[i] = x
			}
			assert.Equal(t, tt.want, Fallback(v))
		})
	}
}

func TestFallback_FromLandmarks(t *testing.T) {
	assert.Equal(t, Hello, Fallback(feature.Build(rightHand())))
	assert.Equal(t, HelloLeft, Fallback(feature.Build(leftHand())))
	assert.Equal(t, NoHands, Fallback(feature.Build(&detector.Holistic{Pose: detector.FullPose()})))
}

func TestRecognizer_NoModel(t *testing.T) {
	frame := encodedFrame(t)

	tests := []struct {
		name string
		h    *detector.Holistic
		want Label
	}{
		{"right hand", rightHand(), Hello},
		{"left hand", leftHand(), HelloLeft},
		{"no hands", &detector.Holistic{Pose: detector.FullPose()}, NoHands},
		{"nothing detected", &detector.Holistic{}, NoHands},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := detector.NewMockExtractor()
			ext.SetLandmarks(tt.h)
			e := NewEngine(Config{Extractor: ext, Log: logs.NewTestingLog(t)})
			require.Equal(t, classifier.StateAbsent, e.State())

			res := e.NewRecognizer().Recognize(frame)
			assert.Equal(t, tt.want, res.Label)
			assert.Equal(t, SourceHeuristic, res.Source)
			assert.Equal(t, 1, res.Window)
		})
	}
}

func TestRecognizer_SequenceModel(t *testing.T) {
	frame := encodedFrame(t)
	path := classifiertest.WriteSequence(t, t.TempDir(), 4, 10, 3)

	log := logs.NewTestingLog(t)
	backend, state := classifier.Load(classifier.Options{Path: path}, log)
	require.Equal(t, classifier.StateSequence, state)

	ext := detector.NewMockExtractor()
	ext.SetLandmarks(rightHand())
	e := NewEngine(Config{Extractor: ext, Backend: backend, Log: log})
	require.Equal(t, 16, e.Window())

	r := e.NewRecognizer()
	for i := 1; i <= 15; i++ {
		res := r.Recognize(frame)
		require.Equal(t, SourceHeuristic, res.Source, "call %d", i)
		require.Equal(t, Hello, res.Label, "call %d", i)
		require.Equal(t, i, res.Window)
	}
	for i := 16; i <= 20; i++ {
		res := r.Recognize(frame)
		require.Equal(t, SourceModel, res.Source, "call %d", i)
		require.Equal(t, Label("NO"), res.Label, "call %d", i)
		require.Equal(t, 16, res.Window)
	}
}

func TestRecognizer_SequenceNeverSeesShortWindow(t *testing.T) {
	frame := encodedFrame(t)
	fb := &fakeBackend{kind: classifier.KindSequence, need: 16, label: "YES"}

	e := NewEngine(Config{Backend: fb, Window: 4, Log: logs.NewTestingLog(t)})
	assert.Equal(t, 16, e.Window(), "sequence backend fixes the window length")

	r := e.NewRecognizer()
	for i := 0; i < 40; i++ {
		r.Recognize(frame)
	}

	calls := fb.calls()
	require.Len(t, calls, 40-15)
	for _, n := range calls {
		assert.Equal(t, 16, n)
	}
}

func TestRecognizer_AggregateAcceptsPartialWindow(t *testing.T) {
	frame := encodedFrame(t)
	path := classifiertest.WriteDense(t, t.TempDir(), 10, 1)

	log := logs.NewTestingLog(t)
	backend, state := classifier.Load(classifier.Options{Path: path}, log)
	require.Equal(t, classifier.StateAggregate, state)

	e := NewEngine(Config{Backend: backend, Log: log})
	assert.Equal(t, classifier.DefaultAggregateWindow, e.Window())

	r := e.NewRecognizer()
	for i := 1; i <= 10; i++ {
		res := r.Recognize(frame)
		require.Equal(t, SourceModel, res.Source)
		require.Equal(t, Label("THANK_YOU"), res.Label)
		require.Equal(t, min(i, 8), res.Window)
	}
}

func TestRecognizer_InvalidFrame(t *testing.T) {
	e := NewEngine(Config{Log: logs.NewTestingLog(t)})
	r := e.NewRecognizer()

	frame := encodedFrame(t)
	r.Recognize(frame)
	r.Recognize(frame)
	require.Equal(t, 2, r.Len())

	for name, data := range map[string][]byte{
		"nil":       nil,
		"empty":     {},
		"garbage":   []byte("definitely not an image"),
		"truncated": frame[:10],
	} {
		t.Run(name, func(t *testing.T) {
			res := r.Recognize(data)
			assert.Equal(t, InvalidFrame, res.Label)
			assert.Equal(t, SourceSentinel, res.Source)
			assert.Equal(t, 2, r.Len(), "window must be unchanged")
		})
	}

	assert.Equal(t, InvalidFrame, r.RecognizeFrame(nil).Label)
	assert.Equal(t, int64(4+1), e.Stats().InvalidFrames)
}

func TestRecognizer_ExtractorError(t *testing.T) {
	ext := detector.NewMockExtractor()
	e := NewEngine(Config{Extractor: ext, Log: logs.NewTestingLog(t)})
	r := e.NewRecognizer()
	frame := encodedFrame(t)

	r.Recognize(frame)
	ext.SetError(errors.New("pipe closed"))

	res := r.Recognize(frame)
	assert.Equal(t, Error, res.Label)
	assert.Equal(t, SourceSentinel, res.Source)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, int64(1), e.Stats().ExtractorErrors)
}

func TestRecognizer_RequireModel(t *testing.T) {
	ext := detector.NewMockExtractor()
	ext.SetLandmarks(rightHand())
	e := NewEngine(Config{Extractor: ext, RequireModel: true, Log: logs.NewTestingLog(t)})

	res := e.NewRecognizer().Recognize(encodedFrame(t))
	assert.Equal(t, ModelNotLoaded, res.Label)
	assert.Equal(t, SourceSentinel, res.Source)
	assert.Equal(t, 1, res.Window, "the vector is still buffered")
}

func TestRecognizer_InferenceErrorFallsBack(t *testing.T) {
	ext := detector.NewMockExtractor()
	ext.SetLandmarks(leftHand())
	fb := &fakeBackend{kind: classifier.KindAggregate, label: "GOOD", failures: 1}
	e := NewEngine(Config{Extractor: ext, Backend: fb, Log: logs.NewTestingLog(t)})
	r := e.NewRecognizer()
	frame := encodedFrame(t)

	res := r.Recognize(frame)
	assert.Equal(t, HelloLeft, res.Label)
	assert.Equal(t, SourceHeuristic, res.Source)

	res = r.Recognize(frame)
	assert.Equal(t, Label("GOOD"), res.Label, "backend stays loaded after a failure")
	assert.Equal(t, SourceModel, res.Source)

	stats := e.Stats()
	assert.Equal(t, int64(1), stats.InferenceErrors)
	assert.Equal(t, int64(1), stats.ModelLabels)
	assert.Equal(t, int64(1), stats.HeuristicLabels)
	assert.Equal(t, int64(2), stats.Frames)
}

func TestRecognizer_Idempotent(t *testing.T) {
	frame := encodedFrame(t)
	path := classifiertest.WriteSequence(t, t.TempDir(), 4, 10, 6)
	log := logs.NewTestingLog(t)

	script := []*detector.Holistic{rightHand(), leftHand(), {}, rightHand(), leftHand()}

	run := func() []Label {
		backend, _ := classifier.Load(classifier.Options{Path: path, Window: 8}, log)
		e := NewEngine(Config{Extractor: &scriptExtractor{script: script}, Backend: backend, Log: log})
		r := e.NewRecognizer()

		labels := make([]Label, 0, 12)
		for i := 0; i < 12; i++ {
			labels = append(labels, r.Recognize(frame).Label)
		}
		return labels
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, []Label{Hello, HelloLeft, NoHands, Hello, HelloLeft, NoHands, Hello}, first[:7])
	assert.Equal(t, Label("I_LOVE_YOU"), first[7])
}

func TestRecognizer_ChangedAndReset(t *testing.T) {
	ext := detector.NewMockExtractor()
	ext.SetLandmarks(rightHand())
	r := NewEngine(Config{Extractor: ext}).NewRecognizer()
	frame := encodedFrame(t)

	assert.True(t, r.Recognize(frame).Changed)
	assert.False(t, r.Recognize(frame).Changed)

	ext.SetLandmarks(leftHand())
	assert.True(t, r.Recognize(frame).Changed)
	assert.Equal(t, HelloLeft, r.Last())

	r.Reset()
	assert.Zero(t, r.Len())
	assert.Equal(t, Label(""), r.Last())
	assert.True(t, r.Recognize(frame).Changed)
}

func TestNewEngine_Window(t *testing.T) {
	assert.Equal(t, 16, NewEngine(Config{}).Window())
	assert.Equal(t, 4, NewEngine(Config{Window: 4}).Window())
	assert.Equal(t, 8, NewEngine(Config{Backend: &fakeBackend{kind: classifier.KindAggregate}}).Window())
	assert.Equal(t, classifier.StateAggregate, NewEngine(Config{Backend: &fakeBackend{kind: classifier.KindAggregate}}).State())
}

func TestSessions(t *testing.T) {
	ext := detector.NewMockExtractor()
	ext.SetLandmarks(rightHand())
	s := NewSessions(NewEngine(Config{Extractor: ext}))
	frame := encodedFrame(t)

	a := s.Get("b-stream")
	require.Same(t, a, s.Get("b-stream"))

	b := s.Get("a-stream")
	require.NotSame(t, a, b)

	a.Recognize(frame)
	a.Recognize(frame)
	b.Recognize(frame)
	assert.Equal(t, 2, a.Len(), "streams own separate windows")
	assert.Equal(t, 1, b.Len())

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a-stream", "b-stream"}, s.IDs())

	_, ok := s.Lookup("a-stream")
	assert.True(t, ok)

	assert.True(t, s.Close("a-stream"))
	assert.False(t, s.Close("a-stream"))
	_, ok = s.Lookup("a-stream")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestSessions_Concurrent(t *testing.T) {
	ext := detector.NewMockExtractor()
	ext.SetLandmarks(rightHand())
	s := NewSessions(NewEngine(Config{Extractor: ext, Window: 4}))
	frame := encodedFrame(t)

	var wg sync.WaitGroup
	for g := 0; g < 6; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			r := s.Get(fmt.Sprintf("stream-%d", g%3))
			for i := 0; i < 20; i++ {
				if res := r.Recognize(frame); res.Label != Hello {
					t.Errorf("got %s, want %s", res.Label, Hello)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 3, s.Len())
	for _, id := range s.IDs() {
		r, _ := s.Lookup(id)
		assert.Equal(t, 4, r.Len())
	}
}

func TestSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	s := NewSessions(NewEngine(Config{}))
	s.SetLimits(0, 3)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	var evicted []string
	s.OnEvict(func(id string) { evicted = append(evicted, id) })

	for i := 0; i < 1000; i++ {
		clock = clock.Add(time.Second)
		s.Get(fmt.Sprintf("client-%d", i))
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"client-997", "client-998", "client-999"}, s.IDs())
	assert.Len(t, evicted, 997)
	assert.Equal(t, "client-0", evicted[0])

	// Touching a session protects it from the next eviction
	clock = clock.Add(time.Second)
	s.Get("client-997")
	clock = clock.Add(time.Second)
	s.Get("fresh")
	assert.Equal(t, []string{"client-997", "client-999", "fresh"}, s.IDs())
}

func TestSessions_IdleExpiry(t *testing.T) {
	s := NewSessions(NewEngine(Config{}))
	s.SetLimits(time.Minute, 0)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	var evicted []string
	s.OnEvict(func(id string) { evicted = append(evicted, id) })

	s.Get("idle")
	s.Get("busy")
	clock = clock.Add(45 * time.Second)
	s.Get("busy")
	clock = clock.Add(30 * time.Second)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"busy"}, s.IDs())
	assert.Equal(t, []string{"idle"}, evicted)

	_, ok := s.Lookup("idle")
	assert.False(t, ok)

	// Close does not report an eviction
	s.Close("busy")
	assert.Equal(t, []string{"idle"}, evicted)
}
