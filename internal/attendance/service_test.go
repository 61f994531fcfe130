package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewatch/internal/apperr"
	"firewatch/internal/detector"
	"firewatch/internal/recognize"
)

type fakeDetector struct {
	detections []detector.Detection
	err        error
}

func (f *fakeDetector) Detect(context.Context, []byte) ([]detector.Detection, error) {
	return f.detections, f.err
}

type fakeLister struct {
	faces []recognize.EnrolledFace
}

func (f *fakeLister) ListFaces(context.Context) ([]recognize.EnrolledFace, error) {
	return f.faces, nil
}

type fakeCaptures struct {
	stored []string
}

func (f *fakeCaptures) StoreCapture(_ []byte, personID int64, purpose string) (string, error) {
	path := fmt.Sprintf("tmp/%d_%s.jpg", personID, purpose)
	f.stored = append(f.stored, path)
	return path, nil
}

func newTestService(store Store, det detector.Detector, faces []recognize.EnrolledFace, now time.Time) (*Service, *fakeCaptures) {
	cache := recognize.NewCache(&fakeLister{faces: faces}, time.Hour)
	matcher := recognize.Matcher{Threshold: 0.75, Margin: 0.05}
	engine := newTestEngine(store, now)
	captures := &fakeCaptures{}
	svc := NewService(det, cache, matcher, engine, store, captures, nil, 0.5, 5*time.Second)
	svc.now = func() time.Time { return now }
	return svc, captures
}

func enrolledFace(personID, stationID int64, embedding []float32) recognize.EnrolledFace {
	return recognize.EnrolledFace{ID: personID * 10, PersonID: personID, StationID: stationID, Embedding: embedding}
}

func singleFace(embedding []float32, confidence float64) *fakeDetector {
	return &fakeDetector{detections: []detector.Detection{{Embedding: embedding, Confidence: confidence}}}
}

func TestRecognize(t *testing.T) {
	ctx := context.Background()
	enrolled := []recognize.EnrolledFace{enrolledFace(1, 7, []float32{1, 0, 0})}

	t.Run("admits time-in for a recognized face", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, captures := newTestService(store, singleFace([]float32{1, 0, 0}, 0.9), enrolled, at(8, 0))

		res, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.NoError(t, err)
		assert.Equal(t, TimeIn, res.Event)
		assert.Equal(t, int64(1), res.Person.ID)
		assert.InDelta(t, 1.0, res.Confidence, 1e-6)
		require.NotNil(t, res.Record.TimeIn)
		assert.True(t, res.Record.AutoCaptured)
		require.Len(t, captures.stored, 1)
		assert.Contains(t, captures.stored[0], "auto_time_in")
	})

	t.Run("no face detected", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, captures := newTestService(store, &fakeDetector{}, enrolled, at(8, 0))

		_, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.Error(t, err)
		assert.Equal(t, apperr.NoFaceDetected, apperr.KindOf(err))
		assert.Empty(t, captures.stored, "no image stored for a failed detection")
	})

	t.Run("detections below confidence floor", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, _ := newTestService(store, singleFace([]float32{1, 0, 0}, 0.3), enrolled, at(8, 0))

		_, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.Error(t, err)
		assert.Equal(t, apperr.NoFaceDetected, apperr.KindOf(err))
	})

	t.Run("unenrolled face is not recognized", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, _ := newTestService(store, singleFace([]float32{0, 1, 0}, 0.9), enrolled, at(8, 0))

		_, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.Error(t, err)
		assert.Equal(t, apperr.NotRecognized, apperr.KindOf(err))
	})

	t.Run("empty database is not recognized", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, _ := newTestService(store, singleFace([]float32{1, 0, 0}, 0.9), nil, at(8, 0))

		_, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.Error(t, err)
		assert.Equal(t, apperr.NotRecognized, apperr.KindOf(err))
	})

	t.Run("repeat frame within cooldown stores no image", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, captures := newTestService(store, singleFace([]float32{1, 0, 0}, 0.9), enrolled, at(8, 0))

		_, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.NoError(t, err)

		next := at(8, 0).Add(5 * time.Second)
		svc.now = func() time.Time { return next }
		svc.engine.now = func() time.Time { return next }

		_, err = svc.Recognize(ctx, []byte("frame"), 0)
		require.Error(t, err)
		assert.Equal(t, apperr.Cooldown, apperr.KindOf(err))
		assert.Len(t, captures.stored, 1, "cooldown rejection must not store another capture")
	})

	t.Run("second recognition after cooldown admits time-out", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, _ := newTestService(store, singleFace([]float32{1, 0, 0}, 0.9), enrolled, at(8, 0))

		_, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.NoError(t, err)

		next := at(17, 0)
		svc.now = func() time.Time { return next }
		svc.engine.now = func() time.Time { return next }

		res, err := svc.Recognize(ctx, []byte("frame"), 0)
		require.NoError(t, err)
		assert.Equal(t, TimeOut, res.Event)
		require.NotNil(t, res.Record.TimeOut)
	})

	t.Run("station scoping hides other stations", func(t *testing.T) {
		store := newMemStore(testPerson)
		svc, _ := newTestService(store, singleFace([]float32{1, 0, 0}, 0.9), enrolled, at(8, 0))

		// Person 1 is enrolled at station 7; a station-3 client must not see them.
		_, err := svc.Recognize(ctx, []byte("frame"), 3)
		require.Error(t, err)
		assert.Equal(t, apperr.NotRecognized, apperr.KindOf(err))
	})
}
