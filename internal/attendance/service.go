package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"firewatch/internal/apperr"
	"firewatch/internal/detector"
	"firewatch/internal/metrics"
	"firewatch/internal/queue"
	"firewatch/internal/recognize"
)

// CaptureStore persists auto-capture images. Paths land in the temporary
// capture area that the retention janitor sweeps.
type CaptureStore interface {
	StoreCapture(data []byte, personID int64, purpose string) (string, error)
}

// Publisher hands admission events to the background worker.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Recognition is the caller-facing result of one recognition attempt.
type Recognition struct {
	Person     *Person   `json:"personnel,omitempty"`
	Confidence float64   `json:"confidence"`
	Event      EventType `json:"event"`
	Record     *Record   `json:"record,omitempty"`
}

// Service runs the auto-capture pipeline: detect faces, match against the
// enrolled database, then admit the corresponding time-in or time-out.
type Service struct {
	det     detector.Detector
	cache   *recognize.Cache
	matcher recognize.Matcher
	engine  *Engine
	store   Store
	images  CaptureStore
	pub     Publisher

	minDetect     float64
	detectTimeout time.Duration

	now func() time.Time
}

// NewService wires the pipeline. pub may be nil when no worker is attached.
func NewService(det detector.Detector, cache *recognize.Cache, matcher recognize.Matcher,
	engine *Engine, store Store, images CaptureStore, pub Publisher,
	minDetect float64, detectTimeout time.Duration) *Service {
	if detectTimeout <= 0 {
		detectTimeout = 10 * time.Second
	}
	return &Service{
		det:           det,
		cache:         cache,
		matcher:       matcher,
		engine:        engine,
		store:         store,
		images:        images,
		pub:           pub,
		minDetect:     minDetect,
		detectTimeout: detectTimeout,
		now:           time.Now,
	}
}

// Recognize identifies the face in image and admits the next attendance
// event for the matched person. stationID 0 matches against all stations.
//
// Cooldown and NotRecognized are frequent, non-fatal outcomes in normal
// operation (the same face across consecutive frames); they come back as
// typed errors and are not logged as failures.
func (s *Service) Recognize(ctx context.Context, image []byte, stationID int64) (*Recognition, error) {
	dctx, cancel := context.WithTimeout(ctx, s.detectTimeout)
	defer cancel()

	detections, err := s.det.Detect(dctx, image)
	if err != nil {
		if dctx.Err() != nil {
			metrics.Recognitions.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("face detection timed out: %w", dctx.Err())
		}
		metrics.Recognitions.WithLabelValues("detector_error").Inc()
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	best := bestDetection(detections, s.minDetect)
	if best == nil {
		metrics.Recognitions.WithLabelValues(apperr.NoFaceDetected.String()).Inc()
		return nil, apperr.New(apperr.NoFaceDetected, "no face detected in image")
	}

	db, err := s.cache.Database(ctx, stationID)
	if err != nil {
		metrics.Recognitions.WithLabelValues("db_error").Inc()
		return nil, apperr.Wrap(apperr.StorageFailure, "face database load failed", err)
	}

	match := s.matcher.Best(best.Embedding, db)
	if match.PersonID == 0 {
		metrics.Recognitions.WithLabelValues(apperr.NotRecognized.String()).Inc()
		return nil, apperr.New(apperr.NotRecognized, "face not recognized")
	}

	person, err := s.store.FindPerson(ctx, match.PersonID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "person lookup failed", err)
	}
	if person == nil {
		return nil, apperr.New(apperr.PersonNotFound, "matched personnel no longer exists")
	}

	// Reject repeat frames before touching image storage, so a person
	// standing in front of the camera does not pile up orphan captures.
	if err := s.engine.CheckCooldown(ctx, person.ID); err != nil {
		if apperr.IsKind(err, apperr.Cooldown) {
			metrics.Recognitions.WithLabelValues(apperr.Cooldown.String()).Inc()
		}
		return nil, err
	}

	now := s.now()
	event, err := s.engine.NextEvent(ctx, person.ID, now.Format(DateLayout))
	if err != nil {
		return nil, err
	}

	path, err := s.images.StoreCapture(image, person.ID, "auto_"+event.String())
	if err != nil {
		// No record without its image; nothing partial was written.
		return nil, apperr.Wrap(apperr.StorageFailure, "capture image save failed", err)
	}

	ev := Event{
		PersonID:   person.ID,
		At:         now,
		Mode:       Auto,
		Confidence: &match.Similarity,
		ImagePath:  &path,
	}

	var rec *Record
	if event == TimeIn {
		rec, err = s.engine.RecordTimeIn(ctx, ev)
	} else {
		rec, err = s.engine.RecordTimeOut(ctx, ev)
	}
	if err != nil {
		// The stored capture is now an orphan; the retention sweep
		// collects it.
		return nil, err
	}

	metrics.Recognitions.WithLabelValues("matched").Inc()
	metrics.Admissions.WithLabelValues(event.String(), Auto.String()).Inc()
	s.publish(ctx, person.ID, event, match.Similarity)

	return &Recognition{
		Person:     person,
		Confidence: match.Similarity,
		Event:      event,
		Record:     rec,
	}, nil
}

func (s *Service) publish(ctx context.Context, personID int64, event EventType, confidence float64) {
	if s.pub == nil {
		return
	}
	body := fmt.Sprintf("%d|%s|%.4f", personID, event, confidence)
	if err := s.pub.Publish(ctx, queue.Message{Type: "admission", Body: []byte(body)}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// bestDetection picks the highest-confidence detection that clears the
// floor, or nil when none does.
func bestDetection(detections []detector.Detection, minConf float64) *detector.Detection {
	var best *detector.Detection
	for i := range detections {
		d := &detections[i]
		if d.Confidence < minConf {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}
	return best
}
