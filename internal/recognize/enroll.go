package recognize

import (
	"context"
	"fmt"
	"log"

	"firewatch/internal/apperr"
	"firewatch/internal/detector"
)

// FaceStore is the slice of the repository enrollment needs: inserting new
// references and counting the ones a person already has.
type FaceStore interface {
	InsertFace(ctx context.Context, personID int64, filename string, embedding []float32, confidence float64) (int64, error)
	CountForPerson(ctx context.Context, personID int64) (int, error)
}

// ImageSaver persists the accepted enrollment source image and returns its
// stored path.
type ImageSaver interface {
	StoreEnrollment(data []byte, personID int64) (string, error)
}

// Accepted describes one image that produced a reference embedding.
type Accepted struct {
	Index      int     `json:"index"`
	FaceID     int64   `json:"face_id"`
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

// Rejected describes one image that could not be enrolled and why.
type Rejected struct {
	Index  int    `json:"index"`
	Code   int    `json:"error_code"`
	Reason string `json:"reason"`
}

// EnrollResult is the per-image outcome of a batch enrollment.
type EnrollResult struct {
	Accepted []Accepted `json:"accepted"`
	Rejected []Rejected `json:"rejected"`
}

// Enroller turns source images into stored reference embeddings.
type Enroller struct {
	det     detector.Detector
	faces   FaceStore
	images  ImageSaver
	cache   *Cache
	minConf float64
	maxRefs int
}

// NewEnroller wires an enroller. cache may be nil (no snapshot to
// invalidate, used in tests); maxRefs 0 means unlimited references.
func NewEnroller(det detector.Detector, faces FaceStore, images ImageSaver, cache *Cache, minConf float64, maxRefs int) *Enroller {
	return &Enroller{det: det, faces: faces, images: images, cache: cache, minConf: minConf, maxRefs: maxRefs}
}

// Enroll processes each image independently: a bad image is reported in
// Rejected with its reason and never fails the rest of the batch. An image
// is accepted only when it contains exactly one face above the detection
// confidence floor and the person is still below the reference limit.
func (e *Enroller) Enroll(ctx context.Context, personID int64, images [][]byte) (EnrollResult, error) {
	var res EnrollResult

	existing := 0
	if e.maxRefs > 0 {
		n, err := e.faces.CountForPerson(ctx, personID)
		if err != nil {
			return res, apperr.Wrap(apperr.StorageFailure, "reference count failed", err)
		}
		existing = n
	}

	for i, img := range images {
		if e.maxRefs > 0 && existing+len(res.Accepted) >= e.maxRefs {
			res.Rejected = append(res.Rejected, reject(i, apperr.Duplicate,
				fmt.Sprintf("person already has %d reference embeddings (limit %d)", existing+len(res.Accepted), e.maxRefs)))
			continue
		}

		dets, err := e.det.Detect(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Rejected = append(res.Rejected, reject(i, apperr.StorageFailure, fmt.Sprintf("detection failed: %v", err)))
			continue
		}

		switch {
		case len(dets) == 0:
			res.Rejected = append(res.Rejected, reject(i, apperr.NoFaceDetected, "no face detected"))
			continue
		case len(dets) > 1:
			res.Rejected = append(res.Rejected, reject(i, apperr.AmbiguousDetection, fmt.Sprintf("%d faces detected, expected exactly 1", len(dets))))
			continue
		}

		det := dets[0]
		if det.Confidence < e.minConf {
			res.Rejected = append(res.Rejected, reject(i, apperr.LowConfidence, fmt.Sprintf("detection confidence %.2f below %.2f", det.Confidence, e.minConf)))
			continue
		}

		path, err := e.images.StoreEnrollment(img, personID)
		if err != nil {
			res.Rejected = append(res.Rejected, reject(i, apperr.StorageFailure, "image save failed"))
			continue
		}

		faceID, err := e.faces.InsertFace(ctx, personID, path, det.Embedding, det.Confidence)
		if err != nil {
			log.Printf("enroll: insert face for personnel %d failed: %v", personID, err)
			res.Rejected = append(res.Rejected, reject(i, apperr.StorageFailure, "embedding save failed"))
			continue
		}

		res.Accepted = append(res.Accepted, Accepted{
			Index:      i,
			FaceID:     faceID,
			Path:       path,
			Confidence: det.Confidence,
		})
	}

	if len(res.Accepted) > 0 && e.cache != nil {
		e.cache.Invalidate()
	}
	return res, nil
}

func reject(index int, kind apperr.Kind, reason string) Rejected {
	return Rejected{Index: index, Code: kind.Code(), Reason: reason}
}
