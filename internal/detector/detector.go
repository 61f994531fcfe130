package detector

import (
	"context"
)

// Detection is one face found in an image: where it is, its identity
// embedding, and how confident the detector is that it is a face.
type Detection struct {
	BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2
	Embedding  []float32  `json:"embedding"`
	Confidence float64    `json:"confidence"`
}

// Detector turns a raw image into zero or more face detections. The
// implementation is a black box; the engine only depends on this contract,
// which also makes substituting a fake in tests trivial.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
}
