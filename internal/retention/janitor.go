package retention

import (
	"context"
	"log"
	"time"

	"firewatch/internal/metrics"
)

// CaptureStore is the slice of the image store the janitor sweeps: the
// temporary auto-capture area, never the permanent enrollment images.
type CaptureStore interface {
	ListCaptures() ([]string, error)
	Age(path string) (time.Duration, error)
	Delete(path string) error
}

// Janitor deletes temporary capture images once they outlive the retention
// window.
type Janitor struct {
	captures CaptureStore
	maxAge   time.Duration
	interval time.Duration
}

// New creates a janitor sweeping captures every interval, removing images
// older than maxAge.
func New(captures CaptureStore, maxAge, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Janitor{captures: captures, maxAge: maxAge, interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
// It holds no lock shared with foreground requests; a failed sweep is
// logged and retried on the next tick.
func (j *Janitor) Run(ctx context.Context) {
	j.sweepAndLog()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweepAndLog()
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) sweepAndLog() {
	removed, err := j.Sweep()
	if err != nil {
		log.Printf("retention: sweep failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("retention: removed %d expired capture image(s)", removed)
	}
}

// Sweep scans the capture area once and deletes expired images. An image
// that cannot be inspected or removed is skipped; one bad file never aborts
// the rest of the sweep.
func (j *Janitor) Sweep() (int, error) {
	paths, err := j.captures.ListCaptures()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range paths {
		age, err := j.captures.Age(path)
		if err != nil {
			log.Printf("retention: stat %s: %v", path, err)
			continue
		}
		if age < j.maxAge {
			continue
		}
		if err := j.captures.Delete(path); err != nil {
			log.Printf("retention: remove %s: %v", path, err)
			continue
		}
		removed++
		metrics.SweptImages.Inc()
	}
	return removed, nil
}
