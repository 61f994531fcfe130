package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recognitions counts recognition attempts by outcome (matched, cooldown,
// not_recognized, no_face_detected, ...).
var Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firewatch_recognitions_total",
	Help: "Face recognition attempts by outcome.",
}, []string{"outcome"})

// Admissions counts accepted attendance transitions.
var Admissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "firewatch_admissions_total",
	Help: "Accepted attendance events by type and capture mode.",
}, []string{"event", "mode"})

// SweptImages counts capture images deleted by the retention janitor.
var SweptImages = promauto.NewCounter(prometheus.CounterOpts{
	Name: "firewatch_swept_images_total",
	Help: "Capture images removed by the retention sweep.",
})
