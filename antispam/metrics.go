package antispam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var detectionsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kagura_antispam_detections",
	Help: "Number of anti-spam counter trips, by resulting action.",
}, []string{"action"})
