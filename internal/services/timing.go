package services

import (
	"time"

	"github.com/epeers/nexus/internal/metrics"
	log "github.com/sirupsen/logrus"
)

func TrackTime(funcName string, start time.Time) {
	elapsed := time.Since(start)
	log.Debugf("%s took %d ms", funcName, elapsed.Milliseconds())
}

// TrackStage is TrackTime for pipeline stages; the duration is also exported as a metric.
func TrackStage(stage string, start time.Time) {
	elapsed := time.Since(start)
	metrics.RunStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	log.Debugf("stage %s took %d ms", stage, elapsed.Milliseconds())
}
