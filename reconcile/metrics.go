package reconcile

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// commitMetrics gathers per-commit timings and emits a single structured
// log entry when the attempt resolves.
type commitMetrics struct {
	logger          *log.Logger
	start           time.Time
	op              string
	mutateDuration  time.Duration
	refetchDuration time.Duration
	errorStage      string
}

func newCommitMetrics(logger *log.Logger, op string) *commitMetrics {
	return &commitMetrics{
		logger: logger,
		start:  time.Now(),
		op:     op,
	}
}

func (m *commitMetrics) ObserveMutate(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.mutateDuration = duration
}

func (m *commitMetrics) ObserveRefetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.refetchDuration = duration
}

func (m *commitMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *commitMetrics) Log(boardID string, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"op":       m.op,
		"board":    boardID,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.mutateDuration > 0 {
		fields["mutate_ms"] = durationToMillis(m.mutateDuration)
	}
	if m.refetchDuration > 0 {
		fields["refetch_ms"] = durationToMillis(m.refetchDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.WithFields(fields).Warn("board.commit.metrics")
		return
	}
	m.logger.WithFields(fields).Info("board.commit.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
