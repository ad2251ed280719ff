// Package metrics implements a read-only metrics sink: counters for
// rollbacks/predicted inputs/rollback depth, and a
// bounded ring of observed input-lag samples with derived averages on
// read. Optionally mirrors the same counters into Prometheus collectors,
// the way luxfi-consensus/metrics.Metrics wraps a prometheus.Registerer
// rather than reaching for package-level globals.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maxpoletaev/lockstep/internal/ring"
)

const maxLagSamples = 100

// Snapshot is a read-only view of the sink's current counters, returned by
// Sink.Snapshot. External observers only ever see this value type — the
// sink itself is never exposed directly: external observers only ever see
// a read-only snapshot.
type Snapshot struct {
	Rollbacks          uint64
	RolledBackFrames   uint64
	PredictedInputs    uint64
	AverageInputLagMs  float64
	SampledInputLagCnt int
}

// Sink accumulates the rollback controller's running counters.
type Sink struct {
	mu sync.Mutex

	rollbacks       uint64
	rolledBackFrame uint64
	predictedInputs uint64
	lagSamples      *ring.Buffer[float64]

	prom *promCollectors
}

// NewSink creates an empty metrics sink. If reg is non-nil, the same
// counters are additionally registered as Prometheus collectors under
// reg; reg may be nil for callers that only want the in-memory sink.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{lagSamples: ring.New[float64](maxLagSamples)}

	if reg != nil {
		s.prom = newPromCollectors(reg)
	}

	return s
}

// RecordRollback records a rollback spanning the given number of
// resimulated frames.
func (s *Sink) RecordRollback(frames uint64) {
	s.mu.Lock()
	s.rollbacks++
	s.rolledBackFrame += frames
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.rollbacks.Inc()
		s.prom.rollbackFrames.Add(float64(frames))
	}
}

// RecordPredictedInput records one frame simulated with a predicted
// (as opposed to confirmed) input for some peer.
func (s *Sink) RecordPredictedInput() {
	s.mu.Lock()
	s.predictedInputs++
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.predictedInputs.Inc()
	}
}

// RecordInputLag records one observed input-lag sample, in milliseconds.
// The ring is bounded to the last maxLagSamples observations.
func (s *Sink) RecordInputLag(ms float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lagSamples.Len() >= maxLagSamples {
		s.lagSamples.TruncFront(1)
	}

	s.lagSamples.PushBack(ms)

	if s.prom != nil {
		s.prom.inputLag.Observe(ms)
	}
}

// Snapshot returns the current counters and the average of retained
// input-lag samples.
func (s *Sink) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum float64
	n := s.lagSamples.Len()

	for i := 0; i < n; i++ {
		sum += s.lagSamples.At(i)
	}

	avg := 0.0
	if n > 0 {
		avg = sum / float64(n)
	}

	return Snapshot{
		Rollbacks:          s.rollbacks,
		RolledBackFrames:   s.rolledBackFrame,
		PredictedInputs:    s.predictedInputs,
		AverageInputLagMs:  avg,
		SampledInputLagCnt: n,
	}
}

type promCollectors struct {
	rollbacks       prometheus.Counter
	rollbackFrames  prometheus.Counter
	predictedInputs prometheus.Counter
	inputLag        prometheus.Histogram
}

func newPromCollectors(reg prometheus.Registerer) *promCollectors {
	p := &promCollectors{
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Name:      "rollbacks_total",
			Help:      "Number of rollbacks performed by the controller.",
		}),
		rollbackFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Name:      "rollback_frames_total",
			Help:      "Total number of frames resimulated across all rollbacks.",
		}),
		predictedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Name:      "predicted_inputs_total",
			Help:      "Number of frames simulated using a predicted (unconfirmed) input.",
		}),
		inputLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lockstep",
			Name:      "input_lag_ms",
			Help:      "Observed input lag, in milliseconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	// Registration failure (e.g. AlreadyRegisteredError from an earlier
	// Sink under the same Registerer) is not fatal: the in-memory sink
	// keeps accumulating regardless of whether Prometheus export worked.
	for _, c := range []prometheus.Collector{p.rollbacks, p.rollbackFrames, p.predictedInputs, p.inputLag} {
		_ = reg.Register(c)
	}

	return p
}
