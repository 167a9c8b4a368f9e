// Package metrics exposes the counters spec.md calls out as "surfaced but
// never fatal" (missing_reference_fallbacks, malformed_nal_drops, ...) to an
// optional Prometheus registry, grounded on the ManuGH-xg2g pack repo's
// metrics-registration style. Decoders/demuxers never import Prometheus
// directly: they call into the Sink interface, and a nil Sink is a no-op, so
// the core stays importable without forcing Prometheus on every caller.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sink receives the handful of event counters the decoders/demuxers emit.
// Implementations must be safe for concurrent use only if the caller shares
// one decoder instance across goroutines, which spec.md §5 says callers
// must not do — so Sink implementations may assume single-threaded callers
// per instance, same as the decoders themselves.
type Sink interface {
	IncMissingReferenceFallback(codec string)
	IncMalformedNALDrop(codec string)
	IncConcealedMacroblock(codec string)
	IncCABACContextReset(codec string)
}

// NoopSink discards every increment; it is the zero-value default for
// decoders/demuxers constructed without an explicit Sink.
type NoopSink struct{}

func (NoopSink) IncMissingReferenceFallback(string) {}
func (NoopSink) IncMalformedNALDrop(string)         {}
func (NoopSink) IncConcealedMacroblock(string)      {}
func (NoopSink) IncCABACContextReset(string)        {}

// PrometheusSink registers and updates the mediacore_* counter family on a
// caller-supplied registerer (typically prometheus.DefaultRegisterer, or a
// per-test prometheus.NewRegistry()).
type PrometheusSink struct {
	missingRef    *prometheus.CounterVec
	malformedNAL  *prometheus.CounterVec
	concealedMB   *prometheus.CounterVec
	cabacReset    *prometheus.CounterVec
}

// NewPrometheusSink creates and registers the counter vectors on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		missingRef: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediacore_missing_reference_fallbacks_total",
			Help: "Reference-list slots padded with a zero-reference placeholder.",
		}, []string{"codec"}),
		malformedNAL: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediacore_malformed_nal_drops_total",
			Help: "NAL/macroblock units dropped due to corruption, handled by concealment.",
		}, []string{"codec"}),
		concealedMB: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediacore_concealed_macroblocks_total",
			Help: "Macroblocks reconstructed via concealment after a decode failure.",
		}, []string{"codec"}),
		cabacReset: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediacore_cabac_context_resets_total",
			Help: "CABAC context re-initialisations triggered by a Full PPS activation change.",
		}, []string{"codec"}),
	}
	reg.MustRegister(s.missingRef, s.malformedNAL, s.concealedMB, s.cabacReset)
	return s
}

func (s *PrometheusSink) IncMissingReferenceFallback(codec string) { s.missingRef.WithLabelValues(codec).Inc() }
func (s *PrometheusSink) IncMalformedNALDrop(codec string)         { s.malformedNAL.WithLabelValues(codec).Inc() }
func (s *PrometheusSink) IncConcealedMacroblock(codec string)      { s.concealedMB.WithLabelValues(codec).Inc() }
func (s *PrometheusSink) IncCABACContextReset(codec string)        { s.cabacReset.WithLabelValues(codec).Inc() }
