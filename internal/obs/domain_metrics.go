package obs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OfferEvaluationsTotal counts offer outcomes per match pass.
	OfferEvaluationsTotal *prometheus.CounterVec
	// CartMutationsTotal counts mutating cart operations by outcome.
	CartMutationsTotal *prometheus.CounterVec
	// RenderTotal counts render snapshots by scope.
	RenderTotal *prometheus.CounterVec
	// BillFinalizationsTotal counts bill finalisation outcomes.
	BillFinalizationsTotal *prometheus.CounterVec
	// BillFinalizeLatency records finalisation latency in milliseconds.
	BillFinalizeLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers the engine's Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, buckets []float64, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		if len(buckets) == 0 {
			buckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
		} else {
			sort.Float64s(buckets)
		}
		OfferEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_evaluations_total",
			Help:      "Count of offer evaluations by offer kind and result.",
		}, []string{"kind", "result"})
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart mutations by operation and result.",
		}, []string{"op", "result"})
		RenderTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_total",
			Help:      "Count of rendered cart snapshots by scope.",
		}, []string{"scope"})
		BillFinalizationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_finalizations_total",
			Help:      "Count of bill finalisation outcomes.",
		}, []string{"result"})
		BillFinalizeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bill_finalize_duration_ms",
			Help:      "Latency for bill finalisation in milliseconds.",
			Buckets:   buckets,
		}, []string{"result"})

		mustRegisterCollector(reg, OfferEvaluationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OfferEvaluationsTotal = v
			}
		})
		mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, RenderTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RenderTotal = v
			}
		})
		mustRegisterCollector(reg, BillFinalizationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillFinalizationsTotal = v
			}
		})
		mustRegisterCollector(reg, BillFinalizeLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				BillFinalizeLatency = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// Result maps an error to the result label used by the counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ParseBucketsCSV converts a comma-separated list of bucket boundaries (milliseconds) into floats.
func ParseBucketsCSV(csv string) []float64 {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
