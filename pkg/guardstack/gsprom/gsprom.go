// Package gsprom exports guardstack lifecycle events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	obs, err := gsprom.New(reg)
//	stk, err := guardstack.New(guardstack.Options{ElemSize: 8, Observer: obs})
//
// One Observer may be shared by any number of stacks.
package gsprom

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

const namespace = "guardstack"

// Resize directions used as the "direction" label.
const (
	DirectionGrow   = "grow"
	DirectionShrink = "shrink"
)

var _ guardstack.Observer = (*Observer)(nil)

// Observer implements [guardstack.Observer] with Prometheus counters.
type Observer struct {
	verifications      *prometheus.CounterVec
	resizes            *prometheus.CounterVec
	allocationFailures prometheus.Counter
}

// New creates an Observer and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verification passes by resulting status.",
		}, []string{"status"}),
		resizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resizes_total",
			Help:      "Data region reallocations by direction.",
		}, []string{"direction"}),
		allocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "allocation_failures_total",
			Help:      "Failed region allocation attempts, including single-slot retries.",
		}),
	}

	for _, c := range []prometheus.Collector{o.verifications, o.resizes, o.allocationFailures} {
		err := reg.Register(c)
		if err != nil {
			return nil, fmt.Errorf("register guardstack metrics: %w", err)
		}
	}

	return o, nil
}

// Verified counts one verification pass.
func (o *Observer) Verified(status guardstack.Status) {
	o.verifications.WithLabelValues(status.String()).Inc()
}

// Resized counts one reallocation.
func (o *Observer) Resized(from, to int) {
	direction := DirectionGrow
	if to < from {
		direction = DirectionShrink
	}

	o.resizes.WithLabelValues(direction).Inc()
}

// AllocationFailed counts one failed allocation attempt.
func (o *Observer) AllocationFailed(int) {
	o.allocationFailures.Inc()
}
