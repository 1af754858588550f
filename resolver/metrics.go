// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package resolver

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/htlc"
)

type Metrics struct {
	swapTransitionCount  *prometheus.CounterVec
	failedOperationCount *prometheus.CounterVec
	inflightSwaps        prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		swapTransitionCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swap_transition_count",
				Help: "Number of swaps that entered each state",
			},
			[]string{"state"},
		),
		failedOperationCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "failed_operation_count",
				Help: "Number of resolver operations that failed",
			},
			[]string{"operation", "error_code"},
		),
		inflightSwaps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inflight_swaps",
				Help: "Number of swaps with an operation in progress",
			},
		),
	}

	registerer.MustRegister(m.swapTransitionCount)
	registerer.MustRegister(m.failedOperationCount)
	registerer.MustRegister(m.inflightSwaps)

	return &m
}

func (m *Metrics) transition(state SwapState) {
	m.swapTransitionCount.WithLabelValues(state.String()).Inc()
}

func (m *Metrics) failure(op string, err error) {
	code := strconv.Itoa(int(htlc.ErrorCode(err)))
	m.failedOperationCount.WithLabelValues(op, code).Inc()
}
