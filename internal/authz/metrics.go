// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package authz

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// MembershipChecksTotal counts membership decisions by source and outcome.
	MembershipChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_checks_total",
			Help: "Total number of group membership decisions",
		},
		[]string{"source", "member"},
	)

	// MembershipCheckDuration tracks latency of backend checker calls.
	MembershipCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "membership_check_duration_seconds",
			Help:    "Duration of backend membership checker calls in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// MembershipBreakerState exposes the checker circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	MembershipBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "membership_breaker_state",
			Help: "Membership checker circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordMembershipCheck records one membership decision.
// Source is "cache", "checker", or "bypass".
func RecordMembershipCheck(source string, member bool) {
	MembershipChecksTotal.WithLabelValues(source, strconv.FormatBool(member)).Inc()
}

// ObserveCheckDuration records the latency of one backend checker call.
func ObserveCheckDuration(d time.Duration) {
	MembershipCheckDuration.Observe(d.Seconds())
}

// RecordBreakerState updates the breaker state gauge.
func RecordBreakerState(state gobreaker.State) {
	switch state {
	case gobreaker.StateClosed:
		MembershipBreakerState.Set(0)
	case gobreaker.StateHalfOpen:
		MembershipBreakerState.Set(1)
	case gobreaker.StateOpen:
		MembershipBreakerState.Set(2)
	}
}
