// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Authentication attempts by mode and outcome.",
	}, []string{"mode", "outcome"})

	authFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meridian",
		Subsystem: "auth",
		Name:      "failures_total",
		Help:      "Authentication failures by error code.",
	}, []string{"code"})

	keyVerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "meridian",
		Subsystem: "auth",
		Name:      "key_verify_duration_seconds",
		Help:      "Duration of API key credential scans.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

// RecordAuthAttempt counts an authentication attempt.
func RecordAuthAttempt(mode string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	authAttemptsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordAuthFailure counts a failed authentication by error code.
func RecordAuthFailure(code string) {
	authFailuresTotal.WithLabelValues(code).Inc()
}

// ObserveKeyVerifyDuration records how long a credential scan took.
func ObserveKeyVerifyDuration(seconds float64) {
	keyVerifyDuration.Observe(seconds)
}
