// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/meridian-bio/meridian/internal/logging"
	"github.com/meridian-bio/meridian/internal/models"
)

// ErrCheckerUnavailable is returned when the membership backend is
// rate limited or its circuit breaker is open.
var ErrCheckerUnavailable = errors.New("membership checker unavailable")

// OracleConfig holds configuration for the membership oracle.
type OracleConfig struct {
	// TTL is how long membership decisions are cached.
	// Non-positive disables caching.
	TTL time.Duration

	// Bypass makes every membership check succeed, matching header-bypass
	// mode where all requests resolve to the mock identity. The flag is
	// part of every cache key.
	Bypass bool

	// CheckTimeout bounds each call into the checker. Zero means no
	// additional bound beyond the request context.
	CheckTimeout time.Duration

	// RateLimit caps checker calls per second; 0 means unlimited.
	// Cache hits are never limited.
	RateLimit float64

	// BreakerEnabled wraps checker calls in a circuit breaker.
	BreakerEnabled bool
}

// DefaultOracleConfig returns the standard oracle configuration.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{
		TTL:            5 * time.Minute,
		CheckTimeout:   5 * time.Second,
		BreakerEnabled: true,
	}
}

// Oracle answers group membership questions. It is the only component that
// talks to the MembershipChecker; everything else asks the oracle.
type Oracle struct {
	checker MembershipChecker
	cache   *membershipCache
	config  OracleConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[bool]
	seclog  *logging.SecurityLogger
}

// NewOracle creates a membership oracle around the given checker.
func NewOracle(checker MembershipChecker, config OracleConfig) *Oracle {
	o := &Oracle{
		checker: checker,
		cache:   newMembershipCache(config.TTL),
		config:  config,
		seclog:  logging.NewSecurityLogger(),
	}

	if config.RateLimit > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), int(config.RateLimit)+1)
	}

	if config.BreakerEnabled {
		o.breaker = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
			Name:        "membership-checker",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 10 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("membership checker circuit state change")
				RecordBreakerState(to)
			},
		})
	}

	return o
}

// IsMemberOf reports whether the user belongs to the group. Results are
// cached for the configured TTL; empty email or group is never a member.
func (o *Oracle) IsMemberOf(ctx context.Context, email, group string) (bool, error) {
	email = normalizeEmail(email)
	group = strings.TrimSpace(group)
	if email == "" || group == "" {
		return false, nil
	}

	if member, ok := o.cache.get(email, group, o.config.Bypass); ok {
		RecordMembershipCheck("cache", member)
		return member, nil
	}

	member, err := o.check(ctx, email, group)
	if err != nil {
		return false, err
	}

	o.cache.set(email, group, o.config.Bypass, member)
	if !member {
		o.seclog.LogMembershipDenied(email, group)
	}
	return member, nil
}

// AnyOf reports whether the user belongs to at least one of the groups.
func (o *Oracle) AnyOf(ctx context.Context, email string, groups ...string) (bool, error) {
	for _, group := range groups {
		member, err := o.IsMemberOf(ctx, email, group)
		if err != nil {
			return false, err
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

// AllOf reports whether the user belongs to every one of the groups.
// An empty group list is not a membership.
func (o *Oracle) AllOf(ctx context.Context, email string, groups ...string) (bool, error) {
	if len(groups) == 0 {
		return false, nil
	}
	for _, group := range groups {
		member, err := o.IsMemberOf(ctx, email, group)
		if err != nil {
			return false, err
		}
		if !member {
			return false, nil
		}
	}
	return true, nil
}

// GroupsOf returns, from the candidate list, the groups the user belongs
// to. Each candidate goes through the cache individually.
func (o *Oracle) GroupsOf(ctx context.Context, email string, candidates []string) ([]string, error) {
	groups := make([]string, 0, len(candidates))
	for _, group := range candidates {
		member, err := o.IsMemberOf(ctx, email, group)
		if err != nil {
			return nil, err
		}
		if member {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

// KnownGroupsOf asks the checker for the user's full group list, without
// caching. Used by the profile endpoint where the checker can enumerate.
func (o *Oracle) KnownGroupsOf(ctx context.Context, email string) ([]string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	ctx, cancel := o.checkContext(ctx)
	defer cancel()
	return o.checker.GroupsFor(ctx, email)
}

// ClearAll drops every cached decision and returns how many were dropped.
func (o *Oracle) ClearAll() int {
	n := o.cache.clear()
	logging.Info().Int("entries", n).Msg("membership cache cleared")
	return n
}

// ClearForUser drops cached decisions for one user and returns how many
// were dropped.
func (o *Oracle) ClearForUser(email string) int {
	email = normalizeEmail(email)
	if email == "" {
		return 0
	}
	n := o.cache.clearForUser(email)
	logging.Info().Str("email", logging.SanitizeEmail(email)).Int("entries", n).Msg("membership cache cleared for user")
	return n
}

// Stats reports cache occupancy without evicting anything.
func (o *Oracle) Stats() models.MembershipCacheStats {
	return o.cache.stats()
}

// check consults the backend, applying bypass, rate limit, breaker, and
// timeout in that order.
func (o *Oracle) check(ctx context.Context, email, group string) (bool, error) {
	if o.config.Bypass {
		RecordMembershipCheck("bypass", true)
		return true, nil
	}

	if o.limiter != nil && !o.limiter.Allow() {
		return false, fmt.Errorf("%w: rate limited", ErrCheckerUnavailable)
	}

	start := time.Now()
	var member bool
	var err error

	if o.breaker != nil {
		member, err = o.breaker.Execute(func() (bool, error) {
			return o.callChecker(ctx, email, group)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, fmt.Errorf("%w: %v", ErrCheckerUnavailable, err)
		}
	} else {
		member, err = o.callChecker(ctx, email, group)
	}

	ObserveCheckDuration(time.Since(start))
	if err != nil {
		return false, fmt.Errorf("membership check: %w", err)
	}

	RecordMembershipCheck("checker", member)
	return member, nil
}

func (o *Oracle) callChecker(ctx context.Context, email, group string) (bool, error) {
	ctx, cancel := o.checkContext(ctx)
	defer cancel()
	return o.checker.IsMember(ctx, email, group)
}

func (o *Oracle) checkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.config.CheckTimeout > 0 {
		return context.WithTimeout(ctx, o.config.CheckTimeout)
	}
	return context.WithCancel(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
