// Package metrics defines and registers the custom Prometheus metrics of the
// auth API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default registry on package init through
// promauto, so they show up on /metrics next to the echoprometheus ones.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ── Authentication ────────────────────────────────────────────────────────────

// LoginsTotal counts sign-in attempts.
// Labels:
//   - method: "password", "sso" or "reauth"
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of sign-in attempts, by method and result.",
	},
	[]string{"method", "result"},
)

// RegistrationsTotal counts newly created accounts.
// Label:
//   - method: "password" or "sso"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of accounts created, by registration method.",
	},
	[]string{"method"},
)

// TokensIssuedTotal counts signed bearer tokens.
// Label:
//   - type: "user" or "system"
var TokensIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of bearer tokens issued, by token type.",
	},
	[]string{"type"},
)

// ── Identity linking ──────────────────────────────────────────────────────────

// IdentityLinksTotal counts link and unlink operations.
// Labels:
//   - provider: e.g. "apple"
//   - action: "link" or "unlink"
//   - result: "success" or "failure"
var IdentityLinksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "identity_links_total",
		Help:      "Total number of identity link and unlink operations.",
	},
	[]string{"provider", "action", "result"},
)

// ── Gates ─────────────────────────────────────────────────────────────────────

// StepUpRejectionsTotal counts requests refused because the token was too old.
var StepUpRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stepup_rejections_total",
		Help:      "Total number of sensitive requests rejected for stale authentication.",
	},
)

// RateLimitRejectionsTotal counts requests refused by the rate limiter.
// Label:
//   - route: the rate-limit bucket name (e.g. "login")
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ratelimit_rejections_total",
		Help:      "Total number of requests rejected by the rate limiter, by route.",
	},
	[]string{"route"},
)

// Result maps an error to the result label value.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
