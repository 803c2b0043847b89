package httpapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
)

const (
	RulesetInline   = "inline"
	RulesetProvider = "provider"
)

// Options controls HTTP API runtime behavior.
type Options struct {
	// ConvertTimeout is the hard upper bound for a single /sub request
	// (fetch + merge + render).
	ConvertTimeout time.Duration

	// FetchTimeout is the per-request timeout for subscriptions, templates,
	// profiles and rule lists.
	FetchTimeout time.Duration

	// Token, when set, must be passed as ?token=.
	Token string

	// Profile is used when the request does not name one. nil means the
	// built-in profile.
	Profile *profile.Spec

	// RulesetMode is "inline" (fetch and expand rule lists) or "provider"
	// (emit rule-providers for the runtime to fetch).
	RulesetMode        string
	RulesetConcurrency int

	// Cache, when set, stores fetched rule lists.
	Cache ruleset.Cache

	// Registry receives the metrics. nil uses a private registry.
	Registry *prometheus.Registry
}

func (o Options) withDefaults() Options {
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = 60 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.Profile == nil {
		o.Profile = profile.Default()
	}
	if o.RulesetMode == "" {
		o.RulesetMode = RulesetInline
	}
	if o.RulesetConcurrency <= 0 {
		o.RulesetConcurrency = ruleset.DefaultConcurrency
	}
	if o.Registry == nil {
		o.Registry = prometheus.NewRegistry()
	}
	return o
}
