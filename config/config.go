// Package config collects the tunables shared by the solver, planner, and
// coordinator behind a functional-options constructor, following the same
// With* pattern used throughout the registry package this module was adapted
// from.
package config

import (
	"math"
	"time"

	"github.com/htnkit/corestn/telemetry"
)

// TimeUnit names the LOD time unit used to scale domain bounds in the STN
// solver's domain bound computation.
type TimeUnit string

const (
	Microsecond TimeUnit = "us"
	Millisecond TimeUnit = "ms"
	Second      TimeUnit = "s"
	Minute      TimeUnit = "min"
	Hour        TimeUnit = "hour"
	Day         TimeUnit = "day"
)

// Scale returns the multiplier associated with the time unit, per the table
// µs:1e6, ms:1e3, s:1, min:1/10, hour:1/100, day:1/1000. Coarser
// units scale the domain bound down, since one unit of resolution covers a
// larger span.
func (u TimeUnit) Scale() float64 {
	switch u {
	case Microsecond:
		return 1_000_000
	case Millisecond:
		return 1_000
	case Second:
		return 1
	case Minute:
		return 0.1
	case Hour:
		return 0.01
	case Day:
		return 0.001
	default:
		return 1
	}
}

// Config holds planner, solver, and coordinator tunables. Zero value is not
// directly usable; construct with New.
type Config struct {
	Seed               int64
	MaxRetries         int
	SolverTimeout      time.Duration
	LODResolution      int
	TimeUnit           TimeUnit
	MaxSolverDomain    int
	VerifyGoals        bool
	ActionSafetyFactor float64

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// Option configures a Config.
type Option func(*Config)

// New builds a Config with documented defaults, then applies opts in order.
// The default LOD is one day at second granularity, wide enough for typical
// plans without overflowing an external solver's fixed-width integers.
func New(opts ...Option) *Config {
	c := &Config{
		Seed:               0,
		MaxRetries:         10,
		SolverTimeout:      5 * time.Second,
		LODResolution:      86_400,
		TimeUnit:           Second,
		MaxSolverDomain:    1_000_000,
		VerifyGoals:        false,
		ActionSafetyFactor: 2.0,
		Logger:             telemetry.NewNoopLogger(),
		Metrics:            telemetry.NewNoopMetrics(),
		Tracer:             telemetry.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithSeed sets the deterministic ordering seed.
func WithSeed(seed int64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithMaxRetries bounds the coordinator's replan attempts.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithSolverTimeout bounds each STN solver stage's external-CSP invocation.
func WithSolverTimeout(d time.Duration) Option {
	return func(c *Config) { c.SolverTimeout = d }
}

// WithLOD sets the level-of-detail resolution and time unit used to compute
// the solver's domain bound.
func WithLOD(resolution int, unit TimeUnit) Option {
	return func(c *Config) {
		c.LODResolution = resolution
		c.TimeUnit = unit
	}
}

// WithMaxSolverDomain clamps the computed domain bound.
func WithMaxSolverDomain(max int) Option {
	return func(c *Config) { c.MaxSolverDomain = max }
}

// WithVerifyGoals enables the planner's post-decomposition verification step.
func WithVerifyGoals(v bool) Option {
	return func(c *Config) { c.VerifyGoals = v }
}

// WithActionSafetyFactor sets the multiplier applied to a durative action's
// declared duration before the executor treats it as timed out.
func WithActionSafetyFactor(f float64) Option {
	return func(c *Config) { c.ActionSafetyFactor = f }
}

// WithLogger sets the structured logger used at every error boundary.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// SolverDomainBound computes the solver's integer domain bound from the LOD
// resolution and time unit, clamped to MaxSolverDomain.
func (c *Config) SolverDomainBound() int {
	bound := int(math.Round(float64(c.LODResolution) * c.TimeUnit.Scale()))
	if bound > c.MaxSolverDomain {
		return c.MaxSolverDomain
	}
	if bound < 1 {
		return 1
	}
	return bound
}
