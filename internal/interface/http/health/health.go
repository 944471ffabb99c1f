// Package health runs readiness checks against the backing services of the
// API (SQL store, Redis) and summarizes them for the /health and /ready
// endpoints.
package health

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check probes one dependency. A non-nil error marks it down.
type Check func(ctx context.Context) error

// Pinger is implemented by the SQL stores and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping adapts a Pinger to a Check.
func Ping(p Pinger) Check {
	return p.Ping
}

// Probe is the outcome of one named check.
type Probe struct {
	Name  string `json:"name"`
	Up    bool   `json:"up"`
	Error string `json:"error,omitempty"`
	Took  string `json:"took"`
}

// Report is what the health endpoint returns.
type Report struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime"`
	CheckedAt time.Time `json:"checked_at"`
	Probes    []Probe   `json:"probes,omitempty"`
}

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// Healthy reports whether every probe is up.
func (r Report) Healthy() bool { return r.Status == StatusOK }

// Down lists the names of failed probes, comma separated.
func (r Report) Down() string {
	var names []string
	for _, p := range r.Probes {
		if !p.Up {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, ", ")
}

// Checker produces a Report on demand.
type Checker interface {
	Run(ctx context.Context) Report
}

// ─────────────────────────────────────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────────────────────────────────────

// Registry holds named checks and runs them concurrently, each under its
// own timeout.
type Registry struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
}

// NewRegistry returns an empty registry with a 5s per-check timeout.
func NewRegistry(version string) *Registry {
	return &Registry{
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
		checks:  make(map[string]Check),
	}
}

// SetTimeout changes the per-check timeout.
func (r *Registry) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Register adds or replaces a check.
func (r *Registry) Register(name string, check Check) {
	r.mu.Lock()
	r.checks[name] = check
	r.mu.Unlock()
}

// Unregister drops a check.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.checks, name)
	r.mu.Unlock()
}

// Run executes all checks. Probes are ordered by name.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = r.checks[name]
	}
	r.mu.RUnlock()

	probes := make([]Probe, len(names))

	// Failures are recorded in probes, so the group never returns an error
	// and one slow dependency does not cancel the others.
	var g errgroup.Group
	for i := range checks {
		g.Go(func() error {
			probes[i] = r.probe(ctx, names[i], checks[i])
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:    StatusOK,
		Version:   r.version,
		Uptime:    time.Since(r.started).Round(time.Second).String(),
		CheckedAt: time.Now().UTC(),
		Probes:    probes,
	}
	for _, p := range probes {
		if !p.Up {
			report.Status = StatusDegraded
			break
		}
	}
	return report
}

func (r *Registry) probe(ctx context.Context, name string, check Check) Probe {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)

	p := Probe{Name: name, Up: err == nil, Took: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// Static always reports ok. Used when the server is built without checks.
type Static struct {
	Version string
	started time.Time
}

// NewStatic returns a Static checker.
func NewStatic(version string) *Static {
	return &Static{Version: version, started: time.Now()}
}

func (s *Static) Run(context.Context) Report {
	return Report{
		Status:    StatusOK,
		Version:   s.Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		CheckedAt: time.Now().UTC(),
	}
}
