// Package monitoring probes the service's dependencies in the background
// so /health can answer without touching them.
package monitoring

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_TIMER = 15

type CheckFunc func(ctx context.Context) error

type probe struct {
	name    string
	check   CheckFunc
	healthy atomic.Bool
}

// Monitor holds the last known state of each registered dependency.
type Monitor struct {
	probes   []*probe
	interval time.Duration
	timeout  time.Duration
}

func NewMonitor(interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = HEALTHCHECK_TIMER * time.Second
	}
	return &Monitor{interval: interval, timeout: 3 * time.Second}
}

// Register adds a dependency. It starts out healthy until a check says
// otherwise.
func (m *Monitor) Register(name string, check CheckFunc) {
	p := &probe{name: name, check: check}
	p.healthy.Store(true)
	m.probes = append(m.probes, p)
}

// Run checks every dependency once, then again on each tick until ctx is
// done.
func (m *Monitor) Run(ctx context.Context) error {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

func (m *Monitor) CheckNow(ctx context.Context) {
	for _, p := range m.probes {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.check(checkCtx)
		cancel()

		was := p.healthy.Swap(err == nil)
		switch {
		case err != nil && was:
			slog.Warn("[HealthCheck] Dependency is unhealthy",
				slog.String("dependency", p.name),
				slog.String("error", err.Error()))
		case err == nil && !was:
			slog.Info("[HealthCheck] Dependency recovered", slog.String("dependency", p.name))
		}
	}
}

// Status reports each dependency by name and whether all are healthy.
func (m *Monitor) Status() (map[string]bool, bool) {
	out := make(map[string]bool, len(m.probes))
	all := true
	for _, p := range m.probes {
		ok := p.healthy.Load()
		out[p.name] = ok
		all = all && ok
	}
	return out, all
}

func (m *Monitor) Names() []string {
	names := make([]string, 0, len(m.probes))
	for _, p := range m.probes {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}
