// Package health provides a registry of named subsystem health checkers
// used by the readiness endpoint.
package health

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
)

// CheckTimeout bounds a single checker.
const CheckTimeout = 2 * time.Second

// Status represents the health of a single subsystem.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker is a function that checks the health of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named health checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named health checker.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every checker concurrently, each under CheckTimeout, and
// returns the aggregate plus per-subsystem results in registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	statuses = make([]Status, len(checkers))
	var wg sync.WaitGroup
	for i, nc := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()
			statuses[i] = nc.check(cctx)
			if statuses[i].Name == "" {
				statuses[i].Name = nc.name
			}
		}()
	}
	wg.Wait()

	healthy = true
	for _, s := range statuses {
		if !s.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

// Ping adapts a connectivity probe such as (*sql.DB).PingContext.
func Ping(name string, ping func(context.Context) error) Checker {
	return func(ctx context.Context) Status {
		if err := ping(ctx); err != nil {
			return Status{Name: name, Healthy: false, Detail: err.Error()}
		}
		return Status{Name: name, Healthy: true}
	}
}

// Breakers reports open provider circuits. An open circuit degrades
// analyses but never makes the service unready, so the status stays
// healthy and the open upstreams are listed in Detail.
func Breakers(name string, b *circuitbreaker.Breaker) Checker {
	return func(context.Context) Status {
		open := b.Open()
		if len(open) == 0 {
			return Status{Name: name, Healthy: true}
		}
		return Status{Name: name, Healthy: true, Detail: "open: " + strings.Join(open, ", ")}
	}
}

// Required reports unhealthy when a required setting is missing.
func Required(name string, present bool, detail string) Checker {
	return func(context.Context) Status {
		if !present {
			return Status{Name: name, Healthy: false, Detail: detail}
		}
		return Status{Name: name, Healthy: true}
	}
}
