package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryAllHealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(_ context.Context) Status {
		return Status{Name: "db", Healthy: true}
	})
	r.Register("cache", func(_ context.Context) Status {
		return Status{Name: "cache", Healthy: true, Detail: "ok"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("all-healthy registry should report healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(_ context.Context) Status {
		return Status{Name: "db", Healthy: true}
	})
	r.Register("cache", func(_ context.Context) Status {
		return Status{Name: "cache", Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Detail != "connection refused" {
		t.Fatalf("expected detail 'connection refused', got %q", statuses[1].Detail)
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	// Register concurrently
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) Status {
				return Status{Name: "checker", Healthy: true}
			})
		}(i)
	}

	// Check concurrently
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}

	wg.Wait()
}

func TestRegistryFillsName(t *testing.T) {
	r := NewRegistry()
	r.Register("db", func(_ context.Context) Status { return Status{Healthy: true} })
	_, statuses := r.CheckAll(context.Background())
	if statuses[0].Name != "db" {
		t.Fatalf("expected name db, got %q", statuses[0].Name)
	}
}

func TestRegistryCheckTimeout(t *testing.T) {
	r := NewRegistry()
	r.Register("slow", func(ctx context.Context) Status {
		if _, ok := ctx.Deadline(); !ok {
			return Status{Name: "slow", Healthy: false, Detail: "no deadline"}
		}
		return Status{Name: "slow", Healthy: true}
	})
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatalf("expected checker to see a deadline: %+v", statuses)
	}
}

func TestPing(t *testing.T) {
	ok := Ping("db", func(context.Context) error { return nil })(context.Background())
	if !ok.Healthy || ok.Name != "db" {
		t.Fatalf("unexpected status %+v", ok)
	}
	bad := Ping("redis", func(context.Context) error { return errors.New("connection refused") })(context.Background())
	if bad.Healthy || bad.Detail != "connection refused" {
		t.Fatalf("unexpected status %+v", bad)
	}
}

func TestBreakers(t *testing.T) {
	b := circuitbreaker.New(1, time.Minute)
	s := Breakers("providers", b)(context.Background())
	if !s.Healthy || s.Detail != "" {
		t.Fatalf("unexpected status %+v", s)
	}

	b.RecordFailure("etherscan")
	s = Breakers("providers", b)(context.Background())
	if !s.Healthy {
		t.Fatal("open circuits must not make the service unready")
	}
	if s.Detail != "open: etherscan" {
		t.Fatalf("unexpected detail %q", s.Detail)
	}
}

func TestRequired(t *testing.T) {
	if s := Required("explorer", false, "ETHERSCAN_API_KEY not set")(context.Background()); s.Healthy {
		t.Fatal("missing setting should be unhealthy")
	}
	if s := Required("explorer", true, "")(context.Background()); !s.Healthy {
		t.Fatal("present setting should be healthy")
	}
}
