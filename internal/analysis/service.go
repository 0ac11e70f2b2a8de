package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/rcollins22/rugchekr/internal/address"
	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/metrics"
	"github.com/rcollins22/rugchekr/internal/pagination"
	"github.com/rcollins22/rugchekr/internal/providers"
	"github.com/rcollins22/rugchekr/internal/risk"
	"github.com/rcollins22/rugchekr/internal/scanner"
	"github.com/rcollins22/rugchekr/internal/traces"
)

// DefaultDeadline bounds a whole analysis when none is configured.
const DefaultDeadline = 20 * time.Second

// Service runs analyses.
type Service struct {
	providers   []providers.Provider
	explorerKey bool
	deadline    time.Duration
	scanner     *scanner.Scanner
	scorer      *risk.Scorer
	store       Store
	cache       Cache
	publisher   Publisher
	now         func() time.Time
	newID       func() string

	// inflight coalesces concurrent cached-path analyses of one address.
	inflight singleflight.Group
}

// NewService creates a service over ps. explorerKey reports whether the
// block explorer credential is configured; without it every analysis
// fails with ErrConfiguration before any provider is called.
func NewService(ps []providers.Provider, explorerKey bool, deadline time.Duration) *Service {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Service{
		providers:   ps,
		explorerKey: explorerKey,
		deadline:    deadline,
		scanner:     scanner.New(),
		scorer:      risk.NewScorer(),
		now:         time.Now,
		newID:       func() string { return "an_" + uuid.NewString() },
	}
}

// WithStore persists every finished analysis.
func (s *Service) WithStore(store Store) *Service {
	s.store = store
	return s
}

// WithCache serves repeated analyses of an address from cache.
func (s *Service) WithCache(c Cache) *Service {
	s.cache = c
	return s
}

// WithPublisher announces finished analyses, e.g. on the live feed.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// WithScorer replaces the default 70/40 scorer.
func (s *Service) WithScorer(scorer *risk.Scorer) *Service {
	s.scorer = scorer
	return s
}

// Store returns the configured report store, or nil.
func (s *Service) Store() Store { return s.store }

// Analyze returns the analysis for raw, from cache when available.
func (s *Service) Analyze(ctx context.Context, raw string) (*ContractAnalysis, error) {
	return s.analyze(ctx, raw, false)
}

// AnalyzeFresh bypasses the cache.
func (s *Service) AnalyzeFresh(ctx context.Context, raw string) (*ContractAnalysis, error) {
	return s.analyze(ctx, raw, true)
}

func (s *Service) analyze(ctx context.Context, raw string, fresh bool) (*ContractAnalysis, error) {
	addr := address.Normalize(raw)
	network, err := address.Analyzable(addr)
	if err != nil {
		metrics.AnalysesRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, fmt.Errorf("%q: %w", addr, err)
	}
	if !s.explorerKey {
		metrics.AnalysesRejectedTotal.WithLabelValues("configuration").Inc()
		return nil, ErrConfiguration
	}

	logger := logging.WithAddress(logging.WithComponent(logging.L(ctx), "analysis"), addr)

	if !fresh && s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, addr)
		switch {
		case err != nil:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			logger.Warn("cache lookup failed", "error", err)
		case ok:
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	if fresh {
		return s.run(ctx, logger, addr, network), nil
	}
	// The shared run outlives any single caller; the analysis deadline
	// still bounds it.
	v, _, shared := s.inflight.Do(strings.ToLower(addr), func() (any, error) {
		return s.run(context.WithoutCancel(ctx), logger, addr, network), nil
	})
	if shared {
		logger.Debug("joined in-flight analysis")
	}
	return v.(*ContractAnalysis), nil
}

// run performs one uncached analysis and records it.
func (s *Service) run(ctx context.Context, logger *slog.Logger, addr string, network address.Network) *ContractAnalysis {
	ctx, span := traces.StartSpan(ctx, "analysis.Analyze", traces.ContractAddr(addr))
	defer span.End()

	start := s.now()
	snap, sources := s.collect(logging.WithLogger(ctx, logger), addr)

	rec := assemble(snap, s.scanner, s.scorer, start)
	rec.ID = s.newID()
	rec.Address = address.Checksum(addr)
	rec.Network = network
	rec.Sources = sources
	rec.AnalyzedAt = start.UTC()
	rec.DurationMs = s.now().Sub(start).Milliseconds()

	failed := rec.FailedSources()
	span.SetAttributes(
		traces.RiskScore(rec.RiskScore),
		traces.FailedProviders(len(failed)),
		attribute.String("risk.level", rec.RiskLevel.Label),
	)
	metrics.AnalysesTotal.WithLabelValues(rec.RiskLevel.Label).Inc()
	metrics.AnalysisDuration.Observe(s.now().Sub(start).Seconds())
	metrics.DegradedFields.Observe(float64(len(failed)))
	logger.Info("analysis complete",
		"id", rec.ID,
		"risk_score", rec.RiskScore,
		"risk_level", rec.RiskLevel.Label,
		"audit_score", rec.AuditScore,
		"failed_providers", strings.Join(failed, ","),
		"duration_ms", rec.DurationMs,
	)

	s.record(ctx, &rec)
	return &rec
}

// record hands a finished analysis to the optional collaborators. Their
// failures are logged and never affect the returned analysis.
func (s *Service) record(ctx context.Context, rec *ContractAnalysis) {
	// Detached so a client disconnect does not lose the report.
	ctx = context.WithoutCancel(ctx)
	if s.store != nil {
		if err := s.store.Save(ctx, rec); err != nil {
			logging.L(ctx).Error("failed to save analysis", "id", rec.ID, "error", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			logging.L(ctx).Warn("failed to cache analysis", "id", rec.ID, "error", err)
		}
	}
	if s.publisher != nil {
		s.publisher.PublishAnalysis(rec)
	}
}

// Get returns a stored analysis.
func (s *Service) Get(ctx context.Context, id string) (*ContractAnalysis, error) {
	if s.store == nil {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// Latest returns the most recent stored analysis of raw without running a
// new one.
func (s *Service) Latest(ctx context.Context, raw string) (*ContractAnalysis, error) {
	addr := address.Normalize(raw)
	if _, err := address.Analyzable(addr); err != nil {
		return nil, fmt.Errorf("%q: %w", addr, err)
	}
	if s.store == nil {
		return nil, ErrNotFound
	}
	return s.store.LatestForAddress(ctx, addr)
}

// Recent lists stored analyses, newest first, starting after cursor. It
// returns the cursor of the following page, or "" on the last one.
func (s *Service) Recent(ctx context.Context, cursor string, limit int) ([]*ContractAnalysis, string, error) {
	before, err := pagination.Decode(cursor)
	if err != nil {
		return nil, "", err
	}
	if s.store == nil {
		return []*ContractAnalysis{}, "", nil
	}
	list, err := s.store.ListRecent(ctx, before, limit+1)
	if err != nil {
		return nil, "", err
	}
	page, next := pagination.Page(list, limit, func(a *ContractAnalysis) (time.Time, string) {
		return a.AnalyzedAt, a.ID
	})
	return page, next, nil
}

func rejectReason(err error) string {
	if errors.Is(err, address.ErrUnsupportedNetwork) {
		return "unsupported_network"
	}
	return "invalid_address"
}

// outcome is one provider's settled result.
type outcome struct {
	contribution providers.Contribution
	err          error
	elapsed      time.Duration
}

// collect launches every provider at once and waits for all of them to
// settle. Each goroutine writes only its own slot of results, and the
// WaitGroup is the sole synchronization point. Total latency is bounded
// by the analysis deadline, not by the sum of provider timeouts.
func (s *Service) collect(ctx context.Context, addr string) (*providers.Snapshot, []SourceStatus) {
	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	results := make([]outcome, len(s.providers))
	var wg sync.WaitGroup
	for i, p := range s.providers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fetch(ctx, p, addr)
		}()
	}
	wg.Wait()

	snap := &providers.Snapshot{}
	sources := make([]SourceStatus, len(s.providers))
	for i, p := range s.providers {
		r := results[i]
		sources[i] = SourceStatus{Name: p.Name(), OK: r.err == nil, LatencyMs: r.elapsed.Milliseconds()}
		if r.err != nil {
			sources[i].ErrorKind = string(providers.KindOf(r.err))
			continue
		}
		r.contribution.Apply(snap)
	}
	return snap, sources
}

// fetch runs one provider under its own timeout. A provider that ignores
// cancellation is abandoned when its context ends; its goroutine finishes
// in the background and the late result is dropped.
func fetch(ctx context.Context, p providers.Provider, addr string) outcome {
	name := p.Name()
	if t := p.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	ctx, span := traces.StartSpan(ctx, "provider."+name, traces.Provider(name))
	defer span.End()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: providers.NewError(name, providers.KindMalformed, fmt.Errorf("panic: %v", r))}
			}
		}()
		c, err := p.Fetch(ctx, addr)
		done <- outcome{contribution: c, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = providers.Wrap(name, ctx.Err())
	}
	out.elapsed = time.Since(start)
	if out.err == nil && out.contribution == nil {
		out.err = providers.NewError(name, providers.KindMalformed, errors.New("provider returned no data"))
	}

	if out.err != nil {
		kind := providers.KindOf(out.err)
		traces.Fail(span, out.err)
		span.SetAttributes(traces.ErrorKind(string(kind)))
		metrics.ObserveProvider(name, string(kind), out.elapsed)
		logging.WithProvider(logging.L(ctx), name).Warn("provider failed, using fallback",
			"kind", string(kind),
			"latency_ms", out.elapsed.Milliseconds(),
			"error", out.err,
		)
		return out
	}
	metrics.ObserveProvider(name, "ok", out.elapsed)
	return out
}
