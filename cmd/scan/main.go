// Command scan analyzes token contracts from the command line without
// starting the HTTP server.
//
// Usage:
//
//	go run ./cmd/scan 0xdAC17F958D2ee523a2206206994597C13D831ec7
//	go run ./cmd/scan -concurrency 2 -fail-above 70 0xabc... 0xdef...
//
// One JSON document is written per address, in argument order. The exit
// status is 1 when any address fails or scores above -fail-above.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rcollins22/rugchekr/internal/analysis"
	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
	"github.com/rcollins22/rugchekr/internal/config"
	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/providers"
	"github.com/rcollins22/rugchekr/internal/risk"
	"github.com/rcollins22/rugchekr/internal/validation"
)

type result struct {
	Address  string                     `json:"address"`
	Analysis *analysis.ContractAnalysis `json:"analysis,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

func main() {
	concurrency := flag.Int("concurrency", 4, "addresses analyzed at once")
	failAbove := flag.Int("fail-above", 100, "exit non-zero when a risk score exceeds this")
	pretty := flag.Bool("pretty", false, "indent JSON output")
	flag.Parse()

	addrs := flag.Args()
	if len(addrs) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: scan [flags] <address>...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	for _, a := range addrs {
		if errs := validation.Validate(validation.ValidAddress("address", a)); len(errs) > 0 {
			fmt.Fprintf(os.Stderr, "%q: %v\n", a, errs)
			os.Exit(2)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := scan(ctx, cfg, logger, addrs, *concurrency)
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}
	if err := write(os.Stdout, results, *pretty); err != nil {
		logger.Error("write results", "error", err)
		os.Exit(1)
	}
	if !passed(results, *failAbove) {
		os.Exit(1)
	}
}

func scan(ctx context.Context, cfg *config.Config, logger *slog.Logger, addrs []string, concurrency int) ([]result, error) {
	reg, err := providers.FromConfig(ctx, cfg, providers.Deps{Breaker: circuitbreaker.New(5, cfg.AnalysisTimeout)}, logger)
	if err != nil {
		return nil, err
	}
	defer reg.Close()

	svc := analysis.NewService(reg.Providers(), cfg.HasExplorerKey(), cfg.AnalysisTimeout).
		WithScorer(risk.NewScorer().WithHighThreshold(cfg.RiskHighThreshold).WithMediumThreshold(cfg.RiskMediumThreshold))
	return run(ctx, svc, addrs, concurrency), nil
}

type analyzer interface {
	AnalyzeFresh(ctx context.Context, raw string) (*analysis.ContractAnalysis, error)
}

// run analyzes every address. A failed address is reported in its own
// result and never cancels the others.
func run(ctx context.Context, svc analyzer, addrs []string, concurrency int) []result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]result, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			results[i].Address = addr
			a, err := svc.AnalyzeFresh(gctx, addr)
			if err != nil {
				results[i].Error = err.Error()
				return nil
			}
			results[i].Analysis = a
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func write(w io.Writer, results []result, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func passed(results []result, failAbove int) bool {
	for _, r := range results {
		if r.Error != "" || r.Analysis == nil || r.Analysis.RiskScore > failAbove {
			return false
		}
	}
	return true
}
