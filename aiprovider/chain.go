// Package aiprovider implements the ProviderChain and ChainSelector /
// ToggleGate components that route a recommendation request to an
// ordered list of ranking providers, falling back to the scheduler-only
// terminal node on exhaustion. Grounded on ai.ChainClient's
// GenerateResponse walk (clone-per-attempt, client-error vs
// retryable-error classification, telemetry at each hop) and
// ai/providers.BaseClient's single-retry-then-fail semantics.
package aiprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/codetop/reviewsched/domain"
	"github.com/codetop/reviewsched/obslog"
)

// RankingRequest is the input handed to each provider node.
type RankingRequest struct {
	UserID      string
	CandidateIDs []string
	Context     map[string]interface{}
}

// RankingResponse is the per-provider output before hybrid re-ranking.
type RankingResponse struct {
	Provider string
	Scores   map[string]float64
}

// Provider is a single ranking backend in the chain (an LLM-backed
// ranker, a heuristic fallback, or the terminal scheduler-only node).
type Provider interface {
	Name() string
	Rank(ctx context.Context, req RankingRequest) (RankingResponse, error)
}

// Logger is the structured-logging contract the chain depends on.
// Reuses obslog.Logger directly rather than redeclaring it.
type Logger = obslog.Logger

// Metrics is the counter contract the chain emits to, matching
// obslog.MetricsRegistry so a telemetry exporter registered via
// obslog.SetMetricsRegistry is picked up without any adapter.
type Metrics = obslog.MetricsRegistry

type noopMetrics struct{}

func (noopMetrics) Counter(name string, labels ...string) {}
func (noopMetrics) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
}
func (noopMetrics) GetBaggage(ctx context.Context) map[string]string { return nil }
func (noopMetrics) Gauge(name string, value float64, labels ...string)     {}
func (noopMetrics) Histogram(name string, value float64, labels ...string) {}

// ChainConfig configures a Chain via functional options, mirroring
// ai.ChainConfig/ChainOption.
type ChainConfig struct {
	Providers   []Provider
	Logger      Logger
	Metrics     Metrics
	NodeTimeout time.Duration
}

// ChainOption mutates a ChainConfig at construction time.
type ChainOption func(*ChainConfig)

// WithProviders sets the ordered provider list.
func WithProviders(providers ...Provider) ChainOption {
	return func(c *ChainConfig) { c.Providers = providers }
}

// WithChainLogger sets the chain's logger.
func WithChainLogger(l Logger) ChainOption {
	return func(c *ChainConfig) { c.Logger = l }
}

// WithChainMetrics sets the chain's metrics sink.
func WithChainMetrics(m Metrics) ChainOption {
	return func(c *ChainConfig) { c.Metrics = m }
}

// WithNodeTimeout bounds each provider invocation.
func WithNodeTimeout(d time.Duration) ChainOption {
	return func(c *ChainConfig) { c.NodeTimeout = d }
}

// Chain walks an ordered list of ranking providers, retrying each node
// once (bounded backoff) before failing over to the next. If every node
// fails, Rank returns a KindProviderError; a scheduler-only terminal
// node is used only when it is included in the provider list.
type Chain struct {
	providers   []Provider
	logger      Logger
	metrics     Metrics
	nodeTimeout time.Duration
}

// NewChain builds a Chain, failing fast if no providers were given.
func NewChain(opts ...ChainOption) (*Chain, error) {
	cfg := ChainConfig{Logger: &obslog.NoOpLogger{}, Metrics: noopMetrics{}, NodeTimeout: 3 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Providers) == 0 {
		return nil, domain.NewError("NewChain", domain.KindInvalidInput, "", fmt.Errorf("at least one provider required"))
	}
	return &Chain{providers: cfg.Providers, logger: cfg.Logger, metrics: cfg.Metrics, nodeTimeout: cfg.NodeTimeout}, nil
}

// Rank walks the chain in order, attempting each node with one bounded
// retry before moving to the next. Client errors (invalid input,
// unauthorized, not found) are NOT retried on the same node and do not
// advance the hop further than necessary; transient/provider errors get
// one retry via backoff before failing over.
func (c *Chain) Rank(ctx context.Context, req RankingRequest) (RankingResponse, error) {
	var lastErr error

	for i, p := range c.providers {
		nodeCtx, cancel := context.WithTimeout(ctx, c.nodeTimeout)
		resp, err := c.attemptWithRetry(nodeCtx, p, req)
		cancel()

		if err == nil {
			c.metrics.Counter("aiprovider.chain.attempt", "provider", p.Name(), "outcome", "success")
			c.logger.Info("chain hop succeeded", map[string]interface{}{"provider": p.Name(), "hop": i})
			return resp, nil
		}

		lastErr = err
		c.metrics.Counter("aiprovider.chain.failover", "provider", p.Name())
		c.logger.Warn("chain hop failed, advancing", map[string]interface{}{"provider": p.Name(), "hop": i, "error": err.Error()})

		if domain.IsClientError(err) {
			// A client-error is the caller's fault, not this provider's;
			// it will fail identically on every remaining node, so stop
			// rather than burn the rest of the chain.
			break
		}
	}

	c.metrics.Counter("aiprovider.chain.exhausted")
	return RankingResponse{}, domain.NewError("Rank", domain.KindProviderError, req.UserID, fmt.Errorf("all %d providers failed, last error: %w", len(c.providers), lastErr))
}

func (c *Chain) attemptWithRetry(ctx context.Context, p Provider, req RankingRequest) (RankingResponse, error) {
	op := func() (RankingResponse, error) {
		resp, err := p.Rank(ctx, req)
		if err != nil {
			if domain.IsClientError(err) {
				return RankingResponse{}, backoff.Permanent(err)
			}
			return RankingResponse{}, err
		}
		return resp, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithMaxTries(2),
		backoff.WithBackOff(backoff.NewConstantBackOff(100*time.Millisecond)),
	)
}

// SchedulerOnlyProvider is the terminal fallback node: it never calls
// out to an external ranker and always succeeds with a neutral score
// for every candidate, letting the hybrid ranker fall back entirely to
// FSRS urgency.
type SchedulerOnlyProvider struct{}

func (SchedulerOnlyProvider) Name() string { return "scheduler-only" }

func (SchedulerOnlyProvider) Rank(_ context.Context, req RankingRequest) (RankingResponse, error) {
	scores := make(map[string]float64, len(req.CandidateIDs))
	for _, id := range req.CandidateIDs {
		scores[id] = 0.5
	}
	return RankingResponse{Provider: "scheduler-only", Scores: scores}, nil
}
