// Command server wires the full recommendation scheduler stack and
// serves the four HTTP operations plus a health endpoint, grounded on
// the teacher's examples/basic-agent main.go for SIGINT/SIGTERM
// graceful shutdown and its functional-options wiring style.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/codetop/reviewsched/admission"
	"github.com/codetop/reviewsched/aiprovider"
	"github.com/codetop/reviewsched/cache"
	"github.com/codetop/reviewsched/candidates"
	"github.com/codetop/reviewsched/config"
	"github.com/codetop/reviewsched/httpapi"
	"github.com/codetop/reviewsched/idempotency"
	"github.com/codetop/reviewsched/optimizer"
	"github.com/codetop/reviewsched/orchestrator"
	"github.com/codetop/reviewsched/profiler"
	"github.com/codetop/reviewsched/ranking"
	"github.com/codetop/reviewsched/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		redisOpts = &redis.Options{Addr: redisAddr(cfg.RedisURL)}
	}
	redisClient := redis.NewClient(redisOpts)

	cardStore := storage.NewCardStore(redisClient)
	reviewLogStore := storage.NewReviewLogStore(redisClient)
	paramStore := storage.NewParameterStore(redisClient)
	candidateSource := storage.NewCandidateSource(cardStore, redisClient)
	historySource := storage.NewHistorySource(reviewLogStore, redisClient)

	chains := map[string]*aiprovider.Chain{}
	defaultChain, err := aiprovider.NewChain(aiprovider.WithProviders(buildProviders(cfg.LLMProviders)...))
	if err != nil {
		log.Fatalf("failed to build default chain: %v", err)
	}
	chains["default"] = defaultChain

	deps := orchestrator.Deps{
		Cards:         cardStore,
		ReviewLogs:    reviewLogStore,
		Parameters:    paramStore,
		Cache:         cache.NewRedisStore(redisClient),
		Admission:     admission.New(admission.Config{GlobalConcurrency: cfg.Admission.GlobalConcurrency, PerUserConcurrency: cfg.Admission.PerUserConcurrency, AcquireTimeout: cfg.Admission.AcquireTimeout}),
		Idempotency:   idempotency.NewRedisStore(redisClient, cfg.TTL.IdempotencyRecord),
		Candidates:    candidates.New(candidates.Config{ExclusionWindow: cfg.TTL.CandidateExclusion}, candidateSource),
		Profiler:      profiler.New(historySource, 0),
		Toggle:        aiprovider.NewToggleGate(cfg.Toggle),
		ChainSelector: aiprovider.NewChainSelector(cfg.Routing, chains),
		Ranker:        ranking.New(ranking.DefaultWeights()),
		Mixer:         ranking.NewStrategyMixer(map[string]int{"due_review": 7, "fresh_discovery": 3}, 10),
		Confidence:    ranking.NewConfidenceCalibrator(ranking.DefaultConfidenceWeights()),
		Optimizer:     optimizer.New(optimizer.Config{}),
		RecommendTTL:  cfg.TTL.RecommendationCache,
	}
	orch := orchestrator.New(deps)

	tracerProvider, err := initTelemetry("reviewsched")
	if err != nil {
		log.Fatalf("telemetry init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopSweep := startReoptimizationSweep(ctx, orch, reviewLogStore, redisClient)
	defer stopSweep()

	mux := httpapi.NewHandler(orch, redisPinger{redisClient}).Mux()
	srv := &http.Server{
		Addr:    *addr,
		Handler: otelhttp.NewHandler(mux, "reviewsched"),
	}

	go func() {
		log.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx, tracerProvider); err != nil {
		log.Printf("telemetry shutdown failed: %v", err)
	}
}

// buildProviders turns the configured LLM backends into a ProviderChain
// node list, skipping any whose API key env var is unset (misconfigured
// providers are dropped rather than failing startup), and always
// terminating with the scheduler-only fallback.
func buildProviders(configured []config.LLMProviderConfig) []aiprovider.Provider {
	providers := make([]aiprovider.Provider, 0, len(configured)+1)
	for _, pc := range configured {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			log.Printf("skipping llm provider %q: %s is not set", pc.Name, pc.APIKeyEnv)
			continue
		}
		providers = append(providers, aiprovider.NewLLMProvider(pc.Name, apiKey, pc.BaseURL, pc.Model))
	}
	providers = append(providers, aiprovider.SchedulerOnlyProvider{})
	return providers
}

// redisPinger adapts *redis.Client to httpapi.Pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func redisAddr(url string) string {
	// Fallback for values redis.ParseURL rejects (e.g. a bare
	// host:port): strips a redis:// scheme if present and otherwise
	// returns the value unchanged.
	const scheme = "redis://"
	if len(url) > len(scheme) && url[:len(scheme)] == scheme {
		return url[len(scheme):]
	}
	return url
}

// startReoptimizationSweep runs a ticker-driven background worker that
// each hour samples up to usersPerTick users from the
// "codetop:active-users" set and calls OptimizeParameters for each, so a
// single run can't monopolize the optimizer. It does not check
// optimizer.ShouldReoptimize; which sampled users get refitted is
// decided only by the optimizer's minimum-review gate.
func startReoptimizationSweep(ctx context.Context, orch *orchestrator.Orchestrator, logs *storage.ReviewLogStore, client *redis.Client) func() {
	const usersPerTick = 50
	ticker := time.NewTicker(1 * time.Hour)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(ctx, orch, client, usersPerTick)
			}
		}
	}()

	return func() {
		ticker.Stop()
		<-done
	}
}

func sweepOnce(ctx context.Context, orch *orchestrator.Orchestrator, client *redis.Client, limit int) {
	userIDs, err := client.SRandMemberN(ctx, "codetop:active-users", int64(limit)).Result()
	if err != nil {
		log.Printf("reoptimization sweep: failed to sample active users: %v", err)
		return
	}
	for _, userID := range userIDs {
		if _, err := orch.OptimizeParameters(ctx, userID); err != nil {
			log.Printf("reoptimization sweep: user %s failed: %v", userID, err)
		}
	}
}
