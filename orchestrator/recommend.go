package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codetop/reviewsched/aiprovider"
	"github.com/codetop/reviewsched/candidates"
	"github.com/codetop/reviewsched/domain"
	"github.com/codetop/reviewsched/profiler"
	"github.com/codetop/reviewsched/ranking"
)

var tracer = otel.Tracer("github.com/codetop/reviewsched/orchestrator")

// RecommendInput is the GET /problems/ai-recommendations request.
type RecommendInput struct {
	UserID  string
	Tier    string
	ABGroup string
	Limit   int
}

// Recommend is the RecommendationOrchestrator's main pipeline:
// cache-check -> admission -> candidate build -> profile -> toggle gate
// -> (chain rank | scheduler-only) -> hybrid blend -> strategy mix ->
// confidence calibration -> cache-set -> return.
func (o *Orchestrator) Recommend(ctx context.Context, in RecommendInput) (domain.RecommendationSet, error) {
	ctx, span := tracer.Start(ctx, "Recommend", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.String("user.tier", in.Tier),
	))
	defer span.End()

	result, err := o.recommend(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (o *Orchestrator) recommend(ctx context.Context, in RecommendInput) (domain.RecommendationSet, error) {
	if in.UserID == "" {
		return domain.RecommendationSet{}, domain.NewError("Recommend", domain.KindInvalidInput, "", nil)
	}
	if in.Limit <= 0 {
		in.Limit = 10
	}

	if cached, ok, err := o.deps.Cache.Get(ctx, in.UserID); err == nil && ok {
		return *cached, nil
	}

	release, err := o.deps.Admission.Acquire(ctx, in.UserID)
	if err != nil {
		return domain.RecommendationSet{}, err
	}
	defer release()

	pool, err := o.deps.Candidates.Build(ctx, in.UserID, time.Now())
	if err != nil {
		return domain.RecommendationSet{}, err
	}
	if len(pool) == 0 {
		return domain.RecommendationSet{UserID: in.UserID, GeneratedAt: time.Now()}, nil
	}

	profile, err := o.deps.Profiler.Build(ctx, in.UserID)
	if err != nil {
		o.deps.Logger.Warn("profile build failed, continuing without personalization", map[string]interface{}{"error": err.Error()})
	}

	candidateIDs := make([]string, 0, len(pool))
	for _, c := range pool {
		candidateIDs = append(candidateIDs, c.ProblemID)
	}

	providerName := "scheduler-only"
	llmScores := map[string]float64{}
	routeCtx := aiprovider.RouteContext{UserID: in.UserID, Tier: in.Tier, ABGroup: in.ABGroup, Route: "/problems/ai-recommendations"}
	if o.deps.Toggle != nil && o.deps.Toggle.Allow(routeCtx) && o.deps.ChainSelector != nil {
		chain, name := o.deps.ChainSelector.Select(routeCtx)
		if chain != nil {
			resp, rankErr := chain.Rank(ctx, aiprovider.RankingRequest{UserID: in.UserID, CandidateIDs: candidateIDs})
			if rankErr == nil {
				llmScores = resp.Scores
				providerName = name
			} else {
				o.deps.Logger.Warn("chain ranking failed, falling back to scheduler-only", map[string]interface{}{"error": rankErr.Error()})
			}
		}
	}

	signals := make([]ranking.SignalSet, 0, len(pool))
	for _, c := range pool {
		urgency := 0.5
		if c.FromCard && c.Card != nil {
			urgency = urgencyFromCard(*c.Card)
		}
		personalBoost := personalizationBoost(profile)
		signals = append(signals, ranking.SignalSet{
			ProblemID:     c.ProblemID,
			LLMScore:      llmScores[c.ProblemID],
			UrgencyScore:  urgency,
			PersonalBoost: personalBoost,
			Category:      categoryFor(c),
		})
	}

	ranked := o.deps.Ranker.Rank(signals)

	final := ranked
	if o.deps.Mixer != nil {
		byCategory := groupByCategory(ranked)
		final = o.deps.Mixer.Mix(byCategory)
	}
	if len(final) > in.Limit {
		final = final[:in.Limit]
	}

	if o.deps.Confidence != nil {
		for i := range final {
			score, label := o.deps.Confidence.Score(ranking.ConfidenceSignals{
				ProviderAgreement: boolToFloat(providerName != "scheduler-only"),
				HistorySampleSize: sampleSizeSignal(profile),
				FSRSCertainty:     final[i].UrgencyScore,
			})
			final[i].Confidence = score
			final[i].ConfidenceLabel = label
		}
	}

	set := domain.RecommendationSet{
		UserID:      in.UserID,
		Items:       final,
		GeneratedAt: time.Now(),
		Provider:    providerName,
	}
	if err := o.deps.Cache.Set(ctx, in.UserID, &set, o.deps.RecommendTTL); err != nil {
		o.deps.Logger.Warn("failed to cache recommendation set", map[string]interface{}{"error": err.Error()})
	}
	return set, nil
}

func urgencyFromCard(card domain.Card) float64 {
	if card.Due.IsZero() {
		return 0.5
	}
	overdueDays := time.Since(card.Due).Hours() / 24
	if overdueDays <= 0 {
		return 0.3
	}
	urgency := 0.3 + overdueDays*0.05
	if urgency > 1 {
		urgency = 1
	}
	return urgency
}

// personalizationBoost returns the user's recent lapse rate when the
// profile has any PreferredTopics (weakest topics), else 0. The same
// value is applied to every candidate; a candidate's own topics are not
// compared against the user's weak or strong topics.
func personalizationBoost(profile profiler.Profile) float64 {
	if len(profile.PreferredTopics) == 0 {
		return 0
	}
	// Without per-problem topic lookup at this layer (that's the
	// candidate builder's/catalog's job), we use the user's overall
	// lapse rate as a proxy: a higher recent lapse rate means the
	// scheduler should lean harder on personalization to steer toward
	// reinforcement rather than novelty.
	return profile.RecentLapseRate
}

func categoryFor(c candidates.Candidate) string {
	if c.FromCard {
		return "due_review"
	}
	return "fresh_discovery"
}

func groupByCategory(items []domain.RecommendationItem) map[string][]domain.RecommendationItem {
	out := map[string][]domain.RecommendationItem{}
	for _, it := range items {
		out[it.Category] = append(out[it.Category], it)
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// sampleSizeSignal normalizes review velocity into a [0,1] confidence
// contribution: a user reviewing at least ~3/day over the sample
// window is treated as fully sampled.
func sampleSizeSignal(profile profiler.Profile) float64 {
	const fullSampleVelocity = 3.0
	v := profile.ReviewVelocity / fullSampleVelocity
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}
