// Package orchestrator implements RecommendationOrchestrator, the
// top-level component wiring CacheStore, AdmissionControl,
// IdempotencyStore, CandidateBuilder, UserProfiler, ToggleGate +
// ChainSelector, HybridRanker, StrategyMixer and ConfidenceCalibrator
// into the four external operations named in the spec: submit review,
// fetch review queue, fetch AI recommendations, and trigger parameter
// optimization. The overall pipeline shape (prepare -> cache-check ->
// candidates -> score -> rerank -> respond -> cache) is grounded on the
// cartographus recommend-engine.go reference's Recommend method.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/codetop/reviewsched/admission"
	"github.com/codetop/reviewsched/aiprovider"
	"github.com/codetop/reviewsched/cache"
	"github.com/codetop/reviewsched/candidates"
	"github.com/codetop/reviewsched/domain"
	"github.com/codetop/reviewsched/idempotency"
	"github.com/codetop/reviewsched/obslog"
	"github.com/codetop/reviewsched/optimizer"
	"github.com/codetop/reviewsched/profiler"
	"github.com/codetop/reviewsched/ranking"
	"github.com/codetop/reviewsched/scheduler"
)

// CardStore and ReviewLogStore abstract persistence, left as external
// collaborators per the spec's persistence-library non-goal.
type CardStore interface {
	GetCard(ctx context.Context, userID, problemID string) (domain.Card, error)
	SaveCard(ctx context.Context, card domain.Card) error
	DueQueue(ctx context.Context, userID string, now time.Time, limit int) ([]domain.Card, error)
}

type ReviewLogStore interface {
	Append(ctx context.Context, log domain.ReviewLog) error
	RecentForUser(ctx context.Context, userID string, limit int) ([]domain.ReviewLog, error)
}

type ParameterStore interface {
	Get(ctx context.Context, userID string) (domain.UserParameters, error)
	Save(ctx context.Context, params domain.UserParameters) error
}

// Logger mirrors aiprovider.Logger's shape (itself grounded on obslog.Logger).
type Logger = aiprovider.Logger

// Scheduler is a background task-scheduling hook used to run the
// delayed second delete of the cache-invalidation double-delete.
type Scheduler func(delay time.Duration, fn func())

// Deps bundles every collaborator the orchestrator wires together.
type Deps struct {
	Cards         CardStore
	ReviewLogs    ReviewLogStore
	Parameters    ParameterStore
	Cache         cache.Store
	Admission     *admission.Control
	Idempotency   idempotency.Store
	Candidates    *candidates.Builder
	Profiler      *profiler.Profiler
	Toggle        *aiprovider.ToggleGate
	ChainSelector *aiprovider.ChainSelector
	Ranker        *ranking.HybridRanker
	Mixer         *ranking.StrategyMixer
	Confidence    *ranking.ConfidenceCalibrator
	Optimizer     *optimizer.ParameterOptimizer
	Logger        Logger
	Scheduler     Scheduler
	RecommendTTL  time.Duration
}

// Orchestrator is the RecommendationOrchestrator.
type Orchestrator struct {
	deps Deps
}

// New builds an Orchestrator from Deps, filling safe defaults for the
// optional hooks (Logger, Scheduler, RecommendTTL).
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = &obslog.NoOpLogger{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = func(delay time.Duration, fn func()) {
			go func() {
				time.Sleep(delay)
				fn()
			}()
		}
	}
	if deps.RecommendTTL <= 0 {
		deps.RecommendTTL = 10 * time.Minute
	}
	return &Orchestrator{deps: deps}
}

// SubmitReviewInput is the POST /review/submit payload.
type SubmitReviewInput struct {
	RequestID string
	UserID    string
	ProblemID string
	Rating    domain.Rating
}

// SubmitReviewResult is returned to the caller and cached under the
// request's idempotency key.
type SubmitReviewResult struct {
	ProblemID     string    `json:"problem_id"`
	State         string    `json:"state"`
	ScheduledDays int       `json:"scheduled_days"`
	Due           time.Time `json:"due"`
}

// SubmitReview applies a rating to a card, persists the updated card
// and review log, invalidates the user's cached recommendations with a
// delayed double-delete, and is idempotent per (RequestID, UserID,
// "submitReview").
func (o *Orchestrator) SubmitReview(ctx context.Context, in SubmitReviewInput) (SubmitReviewResult, error) {
	ctx, span := tracer.Start(ctx, "SubmitReview", trace.WithAttributes(
		attribute.String("user.id", in.UserID),
		attribute.String("problem.id", in.ProblemID),
	))
	defer span.End()

	result, err := o.submitReview(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (o *Orchestrator) submitReview(ctx context.Context, in SubmitReviewInput) (SubmitReviewResult, error) {
	if in.UserID == "" || in.ProblemID == "" || !in.Rating.Valid() {
		return SubmitReviewResult{}, domain.NewError("SubmitReview", domain.KindInvalidInput, in.ProblemID, nil)
	}
	if in.RequestID == "" {
		in.RequestID = uuid.NewString()
	}

	began, err := o.deps.Idempotency.Begin(ctx, in.RequestID, in.UserID, "submitReview")
	if err != nil {
		return SubmitReviewResult{}, err
	}
	if !began {
		rec, found, getErr := o.deps.Idempotency.Get(ctx, in.RequestID, in.UserID, "submitReview")
		if getErr != nil {
			return SubmitReviewResult{}, getErr
		}
		if found {
			return decodeSubmitResult(rec)
		}
		return SubmitReviewResult{}, domain.NewError("SubmitReview", domain.KindDuplicateInFlight, in.RequestID, nil)
	}

	release, err := o.deps.Admission.Acquire(ctx, in.UserID)
	if err != nil {
		return SubmitReviewResult{}, err
	}
	defer release()

	// UTC with no monotonic reading, so a result replayed from its JSON
	// idempotency record is identical to the one returned first.
	now := time.Now().UTC()
	card, err := o.deps.Cards.GetCard(ctx, in.UserID, in.ProblemID)
	if err != nil {
		return SubmitReviewResult{}, domain.NewError("SubmitReview", domain.KindNotFound, in.ProblemID, err)
	}

	params, err := o.deps.Parameters.Get(ctx, in.UserID)
	if err != nil {
		params = domain.DefaultUserParameters(in.UserID)
	}

	elapsedAtReview := scheduler.ElapsedDays(card, now)
	res, err := scheduler.ReviewCard(params, card, in.Rating, now)
	if err != nil {
		return SubmitReviewResult{}, err
	}

	updated := domain.Card{
		UserID:        in.UserID,
		ProblemID:     in.ProblemID,
		State:         res.State,
		Stability:     res.Stability,
		Difficulty:    res.Difficulty,
		Due:           res.Due,
		LastReview:    &now,
		Reps:          res.Reps,
		Lapses:        res.Lapses,
		ScheduledDays: res.ScheduledDays,
		ElapsedDays:   res.ElapsedDays,
	}
	if err := o.deps.Cards.SaveCard(ctx, updated); err != nil {
		return SubmitReviewResult{}, domain.NewError("SubmitReview", domain.KindTransient, in.ProblemID, err)
	}

	log := domain.ReviewLog{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		ProblemID:   in.ProblemID,
		Rating:      in.Rating,
		ReviewedAt:  now,
		ElapsedDays: elapsedAtReview,
		Stability:   res.Stability,
		Difficulty:  res.Difficulty,
		State:       res.State,
	}
	if err := o.deps.ReviewLogs.Append(ctx, log); err != nil {
		o.deps.Logger.Warn("failed to append review log", map[string]interface{}{"error": err.Error()})
	}

	o.deps.Cache.InvalidateWithDelayedDelete(ctx, in.UserID, o.deps.Scheduler)

	result := SubmitReviewResult{
		ProblemID:     in.ProblemID,
		State:         res.State.String(),
		ScheduledDays: res.ScheduledDays,
		Due:           res.Due,
	}
	if err := o.deps.Idempotency.Complete(ctx, in.RequestID, in.UserID, "submitReview", result); err != nil {
		o.deps.Logger.Warn("failed to persist idempotency result", map[string]interface{}{"error": err.Error()})
	}

	return result, nil
}

// ReviewQueue is the GET /review/queue operation: the next limit due
// cards for the user, soonest-due first.
func (o *Orchestrator) ReviewQueue(ctx context.Context, userID string, limit int) ([]domain.Card, error) {
	if userID == "" {
		return nil, domain.NewError("ReviewQueue", domain.KindInvalidInput, "", nil)
	}
	if limit <= 0 {
		limit = 20
	}
	cards, err := o.deps.Cards.DueQueue(ctx, userID, time.Now(), limit)
	if err != nil {
		return nil, domain.NewError("ReviewQueue", domain.KindTransient, userID, err)
	}
	return cards, nil
}

// OptimizeParameters is the POST /users/optimize-parameters?user_id=
// operation: refits UserParameters from the user's review history if
// they're eligible, else leaves the prior parameters untouched.
func (o *Orchestrator) OptimizeParameters(ctx context.Context, userID string) (domain.UserParameters, error) {
	if userID == "" {
		return domain.UserParameters{}, domain.NewError("OptimizeParameters", domain.KindInvalidInput, "", nil)
	}

	prior, err := o.deps.Parameters.Get(ctx, userID)
	if err != nil {
		prior = domain.DefaultUserParameters(userID)
	}

	logs, err := o.deps.ReviewLogs.RecentForUser(ctx, userID, 10000)
	if err != nil {
		return domain.UserParameters{}, domain.NewError("OptimizeParameters", domain.KindTransient, userID, err)
	}

	fitted, err := o.deps.Optimizer.Optimize(userID, logs, prior, time.Now())
	if err != nil {
		return domain.UserParameters{}, err
	}

	if err := o.deps.Parameters.Save(ctx, fitted); err != nil {
		return domain.UserParameters{}, domain.NewError("OptimizeParameters", domain.KindTransient, userID, err)
	}
	o.deps.Cache.InvalidateWithDelayedDelete(ctx, userID, o.deps.Scheduler)
	return fitted, nil
}
