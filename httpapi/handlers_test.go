package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetop/reviewsched/admission"
	"github.com/codetop/reviewsched/aiprovider"
	"github.com/codetop/reviewsched/cache"
	"github.com/codetop/reviewsched/candidates"
	"github.com/codetop/reviewsched/domain"
	"github.com/codetop/reviewsched/idempotency"
	"github.com/codetop/reviewsched/optimizer"
	"github.com/codetop/reviewsched/orchestrator"
	"github.com/codetop/reviewsched/profiler"
	"github.com/codetop/reviewsched/ranking"
)

type fakeCards struct {
	cards map[string]domain.Card
}

func (f *fakeCards) GetCard(_ context.Context, _, problemID string) (domain.Card, error) {
	if c, ok := f.cards[problemID]; ok {
		return c, nil
	}
	return domain.Card{}, domain.ErrNotFound
}
func (f *fakeCards) SaveCard(_ context.Context, card domain.Card) error {
	f.cards[card.ProblemID] = card
	return nil
}
func (f *fakeCards) DueQueue(_ context.Context, _ string, _ time.Time, limit int) ([]domain.Card, error) {
	out := make([]domain.Card, 0, len(f.cards))
	for _, c := range f.cards {
		out = append(out, c)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeLogs struct{}

func (fakeLogs) Append(context.Context, domain.ReviewLog) error { return nil }
func (fakeLogs) RecentForUser(context.Context, string, int) ([]domain.ReviewLog, error) {
	return nil, nil
}

type fakeParams struct{}

func (fakeParams) Get(_ context.Context, userID string) (domain.UserParameters, error) {
	return domain.DefaultUserParameters(userID), nil
}
func (fakeParams) Save(context.Context, domain.UserParameters) error { return nil }

type fakeProblemSource struct{}

func (fakeProblemSource) DueCards(context.Context, string, time.Time) ([]domain.Card, error) {
	return nil, nil
}
func (fakeProblemSource) UnseenProblems(context.Context, string, int) ([]domain.Problem, error) {
	return []domain.Problem{{ID: "p1"}}, nil
}
func (fakeProblemSource) RecentlyExcluded(context.Context, string, time.Duration) (map[string]bool, error) {
	return map[string]bool{}, nil
}

type fakeHistorySource struct{}

func (fakeHistorySource) RecentReviewLogs(context.Context, string, int) ([]domain.ReviewLog, error) {
	return nil, nil
}
func (fakeHistorySource) ProblemTopics(context.Context, string) ([]string, error) { return nil, nil }

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	chain, err := aiprovider.NewChain(aiprovider.WithProviders(aiprovider.SchedulerOnlyProvider{}))
	require.NoError(t, err)
	chains := map[string]*aiprovider.Chain{"default": chain}

	deps := orchestrator.Deps{
		Cards:         &fakeCards{cards: map[string]domain.Card{}},
		ReviewLogs:    fakeLogs{},
		Parameters:    fakeParams{},
		Cache:         cache.NewMemoryStore(),
		Admission:     admission.New(admission.Config{}),
		Idempotency:   idempotency.NewMemoryStore(time.Hour),
		Candidates:    candidates.New(candidates.Config{}, fakeProblemSource{}),
		Profiler:      profiler.New(fakeHistorySource{}, 0),
		Toggle:        aiprovider.NewToggleGate(aiprovider.ToggleConfig{GlobalEnabled: true, DefaultAllow: true}),
		ChainSelector: aiprovider.NewChainSelector(aiprovider.RoutingRules{DefaultChain: "default"}, chains),
		Ranker:        ranking.New(ranking.DefaultWeights()),
		Mixer:         ranking.NewStrategyMixer(map[string]int{"due_review": 5, "fresh_discovery": 5}, 10),
		Confidence:    ranking.NewConfidenceCalibrator(ranking.DefaultConfidenceWeights()),
		Optimizer:     optimizer.New(optimizer.Config{}),
	}
	return NewHandler(orchestrator.New(deps), nil)
}

func TestHealth_NoRedisConfiguredReportsOK(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_RedisDownReportsDegraded(t *testing.T) {
	h := newTestHandler(t)
	h.redis = fakePinger{err: errors.New("connection refused")}
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecommendations_ReturnsItems(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/problems/ai-recommendations?user_id=u1&limit=5", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitReview_MissingBodyReturnsBadRequest(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/review/submit", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
