package candidates

import (
	"context"
	"testing"
	"time"

	"github.com/codetop/reviewsched/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	due      []domain.Card
	fresh    []domain.Problem
	excluded map[string]bool
}

func (f fakeSource) DueCards(_ context.Context, _ string, _ time.Time) ([]domain.Card, error) {
	return f.due, nil
}
func (f fakeSource) UnseenProblems(_ context.Context, _ string, _ int) ([]domain.Problem, error) {
	return f.fresh, nil
}
func (f fakeSource) RecentlyExcluded(_ context.Context, _ string, _ time.Duration) (map[string]bool, error) {
	return f.excluded, nil
}

func TestBuild_IncludesDueAndFreshExcludingRecent(t *testing.T) {
	src := fakeSource{
		due:      []domain.Card{{ProblemID: "p1"}, {ProblemID: "p2"}},
		fresh:    []domain.Problem{{ID: "p3"}, {ID: "p4"}},
		excluded: map[string]bool{"p2": true, "p4": true},
	}
	b := New(Config{}, src)

	out, err := b.Build(context.Background(), "u1", time.Now())
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, c := range out {
		ids[c.ProblemID] = true
	}
	assert.True(t, ids["p1"])
	assert.True(t, ids["p3"])
	assert.False(t, ids["p2"])
	assert.False(t, ids["p4"])
}

func TestBuild_RespectsMaxDueCards(t *testing.T) {
	due := make([]domain.Card, 10)
	for i := range due {
		due[i] = domain.Card{ProblemID: string(rune('a' + i))}
	}
	src := fakeSource{due: due}
	b := New(Config{MaxDueCards: 3}, src)

	out, err := b.Build(context.Background(), "u1", time.Now())
	require.NoError(t, err)

	dueCount := 0
	for _, c := range out {
		if c.FromCard {
			dueCount++
		}
	}
	assert.Equal(t, 3, dueCount)
}
