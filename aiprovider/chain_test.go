package aiprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/codetop/reviewsched/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name string
	err  error
	resp RankingResponse
}

func (f fakeProvider) Name() string { return f.name }
func (f fakeProvider) Rank(_ context.Context, _ RankingRequest) (RankingResponse, error) {
	if f.err != nil {
		return RankingResponse{}, f.err
	}
	return f.resp, nil
}

func TestChain_FirstProviderSucceeds(t *testing.T) {
	p1 := fakeProvider{name: "p1", resp: RankingResponse{Provider: "p1", Scores: map[string]float64{"a": 1}}}
	chain, err := NewChain(WithProviders(p1))
	require.NoError(t, err)

	resp, err := chain.Rank(context.Background(), RankingRequest{UserID: "u1", CandidateIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.Provider)
}

func TestChain_FailsOverToNextOnTransientError(t *testing.T) {
	p1 := fakeProvider{name: "p1", err: domain.NewError("Rank", domain.KindTransient, "u1", errors.New("timeout"))}
	p2 := fakeProvider{name: "p2", resp: RankingResponse{Provider: "p2", Scores: map[string]float64{"a": 1}}}
	chain, err := NewChain(WithProviders(p1, p2))
	require.NoError(t, err)

	resp, err := chain.Rank(context.Background(), RankingRequest{UserID: "u1", CandidateIDs: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "p2", resp.Provider)
}

func TestChain_ClientErrorStopsWithoutExhaustingChain(t *testing.T) {
	p1 := fakeProvider{name: "p1", err: domain.NewError("Rank", domain.KindInvalidInput, "u1", errors.New("bad request"))}
	p2 := fakeProvider{name: "p2", resp: RankingResponse{Provider: "p2"}}
	chain, err := NewChain(WithProviders(p1, p2))
	require.NoError(t, err)

	_, err = chain.Rank(context.Background(), RankingRequest{UserID: "u1"})
	require.Error(t, err)
}

func TestChain_AllProvidersFailReturnsProviderError(t *testing.T) {
	p1 := fakeProvider{name: "p1", err: domain.NewError("Rank", domain.KindTransient, "u1", errors.New("down"))}
	p2 := fakeProvider{name: "p2", err: domain.NewError("Rank", domain.KindTransient, "u1", errors.New("down"))}
	chain, err := NewChain(WithProviders(p1, p2))
	require.NoError(t, err)

	_, err = chain.Rank(context.Background(), RankingRequest{UserID: "u1"})
	require.Error(t, err)
}

func TestNewChain_NoProvidersFailsFast(t *testing.T) {
	_, err := NewChain()
	require.Error(t, err)
}

func TestSchedulerOnlyProvider_AlwaysSucceeds(t *testing.T) {
	p := SchedulerOnlyProvider{}
	resp, err := p.Rank(context.Background(), RankingRequest{CandidateIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Len(t, resp.Scores, 2)
}
