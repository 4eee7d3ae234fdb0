// Package candidates implements CandidateBuilder: it assembles the pool
// of problem IDs eligible for recommendation to a user — due/overdue
// cards plus fresh, never-attempted problems — excluding anything the
// user has seen too recently. Grounded on the cartographus
// recommend-engine.go reference's getCandidates step (fetch history,
// build an exclusion set, fetch and filter candidates).
package candidates

import (
	"context"
	"time"

	"github.com/codetop/reviewsched/domain"
)

// ProblemSource supplies the catalog and a user's card history; the
// concrete storage backing these is an external collaborator per the
// spec's persistence non-goal.
type ProblemSource interface {
	DueCards(ctx context.Context, userID string, now time.Time) ([]domain.Card, error)
	UnseenProblems(ctx context.Context, userID string, limit int) ([]domain.Problem, error)
	RecentlyExcluded(ctx context.Context, userID string, within time.Duration) (map[string]bool, error)
}

// Config bounds how many of each category the builder draws.
type Config struct {
	MaxDueCards    int
	MaxFreshItems  int
	ExclusionWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxDueCards <= 0 {
		c.MaxDueCards = 50
	}
	if c.MaxFreshItems <= 0 {
		c.MaxFreshItems = 20
	}
	if c.ExclusionWindow <= 0 {
		c.ExclusionWindow = 6 * time.Hour
	}
	return c
}

// Builder is the CandidateBuilder.
type Builder struct {
	cfg    Config
	source ProblemSource
}

// New builds a Builder over source.
func New(cfg Config, source ProblemSource) *Builder {
	return &Builder{cfg: cfg.withDefaults(), source: source}
}

// Candidate is one problem eligible for recommendation, tagged with
// whether it came from the due-review pool or the fresh-discovery pool.
type Candidate struct {
	ProblemID string
	FromCard  bool
	Card      *domain.Card
}

// Build assembles the candidate pool for userID at now, excluding
// anything reviewed within the configured exclusion window.
func (b *Builder) Build(ctx context.Context, userID string, now time.Time) ([]Candidate, error) {
	excluded, err := b.source.RecentlyExcluded(ctx, userID, b.cfg.ExclusionWindow)
	if err != nil {
		return nil, domain.NewError("BuildCandidates", domain.KindTransient, userID, err)
	}

	due, err := b.source.DueCards(ctx, userID, now)
	if err != nil {
		return nil, domain.NewError("BuildCandidates", domain.KindTransient, userID, err)
	}

	var out []Candidate
	for i := range due {
		card := due[i]
		if excluded[card.ProblemID] {
			continue
		}
		out = append(out, Candidate{ProblemID: card.ProblemID, FromCard: true, Card: &card})
		if len(out) >= b.cfg.MaxDueCards {
			break
		}
	}

	fresh, err := b.source.UnseenProblems(ctx, userID, b.cfg.MaxFreshItems*2)
	if err != nil {
		return nil, domain.NewError("BuildCandidates", domain.KindTransient, userID, err)
	}

	freshCount := 0
	for _, p := range fresh {
		if excluded[p.ID] {
			continue
		}
		out = append(out, Candidate{ProblemID: p.ID, FromCard: false})
		freshCount++
		if freshCount >= b.cfg.MaxFreshItems {
			break
		}
	}

	return out, nil
}
