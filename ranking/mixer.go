package ranking

import "github.com/codetop/reviewsched/domain"

// StrategyMixer allocates recommendation slots across learning-
// objective categories (e.g. "due_review", "weak_topic", "fresh_discovery",
// "streak_maintenance") per a fixed quota table, so a single
// high-scoring category can't crowd out the others. Grounded on
// orchestration's weighted-routing-table pattern (RoutingRules.ByTier)
// generalized from a routing lookup to a slot-quota lookup.
type StrategyMixer struct {
	quotas map[string]int
	total  int
}

// NewStrategyMixer builds a mixer from a category -> slot-count quota
// table. Quotas need not sum to the eventual output size; Mix stops
// once total is reached or input is exhausted.
func NewStrategyMixer(quotas map[string]int, total int) *StrategyMixer {
	if total <= 0 {
		total = 10
	}
	return &StrategyMixer{quotas: quotas, total: total}
}

// Mix takes pre-ranked items, already grouped by the caller into
// byCategory (each slice individually sorted best-first), and
// interleaves them according to the quota table until total slots are
// filled or every category is exhausted.
func (m *StrategyMixer) Mix(byCategory map[string][]domain.RecommendationItem) []domain.RecommendationItem {
	out := make([]domain.RecommendationItem, 0, m.total)
	taken := map[string]int{}
	cursor := map[string]int{}

	categories := make([]string, 0, len(m.quotas))
	for cat := range m.quotas {
		categories = append(categories, cat)
	}

	progressed := true
	for len(out) < m.total && progressed {
		progressed = false
		for _, cat := range categories {
			if len(out) >= m.total {
				break
			}
			quota := m.quotas[cat]
			if taken[cat] >= quota {
				continue
			}
			items := byCategory[cat]
			idx := cursor[cat]
			if idx >= len(items) {
				continue
			}
			out = append(out, items[idx])
			cursor[cat] = idx + 1
			taken[cat]++
			progressed = true
		}
	}

	// Backfill remaining slots from any category with leftover items,
	// ignoring quota, so a sparse category doesn't leave slots empty.
	if len(out) < m.total {
		for _, cat := range categories {
			items := byCategory[cat]
			idx := cursor[cat]
			for idx < len(items) && len(out) < m.total {
				out = append(out, items[idx])
				idx++
			}
			cursor[cat] = idx
		}
	}

	return out
}
