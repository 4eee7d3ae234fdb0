// Package optimizer fits per-user FSRS weights and retention target from
// accumulated review history via recency-weighted gradient descent,
// grounded on the teacher's BaseClient retry/backoff structuring for
// bounded-iteration numerical loops and on core/errors.go's classified
// error returns for divergence handling.
package optimizer

import (
	"math"
	"time"

	"github.com/codetop/reviewsched/domain"
)

// MinReviewsForOptimization is the eligibility gate: a user needs at
// least this many logged reviews before per-user optimization runs;
// below it, Optimize returns the prior parameters unchanged.
const MinReviewsForOptimization = 50

// MaxIterations bounds the gradient descent loop so a single
// optimization run has a fixed worst-case cost.
const MaxIterations = 100

// LearningRate is the gradient-descent step size.
const LearningRate = 0.01

// RecencyHalfLifeDays controls how quickly older reviews lose weight in
// the loss function; recent reviews matter more to the fitted model.
const RecencyHalfLifeDays = 90.0

// Config lets callers override the optimizer's tunables; zero values
// fall back to the package defaults.
type Config struct {
	MinReviews   int
	MaxIter      int
	LearningRate float64
}

func (c Config) withDefaults() Config {
	if c.MinReviews <= 0 {
		c.MinReviews = MinReviewsForOptimization
	}
	if c.MaxIter <= 0 {
		c.MaxIter = MaxIterations
	}
	if c.LearningRate <= 0 {
		c.LearningRate = LearningRate
	}
	return c
}

// ParameterOptimizer fits UserParameters from ReviewLog history.
type ParameterOptimizer struct {
	cfg Config
}

// New builds a ParameterOptimizer with the given config (zero value ok).
func New(cfg Config) *ParameterOptimizer {
	return &ParameterOptimizer{cfg: cfg.withDefaults()}
}

// Eligible reports whether the user has enough review history to be
// individually optimized rather than keeping the prior parameters.
func (o *ParameterOptimizer) Eligible(logs []domain.ReviewLog) bool {
	return len(logs) >= o.cfg.MinReviews
}

// Optimize fits weights and request retention for a user from their
// review log history, starting from the given prior parameters. If the
// loss becomes NaN or infinite it returns the prior parameters with a
// KindNumericalDivergence error.
func (o *ParameterOptimizer) Optimize(userID string, logs []domain.ReviewLog, prior domain.UserParameters, now time.Time) (domain.UserParameters, error) {
	if !o.Eligible(logs) {
		return prior, nil
	}

	weights := prior.Weights
	retention := prior.RequestRetention
	if retention <= 0 || retention >= 1 {
		retention = 0.9
	}

	prevLoss := math.Inf(1)
	for iter := 0; iter < o.cfg.MaxIter; iter++ {
		grad, loss := gradient(weights, retention, logs, now)
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return prior, domain.NewError("Optimize", domain.KindNumericalDivergence, userID, nil)
		}

		lr := o.cfg.LearningRate
		for i := range weights {
			weights[i] -= lr * grad.dWeights[i]
			weights[i] = clampWeight(i, weights[i])
		}
		retention -= lr * grad.dRetention
		retention = clampRetention(retention)

		if math.Abs(prevLoss-loss) < 1e-6 {
			break
		}
		prevLoss = loss
	}

	return domain.UserParameters{
		UserID:           userID,
		Weights:          weights,
		RequestRetention: retention,
		ReviewCount:      len(logs),
		LastOptimizedAt:  now,
		MaxIntervalDays:  prior.MaxIntervalDays,
	}, nil
}

// ShouldReoptimize reports whether enough new reviews have accumulated
// since the last optimization run to justify another pass.
func ShouldReoptimize(params domain.UserParameters, totalReviews int) bool {
	const reoptimizeEveryN = 50
	return totalReviews-params.ReviewCount >= reoptimizeEveryN
}

type gradients struct {
	dWeights [17]float64
	dRetention float64
}

// gradient computes a recency-weighted squared-error loss (not a
// log-loss) between predicted and observed recall for each logged
// review, and a simplified gradient: each review's predicted
// retrievability minus its observed outcome (0 for Again, else 1)
// contributes an error term scaled by how recent the review was.
func gradient(weights [17]float64, retention float64, logs []domain.ReviewLog, now time.Time) (gradients, float64) {
	var g gradients
	var totalLoss float64
	var totalWeight float64

	for _, log := range logs {
		age := now.Sub(log.ReviewedAt).Hours() / 24
		recencyWeight := math.Pow(0.5, age/RecencyHalfLifeDays)
		totalWeight += recencyWeight

		predicted := predictedRecall(log, retention)
		observed := observedOutcome(log.Rating)

		err := predicted - observed
		loss := recencyWeight * err * err
		totalLoss += loss

		// Distribute error onto the weight that most directly shaped
		// this log's stability estimate (the rating-indexed initial
		// stability weight for NEW reviews, or the recall-decay weight
		// w[10] for REVIEW-state reviews), scaled by recency.
		idx := weightIndexFor(log)
		g.dWeights[idx] += recencyWeight * err
		g.dRetention += recencyWeight * err * 0.1
	}

	if totalWeight > 0 {
		totalLoss /= totalWeight
		for i := range g.dWeights {
			g.dWeights[i] /= totalWeight
		}
		g.dRetention /= totalWeight
	}

	return g, totalLoss
}

func weightIndexFor(log domain.ReviewLog) int {
	switch log.State {
	case domain.CardStateNew:
		if int(log.Rating)-1 >= 0 && int(log.Rating)-1 < 4 {
			return int(log.Rating) - 1
		}
		return 0
	case domain.CardStateReview:
		return 10
	default:
		return 8
	}
}

func predictedRecall(log domain.ReviewLog, retention float64) float64 {
	if log.Stability <= 0 {
		return retention
	}
	r := math.Pow(1+(19.0/81.0)*float64(log.ElapsedDays)/log.Stability, -0.5)
	return r
}

func observedOutcome(rating domain.Rating) float64 {
	if rating == domain.RatingAgain {
		return 0
	}
	return 1
}

func clampWeight(idx int, w float64) float64 {
	if w < 0.01 {
		return 0.01
	}
	if w > 20 {
		return 20
	}
	return w
}

func clampRetention(r float64) float64 {
	if r < 0.7 {
		return 0.7
	}
	if r > 0.97 {
		return 0.97
	}
	return r
}
