// Package scheduler implements the FSRS-style spaced repetition core:
// given a card's current state and a submitted rating, it computes the
// next stability, difficulty, state and due date.
//
// The state-dispatch and pre-update-value-snapshotting structure here is
// grounded on the fsrs-scheduler reference implementation in the example
// pack, adapted down from its multi-step learning/relearning model to
// the simpler four-state table: NEW -> LEARNING -> REVIEW, with lapses
// routing REVIEW -> RELEARNING -> REVIEW. There are no learning sub-steps:
// Again always keeps a NEW/LEARNING card in (re)learning; Hard keeps a
// NEW card in LEARNING and a LEARNING/RELEARNING card there too; only
// Good and Easy graduate a LEARNING/RELEARNING card to REVIEW, while on
// a NEW card only Easy graduates straight to REVIEW.
package scheduler

import (
	"math"
	"time"

	"github.com/codetop/reviewsched/domain"
)

const decayConstant = -0.5
const factor = 19.0 / 81.0 // 0.9 ** (1/decay) - 1, FSRS-4.5 constant

// Result is the outcome of reviewing a card: the updated card fields
// the caller should persist.
type Result struct {
	State         domain.CardState
	Stability     float64
	Difficulty    float64
	ScheduledDays int
	Due           time.Time
	ElapsedDays   int
	Reps          int
	Lapses        int
}

// ReviewCard applies rating to card under params at time now and returns
// the next scheduling state. It does not mutate card.
func ReviewCard(params domain.UserParameters, card domain.Card, rating domain.Rating, now time.Time) (Result, error) {
	if !rating.Valid() {
		return Result{}, domain.NewError("ReviewCard", domain.KindInvalidInput, card.ProblemID, nil)
	}

	elapsed := elapsedDays(card, now)
	card.ElapsedDays = elapsed

	switch card.State {
	case domain.CardStateNew:
		return reviewNew(params, card, rating, now)
	case domain.CardStateLearning, domain.CardStateRelearning:
		return reviewLearning(params, card, rating, now)
	case domain.CardStateReview:
		return reviewReview(params, card, rating, now)
	default:
		return Result{}, domain.NewError("ReviewCard", domain.KindInvalidInput, card.ProblemID, nil)
	}
}

// ElapsedDays reports the whole days since card's last review as of
// now (0 if it has never been reviewed). Exposed so callers can record
// the elapsed-days-at-time-of-review alongside a ReviewLog, since
// Result.ElapsedDays is always 0 (the card has just been reviewed)
// rather than the interval that just elapsed.
func ElapsedDays(card domain.Card, now time.Time) int {
	return elapsedDays(card, now)
}

func elapsedDays(card domain.Card, now time.Time) int {
	if card.LastReview == nil {
		return 0
	}
	d := now.Sub(*card.LastReview)
	days := int(d.Hours() / 24)
	if days < 0 {
		days = 0
	}
	return days
}

func reviewNew(params domain.UserParameters, card domain.Card, rating domain.Rating, now time.Time) (Result, error) {
	w := params.Weights
	s := initialStability(w, rating)
	d := initialDifficulty(w, rating)
	d = clampDifficulty(d)

	reps := card.Reps + 1

	// Only Easy graduates a NEW card straight to REVIEW with a bonus
	// interval; Again/Hard/Good stay in LEARNING for another
	// short-interval pass.
	if rating != domain.RatingEasy {
		return Result{
			State:         domain.CardStateLearning,
			Stability:     s,
			Difficulty:    d,
			ScheduledDays: 0,
			Due:           now.Add(10 * time.Minute),
			ElapsedDays:   0,
			Reps:          reps,
			Lapses:        card.Lapses,
		}, nil
	}

	interval := clampInterval(nextInterval(params, s)+1, params.MaxIntervalDays)
	return Result{
		State:         domain.CardStateReview,
		Stability:     s,
		Difficulty:    d,
		ScheduledDays: interval,
		Due:           now.AddDate(0, 0, interval),
		ElapsedDays:   0,
		Reps:          reps,
		Lapses:        card.Lapses,
	}, nil
}

func reviewLearning(params domain.UserParameters, card domain.Card, rating domain.Rating, now time.Time) (Result, error) {
	w := params.Weights
	preS := card.Stability
	preD := card.Difficulty

	s := shortTermStability(w, preS, rating)
	d := nextDifficulty(w, preD, rating)
	d = clampDifficulty(d)

	reps := card.Reps + 1

	if rating == domain.RatingAgain || rating == domain.RatingHard {
		// Stay in (re)learning; short interval retry. Hard doesn't
		// graduate, same as Again, it just doesn't reset stability/reps
		// the way a lapse would.
		state := domain.CardStateLearning
		if card.State == domain.CardStateRelearning {
			state = domain.CardStateRelearning
		}
		return Result{
			State:         state,
			Stability:     s,
			Difficulty:    d,
			ScheduledDays: 0,
			Due:           now.Add(10 * time.Minute),
			ElapsedDays:   0,
			Reps:          reps,
			Lapses:        card.Lapses,
		}, nil
	}

	// Only Good/Easy graduate to REVIEW.
	interval := nextInterval(params, s)
	if rating == domain.RatingEasy {
		interval = clampInterval(interval+1, params.MaxIntervalDays)
	}
	return Result{
		State:         domain.CardStateReview,
		Stability:     s,
		Difficulty:    d,
		ScheduledDays: interval,
		Due:           now.AddDate(0, 0, interval),
		ElapsedDays:   0,
		Reps:          reps,
		Lapses:        card.Lapses,
	}, nil
}

func reviewReview(params domain.UserParameters, card domain.Card, rating domain.Rating, now time.Time) (Result, error) {
	w := params.Weights
	preS := card.Stability
	preD := card.Difficulty
	elapsed := card.ElapsedDays
	r := retrievability(elapsed, preS)

	reps := card.Reps + 1

	if rating == domain.RatingAgain {
		newS := stabilityAfterForgettingCapped(w, preS, preD, r)
		d := clampDifficulty(nextDifficulty(w, preD, rating))
		return Result{
			State:         domain.CardStateRelearning,
			Stability:     newS,
			Difficulty:    d,
			ScheduledDays: 0,
			Due:           now.Add(10 * time.Minute),
			ElapsedDays:   0,
			Reps:          reps,
			Lapses:        card.Lapses + 1,
		}, nil
	}

	hardS := stabilityAfterRecall(w, preS, preD, r, domain.RatingHard)
	goodS := stabilityAfterRecall(w, preS, preD, r, domain.RatingGood)
	easyS := stabilityAfterRecall(w, preS, preD, r, domain.RatingEasy)

	hardIvl := clampInterval(nextInterval(params, hardS), params.MaxIntervalDays)
	goodIvl := clampInterval(nextInterval(params, goodS), params.MaxIntervalDays)
	easyIvl := clampInterval(nextInterval(params, easyS), params.MaxIntervalDays)

	// Enforce strict ordering: hard <= good < easy.
	if hardIvl > goodIvl {
		hardIvl = goodIvl
	}
	if easyIvl <= goodIvl {
		easyIvl = goodIvl + 1
	}

	var (
		chosenS   float64
		chosenIvl int
	)
	switch rating {
	case domain.RatingHard:
		chosenS, chosenIvl = hardS, hardIvl
	case domain.RatingGood:
		chosenS, chosenIvl = goodS, goodIvl
	case domain.RatingEasy:
		chosenS, chosenIvl = easyS, easyIvl
	}

	d := clampDifficulty(nextDifficulty(w, preD, rating))

	return Result{
		State:         domain.CardStateReview,
		Stability:     chosenS,
		Difficulty:    d,
		ScheduledDays: chosenIvl,
		Due:           now.AddDate(0, 0, chosenIvl),
		ElapsedDays:   0,
		Reps:          reps,
		Lapses:        card.Lapses,
	}, nil
}

// --- FSRS-4.5 weight formulas ---

func initialStability(w [17]float64, rating domain.Rating) float64 {
	s := w[int(rating)-1]
	if s < 0.1 {
		s = 0.1
	}
	return s
}

func initialDifficulty(w [17]float64, rating domain.Rating) float64 {
	d := w[4] - math.Exp(w[5]*(float64(rating)-1)) + 1
	return d
}

func nextDifficulty(w [17]float64, preD float64, rating domain.Rating) float64 {
	deltaD := -w[6] * (float64(rating) - 3)
	meanReversion := w[7]*initialDifficulty(w, domain.RatingEasy) + (1-w[7])*(preD+deltaD)
	return meanReversion
}

func clampDifficulty(d float64) float64 {
	if d < 1 {
		return 1
	}
	if d > 10 {
		return 10
	}
	return d
}

// retrievability is the probability of recall given elapsedDays since
// the last review and the card's current stability.
func retrievability(elapsedDays int, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	return math.Pow(1+factor*float64(elapsedDays)/stability, decayConstant)
}

func shortTermStability(w [17]float64, preS float64, rating domain.Rating) float64 {
	sincFactor := math.Exp(w[8] * (float64(rating) - 3 + w[9]))
	newS := preS * sincFactor
	if newS < 0.1 {
		newS = 0.1
	}
	return newS
}

func stabilityAfterRecall(w [17]float64, preS, preD, r float64, rating domain.Rating) float64 {
	hardPenalty := 1.0
	if rating == domain.RatingHard {
		hardPenalty = w[15]
	}
	easyBonus := 1.0
	if rating == domain.RatingEasy {
		easyBonus = w[16]
	}
	sInc := math.Exp(w[8]) *
		(11 - preD) *
		math.Pow(preS, -w[9]) *
		(math.Exp(w[10]*(1-r)) - 1) *
		hardPenalty *
		easyBonus
	newS := preS * (1 + sInc)
	if newS < 0.1 {
		newS = 0.1
	}
	return newS
}

func stabilityAfterForgettingCapped(w [17]float64, preS, preD, r float64) float64 {
	newS := w[11] *
		math.Pow(preD, -w[12]) *
		(math.Pow(preS+1, w[13]) - 1) *
		math.Exp(w[14] * (1 - r))
	if newS > preS {
		newS = preS
	}
	if newS < 0.1 {
		newS = 0.1
	}
	return newS
}

func nextInterval(params domain.UserParameters, stability float64) int {
	retention := params.RequestRetention
	if retention <= 0 || retention >= 1 {
		retention = 0.9
	}
	interval := (stability / factor) * (math.Pow(retention, 1/decayConstant) - 1)
	days := int(math.Round(interval))
	if days < 1 {
		days = 1
	}
	return days
}

func clampInterval(days, maxDays int) int {
	if maxDays <= 0 {
		maxDays = 36500
	}
	if days < 1 {
		return 1
	}
	if days > maxDays {
		return maxDays
	}
	return days
}
