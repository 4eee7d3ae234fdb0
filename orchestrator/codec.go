package orchestrator

import (
	"encoding/json"

	"github.com/codetop/reviewsched/domain"
)

func decodeSubmitResult(rec *domain.IdempotencyRecord) (SubmitReviewResult, error) {
	var out SubmitReviewResult
	if err := json.Unmarshal(rec.Result, &out); err != nil {
		return SubmitReviewResult{}, domain.NewError("SubmitReview", domain.KindTransient, rec.RequestID, err)
	}
	return out, nil
}
