package pipeline

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TokenEstimator counts prompt tokens for the soft budget accounting. The
// encoder loads lazily; if the encoding data is unavailable the estimator
// falls back to a bytes/4 heuristic rather than failing the request.
type TokenEstimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTokenEstimator() *TokenEstimator {
	return &TokenEstimator{}
}

func (e *TokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err == nil {
			e.enc = enc
		}
	})
	if e.enc == nil {
		return len(text)/4 + 1
	}
	return len(e.enc.Encode(text, nil, nil))
}

// BudgetExhausted applies the soft token-budget rule: a request only stops
// when the budget has been overrun past the configured overage allowance.
// Small overruns are tracked and reported, not enforced.
func BudgetExhausted(total, used, overageAllowance int) bool {
	if total <= 0 {
		return false
	}
	if used < 0 {
		used = 0
	}
	if overageAllowance < 0 {
		overageAllowance = 0
	}
	return total-used+overageAllowance <= 0
}
