package filter

import (
	"golang.org/x/time/rate"

	"srpcgo/message"
)

// RateLimitFilter vetoes calls once its token bucket runs dry. Grounded on
// the teacher's RateLimitMiddleware; generalized from an onion-style
// "reject, don't call next" decorator into a ServerBegin veto, since that
// is the hook the begin/end shape gives a filter to refuse a call before
// a handler runs. The limiter is built once, in NewRateLimitFilter, and
// shared across every call — a fresh bucket per call would defeat rate
// limiting entirely.
type RateLimitFilter struct {
	NopFilter
	limiter *rate.Limiter
}

// NewRateLimitFilter builds a token-bucket filter refilling at r tokens
// per second, up to burst tokens banked for a traffic spike.
func NewRateLimitFilter(r float64, burst int) *RateLimitFilter {
	return &RateLimitFilter{limiter: rate.NewLimiter(rate.Limit(r), burst)}
}

func (f *RateLimitFilter) ServerBegin(id CallID, data *message.ModuleData) bool {
	return f.limiter.Allow()
}
