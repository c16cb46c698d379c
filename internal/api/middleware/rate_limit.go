package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ayo6706/clubledger/internal/api/problem"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/go-chi/httprate"
)

const rateWindow = time.Second

func limiter(rps int, scope, subject string, keyFuncs ...httprate.KeyFunc) func(http.Handler) http.Handler {
	if len(keyFuncs) == 0 {
		keyFuncs = []httprate.KeyFunc{httprate.KeyByIP}
	}
	return httprate.Limit(rps, rateWindow,
		httprate.WithKeyFuncs(keyFuncs...),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			observability.IncrementRateLimited(scope)
			w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
			problem.Write(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), "",
				fmt.Sprintf("Rate limit of %d req/s exceeded for this %s", rps, subject))
		}),
	)
}

// PublicRateLimiter limits unauthenticated routes per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return limiter(rps, "public", "IP")
}

// AuthRateLimiter limits authenticated routes per member, falling back to IP.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return limiter(rps, "member", "member", func(r *http.Request) (string, error) {
		if memberID := UserIDFromContext(r.Context()); memberID != "" {
			return memberID, nil
		}
		return httprate.KeyByIP(r)
	})
}

// WebhookRateLimiter limits gateway deliveries across all senders. The
// gateway redelivers on 429.
func WebhookRateLimiter(rps int) func(http.Handler) http.Handler {
	return limiter(rps, "webhook", "endpoint", httprate.KeyByEndpoint)
}
