package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const maxTraceIDLength = 64

// TraceMiddleware takes the caller's X-Trace-ID (or X-Request-ID) when it is
// well formed and mints one otherwise. The id is echoed on the response.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = r.Header.Get("X-Request-ID")
		}
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)
		ctx := context.WithValue(r.Context(), traceContextKey, traceID)
		ctx = context.WithValue(ctx, requestInfoContextKey, &requestInfo{})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validTraceID accepts ids that are safe to log and echo in a header.
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

const requestInfoContextKey contextKey = "request_info"

// requestInfo carries facts learned by inner middleware back out to the
// access log. It is created per request by TraceMiddleware.
type requestInfo struct {
	principal *Principal
}

func infoFromContext(ctx context.Context) *requestInfo {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		return info
	}
	return nil
}

func recordPrincipal(ctx context.Context, p Principal) {
	if info := infoFromContext(ctx); info != nil {
		info.principal = &p
	}
}
