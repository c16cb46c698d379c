package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/clubledger/internal/api/problem"
	"github.com/ayo6706/clubledger/internal/idempotency"
	"github.com/ayo6706/clubledger/internal/observability"
	"go.uber.org/zap"
)

const (
	maxKeyLength       = 200
	maxIdempotentBody  = 1 << 20
	idempotencyHeader  = "Idempotency-Key"
	replayHeader       = "X-Idempotent-Replay"
	defaultContentType = "application/json"
)

var idempotentMethods = map[string]struct{}{
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

type idempotencyGuard struct {
	store  *idempotency.Store
	logger *zap.Logger
}

// IdempotencyMiddleware enforces the Idempotency-Key contract on settlement
// requests. Keys are scoped to the authenticated member. A finished request
// is replayed verbatim, including payment declines; a 5xx releases the key so
// the client can retry with it.
func IdempotencyMiddleware(store *idempotency.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	g := idempotencyGuard{store: store, logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := idempotentMethods[r.Method]; !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(next, w, r)
		})
	}
}

func (g idempotencyGuard) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" {
		observability.IncrementIdempotencyEvent("missing_key")
		problem.Write(w, r, http.StatusBadRequest, problem.Type("idempotency/missing-key"), "", "Idempotency-Key header is required")
		return
	}
	if len(clientKey) > maxKeyLength {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("idempotency/invalid-key"), "", "Idempotency-Key is too long")
		return
	}
	key := scopedKey(UserIDFromContext(r.Context()), clientKey)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.Type("request/invalid-body"), "", "Failed to read request body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	reqHash := hashRequest(r.Method, r.URL.Path, body)

	rec, err := g.store.Lookup(r.Context(), key, reqHash)
	switch {
	case err == nil:
		observability.IncrementIdempotencyEvent("replay")
		respondFromRecord(w, clientKey, rec)
		return
	case errors.Is(err, idempotency.ErrHashMismatch):
		observability.IncrementIdempotencyEvent("hash_mismatch")
		problem.Write(w, r, http.StatusConflict, problem.Type("idempotency/key-conflict"), "",
			"Idempotency-Key was already used with a different request")
		return
	case errors.Is(err, idempotency.ErrInProgress):
		g.awaitOriginal(w, r, key, clientKey, reqHash, "replay_after_wait")
		return
	case !errors.Is(err, idempotency.ErrNotFound):
		observability.IncrementIdempotencyEvent("lookup_error")
		g.logger.Warn("idempotency lookup failed", zap.Error(err), zap.String("key", key))
	}

	reserved, err := g.store.Reserve(r.Context(), key, reqHash, r.Method, r.URL.Path)
	if err != nil {
		observability.IncrementIdempotencyEvent("reserve_error")
		g.logger.Error("idempotency reserve failed", zap.Error(err), zap.String("key", key))
		problem.Write(w, r, http.StatusServiceUnavailable, problem.Type("idempotency/unavailable"), "", "idempotency store unavailable")
		return
	}
	if !reserved {
		// Lost the race to a concurrent request with the same key.
		g.awaitOriginal(w, r, key, clientKey, reqHash, "replay_after_reserve")
		return
	}
	observability.IncrementIdempotencyEvent("reserved")

	recorder := &bodyRecorder{statusRecorder: statusRecorder{ResponseWriter: w}}
	next.ServeHTTP(recorder, r)
	g.settle(r, key, reqHash, recorder)
}

// awaitOriginal blocks until the request holding the key finishes and
// replays its response.
func (g idempotencyGuard) awaitOriginal(w http.ResponseWriter, r *http.Request, key, clientKey, reqHash, event string) {
	rec, err := g.store.WaitForCompletion(r.Context(), key, reqHash)
	if err == nil {
		observability.IncrementIdempotencyEvent(event)
		respondFromRecord(w, clientKey, rec)
		return
	}
	observability.IncrementIdempotencyEvent("in_progress_conflict")
	g.logger.Warn("idempotency wait failed", zap.Error(err), zap.String("key", key))
	problem.Write(w, r, http.StatusConflict, problem.Type("idempotency/in-progress"), "",
		"a request with this Idempotency-Key is still being processed")
}

// settle stores the handler's response, or releases the key on a server error.
func (g idempotencyGuard) settle(r *http.Request, key, reqHash string, rec *bodyRecorder) {
	status := rec.Status()
	if status >= http.StatusInternalServerError {
		if err := g.store.Release(r.Context(), key, reqHash); err != nil {
			g.logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
		}
		observability.IncrementIdempotencyEvent("released")
		return
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}
	if _, err := g.store.Finalize(r.Context(), key, reqHash, status, rec.body.Bytes(), contentType); err != nil {
		observability.IncrementIdempotencyEvent("finalize_error")
		g.logger.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key), zap.Int("status", status))
		return
	}
	observability.IncrementIdempotencyEvent("finalized")
}

func scopedKey(userID, clientKey string) string {
	if userID == "" {
		return "anon:" + clientKey
	}
	return userID + ":" + clientKey
}

// hashRequest fingerprints a request. JSON bodies are canonicalised first so
// a retry that only reorders keys or whitespace is not a conflict.
func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + "|" + path + "|"))
	h.Write(canonicalJSON(body))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalJSON(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return body
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

type bodyRecorder struct {
	statusRecorder
	body bytes.Buffer
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	br.body.Write(b)
	return br.statusRecorder.Write(b)
}

func respondFromRecord(w http.ResponseWriter, clientKey string, rec *idempotency.Record) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set(replayHeader, rec.ServedBy)
	w.Header().Set(idempotencyHeader, clientKey)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}
