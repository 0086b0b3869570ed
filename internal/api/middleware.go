package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/shorewatch/shorewatch/internal/auth"
	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/quota"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func observeRequest(req *http.Request, status int) {
	endpoint := req.URL.Path
	if pattern := req.Pattern; pattern != "" {
		endpoint = pattern
	}
	metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", status).
		Msg("Request handled")
}

// authenticated verifies the bearer token and stores the user ID on the
// request context.
func (r *Router) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims, err := r.verifier.Verify(auth.FromRequest(req))
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, req.WithContext(auth.WithUserID(req.Context(), claims.Subject)))
	}
}

// apiGated enforces the programmatic API quota: the feature flag, the
// daily ceiling, then the hourly ceiling. One allowed call consumes one
// unit from both windows. Rate limit headers go out on every response
// that reached a counter.
func (r *Router) apiGated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		userID, _ := auth.UserID(req.Context())
		access, err := r.resolver.Effective(req.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}

		res, err := r.tracker.CheckAPI(req.Context(), userID, access.Effective)
		setRateLimitHeaders(w, res)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := r.tracker.Increment(req.Context(), userID, quota.KindDailyAPICalls); err != nil {
			log.Error().Err(err).Str("userID", userID).Msg("Failed to record daily api usage")
		}
		if err := r.tracker.Increment(req.Context(), userID, quota.KindHourlyAPICalls); err != nil {
			log.Error().Err(err).Str("userID", userID).Msg("Failed to record hourly api usage")
		}
		next(w, req)
	}
}

func setRateLimitHeaders(w http.ResponseWriter, res quota.Result) {
	if res.Limit == 0 && !res.Unlimited {
		return
	}
	if res.Unlimited {
		w.Header().Set("X-RateLimit-Limit", "unlimited")
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	if res.ResetAt != nil {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	}
}
