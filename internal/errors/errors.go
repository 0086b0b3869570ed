// Package errors defines the structured error taxonomy for tier-gated
// requests: authentication failures, tier gates, quota exhaustion and
// rule configuration defects.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shorewatch/shorewatch/pkg/tiers"
)

// Base error types
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInsufficientTier   = errors.New("insufficient tier")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrFeatureUnavailable = errors.New("feature unavailable")
	ErrUnknownOperator    = errors.New("unknown rule operator")
	ErrInternal           = errors.New("internal error")
)

// Kind is the wire-visible error category.
type Kind string

const (
	KindAuthentication     Kind = "authentication_error"
	KindInsufficientTier   Kind = "insufficient_tier"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindFeatureUnavailable Kind = "feature_unavailable"
	KindUnknownOperator    Kind = "unknown_operator"
	KindInternal           Kind = "internal"
)

// GateError is a structured error for gated operations. It carries
// everything a caller needs to render "try again after X" or "upgrade
// to business" without re-querying.
type GateError struct {
	Kind         Kind
	Op           string // operation that was gated, e.g. "quota.check"
	Limit        int    // limit that was hit, when applicable
	Remaining    int
	ResetAt      *time.Time // when a windowed counter admits again
	RequiredTier tiers.Tier // lowest tier that unlocks the feature
	Err          error
}

func (e *GateError) Error() string {
	switch {
	case e.Kind == KindQuotaExceeded && e.ResetAt != nil:
		return fmt.Sprintf("%s: limit %d reached, resets at %s", e.Op, e.Limit, e.ResetAt.Format(time.RFC3339))
	case e.Kind == KindQuotaExceeded:
		return fmt.Sprintf("%s: limit %d reached", e.Op, e.Limit)
	case e.Kind == KindInsufficientTier && e.RequiredTier != "":
		return fmt.Sprintf("%s: requires %s tier or higher", e.Op, e.RequiredTier)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *GateError) Unwrap() error {
	return e.Err
}

// Is maps kinds onto the base error types so callers can use errors.Is
// without inspecting the struct.
func (e *GateError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindAuthentication
	case ErrInsufficientTier:
		return e.Kind == KindInsufficientTier
	case ErrQuotaExceeded:
		return e.Kind == KindQuotaExceeded
	case ErrFeatureUnavailable:
		return e.Kind == KindFeatureUnavailable
	case ErrUnknownOperator:
		return e.Kind == KindUnknownOperator
	}
	return errors.Is(e.Err, target)
}

// HTTPStatus distinguishes "exhausted" (429) from "not entitled" (403)
// from "not authenticated" (401).
func (e *GateError) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindInsufficientTier, KindFeatureUnavailable:
		return http.StatusForbidden
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewQuotaExceeded builds the denial for an exhausted windowed counter.
func NewQuotaExceeded(op string, limit int, resetAt *time.Time) *GateError {
	return &GateError{Kind: KindQuotaExceeded, Op: op, Limit: limit, Remaining: 0, ResetAt: resetAt}
}

// NewInsufficientTier builds the denial for a feature gated above the
// caller's effective tier.
func NewInsufficientTier(op string, required tiers.Tier) *GateError {
	return &GateError{Kind: KindInsufficientTier, Op: op, RequiredTier: required}
}

// NewFeatureUnavailable builds the denial for a feature the tier lacks
// entirely (no counter involved).
func NewFeatureUnavailable(op string, required tiers.Tier) *GateError {
	return &GateError{Kind: KindFeatureUnavailable, Op: op, RequiredTier: required}
}

// NewAuthentication wraps a credential failure.
func NewAuthentication(op string, err error) *GateError {
	return &GateError{Kind: KindAuthentication, Op: op, Err: err}
}

// IsQuotaExceeded reports whether err is a quota denial.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsTierDenied reports whether err is a tier or feature gate denial.
func IsTierDenied(err error) bool {
	return errors.Is(err, ErrInsufficientTier) || errors.Is(err, ErrFeatureUnavailable)
}

// AsGateError extracts a GateError when present.
func AsGateError(err error) (*GateError, bool) {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}
