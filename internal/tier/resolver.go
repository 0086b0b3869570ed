// Package tier resolves a user's effective subscription tier at request
// time, applying the trial-expiry downgrade lazily.
package tier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	gateerrors "github.com/shorewatch/shorewatch/internal/errors"
	"github.com/shorewatch/shorewatch/internal/metrics"
	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

// TrialGrantTier is what an active trial unlocks: full business-equivalent
// access, without mutating the stored tier.
const TrialGrantTier = tiers.TierBusiness

// Access is the resolved entitlement for one request.
type Access struct {
	UserID     string
	StoredTier tiers.Tier
	// Effective is the tier every gate decision must use. During an active
	// trial this is TrialGrantTier regardless of the stored tier.
	Effective tiers.Tier
	Status    models.SubscriptionStatus
	// InTrial reports an active (unexpired) trial.
	InTrial bool
	// HardDenied is set for canceled and past-due subscriptions: every
	// tier-gated feature is refused, while free-tier features stay
	// available through the free effective tier.
	HardDenied bool
	// DowngradedNow reports that this call observed trial expiry and
	// applied the one-way downgrade.
	DowngradedNow bool
}

// Resolver computes effective tiers. It must run before the quota tracker
// on every gated request, because the tier it returns decides which limits
// apply.
type Resolver struct {
	users models.UserStore
	now   func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates a resolver over the given user store.
func NewResolver(users models.UserStore, opts ...Option) *Resolver {
	r := &Resolver{users: users, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Effective resolves the user's entitlement at this instant.
//
// Trial expiry is observed lazily here, not by a background sweep. The
// downgrade (tier=free, status=active) is a one-way, idempotent
// transition: the store applies it compare-and-set style, so of N
// concurrent requests racing past the expiry instant exactly one performs
// the side effect and the rest observe the already-downgraded row.
func (r *Resolver) Effective(ctx context.Context, userID string) (Access, error) {
	user, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return Access{}, fmt.Errorf("resolve tier for %s: %w", userID, err)
	}

	access := Access{
		UserID:     user.ID,
		StoredTier: user.Tier,
		Effective:  user.Tier,
		Status:     user.Status,
	}

	switch user.Status {
	case models.StatusCanceled, models.StatusPastDue:
		access.HardDenied = true
		access.Effective = tiers.TierFree
		return access, nil
	}

	if user.Tier == tiers.TierFree && user.Status == models.StatusTrial && user.TrialEndDate != nil {
		if r.now().After(*user.TrialEndDate) {
			applied, err := r.users.DowngradeTrial(ctx, user.ID)
			if err != nil {
				return Access{}, fmt.Errorf("trial downgrade for %s: %w", user.ID, err)
			}
			if applied {
				// Logged once per occurrence; the losing racers take the
				// idempotent no-op path.
				metrics.TrialDowngrades.Inc()
				log.Info().
					Str("userID", user.ID).
					Time("trialEnd", *user.TrialEndDate).
					Msg("Trial expired, downgraded to free tier")
			}
			access.Effective = tiers.TierFree
			access.Status = models.StatusActive
			access.DowngradedNow = applied
			return access, nil
		}

		access.InTrial = true
		access.Effective = TrialGrantTier
		return access, nil
	}

	return access, nil
}

// RequireTier returns access when the user's effective tier is at least
// required, or the matching gate error.
func (r *Resolver) RequireTier(ctx context.Context, userID string, required tiers.Tier) (Access, error) {
	access, err := r.Effective(ctx, userID)
	if err != nil {
		return Access{}, err
	}
	if access.HardDenied && required != tiers.TierFree {
		return access, gateerrors.NewInsufficientTier("tier.require", required)
	}
	if !access.Effective.AtLeast(required) {
		return access, gateerrors.NewInsufficientTier("tier.require", required)
	}
	return access, nil
}
