package models

import "context"

// UserStore is the persistence contract the tier resolver needs.
// Implementations must make DowngradeTrial a compare-and-set: the update
// applies only while the stored status is still "trial", so concurrent
// observers of an expired trial apply the side effect exactly once.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)

	// DowngradeTrial atomically sets tier=free, status=active for the user
	// if and only if their status is still trial. Returns true when this
	// call performed the transition.
	DowngradeTrial(ctx context.Context, id string) (bool, error)
}

// RuleStore is the persistence contract the alert pipeline needs.
type RuleStore interface {
	GetRule(ctx context.Context, ruleID string) (*AlertRule, error)
	ActiveRulesForBeach(ctx context.Context, beachID string) ([]AlertRule, error)
	ActiveRuleCount(ctx context.Context, userID string) (int, error)
	CreateRule(ctx context.Context, rule *AlertRule) error
	SetRuleActive(ctx context.Context, ruleID string, active bool) error
}

// BeachStore lists the beaches the ingestion sweep covers.
type BeachStore interface {
	ListActiveBeaches(ctx context.Context) ([]Beach, error)
	GetBeach(ctx context.Context, id string) (*Beach, error)
}
