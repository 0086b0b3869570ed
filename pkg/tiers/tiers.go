// Package tiers defines the shared subscription tier contracts.
//
// This package exists so external surfaces (billing UI, upgrade prompts,
// embeddable widgets) can render tier metadata without importing internal
// packages.
package tiers

import "fmt"

// Tier represents a subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierConsumer   Tier = "consumer"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// tierRank defines the total order over tiers. Higher rank grants more.
var tierRank = map[Tier]int{
	TierFree:       0,
	TierConsumer:   1,
	TierBusiness:   2,
	TierEnterprise: 3,
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t grants at least what other grants.
func (t Tier) AtLeast(other Tier) bool {
	return tierRank[t] >= tierRank[other]
}

// Next returns the next tier in the upgrade path, or "" for enterprise.
func (t Tier) Next() Tier {
	switch t {
	case TierFree:
		return TierConsumer
	case TierConsumer:
		return TierBusiness
	case TierBusiness:
		return TierEnterprise
	default:
		return ""
	}
}

// ParseTier validates a stored tier string. Unknown values are a
// configuration defect, not a runtime panic.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// Limits describes the usage ceilings and feature flags for one tier.
// A limit of 0 means unlimited, except where a feature flag already
// removes access entirely (free/consumer API ceilings are irrelevant
// because APIAccess is false).
type Limits struct {
	// DailyNotifications caps alert notifications per calendar day.
	DailyNotifications int `json:"dailyNotifications"`

	// ActiveRules caps concurrently active alert rules (0 = unlimited).
	// This is a live count, not a windowed counter.
	ActiveRules int `json:"activeRules"`

	// APIAccess gates the public API entirely. When false no API counter
	// is consulted or incremented.
	APIAccess bool `json:"apiAccess"`

	// HourlyAPICalls caps API calls over a rolling hour (0 = unlimited).
	HourlyAPICalls int `json:"hourlyApiCalls"`

	// DailyAPICalls caps API calls per calendar day (0 = unlimited).
	DailyAPICalls int `json:"dailyApiCalls"`

	// SMSNotifications gates the SMS delivery channel.
	SMSNotifications bool `json:"smsNotifications"`

	// EmailNotifications gates the email delivery channel.
	EmailNotifications bool `json:"emailNotifications"`

	// DataRefreshMinutes is the condition refresh cadence for this tier.
	DataRefreshMinutes int `json:"dataRefreshMinutes"`

	// PriceMonthly is the listed monthly price in USD.
	PriceMonthly float64 `json:"priceMonthly"`
}

// defaultLimits is the canonical per-tier limit table. Adding a tier is a
// data change here, not a code change at every call site.
var defaultLimits = map[Tier]Limits{
	TierFree: {
		DailyNotifications: 10,
		ActiveRules:        3,
		APIAccess:          false,
		HourlyAPICalls:     0,
		DailyAPICalls:      0,
		SMSNotifications:   false,
		EmailNotifications: true,
		DataRefreshMinutes: 60,
		PriceMonthly:       0,
	},
	TierConsumer: {
		DailyNotifications: 50,
		ActiveRules:        10,
		APIAccess:          false,
		HourlyAPICalls:     0,
		DailyAPICalls:      0,
		SMSNotifications:   true,
		EmailNotifications: true,
		DataRefreshMinutes: 30,
		PriceMonthly:       4.99,
	},
	TierBusiness: {
		DailyNotifications: 500,
		ActiveRules:        0, // unlimited
		APIAccess:          true,
		HourlyAPICalls:     1000,
		DailyAPICalls:      10000,
		SMSNotifications:   true,
		EmailNotifications: true,
		DataRefreshMinutes: 15,
		PriceMonthly:       49,
	},
	TierEnterprise: {
		DailyNotifications: 5000,
		ActiveRules:        0, // unlimited
		APIAccess:          true,
		HourlyAPICalls:     0, // unlimited, server-level throttling only
		DailyAPICalls:      100000,
		SMSNotifications:   true,
		EmailNotifications: true,
		DataRefreshMinutes: 5,
		PriceMonthly:       199,
	},
}

// LimitsFor returns the limit table entry for a tier. Unknown tiers fall
// back to free limits rather than granting anything.
func LimitsFor(t Tier) Limits {
	if l, ok := defaultLimits[t]; ok {
		return l
	}
	return defaultLimits[TierFree]
}

// AllLimits returns a copy of the full tier table for read-only display.
func AllLimits() map[Tier]Limits {
	out := make(map[Tier]Limits, len(defaultLimits))
	for t, l := range defaultLimits {
		out[t] = l
	}
	return out
}

// Order returns tiers from lowest to highest.
func Order() []Tier {
	return []Tier{TierFree, TierConsumer, TierBusiness, TierEnterprise}
}

// ChannelAllowed reports whether a tier may deliver on the given channel.
// Push rides on the same gate as email: available to every tier.
func ChannelAllowed(t Tier, c Channel) bool {
	l := LimitsFor(t)
	switch c {
	case ChannelEmail, ChannelPush:
		return l.EmailNotifications
	case ChannelSMS:
		return l.SMSNotifications
	default:
		return false
	}
}

// RequiredTierForChannel names the lowest tier that may use a channel.
func RequiredTierForChannel(c Channel) Tier {
	for _, t := range Order() {
		if ChannelAllowed(t, c) {
			return t
		}
	}
	return TierEnterprise
}
