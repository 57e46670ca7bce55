package enums

import (
	"fmt"
	"strings"
)

// SubscriptionStatus is the canonical local subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusOnTrial  SubscriptionStatus = "on_trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusNone,
	SubscriptionStatusOnTrial,
	SubscriptionStatusActive,
	SubscriptionStatusPastDue,
	SubscriptionStatusCanceled,
	SubscriptionStatusExpired,
}

// providerStatusAliases folds the billing provider's status vocabulary into the canonical set.
var providerStatusAliases = map[string]SubscriptionStatus{
	"on_trial":  SubscriptionStatusOnTrial,
	"active":    SubscriptionStatusActive,
	"past_due":  SubscriptionStatusPastDue,
	"unpaid":    SubscriptionStatusPastDue,
	"cancelled": SubscriptionStatusCanceled,
	"canceled":  SubscriptionStatusCanceled,
	"expired":   SubscriptionStatusExpired,
	"paused":    SubscriptionStatusExpired,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsEntitled reports whether the status exempts the account from quota enforcement.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusOnTrial
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}

// NormalizeProviderStatus maps a provider status string to the canonical set.
// Unknown or empty values map to none.
func NormalizeProviderStatus(value string) SubscriptionStatus {
	if status, ok := providerStatusAliases[strings.ToLower(strings.TrimSpace(value))]; ok {
		return status
	}
	return SubscriptionStatusNone
}
