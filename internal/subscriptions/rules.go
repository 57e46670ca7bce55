package subscriptions

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/revofy/revofy-backend/pkg/enums"
)

// StatusSource says where an event's resulting status comes from.
type StatusSource int

const (
	// SourceIgnored events carry no subscription state and are acknowledged untouched.
	SourceIgnored StatusSource = iota
	// SourceActive events always yield active.
	SourceActive
	// SourceExpired events always yield expired.
	SourceExpired
	// SourcePayload events take the normalized status attribute of the payload.
	SourcePayload
)

func (s StatusSource) String() string {
	switch s {
	case SourceActive:
		return "active"
	case SourceExpired:
		return "expired"
	case SourcePayload:
		return "payload"
	default:
		return "ignored"
	}
}

var eventRules = map[enums.BillingEvent]StatusSource{
	enums.BillingEventSubscriptionCreated:        SourceActive,
	enums.BillingEventSubscriptionUpdated:        SourceActive,
	enums.BillingEventSubscriptionPaymentSuccess: SourceActive,
	enums.BillingEventOrderCreated:               SourceActive,

	enums.BillingEventSubscriptionExpired:   SourceExpired,
	enums.BillingEventSubscriptionCancelled: SourceExpired,
	enums.BillingEventSubscriptionPaused:    SourceExpired,

	enums.BillingEventSubscriptionResumed:          SourcePayload,
	enums.BillingEventSubscriptionUnpaused:         SourcePayload,
	enums.BillingEventSubscriptionPaymentFailed:    SourcePayload,
	enums.BillingEventSubscriptionPaymentRecovered: SourcePayload,
	enums.BillingEventSubscriptionPaymentRefunded:  SourcePayload,
	enums.BillingEventOrderRefunded:                SourcePayload,

	enums.BillingEventLicenseKeyCreated:  SourceIgnored,
	enums.BillingEventLicenseKeyUpdated:  SourceIgnored,
	enums.BillingEventAffiliateActivated: SourceIgnored,
}

// ValidateRules checks that the rule table and the provider vocabulary cover
// each other exactly. It reports every gap at once.
func ValidateRules() error {
	return validateRules(eventRules, enums.BillingEventVocabulary)
}

func validateRules(rules map[enums.BillingEvent]StatusSource, vocabulary []enums.BillingEvent) error {
	var err error
	known := make(map[enums.BillingEvent]struct{}, len(vocabulary))
	for _, event := range vocabulary {
		known[event] = struct{}{}
		if _, ok := rules[event]; !ok {
			err = multierr.Append(err, fmt.Errorf("billing event %q has no status rule", event))
		}
	}
	for event := range rules {
		if _, ok := known[event]; !ok {
			err = multierr.Append(err, fmt.Errorf("status rule for unknown billing event %q", event))
		}
	}
	return err
}

func ruleFor(event enums.BillingEvent) (StatusSource, bool) {
	source, ok := eventRules[event]
	return source, ok
}

// DeriveStatus maps an event and its payload status onto the canonical status.
// ok is false for events without subscription state, including unknown ones.
func DeriveStatus(event enums.BillingEvent, payloadStatus string) (enums.SubscriptionStatus, bool) {
	source, found := ruleFor(event)
	if !found {
		return enums.SubscriptionStatusNone, false
	}
	switch source {
	case SourceActive:
		return enums.SubscriptionStatusActive, true
	case SourceExpired:
		return enums.SubscriptionStatusExpired, true
	case SourcePayload:
		return enums.NormalizeProviderStatus(payloadStatus), true
	default:
		return enums.SubscriptionStatusNone, false
	}
}

// ResetsMonthlyUsage reports whether the event marks a paid renewal.
func ResetsMonthlyUsage(event enums.BillingEvent) bool {
	return event == enums.BillingEventSubscriptionPaymentSuccess
}
