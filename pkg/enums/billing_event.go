package enums

import "fmt"

// BillingEvent is a Lemon Squeezy webhook event name.
type BillingEvent string

const (
	BillingEventOrderCreated                 BillingEvent = "order_created"
	BillingEventOrderRefunded                BillingEvent = "order_refunded"
	BillingEventSubscriptionCreated          BillingEvent = "subscription_created"
	BillingEventSubscriptionUpdated          BillingEvent = "subscription_updated"
	BillingEventSubscriptionCancelled        BillingEvent = "subscription_cancelled"
	BillingEventSubscriptionResumed          BillingEvent = "subscription_resumed"
	BillingEventSubscriptionExpired          BillingEvent = "subscription_expired"
	BillingEventSubscriptionPaused           BillingEvent = "subscription_paused"
	BillingEventSubscriptionUnpaused         BillingEvent = "subscription_unpaused"
	BillingEventSubscriptionPaymentSuccess   BillingEvent = "subscription_payment_success"
	BillingEventSubscriptionPaymentFailed    BillingEvent = "subscription_payment_failed"
	BillingEventSubscriptionPaymentRecovered BillingEvent = "subscription_payment_recovered"
	BillingEventSubscriptionPaymentRefunded  BillingEvent = "subscription_payment_refunded"
	BillingEventLicenseKeyCreated            BillingEvent = "license_key_created"
	BillingEventLicenseKeyUpdated            BillingEvent = "license_key_updated"
	BillingEventAffiliateActivated           BillingEvent = "affiliate_activated"
)

// BillingEventVocabulary lists every event name the provider is known to deliver.
var BillingEventVocabulary = []BillingEvent{
	BillingEventOrderCreated,
	BillingEventOrderRefunded,
	BillingEventSubscriptionCreated,
	BillingEventSubscriptionUpdated,
	BillingEventSubscriptionCancelled,
	BillingEventSubscriptionResumed,
	BillingEventSubscriptionExpired,
	BillingEventSubscriptionPaused,
	BillingEventSubscriptionUnpaused,
	BillingEventSubscriptionPaymentSuccess,
	BillingEventSubscriptionPaymentFailed,
	BillingEventSubscriptionPaymentRecovered,
	BillingEventSubscriptionPaymentRefunded,
	BillingEventLicenseKeyCreated,
	BillingEventLicenseKeyUpdated,
	BillingEventAffiliateActivated,
}

// String implements fmt.Stringer.
func (e BillingEvent) String() string {
	return string(e)
}

// IsValid reports whether the value is part of the provider vocabulary.
func (e BillingEvent) IsValid() bool {
	for _, candidate := range BillingEventVocabulary {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseBillingEvent converts raw input into a BillingEvent.
func ParseBillingEvent(value string) (BillingEvent, error) {
	for _, candidate := range BillingEventVocabulary {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing event %q", value)
}
