package lemonsqueezy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/revofy/revofy-backend/internal/subscriptions"
	"github.com/revofy/revofy-backend/pkg/enums"
)

const (
	dataTypeSubscriptions        = "subscriptions"
	dataTypeSubscriptionInvoices = "subscription-invoices"
	dataTypeOrders               = "orders"
)

// Event is the subset of a Lemon Squeezy webhook the billing core consumes.
type Event struct {
	Meta struct {
		EventName  string `json:"event_name"`
		CustomData struct {
			UserID flexString `json:"user_id"`
		} `json:"custom_data"`
	} `json:"meta"`
	Data struct {
		Type       string          `json:"type"`
		ID         flexString      `json:"id"`
		Attributes eventAttributes `json:"attributes"`
	} `json:"data"`
}

type eventAttributes struct {
	Status         string     `json:"status"`
	UserEmail      string     `json:"user_email"`
	CustomerEmail  string     `json:"customer_email"`
	VariantID      flexString `json:"variant_id"`
	SubscriptionID flexString `json:"subscription_id"`
	RenewsAt       *time.Time `json:"renews_at"`
	EndsAt         *time.Time `json:"ends_at"`
	TrialEndsAt    *time.Time `json:"trial_ends_at"`
	FirstOrderItem *struct {
		VariantID flexString `json:"variant_id"`
	} `json:"first_order_item"`
}

// ParseEvent decodes a verified payload.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode lemonsqueezy event: %w", err)
	}
	return &event, nil
}

// Name returns the event name.
func (e *Event) Name() enums.BillingEvent {
	return enums.BillingEvent(strings.TrimSpace(e.Meta.EventName))
}

// CorrelationToken is the account id embedded in the checkout link.
func (e *Event) CorrelationToken() string {
	return strings.TrimSpace(string(e.Meta.CustomData.UserID))
}

// Emails lists the customer email candidates in preference order.
func (e *Event) Emails() []string {
	return []string{e.Data.Attributes.UserEmail, e.Data.Attributes.CustomerEmail}
}

// ExternalSubscriptionID is the provider's subscription id when the payload refers to one.
func (e *Event) ExternalSubscriptionID() string {
	switch e.Data.Type {
	case dataTypeSubscriptions:
		return strings.TrimSpace(string(e.Data.ID))
	case dataTypeSubscriptionInvoices:
		return strings.TrimSpace(string(e.Data.Attributes.SubscriptionID))
	default:
		return ""
	}
}

// VariantID is the purchased plan variant.
func (e *Event) VariantID() string {
	if variant := strings.TrimSpace(string(e.Data.Attributes.VariantID)); variant != "" {
		return variant
	}
	if e.Data.Type == dataTypeOrders && e.Data.Attributes.FirstOrderItem != nil {
		return strings.TrimSpace(string(e.Data.Attributes.FirstOrderItem.VariantID))
	}
	return ""
}

// Change builds the subscription change for a known event with the given status.
func (e *Event) Change(status enums.SubscriptionStatus) subscriptions.Change {
	attrs := e.Data.Attributes
	return subscriptions.Change{
		Event:       e.Name(),
		Status:      status,
		ExternalID:  e.ExternalSubscriptionID(),
		VariantID:   e.VariantID(),
		RenewsAt:    utcPtr(attrs.RenewsAt),
		EndsAt:      utcPtr(attrs.EndsAt),
		TrialEndsAt: utcPtr(attrs.TrialEndsAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// flexString accepts JSON strings and numbers; the provider sends ids as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}
