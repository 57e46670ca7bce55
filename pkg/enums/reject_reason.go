package enums

// RejectReason explains why a metered request was not admitted.
type RejectReason string

const (
	RejectReasonNone                 RejectReason = ""
	RejectReasonSubscriptionInactive RejectReason = "subscription_inactive"
	RejectReasonDailyLimitReached    RejectReason = "daily_limit_reached"
	RejectReasonMonthlyLimitReached  RejectReason = "monthly_limit_reached"
)

// String implements fmt.Stringer.
func (r RejectReason) String() string {
	return string(r)
}
