package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	OutboxAggregatePurchase        OutboxAggregateType = "purchase"
	OutboxAggregateWallet          OutboxAggregateType = "wallet"
	OutboxAggregateNote            OutboxAggregateType = "note"
	OutboxAggregateTutoringSession OutboxAggregateType = "tutoring_session"
)

var validAggregateTypes = []OutboxAggregateType{
	OutboxAggregatePurchase,
	OutboxAggregateWallet,
	OutboxAggregateNote,
	OutboxAggregateTutoringSession,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	OutboxEventPurchaseSettled       OutboxEventType = "purchase_settled"
	OutboxEventSubscriptionActivated OutboxEventType = "subscription_activated"
	OutboxEventWalletToppedUp        OutboxEventType = "wallet_topped_up"
	OutboxEventNotePublished         OutboxEventType = "note_published"
	OutboxEventTutoringCompleted     OutboxEventType = "tutoring_completed"
)

var validOutboxEventTypes = []OutboxEventType{
	OutboxEventPurchaseSettled,
	OutboxEventSubscriptionActivated,
	OutboxEventWalletToppedUp,
	OutboxEventNotePublished,
	OutboxEventTutoringCompleted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
