package enums

import "fmt"

// SubscriptionPlan maps to the subscription_plan_enum enum in Postgres.
type SubscriptionPlan string

const (
	SubscriptionPlanFree SubscriptionPlan = "FREE"
	SubscriptionPlanPlus SubscriptionPlan = "PLUS"
)

var validSubscriptionPlans = []SubscriptionPlan{
	SubscriptionPlanFree,
	SubscriptionPlanPlus,
}

// IsValid reports whether the value matches the canonical subscription plan enum.
func (p SubscriptionPlan) IsValid() bool {
	for _, candidate := range validSubscriptionPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseSubscriptionPlan converts raw input into SubscriptionPlan.
func ParseSubscriptionPlan(value string) (SubscriptionPlan, error) {
	for _, candidate := range validSubscriptionPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription plan %q", value)
}
