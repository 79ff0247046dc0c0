package enums

import "fmt"

// TransactionCategory maps to the transaction_category_enum enum in Postgres.
type TransactionCategory string

const (
	TransactionCategoryNotePurchase TransactionCategory = "NOTE_PURCHASE"
	TransactionCategoryNoteSale     TransactionCategory = "NOTE_SALE"
	TransactionCategorySubscription TransactionCategory = "SUBSCRIPTION"
	TransactionCategoryRefund       TransactionCategory = "REFUND"
	TransactionCategoryWithdrawal   TransactionCategory = "WITHDRAWAL"
	TransactionCategoryTopUp        TransactionCategory = "TOP_UP"
	TransactionCategoryTutoring     TransactionCategory = "TUTORING"
	TransactionCategoryPlatformFee  TransactionCategory = "PLATFORM_FEE"
)

var validTransactionCategories = []TransactionCategory{
	TransactionCategoryNotePurchase,
	TransactionCategoryNoteSale,
	TransactionCategorySubscription,
	TransactionCategoryRefund,
	TransactionCategoryWithdrawal,
	TransactionCategoryTopUp,
	TransactionCategoryTutoring,
	TransactionCategoryPlatformFee,
}

// IsValid reports whether the value matches the canonical transaction category enum.
func (c TransactionCategory) IsValid() bool {
	for _, candidate := range validTransactionCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseTransactionCategory converts raw input into TransactionCategory.
func ParseTransactionCategory(value string) (TransactionCategory, error) {
	for _, candidate := range validTransactionCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction category %q", value)
}
