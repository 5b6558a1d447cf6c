package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits enforced client-side before any backend call.
const (
	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MinContinuationItems = 1
	MaxContinuationItems = 100
)

// ValidateName checks an automation or recording name: required, at most
// MaxNameLength characters after trimming surrounding whitespace.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("name is required")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxNameLength {
		return fmt.Errorf("name is %d characters, max %d", n, MaxNameLength)
	}
	return nil
}

// ValidateDescription checks an optional description against MaxDescriptionLength.
func ValidateDescription(desc string) error {
	if n := utf8.RuneCountInString(desc); n > MaxDescriptionLength {
		return fmt.Errorf("description is %d characters, max %d", n, MaxDescriptionLength)
	}
	return nil
}

// ValidateItemCount checks a continuation item count against [1,100].
func ValidateItemCount(count int) error {
	if count < MinContinuationItems || count > MaxContinuationItems {
		return fmt.Errorf("item count %d out of range [%d,%d]",
			count, MinContinuationItems, MaxContinuationItems)
	}
	return nil
}

// ClampItemCount forces a count into the valid continuation range. Used when
// pre-filling defaults from backend estimates; user-entered values go through
// ValidateItemCount instead.
func ClampItemCount(count int) int {
	if count < MinContinuationItems {
		return MinContinuationItems
	}
	if count > MaxContinuationItems {
		return MaxContinuationItems
	}
	return count
}
