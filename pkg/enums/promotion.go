package enums

import "fmt"

// PromotionState tracks whether a promotion can be applied at all.
type PromotionState string

const (
	PromotionStateActive   PromotionState = "active"
	PromotionStateInactive PromotionState = "inactive"
	PromotionStateDraft    PromotionState = "draft"
)

var validPromotionStates = []PromotionState{
	PromotionStateActive,
	PromotionStateInactive,
	PromotionStateDraft,
}

// String implements fmt.Stringer.
func (p PromotionState) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PromotionState.
func (p PromotionState) IsValid() bool {
	for _, candidate := range validPromotionStates {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePromotionState converts raw input into a PromotionState.
func ParsePromotionState(value string) (PromotionState, error) {
	for _, candidate := range validPromotionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion state %q", value)
}

// PromotionType selects how a promotion's discount value is interpreted.
type PromotionType string

const (
	PromotionTypePercentage PromotionType = "percentage"
	PromotionTypeFixed      PromotionType = "fixed"
)

var validPromotionTypes = []PromotionType{
	PromotionTypePercentage,
	PromotionTypeFixed,
}

// String implements fmt.Stringer.
func (p PromotionType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PromotionType.
func (p PromotionType) IsValid() bool {
	for _, candidate := range validPromotionTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePromotionType converts raw input into a PromotionType.
func ParsePromotionType(value string) (PromotionType, error) {
	for _, candidate := range validPromotionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promotion type %q", value)
}
