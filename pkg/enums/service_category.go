package enums

import "fmt"

// ServiceCategory identifies which resume service an order purchases.
type ServiceCategory string

const (
	ServiceCategoryResume        ServiceCategory = "resume"
	ServiceCategoryCoverLetter   ServiceCategory = "cover_letter"
	ServiceCategoryLinkedIn      ServiceCategory = "linkedin_review"
	ServiceCategoryMockInterview ServiceCategory = "mock_interview"
)

var validServiceCategories = []ServiceCategory{
	ServiceCategoryResume,
	ServiceCategoryCoverLetter,
	ServiceCategoryLinkedIn,
	ServiceCategoryMockInterview,
}

// String implements fmt.Stringer.
func (s ServiceCategory) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ServiceCategory.
func (s ServiceCategory) IsValid() bool {
	for _, candidate := range validServiceCategories {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceCategory converts raw input into a ServiceCategory.
func ParseServiceCategory(value string) (ServiceCategory, error) {
	for _, candidate := range validServiceCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service category %q", value)
}
