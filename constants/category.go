package constants

import (
	"strings"
)

// Category is the display name of a seeded expense category.
type Category string

const (
	OfficeSupplies       Category = "Office Supplies"
	Travel               Category = "Travel"
	MealsEntertainment   Category = "Meals & Entertainment"
	Transportation       Category = "Transportation"
	Utilities            Category = "Utilities"
	Marketing            Category = "Marketing"
	ProfessionalServices Category = "Professional Services"
	Equipment            Category = "Equipment"
	GasFuel              Category = "Gas & Fuel"
	Other                Category = "Other"
)

// SeedCategory is one row of the fixed category seed set.
type SeedCategory struct {
	ID    int64
	Name  Category
	Color string
}

// SeedCategories is the category set every new store starts with.
// IDs are stable; receipts reference them.
var SeedCategories = []SeedCategory{
	{ID: 1, Name: OfficeSupplies, Color: "#3B82F6"},
	{ID: 2, Name: Travel, Color: "#10B981"},
	{ID: 3, Name: MealsEntertainment, Color: "#F59E0B"},
	{ID: 4, Name: Transportation, Color: "#EF4444"},
	{ID: 5, Name: Utilities, Color: "#8B5CF6"},
	{ID: 6, Name: Marketing, Color: "#EC4899"},
	{ID: 7, Name: ProfessionalServices, Color: "#06B6D4"},
	{ID: 8, Name: Equipment, Color: "#84CC16"},
	{ID: 9, Name: GasFuel, Color: "#F97316"},
	{ID: 10, Name: Other, Color: "#6B7280"},
}

// AsStringSlice returns the seeded category names in id order.
func AsStringSlice() []string {
	result := make([]string, len(SeedCategories))
	for i, cat := range SeedCategories {
		result[i] = string(cat.Name)
	}
	return result
}

// Canonicalize matches free-form input against the seeded category names,
// ignoring case and surrounding space.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"fuel":          GasFuel,
		"gas":           GasFuel,
		"meals":         MealsEntertainment,
		"entertainment": MealsEntertainment,
		"office":        OfficeSupplies,
		"supplies":      OfficeSupplies,
		"advertising":   Marketing,
		"services":      ProfessionalServices,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range SeedCategories {
		if normalized == strings.ToLower(string(cat.Name)) {
			return cat.Name, true
		}
	}

	return Other, false
}
