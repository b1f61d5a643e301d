package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]struct {
		want Category
		ok   bool
	}{
		"Travel":          {Travel, true},
		"  gas & fuel ":   {GasFuel, true},
		"fuel":            {GasFuel, true},
		"Meals":           {MealsEntertainment, true},
		"advertising":     {Marketing, true},
		"groceries":       {Other, false},
		"":                {Other, false},
	}
	for in, tc := range cases {
		got, ok := Canonicalize(in)
		assert.Equal(t, tc.want, got, in)
		assert.Equal(t, tc.ok, ok, in)
	}
}

func TestSeedCategories(t *testing.T) {
	names := AsStringSlice()
	assert.Len(t, names, 10)
	assert.Equal(t, "Office Supplies", names[0])
	assert.Equal(t, "Other", names[len(names)-1])
	for i, c := range SeedCategories {
		assert.EqualValues(t, i+1, c.ID)
	}
}

func TestExtensions(t *testing.T) {
	assert.True(t, IsAllowedExt(".CSV"))
	assert.True(t, IsAllowedExt("xls"))
	assert.False(t, IsAllowedExt(".pdf"))
	assert.True(t, IsSpreadsheetExt(".XLSX"))
	assert.False(t, IsSpreadsheetExt("csv"))
	assert.Equal(t, "xlsx", NormalizeExt(" .XLSX "))
}
