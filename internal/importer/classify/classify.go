// Package classify assigns expense categories to receipts from their vendor
// and description text using an ordered keyword table.
package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/entity"
)

// Rule maps a category name to the keywords that select it.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules is the built-in table. Order matters: the first rule with a
// matching keyword wins.
func DefaultRules() []Rule {
	return []Rule{
		{Category: string(constants.GasFuel), Keywords: []string{"shell", "exxon", "chevron", "mobil", "texaco", "gas station", "gas", "fuel", "gasoline", "petrol", "diesel"}},
		{Category: string(constants.Transportation), Keywords: []string{"uber", "lyft", "taxi", "cab ", "parking", "toll", "metro", "transit", "train", "subway"}},
		{Category: string(constants.OfficeSupplies), Keywords: []string{"staples", "office depot", "officemax", "office supplies", "supplies", "paper", "printer", "toner", "stationery"}},
		{Category: string(constants.MealsEntertainment), Keywords: []string{"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "pizza", "lunch", "dinner", "breakfast", "catering", "food"}},
		{Category: string(constants.Travel), Keywords: []string{"hotel", "airbnb", "airline", "airlines", "flight", "marriott", "hilton", "expedia", "booking.com", "motel"}},
		{Category: string(constants.Utilities), Keywords: []string{"electric", "water bill", "internet", "phone", "verizon", "at&t", "comcast", "utility", "utilities"}},
		{Category: string(constants.Marketing), Keywords: []string{"facebook ads", "google ads", "advertising", "marketing", "promotion", "mailchimp"}},
		{Category: string(constants.ProfessionalServices), Keywords: []string{"lawyer", "attorney", "accountant", "consultant", "consulting", "legal", "bookkeeping"}},
		{Category: string(constants.Equipment), Keywords: []string{"computer", "laptop", "monitor", "software", "hardware", "equipment", "best buy"}},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file of the form
//
//	rules:
//	  - category: Gas & Fuel
//	    keywords: [shell, fuel]
//
// Category names matching a seeded category (or a known synonym) are
// normalized to the seeded spelling.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		name := strings.TrimSpace(r.Category)
		if name == "" {
			return nil, fmt.Errorf("rule %d: category is required", i+1)
		}
		if canon, ok := constants.Canonicalize(name); ok {
			name = string(canon)
		}
		var keywords []string
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): at least one keyword is required", i+1, name)
		}
		rules = append(rules, Rule{Category: name, Keywords: keywords})
	}
	return rules, nil
}

// Classifier is stateless; the same text and category set always give the
// same answer.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier over rules, or over DefaultRules when rules is empty.
func New(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Rules returns a copy of the active table.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Text builds the classifier input for a row.
func Text(vendor, description string) string {
	return strings.ToLower(vendor + " " + description)
}

// Match returns the category name of the first rule with a keyword contained
// in text, or "Other".
func (c *Classifier) Match(text string) string {
	text = strings.ToLower(text)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(text, k) {
				return r.Category
			}
		}
	}
	return string(constants.Other)
}

// Classify resolves text to a category from categories. A matched rule whose
// category is missing from the set falls back to "Other"; nil is returned
// only when "Other" is missing too.
func (c *Classifier) Classify(text string, categories []entity.Category) *entity.Category {
	if cat := entity.FindCategoryByName(categories, c.Match(text)); cat != nil {
		return cat
	}
	return entity.FindCategoryByName(categories, string(constants.Other))
}
