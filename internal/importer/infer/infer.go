// Package infer guesses which column of an upload plays each semantic role.
package infer

import (
	"strings"

	"github.com/taxsyncpro/taxsync/internal/entity"
)

// Policy controls whether a column may be claimed by more than one role.
type Policy string

const (
	// Exclusive skips columns already claimed by an earlier role.
	Exclusive Policy = "exclusive"
	// Permissive lets a column match every role whose keywords it contains.
	Permissive Policy = "permissive"
)

// ParsePolicy maps a config value to a Policy; unknown values select Exclusive.
func ParsePolicy(s string) Policy {
	if Policy(strings.ToLower(strings.TrimSpace(s))) == Permissive {
		return Permissive
	}
	return Exclusive
}

// Keywords holds the header fragments that identify each role.
var Keywords = map[entity.Role][]string{
	entity.RoleDate:        {"date", "time", "when", "day"},
	entity.RoleAmount:      {"amount", "total", "cost", "price", "sum", "value"},
	entity.RoleVendor:      {"vendor", "merchant", "store", "payee", "company", "supplier", "name"},
	entity.RoleDescription: {"description", "desc", "memo", "note", "details", "item"},
	entity.RoleCategory:    {"category", "type", "class"},
}

// Inferencer produces a best-effort ColumnMapping from header names.
type Inferencer struct {
	policy Policy
}

func New(policy Policy) *Inferencer {
	if policy != Permissive {
		policy = Exclusive
	}
	return &Inferencer{policy: policy}
}

func (i *Inferencer) Policy() Policy { return i.policy }

// Infer walks roles in order and, for each, picks the first header (in
// header order) containing one of the role's keywords, ignoring case.
func (i *Inferencer) Infer(headers []string) entity.ColumnMapping {
	var mapping entity.ColumnMapping
	claimed := make(map[string]bool, len(headers))

	for _, role := range entity.Roles {
		for _, h := range headers {
			if i.policy == Exclusive && claimed[h] {
				continue
			}
			if matches(h, Keywords[role]) {
				mapping.Set(role, h)
				claimed[h] = true
				break
			}
		}
	}
	return mapping
}

func matches(header string, keywords []string) bool {
	lower := strings.ToLower(header)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
