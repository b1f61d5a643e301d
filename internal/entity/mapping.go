package entity

// Role is the semantic meaning a column can play in an import.
type Role string

const (
	RoleDate        Role = "date"
	RoleAmount      Role = "amount"
	RoleVendor      Role = "vendor"
	RoleDescription Role = "description"
	RoleCategory    Role = "category"
)

// Roles lists every role in inference order.
var Roles = []Role{RoleDate, RoleAmount, RoleVendor, RoleDescription, RoleCategory}

// RequiredRoles must be mapped before rows can be materialized.
var RequiredRoles = []Role{RoleDate, RoleAmount, RoleVendor}

// ColumnMapping maps each role to a column header. An empty string means the
// role is unmapped.
type ColumnMapping struct {
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	Amount      string `json:"amount,omitempty" yaml:"amount,omitempty"`
	Vendor      string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Get returns the column mapped to role.
func (m ColumnMapping) Get(role Role) string {
	switch role {
	case RoleDate:
		return m.Date
	case RoleAmount:
		return m.Amount
	case RoleVendor:
		return m.Vendor
	case RoleDescription:
		return m.Description
	case RoleCategory:
		return m.Category
	}
	return ""
}

// Set maps role to column.
func (m *ColumnMapping) Set(role Role, column string) {
	switch role {
	case RoleDate:
		m.Date = column
	case RoleAmount:
		m.Amount = column
	case RoleVendor:
		m.Vendor = column
	case RoleDescription:
		m.Description = column
	case RoleCategory:
		m.Category = column
	}
}

// Missing returns the required roles that are not mapped, in role order.
func (m ColumnMapping) Missing() []Role {
	var missing []Role
	for _, r := range RequiredRoles {
		if m.Get(r) == "" {
			missing = append(missing, r)
		}
	}
	return missing
}

// Complete reports whether every required role is mapped.
func (m ColumnMapping) Complete() bool {
	return len(m.Missing()) == 0
}
