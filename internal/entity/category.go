package entity

// Category represents an expense category for data transfer between layers.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// FindCategoryByName returns the category whose name equals name, or nil.
func FindCategoryByName(categories []Category, name string) *Category {
	for i := range categories {
		if categories[i].Name == name {
			return &categories[i]
		}
	}
	return nil
}
