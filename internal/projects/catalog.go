package projects

// Category is one main budget category and its subcategories.
type Category struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

// Catalog is the static budget category tree. It ships with the binary;
// projects pick lines out of it rather than defining their own.
var Catalog = []Category{
	{Name: "Structural Works", Subcategories: []string{"Excavation", "Foundations", "Concrete", "Steel Reinforcement", "Masonry"}},
	{Name: "Finishing Works", Subcategories: []string{"Plastering", "Painting", "Flooring", "Tiling", "Carpentry"}},
	{Name: "Electrical", Subcategories: []string{"Wiring", "Lighting", "Panels", "Generators"}},
	{Name: "Plumbing", Subcategories: []string{"Water Supply", "Drainage", "Sanitary Fixtures"}},
	{Name: "HVAC", Subcategories: []string{"Air Conditioning", "Ventilation"}},
	{Name: "External Works", Subcategories: []string{"Landscaping", "Fencing", "Paving"}},
}

// CatalogHasCategory reports whether name is a main category.
func CatalogHasCategory(name string) bool {
	for _, c := range Catalog {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CatalogHasSubcategory reports whether sub belongs to main.
func CatalogHasSubcategory(main, sub string) bool {
	for _, c := range Catalog {
		if c.Name != main {
			continue
		}
		for _, s := range c.Subcategories {
			if s == sub {
				return true
			}
		}
	}
	return false
}
