package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category is one value of the server's fixed product enumeration
type Category string

const (
	CategoryAll         Category = "all"
	CategoryElectronics Category = "ELECTRONICS"
	CategoryClothing    Category = "CLOTHING"
	CategoryHome        Category = "HOME"
	CategoryHealth      Category = "HEALTH"
	CategoryToys        Category = "TOYS"
	CategorySports      Category = "SPORTS"
	CategoryBooks       Category = "BOOKS"
	CategoryFood        Category = "FOOD"
	CategoryPetSupplies Category = "PET_SUPPLIES"
	CategoryAutomotive  Category = "AUTOMOTIVE"
)

// Categories lists the selectable categories in display order, without "all"
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryHome,
	CategoryHealth,
	CategoryToys,
	CategorySports,
	CategoryBooks,
	CategoryFood,
	CategoryPetSupplies,
	CategoryAutomotive,
}

var categoryLabels = map[Category]string{
	CategoryAll:         "Todas las categorías",
	CategoryElectronics: "Electrónicos",
	CategoryClothing:    "Ropa y Accesorios",
	CategoryBooks:       "Libros",
	CategoryHome:        "Hogar y Jardín",
	CategorySports:      "Deportes",
	CategoryHealth:      "Salud y Bienestar",
	CategoryAutomotive:  "Automotriz",
	CategoryToys:        "Juguetes",
	CategoryFood:        "Alimentos y Bebidas",
	CategoryPetSupplies: "Mascotas",
}

// NormalizeCategory converts a category to the server enumeration format:
// upper case with spaces replaced by underscores.
func NormalizeCategory(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), " ", "_")
}

// IsValidCategory reports whether s names a known category once normalized
func IsValidCategory(s string) bool {
	_, ok := categoryLabels[Category(NormalizeCategory(s))]
	return ok
}

// CategoryLabel returns the Spanish display label. Unknown values are
// returned capitalized.
func CategoryLabel(s string) string {
	if strings.EqualFold(s, string(CategoryAll)) {
		return categoryLabels[CategoryAll]
	}
	if label, ok := categoryLabels[Category(NormalizeCategory(s))]; ok {
		return label
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
