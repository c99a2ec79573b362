package models

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// SeedCategories makes sure every named category exists.
func SeedCategories(db *gorm.DB, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if err := db.Where(Category{Name: name}).FirstOrCreate(&Category{}).Error; err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
	}
	return nil
}
