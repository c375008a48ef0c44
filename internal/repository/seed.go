package repository

import (
	"context"

	"go-shelf-inspector/internal/logger"

	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

// SampleProducts is the starter catalogue, one product per default type.
func SampleProducts() []Product {
	return []Product{
		{Name: "HN - Skin Booster", ProductType: "skin_booster", Code: strPtr("345/1153"), Flavor: strPtr("orange"),
			Variant: strPtr("Collagen Powder"), TargetBenefit: strPtr("Skin Health"), MinStock: 5, IsActive: true},
		{Name: "Formula 1 Shake Mix", ProductType: "formula_1", Code: strPtr("3433-3132"), Flavor: strPtr("vanilla"),
			Variant: strPtr("Meal Replacement"), TargetBenefit: strPtr("Weight Management"), MinStock: 10, IsActive: true},
		{Name: "Vitilife Brain Solution", ProductType: "vitamin_complex",
			Variant: strPtr("Capsules"), TargetBenefit: strPtr("Cognitive Support"), MinStock: 7, IsActive: true},
		{Name: "Collagen Booster", ProductType: "collagen_mix", Code: strPtr("152-153"),
			Variant: strPtr("Liquid"), TargetBenefit: strPtr("Joint Health"), MinStock: 4, IsActive: true},
		{Name: "Specialty Fiber Blend", ProductType: "specialty_blend",
			Variant: strPtr("Powder"), TargetBenefit: strPtr("Digestive Health"), MinStock: 3, IsActive: true},
	}
}

// SeedSampleProducts inserts SampleProducts when the products table is empty
// and returns how many rows were written.
func (s *gormStore) SeedSampleProducts(ctx context.Context) (int, error) {
	products := SampleProducts()
	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Product{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := tx.Create(&products).Error; err != nil {
			return err
		}
		inserted = len(products)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		logger.WithField("count", inserted).Info("Seeded sample products")
	}
	return inserted, nil
}
