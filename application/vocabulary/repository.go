package vocabulary

import (
	"context"
	"fmt"

	"datagen/common"
	"datagen/internal/stream"

	"gorm.io/gorm"
)

// Repository handles data access for vocabulary entries
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the vocabulary table
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&common.VocabularyEntry{}); err != nil {
		return fmt.Errorf("failed to migrate vocabulary: %w", err)
	}
	return nil
}

// Count returns the number of stored entries
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&common.VocabularyEntry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count vocabulary: %w", err)
	}
	return count, nil
}

// Insert stores entries in batches
func (r *Repository) Insert(ctx context.Context, entries []common.VocabularyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(entries, 500).Error; err != nil {
		return fmt.Errorf("failed to insert vocabulary: %w", err)
	}
	return nil
}

// LoadPools reads every entry and groups the values by kind
func (r *Repository) LoadPools(ctx context.Context) (stream.Pools, error) {
	var entries []common.VocabularyEntry
	if err := r.db.WithContext(ctx).Order("id").Find(&entries).Error; err != nil {
		return stream.Pools{}, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	var pools stream.Pools
	for _, e := range entries {
		switch e.Kind {
		case common.KindName:
			pools.Names = append(pools.Names, e.Value)
		case common.KindIndustry:
			pools.Industries = append(pools.Industries, e.Value)
		case common.KindCity:
			pools.Cities = append(pools.Cities, e.Value)
		case common.KindState:
			pools.States = append(pools.States, e.Value)
		case common.KindCountry:
			pools.Countries = append(pools.Countries, e.Value)
		}
	}

	if err := pools.Validate(); err != nil {
		return stream.Pools{}, fmt.Errorf("vocabulary incomplete: %w", err)
	}
	return pools, nil
}
