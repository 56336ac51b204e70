package vocabulary

import (
	"context"
	"strings"

	"datagen/common"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
)

// countryPoolSize matches the small country pool records draw from.
const countryPoolSize = 50

var industries = []string{
	"Aerospace", "Agriculture", "Automotive", "Banking", "Biotechnology",
	"Chemicals", "Construction", "Consulting", "Consumer Electronics", "Defense",
	"Education", "Energy", "Entertainment", "Food & Beverage", "Healthcare",
	"Hospitality", "Insurance", "Logistics", "Manufacturing", "Media",
	"Mining", "Pharmaceuticals", "Real Estate", "Retail", "Semiconductors",
	"Software", "Telecommunications", "Textiles", "Transportation", "Utilities",
}

// GenerateEntries builds size names, industries, cities and states plus a
// fixed pool of countries. The same seed yields the same entries; zero picks
// a random seed.
func GenerateEntries(seed uint64, size int) []common.VocabularyEntry {
	f := gofakeit.New(seed)
	entries := make([]common.VocabularyEntry, 0, 4*size+countryPoolSize)

	for i := 0; i < size; i++ {
		entries = append(entries,
			common.VocabularyEntry{Kind: common.KindName, Value: f.Company()},
			common.VocabularyEntry{Kind: common.KindIndustry, Value: f.RandomString(industries)},
			common.VocabularyEntry{Kind: common.KindCity, Value: f.City()},
			common.VocabularyEntry{Kind: common.KindState, Value: f.State()},
		)
	}
	for i := 0; i < countryPoolSize; i++ {
		entries = append(entries, common.VocabularyEntry{Kind: common.KindCountry, Value: strings.TrimSpace(f.Country())})
	}

	return entries
}

// EnsureSeeded migrates the table and fills it when empty.
func EnsureSeeded(ctx context.Context, repo *Repository, seed uint64, size int, logger *zap.Logger) error {
	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		logger.Info("vocabulary already seeded", zap.Int64("entries", count))
		return nil
	}

	entries := GenerateEntries(seed, size)
	if err := repo.Insert(ctx, entries); err != nil {
		return err
	}
	logger.Info("vocabulary seeded", zap.Int("entries", len(entries)), zap.Int("pool_size", size))
	return nil
}
