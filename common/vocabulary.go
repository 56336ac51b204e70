package common

// Vocabulary kinds stored in the vocabulary table.
const (
	KindName     = "name"
	KindIndustry = "industry"
	KindCity     = "city"
	KindState    = "state"
	KindCountry  = "country"
)

// VocabularyEntry is one value records can be drawn from.
type VocabularyEntry struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Kind  string `gorm:"size:16;index" json:"kind"`
	Value string `gorm:"size:255" json:"value"`
}

func (VocabularyEntry) TableName() string {
	return "vocabulary_entries"
}
