package entity

import (
	"time"

	"github.com/ovaphlow/pictoria/service-api/internal/dictionary"
)

// Character types a Hanzi can be filtered by. The type is derived from
// is_identical and the presence of a traditional form; it is never stored.
const (
	TypeIdentical   = "identical"
	TypeSimplified  = "simplified"
	TypeTraditional = "traditional"
)

// Hanzi represents a row in the `hanzi` table.
type Hanzi struct {
	ID                     int64                  `json:"id" db:"id"`
	UserID                 string                 `json:"user_id" db:"user_id"`
	StandardCharacter      string                 `json:"standard_character" db:"standard_character"`
	TraditionalCharacter   *string                `json:"traditional_character" db:"traditional_character"`
	IsIdentical            bool                   `json:"is_identical" db:"is_identical"`
	CharacterType          string                 `json:"character_type" db:"-"`
	Pinyin                 dictionary.PinyinList  `json:"pinyin" db:"pinyin"`
	Definition             string                 `json:"definition" db:"definition"`
	SimplifiedStrokeCount  int                    `json:"simplified_stroke_count" db:"simplified_stroke_count"`
	TraditionalStrokeCount *int                   `json:"traditional_stroke_count" db:"traditional_stroke_count"`
	HSKLevel               int                    `json:"hsk_level" db:"hsk_level"`
	FrequencyRank          *int                   `json:"frequency_rank" db:"frequency_rank"`
	SimplifiedRadicalIDs   dictionary.RadicalRefs `json:"simplified_radical_ids" db:"simplified_radical_ids"`
	TraditionalRadicalIDs  dictionary.RadicalRefs `json:"traditional_radical_ids" db:"traditional_radical_ids"`
	CreatedAt              time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at" db:"updated_at"`
}

// DeriveCharacterType is the single place the character type is computed.
func DeriveCharacterType(isIdentical bool, traditional *string) string {
	switch {
	case isIdentical:
		return TypeIdentical
	case traditional != nil:
		return TypeSimplified
	default:
		return TypeTraditional
	}
}

// ValidCharacterType reports whether t is one of the filterable types.
func ValidCharacterType(t string) bool {
	return t == TypeIdentical || t == TypeSimplified || t == TypeTraditional
}

// HanziInput is the create/update payload (server-assigned fields omitted).
type HanziInput struct {
	StandardCharacter      string                 `json:"standard_character"`
	TraditionalCharacter   *string                `json:"traditional_character"`
	IsIdentical            bool                   `json:"is_identical"`
	Pinyin                 dictionary.PinyinList  `json:"pinyin"`
	Definition             string                 `json:"definition"`
	SimplifiedStrokeCount  int                    `json:"simplified_stroke_count"`
	TraditionalStrokeCount *int                   `json:"traditional_stroke_count"`
	HSKLevel               int                    `json:"hsk_level"`
	FrequencyRank          *int                   `json:"frequency_rank"`
	SimplifiedRadicalIDs   dictionary.RadicalRefs `json:"simplified_radical_ids"`
	TraditionalRadicalIDs  dictionary.RadicalRefs `json:"traditional_radical_ids"`
}

// ToHanzi builds an unsaved row owned by userID.
func (in HanziInput) ToHanzi(userID string) *Hanzi {
	return &Hanzi{
		UserID:                 userID,
		StandardCharacter:      in.StandardCharacter,
		TraditionalCharacter:   in.TraditionalCharacter,
		IsIdentical:            in.IsIdentical,
		CharacterType:          DeriveCharacterType(in.IsIdentical, in.TraditionalCharacter),
		Pinyin:                 in.Pinyin,
		Definition:             in.Definition,
		SimplifiedStrokeCount:  in.SimplifiedStrokeCount,
		TraditionalStrokeCount: in.TraditionalStrokeCount,
		HSKLevel:               in.HSKLevel,
		FrequencyRank:          in.FrequencyRank,
		SimplifiedRadicalIDs:   in.SimplifiedRadicalIDs,
		TraditionalRadicalIDs:  in.TraditionalRadicalIDs,
	}
}
