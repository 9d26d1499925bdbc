package entity

import (
	"database/sql/driver"
	"time"

	"github.com/ovaphlow/pictoria/service-api/internal/dictionary"
	"github.com/ovaphlow/pictoria/service-api/pkg/database"
)

// Form is one written variant of a radical, e.g. 水 and its side form 氵.
type Form struct {
	Variant string `json:"variant"`
	Strokes int    `json:"strokes"`
}

// Forms is stored as a JSON array column.
type Forms []Form

func (f Forms) Value() (driver.Value, error) {
	if f == nil {
		f = Forms{}
	}
	return database.JSONValue([]Form(f))
}

func (f *Forms) Scan(src any) error { return database.ScanJSON(src, f) }

// Radical represents a row in the `radicals` table.
type Radical struct {
	ID           int64                 `json:"id" db:"id"`
	UserID       string                `json:"user_id" db:"user_id"`
	Forms        Forms                 `json:"forms" db:"forms"`
	Pinyin       dictionary.PinyinList `json:"pinyin" db:"pinyin"`
	KangxiNumber int                   `json:"kangxi_number" db:"kangxi_number"`
	HSKLevel     *int                  `json:"hsk_level" db:"hsk_level"`
	NameEn       string                `json:"name_en" db:"name_en"`
	Meaning      string                `json:"meaning" db:"meaning"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at" db:"updated_at"`
}

// RadicalInput is the create/update payload.
type RadicalInput struct {
	Forms        Forms                 `json:"forms"`
	Pinyin       dictionary.PinyinList `json:"pinyin"`
	KangxiNumber int                   `json:"kangxi_number"`
	HSKLevel     *int                  `json:"hsk_level"`
	NameEn       string                `json:"name_en"`
	Meaning      string                `json:"meaning"`
}

func (in RadicalInput) ToRadical(userID string) *Radical {
	return &Radical{
		UserID:       userID,
		Forms:        in.Forms,
		Pinyin:       in.Pinyin,
		KangxiNumber: in.KangxiNumber,
		HSKLevel:     in.HSKLevel,
		NameEn:       in.NameEn,
		Meaning:      in.Meaning,
	}
}
