// Package dictionary holds value types and checks shared by the Hanzi and
// Radical entities.
package dictionary

import (
	"database/sql/driver"
	"regexp"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/pkg/database"
)

const (
	MinHSKLevel = 1
	MaxHSKLevel = 6
	MinKangxi   = 1
	MaxKangxi   = 214
)

// Pinyin is one romanized reading.
type Pinyin struct {
	Pronunciation string `json:"pronunciation"`
}

// PinyinList is stored as a JSON array column.
type PinyinList []Pinyin

func (p PinyinList) Value() (driver.Value, error) {
	if p == nil {
		p = PinyinList{}
	}
	return database.JSONValue([]Pinyin(p))
}

func (p *PinyinList) Scan(src any) error { return database.ScanJSON(src, p) }

// Strings returns the pronunciations in order.
func (p PinyinList) Strings() []string {
	out := make([]string, 0, len(p))
	for _, e := range p {
		out = append(out, e.Pronunciation)
	}
	return out
}

// RadicalRef points at a radical by its Kangxi number.
type RadicalRef struct {
	KangxiID int `json:"kangxi_id"`
}

// RadicalRefs is stored as a JSON array column.
type RadicalRefs []RadicalRef

func (r RadicalRefs) Value() (driver.Value, error) {
	if r == nil {
		r = RadicalRefs{}
	}
	return database.JSONValue([]RadicalRef(r))
}

func (r *RadicalRefs) Scan(src any) error { return database.ScanJSON(src, r) }

// Clone returns an independent copy; nil stays nil.
func (r RadicalRefs) Clone() RadicalRefs {
	if r == nil {
		return nil
	}
	out := make(RadicalRefs, len(r))
	copy(out, r)
	return out
}

// Equal compares two ref lists element-wise in order.
func (r RadicalRefs) Equal(other RadicalRefs) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// GraphemeCount counts user-perceived characters.
func GraphemeCount(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// tone-marked pinyin: latin letters, ü, the four marked forms of each vowel, spaces
var pronunciationPattern = regexp.MustCompile(`^[A-Za-zāáǎàēéěèīíǐìōóǒòūúǔùǖǘǚǜüÜĀÁǍÀĒÉĚÈĪÍǏÌŌÓǑÒŪÚǓÙǕǗǙǛ ]+$`)

// ValidPronunciation reports whether s uses only the tone-mark alphabet.
func ValidPronunciation(s string) bool {
	return pronunciationPattern.MatchString(s)
}

// CheckHSK validates a required HSK level.
func CheckHSK(v *action.ValidationError, field string, level int) {
	if level < MinHSKLevel || level > MaxHSKLevel {
		v.Add(field, "must be between %d and %d, got %d", MinHSKLevel, MaxHSKLevel, level)
	}
}

// CheckPinyin validates a non-empty reading list. When strict, every
// pronunciation must also match the tone-mark alphabet.
func CheckPinyin(v *action.ValidationError, field string, list PinyinList, strict bool) {
	if len(list) == 0 {
		v.Add(field, "at least one pronunciation is required")
		return
	}
	for i, p := range list {
		pr := strings.TrimSpace(p.Pronunciation)
		switch {
		case pr == "":
			v.Add(fieldIndex(field, i)+".pronunciation", "must not be empty")
		case strict && !ValidPronunciation(pr):
			v.Add(fieldIndex(field, i)+".pronunciation", "must use latin letters and tone marks only, got %q", pr)
		}
	}
}

// CheckRadicalRefs validates Kangxi references; required demands at least one.
func CheckRadicalRefs(v *action.ValidationError, field string, refs RadicalRefs, required bool) {
	if required && len(refs) == 0 {
		v.Add(field, "at least one radical is required")
		return
	}
	for i, r := range refs {
		if r.KangxiID < MinKangxi || r.KangxiID > MaxKangxi {
			v.Add(fieldIndex(field, i)+".kangxi_id", "must be between %d and %d, got %d", MinKangxi, MaxKangxi, r.KangxiID)
		}
	}
}

// TrimPinyin trims every pronunciation in place.
func TrimPinyin(list PinyinList) {
	for i := range list {
		list[i].Pronunciation = strings.TrimSpace(list[i].Pronunciation)
	}
}

func fieldIndex(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}
