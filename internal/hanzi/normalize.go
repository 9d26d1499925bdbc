package hanzi

import (
	"strings"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/dictionary"
	"github.com/ovaphlow/pictoria/service-api/internal/hanzi/entity"
)

// Normalize applies the submission-time rules in place, before validation and
// persistence:
//   - is_identical forces the traditional form and radicals to the simplified ones;
//   - a traditional form equal to the standard one forces is_identical and
//     copies the radicals the same way.
func Normalize(in *entity.HanziInput) {
	in.StandardCharacter = strings.TrimSpace(in.StandardCharacter)
	in.Definition = strings.TrimSpace(in.Definition)
	if in.TraditionalCharacter != nil {
		t := strings.TrimSpace(*in.TraditionalCharacter)
		if t == "" {
			in.TraditionalCharacter = nil
		} else {
			in.TraditionalCharacter = &t
		}
	}
	dictionary.TrimPinyin(in.Pinyin)

	if in.IsIdentical {
		t := in.StandardCharacter
		in.TraditionalCharacter = &t
		in.TraditionalRadicalIDs = in.SimplifiedRadicalIDs.Clone()
	} else if in.TraditionalCharacter != nil && *in.TraditionalCharacter == in.StandardCharacter {
		in.IsIdentical = true
		in.TraditionalRadicalIDs = in.SimplifiedRadicalIDs.Clone()
	}
	if in.IsIdentical && in.TraditionalStrokeCount == nil {
		n := in.SimplifiedStrokeCount
		in.TraditionalStrokeCount = &n
	}
}

// Validate checks a normalized payload and returns every failed field.
func Validate(in entity.HanziInput) *action.ValidationError {
	v := &action.ValidationError{}
	if n := dictionary.GraphemeCount(in.StandardCharacter); n != 1 {
		v.Add("standard_character", "must be exactly one character, got %d", n)
	}
	if in.TraditionalCharacter != nil {
		if n := dictionary.GraphemeCount(*in.TraditionalCharacter); n != 1 {
			v.Add("traditional_character", "must be exactly one character, got %d", n)
		}
	}
	dictionary.CheckPinyin(v, "pinyin", in.Pinyin, false)
	if in.Definition == "" {
		v.Add("definition", "is required")
	}
	checkStrokes(v, "simplified_stroke_count", in.SimplifiedStrokeCount)
	if in.TraditionalStrokeCount != nil {
		checkStrokes(v, "traditional_stroke_count", *in.TraditionalStrokeCount)
	}
	dictionary.CheckHSK(v, "hsk_level", in.HSKLevel)
	if in.FrequencyRank != nil && *in.FrequencyRank < 1 {
		v.Add("frequency_rank", "must be at least 1, got %d", *in.FrequencyRank)
	}
	dictionary.CheckRadicalRefs(v, "simplified_radical_ids", in.SimplifiedRadicalIDs, true)
	dictionary.CheckRadicalRefs(v, "traditional_radical_ids", in.TraditionalRadicalIDs, false)
	return v
}

func checkStrokes(v *action.ValidationError, field string, n int) {
	if n < MinStrokes || n > MaxStrokes {
		v.Add(field, "must be between %d and %d, got %d", MinStrokes, MaxStrokes, n)
	}
}
