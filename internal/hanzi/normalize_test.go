package hanzi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pictoria/service-api/internal/dictionary"
	"github.com/ovaphlow/pictoria/service-api/internal/hanzi/entity"
)

func TestNormalizeForcesTraditionalWhenIdentical(t *testing.T) {
	in := sample("水", 1, nil)
	in.IsIdentical = true
	in.TraditionalCharacter = strp("氵")
	in.SimplifiedRadicalIDs = dictionary.RadicalRefs{{KangxiID: 85}}
	in.TraditionalRadicalIDs = dictionary.RadicalRefs{{KangxiID: 1}, {KangxiID: 2}}

	Normalize(&in)

	require.NotNil(t, in.TraditionalCharacter)
	assert.Equal(t, "水", *in.TraditionalCharacter)
	assert.Equal(t, in.SimplifiedRadicalIDs, in.TraditionalRadicalIDs)

	in.SimplifiedRadicalIDs[0].KangxiID = 3
	assert.Equal(t, 85, in.TraditionalRadicalIDs[0].KangxiID, "radicals are copied, not aliased")
}

func TestNormalizeCorrectsIdenticalFlag(t *testing.T) {
	in := sample("山", 1, nil)
	in.TraditionalCharacter = strp(" 山 ")
	in.SimplifiedRadicalIDs = dictionary.RadicalRefs{{KangxiID: 46}}

	Normalize(&in)

	assert.True(t, in.IsIdentical)
	assert.Equal(t, dictionary.RadicalRefs{{KangxiID: 46}}, in.TraditionalRadicalIDs)
	require.NotNil(t, in.TraditionalStrokeCount)
	assert.Equal(t, in.SimplifiedStrokeCount, *in.TraditionalStrokeCount)
}

func TestNormalizeLeavesDistinctForms(t *testing.T) {
	in := sample("爱", 1, nil)
	in.TraditionalCharacter = strp("愛")
	in.TraditionalStrokeCount = intp(13)
	in.TraditionalRadicalIDs = dictionary.RadicalRefs{{KangxiID: 61}}

	Normalize(&in)

	assert.False(t, in.IsIdentical)
	assert.Equal(t, "愛", *in.TraditionalCharacter)
	assert.Equal(t, dictionary.RadicalRefs{{KangxiID: 61}}, in.TraditionalRadicalIDs)
	assert.Equal(t, entity.TypeSimplified, entity.DeriveCharacterType(in.IsIdentical, in.TraditionalCharacter))
}

func TestNormalizeBlankTraditionalIsAbsent(t *testing.T) {
	in := sample("们", 1, nil)
	in.TraditionalCharacter = strp("  ")
	Normalize(&in)
	assert.Nil(t, in.TraditionalCharacter)
	assert.False(t, in.IsIdentical)
}

func TestValidate(t *testing.T) {
	in := sample("人", 1, nil)
	Normalize(&in)
	assert.NoError(t, Validate(in).Err())

	bad := entity.HanziInput{
		StandardCharacter:      "",
		TraditionalCharacter:   strp("兩個"),
		TraditionalStrokeCount: intp(0),
		FrequencyRank:          intp(0),
		SimplifiedRadicalIDs:   dictionary.RadicalRefs{{KangxiID: 300}},
	}
	v := Validate(bad)
	fields := map[string]bool{}
	for _, f := range v.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{
		"standard_character", "traditional_character", "pinyin", "definition",
		"simplified_stroke_count", "traditional_stroke_count", "hsk_level",
		"frequency_rank", "simplified_radical_ids[0].kangxi_id",
	} {
		assert.True(t, fields[want], "missing %s in %v", want, v.Fields)
	}
}
