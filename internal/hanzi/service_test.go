package hanzi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/auth"
	"github.com/ovaphlow/pictoria/service-api/internal/cache"
	"github.com/ovaphlow/pictoria/service-api/internal/dictionary"
	"github.com/ovaphlow/pictoria/service-api/internal/hanzi/entity"
	hanzirepo "github.com/ovaphlow/pictoria/service-api/internal/hanzi/repo"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	require.NoError(t, hanzirepo.NewHanziRepo(db).EnsureTable(context.Background()))
	return db
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func sample(char string, hsk int, rank *int) entity.HanziInput {
	return entity.HanziInput{
		StandardCharacter:     char,
		Pinyin:                dictionary.PinyinList{{Pronunciation: "rén"}},
		Definition:            "person",
		SimplifiedStrokeCount: 2,
		HSKLevel:              hsk,
		FrequencyRank:         rank,
		SimplifiedRadicalIDs:  dictionary.RadicalRefs{{KangxiID: 9}},
	}
}

// commitBeforeSet runs a mutation after a List has read the store but before
// it writes the page to the cache.
type commitBeforeSet struct {
	cache.PageCache
	before func()
}

func (c *commitBeforeSet) Set(ctx context.Context, namespace, key string, gen cache.Generation, v any) error {
	if f := c.before; f != nil {
		c.before = nil
		f()
	}
	return c.PageCache.Set(ctx, namespace, key, gen, v)
}

type ServiceSuite struct {
	suite.Suite
	db    *sqlx.DB
	svc   *Service
	cache *cache.MemoryCache
	owner context.Context
	other context.Context
}

func (s *ServiceSuite) SetupTest() {
	s.db = setupTestDB(s.T())
	s.cache = cache.NewMemoryCache(0, time.Minute)
	s.svc = NewService(hanzirepo.NewHanziRepo(s.db), s.cache, nil)
	s.owner = auth.WithIdentity(context.Background(), &auth.Identity{UserID: uuid.New()})
	s.other = auth.WithIdentity(context.Background(), &auth.Identity{UserID: uuid.New()})
}

func (s *ServiceSuite) TearDownTest() {
	s.db.Close()
}

func (s *ServiceSuite) create(inputs ...entity.HanziInput) []*entity.Hanzi {
	rows, err := s.svc.Create(s.owner, inputs)
	require.NoError(s.T(), err)
	return rows
}

func (s *ServiceSuite) TestHSKLevelScenario() {
	s.create(
		sample("人", 1, intp(3)),
		sample("大", 1, intp(1)),
		sample("小", 1, intp(2)),
		sample("爱", 2, intp(4)),
		sample("龙", 4, nil),
	)
	page, err := s.svc.List(s.owner, ListQuery{HSKLevel: intp(1), Page: 1, Limit: 10})
	require.NoError(s.T(), err)
	require.Len(s.T(), page.Data, 3)
	require.Equal(s.T(), 3, page.Total)
	require.Equal(s.T(), 1, page.Page)
	require.Equal(s.T(), 10, page.Limit)
	require.Equal(s.T(), 1, page.TotalPages)
	require.Empty(s.T(), page.Error)
	// ascending frequency rank
	require.Equal(s.T(), "大", page.Data[0].StandardCharacter)
	require.Equal(s.T(), "小", page.Data[1].StandardCharacter)
	require.Equal(s.T(), "人", page.Data[2].StandardCharacter)
}

func (s *ServiceSuite) TestUnrankedSortLast() {
	s.create(sample("龙", 4, nil), sample("人", 1, intp(7)), sample("大", 1, intp(2)))
	page, err := s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Len(s.T(), page.Data, 3)
	require.Equal(s.T(), "大", page.Data[0].StandardCharacter)
	require.Equal(s.T(), "龙", page.Data[2].StandardCharacter)
	require.Nil(s.T(), page.Data[2].FrequencyRank)
}

func (s *ServiceSuite) TestPaginationEnvelope() {
	var inputs []entity.HanziInput
	for i, c := range []rune("一二三四五六七八九十十一") {
		inputs = append(inputs, sample(string(c), 1, intp(i+1)))
	}
	s.create(inputs...)

	for _, limit := range []int{1, 3, 5, 10, 25} {
		page, err := s.svc.List(s.owner, ListQuery{Limit: limit, Page: 2})
		require.NoError(s.T(), err)
		require.Equal(s.T(), len(inputs), page.Total)
		require.Equal(s.T(), (page.Total+limit-1)/limit, page.TotalPages, "limit=%d", limit)
		require.LessOrEqual(s.T(), len(page.Data), limit)
	}

	page, err := s.svc.List(s.owner, ListQuery{Limit: 5, Page: 3})
	require.NoError(s.T(), err)
	require.Len(s.T(), page.Data, 2)
	require.Equal(s.T(), 11, *page.Data[0].FrequencyRank)
	require.Equal(s.T(), 12, *page.Data[1].FrequencyRank)
}

func (s *ServiceSuite) TestUnauthorizedList() {
	s.create(sample("人", 1, nil))
	page, err := s.svc.List(context.Background(), ListQuery{HSKLevel: intp(1)})
	require.ErrorIs(s.T(), err, action.ErrUnauthorized)
	require.Empty(s.T(), page.Data)
	require.NotNil(s.T(), page.Data)
	require.Equal(s.T(), 0, page.Total)
	require.Equal(s.T(), 1, page.Page)
	require.Equal(s.T(), 10, page.Limit)
	require.Equal(s.T(), 0, page.TotalPages)
	require.Contains(s.T(), page.Error, "Unauthorized")
}

func (s *ServiceSuite) TestCharacterTypeFilter() {
	identical := sample("人", 1, intp(1))
	identical.IsIdentical = true
	simplified := sample("爱", 1, intp(2))
	simplified.TraditionalCharacter = strp("愛")
	traditional := sample("們", 1, intp(3))
	s.create(identical, simplified, traditional)

	for typ, want := range map[string]string{
		entity.TypeIdentical:   "人",
		entity.TypeSimplified:  "爱",
		entity.TypeTraditional: "們",
	} {
		page, err := s.svc.List(s.owner, ListQuery{CharacterType: typ})
		require.NoError(s.T(), err)
		require.Len(s.T(), page.Data, 1, typ)
		require.Equal(s.T(), want, page.Data[0].StandardCharacter)
		require.Equal(s.T(), typ, page.Data[0].CharacterType)
	}

	page, err := s.svc.List(s.owner, ListQuery{CharacterType: "ancient"})
	require.ErrorIs(s.T(), err, action.ErrValidation)
	require.Equal(s.T(), 0, page.Total)
	require.NotEmpty(s.T(), page.Error)
}

func (s *ServiceSuite) TestSearchTerm() {
	s.create(sample("人", 1, intp(1)), sample("大", 1, intp(2)), sample("%", 1, intp(3)))

	page, err := s.svc.List(s.owner, ListQuery{SearchTerm: "大"})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, page.Total)
	require.Equal(s.T(), "大", page.Data[0].StandardCharacter)

	page, err = s.svc.List(s.owner, ListQuery{SearchTerm: "%"})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, page.Total, "wildcards match literally")
}

func (s *ServiceSuite) TestCreateNormalizesIdentical() {
	in := sample("人", 1, nil)
	in.IsIdentical = true
	in.TraditionalCharacter = strp("亻")
	in.TraditionalRadicalIDs = dictionary.RadicalRefs{{KangxiID: 1}}
	rows := s.create(in)

	got, err := s.svc.Get(s.owner, rows[0].ID)
	require.NoError(s.T(), err)
	require.True(s.T(), got.IsIdentical)
	require.Equal(s.T(), "人", *got.TraditionalCharacter)
	require.Equal(s.T(), got.SimplifiedRadicalIDs, got.TraditionalRadicalIDs)
	require.Equal(s.T(), 2, *got.TraditionalStrokeCount)
}

func (s *ServiceSuite) TestCreateCorrectsIsIdentical() {
	in := sample("大", 1, nil)
	in.TraditionalCharacter = strp("大")
	rows := s.create(in)

	got, err := s.svc.Get(s.owner, rows[0].ID)
	require.NoError(s.T(), err)
	require.True(s.T(), got.IsIdentical)
	require.Equal(s.T(), entity.TypeIdentical, got.CharacterType)
	require.Equal(s.T(), dictionary.RadicalRefs{{KangxiID: 9}}, got.TraditionalRadicalIDs)
}

func (s *ServiceSuite) TestCreateValidationRejectsWholeBatch() {
	bad := sample("人人", 9, nil)
	bad.SimplifiedStrokeCount = 65
	_, err := s.svc.Create(s.owner, []entity.HanziInput{sample("大", 1, nil), bad})
	require.ErrorIs(s.T(), err, action.ErrValidation)
	var ve *action.ValidationError
	require.ErrorAs(s.T(), err, &ve)
	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	require.True(s.T(), fields["[1].standard_character"])
	require.True(s.T(), fields["[1].hsk_level"])
	require.True(s.T(), fields["[1].simplified_stroke_count"])

	page, err := s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, page.Total, "nothing persisted")
}

func (s *ServiceSuite) TestCreateUnauthorized() {
	_, err := s.svc.Create(context.Background(), []entity.HanziInput{sample("人", 1, nil)})
	require.ErrorIs(s.T(), err, action.ErrUnauthorized)
}

func (s *ServiceSuite) TestDeleteByOtherUserIsDenied() {
	rows := s.create(sample("人", 1, nil))

	err := s.svc.Delete(s.other, rows[0].ID)
	require.ErrorIs(s.T(), err, action.ErrNotFoundOrForbidden)
	require.Equal(s.T(), "Hanzi not found or access denied", err.Error())

	_, err = s.svc.Get(s.owner, rows[0].ID)
	require.NoError(s.T(), err, "record left intact")

	require.NoError(s.T(), s.svc.Delete(s.owner, rows[0].ID))
	_, err = s.svc.Get(s.owner, rows[0].ID)
	require.ErrorIs(s.T(), err, action.ErrNotFoundOrForbidden)

	err = s.svc.Delete(s.owner, rows[0].ID)
	require.Equal(s.T(), "Hanzi not found or access denied", err.Error())
}

func (s *ServiceSuite) TestUpdateOwnerOnly() {
	rows := s.create(sample("人", 1, nil))
	in := sample("人", 2, intp(5))
	in.Definition = "human being"

	_, err := s.svc.Update(s.other, rows[0].ID, in)
	require.ErrorIs(s.T(), err, action.ErrNotFoundOrForbidden)

	got, err := s.svc.Update(s.owner, rows[0].ID, in)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "human being", got.Definition)
	require.Equal(s.T(), 2, got.HSKLevel)
	require.Equal(s.T(), 5, *got.FrequencyRank)
}

func (s *ServiceSuite) TestMutationsInvalidateCachedPages() {
	s.create(sample("人", 1, intp(1)))
	page, err := s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, page.Total)

	rows := s.create(sample("大", 1, intp(2)))
	page, err = s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, page.Total, "create must invalidate")

	require.NoError(s.T(), s.svc.Delete(s.owner, rows[0].ID))
	page, err = s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, page.Total, "delete must invalidate")
}

func (s *ServiceSuite) TestMutationDuringListIsVisibleNextRead() {
	s.create(sample("人", 1, intp(1)))
	racing := &commitBeforeSet{PageCache: s.cache}
	racing.before = func() { s.create(sample("大", 1, intp(2))) }
	s.svc.cache = racing

	page, err := s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, page.Total, "read before the create committed")

	page, err = s.svc.List(s.owner, ListQuery{})
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, page.Total)
}

func (s *ServiceSuite) TestStoreFailureDegradesPage() {
	require.NoError(s.T(), s.db.Close())
	page, err := s.svc.List(s.owner, ListQuery{Limit: 50, Page: 4})
	require.ErrorIs(s.T(), err, action.ErrStore)
	require.Empty(s.T(), page.Data)
	require.Equal(s.T(), 0, page.Total)
	require.Equal(s.T(), 1, page.Page)
	require.Equal(s.T(), 10, page.Limit)
	require.Equal(s.T(), 0, page.TotalPages)
	require.NotEmpty(s.T(), page.Error)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
