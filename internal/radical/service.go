package radical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/auth"
	"github.com/ovaphlow/pictoria/service-api/internal/cache"
	"github.com/ovaphlow/pictoria/service-api/internal/dictionary"
	"github.com/ovaphlow/pictoria/service-api/internal/radical/entity"
	radicalrepo "github.com/ovaphlow/pictoria/service-api/internal/radical/repo"
	"github.com/ovaphlow/pictoria/service-api/pkg/database"
)

const (
	cacheNamespace = "radicals"
	entityName     = "Radical"

	MinStrokes  = 1
	MaxStrokes  = 20
	MaxVariants = 2
)

// Service orchestrates Radical reads and owner-scoped mutations.
type Service struct {
	repo   *radicalrepo.RadicalRepo
	cache  cache.PageCache
	logger *zap.SugaredLogger
}

func NewService(r *radicalrepo.RadicalRepo, c cache.PageCache, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, cache: c, logger: logger}
}

type ListQuery struct {
	Limit      int
	Page       int
	HSKLevel   *int
	SearchTerm string
}

func (q ListQuery) cacheKey(p action.Pagination) string {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("page", strconv.Itoa(p.Page))
	if q.HSKLevel != nil {
		v.Set("hsk_level", strconv.Itoa(*q.HSKLevel))
	}
	v.Set("search_term", strings.ToLower(strings.TrimSpace(q.SearchTerm)))
	return v.Encode()
}

// List always returns a well-formed page; see hanzi.Service.List.
func (s *Service) List(ctx context.Context, q ListQuery) (action.Page[entity.Radical], error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return action.FailedPage[entity.Radical](action.ErrUnauthorized), action.ErrUnauthorized
	}
	if q.HSKLevel != nil && (*q.HSKLevel < dictionary.MinHSKLevel || *q.HSKLevel > dictionary.MaxHSKLevel) {
		err := action.Validation("hsk_level", "must be between %d and %d", dictionary.MinHSKLevel, dictionary.MaxHSKLevel)
		return action.FailedPage[entity.Radical](err), err
	}

	p := action.NewPagination(q.Page, q.Limit)
	key := q.cacheKey(p)
	var cached action.Page[entity.Radical]
	gen, found, cacheErr := s.cache.Get(ctx, cacheNamespace, key, &cached)
	if cacheErr != nil {
		s.logger.Warnw("radical page cache read failed", "err", cacheErr)
	} else if found {
		return cached, nil
	}

	f := radicalrepo.Filter{HSKLevel: q.HSKLevel, SearchTerm: q.SearchTerm}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		s.logger.Errorw("radical count failed", "err", err)
		return action.FailedPage[entity.Radical](err), action.StoreError(err)
	}
	rows, err := s.repo.List(ctx, f, p.Limit, p.Offset())
	if err != nil {
		s.logger.Errorw("radical list failed", "err", err)
		return action.FailedPage[entity.Radical](err), action.StoreError(err)
	}

	page := action.NewPage(rows, total, p.Page, p.Limit)
	if cacheErr == nil {
		if err := s.cache.Set(ctx, cacheNamespace, key, gen, page); err != nil {
			s.logger.Warnw("radical page cache write failed", "err", err)
		}
	}
	return page, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Radical, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, action.ErrUnauthorized
	}
	return s.found(s.repo.GetByID(ctx, id))
}

// GetByKangxi looks a radical up by its Kangxi number.
func (s *Service) GetByKangxi(ctx context.Context, number int) (*entity.Radical, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, action.ErrUnauthorized
	}
	if number < dictionary.MinKangxi || number > dictionary.MaxKangxi {
		return nil, action.Validation("kangxi_number", "must be between %d and %d", dictionary.MinKangxi, dictionary.MaxKangxi)
	}
	return s.found(s.repo.GetByKangxi(ctx, number))
}

func (s *Service) found(r *entity.Radical, err error) (*entity.Radical, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, action.NotFoundOrForbidden(entityName)
		}
		return nil, action.StoreError(err)
	}
	return r, nil
}

// Normalize trims free-text fields in place.
func Normalize(in *entity.RadicalInput) {
	in.NameEn = strings.TrimSpace(in.NameEn)
	in.Meaning = strings.TrimSpace(in.Meaning)
	for i := range in.Forms {
		in.Forms[i].Variant = strings.TrimSpace(in.Forms[i].Variant)
	}
	dictionary.TrimPinyin(in.Pinyin)
}

// Validate checks a normalized payload and returns every failed field.
func Validate(in entity.RadicalInput) *action.ValidationError {
	v := &action.ValidationError{}
	if len(in.Forms) == 0 {
		v.Add("forms", "at least one form is required")
	}
	for i, f := range in.Forms {
		field := "forms[" + strconv.Itoa(i) + "]"
		if n := dictionary.GraphemeCount(f.Variant); n < 1 || n > MaxVariants {
			v.Add(field+".variant", "must be 1 to %d characters, got %d", MaxVariants, n)
		}
		if f.Strokes < MinStrokes || f.Strokes > MaxStrokes {
			v.Add(field+".strokes", "must be between %d and %d, got %d", MinStrokes, MaxStrokes, f.Strokes)
		}
	}
	dictionary.CheckPinyin(v, "pinyin", in.Pinyin, true)
	if in.KangxiNumber < dictionary.MinKangxi || in.KangxiNumber > dictionary.MaxKangxi {
		v.Add("kangxi_number", "must be between %d and %d, got %d", dictionary.MinKangxi, dictionary.MaxKangxi, in.KangxiNumber)
	}
	if in.HSKLevel != nil {
		dictionary.CheckHSK(v, "hsk_level", *in.HSKLevel)
	}
	if in.NameEn == "" {
		v.Add("name_en", "is required")
	}
	if in.Meaning == "" {
		v.Add("meaning", "is required")
	}
	return v
}

// Create validates every payload before inserting any of them.
func (s *Service) Create(ctx context.Context, inputs []entity.RadicalInput) ([]*entity.Radical, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, action.ErrUnauthorized
	}
	if len(inputs) == 0 {
		return nil, action.Validation("payload", "at least one radical is required")
	}
	verr := &action.ValidationError{}
	seen := make(map[int]int, len(inputs))
	rows := make([]*entity.Radical, 0, len(inputs))
	for i := range inputs {
		in := inputs[i]
		Normalize(&in)
		prefix := ""
		if len(inputs) > 1 {
			prefix = fmt.Sprintf("[%d].", i)
		}
		verr.Merge(prefix, Validate(in))
		if j, dup := seen[in.KangxiNumber]; dup {
			verr.Add(prefix+"kangxi_number", "duplicates payload [%d]", j)
		}
		seen[in.KangxiNumber] = i
		rows = append(rows, in.ToRadical(id.UserID.String()))
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMany(ctx, rows); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, action.Validation("kangxi_number", "kangxi_number already exists")
		}
		s.logger.Errorw("radical create failed", "err", err, "count", len(rows))
		return nil, action.StoreError(err)
	}
	s.invalidate(ctx)
	s.logger.Infow("radicals created", "count", len(rows), "user_id", id.UserID)
	return rows, nil
}

// Update replaces a radical owned by the acting user.
func (s *Service) Update(ctx context.Context, radicalID int64, in entity.RadicalInput) (*entity.Radical, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, action.ErrUnauthorized
	}
	Normalize(&in)
	if err := Validate(in).Err(); err != nil {
		return nil, err
	}
	row := in.ToRadical(id.UserID.String())
	row.ID = radicalID
	n, err := s.repo.Update(ctx, row)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, action.Validation("kangxi_number", "kangxi_number already exists")
		}
		s.logger.Errorw("radical update failed", "err", err, "id", radicalID)
		return nil, action.StoreError(err)
	}
	if n == 0 {
		return nil, action.NotFoundOrForbidden(entityName)
	}
	s.invalidate(ctx)
	return s.found(s.repo.GetByID(ctx, radicalID))
}

// Delete removes a radical owned by the acting user.
func (s *Service) Delete(ctx context.Context, radicalID int64) error {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return action.ErrUnauthorized
	}
	n, err := s.repo.Delete(ctx, radicalID, id.UserID.String())
	if err != nil {
		s.logger.Errorw("radical delete failed", "err", err, "id", radicalID)
		return action.StoreError(err)
	}
	if n == 0 {
		return action.NotFoundOrForbidden(entityName)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cacheNamespace); err != nil {
		s.logger.Warnw("radical page cache invalidation failed", "err", err)
	}
}
