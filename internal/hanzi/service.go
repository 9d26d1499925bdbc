package hanzi

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
	"github.com/ovaphlow/pictoria/service-api/internal/hanzi/entity"
	hanzirepo "github.com/ovaphlow/pictoria/service-api/internal/hanzi/repo"
)

const (
	cacheNamespace = "hanzi"
	entityName     = "Hanzi"

	MinStrokes = 1
	MaxStrokes = 64
)

// Service orchestrates Hanzi reads and owner-scoped mutations.
type Service struct {
	repo   *hanzirepo.HanziRepo
	cache  cache.PageCache
	logger *zap.SugaredLogger
}

func NewService(r *hanzirepo.HanziRepo, c cache.PageCache, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, cache: c, logger: logger}
}

// ListQuery is the filter/pagination request of the list endpoint.
type ListQuery struct {
	Limit         int
	Page          int
	HSKLevel      *int
	CharacterType string
	SearchTerm    string
}

func (q ListQuery) cacheKey(p action.Pagination) string {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(p.Limit))
	v.Set("page", strconv.Itoa(p.Page))
	if q.HSKLevel != nil {
		v.Set("hsk_level", strconv.Itoa(*q.HSKLevel))
	}
	v.Set("character_type", q.CharacterType)
	v.Set("search_term", strings.TrimSpace(q.SearchTerm))
	return v.Encode()
}

// List always returns a well-formed page. The error, when non-nil, is the
// same failure already reported in page.Error and only classifies it.
func (s *Service) List(ctx context.Context, q ListQuery) (action.Page[entity.Hanzi], error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return action.FailedPage[entity.Hanzi](action.ErrUnauthorized), action.ErrUnauthorized
	}
	if q.HSKLevel != nil && (*q.HSKLevel < dictionary.MinHSKLevel || *q.HSKLevel > dictionary.MaxHSKLevel) {
		err := action.Validation("hsk_level", "must be between %d and %d", dictionary.MinHSKLevel, dictionary.MaxHSKLevel)
		return action.FailedPage[entity.Hanzi](err), err
	}
	if q.CharacterType != "" && !entity.ValidCharacterType(q.CharacterType) {
		err := action.Validation("character_type", "must be one of identical, simplified, traditional")
		return action.FailedPage[entity.Hanzi](err), err
	}

	p := action.NewPagination(q.Page, q.Limit)
	key := q.cacheKey(p)
	var cached action.Page[entity.Hanzi]
	gen, found, cacheErr := s.cache.Get(ctx, cacheNamespace, key, &cached)
	if cacheErr != nil {
		s.logger.Warnw("hanzi page cache read failed", "err", cacheErr)
	} else if found {
		return cached, nil
	}

	f := hanzirepo.Filter{HSKLevel: q.HSKLevel, CharacterType: q.CharacterType, SearchTerm: q.SearchTerm}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		s.logger.Errorw("hanzi count failed", "err", err)
		return action.FailedPage[entity.Hanzi](err), action.StoreError(err)
	}
	rows, err := s.repo.List(ctx, f, p.Limit, p.Offset())
	if err != nil {
		s.logger.Errorw("hanzi list failed", "err", err)
		return action.FailedPage[entity.Hanzi](err), action.StoreError(err)
	}

	page := action.NewPage(rows, total, p.Page, p.Limit)
	if cacheErr == nil {
		if err := s.cache.Set(ctx, cacheNamespace, key, gen, page); err != nil {
			s.logger.Warnw("hanzi page cache write failed", "err", err)
		}
	}
	return page, nil
}

// Get returns one Hanzi by id.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Hanzi, error) {
	if _, ok := auth.FromContext(ctx); !ok {
		return nil, action.ErrUnauthorized
	}
	h, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, action.NotFoundOrForbidden(entityName)
		}
		return nil, action.StoreError(err)
	}
	return h, nil
}

// Create validates and normalizes every payload before inserting any of them.
func (s *Service) Create(ctx context.Context, inputs []entity.HanziInput) ([]*entity.Hanzi, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, action.ErrUnauthorized
	}
	if len(inputs) == 0 {
		return nil, action.Validation("payload", "at least one hanzi is required")
	}
	verr := &action.ValidationError{}
	rows := make([]*entity.Hanzi, 0, len(inputs))
	for i := range inputs {
		in := inputs[i]
		Normalize(&in)
		if len(inputs) == 1 {
			verr.Merge("", Validate(in))
		} else {
			verr.Merge(fmt.Sprintf("[%d].", i), Validate(in))
		}
		rows = append(rows, in.ToHanzi(id.UserID.String()))
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMany(ctx, rows); err != nil {
		s.logger.Errorw("hanzi create failed", "err", err, "count", len(rows))
		return nil, action.StoreError(err)
	}
	s.invalidate(ctx)
	s.logger.Infow("hanzi created", "count", len(rows), "user_id", id.UserID)
	return rows, nil
}

// Update replaces a Hanzi owned by the acting user.
func (s *Service) Update(ctx context.Context, hanziID int64, in entity.HanziInput) (*entity.Hanzi, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, action.ErrUnauthorized
	}
	Normalize(&in)
	if err := Validate(in).Err(); err != nil {
		return nil, err
	}
	row := in.ToHanzi(id.UserID.String())
	row.ID = hanziID
	n, err := s.repo.Update(ctx, row)
	if err != nil {
		s.logger.Errorw("hanzi update failed", "err", err, "id", hanziID)
		return nil, action.StoreError(err)
	}
	if n == 0 {
		return nil, action.NotFoundOrForbidden(entityName)
	}
	s.invalidate(ctx)
	updated, err := s.repo.GetByID(ctx, hanziID)
	if err != nil {
		return nil, action.StoreError(err)
	}
	return updated, nil
}

// Delete removes a Hanzi owned by the acting user.
func (s *Service) Delete(ctx context.Context, hanziID int64) error {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return action.ErrUnauthorized
	}
	n, err := s.repo.Delete(ctx, hanziID, id.UserID.String())
	if err != nil {
		s.logger.Errorw("hanzi delete failed", "err", err, "id", hanziID)
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
		s.logger.Warnw("hanzi page cache invalidation failed", "err", err)
	}
}
