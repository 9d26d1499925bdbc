// Package generation turns typed model requests into hosted inference runs
// and keeps a per-user history of the resulting images.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/auth"
	"github.com/ovaphlow/pictoria/service-api/internal/compositor"
	"github.com/ovaphlow/pictoria/service-api/internal/generation/entity"
	imagerepo "github.com/ovaphlow/pictoria/service-api/internal/generation/repo"
	"github.com/ovaphlow/pictoria/service-api/internal/storage"
	"github.com/ovaphlow/pictoria/service-api/pkg/utilities"
)

const entityName = "Image"

// Result is the outcome of one generation request.
type Result struct {
	Images []entity.GeneratedImage `json:"images"`
	Error  string                  `json:"error,omitempty"`
}

type Service struct {
	repo       *imagerepo.ImageRepo
	provider   Provider
	compositor *compositor.Compositor
	store      storage.ObjectStore
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewService wires the pipeline. store may be nil, which disables hanzi-seed.
func NewService(r *imagerepo.ImageRepo, p Provider, c *compositor.Compositor, store storage.ObjectStore, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		repo:       r,
		provider:   p,
		compositor: c,
		store:      store,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Generate runs req for the acting user and persists every output. The error,
// when non-nil, is also reported in Result.Error.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return failed(action.ErrUnauthorized)
	}
	if req.Params == nil {
		return failed(action.Validation("params", "are required"))
	}
	if err := req.Params.Validate().Err(); err != nil {
		return failed(err)
	}
	userID := id.UserID.String()

	var (
		model  string
		input  map[string]any
		prompt string
		seed   *string
	)
	switch p := req.Params.(type) {
	case FluxSchnellParams:
		model, input, prompt = fluxSchnellModel, p.input(), p.Prompt
	case FluxDevParams:
		model, input, prompt = fluxDevModel, p.input(), p.Prompt
	case HanziSeedParams:
		url, err := s.uploadSeed(ctx, userID, p)
		if err != nil {
			return failed(err)
		}
		seed = &url
		model, input, prompt = fluxDevModel, p.devParams(url).input(), p.Prompt
	default:
		return failed(action.Validation("model", "unsupported model %q", req.Model))
	}

	start := time.Now()
	urls, err := s.provider.Predict(ctx, model, input)
	if err != nil {
		s.logger.Errorw("prediction failed", "err", err, "model", model, "user_id", userID)
		return failed(err)
	}
	s.logger.Infow("prediction finished", "model", model, "outputs", len(urls), "elapsed", time.Since(start))

	created := s.now()
	images := make([]entity.GeneratedImage, 0, len(urls))
	for _, u := range urls {
		images = append(images, entity.GeneratedImage{
			ID:        utilities.NewKSUID(),
			UserID:    userID,
			Model:     string(req.Model),
			Prompt:    prompt,
			ImageURL:  u,
			SeedURL:   seed,
			CreatedAt: created,
		})
	}
	if err := s.repo.SaveMany(ctx, images); err != nil {
		s.logger.Errorw("saving generated images failed", "err", err, "user_id", userID)
		return failed(action.StoreError(err))
	}
	return Result{Images: images}, nil
}

func (s *Service) uploadSeed(ctx context.Context, userID string, p HanziSeedParams) (string, error) {
	if s.store == nil {
		return "", storage.ErrNotConfigured
	}
	if s.compositor == nil {
		return "", fmt.Errorf("%w: compositor is not configured", action.ErrRenderUnavailable)
	}
	img, err := s.compositor.Render(p.Character, p.Pronunciations)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("seeds/%s/%s.png", userID, utilities.NewKSUID())
	url, err := s.store.Put(ctx, key, "image/png", img.PNG)
	if err != nil {
		s.logger.Errorw("seed upload failed", "err", err, "key", key)
		return "", err
	}
	s.logger.Debugw("seed uploaded", "key", key, "bytes", img.Size)
	return url, nil
}

func failed(err error) (Result, error) {
	return Result{Images: []entity.GeneratedImage{}, Error: err.Error()}, err
}

// List returns the acting user's images, newest first.
func (s *Service) List(ctx context.Context, page, limit int) (action.Page[entity.GeneratedImage], error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return action.FailedPage[entity.GeneratedImage](action.ErrUnauthorized), action.ErrUnauthorized
	}
	p := action.NewPagination(page, limit)
	userID := id.UserID.String()
	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return action.FailedPage[entity.GeneratedImage](err), action.StoreError(err)
	}
	rows, err := s.repo.ListByUser(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return action.FailedPage[entity.GeneratedImage](err), action.StoreError(err)
	}
	return action.NewPage(rows, total, p.Page, p.Limit), nil
}

// Delete removes an image owned by the acting user.
func (s *Service) Delete(ctx context.Context, imageID string) error {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return action.ErrUnauthorized
	}
	n, err := s.repo.Delete(ctx, imageID, id.UserID.String())
	if err != nil {
		return action.StoreError(err)
	}
	if n == 0 {
		return action.NotFoundOrForbidden(entityName)
	}
	return nil
}

// upstream reports whether err came from a dependency outside this service.
func upstream(err error) bool {
	return errors.Is(err, ErrPrediction) || errors.Is(err, ErrProviderNotConfigured) || errors.Is(err, storage.ErrNotConfigured)
}
