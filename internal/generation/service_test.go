package generation

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
	"github.com/ovaphlow/pictoria/service-api/internal/auth"
	"github.com/ovaphlow/pictoria/service-api/internal/compositor"
	imagerepo "github.com/ovaphlow/pictoria/service-api/internal/generation/repo"
)

type fakeProvider struct {
	mu     sync.Mutex
	model  string
	input  map[string]any
	output []string
	err    error
}

func (f *fakeProvider) Predict(_ context.Context, model string, input map[string]any) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model, f.input = model, input
	return f.output, f.err
}

type fakeStore struct {
	keys  []string
	sizes []int
}

func (f *fakeStore) Put(_ context.Context, key, contentType string, body []byte) (string, error) {
	if contentType != "image/png" {
		return "", errors.New("unexpected content type " + contentType)
	}
	f.keys = append(f.keys, key)
	f.sizes = append(f.sizes, len(body))
	return "https://cdn.example.com/" + key, nil
}

type ServiceSuite struct {
	suite.Suite
	db       *sqlx.DB
	provider *fakeProvider
	store    *fakeStore
	svc      *Service
	userID   uuid.UUID
	owner    context.Context
	other    context.Context
	clock    time.Time
}

func (s *ServiceSuite) SetupTest() {
	db, err := sqlx.Open("sqlite3", ":memory:")
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	repo := imagerepo.NewImageRepo(db)
	s.Require().NoError(repo.EnsureTable(context.Background()))
	hanziFont, err := os.ReadFile("../compositor/testdata/hanzi-subset.ttf")
	s.Require().NoError(err)
	comp, err := compositor.New(compositor.Options{DisplaySize: 64, SuperSample: 2, CharFont: hanziFont})
	s.Require().NoError(err)

	s.db = db
	s.provider = &fakeProvider{output: []string{"https://r/1.webp"}}
	s.store = &fakeStore{}
	s.svc = NewService(repo, s.provider, comp, s.store, nil)
	s.clock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time {
		s.clock = s.clock.Add(time.Minute)
		return s.clock
	}
	s.userID = uuid.New()
	s.owner = auth.WithIdentity(context.Background(), &auth.Identity{UserID: s.userID})
	s.other = auth.WithIdentity(context.Background(), &auth.Identity{UserID: uuid.New()})
}

func (s *ServiceSuite) TearDownTest() {
	s.db.Close()
}

func schnell(prompt string) Request {
	p := FluxSchnellParams{Prompt: prompt}
	p.applyDefaults()
	return Request{Model: ModelFluxSchnell, Params: p}
}

func (s *ServiceSuite) TestGeneratePersistsEveryOutput() {
	s.provider.output = []string{"https://r/1.webp", "https://r/2.webp"}
	res, err := s.svc.Generate(s.owner, schnell("a red lantern"))
	require.NoError(s.T(), err)
	require.Empty(s.T(), res.Error)
	require.Len(s.T(), res.Images, 2)
	require.Equal(s.T(), fluxSchnellModel, s.provider.model)
	require.Equal(s.T(), "a red lantern", s.provider.input["prompt"])
	for _, img := range res.Images {
		require.Equal(s.T(), s.userID.String(), img.UserID)
		require.Equal(s.T(), "flux-schnell", img.Model)
		require.Nil(s.T(), img.SeedURL)
	}

	page, err := s.svc.List(s.owner, 1, 10)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 2, page.Total)
}

func (s *ServiceSuite) TestHanziSeedUploadsCard() {
	p := HanziSeedParams{Character: "龙", Pronunciations: []string{"lóng"}}
	p.applyDefaults()
	res, err := s.svc.Generate(s.owner, Request{Model: ModelHanziSeed, Params: p})
	require.NoError(s.T(), err)

	require.Len(s.T(), s.store.keys, 1)
	require.Regexp(s.T(), `^seeds/`+s.userID.String()+`/[0-9A-Za-z]{27}\.png$`, s.store.keys[0])
	require.Positive(s.T(), s.store.sizes[0])

	require.Equal(s.T(), fluxDevModel, s.provider.model)
	require.Equal(s.T(), "https://cdn.example.com/"+s.store.keys[0], s.provider.input["image"])
	require.Len(s.T(), res.Images, 1)
	require.NotNil(s.T(), res.Images[0].SeedURL)
	require.Equal(s.T(), "hanzi-seed", res.Images[0].Model)
}

func (s *ServiceSuite) TestHanziSeedRejectsBadCharacter() {
	p := HanziSeedParams{Character: "龙龙"}
	p.applyDefaults()
	res, err := s.svc.Generate(s.owner, Request{Model: ModelHanziSeed, Params: p})
	require.ErrorIs(s.T(), err, action.ErrInvalidInput)
	require.NotEmpty(s.T(), res.Error)
	require.Empty(s.T(), s.store.keys)
}

func (s *ServiceSuite) TestHanziSeedWithoutStore() {
	s.svc.store = nil
	p := HanziSeedParams{Character: "龙"}
	p.applyDefaults()
	_, err := s.svc.Generate(s.owner, Request{Model: ModelHanziSeed, Params: p})
	require.True(s.T(), upstream(err))
}

func (s *ServiceSuite) TestGenerateFailures() {
	res, err := s.svc.Generate(context.Background(), schnell("x"))
	require.ErrorIs(s.T(), err, action.ErrUnauthorized)
	require.NotNil(s.T(), res.Images)

	_, err = s.svc.Generate(s.owner, schnell(""))
	require.ErrorIs(s.T(), err, action.ErrValidation)

	s.provider.err = ErrPrediction
	res, err = s.svc.Generate(s.owner, schnell("x"))
	require.ErrorIs(s.T(), err, ErrPrediction)
	require.Equal(s.T(), ErrPrediction.Error(), res.Error)

	page, err := s.svc.List(s.owner, 1, 10)
	require.NoError(s.T(), err)
	require.Zero(s.T(), page.Total, "failed runs persist nothing")
}

func (s *ServiceSuite) TestListOwnerScopedNewestFirst() {
	for _, prompt := range []string{"first", "second", "third"} {
		_, err := s.svc.Generate(s.owner, schnell(prompt))
		require.NoError(s.T(), err)
	}
	_, err := s.svc.Generate(s.other, schnell("someone else"))
	require.NoError(s.T(), err)

	page, err := s.svc.List(s.owner, 1, 2)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 3, page.Total)
	require.Equal(s.T(), 2, page.TotalPages)
	require.Equal(s.T(), "third", page.Data[0].Prompt)
	require.Equal(s.T(), "second", page.Data[1].Prompt)

	page, err = s.svc.List(context.Background(), 1, 2)
	require.ErrorIs(s.T(), err, action.ErrUnauthorized)
	require.Equal(s.T(), 10, page.Limit)
}

func (s *ServiceSuite) TestDeleteIsOwnerScoped() {
	res, err := s.svc.Generate(s.owner, schnell("mine"))
	require.NoError(s.T(), err)
	id := res.Images[0].ID

	err = s.svc.Delete(s.other, id)
	require.ErrorIs(s.T(), err, action.ErrNotFoundOrForbidden)
	require.Equal(s.T(), "Image not found or access denied", err.Error())

	require.NoError(s.T(), s.svc.Delete(s.owner, id))
	page, err := s.svc.List(s.owner, 1, 10)
	require.NoError(s.T(), err)
	require.Zero(s.T(), page.Total)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
