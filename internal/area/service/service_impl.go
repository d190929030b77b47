package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/area/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var prefixPattern = regexp.MustCompile(`^[A-Z]{1,3}$`)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("area.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAreaRequest) (domain.Area, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Area{}, domain.ErrInvalidName
	}

	prefix := strings.ToUpper(strings.TrimSpace(req.Prefix))
	if !prefixPattern.MatchString(prefix) {
		return domain.Area{}, domain.ErrInvalidPrefix
	}

	area := domain.Area{
		ID:              s.genID.Generate(),
		Name:            name,
		Color:           strings.TrimSpace(req.Color),
		Prefix:          prefix,
		BackgroundImage: strings.TrimSpace(req.BackgroundImage),
		Active:          true,
	}

	if err := s.repo.Insert(ctx, &area); err != nil {
		return domain.Area{}, err
	}

	return area, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Area, error) {
	area, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Area{}, err
	}
	if area == nil {
		return domain.Area{}, domain.ErrNotFound
	}
	return *area, nil
}

func (s *Service) GetByPrefix(ctx context.Context, prefix string) (domain.Area, error) {
	area, err := s.repo.FindByPrefix(ctx, strings.ToUpper(strings.TrimSpace(prefix)))
	if err != nil {
		return domain.Area{}, err
	}
	if area == nil {
		return domain.Area{}, domain.ErrNotFound
	}
	return *area, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Area, error) {
	items, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	areas := make([]domain.Area, 0, len(items))
	for _, item := range items {
		areas = append(areas, *item)
	}
	return areas, nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	return s.repo.Deactivate(ctx, id)
}
