package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/prontocore/kitchen/internal/table/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

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
		log:   p.Log.Named("table.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTableRequest) (domain.Table, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !domain.ValidateCode(code) {
		return domain.Table{}, domain.ErrInvalidCode
	}
	if req.Capacity <= 0 {
		return domain.Table{}, domain.ErrInvalidCapacity
	}
	if req.AreaID == 0 {
		return domain.Table{}, domain.ErrInvalidArea
	}

	shape := req.Shape
	if shape == "" {
		shape = domain.ShapeSquare
	}

	table := domain.Table{
		ID:       s.genID.Generate(),
		Code:     code,
		QRToken:  uuid.NewString(),
		AreaID:   req.AreaID,
		Capacity: req.Capacity,
		Status:   domain.TableAvailable,
		Shape:    shape,
		Active:   true,
	}

	if err := s.repo.Insert(ctx, &table); err != nil {
		return domain.Table{}, err
	}

	return table, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Table, error) {
	table, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Table{}, err
	}
	if table == nil {
		return domain.Table{}, domain.ErrNotFound
	}
	return *table, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Table, error) {
	table, err := s.repo.FindByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return domain.Table{}, err
	}
	if table == nil {
		return domain.Table{}, domain.ErrNotFound
	}
	return *table, nil
}

func (s *Service) List(ctx context.Context, areaID snowflake.ID, activeOnly bool) ([]domain.Table, error) {
	items, err := s.repo.List(ctx, areaID, activeOnly)
	if err != nil {
		return nil, err
	}
	tables := make([]domain.Table, 0, len(items))
	for _, item := range items {
		tables = append(tables, *item)
	}
	return tables, nil
}

func (s *Service) SetStatus(ctx context.Context, id snowflake.ID, status domain.TableStatus) error {
	return s.repo.SetStatus(ctx, id, status)
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	return s.repo.Deactivate(ctx, id)
}
