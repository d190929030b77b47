package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	employeedomain "github.com/prontocore/kitchen/internal/employee/domain"
	"github.com/prontocore/kitchen/internal/realtime"
	"github.com/prontocore/kitchen/internal/waitercall/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Employee employeedomain.Service
	Bus      *realtime.Bus
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	employee employeedomain.Service
	bus      *realtime.Bus
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("waitercall.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		employee: p.Employee,
		bus:      p.Bus,
	}
}

func (s *Service) RequestOrReuse(ctx context.Context, req domain.CreateRequest) (*domain.WaiterCall, bool, error) {
	existing, err := s.repo.FindPendingBySessionAndType(ctx, req.SessionID, req.CallType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.emit(ctx, existing)
		return existing, false, nil
	}

	call := &domain.WaiterCall{
		ID:        s.genID.Generate(),
		SessionID: req.SessionID,
		TableCode: req.TableCode,
		CallType:  req.CallType,
		Note:      req.Note,
		Status:    domain.StatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Create(ctx, call); err != nil {
		return nil, false, err
	}
	s.emit(ctx, call)
	return call, true, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID, waiterID snowflake.ID) (*domain.WaiterCall, error) {
	call, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, domain.ErrNotFound
	}
	if call.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyResolved
	}
	now := s.clock.Now()
	call.Status = domain.StatusConfirmed
	call.WaiterID = &waiterID
	call.ConfirmedAt = &now
	if err := s.repo.Update(ctx, call); err != nil {
		return nil, err
	}
	s.emit(ctx, call)
	return call, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.WaiterCall, error) {
	call, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, domain.ErrNotFound
	}
	if call.Status != domain.StatusPending {
		return nil, domain.ErrAlreadyResolved
	}
	now := s.clock.Now()
	call.Status = domain.StatusCancelled
	call.CancelledAt = &now
	if err := s.repo.Update(ctx, call); err != nil {
		return nil, err
	}
	s.emit(ctx, call)
	return call, nil
}

func (s *Service) CallSupervisor(ctx context.Context, req domain.CallSupervisorRequest) (*domain.SupervisorCall, error) {
	call := &domain.SupervisorCall{
		ID:         s.genID.Generate(),
		EmployeeID: req.EmployeeID,
		TableCode:  req.TableCode,
		OrderID:    req.OrderID,
		Reason:     req.Reason,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.CreateSupervisorCall(ctx, call); err != nil {
		return nil, err
	}

	name, err := s.employee.DisplayName(ctx, req.EmployeeID)
	if err != nil {
		s.log.Warn("failed to resolve employee display name for supervisor call", zap.Error(err))
	}

	s.bus.Publish(ctx, realtime.EventSupervisorCalled, map[string]any{
		"employee_id":   call.EmployeeID,
		"employee_name": name,
		"table_code":    call.TableCode,
		"order_id":      call.OrderID,
	})
	return call, nil
}

func (s *Service) emit(ctx context.Context, call *domain.WaiterCall) {
	eventType := realtime.EventWaiterCallCreated
	switch call.Status {
	case domain.StatusConfirmed:
		eventType = realtime.EventWaiterCallConfirmed
	case domain.StatusCancelled:
		eventType = realtime.EventWaiterCallCancelled
	}
	s.bus.Publish(ctx, eventType, map[string]any{
		"call_id":    call.ID,
		"session_id": call.SessionID,
		"table_code": call.TableCode,
		"status":     call.Status,
		"call_type":  call.CallType,
		"waiter_id":  call.WaiterID,
	})
}
