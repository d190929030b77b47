package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/assignment/domain"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	employeedomain "github.com/prontocore/kitchen/internal/employee/domain"
	"github.com/prontocore/kitchen/internal/observability/metrics"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/internal/ratelimit"
	"github.com/prontocore/kitchen/internal/realtime"
	tabledomain "github.com/prontocore/kitchen/internal/table/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockTTL = 5 * time.Second

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Clock     clock.Clock
	Employee  employeedomain.Service
	Table     tabledomain.Service
	OrderRepo orderdomain.Repository
	Bus       *realtime.Bus
	Config    config.Config
}

// Service is the AssignmentEngine (§4.5).
type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	employee employeedomain.Service
	table    tabledomain.Service
	orders   orderdomain.Repository
	bus      *realtime.Bus
	locker   *ratelimit.Locker
}

func New(p Params) domain.Service {
	var locker *ratelimit.Locker
	if addr := strings.TrimSpace(p.Config.RedisAddr); addr != "" {
		locker = ratelimit.NewLocker(redis.NewClient(&redis.Options{Addr: addr}))
	}
	return &Service{
		log:      p.Log.Named("assignment.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		employee: p.Employee,
		table:    p.Table,
		orders:   p.OrderRepo,
		bus:      p.Bus,
		locker:   locker,
	}
}

// withTableLock best-effort serializes assignment writes for one table
// using the teacher's Redis advisory lock (ratelimit.Locker). The database's
// own (waiter_id, table_id) uniqueness is the real backstop (§5); the lock
// only trims contention, so an unavailable lock never blocks the operation.
func (s *Service) withTableLock(ctx context.Context, tableID snowflake.ID, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	waitStart := s.clock.Now()
	key := fmt.Sprintf("assignment:lock:table:%d", tableID)
	token, ok, err := s.locker.TryLock(ctx, key, lockTTL)
	metrics.Domain().ObserveDBLockWait(metrics.LockResourceAssignmentAdvisory, s.clock.Now().Sub(waitStart))
	if err != nil || !ok {
		if err != nil {
			s.log.Warn("assignment lock unavailable, proceeding without it", zap.Error(err))
		}
		return fn()
	}
	defer func() {
		if err := s.locker.Release(ctx, key, token); err != nil {
			s.log.Warn("failed to release assignment lock", zap.Error(err))
		}
	}()
	return fn()
}

func (s *Service) AssignTables(ctx context.Context, req domain.AssignTablesRequest) (*domain.AssignResult, error) {
	result := &domain.AssignResult{}
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		for _, tableID := range req.TableIDs {
			if err := s.withTableLock(ctx, tableID, func() error {
				return s.assignOneTable(ctx, tx, req.WaiterID, tableID, req.Force, now, result)
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) assignOneTable(ctx context.Context, tx *gorm.DB, waiterID, tableID snowflake.ID, force bool, now time.Time, result *domain.AssignResult) error {
	active, err := s.repo.FindActiveByTable(ctx, tx, tableID)
	if err != nil {
		return err
	}
	if active != nil {
		if active.WaiterID == waiterID {
			result.AlreadyAssigned = append(result.AlreadyAssigned, tableID)
			return nil
		}
		if !force {
			result.Conflicts = append(result.Conflicts, domain.Conflict{TableID: tableID, CurrentWaiterID: active.WaiterID})
			return nil
		}
		active.IsActive = false
		active.UnassignedAt = &now
		if err := s.repo.Update(ctx, tx, active); err != nil {
			return err
		}
	}

	if err := s.acquireForWaiter(ctx, tx, waiterID, tableID, now); err != nil {
		return err
	}
	result.Assigned = append(result.Assigned, tableID)
	return nil
}

// acquireForWaiter reactivates the (waiter, table) row if one already
// exists - even inactive - rather than inserting a new one (§4.5, §5's
// composite uniqueness backstop).
func (s *Service) acquireForWaiter(ctx context.Context, tx *gorm.DB, waiterID, tableID snowflake.ID, now time.Time) error {
	existing, err := s.repo.FindByWaiterAndTable(ctx, tx, waiterID, tableID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.IsActive = true
		existing.AssignedAt = now
		existing.UnassignedAt = nil
		return s.repo.Update(ctx, tx, existing)
	}
	return s.repo.Create(ctx, tx, &domain.WaiterTableAssignment{
		ID:         s.genID.Generate(),
		WaiterID:   waiterID,
		TableID:    tableID,
		IsActive:   true,
		AssignedAt: now,
	})
}

func (s *Service) CheckConflicts(ctx context.Context, waiterID snowflake.ID, tableIDs []snowflake.ID) ([]domain.Conflict, error) {
	var conflicts []domain.Conflict
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		for _, tableID := range tableIDs {
			active, err := s.repo.FindActiveByTable(ctx, tx, tableID)
			if err != nil {
				return err
			}
			if active != nil && active.WaiterID != waiterID {
				conflicts = append(conflicts, domain.Conflict{TableID: tableID, CurrentWaiterID: active.WaiterID})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (s *Service) CreateTransfer(ctx context.Context, req domain.CreateTransferRequest) (*domain.TableTransferRequest, error) {
	var result *domain.TableTransferRequest
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		active, err := s.repo.FindActiveByTable(ctx, tx, req.TableID)
		if err != nil {
			return err
		}
		if active == nil || active.WaiterID != req.FromWaiterID {
			return domain.ErrNoActiveAssignment
		}

		pending, err := s.repo.FindPendingTransferByTable(ctx, tx, req.TableID)
		if err != nil {
			return err
		}
		if pending != nil {
			return domain.ErrDuplicateTransfer
		}

		transfer := &domain.TableTransferRequest{
			ID:           s.genID.Generate(),
			FromWaiterID: req.FromWaiterID,
			ToWaiterID:   req.ToWaiterID,
			TableID:      req.TableID,
			Message:      req.Message,
			Status:       domain.TransferPending,
			CreatedAt:    now,
		}
		if err := s.repo.CreateTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		result = transfer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventTransferRequested, map[string]any{
		"transfer_id":    result.ID,
		"table_id":       result.TableID,
		"from_waiter_id": result.FromWaiterID,
		"to_waiter_id":   result.ToWaiterID,
	})
	return result, nil
}

func (s *Service) AcceptTransfer(ctx context.Context, requestID, toWaiterID snowflake.ID, transferOrders bool) (*domain.TableTransferRequest, error) {
	result, orderCount, err := s.resolveTransfer(ctx, requestID, toWaiterID, domain.TransferAccepted, transferOrders)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventTransferAccepted, map[string]any{
		"transfer_id":        result.ID,
		"table_id":           result.TableID,
		"from_waiter_id":     result.FromWaiterID,
		"to_waiter_id":       result.ToWaiterID,
		"orders_transferred": transferOrders,
		"order_count":        orderCount,
	})
	return result, nil
}

func (s *Service) RejectTransfer(ctx context.Context, requestID, toWaiterID snowflake.ID) (*domain.TableTransferRequest, error) {
	result, _, err := s.resolveTransfer(ctx, requestID, toWaiterID, domain.TransferRejected, false)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventTransferRejected, map[string]any{
		"transfer_id":    result.ID,
		"table_id":       result.TableID,
		"from_waiter_id": result.FromWaiterID,
		"to_waiter_id":   result.ToWaiterID,
	})
	return result, nil
}

// resolveTransfer implements the shared validation and bookkeeping of
// AcceptTransfer/RejectTransfer (§4.5): only the target waiter may resolve a
// pending request. Accepting additionally swaps the active assignment and,
// when transferOrders is set, re-points every active order at the table
// from the sender to the target.
func (s *Service) resolveTransfer(ctx context.Context, requestID, toWaiterID snowflake.ID, outcome domain.TransferStatus, transferOrders bool) (*domain.TableTransferRequest, int, error) {
	var result *domain.TableTransferRequest
	var orderCount int
	now := s.clock.Now()

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		transfer, err := s.repo.FindTransferByID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if transfer == nil {
			return domain.ErrTransferNotFound
		}
		if transfer.Status != domain.TransferPending {
			return domain.ErrTransferNotPending
		}
		if transfer.ToWaiterID != toWaiterID {
			return domain.ErrWrongTargetWaiter
		}

		transfer.Status = outcome
		transfer.ResolvedAt = &now
		transfer.ResolverID = &toWaiterID

		if outcome == domain.TransferAccepted {
			active, err := s.repo.FindActiveByTable(ctx, tx, transfer.TableID)
			if err != nil {
				return err
			}
			if active != nil {
				active.IsActive = false
				active.UnassignedAt = &now
				if err := s.repo.Update(ctx, tx, active); err != nil {
					return err
				}
			}
			if err := s.acquireForWaiter(ctx, tx, transfer.ToWaiterID, transfer.TableID, now); err != nil {
				return err
			}

			if transferOrders {
				tbl, err := s.table.Get(ctx, transfer.TableID)
				if err != nil {
					return err
				}
				orders, err := s.orders.ListActiveByTableAndWaiter(ctx, tx, tbl.Code, transfer.FromWaiterID)
				if err != nil {
					return err
				}
				for i := range orders {
					o := orders[i]
					o.WaiterID = &transfer.ToWaiterID
					if err := s.orders.UpdateTx(ctx, tx, &o); err != nil {
						return err
					}
				}
				orderCount = len(orders)
			}
		}

		if err := s.repo.UpdateTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		result = transfer
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result, orderCount, nil
}

// AssignedWaiter implements order.domain.TableAssignmentHook for §4.5's
// "waiter-call resolution on order creation".
func (s *Service) AssignedWaiter(ctx context.Context, tableCode string) (*snowflake.ID, error) {
	tbl, err := s.table.GetByCode(ctx, tableCode)
	if err != nil {
		return nil, err
	}

	var waiterID *snowflake.ID
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		active, err := s.repo.FindActiveByTable(ctx, tx, tbl.ID)
		if err != nil {
			return err
		}
		if active != nil {
			id := active.WaiterID
			waiterID = &id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return waiterID, nil
}

// OnOrderAccepted implements order.domain.TableAssignmentHook for §4.5's
// "auto-assign on accept": best-effort AssignTables when the waiter's
// preference is set, then re-points the session's other "new" orders to the
// same waiter.
func (s *Service) OnOrderAccepted(ctx context.Context, waiterID snowflake.ID, tableCode string, sessionID, acceptedOrderID snowflake.ID) error {
	tbl, err := s.table.GetByCode(ctx, tableCode)
	if err != nil {
		return err
	}

	employee, err := s.employee.Get(ctx, waiterID)
	if err != nil {
		return err
	}
	if employee.Preferences().AutoAssignTableOnOrderAccept {
		if _, err := s.AssignTables(ctx, domain.AssignTablesRequest{WaiterID: waiterID, TableIDs: []snowflake.ID{tbl.ID}, Force: false}); err != nil {
			return err
		}
	}

	return s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		orders, err := s.orders.ListBySessionTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		for i := range orders {
			o := orders[i]
			if o.ID == acceptedOrderID || o.WorkflowStatus != orderdomain.StatusNew {
				continue
			}
			o.WaiterID = &waiterID
			if err := s.orders.UpdateTx(ctx, tx, &o); err != nil {
				return err
			}
		}
		return nil
	})
}
