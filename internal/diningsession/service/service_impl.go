package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	customerdomain "github.com/prontocore/kitchen/internal/customer/domain"
	"github.com/prontocore/kitchen/internal/diningsession/domain"
	"github.com/prontocore/kitchen/internal/observability/metrics"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/internal/realtime"
	tabledomain "github.com/prontocore/kitchen/internal/table/domain"
	waitercalldomain "github.com/prontocore/kitchen/internal/waitercall/domain"
	pkgdb "github.com/prontocore/kitchen/pkg/db"
	"github.com/prontocore/kitchen/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	TableRepo  tabledomain.Repository
	OrderRepo  orderdomain.Repository
	Customer   customerdomain.Service
	WaiterCall waitercalldomain.Service
	Bus        *realtime.Bus
	Config     config.Config
}

// Service is the SessionCoordinator (§4.2) and the session-level half of
// SettlementEngine (§4.3).
type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	tableRepo  tabledomain.Repository
	orderRepo  orderdomain.Repository
	customer   customerdomain.Service
	waitercall waitercalldomain.Service
	bus        *realtime.Bus
	ttl        time.Duration
}

func New(p Params) domain.Service {
	ttl := time.Duration(p.Config.SessionTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &Service{
		log:        p.Log.Named("diningsession.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		tableRepo:  p.TableRepo,
		orderRepo:  p.OrderRepo,
		customer:   p.Customer,
		waitercall: p.WaiterCall,
		bus:        p.Bus,
		ttl:        ttl,
	}
}

// Resolve implements the §4.2 get-or-create resolution order.
func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.DiningSession, error) {
	var result *domain.DiningSession

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.clock.Now()

		// Step 1: hint session.
		if req.HintSessionID != nil {
			session, err := s.repo.FindByIDTx(ctx, tx, *req.HintSessionID)
			if err != nil {
				return err
			}
			if session != nil && session.Status == domain.StatusOpen {
				if session.IsExpired(now) {
					if err := s.closeTx(ctx, tx, session, now); err != nil {
						return err
					}
				} else {
					result = session
					return nil
				}
			}
		}

		// Step 2: table lookup, under a row lock on the table to serialize
		// concurrent creations against the same table (§4.2, §5).
		if req.TableID != nil {
			if _, err := s.tableRepo.LockForUpdate(ctx, tx, *req.TableID); err != nil {
				return err
			}
			session, err := s.repo.FindOpenByTable(ctx, tx, *req.TableID)
			if err != nil {
				return err
			}
			if session != nil {
				if session.IsExpired(now) {
					if err := s.closeTx(ctx, tx, session, now); err != nil {
						return err
					}
				} else {
					result = session
					return nil
				}
			}
		}

		// Step 3: customer lookup.
		session, err := s.repo.FindOpenByCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if session != nil {
			if session.IsExpired(now) {
				if err := s.closeTx(ctx, tx, session, now); err != nil {
					return err
				}
			} else {
				result = session
				return nil
			}
		}

		// Step 4: create.
		created := &domain.DiningSession{
			ID:         s.genID.Generate(),
			TableID:    req.TableID,
			TableCode:  req.TableCode,
			CustomerID: req.CustomerID,
			Status:     domain.StatusOpen,
			ExpiresAt:  now.Add(s.ttl),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if req.TableID == nil {
			if err := s.repo.Create(ctx, tx, created); err != nil {
				return err
			}
			result = created
			return nil
		}

		// The partial-uniqueness index on (table_id) where status = open is
		// the last-resort safety net (§5): if a concurrent transaction won
		// the race, roll back just the insert and requery.
		if err := tx.SavePoint("diningsession_create").Error; err != nil {
			return err
		}
		if err := s.repo.Create(ctx, tx, created); err != nil {
			if !pkgdb.IsDuplicateKeyErr(err) {
				return err
			}
			tx.RollbackTo("diningsession_create")
			metrics.Domain().IncSessionRace()

			requeried, rqErr := s.repo.FindOpenByTable(ctx, tx, *req.TableID)
			if rqErr != nil {
				return rqErr
			}
			if requeried == nil {
				return domain.ErrSessionRaceUnresolved
			}
			result = requeried
			return nil
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) closeTx(ctx context.Context, tx *gorm.DB, session *domain.DiningSession, now time.Time) error {
	session.Status = domain.StatusClosed
	session.ClosedAt = &now
	session.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, session); err != nil {
		return err
	}
	s.bus.Publish(ctx, realtime.EventSessionStatusChanged, map[string]any{
		"session_id": session.ID,
		"status":     session.Status,
		"table_code": session.TableCode,
	})
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.DiningSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if session.IsExpired(s.clock.Now()) {
		var closed *domain.DiningSession
		txErr := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
			fresh, err := s.repo.FindByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if fresh == nil || !fresh.IsExpired(s.clock.Now()) {
				closed = fresh
				return nil
			}
			if err := s.closeTx(ctx, tx, fresh, s.clock.Now()); err != nil {
				return err
			}
			closed = fresh
			return nil
		})
		if txErr != nil {
			return nil, txErr
		}
		return closed, nil
	}
	return session, nil
}

// RecomputeTotals re-sums the session's child orders inside tx (§4.2).
func (s *Service) RecomputeTotals(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) (*domain.DiningSession, error) {
	session, err := s.repo.FindByIDTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}

	orders, err := s.orderRepo.ListBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	var subtotal, tax money.Cents
	for _, o := range orders {
		if o.WorkflowStatus == orderdomain.StatusCancelled {
			continue
		}
		subtotal += o.Subtotal
		tax += o.TaxAmount
	}

	session.Subtotal = subtotal
	session.TaxAmount = tax
	session.TotalAmount = subtotal + tax + session.TipAmount
	session.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, tx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RecomputeAndMaybeClose implements order.domain.SessionRecomputeHook: it
// re-sums the session after a sibling order's status changed and, if the
// session is still open and every child order is now cancelled, closes it
// (§4.1 cancel's parent-session side effect, invariant #2).
func (s *Service) RecomputeAndMaybeClose(ctx context.Context, tx *gorm.DB, sessionID snowflake.ID) error {
	session, err := s.RecomputeTotals(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusOpen {
		return nil
	}

	orders, err := s.orderRepo.ListBySessionTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if o.WorkflowStatus != orderdomain.StatusCancelled {
			return nil
		}
	}

	return s.closeTx(ctx, tx, session, s.clock.Now())
}

// RequestCheck is SettlementEngine.RequestCheck (§4.3).
func (s *Service) RequestCheck(ctx context.Context, sessionID snowflake.ID) (*domain.DiningSession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if !allowedForCheckRequest(session.Status) {
		return nil, domain.ErrInvalidStatus
	}

	now := s.clock.Now()
	session.CheckRequestedAt = &now
	session.TipRequestedAt = &now
	session.Status = domain.StatusAwaitingTip
	session.UpdatedAt = now

	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.Update(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}

	if _, _, err := s.waitercall.RequestOrReuse(ctx, waitercalldomain.CreateRequest{
		SessionID: session.ID,
		TableCode: session.TableCode,
		CallType:  waitercalldomain.CallTypeCheckoutRequest,
		Note:      "checkout_request",
	}); err != nil {
		s.log.Warn("failed to raise checkout waiter call", zap.Error(err))
	}

	s.emitStatusChanged(ctx, session)
	return session, nil
}

func allowedForCheckRequest(status domain.Status) bool {
	switch status {
	case domain.StatusOpen, domain.StatusAwaitingTip, domain.StatusAwaitingPayment:
		return true
	default:
		return false
	}
}

// ApplyTip is SettlementEngine.ApplyTip (§4.3).
func (s *Service) ApplyTip(ctx context.Context, req domain.ApplyTipRequest) (*domain.DiningSession, error) {
	session, err := s.repo.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	if !allowedForCheckRequest(session.Status) {
		return nil, domain.ErrInvalidStatus
	}

	tip, err := computeTip(session.Subtotal, req.Fixed, req.Percent)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		fresh, err := s.repo.FindByIDTx(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return domain.ErrNotFound
		}
		fresh.TipAmount = tip
		fresh.TipConfirmedAt = &now
		fresh.Status = domain.StatusAwaitingPayment
		fresh.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, fresh); err != nil {
			return err
		}
		updated, err := s.RecomputeTotals(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		session = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitStatusChanged(ctx, session)
	return session, nil
}

func computeTip(subtotal money.Cents, fixed *money.Cents, percent *float64) (money.Cents, error) {
	if fixed != nil && percent != nil {
		return 0, domain.ErrInvalidTip
	}
	if fixed != nil {
		if *fixed < 0 || *fixed > money.FromFloat(10000) {
			return 0, domain.ErrInvalidTip
		}
		return *fixed, nil
	}
	if percent != nil {
		if *percent < 0 || *percent > 100 {
			return 0, domain.ErrInvalidTip
		}
		return subtotal.MulPercent(*percent), nil
	}
	return 0, domain.ErrInvalidTip
}

// FinalizePayment is SettlementEngine.FinalizePayment (§4.3).
func (s *Service) FinalizePayment(ctx context.Context, req domain.FinalizePaymentRequest) (*domain.DiningSession, bool, error) {
	if !orderdomain.ValidPaymentMethod(req.Method) {
		return nil, false, domain.ErrInvalidPaymentMethod
	}

	session, err := s.repo.FindByID(ctx, req.SessionID)
	if err != nil {
		return nil, false, err
	}
	if session == nil {
		return nil, false, domain.ErrNotFound
	}
	if session.Status == domain.StatusPaid || session.Status == domain.StatusClosed {
		return nil, false, domain.ErrAlreadyPaid
	}

	if req.ContactEmail != nil {
		if _, err := s.customer.AttachContact(ctx, session.CustomerID, *req.ContactEmail); err != nil && err != customerdomain.ErrNotAnonymous {
			return nil, false, err
		}
	}

	if req.Tip != nil {
		if _, err := s.ApplyTip(ctx, *req.Tip); err != nil {
			return nil, false, err
		}
	}

	requiresConfirmation := req.Method == orderdomain.PaymentMethodCash || req.Method == orderdomain.PaymentMethodCard

	now := s.clock.Now()
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		fresh, err := s.repo.FindByIDTx(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return domain.ErrNotFound
		}
		fresh.PaymentMethod = &req.Method
		fresh.PaymentReference = req.Reference
		fresh.TotalPaid = fresh.TotalAmount
		fresh.UpdatedAt = now

		if requiresConfirmation {
			fresh.Status = domain.StatusAwaitingPaymentConfirmation
			if err := s.repo.Update(ctx, tx, fresh); err != nil {
				return err
			}
		} else {
			fresh.Status = domain.StatusPaid
			fresh.ClosedAt = &now
			if err := s.repo.Update(ctx, tx, fresh); err != nil {
				return err
			}
			if err := s.markAllOrdersPaid(ctx, tx, fresh, req.Method, req.Reference, now); err != nil {
				return err
			}
		}
		session = fresh
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.emitStatusChanged(ctx, session)
	return session, requiresConfirmation, nil
}

// ConfirmPayment is SettlementEngine.ConfirmPayment (§4.3).
func (s *Service) ConfirmPayment(ctx context.Context, sessionID snowflake.ID) (*domain.DiningSession, error) {
	var result *domain.DiningSession
	now := s.clock.Now()
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.repo.FindByIDTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		if session.Status != domain.StatusAwaitingPaymentConfirmation {
			return domain.ErrInvalidStatus
		}
		session.Status = domain.StatusPaid
		session.ClosedAt = &now
		session.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, session); err != nil {
			return err
		}
		method := orderdomain.PaymentMethodCash
		if session.PaymentMethod != nil {
			method = *session.PaymentMethod
		}
		if err := s.markAllOrdersPaid(ctx, tx, session, method, session.PaymentReference, now); err != nil {
			return err
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitStatusChanged(ctx, result)
	return result, nil
}

// ConfirmPartialPayment is SettlementEngine.ConfirmPartialPayment (§4.3).
func (s *Service) ConfirmPartialPayment(ctx context.Context, sessionID snowflake.ID, orderIDs []snowflake.ID) (*domain.DiningSession, error) {
	var result *domain.DiningSession
	now := s.clock.Now()
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.repo.FindByIDTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		if session.Status != domain.StatusAwaitingPaymentConfirmation {
			return domain.ErrInvalidStatus
		}

		orders, err := s.orderRepo.ListBySessionTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		byID := make(map[snowflake.ID]*orderdomain.Order, len(orders))
		for i := range orders {
			byID[orders[i].ID] = &orders[i]
		}

		method := orderdomain.PaymentMethodCash
		if session.PaymentMethod != nil {
			method = *session.PaymentMethod
		}

		for _, id := range orderIDs {
			o, ok := byID[id]
			if !ok {
				return domain.ErrOrderNotInSession
			}
			o.PaymentStatus = orderdomain.PaymentPaid
			o.PaymentMethod = &method
			o.PaymentReference = session.PaymentReference
			o.PaidAt = &now
			if err := s.orderRepo.UpdateTx(ctx, tx, o); err != nil {
				return err
			}
		}

		allPaid := true
		for _, o := range orders {
			if o.WorkflowStatus == orderdomain.StatusCancelled {
				continue
			}
			if o.PaymentStatus != orderdomain.PaymentPaid {
				allPaid = false
				break
			}
		}

		if allPaid {
			session.Status = domain.StatusPaid
			session.ClosedAt = &now
		}
		session.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitStatusChanged(ctx, result)
	return result, nil
}

// CloseViaSplit is domain.Service.CloseViaSplit (§4.4).
func (s *Service) CloseViaSplit(ctx context.Context, sessionID snowflake.ID, splitID snowflake.ID) (*domain.DiningSession, error) {
	var result *domain.DiningSession
	now := s.clock.Now()
	reference := "split-" + splitID.String()
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.repo.FindByIDTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrNotFound
		}
		method := orderdomain.PaymentMethodSplitBill
		session.PaymentMethod = &method
		session.PaymentReference = &reference
		session.TotalPaid = session.TotalAmount
		session.Status = domain.StatusPaid
		session.ClosedAt = &now
		session.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, session); err != nil {
			return err
		}
		if err := s.markAllOrdersPaid(ctx, tx, session, method, &reference, now); err != nil {
			return err
		}
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitStatusChanged(ctx, result)
	return result, nil
}

func (s *Service) markAllOrdersPaid(ctx context.Context, tx *gorm.DB, session *domain.DiningSession, method orderdomain.PaymentMethod, reference *string, now time.Time) error {
	orders, err := s.orderRepo.ListBySessionTx(ctx, tx, session.ID)
	if err != nil {
		return err
	}
	for i := range orders {
		o := &orders[i]
		if o.WorkflowStatus == orderdomain.StatusCancelled {
			continue
		}
		o.PaymentStatus = orderdomain.PaymentPaid
		o.PaymentMethod = &method
		o.PaymentReference = reference
		o.PaidAt = &now
		if err := s.orderRepo.UpdateTx(ctx, tx, o); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) emitStatusChanged(ctx context.Context, session *domain.DiningSession) {
	if session == nil {
		return
	}
	s.bus.Publish(ctx, realtime.EventSessionStatusChanged, map[string]any{
		"session_id": session.ID,
		"status":     session.Status,
		"table_code": session.TableCode,
	})
}

// Reprint rebuilds the ticket for a paid session (SPEC_FULL §3).
func (s *Service) Reprint(ctx context.Context, sessionID snowflake.ID) (*domain.TicketSnapshot, error) {
	snapshot, _, err := s.buildTicket(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventTicketReprinted, map[string]any{
		"session_id": snapshot.SessionID,
	})

	return snapshot, nil
}

// ResendEmail re-sends the ticket to the session's customer contact, or
// logs a no-op when the customer never provided a real email (§6).
func (s *Service) ResendEmail(ctx context.Context, sessionID snowflake.ID) error {
	snapshot, session, err := s.buildTicket(ctx, sessionID)
	if err != nil {
		return err
	}

	email, err := s.customer.ContactEmail(ctx, session.CustomerID)
	if err != nil {
		return err
	}

	customer, err := s.customer.Get(ctx, session.CustomerID)
	if err != nil {
		return err
	}
	if customer.IsAnonymous() {
		s.log.Info("skipping ticket email for anonymous customer",
			zap.Int64("session_id", int64(sessionID)))
		return nil
	}

	s.bus.Publish(ctx, realtime.EventTicketEmailSent, map[string]any{
		"session_id": snapshot.SessionID,
		"email":      email,
	})

	return nil
}

func (s *Service) buildTicket(ctx context.Context, sessionID snowflake.ID) (*domain.TicketSnapshot, *domain.DiningSession, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, domain.ErrNotFound
	}
	if session.Status != domain.StatusPaid && session.Status != domain.StatusClosed {
		return nil, nil, domain.ErrNotPaid
	}

	orders, err := s.orderRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]domain.TicketLine, 0, len(orders))
	for _, o := range orders {
		if o.WorkflowStatus == orderdomain.StatusCancelled {
			continue
		}
		lines = append(lines, domain.TicketLine{
			OrderID:  o.ID,
			Subtotal: o.Subtotal,
			Items:    o.Items,
		})
	}

	return &domain.TicketSnapshot{
		SessionID:     session.ID,
		TableCode:     session.TableCode,
		Subtotal:      session.Subtotal,
		TaxAmount:     session.TaxAmount,
		TipAmount:     session.TipAmount,
		TotalAmount:   session.TotalAmount,
		PaymentMethod: session.PaymentMethod,
		ClosedAt:      session.ClosedAt,
		Orders:        lines,
	}, session, nil
}
