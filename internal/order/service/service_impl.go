package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/authzscope"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	"github.com/prontocore/kitchen/internal/observability/metrics"
	"github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/internal/realtime"
	"github.com/prontocore/kitchen/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Clock       clock.Clock
	Pricing     *config.PricingPolicyHolder
	Bus         *realtime.Bus
	Assignment  domain.TableAssignmentHook  `optional:"true"`
	SessionHook domain.SessionRecomputeHook `optional:"true"`
}

// Service is the TransitionEngine (§2, §4.1).
type Service struct {
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	clock       clock.Clock
	pricing     *config.PricingPolicyHolder
	bus         *realtime.Bus
	assignment  domain.TableAssignmentHook
	sessionHook domain.SessionRecomputeHook
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		clock:       p.Clock,
		pricing:     p.Pricing,
		bus:         p.Bus,
		assignment:  p.Assignment,
		sessionHook: p.SessionHook,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyOrder
	}

	order := &domain.Order{
		ID:             s.genID.Generate(),
		SessionID:      req.SessionID,
		CustomerID:     req.CustomerID,
		TableCode:      req.TableCode,
		WorkflowStatus: domain.StatusNew,
		PaymentStatus:  domain.PaymentUnpaid,
		Notes:          req.Notes,
	}

	var subtotal money.Cents
	for _, ci := range req.Items {
		item := domain.OrderItem{
			ID:                  s.genID.Generate(),
			OrderID:             order.ID,
			MenuItemID:          ci.MenuItemID,
			Quantity:            ci.Quantity,
			UnitPrice:           ci.UnitPrice,
			SpecialInstructions: ci.SpecialInstructions,
			QuickServe:          ci.QuickServe,
		}
		for _, cm := range ci.Modifiers {
			item.Modifiers = append(item.Modifiers, domain.OrderItemModifier{
				ID:                  s.genID.Generate(),
				OrderItemID:         item.ID,
				ModifierRef:         cm.ModifierRef,
				Quantity:            cm.Quantity,
				UnitPriceAdjustment: cm.UnitPriceAdjustment,
			})
		}
		order.Items = append(order.Items, item)
		subtotal += item.LineTotal()
	}

	policy := s.pricing.Get()
	if policy.PriceDisplayMode == config.PriceDisplayTaxIncluded {
		order.Subtotal = subtotal - subtotal.MulRate(policy.TaxRate/(1+policy.TaxRate))
		order.TaxAmount = subtotal - order.Subtotal
		order.TotalAmount = subtotal
	} else {
		order.Subtotal = subtotal
		order.TaxAmount = subtotal.MulRate(policy.TaxRate)
		order.TotalAmount = order.Subtotal + order.TaxAmount
	}

	now := s.clock.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	var assignedWaiter *snowflake.ID
	if s.assignment != nil && order.TableCode != "" {
		w, err := s.assignment.AssignedWaiter(ctx, order.TableCode)
		if err != nil {
			s.log.Warn("assignment lookup failed, order starts unassigned", zap.Error(err))
		} else {
			assignedWaiter = w
		}
	}
	if assignedWaiter != nil {
		order.WaiterID = assignedWaiter
		order.AcceptedAt = &now
		order.WaiterAcceptedAt = &now
		order.WorkflowStatus = domain.StatusQueued
		if allQuickServe(order.Items) {
			order.WorkflowStatus = domain.StatusReady
			order.ReadyAt = &now
		}
	}

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		entry := &domain.OrderHistoryEntry{
			ID:        s.genID.Generate(),
			OrderID:   order.ID,
			Sequence:  1,
			Status:    order.WorkflowStatus,
			Action:    "create",
			Scope:     string(authzscope.Client),
			CreatedAt: now,
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventOrderCreated, map[string]any{
		"order_id":        order.ID,
		"session_id":      order.SessionID,
		"table_code":      order.TableCode,
		"requires_kitchen": !allQuickServe(order.Items),
		"item_count":      len(order.Items),
	})
	if assignedWaiter != nil {
		s.bus.Publish(ctx, realtime.EventOrderAutoAccepted, map[string]any{
			"order_id":   order.ID,
			"waiter_id":  *assignedWaiter,
			"table_code": order.TableCode,
			"session_id": order.SessionID,
		})
	}

	return order, nil
}

func allQuickServe(items []domain.OrderItem) bool {
	for _, item := range items {
		if !item.QuickServe {
			return false
		}
	}
	return true
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) ListBySession(ctx context.Context, sessionID snowflake.ID) ([]domain.Order, error) {
	orders, err := s.repo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Transition is the single entry point that may change workflow_status
// (§4.1). It locks the order row, validates the (from, to) edge against the
// fixed transitionTable, checks scope and justification, applies the
// action's side effects, and appends one history entry - all inside one
// transaction - then publishes a realtime event after commit (§5).
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Order, error) {
	var result *domain.Order
	var fromStatus domain.WorkflowStatus
	var policy domain.Policy

	waitStart := s.clock.Now()
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.LockForUpdate(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		metrics.Domain().ObserveDBLockWait(metrics.LockResourceOrderTransition, s.clock.Now().Sub(waitStart))

		fromStatus = order.WorkflowStatus
		if domain.IsTerminal(fromStatus) {
			return domain.ErrTerminalStatus
		}

		p, ok := domain.LookupPolicy(fromStatus, req.To)
		if !ok {
			return domain.ErrTransitionNotAllowed
		}
		policy = p

		if !req.Scope.In(policy.AllowedScopes...) {
			return domain.ErrForbiddenScope
		}
		justification := strings.TrimSpace(req.Justification)
		if policy.RequiresJustification && justification == "" {
			return domain.ErrJustificationRequired
		}

		now := s.clock.Now()
		if justification != "" {
			order.Notes = appendScopedNote(order.Notes, req.Scope, justification)
		}
		s.applySideEffects(order, policy.Action, req, fromStatus, now)
		order.WorkflowStatus = req.To
		order.UpdatedAt = now

		if domain.RequiresWaiter(order.WorkflowStatus) && order.WaiterID == nil {
			return domain.ErrWaiterRequired
		}

		if policy.Action == domain.ActionCancel && s.sessionHook != nil {
			if err := s.sessionHook.RecomputeAndMaybeClose(ctx, tx, order.SessionID); err != nil {
				return err
			}
		}

		seq, err := s.repo.NextHistorySequence(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		entry := &domain.OrderHistoryEntry{
			ID:        s.genID.Generate(),
			OrderID:   order.ID,
			Sequence:  seq,
			Status:    req.To,
			Action:    string(policy.Action),
			ActorID:   req.ActorID,
			Scope:     string(req.Scope),
			CreatedAt: now,
		}
		if err := s.repo.AppendHistory(ctx, tx, entry); err != nil {
			return err
		}
		if err := tx.Save(order).Error; err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Domain().IncOrderTransition(string(fromStatus), string(req.To), string(policy.Action))
	s.bus.Publish(ctx, realtime.EventOrderStatusChanged, map[string]any{
		"order_id":   result.ID,
		"from":       fromStatus,
		"to":         result.WorkflowStatus,
		"session_id": result.SessionID,
		"table_code": result.TableCode,
		"action":     policy.Action,
	})

	if policy.Action == domain.ActionAcceptOrQueue && s.assignment != nil && req.ActorID != nil {
		if err := s.assignment.OnOrderAccepted(ctx, *req.ActorID, result.TableCode, result.SessionID, result.ID); err != nil {
			s.log.Warn("auto-assign on accept failed, order acceptance stands", zap.Error(err))
		}
	}

	return result, nil
}

// appendScopedNote appends text to notes prefixed by scope's tag, matching
// the "[scope] text" format scenario S5 expects on order.notes.
func appendScopedNote(notes string, scope authzscope.Scope, text string) string {
	tagged := "[" + string(scope) + "] " + text
	if notes == "" {
		return tagged
	}
	return notes + "\n" + tagged
}

// applySideEffects mutates order in place per the action's post-conditions
// (§4.1's per-row "side effects" column).
func (s *Service) applySideEffects(order *domain.Order, action domain.Action, req domain.TransitionRequest, fromStatus domain.WorkflowStatus, now time.Time) {
	switch action {
	case domain.ActionAcceptOrQueue:
		order.WaiterID = req.ActorID
		order.AcceptedAt = &now
		order.WaiterAcceptedAt = &now
	case domain.ActionKitchenStart:
		order.ChefID = req.ActorID
		order.ChefAcceptedAt = &now
	case domain.ActionSkipKitchen:
		order.ReadyAt = &now
	case domain.ActionKitchenComplete:
		order.ReadyAt = &now
	case domain.ActionDeliver:
		order.DeliveryWaiterID = req.ActorID
		order.DeliveredAt = &now
		for i := range order.Items {
			order.Items[i].DeliveredQuantity = order.Items[i].Quantity
			order.Items[i].IsFullyDelivered = true
			order.Items[i].DeliveredAt = &now
			order.Items[i].DeliveredByEmployeeID = req.ActorID
		}
	case domain.ActionMarkAwaitingPayment:
		order.PaymentStatus = domain.PaymentAwaitingTip
	case domain.ActionPay, domain.ActionPayDirect:
		order.PaidAt = &now
		order.PaymentStatus = domain.PaymentPaid
		if req.PaymentMethod != nil {
			order.PaymentMethod = req.PaymentMethod
		}
		if req.PaymentReference != nil {
			order.PaymentReference = req.PaymentReference
		}
	case domain.ActionCancel:
		if fromStatus == domain.StatusNew || fromStatus == domain.StatusQueued {
			order.WaiterID = nil
			order.AcceptedAt = nil
			order.WaiterAcceptedAt = nil
			order.ChefID = nil
			order.DeliveryWaiterID = nil
		}
		order.PaymentStatus = domain.PaymentUnpaid
		// Tip is left untouched here; SettlementEngine zeroes it only when
		// the dining session itself closes.
	}
}

// DeliverItems records partial delivery of specific items and auto-advances
// the order to "delivered" once every item is fully delivered (§4.1's
// "deliver" row, read in conjunction with the item-level delivery fields
// in §3).
func (s *Service) DeliverItems(ctx context.Context, orderID snowflake.ID, itemIDs []snowflake.ID, employeeID snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if order.WorkflowStatus != domain.StatusReady && order.WorkflowStatus != domain.StatusDelivered {
		return nil, domain.ErrTransitionNotAllowed
	}

	now := s.clock.Now()
	wanted := make(map[snowflake.ID]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	found := 0
	allDelivered := true
	for i := range order.Items {
		item := &order.Items[i]
		if wanted[item.ID] {
			found++
			if item.DeliveredQuantity >= item.Quantity {
				return nil, domain.ErrOverDelivery
			}
			item.DeliveredQuantity = item.Quantity
			item.IsFullyDelivered = true
			item.DeliveredAt = &now
			item.DeliveredByEmployeeID = &employeeID
		}
		if !item.IsFullyDelivered {
			allDelivered = false
		}
	}
	if found != len(itemIDs) {
		return nil, domain.ErrItemNotFound
	}

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, err
	}

	if allDelivered && order.WorkflowStatus != domain.StatusDelivered {
		return s.Transition(ctx, domain.TransitionRequest{
			OrderID: orderID,
			To:      domain.StatusDelivered,
			Scope:   authzscope.Waiter,
			ActorID: &employeeID,
		})
	}

	return order, nil
}
