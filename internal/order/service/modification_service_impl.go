package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	"github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/internal/realtime"
	"github.com/prontocore/kitchen/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ModificationParams struct {
	fx.In

	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Mods        domain.ModificationRepository
	Clock       clock.Clock
	Pricing     *config.PricingPolicyHolder
	Bus         *realtime.Bus
	SessionHook domain.SessionRecomputeHook `optional:"true"`
}

// ModificationService is domain.ModificationService: the Propose/Approve/
// Reject/Apply workflow over a pending (not yet kitchen-started) order (§3).
type ModificationService struct {
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	mods        domain.ModificationRepository
	clock       clock.Clock
	pricing     *config.PricingPolicyHolder
	bus         *realtime.Bus
	sessionHook domain.SessionRecomputeHook
}

func NewModificationService(p ModificationParams) domain.ModificationService {
	return &ModificationService{
		log:         p.Log.Named("order.modification"),
		genID:       p.GenID,
		repo:        p.Repo,
		mods:        p.Mods,
		clock:       p.Clock,
		pricing:     p.Pricing,
		bus:         p.Bus,
		sessionHook: p.SessionHook,
	}
}

// pendingOrderStatuses is "not yet kitchen-started" per the original
// order_modification_service.py's eligibility check.
func isOrderModifiable(status domain.WorkflowStatus) bool {
	return status == domain.StatusNew || status == domain.StatusQueued
}

func (s *ModificationService) Propose(ctx context.Context, req domain.ProposeModificationRequest) (*domain.OrderModification, error) {
	if len(req.ItemsToAdd) == 0 && len(req.ItemsToRemove) == 0 && len(req.ItemsToUpdate) == 0 {
		return nil, domain.ErrEmptyModification
	}

	order, err := s.repo.FindByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if !isOrderModifiable(order.WorkflowStatus) {
		return nil, domain.ErrOrderNotModifiable
	}

	now := s.clock.Now()
	mod := &domain.OrderModification{
		ID:        s.genID.Generate(),
		OrderID:   req.OrderID,
		Initiator: req.Initiator,
		Status:    domain.ModificationPending,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: now,
		UpdatedAt: now,
	}
	mod.SetItemsToAdd(req.ItemsToAdd)
	mod.SetItemsToRemove(req.ItemsToRemove)
	mod.SetItemsToUpdate(req.ItemsToUpdate)

	if err := s.mods.Create(ctx, mod); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventModificationRequested, map[string]any{
		"modification_id": mod.ID,
		"order_id":        mod.OrderID,
		"session_id":       order.SessionID,
		"changes": map[string]int{
			"add":    len(req.ItemsToAdd),
			"remove": len(req.ItemsToRemove),
			"update": len(req.ItemsToUpdate),
		},
	})

	return mod, nil
}

func (s *ModificationService) Approve(ctx context.Context, modificationID snowflake.ID, reviewerID snowflake.ID) (*domain.OrderModification, error) {
	return s.review(ctx, modificationID, reviewerID, domain.ModificationApproved, "", realtime.EventModificationApproved)
}

func (s *ModificationService) Reject(ctx context.Context, modificationID snowflake.ID, reviewerID snowflake.ID, reason string) (*domain.OrderModification, error) {
	return s.review(ctx, modificationID, reviewerID, domain.ModificationRejected, strings.TrimSpace(reason), realtime.EventModificationRejected)
}

func (s *ModificationService) review(ctx context.Context, modificationID, reviewerID snowflake.ID, next domain.ModificationStatus, reason string, event string) (*domain.OrderModification, error) {
	mod, err := s.mods.FindByID(ctx, modificationID)
	if err != nil {
		return nil, err
	}
	if mod == nil {
		return nil, domain.ErrModificationNotFound
	}
	if mod.Status != domain.ModificationPending {
		return nil, domain.ErrModificationNotPending
	}

	now := s.clock.Now()
	mod.Status = next
	mod.ReviewerID = &reviewerID
	mod.ReviewedAt = &now
	mod.UpdatedAt = now
	if reason != "" {
		mod.Reason = reason
	}

	if err := s.mods.Update(ctx, mod); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, event, map[string]any{
		"modification_id": mod.ID,
		"order_id":        mod.OrderID,
	})

	return mod, nil
}

// Apply mutates the order's items per the approved change package,
// recomputes subtotal/tax/total, and cascades into the session total
// (§3, §4.2's RecomputeTotals) - all inside one transaction on the order
// row, the same locking discipline Transition uses (§5).
func (s *ModificationService) Apply(ctx context.Context, modificationID snowflake.ID) (*domain.Order, error) {
	mod, err := s.mods.FindByID(ctx, modificationID)
	if err != nil {
		return nil, err
	}
	if mod == nil {
		return nil, domain.ErrModificationNotFound
	}
	if mod.Status != domain.ModificationApproved {
		return nil, domain.ErrModificationNotApproved
	}

	var result *domain.Order
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.LockForUpdate(ctx, tx, mod.OrderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if !isOrderModifiable(order.WorkflowStatus) {
			return domain.ErrOrderNotModifiable
		}

		s.applyItemChanges(order, mod)
		s.recomputeOrderTotals(order)
		order.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateTx(ctx, tx, order); err != nil {
			return err
		}

		if s.sessionHook != nil {
			if err := s.sessionHook.RecomputeAndMaybeClose(ctx, tx, order.SessionID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		mod.Status = domain.ModificationApplied
		mod.AppliedAt = &now
		mod.UpdatedAt = now
		if err := s.mods.UpdateTx(ctx, tx, mod); err != nil {
			return err
		}

		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, realtime.EventModificationApplied, map[string]any{
		"modification_id": mod.ID,
		"order_id":        result.ID,
		"session_id":       result.SessionID,
	})

	return result, nil
}

func (s *ModificationService) applyItemChanges(order *domain.Order, mod *domain.OrderModification) {
	remove := make(map[snowflake.ID]bool)
	for _, r := range mod.ItemsToRemove() {
		remove[r.OrderItemID] = true
	}
	updates := make(map[snowflake.ID]int)
	for _, u := range mod.ItemsToUpdate() {
		updates[u.OrderItemID] = u.Quantity
	}

	kept := order.Items[:0]
	for _, item := range order.Items {
		if remove[item.ID] {
			continue
		}
		if qty, ok := updates[item.ID]; ok {
			item.Quantity = qty
		}
		kept = append(kept, item)
	}
	order.Items = kept

	for _, add := range mod.ItemsToAdd() {
		item := domain.OrderItem{
			ID:                  s.genID.Generate(),
			OrderID:             order.ID,
			MenuItemID:          add.MenuItemID,
			Quantity:            add.Quantity,
			UnitPrice:           add.UnitPrice,
			SpecialInstructions: add.SpecialInstructions,
			QuickServe:          add.QuickServe,
		}
		for _, cm := range add.Modifiers {
			item.Modifiers = append(item.Modifiers, domain.OrderItemModifier{
				ID:                  s.genID.Generate(),
				OrderItemID:         item.ID,
				ModifierRef:         cm.ModifierRef,
				Quantity:            cm.Quantity,
				UnitPriceAdjustment: cm.UnitPriceAdjustment,
			})
		}
		order.Items = append(order.Items, item)
	}
}

// recomputeOrderTotals re-derives subtotal/tax/total from order.Items using
// the same tax-display-mode math Create uses (§4.1).
func (s *ModificationService) recomputeOrderTotals(order *domain.Order) {
	var subtotal money.Cents
	for _, item := range order.Items {
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
}
