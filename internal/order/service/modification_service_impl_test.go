package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	"github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/internal/order/repository"
	"github.com/prontocore/kitchen/internal/order/service"
	"github.com/prontocore/kitchen/internal/realtime"
	"github.com/prontocore/kitchen/pkg/db"
	"github.com/prontocore/kitchen/pkg/money"
	"go.uber.org/zap"
)

func newTestModificationService(t *testing.T, fake *clock.FakeClock) (domain.Service, domain.ModificationService) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&domain.Order{}, &domain.OrderItem{}, &domain.OrderItemModifier{},
		&domain.OrderHistoryEntry{}, &domain.OrderModification{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	holder := config.NewPricingPolicyHolder(config.Config{
		TaxRate:          0.16,
		PriceDisplayMode: config.PriceDisplayTaxExcluded,
	})

	repo := repository.Provide(dbConn)
	bus := realtime.New(nil, zap.NewNop())

	orderSvc := service.New(service.Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repo,
		Clock:   fake,
		Pricing: holder,
		Bus:     bus,
	})

	modSvc := service.NewModificationService(service.ModificationParams{
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repo,
		Mods:    repository.ProvideModifications(dbConn),
		Clock:   fake,
		Pricing: holder,
		Bus:     bus,
	})

	return orderSvc, modSvc
}

func TestModificationProposeRejectsEmptyChangeSet(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	orderSvc, modSvc := newTestModificationService(t, fake)
	order := newOrder(t, orderSvc)

	_, err := modSvc.Propose(context.Background(), domain.ProposeModificationRequest{
		OrderID:   order.ID,
		Initiator: domain.InitiatorWaiter,
	})
	if err != domain.ErrEmptyModification {
		t.Fatalf("expected ErrEmptyModification, got %v", err)
	}
}

func TestModificationProposeRejectsKitchenStartedOrder(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	orderSvc, modSvc := newTestModificationService(t, fake)
	order := newOrder(t, orderSvc)

	waiterID := snowflake.ID(100)
	order, _ = orderSvc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: "waiter", ActorID: &waiterID,
	})
	chefID := snowflake.ID(200)
	order, _ = orderSvc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusPreparing, Scope: "chef", ActorID: &chefID,
	})

	_, err := modSvc.Propose(context.Background(), domain.ProposeModificationRequest{
		OrderID:    order.ID,
		Initiator:  domain.InitiatorWaiter,
		ItemsToAdd: []domain.ModificationItemAdd{{MenuItemID: snowflake.ID(99), Quantity: 1, UnitPrice: money.FromFloat(10)}},
	})
	if err != domain.ErrOrderNotModifiable {
		t.Fatalf("expected ErrOrderNotModifiable, got %v", err)
	}
}

func TestModificationApplyUpdatesOrderTotals(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	orderSvc, modSvc := newTestModificationService(t, fake)
	order := newOrder(t, orderSvc)

	removedItemID := order.Items[0].ID
	mod, err := modSvc.Propose(context.Background(), domain.ProposeModificationRequest{
		OrderID:   order.ID,
		Initiator: domain.InitiatorCustomer,
		ItemsToAdd: []domain.ModificationItemAdd{
			{MenuItemID: snowflake.ID(55), Quantity: 3, UnitPrice: money.FromFloat(20)},
		},
		ItemsToRemove: []domain.ModificationItemRemove{
			{OrderItemID: removedItemID},
		},
		Reason: "guest changed order",
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if mod.Status != domain.ModificationPending {
		t.Fatalf("expected pending, got %v", mod.Status)
	}

	reviewerID := snowflake.ID(300)
	mod, err = modSvc.Approve(context.Background(), mod.ID, reviewerID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if mod.Status != domain.ModificationApproved {
		t.Fatalf("expected approved, got %v", mod.Status)
	}

	applied, err := modSvc.Apply(context.Background(), mod.ID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied.Items) != 1 {
		t.Fatalf("expected 1 item after remove+add, got %d", len(applied.Items))
	}
	if applied.Subtotal != money.FromFloat(60) {
		t.Fatalf("expected subtotal 60, got %v", applied.Subtotal.ToFloat())
	}
	if applied.TaxAmount != money.FromFloat(60).MulRate(0.16) {
		t.Fatalf("expected recomputed tax, got %v", applied.TaxAmount.ToFloat())
	}
}

func TestModificationRejectLeavesOrderUnchanged(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	orderSvc, modSvc := newTestModificationService(t, fake)
	order := newOrder(t, orderSvc)

	mod, err := modSvc.Propose(context.Background(), domain.ProposeModificationRequest{
		OrderID:    order.ID,
		Initiator:  domain.InitiatorWaiter,
		ItemsToAdd: []domain.ModificationItemAdd{{MenuItemID: snowflake.ID(77), Quantity: 1, UnitPrice: money.FromFloat(5)}},
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	reviewerID := snowflake.ID(300)
	mod, err = modSvc.Reject(context.Background(), mod.ID, reviewerID, "not available")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if mod.Status != domain.ModificationRejected {
		t.Fatalf("expected rejected, got %v", mod.Status)
	}

	if _, err := modSvc.Apply(context.Background(), mod.ID); err != domain.ErrModificationNotApproved {
		t.Fatalf("expected ErrModificationNotApproved, got %v", err)
	}
}
