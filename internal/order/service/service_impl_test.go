package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/authzscope"
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

func newTestService(t *testing.T, fake *clock.FakeClock) domain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Order{}, &domain.OrderItem{}, &domain.OrderItemModifier{}, &domain.OrderHistoryEntry{}); err != nil {
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

	return service.New(service.Params{
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(dbConn),
		Clock:   fake,
		Pricing: holder,
		Bus:     realtime.New(nil, zap.NewNop()),
	})
}

func newOrder(t *testing.T, svc domain.Service) *domain.Order {
	t.Helper()
	order, err := svc.Create(context.Background(), domain.CreateOrderRequest{
		SessionID:  snowflake.ID(1),
		CustomerID: snowflake.ID(2),
		TableCode:  "A-M01",
		Items: []domain.CreateOrderItem{
			{MenuItemID: snowflake.ID(10), Quantity: 2, UnitPrice: money.FromFloat(50)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreateComputesSubtotalAndTax(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)

	order := newOrder(t, svc)

	if order.Subtotal != money.FromFloat(100) {
		t.Fatalf("expected subtotal 100, got %v", order.Subtotal.ToFloat())
	}
	if order.TaxAmount != money.FromFloat(100).MulRate(0.16) {
		t.Fatalf("expected tax 16, got %v", order.TaxAmount.ToFloat())
	}
	if order.WorkflowStatus != domain.StatusNew {
		t.Fatalf("expected new status, got %v", order.WorkflowStatus)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	waiterID := snowflake.ID(100)
	order, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID,
		To:      domain.StatusQueued,
		Scope:   authzscope.Waiter,
		ActorID: &waiterID,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if order.WaiterID == nil || *order.WaiterID != waiterID {
		t.Fatalf("expected waiter_id set")
	}

	chefID := snowflake.ID(200)
	order, err = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID,
		To:      domain.StatusPreparing,
		Scope:   authzscope.Chef,
		ActorID: &chefID,
	})
	if err != nil {
		t.Fatalf("kitchen start: %v", err)
	}

	order, err = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID,
		To:      domain.StatusReady,
		Scope:   authzscope.Chef,
		ActorID: &chefID,
	})
	if err != nil {
		t.Fatalf("kitchen complete: %v", err)
	}
	if order.WorkflowStatus != domain.StatusReady {
		t.Fatalf("expected ready, got %v", order.WorkflowStatus)
	}
}

func TestTransitionRejectsForbiddenScope(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID,
		To:      domain.StatusQueued,
		Scope:   authzscope.Chef,
	})
	if err != domain.ErrForbiddenScope {
		t.Fatalf("expected ErrForbiddenScope, got %v", err)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID,
		To:      domain.StatusDelivered,
		Scope:   authzscope.Waiter,
	})
	if err != domain.ErrTransitionNotAllowed {
		t.Fatalf("expected ErrTransitionNotAllowed, got %v", err)
	}
}

func TestCancelWithJustificationRequiredAfterPreparing(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	waiterID := snowflake.ID(100)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.Waiter, ActorID: &waiterID,
	})
	chefID := snowflake.ID(200)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusPreparing, Scope: authzscope.Chef, ActorID: &chefID,
	})

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusCancelled, Scope: authzscope.Waiter,
	})
	if err != domain.ErrJustificationRequired {
		t.Fatalf("expected ErrJustificationRequired, got %v", err)
	}

	_, err = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusCancelled, Scope: authzscope.Waiter, Justification: "guest changed mind",
	})
	if err != nil {
		t.Fatalf("expected cancel to succeed with justification: %v", err)
	}
}

func TestDeliverItemsAutoAdvancesOrder(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	waiterID := snowflake.ID(100)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.Waiter, ActorID: &waiterID,
	})
	chefID := snowflake.ID(200)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusPreparing, Scope: authzscope.Chef, ActorID: &chefID,
	})
	order, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusReady, Scope: authzscope.Chef, ActorID: &chefID,
	})
	if err != nil {
		t.Fatalf("kitchen complete: %v", err)
	}

	itemIDs := make([]snowflake.ID, len(order.Items))
	for i, item := range order.Items {
		itemIDs[i] = item.ID
	}

	result, err := svc.DeliverItems(context.Background(), order.ID, itemIDs, waiterID)
	if err != nil {
		t.Fatalf("deliver items: %v", err)
	}
	if result.WorkflowStatus != domain.StatusDelivered {
		t.Fatalf("expected auto-advance to delivered, got %v", result.WorkflowStatus)
	}
}

func TestCancelFromQueuedClearsAssignmentFields(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	waiterID := snowflake.ID(100)
	order, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.Waiter, ActorID: &waiterID,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if order.WaiterID == nil {
		t.Fatalf("expected waiter_id set after accept")
	}

	order, err = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusCancelled, Scope: authzscope.Waiter, Justification: "guest left",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.WaiterID != nil || order.AcceptedAt != nil || order.WaiterAcceptedAt != nil {
		t.Fatalf("expected assignment fields cleared on cancel from queued, got waiter_id=%v", order.WaiterID)
	}
	if order.PaymentStatus != domain.PaymentUnpaid {
		t.Fatalf("expected payment_status unpaid on cancel, got %v", order.PaymentStatus)
	}
}

func TestCancelAppendsScopedJustificationNote(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	waiterID := snowflake.ID(100)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.Waiter, ActorID: &waiterID,
	})
	chefID := snowflake.ID(200)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusPreparing, Scope: authzscope.Chef, ActorID: &chefID,
	})

	order, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusCancelled, Scope: authzscope.Waiter, Justification: "guest left",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Notes != "[waiter] guest left" {
		t.Fatalf("expected scoped note, got %q", order.Notes)
	}
}

func TestDeliverItemsAllowsPartialAfterAlreadyDelivered(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	waiterID := snowflake.ID(100)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.Waiter, ActorID: &waiterID,
	})
	chefID := snowflake.ID(200)
	order, _ = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusPreparing, Scope: authzscope.Chef, ActorID: &chefID,
	})
	order, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusReady, Scope: authzscope.Chef, ActorID: &chefID,
	})
	if err != nil {
		t.Fatalf("kitchen complete: %v", err)
	}

	itemIDs := make([]snowflake.ID, len(order.Items))
	for i, item := range order.Items {
		itemIDs[i] = item.ID
	}

	order, err = svc.DeliverItems(context.Background(), order.ID, itemIDs, waiterID)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if order.WorkflowStatus != domain.StatusDelivered {
		t.Fatalf("expected delivered after full delivery, got %v", order.WorkflowStatus)
	}

	// A late/partial delivery call against an order that is already fully
	// delivered must still be accepted, not rejected as an illegal edge.
	if _, err := svc.DeliverItems(context.Background(), order.ID, itemIDs, waiterID); err != nil {
		t.Fatalf("expected delivery against already-delivered order to succeed, got %v", err)
	}
}

func TestQueuedWithoutWaiterRejected(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.System,
	})
	if err != domain.ErrWaiterRequired {
		t.Fatalf("expected ErrWaiterRequired, got %v", err)
	}
}

func TestTerminalStatusRejectsFurtherTransitions(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	order := newOrder(t, svc)

	_, err := svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusCancelled, Scope: authzscope.Client,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = svc.Transition(context.Background(), domain.TransitionRequest{
		OrderID: order.ID, To: domain.StatusQueued, Scope: authzscope.Waiter,
	})
	if err != domain.ErrTerminalStatus {
		t.Fatalf("expected ErrTerminalStatus, got %v", err)
	}
}
