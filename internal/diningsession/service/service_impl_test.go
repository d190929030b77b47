package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	customerdomain "github.com/prontocore/kitchen/internal/customer/domain"
	customerrepo "github.com/prontocore/kitchen/internal/customer/repository"
	customerservice "github.com/prontocore/kitchen/internal/customer/service"
	"github.com/prontocore/kitchen/internal/diningsession/domain"
	"github.com/prontocore/kitchen/internal/diningsession/repository"
	"github.com/prontocore/kitchen/internal/diningsession/service"
	employeerepo "github.com/prontocore/kitchen/internal/employee/repository"
	employeeservice "github.com/prontocore/kitchen/internal/employee/service"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	orderrepo "github.com/prontocore/kitchen/internal/order/repository"
	orderservice "github.com/prontocore/kitchen/internal/order/service"
	"github.com/prontocore/kitchen/internal/pii"
	"github.com/prontocore/kitchen/internal/realtime"
	tabledomain "github.com/prontocore/kitchen/internal/table/domain"
	tablerepo "github.com/prontocore/kitchen/internal/table/repository"
	tableservice "github.com/prontocore/kitchen/internal/table/service"
	waitercalldomain "github.com/prontocore/kitchen/internal/waitercall/domain"
	waitercallrepo "github.com/prontocore/kitchen/internal/waitercall/repository"
	waitercallservice "github.com/prontocore/kitchen/internal/waitercall/service"
	"github.com/prontocore/kitchen/pkg/db"
	"github.com/prontocore/kitchen/pkg/money"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db       *gorm.DB
	session  domain.Service
	order    orderdomain.Service
	table    tabledomain.Service
	customer customerdomain.Service
	fake     *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&domain.DiningSession{},
		&orderdomain.Order{}, &orderdomain.OrderItem{}, &orderdomain.OrderItemModifier{}, &orderdomain.OrderHistoryEntry{},
		&tabledomain.Table{},
		&customerdomain.Customer{},
		&waitercalldomain.WaiterCall{}, &waitercalldomain.SupervisorCall{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{SessionTTLHours: 4, TaxRate: 0.16, PriceDisplayMode: config.PriceDisplayTaxExcluded}
	keySource := pii.NewKeySource(cfg)
	bus := realtime.New(nil, zap.NewNop())

	tableSvc := tableservice.New(tableservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: tablerepo.Provide(dbConn),
	})

	employeeSvc := employeeservice.New(employeeservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: employeerepo.Provide(dbConn), PII: keySource, Clock: fake, Cfg: cfg,
	})

	customerSvc := customerservice.New(customerservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: customerrepo.Provide(dbConn), PII: keySource,
	})

	orderPricing := config.NewPricingPolicyHolder(cfg)
	orderSvc := orderservice.New(orderservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: orderrepo.Provide(dbConn), Clock: fake, Pricing: orderPricing, Bus: bus,
	})

	waitercallSvc := waitercallservice.New(waitercallservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: waitercallrepo.Provide(dbConn), Clock: fake, Employee: employeeSvc, Bus: bus,
	})

	sessionSvc := service.New(service.Params{
		Log: zap.NewNop(), GenID: node, Repo: repository.Provide(dbConn), Clock: fake,
		TableRepo: tablerepo.Provide(dbConn), OrderRepo: orderrepo.Provide(dbConn),
		Customer: customerSvc, WaiterCall: waitercallSvc, Bus: bus, Config: cfg,
	})

	return &harness{db: dbConn, session: sessionSvc, order: orderSvc, table: tableSvc, customer: customerSvc, fake: fake}
}

func (h *harness) newTable(t *testing.T, code string) tabledomain.Table {
	t.Helper()
	tbl, err := h.table.Create(context.Background(), tabledomain.CreateTableRequest{
		Code: code, AreaID: snowflake.ID(900), Capacity: 4,
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return tbl
}

func (h *harness) newCustomer(t *testing.T) snowflake.ID {
	t.Helper()
	cust, err := h.customer.ResolveOrCreate(context.Background(), customerdomain.ResolveContactRequest{})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return cust.ID
}

func TestResolveCreatesNewOpenSession(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M01")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if session.Status != domain.StatusOpen {
		t.Fatalf("expected open status, got %s", session.Status)
	}
}

func TestResolveReturnsExistingOpenSessionForSameTable(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M02")
	custID := h.newCustomer(t)

	first, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	second, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: h.newCustomer(t),
	})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same session to be reused for the occupied table")
	}
}

func TestRecomputeTotalsSumsNonCancelledOrders(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M03")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = h.order.Create(context.Background(), orderdomain.CreateOrderRequest{
		SessionID: session.ID, CustomerID: custID, TableCode: tbl.Code,
		Items: []orderdomain.CreateOrderItem{{MenuItemID: snowflake.ID(10), Quantity: 2, UnitPrice: money.FromFloat(50)}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	err = h.db.Transaction(func(gtx *gorm.DB) error {
		updated, err := h.session.RecomputeTotals(context.Background(), gtx, session.ID)
		if err != nil {
			return err
		}
		if updated.Subtotal != money.FromFloat(100) {
			t.Fatalf("expected subtotal 100, got %v", updated.Subtotal.ToFloat())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
}

func TestApplyTipRejectsBothFixedAndPercent(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M04")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	fixed := money.FromFloat(10)
	pct := 15.0
	_, err = h.session.ApplyTip(context.Background(), domain.ApplyTipRequest{SessionID: session.ID, Fixed: &fixed, Percent: &pct})
	if err != domain.ErrInvalidTip {
		t.Fatalf("expected ErrInvalidTip, got %v", err)
	}
}

func TestApplyTipByPercentMovesSessionToAwaitingPayment(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M05")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := h.order.Create(context.Background(), orderdomain.CreateOrderRequest{
		SessionID: session.ID, CustomerID: custID, TableCode: tbl.Code,
		Items: []orderdomain.CreateOrderItem{{MenuItemID: snowflake.ID(11), Quantity: 1, UnitPrice: money.FromFloat(100)}},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	pct := 10.0
	updated, err := h.session.ApplyTip(context.Background(), domain.ApplyTipRequest{SessionID: session.ID, Percent: &pct})
	if err != nil {
		t.Fatalf("apply tip: %v", err)
	}
	if updated.Status != domain.StatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", updated.Status)
	}
	if updated.TipAmount != money.FromFloat(10) {
		t.Fatalf("expected tip 10, got %v", updated.TipAmount.ToFloat())
	}
}

func TestFinalizePaymentCardRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M06")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	updated, requiresConfirmation, err := h.session.FinalizePayment(context.Background(), domain.FinalizePaymentRequest{
		SessionID: session.ID, Method: orderdomain.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !requiresConfirmation {
		t.Fatalf("expected card payment to require confirmation")
	}
	if updated.Status != domain.StatusAwaitingPaymentConfirmation {
		t.Fatalf("expected awaiting_payment_confirmation, got %s", updated.Status)
	}

	confirmed, err := h.session.ConfirmPayment(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", confirmed.Status)
	}
}

func TestFinalizePaymentStripeClosesImmediately(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M07")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	updated, requiresConfirmation, err := h.session.FinalizePayment(context.Background(), domain.FinalizePaymentRequest{
		SessionID: session.ID, Method: orderdomain.PaymentMethodStripe,
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if requiresConfirmation {
		t.Fatalf("stripe payment should not require confirmation")
	}
	if updated.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", updated.Status)
	}
}

func TestFinalizePaymentRejectsUnknownMethod(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M08")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, _, err = h.session.FinalizePayment(context.Background(), domain.FinalizePaymentRequest{
		SessionID: session.ID, Method: orderdomain.PaymentMethod("bitcoin"),
	})
	if err != domain.ErrInvalidPaymentMethod {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestReprintRejectsUnpaidSession(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M10")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = h.session.Reprint(context.Background(), session.ID)
	if err != domain.ErrNotPaid {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
}

func TestReprintReturnsSnapshotOfPaidSession(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M11")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	order, err := h.order.Create(context.Background(), orderdomain.CreateOrderRequest{
		SessionID: session.ID, CustomerID: custID, TableCode: tbl.Code,
		Items: []orderdomain.CreateOrderItem{{MenuItemID: snowflake.ID(12), Quantity: 1, UnitPrice: money.FromFloat(40)}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, _, err := h.session.FinalizePayment(context.Background(), domain.FinalizePaymentRequest{
		SessionID: session.ID, Method: orderdomain.PaymentMethodStripe,
	}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	snapshot, err := h.session.Reprint(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("reprint: %v", err)
	}
	if snapshot.SessionID != session.ID {
		t.Fatalf("expected snapshot for session %v, got %v", session.ID, snapshot.SessionID)
	}
	if len(snapshot.Orders) != 1 || snapshot.Orders[0].OrderID != order.ID {
		t.Fatalf("expected snapshot to include the session's one order, got %+v", snapshot.Orders)
	}
}

func TestResendEmailIsNoopForAnonymousCustomer(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M12")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := h.order.Create(context.Background(), orderdomain.CreateOrderRequest{
		SessionID: session.ID, CustomerID: custID, TableCode: tbl.Code,
		Items: []orderdomain.CreateOrderItem{{MenuItemID: snowflake.ID(13), Quantity: 1, UnitPrice: money.FromFloat(15)}},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, _, err := h.session.FinalizePayment(context.Background(), domain.FinalizePaymentRequest{
		SessionID: session.ID, Method: orderdomain.PaymentMethodStripe,
	}); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// custID was created with no email, so it is anonymous - ResendEmail
	// must be a logged no-op, not an error.
	if err := h.session.ResendEmail(context.Background(), session.ID); err != nil {
		t.Fatalf("expected no-op for anonymous customer, got %v", err)
	}
}

func TestRequestCheckRaisesWaiterCall(t *testing.T) {
	h := newHarness(t)
	tbl := h.newTable(t, "A-M09")
	custID := h.newCustomer(t)

	session, err := h.session.Resolve(context.Background(), domain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: custID,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	updated, err := h.session.RequestCheck(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("request check: %v", err)
	}
	if updated.Status != domain.StatusAwaitingTip {
		t.Fatalf("expected awaiting_tip, got %s", updated.Status)
	}

	var count int64
	h.db.Model(&waitercalldomain.WaiterCall{}).Where("session_id = ? AND call_type = ?", session.ID, waitercalldomain.CallTypeCheckoutRequest).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one checkout waiter call, got %d", count)
	}
}
