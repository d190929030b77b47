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
	diningsessiondomain "github.com/prontocore/kitchen/internal/diningsession/domain"
	diningsessionrepo "github.com/prontocore/kitchen/internal/diningsession/repository"
	diningsessionservice "github.com/prontocore/kitchen/internal/diningsession/service"
	employeerepo "github.com/prontocore/kitchen/internal/employee/repository"
	employeeservice "github.com/prontocore/kitchen/internal/employee/service"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	orderrepo "github.com/prontocore/kitchen/internal/order/repository"
	orderservice "github.com/prontocore/kitchen/internal/order/service"
	"github.com/prontocore/kitchen/internal/pii"
	"github.com/prontocore/kitchen/internal/realtime"
	"github.com/prontocore/kitchen/internal/splitbill/domain"
	"github.com/prontocore/kitchen/internal/splitbill/repository"
	"github.com/prontocore/kitchen/internal/splitbill/service"
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
	db      *gorm.DB
	split   diningsessiondomain.Service
	order   orderdomain.Service
	table   tabledomain.Service
	splits  domain.Service
	fake    *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbConn.AutoMigrate(
		&diningsessiondomain.DiningSession{},
		&orderdomain.Order{}, &orderdomain.OrderItem{}, &orderdomain.OrderItemModifier{}, &orderdomain.OrderHistoryEntry{},
		&tabledomain.Table{},
		&customerdomain.Customer{},
		&waitercalldomain.WaiterCall{}, &waitercalldomain.SupervisorCall{},
		&domain.Split{}, &domain.SplitPerson{}, &domain.SplitItemAssignment{},
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
	orderRepo := orderrepo.Provide(dbConn)
	orderSvc := orderservice.New(orderservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: orderRepo, Clock: fake, Pricing: orderPricing, Bus: bus,
	})

	waitercallSvc := waitercallservice.New(waitercallservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: waitercallrepo.Provide(dbConn), Clock: fake, Employee: employeeSvc, Bus: bus,
	})

	sessionSvc := diningsessionservice.New(diningsessionservice.Params{
		Log: zap.NewNop(), GenID: node, Repo: diningsessionrepo.Provide(dbConn), Clock: fake,
		TableRepo: tablerepo.Provide(dbConn), OrderRepo: orderRepo,
		Customer: customerSvc, WaiterCall: waitercallSvc, Bus: bus, Config: cfg,
	})

	splitSvc := service.New(service.Params{
		Log: zap.NewNop(), GenID: node, Repo: repository.Provide(dbConn), Clock: fake,
		DiningSession: sessionSvc, OrderRepo: orderRepo,
	})

	return &harness{db: dbConn, split: sessionSvc, order: orderSvc, table: tableSvc, splits: splitSvc, fake: fake}
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

// newSessionWithOrder resolves a fresh session for a fresh table and attaches
// a single order with the given items, returning the session id and the
// created order (with its items' generated IDs populated).
func (h *harness) newSessionWithOrder(t *testing.T, tableCode string, items []orderdomain.CreateOrderItem) (snowflake.ID, *orderdomain.Order) {
	t.Helper()
	tbl := h.newTable(t, tableCode)
	session, err := h.split.Resolve(context.Background(), diningsessiondomain.ResolveRequest{
		TableID: &tbl.ID, TableCode: tbl.Code, CustomerID: snowflake.ID(1),
	})
	if err != nil {
		t.Fatalf("resolve session: %v", err)
	}
	order, err := h.order.Create(context.Background(), orderdomain.CreateOrderRequest{
		SessionID: session.ID, CustomerID: snowflake.ID(1), TableCode: tbl.Code, Items: items,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		_, err := h.split.RecomputeTotals(context.Background(), tx, session.ID)
		return err
	})
	if err != nil {
		t.Fatalf("recompute totals: %v", err)
	}
	return session.ID, order
}

func TestCreateSplitEqualDividesTotalsFloorWithRemainder(t *testing.T) {
	h := newHarness(t)
	sessionID, _ := h.newSessionWithOrder(t, "A-S01", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(10.01)},
	})

	split, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 3, SplitType: domain.SplitTypeEqual,
	})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}
	if len(split.Persons) != 3 {
		t.Fatalf("expected 3 persons, got %d", len(split.Persons))
	}

	var sum money.Cents
	for _, p := range split.Persons {
		sum += p.TotalAmount
	}

	session, err := h.split.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sum != session.TotalAmount {
		t.Fatalf("expected person shares to sum to session total %v, got %v", session.TotalAmount.ToFloat(), sum.ToFloat())
	}
	if split.Persons[0].TotalAmount != split.Persons[1].TotalAmount {
		t.Fatalf("expected the first two shares to be equal")
	}
}

func TestCreateSplitRejectsSecondActiveSplit(t *testing.T) {
	h := newHarness(t)
	sessionID, _ := h.newSessionWithOrder(t, "A-S02", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(20)},
	})

	if _, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 2, SplitType: domain.SplitTypeEqual,
	}); err != nil {
		t.Fatalf("create first split: %v", err)
	}

	_, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 2, SplitType: domain.SplitTypeEqual,
	})
	if err != domain.ErrAlreadyActive {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestCreateSplitRejectsTooFewPeople(t *testing.T) {
	h := newHarness(t)
	sessionID, _ := h.newSessionWithOrder(t, "A-S03", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(20)},
	})

	_, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 1, SplitType: domain.SplitTypeEqual,
	})
	if err != domain.ErrInvalidPeopleCount {
		t.Fatalf("expected ErrInvalidPeopleCount, got %v", err)
	}
}

func TestAssignItemRejectsOverassignment(t *testing.T) {
	h := newHarness(t)
	sessionID, order := h.newSessionWithOrder(t, "A-S04", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(30)},
	})

	split, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 2, SplitType: domain.SplitTypeByItems,
	})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}
	itemID := order.Items[0].ID

	if _, err := h.splits.AssignItem(context.Background(), domain.AssignItemRequest{
		SplitID: split.ID, PersonID: split.Persons[0].ID, OrderItemID: itemID, Portion: 0.6,
	}); err != nil {
		t.Fatalf("assign first portion: %v", err)
	}

	_, err = h.splits.AssignItem(context.Background(), domain.AssignItemRequest{
		SplitID: split.ID, PersonID: split.Persons[1].ID, OrderItemID: itemID, Portion: 0.6,
	})
	if err != domain.ErrItemOverassigned {
		t.Fatalf("expected ErrItemOverassigned, got %v", err)
	}
}

func TestAssignItemAndRecalculateDistributesTaxProportionally(t *testing.T) {
	h := newHarness(t)
	sessionID, order := h.newSessionWithOrder(t, "A-S05", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(60)},
		{MenuItemID: snowflake.ID(2), Quantity: 1, UnitPrice: money.FromFloat(40)},
	})

	split, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 2, SplitType: domain.SplitTypeByItems,
	})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}

	updated, err := h.splits.AssignItem(context.Background(), domain.AssignItemRequest{
		SplitID: split.ID, PersonID: split.Persons[0].ID, OrderItemID: order.Items[0].ID, Portion: 1.0,
	})
	if err != nil {
		t.Fatalf("assign item 0: %v", err)
	}
	updated, err = h.splits.AssignItem(context.Background(), domain.AssignItemRequest{
		SplitID: updated.ID, PersonID: updated.Persons[1].ID, OrderItemID: order.Items[1].ID, Portion: 1.0,
	})
	if err != nil {
		t.Fatalf("assign item 1: %v", err)
	}

	session, err := h.split.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}

	var personA, personB *domain.SplitPerson
	for i := range updated.Persons {
		if updated.Persons[i].ID == split.Persons[0].ID {
			personA = &updated.Persons[i]
		}
		if updated.Persons[i].ID == split.Persons[1].ID {
			personB = &updated.Persons[i]
		}
	}
	if personA.Subtotal != money.FromFloat(60) || personB.Subtotal != money.FromFloat(40) {
		t.Fatalf("unexpected subtotals: a=%v b=%v", personA.Subtotal.ToFloat(), personB.Subtotal.ToFloat())
	}

	expectedTaxA := session.TaxAmount.MulFraction(money.FromFloat(60), session.Subtotal)
	if personA.TaxAmount != expectedTaxA {
		t.Fatalf("expected proportional tax %v, got %v", expectedTaxA.ToFloat(), personA.TaxAmount.ToFloat())
	}
	if personA.TaxAmount+personB.TaxAmount != session.TaxAmount {
		t.Fatalf("expected split tax shares to sum to session tax")
	}
}

func TestPaySplitPersonClosesSessionWhenAllPaid(t *testing.T) {
	h := newHarness(t)
	sessionID, _ := h.newSessionWithOrder(t, "A-S06", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(50)},
	})

	split, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 2, SplitType: domain.SplitTypeEqual,
	})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}

	updated, completed, err := h.splits.PaySplitPerson(context.Background(), domain.PayPersonRequest{
		SplitID: split.ID, PersonID: split.Persons[0].ID, Method: orderdomain.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("pay first person: %v", err)
	}
	if completed {
		t.Fatalf("split should not complete after only one of two persons paid")
	}

	updated, completed, err = h.splits.PaySplitPerson(context.Background(), domain.PayPersonRequest{
		SplitID: updated.ID, PersonID: split.Persons[1].ID, Method: orderdomain.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("pay second person: %v", err)
	}
	if !completed {
		t.Fatalf("split should complete once both persons have paid")
	}
	if updated.Status != domain.SplitCompleted {
		t.Fatalf("expected split completed, got %s", updated.Status)
	}

	session, err := h.split.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != diningsessiondomain.StatusPaid {
		t.Fatalf("expected session paid, got %s", session.Status)
	}
	if session.PaymentMethod == nil || *session.PaymentMethod != orderdomain.PaymentMethodSplitBill {
		t.Fatalf("expected session payment method split_bill, got %v", session.PaymentMethod)
	}
	if session.PaymentReference == nil || *session.PaymentReference != "split-"+updated.ID.String() {
		t.Fatalf("expected session payment reference split-<splitID>, got %v", session.PaymentReference)
	}

	orders, err := h.order.ListBySession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	for _, o := range orders {
		if o.PaymentStatus != orderdomain.PaymentPaid {
			t.Fatalf("expected order %d paid, got %s", o.ID, o.PaymentStatus)
		}
	}
}

func TestPaySplitPersonRejectsDoublePayment(t *testing.T) {
	h := newHarness(t)
	sessionID, _ := h.newSessionWithOrder(t, "A-S07", []orderdomain.CreateOrderItem{
		{MenuItemID: snowflake.ID(1), Quantity: 1, UnitPrice: money.FromFloat(50)},
	})

	split, err := h.splits.CreateSplit(context.Background(), domain.CreateSplitRequest{
		SessionID: sessionID, NumberOfPeople: 2, SplitType: domain.SplitTypeEqual,
	})
	if err != nil {
		t.Fatalf("create split: %v", err)
	}

	if _, _, err := h.splits.PaySplitPerson(context.Background(), domain.PayPersonRequest{
		SplitID: split.ID, PersonID: split.Persons[0].ID, Method: orderdomain.PaymentMethodCash,
	}); err != nil {
		t.Fatalf("pay first person: %v", err)
	}

	_, _, err = h.splits.PaySplitPerson(context.Background(), domain.PayPersonRequest{
		SplitID: split.ID, PersonID: split.Persons[0].ID, Method: orderdomain.PaymentMethodCash,
	})
	if err != domain.ErrPersonAlreadyPaid {
		t.Fatalf("expected ErrPersonAlreadyPaid, got %v", err)
	}
}
