package service

import (
	"context"
	"math"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	diningsessiondomain "github.com/prontocore/kitchen/internal/diningsession/domain"
	orderdomain "github.com/prontocore/kitchen/internal/order/domain"
	"github.com/prontocore/kitchen/internal/splitbill/domain"
	"github.com/prontocore/kitchen/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const portionOverassignTolerance = 1e-3

type Params struct {
	fx.In

	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	Clock         clock.Clock
	DiningSession diningsessiondomain.Service
	OrderRepo     orderdomain.Repository
}

// Service is the SplitBillEngine (§4.4).
type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	sessions diningsessiondomain.Service
	orders   orderdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("splitbill.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		sessions: p.DiningSession,
		orders:   p.OrderRepo,
	}
}

func (s *Service) CreateSplit(ctx context.Context, req domain.CreateSplitRequest) (*domain.Split, error) {
	if req.NumberOfPeople < 2 {
		return nil, domain.ErrInvalidPeopleCount
	}
	switch req.SplitType {
	case domain.SplitTypeEqual, domain.SplitTypeByItems:
	default:
		return nil, domain.ErrInvalidSplitType
	}

	existing, err := s.repo.FindActiveBySession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyActive
	}

	split := &domain.Split{
		ID:        s.genID.Generate(),
		SessionID: req.SessionID,
		SplitType: req.SplitType,
		NumPeople: req.NumberOfPeople,
		Status:    domain.SplitActive,
		CreatedAt: s.clock.Now(),
	}
	persons := make([]domain.SplitPerson, req.NumberOfPeople)
	for i := range persons {
		persons[i] = domain.SplitPerson{
			ID:     s.genID.Generate(),
			Label:  "Persona " + strconv.Itoa(i+1),
			Status: domain.PersonUnpaid,
		}
	}

	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.Create(ctx, tx, split, persons)
	})
	if err != nil {
		return nil, err
	}

	if req.SplitType == domain.SplitTypeEqual {
		return s.applyEqualSplit(ctx, split.ID)
	}
	return split, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Split, error) {
	split, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if split == nil {
		return nil, domain.ErrNotFound
	}
	return split, nil
}

// applyEqualSplit implements §4.4's equal-split rule: each person gets the
// session total's fields divided by N, floor-rounded, with the last person
// absorbing the remainder so the parts sum exactly (money.DivideEqually).
func (s *Service) applyEqualSplit(ctx context.Context, splitID snowflake.ID) (*domain.Split, error) {
	var result *domain.Split
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		split, err := s.repo.FindByIDTx(ctx, tx, splitID)
		if err != nil {
			return err
		}
		if split == nil {
			return domain.ErrNotFound
		}
		session, err := s.sessions.Get(ctx, split.SessionID)
		if err != nil {
			return err
		}

		subtotalShares := session.Subtotal.DivideEqually(split.NumPeople)
		taxShares := session.TaxAmount.DivideEqually(split.NumPeople)
		tipShares := session.TipAmount.DivideEqually(split.NumPeople)

		for i := range split.Persons {
			p := &split.Persons[i]
			p.Subtotal = subtotalShares[i]
			p.TaxAmount = taxShares[i]
			p.TipAmount = tipShares[i]
			p.TotalAmount = p.Subtotal + p.TaxAmount + p.TipAmount
			if err := s.repo.UpdatePerson(ctx, tx, p); err != nil {
				return err
			}
		}
		result = split
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) AssignItem(ctx context.Context, req domain.AssignItemRequest) (*domain.Split, error) {
	var result *domain.Split
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		split, err := s.repo.FindByIDTx(ctx, tx, req.SplitID)
		if err != nil {
			return err
		}
		if split == nil {
			return domain.ErrNotFound
		}
		if split.SplitType != domain.SplitTypeByItems {
			return domain.ErrNotByItems
		}
		if split.Status != domain.SplitActive {
			return domain.ErrSplitNotActive
		}

		var person *domain.SplitPerson
		for i := range split.Persons {
			if split.Persons[i].ID == req.PersonID {
				person = &split.Persons[i]
				break
			}
		}
		if person == nil {
			return domain.ErrPersonNotFound
		}

		existing, err := s.repo.ListAssignmentsForItem(ctx, tx, req.SplitID, req.OrderItemID)
		if err != nil {
			return err
		}
		var assigned float64
		for _, a := range existing {
			assigned += a.Portion
		}
		if assigned+req.Portion > 1+portionOverassignTolerance {
			return domain.ErrItemOverassigned
		}

		item, err := s.orders.FindOrderItemByID(ctx, req.OrderItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return orderdomain.ErrItemNotFound
		}
		amount := money.Cents(int64(math.Round(float64(item.LineTotal()) * req.Portion)))

		assignment := &domain.SplitItemAssignment{
			ID:          s.genID.Generate(),
			SplitID:     req.SplitID,
			PersonID:    req.PersonID,
			OrderItemID: req.OrderItemID,
			Portion:     req.Portion,
			Amount:      amount,
		}
		if err := s.repo.CreateAssignment(ctx, tx, assignment); err != nil {
			return err
		}
		result = split
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Recalculate(ctx, result.ID)
}

// Recalculate implements §4.4's by-items recompute: subtotal is the sum of
// a person's assignments, tax and tip are distributed proportionally to
// their share of the session subtotal.
func (s *Service) Recalculate(ctx context.Context, splitID snowflake.ID) (*domain.Split, error) {
	var result *domain.Split
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		split, err := s.repo.FindByIDTx(ctx, tx, splitID)
		if err != nil {
			return err
		}
		if split == nil {
			return domain.ErrNotFound
		}
		session, err := s.sessions.Get(ctx, split.SessionID)
		if err != nil {
			return err
		}
		assignments, err := s.repo.ListAssignmentsForSplit(ctx, tx, splitID)
		if err != nil {
			return err
		}

		bySubtotal := make(map[snowflake.ID]money.Cents, len(split.Persons))
		for _, a := range assignments {
			bySubtotal[a.PersonID] += a.Amount
		}

		for i := range split.Persons {
			p := &split.Persons[i]
			p.Subtotal = bySubtotal[p.ID]
			p.TaxAmount = session.TaxAmount.MulFraction(p.Subtotal, session.Subtotal)
			p.TipAmount = session.TipAmount.MulFraction(p.Subtotal, session.Subtotal)
			p.TotalAmount = p.Subtotal + p.TaxAmount + p.TipAmount
			if err := s.repo.UpdatePerson(ctx, tx, p); err != nil {
				return err
			}
		}
		result = split
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) PaySplitPerson(ctx context.Context, req domain.PayPersonRequest) (*domain.Split, bool, error) {
	if !orderdomain.ValidPaymentMethod(req.Method) {
		return nil, false, domain.ErrInvalidPaymentMethod
	}

	var result *domain.Split
	now := s.clock.Now()
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		split, err := s.repo.FindByIDTx(ctx, tx, req.SplitID)
		if err != nil {
			return err
		}
		if split == nil {
			return domain.ErrNotFound
		}
		if split.Status != domain.SplitActive {
			return domain.ErrSplitNotActive
		}

		var person *domain.SplitPerson
		for i := range split.Persons {
			if split.Persons[i].ID == req.PersonID {
				person = &split.Persons[i]
				break
			}
		}
		if person == nil {
			return domain.ErrPersonNotFound
		}
		if person.Status == domain.PersonPaid {
			return domain.ErrPersonAlreadyPaid
		}

		person.Status = domain.PersonPaid
		person.PaymentMethod = &req.Method
		person.PaymentReference = req.Reference
		person.PaidAt = &now
		if err := s.repo.UpdatePerson(ctx, tx, person); err != nil {
			return err
		}

		allPaid := true
		for _, p := range split.Persons {
			if p.ID == person.ID {
				continue
			}
			if p.Status != domain.PersonPaid {
				allPaid = false
				break
			}
		}
		if allPaid {
			split.Status = domain.SplitCompleted
			split.CompletedAt = &now
			if err := s.repo.UpdateSplit(ctx, tx, split); err != nil {
				return err
			}
		}
		result = split
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if result.Status != domain.SplitCompleted {
		return result, false, nil
	}

	if _, err := s.sessions.CloseViaSplit(ctx, result.SessionID, result.ID); err != nil {
		return nil, false, err
	}
	return result, true, nil
}
