package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/prontocore/kitchen/internal/customer/domain"
	"github.com/prontocore/kitchen/internal/pii"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	PII   *pii.KeySource
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	pii   *pii.KeySource
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		repo:  p.Repo,
		pii:   p.PII,
	}
}

// ResolveOrCreate implements §3's lifecycle note: "created on first order
// for an unknown contact". An empty email always creates a fresh anonymous
// customer, since there is no hash to deduplicate against.
func (s *Service) ResolveOrCreate(ctx context.Context, req domain.ResolveContactRequest) (domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if email != "" {
		hash := s.pii.Hash(email)
		existing, err := s.repo.FindByEmailHash(ctx, hash)
		if err != nil {
			return domain.Customer{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = domain.GuestPlaceholderName
	}

	var (
		emailHash  string
		storeEmail string
		err        error
	)
	if email != "" {
		value, encErr := s.pii.Encrypt(email)
		if encErr != nil {
			return domain.Customer{}, encErr
		}
		storeEmail = value.Stored()
		emailHash = value.NormalizedHash()
	} else {
		sentinel := anonymousEmail()
		value, encErr := s.pii.Encrypt(sentinel)
		if encErr != nil {
			return domain.Customer{}, encErr
		}
		storeEmail = value.Stored()
		// emailHash stays empty: IsAnonymous() depends on this.
	}

	nameValue, err := s.pii.Encrypt(name)
	if err != nil {
		return domain.Customer{}, err
	}

	customer := domain.Customer{
		ID:                   s.genID.Generate(),
		DisplayNameEncrypted: nameValue.Stored(),
		EmailEncrypted:       storeEmail,
		EmailHash:            emailHash,
		Phone:                strings.TrimSpace(req.Phone),
	}

	if err := s.repo.Insert(ctx, &customer); err != nil {
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *customer, nil
}

func (s *Service) AttachContact(ctx context.Context, id snowflake.ID, email string) (domain.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	if !customer.IsAnonymous() {
		return domain.Customer{}, domain.ErrNotAnonymous
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return domain.Customer{}, domain.ErrInvalidEmail
	}

	value, err := s.pii.Encrypt(normalized)
	if err != nil {
		return domain.Customer{}, err
	}

	customer.EmailEncrypted = value.Stored()
	customer.EmailHash = value.NormalizedHash()

	if err := s.repo.Update(ctx, customer); err != nil {
		return domain.Customer{}, err
	}

	return *customer, nil
}

func (s *Service) DisplayName(ctx context.Context, id snowflake.ID) (string, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", domain.ErrNotFound
	}
	return s.pii.Decrypt(pii.FromStored(customer.DisplayNameEncrypted, ""))
}

func (s *Service) ContactEmail(ctx context.Context, id snowflake.ID) (string, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if customer == nil {
		return "", domain.ErrNotFound
	}
	return s.pii.Decrypt(pii.FromStored(customer.EmailEncrypted, ""))
}

// anonymousEmail produces the §6 synthetic sentinel "anon+<token>@local".
func anonymousEmail() string {
	return "anon+" + uuid.NewString() + "@local"
}
