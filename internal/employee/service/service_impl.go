package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/clock"
	"github.com/prontocore/kitchen/internal/config"
	"github.com/prontocore/kitchen/internal/employee/domain"
	"github.com/prontocore/kitchen/internal/pii"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	PII    *pii.KeySource
	Clock  clock.Clock
	Cfg    config.Config
}

type Service struct {
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	pii          *pii.KeySource
	clock        clock.Clock
	autoAssignDefault bool
}

func New(p Params) domain.Service {
	return &Service{
		log:               p.Log.Named("employee.service"),
		genID:             p.GenID,
		repo:              p.Repo,
		pii:               p.PII,
		clock:             p.Clock,
		autoAssignDefault: p.Cfg.AssignmentAutoOnAcceptDefault,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEmployeeRequest) (domain.Employee, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Employee{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Employee{}, domain.ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return domain.Employee{}, domain.ErrInvalidPassword
	}

	nameValue, err := s.pii.Encrypt(name)
	if err != nil {
		return domain.Employee{}, err
	}
	emailValue, err := s.pii.Encrypt(email)
	if err != nil {
		return domain.Employee{}, err
	}

	existing, err := s.repo.FindByEmailHash(ctx, emailValue.NormalizedHash())
	if err != nil {
		return domain.Employee{}, err
	}
	if existing != nil {
		return domain.Employee{}, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Employee{}, err
	}

	employee := domain.Employee{
		ID:             s.genID.Generate(),
		NameEncrypted:  nameValue.Stored(),
		EmailEncrypted: emailValue.Stored(),
		EmailHash:      emailValue.NormalizedHash(),
		CredentialHash: string(hash),
		PrimaryRole:    req.PrimaryRole,
		Active:         true,
	}
	employee.SetAdditionalRoles(req.AdditionalRoles)
	employee.SetScopes(req.Scopes)
	employee.SetPreferences(domain.Preferences{AutoAssignTableOnOrderAccept: s.autoAssignDefault})

	if err := s.repo.Insert(ctx, &employee); err != nil {
		return domain.Employee{}, err
	}

	return employee, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (domain.Employee, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	emailHash := s.pii.Hash(normalized)

	employee, err := s.repo.FindByEmailHash(ctx, emailHash)
	if err != nil {
		return domain.Employee{}, err
	}
	if employee == nil {
		return domain.Employee{}, domain.ErrInvalidCredential
	}
	if !employee.Active {
		return domain.Employee{}, domain.ErrInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(employee.CredentialHash), []byte(password)); err != nil {
		return domain.Employee{}, domain.ErrInvalidCredential
	}

	return *employee, nil
}

func (s *Service) SignIn(ctx context.Context, id snowflake.ID) error {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if employee == nil {
		return domain.ErrNotFound
	}
	now := s.clock.Now()
	employee.SignedInAt = &now
	employee.LastActivityAt = &now
	return s.repo.Update(ctx, employee)
}

func (s *Service) Touch(ctx context.Context, id snowflake.ID) error {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if employee == nil {
		return domain.ErrNotFound
	}
	now := s.clock.Now()
	employee.LastActivityAt = &now
	return s.repo.Update(ctx, employee)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Employee{}, err
	}
	if employee == nil {
		return domain.Employee{}, domain.ErrNotFound
	}
	return *employee, nil
}

func (s *Service) List(ctx context.Context, role domain.Role, activeOnly bool) ([]domain.Employee, error) {
	items, err := s.repo.List(ctx, role, activeOnly)
	if err != nil {
		return nil, err
	}
	employees := make([]domain.Employee, 0, len(items))
	for _, item := range items {
		employees = append(employees, *item)
	}
	return employees, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, id snowflake.ID, prefs domain.Preferences) error {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if employee == nil {
		return domain.ErrNotFound
	}
	employee.SetPreferences(prefs)
	return s.repo.Update(ctx, employee)
}

// DisplayName decrypts only the name, for realtime payloads that must
// include a waiter's human name (§4.6 waiter_name).
func (s *Service) DisplayName(ctx context.Context, id snowflake.ID) (string, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if employee == nil {
		return "", domain.ErrNotFound
	}
	value := pii.FromStored(employee.NameEncrypted, "")
	return s.pii.Decrypt(value)
}
