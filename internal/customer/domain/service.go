package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName  = errors.New("customer: invalid name")
	ErrInvalidEmail = errors.New("customer: invalid email")
	ErrInvalidID    = errors.New("customer: invalid id")
	ErrNotFound     = errors.New("customer: not found")
	ErrNotAnonymous = errors.New("customer: cannot overwrite an existing real email")
)

const GuestPlaceholderName = "GUEST"

// ResolveContactRequest identifies a customer by optional email; when
// omitted, a new anonymous customer is created (§3).
type ResolveContactRequest struct {
	DisplayName string
	Email       string
	Phone       string
}

type Repository interface {
	Insert(ctx context.Context, customer *Customer) error
	FindByID(ctx context.Context, id snowflake.ID) (*Customer, error)
	FindByEmailHash(ctx context.Context, hash string) (*Customer, error)
	Update(ctx context.Context, customer *Customer) error
}

type Service interface {
	// ResolveOrCreate finds an existing customer by normalized email hash,
	// or creates a new one (anonymous if no email given). Called on first
	// order for an unknown contact (§3's "Lifecycle").
	ResolveOrCreate(ctx context.Context, req ResolveContactRequest) (Customer, error)
	Get(ctx context.Context, id snowflake.ID) (Customer, error)
	// AttachContact sets a real email on a currently-anonymous customer,
	// used by FinalizePayment's contact capture (§4.3, SPEC_FULL §3).
	AttachContact(ctx context.Context, id snowflake.ID, email string) (Customer, error)
	// DisplayName decrypts only the name, for realtime/ticket payloads.
	DisplayName(ctx context.Context, id snowflake.ID) (string, error)
	// ContactEmail decrypts the stored email, or returns the anonymous
	// sentinel untouched - callers must still pattern-match it (§6).
	ContactEmail(ctx context.Context, id snowflake.ID) (string, error)
}
