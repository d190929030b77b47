package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prontocore/kitchen/internal/authzscope"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleWaiter  Role = "waiter"
	RoleChef    Role = "chef"
	RoleCashier Role = "cashier"
	RoleAdmin   Role = "admin"
)

// Scope is the authorization window an actor currently operates in -
// distinct from Role, which only describes what the employee is (§3, GLOSSARY).
type Scope = authzscope.Scope

// Preferences is the free-form employee preferences map (§3), e.g.
// auto_assign_table_on_order_accept.
type Preferences struct {
	AutoAssignTableOnOrderAccept bool `json:"auto_assign_table_on_order_accept"`
}

type Employee struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	NameEncrypted      string           `gorm:"column:name_encrypted;not null" json:"-"`
	EmailEncrypted     string           `gorm:"column:email_encrypted;not null" json:"-"`
	EmailHash          string           `gorm:"column:email_hash;not null;uniqueIndex" json:"-"`
	CredentialHash     string           `gorm:"column:credential_hash;not null" json:"-"`
	PrimaryRole        Role             `gorm:"not null" json:"primary_role"`
	AdditionalRolesRaw datatypes.JSON   `gorm:"column:additional_roles" json:"-"`
	Active             bool             `gorm:"not null;default:true" json:"active"`
	ScopesRaw          datatypes.JSON   `gorm:"column:scopes" json:"-"`
	SignedInAt         *time.Time       `json:"signed_in_at,omitempty"`
	LastActivityAt     *time.Time       `json:"last_activity_at,omitempty"`
	PreferencesRaw     datatypes.JSON   `gorm:"column:preferences" json:"-"`
	CreatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

func (e *Employee) SetAdditionalRoles(roles []Role) {
	b, _ := json.Marshal(roles)
	e.AdditionalRolesRaw = b
}

func (e Employee) AdditionalRoles() []Role {
	var roles []Role
	if len(e.AdditionalRolesRaw) == 0 {
		return nil
	}
	_ = json.Unmarshal(e.AdditionalRolesRaw, &roles)
	return roles
}

func (e *Employee) SetScopes(scopes []Scope) {
	b, _ := json.Marshal(scopes)
	e.ScopesRaw = b
}

func (e Employee) Scopes() []Scope {
	var scopes []Scope
	if len(e.ScopesRaw) == 0 {
		return nil
	}
	_ = json.Unmarshal(e.ScopesRaw, &scopes)
	return scopes
}

func (e *Employee) SetPreferences(p Preferences) {
	b, _ := json.Marshal(p)
	e.PreferencesRaw = b
}

func (e Employee) Preferences() Preferences {
	var p Preferences
	if len(e.PreferencesRaw) == 0 {
		return Preferences{}
	}
	_ = json.Unmarshal(e.PreferencesRaw, &p)
	return p
}

// HasRole reports whether role is the primary role or among the additional ones.
func (e Employee) HasRole(role Role) bool {
	if e.PrimaryRole == role {
		return true
	}
	for _, r := range e.AdditionalRoles() {
		if r == role {
			return true
		}
	}
	return false
}

// HasScope reports whether scope is among the employee's allowed scopes.
func (e Employee) HasScope(scope Scope) bool {
	for _, s := range e.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// IsSignedIn reports whether SignedInAt is set and LastActivityAt falls
// within window of "now" (§3's is_signed_in(window)).
func (e Employee) IsSignedIn(now time.Time, window time.Duration) bool {
	if e.SignedInAt == nil || e.LastActivityAt == nil {
		return false
	}
	return now.Sub(*e.LastActivityAt) <= window
}
