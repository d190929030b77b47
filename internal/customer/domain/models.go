package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Customer is a guest, identified loosely by contact info across visits
// (§3). DisplayName may be the placeholder "GUEST". EmailHash is non-empty
// only when a real email was provided; IsAnonymous() is the inverse.
type Customer struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id"`
	DisplayNameEncrypted string       `gorm:"column:display_name_encrypted;not null" json:"-"`
	EmailEncrypted       string       `gorm:"column:email_encrypted;not null" json:"-"`
	EmailHash            string       `gorm:"column:email_hash;not null;uniqueIndex" json:"-"`
	Phone                string       `gorm:"column:phone" json:"phone,omitempty"`
	PhysicalDescription  string       `gorm:"column:physical_description" json:"physical_description,omitempty"`
	AvatarRef            string       `gorm:"column:avatar_ref" json:"avatar_ref,omitempty"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

// IsAnonymous reports whether this customer never provided a real email -
// the email column holds the synthetic "anon+<token>@local" sentinel (§6).
func (c Customer) IsAnonymous() bool {
	return c.EmailHash == ""
}
