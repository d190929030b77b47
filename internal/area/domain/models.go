package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Area groups tables under a shared name, color and table-code prefix
// (§3 "Area"). Prefix feeds table code validation: "<AREA_PREFIX>-M<NN>".
type Area struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"not null;uniqueIndex" json:"name"`
	Color           string       `json:"color,omitempty"`
	Prefix          string       `gorm:"not null;uniqueIndex" json:"prefix"`
	BackgroundImage string       `json:"background_image,omitempty"`
	Active          bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Area) TableName() string { return "areas" }
