package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type TableStatus string

const (
	TableAvailable   TableStatus = "available"
	TableOccupied    TableStatus = "occupied"
	TableReserved    TableStatus = "reserved"
	TableMaintenance TableStatus = "maintenance"
)

type Shape string

const (
	ShapeSquare Shape = "square"
	ShapeRound  Shape = "round"
	ShapeRect   Shape = "rect"
)

// Table is physically identified by Code, of the form "<AREA_PREFIX>-M<NN>"
// (§6). QRToken is the opaque value embedded in the table's printed QR code.
type Table struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"not null;uniqueIndex" json:"code"`
	QRToken   string       `gorm:"not null;uniqueIndex" json:"qr_token"`
	AreaID    snowflake.ID `gorm:"not null;index" json:"area_id"`
	Capacity  int          `gorm:"not null;default:2" json:"capacity"`
	Status    TableStatus  `gorm:"not null;default:available" json:"status"`
	PositionX *float64     `json:"position_x,omitempty"`
	PositionY *float64     `json:"position_y,omitempty"`
	Shape     Shape        `gorm:"default:square" json:"shape,omitempty"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Table) TableName() string { return "tables" }
