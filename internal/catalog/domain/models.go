package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Venue is a bar that stores purchased bottles.
type Venue struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id,string"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Location  string       `gorm:"type:text;not null" json:"location"`
	IsOpen    bool         `gorm:"not null;default:true" json:"is_open"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Venue) TableName() string { return "venues" }

// Bottle is a catalog entry a customer can pre-purchase.
type Bottle struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id,string"`
	VenueID     snowflake.ID `gorm:"not null;index" json:"venue_id,string"`
	Brand       string       `gorm:"type:text;not null" json:"brand"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	PriceCents  int64        `gorm:"not null" json:"price_cents"`
	VolumeML    int64        `gorm:"not null" json:"volume_ml"`
	IsAvailable bool         `gorm:"not null;default:true" json:"is_available"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Bottle) TableName() string { return "bottles" }
