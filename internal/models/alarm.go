package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultRadiusMeters is the geofence radius applied when a client
	// creates an alarm without one.
	DefaultRadiusMeters = 100.0

	// DefaultAudio is the sound reference applied when none is given.
	DefaultAudio = "default.wav"
)

// Alarm is a geofenced wake-up alarm owned by a single user. It never
// outlives its owner: the schema cascades the delete and the account
// deletion path removes alarms in the same transaction.
type Alarm struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Label        string    `gorm:"size:255;not null" json:"label"`
	LocationName string    `gorm:"size:255;not null" json:"location_name"`
	Latitude     float64   `gorm:"type:decimal(10,8);not null" json:"latitude"`
	Longitude    float64   `gorm:"type:decimal(11,8);not null" json:"longitude"`
	RadiusMeters float64   `gorm:"not null;default:100" json:"radius_meters"`
	Audio        string    `gorm:"size:255;not null;default:'default.wav'" json:"audio"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
