package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateAlarmRequest struct {
	Label        string   `json:"label"`
	LocationName string   `json:"location_name"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	RadiusMeters *float64 `json:"radius_meters"`
	Audio        string   `json:"audio"`
	Active       *bool    `json:"active"`
}

// UpdateAlarmRequest is a patch: nil fields are left unchanged.
type UpdateAlarmRequest struct {
	Label        *string  `json:"label"`
	LocationName *string  `json:"location_name"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters *float64 `json:"radius_meters"`
	Audio        *string  `json:"audio"`
	Active       *bool    `json:"active"`
}

type AlarmResponse struct {
	ID           uuid.UUID `json:"id"`
	Label        string    `json:"label"`
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	RadiusMeters float64   `json:"radius_meters"`
	Audio        string    `json:"audio"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type NearbyAlarmsResponse struct {
	NearbyAlarms []AlarmResponse `json:"nearby_alarms"`
}
