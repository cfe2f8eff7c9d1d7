package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sleepstop/sleepstop-backend/internal/dto"
	"github.com/sleepstop/sleepstop-backend/internal/geo"
	"github.com/sleepstop/sleepstop-backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrAlarmNotFound    = errors.New("alarm not found")
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrInvalidRadius    = errors.New("radius must be greater than zero")
	ErrLabelRequired    = errors.New("label is required")
)

// AlarmService owns the alarm lifecycle, always scoped to the owning user.
// Ownership is part of every lookup predicate, so another user's alarm is
// indistinguishable from a missing one.
type AlarmService struct {
	db *gorm.DB
}

func NewAlarmService(db *gorm.DB) *AlarmService {
	return &AlarmService{db: db}
}

// List returns all alarms owned by the user, newest first.
func (s *AlarmService) List(userID uuid.UUID) ([]dto.AlarmResponse, error) {
	var alarms []models.Alarm
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&alarms).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch alarms: %w", err)
	}

	resp := make([]dto.AlarmResponse, len(alarms))
	for i := range alarms {
		resp[i] = mapAlarmToResponse(&alarms[i])
	}
	return resp, nil
}

func (s *AlarmService) Create(userID uuid.UUID, req *dto.CreateAlarmRequest) (*dto.AlarmResponse, error) {
	if strings.TrimSpace(req.Label) == "" {
		return nil, ErrLabelRequired
	}
	if !geo.ValidLatitude(req.Latitude) {
		return nil, ErrInvalidLatitude
	}
	if !geo.ValidLongitude(req.Longitude) {
		return nil, ErrInvalidLongitude
	}

	radius := models.DefaultRadiusMeters
	if req.RadiusMeters != nil {
		if *req.RadiusMeters <= 0 {
			return nil, ErrInvalidRadius
		}
		radius = *req.RadiusMeters
	}

	audio := req.Audio
	if audio == "" {
		audio = models.DefaultAudio
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	alarm := models.Alarm{
		ID:           uuid.New(),
		UserID:       userID,
		Label:        req.Label,
		LocationName: req.LocationName,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: radius,
		Audio:        audio,
		Active:       active,
	}

	if err := s.db.Create(&alarm).Error; err != nil {
		return nil, fmt.Errorf("failed to create alarm: %w", err)
	}

	resp := mapAlarmToResponse(&alarm)
	return &resp, nil
}

// Update applies a patch: nil fields stay unchanged. A zero-row update means
// the alarm does not exist for this user.
func (s *AlarmService) Update(userID, alarmID uuid.UUID, req *dto.UpdateAlarmRequest) (*dto.AlarmResponse, error) {
	updates := map[string]interface{}{}

	if req.Label != nil {
		if strings.TrimSpace(*req.Label) == "" {
			return nil, ErrLabelRequired
		}
		updates["label"] = *req.Label
	}
	if req.LocationName != nil {
		updates["location_name"] = *req.LocationName
	}
	if req.Latitude != nil {
		if !geo.ValidLatitude(*req.Latitude) {
			return nil, ErrInvalidLatitude
		}
		updates["latitude"] = *req.Latitude
	}
	if req.Longitude != nil {
		if !geo.ValidLongitude(*req.Longitude) {
			return nil, ErrInvalidLongitude
		}
		updates["longitude"] = *req.Longitude
	}
	if req.RadiusMeters != nil {
		if *req.RadiusMeters <= 0 {
			return nil, ErrInvalidRadius
		}
		updates["radius_meters"] = *req.RadiusMeters
	}
	if req.Audio != nil {
		updates["audio"] = *req.Audio
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) == 0 {
		return s.get(userID, alarmID)
	}

	result := s.db.Model(&models.Alarm{}).
		Where("id = ? AND user_id = ?", alarmID, userID).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update alarm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlarmNotFound
	}

	return s.get(userID, alarmID)
}

func (s *AlarmService) Delete(userID, alarmID uuid.UUID) error {
	result := s.db.Where("id = ? AND user_id = ?", alarmID, userID).Delete(&models.Alarm{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete alarm: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlarmNotFound
	}
	return nil
}

// Nearby returns the user's active alarms whose geofence contains the query
// point. The radius boundary is inclusive. An empty result is a valid
// answer, not an error; only out-of-range coordinates are rejected.
func (s *AlarmService) Nearby(userID uuid.UUID, latitude, longitude float64) ([]dto.AlarmResponse, error) {
	if !geo.ValidLatitude(latitude) {
		return nil, ErrInvalidLatitude
	}
	if !geo.ValidLongitude(longitude) {
		return nil, ErrInvalidLongitude
	}

	var alarms []models.Alarm
	if err := s.db.Where("user_id = ? AND active = ?", userID, true).Find(&alarms).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch alarms: %w", err)
	}

	nearby := make([]dto.AlarmResponse, 0, len(alarms))
	for i := range alarms {
		distance := geo.Distance(latitude, longitude, alarms[i].Latitude, alarms[i].Longitude)
		if distance <= alarms[i].RadiusMeters {
			nearby = append(nearby, mapAlarmToResponse(&alarms[i]))
		}
	}
	return nearby, nil
}

func (s *AlarmService) get(userID, alarmID uuid.UUID) (*dto.AlarmResponse, error) {
	var alarm models.Alarm
	if err := s.db.Where("id = ? AND user_id = ?", alarmID, userID).First(&alarm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlarmNotFound
		}
		return nil, fmt.Errorf("failed to fetch alarm: %w", err)
	}
	resp := mapAlarmToResponse(&alarm)
	return &resp, nil
}

func mapAlarmToResponse(a *models.Alarm) dto.AlarmResponse {
	return dto.AlarmResponse{
		ID:           a.ID,
		Label:        a.Label,
		LocationName: a.LocationName,
		Latitude:     a.Latitude,
		Longitude:    a.Longitude,
		RadiusMeters: a.RadiusMeters,
		Audio:        a.Audio,
		Active:       a.Active,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
