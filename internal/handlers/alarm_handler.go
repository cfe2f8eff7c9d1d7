package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sleepstop/sleepstop-backend/internal/dto"
	"github.com/sleepstop/sleepstop-backend/internal/middleware"
	"github.com/sleepstop/sleepstop-backend/internal/services"
)

type AlarmHandler struct {
	alarmService *services.AlarmService
}

func NewAlarmHandler(alarmService *services.AlarmService) *AlarmHandler {
	return &AlarmHandler{alarmService: alarmService}
}

func (h *AlarmHandler) ListAlarms(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	alarms, err := h.alarmService.List(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to fetch alarms"})
	}

	return c.JSON(alarms)
}

func (h *AlarmHandler) CreateAlarm(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	var req dto.CreateAlarmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid request body"})
	}

	alarm, err := h.alarmService.Create(userID, &req)
	if err != nil {
		if isAlarmValidationErr(err) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to create alarm"})
	}

	return c.Status(fiber.StatusCreated).JSON(alarm)
}

func (h *AlarmHandler) UpdateAlarm(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	alarmID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid alarm ID"})
	}

	var req dto.UpdateAlarmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid request body"})
	}

	alarm, err := h.alarmService.Update(userID, alarmID, &req)
	if err != nil {
		if errors.Is(err, services.ErrAlarmNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		if isAlarmValidationErr(err) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to update alarm"})
	}

	return c.JSON(alarm)
}

func (h *AlarmHandler) DeleteAlarm(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	alarmID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid alarm ID"})
	}

	if err := h.alarmService.Delete(userID, alarmID); err != nil {
		if errors.Is(err, services.ErrAlarmNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to delete alarm"})
	}

	return c.JSON(fiber.Map{"message": "Alarm deleted successfully"})
}

// CheckAlarms answers "which active alarms contain my current location".
func (h *AlarmHandler) CheckAlarms(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: "Unauthorized"})
	}

	latStr := c.Query("latitude")
	lngStr := c.Query("longitude")
	if latStr == "" || lngStr == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Latitude and longitude are required"})
	}

	latitude, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid latitude"})
	}
	longitude, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: "Invalid longitude"})
	}

	nearby, err := h.alarmService.Nearby(userID, latitude, longitude)
	if err != nil {
		if isAlarmValidationErr(err) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Failed to check alarms"})
	}

	return c.JSON(dto.NearbyAlarmsResponse{NearbyAlarms: nearby})
}

func isAlarmValidationErr(err error) bool {
	return errors.Is(err, services.ErrInvalidLatitude) ||
		errors.Is(err, services.ErrInvalidLongitude) ||
		errors.Is(err, services.ErrInvalidRadius) ||
		errors.Is(err, services.ErrLabelRequired)
}
