package controllers

import (
	"strconv"
	"time"

	"meetclub_go/database"
	"meetclub_go/middleware"
	"meetclub_go/models"
	"meetclub_go/services"

	"github.com/gofiber/fiber/v2"
)

type SessionController struct {
	store *services.AttendanceStore
}

func NewSessionController(store *services.AttendanceStore) *SessionController {
	return &SessionController{store: store}
}

const dateLayout = "2006-01-02"

// GetSessions returns all sessions ordered by date
func (sc *SessionController) GetSessions(c *fiber.Ctx) error {
	sessions, err := sc.store.ListSessions()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	return c.JSON(fiber.Map{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

type createSessionRequest struct {
	Date   string `json:"date" validate:"required"`
	Status string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
}

// CreateSession schedules a session for a date. Unlike the import path this
// is not an upsert: scheduling a date twice is a caller mistake.
func (sc *SessionController) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date format, expected YYYY-MM-DD",
		})
	}

	existing, err := sc.store.GetSession(date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check existing sessions",
		})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": services.ErrDuplicateSessionDate.Error(),
		})
	}

	status := req.Status
	if status == "" {
		status = models.SessionScheduled
	}

	session, err := sc.store.UpsertSession(date, status)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	middleware.LogActivity(c, "CREATE", "sessions", session.ID, session)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Session created successfully",
		"session": session,
	})
}

type updateSessionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled completed cancelled"`
}

// UpdateSessionStatus moves a session through its lifecycle
func (sc *SessionController) UpdateSessionStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid session ID",
		})
	}

	var req updateSessionStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var session models.Session
	if err := database.DB.First(&session, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}

	if _, err := sc.store.UpsertSession(session.Date, req.Status); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update session status",
		})
	}

	middleware.LogActivity(c, "UPDATE", "sessions", session.ID, req)

	session.Status = req.Status
	return c.JSON(fiber.Map{
		"message": "Session status updated",
		"session": session,
	})
}
