package controllers

import (
	"strconv"
	"time"

	"meetclub_go/models"
	"meetclub_go/services"

	"github.com/gofiber/fiber/v2"
)

// LiveController exposes the dashboard's reconciliation layer: optimistic
// single and batch mutations over the currently viewed session date.
type LiveController struct {
	view  *services.LiveView
	store *services.AttendanceStore
}

func NewLiveController(view *services.LiveView, store *services.AttendanceStore) *LiveController {
	return &LiveController{view: view, store: store}
}

type liveDateRequest struct {
	Date string `json:"date" validate:"required"`
}

// SetDate points the live view at a session date
func (lc *LiveController) SetDate(c *fiber.Ctx) error {
	var req liveDateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date format, expected YYYY-MM-DD"})
	}

	session, err := lc.store.GetSession(date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to look up session"})
	}
	if session == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": services.ErrNoSessionForDate.Error()})
	}

	if err := lc.view.SetDate(date); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load check-ins"})
	}
	return c.JSON(fiber.Map{
		"message":  "Live view updated",
		"date":     req.Date,
		"checkins": lc.view.Records(),
	})
}

// GetCheckins returns the live view's local state
func (lc *LiveController) GetCheckins(c *fiber.Ctx) error {
	checkins := lc.view.Records()
	return c.JSON(fiber.Map{
		"checkins": checkins,
		"total":    len(checkins),
	})
}

type liveMarkRequest struct {
	MemberIDs []uint `json:"member_ids" validate:"required,min=1"`
	Kind      string `json:"kind" validate:"required,oneof=present late early_leave proxy absent"`
	Message   string `json:"message"`
}

// Mark applies an outcome to one or many members through the optimistic
// layer. Single-member requests surface the rollback error directly; batches
// aggregate per-item failures into one summary.
func (lc *LiveController) Mark(c *fiber.Ctx) error {
	var req liveMarkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	for _, memberID := range req.MemberIDs {
		if _, err := lc.store.GetMember(memberID); err != nil {
			if err == services.ErrMemberNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": services.ErrMemberNotFound.Error(),
					"member_id": memberID,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to look up member"})
		}
	}

	kind := models.AttendanceKind(req.Kind)

	if len(req.MemberIDs) == 1 {
		outcome, err := lc.view.MarkAttendance(req.MemberIDs[0], kind, req.Message, nil)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   err.Error(),
				"outcome": outcome,
			})
		}
		return c.JSON(fiber.Map{
			"message": "Check-in saved",
			"outcome": outcome,
		})
	}

	result := lc.view.MarkBatch(req.MemberIDs, kind, nil)
	return c.JSON(fiber.Map{
		"message": result.Summary,
		"result":  result,
	})
}

// Remove deletes a member's check-in through the optimistic layer
func (lc *LiveController) Remove(c *fiber.Ctx) error {
	memberID, err := strconv.ParseUint(c.Params("member_id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid member ID"})
	}

	outcome, err := lc.view.Remove(uint(memberID))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   err.Error(),
			"outcome": outcome,
		})
	}
	return c.JSON(fiber.Map{
		"message": "Check-in removed",
		"outcome": outcome,
	})
}

type liveVisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

// SetVisibility suppresses or resumes the periodic background refresh,
// mirroring the dashboard page's hidden state.
func (lc *LiveController) SetVisibility(c *fiber.Ctx) error {
	var req liveVisibilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	lc.view.SetVisible(*req.Visible)
	return c.JSON(fiber.Map{
		"message": "Visibility updated",
		"visible": *req.Visible,
	})
}
