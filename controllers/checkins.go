package controllers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"meetclub_go/middleware"
	"meetclub_go/models"
	"meetclub_go/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type CheckinController struct {
	store *services.AttendanceStore
}

func NewCheckinController(store *services.AttendanceStore) *CheckinController {
	return &CheckinController{store: store}
}

type checkinRequest struct {
	MemberID    uint   `json:"member_id" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Kind        string `json:"kind" validate:"omitempty,oneof=present late early_leave proxy absent"`
	Status      string `json:"status" validate:"omitempty,oneof=present early late early_leave absent"`
	Message     string `json:"message"`
	CheckinTime string `json:"checkin_time"`
}

// CreateOrUpdate upserts a member's check-in for a session date. The session
// must already exist; this endpoint never creates one as a side effect.
func (cc *CheckinController) CreateOrUpdate(c *fiber.Ctx) error {
	var req checkinRequest
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

	if _, err := cc.store.GetMember(req.MemberID); err != nil {
		if err == services.ErrMemberNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up member",
		})
	}

	session, err := cc.store.GetSession(date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to look up session",
		})
	}
	if session == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": services.ErrNoSessionForDate.Error(),
		})
	}

	// Legacy clients may still send the proxy marker inside the message;
	// normalize it into the first-class kind before storing.
	message, marked := models.StripProxyMarker(req.Message)
	kind := models.AttendanceKind(req.Kind)
	if !kind.Valid() {
		kind = models.DeriveKind(req.Status, req.Message)
	} else if marked {
		kind = models.KindProxy
	}

	checkin := models.Checkin{
		MemberID:    req.MemberID,
		SessionDate: date,
		Status:      kind.LegacyStatus(),
		Kind:        string(kind),
		Message:     message,
	}
	if req.CheckinTime != "" {
		if t, terr := time.Parse(time.RFC3339, req.CheckinTime); terr == nil {
			checkin.CheckinTime = &t
		}
	}
	if checkin.CheckinTime == nil && kind != models.KindAbsent {
		now := time.Now()
		checkin.CheckinTime = &now
	}

	if err := cc.store.UpsertCheckin(&checkin); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save check-in",
		})
	}

	middleware.LogActivity(c, "CREATE", "checkins", checkin.MemberID, checkin)

	return c.JSON(fiber.Map{
		"message": "Check-in saved",
		"checkin": checkin,
	})
}

// Delete removes a member's check-in for a date. A missing record is not an
// error: optimistic UI deletes must be safe to repeat, so the response just
// says deleted=false.
func (cc *CheckinController) Delete(c *fiber.Ctx) error {
	memberID, err := strconv.ParseUint(c.Params("member_id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid member ID",
		})
	}
	date, err := time.Parse(dateLayout, c.Params("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date format, expected YYYY-MM-DD",
		})
	}

	deleted, err := cc.store.DeleteCheckin(uint(memberID), date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete check-in",
		})
	}

	if deleted {
		middleware.LogActivity(c, "DELETE", "checkins", uint(memberID), nil)
	}

	message := "Check-in deleted"
	if !deleted {
		message = "Nothing to delete"
	}
	return c.JSON(fiber.Map{
		"message": message,
		"deleted": deleted,
	})
}

// ListByDate returns all check-ins for a session date
func (cc *CheckinController) ListByDate(c *fiber.Ctx) error {
	date, err := time.Parse(dateLayout, c.Params("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date format, expected YYYY-MM-DD",
		})
	}

	checkins, err := cc.store.ListCheckins(date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch check-ins",
		})
	}

	return c.JSON(fiber.Map{
		"date":     date.Format(dateLayout),
		"checkins": checkins,
		"total":    len(checkins),
	})
}

// ExportLegacyCSV streams the check-ins of one date in the legacy dialect:
// proxy attendance goes back to status=present with the message marker.
func (cc *CheckinController) ExportLegacyCSV(c *fiber.Ctx) error {
	date, err := time.Parse(dateLayout, c.Params("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid date format, expected YYYY-MM-DD",
		})
	}

	checkins, err := cc.store.ListCheckins(date)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch check-ins",
		})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"memberId", "date", "status", "checkinTime", "message"})
	for _, ch := range checkins {
		kind := services.ClassifyCheckin(ch)
		checkinTime := ""
		if ch.CheckinTime != nil {
			checkinTime = ch.CheckinTime.Format(time.RFC3339)
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(ch.MemberID), 10),
			ch.SessionDate.Format(dateLayout),
			kind.LegacyStatus(),
			checkinTime,
			models.EncodeLegacyMessage(kind, ch.Message),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to write CSV",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="checkins_%s.csv"`, date.Format(dateLayout)))
	return c.Send(buf.Bytes())
}
