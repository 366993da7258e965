package controllers

import (
	"fmt"
	"strconv"
	"time"

	"meetclub_go/database"
	"meetclub_go/models"
	"meetclub_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

type StatisticsController struct {
	stats *services.StatsService
}

func NewStatisticsController(stats *services.StatsService) *StatisticsController {
	return &StatisticsController{stats: stats}
}

func parseRange(c *fiber.Ctx) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start_date, expected YYYY-MM-DD")
		}
		start = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end_date, expected YYYY-MM-DD")
		}
		end = &t
	}
	return start, end, nil
}

// GetMemberStats returns one member's derived attendance statistic, optionally
// restricted to a date range.
func (stc *StatisticsController) GetMemberStats(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid member ID",
		})
	}

	start, end, err := parseRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	stats, err := stc.stats.GetMemberStats(uint(id), start, end)
	if err != nil {
		if err == services.ErrMemberNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute statistics",
		})
	}

	return c.JSON(fiber.Map{
		"statistics": stats,
	})
}

// ExportStatistics streams the whole group's statistics as an XLSX workbook
// in the shape of the legacy summary export.
func (stc *StatisticsController) ExportStatistics(c *fiber.Ctx) error {
	start, end, err := parseRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var members []models.Member
	if err := database.DB.Order("id ASC").Find(&members).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch members",
		})
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"memberId", "name", "profession", "totalMeetings", "presentCount", "lateCount", "proxyCount", "absentCount", "rate"}
	for col, val := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, val)
	}

	for row, member := range members {
		stats, err := stc.stats.GetMemberStats(member.ID, start, end)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": fmt.Sprintf("Failed to compute statistics for member %d", member.ID),
			})
		}
		values := []interface{}{
			member.ID, member.Name, member.Profession,
			stats.Total, stats.Present, stats.Late, stats.Proxy, stats.Absent,
			fmt.Sprintf("%.1f", stats.Rate),
		}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, val)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build workbook",
		})
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="attendance_statistics.xlsx"`)
	return c.Send(buf.Bytes())
}
