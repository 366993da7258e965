package controllers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meetclub_go/database"
	"meetclub_go/middleware"
	"meetclub_go/models"
	"meetclub_go/services"
	"meetclub_go/utils"

	"github.com/gofiber/fiber/v2"
)

// AttendanceImportController handles the legacy summary import.
// Expected columns: memberId,name,totalMeetings,presentCount,lateCount,proxyCount,absentCount
type AttendanceImportController struct {
	importer *services.Importer
}

func NewAttendanceImportController(importer *services.Importer) *AttendanceImportController {
	return &AttendanceImportController{importer: importer}
}

type importTextRequest struct {
	CSVText   string `json:"csv_text"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Import runs a bulk reconciliation over a date window.
// POST /api/import/attendance-summary
// Multipart form with file field `file` (csv or xlsx) plus start_date/end_date,
// or a JSON body with csv_text.
func (ic *AttendanceImportController) Import(c *fiber.Ctx) error {
	var rows [][]string
	startRaw := c.FormValue("start_date", c.Query("start_date"))
	endRaw := c.FormValue("end_date", c.Query("end_date"))

	if fileHeader, err := c.FormFile("file"); err == nil {
		if !utils.IsValidFileExtension(fileHeader.Filename, []string{"csv", "xlsx", "xls"}) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type (csv, xlsx)"})
		}
		filename := strings.ToLower(fileHeader.Filename)
		switch {
		case strings.HasSuffix(filename, ".csv"):
			file, err := fileHeader.Open()
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open file"})
			}
			defer file.Close()
			rows, err = services.ReadSummaryCSV(file)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
		default:
			// Buffer to the OS temp folder for excelize to open
			tmpDir, _ := os.MkdirTemp("", "mcxls-")
			tmp := filepath.Join(tmpDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(fileHeader.Filename)))
			if err := c.SaveFile(fileHeader, tmp); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to buffer upload"})
			}
			rows, err = services.ReadSummaryXLSX(tmp)
			_ = os.Remove(tmp)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
		}
	} else {
		var req importTextRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.CSVText) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file or csv_text is required"})
		}
		parsed, err := services.ReadSummaryCSV(strings.NewReader(req.CSVText))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		rows = parsed
		if startRaw == "" {
			startRaw = req.StartDate
		}
		if endRaw == "" {
			endRaw = req.EndDate
		}
	}

	if len(rows) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}

	startDate, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start_date, expected YYYY-MM-DD"})
	}
	endDate, err := time.Parse(dateLayout, endRaw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end_date, expected YYYY-MM-DD"})
	}
	if endDate.Before(startDate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date is before start_date"})
	}

	report, err := ic.importer.Import(rows, startDate, endDate)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "CREATE", "imports", 0, report)

	return c.JSON(fiber.Map{
		"success":           true,
		"job_id":            report.JobID,
		"sessions_created":  report.SessionsCreated,
		"checkins_created":  report.CheckinsCreated,
		"members_processed": report.MembersProcessed,
		"errors_count":      len(report.Errors),
		"has_errors":        len(report.Errors) > 0,
		"errors":            report.Errors,
		"warnings":          report.Warnings,
	})
}

// GetJob returns a past import run's counters and report.
// GET /api/import/jobs/:id
func (ic *AttendanceImportController) GetJob(c *fiber.Ctx) error {
	jobID := c.Params("id")

	var job models.ImportJob
	if err := database.DB.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Import job not found",
		})
	}

	return c.JSON(fiber.Map{
		"job": job,
	})
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
