package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"meetclub_go/database"
	"meetclub_go/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// SummaryRow is one member's aggregate counts from the legacy export.
type SummaryRow struct {
	MemberID      uint
	Name          string
	TotalMeetings int
	PresentCount  int
	LateCount     int
	ProxyCount    int
	AbsentCount   int
}

// ImportReport is what the caller gets back from a bulk reconciliation run.
// Partial-batch failures land in Errors; the run itself still succeeds.
type ImportReport struct {
	JobID            string   `json:"job_id"`
	SessionsCreated  int      `json:"sessions_created"`
	CheckinsCreated  int      `json:"checkins_created"`
	MembersProcessed int      `json:"members_processed"`
	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
}

// ReadSummaryCSV reads the raw row grid from a CSV stream.
func ReadSummaryCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// ReadSummaryXLSX reads the raw row grid from the first sheet of an XLSX file.
func ReadSummaryXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

// ParseSummaryRows turns the raw grid into summary rows. The first row is a
// header and skipped. Rows with a non-numeric id or empty name are dropped
// silently; data quality is best-effort, not fatal. Returns the number of
// dropped rows alongside the parsed ones.
func ParseSummaryRows(rows [][]string) ([]SummaryRow, int) {
	var parsed []SummaryRow
	dropped := 0
	for i, r := range rows {
		if i == 0 {
			continue
		}
		row, ok := parseSummaryRow(r)
		if !ok {
			dropped++
			continue
		}
		parsed = append(parsed, row)
	}
	return parsed, dropped
}

func parseSummaryRow(fields []string) (SummaryRow, bool) {
	if len(fields) < 7 {
		return SummaryRow{}, false
	}
	get := func(idx int) string { return strings.TrimSpace(fields[idx]) }

	id, err := strconv.ParseUint(get(0), 10, 32)
	if err != nil {
		return SummaryRow{}, false
	}
	name := get(1)
	if name == "" {
		return SummaryRow{}, false
	}
	num := func(idx int) int {
		n, err := strconv.Atoi(get(idx))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}
	return SummaryRow{
		MemberID:      uint(id),
		Name:          name,
		TotalMeetings: num(2),
		PresentCount:  num(3),
		LateCount:     num(4),
		ProxyCount:    num(5),
		AbsentCount:   num(6),
	}, true
}

// MeetingDatesInRange returns every date in [start, end] falling on the
// group's meeting weekday, ascending.
func MeetingDatesInRange(start, end time.Time, weekday time.Weekday) []time.Time {
	var dates []time.Time
	current := NormalizeDate(start)
	end = NormalizeDate(end)
	for current.Before(end) || current.Equal(end) {
		if current.Weekday() == weekday {
			dates = append(dates, current)
		}
		current = current.AddDate(0, 0, 1)
	}
	return dates
}

// AllocateOutcomes assigns one attendance kind per canonical session slot for
// a member, consuming the row's counters in strict priority order:
// absent > late > proxy > present. Slots at or beyond the member's own
// totalMeetings pad history from before they joined and are forced absent
// without consuming budget. The mapping of kinds to real dates is a
// deterministic approximation, not a historical reconstruction; only the
// aggregate counts are guaranteed to match the row.
func AllocateOutcomes(row SummaryRow, slots int) []models.AttendanceKind {
	budgets := []struct {
		kind      models.AttendanceKind
		remaining int
	}{
		{models.KindAbsent, row.AbsentCount},
		{models.KindLate, row.LateCount},
		{models.KindProxy, row.ProxyCount},
		{models.KindPresent, row.PresentCount},
	}

	out := make([]models.AttendanceKind, slots)
	for i := 0; i < slots; i++ {
		if i >= row.TotalMeetings {
			out[i] = models.KindAbsent
			continue
		}
		assigned := false
		for b := range budgets {
			if budgets[b].remaining > 0 {
				out[i] = budgets[b].kind
				budgets[b].remaining--
				assigned = true
				break
			}
		}
		if !assigned {
			// Counters under-sum totalMeetings; pad the slot as absent.
			out[i] = models.KindAbsent
		}
	}
	return out
}

// counterSum is the sum of the four outcome counters of a row.
func (r SummaryRow) counterSum() int {
	return r.PresentCount + r.LateCount + r.ProxyCount + r.AbsentCount
}

// ImportPlan is the materialized output of a reconciliation run before it is
// handed to the batch writer.
type ImportPlan struct {
	Sessions []models.Session
	Checkins []models.Checkin
	Warnings []string
}

// BuildImportPlan derives the canonical session calendar and synthesizes one
// check-in per (member, canonical date). All canonical sessions are marked
// completed; imported history is settled history.
func BuildImportPlan(rows []SummaryRow, calendar []time.Time) ImportPlan {
	var plan ImportPlan

	maxTotal := 0
	for _, row := range rows {
		if row.TotalMeetings > maxTotal {
			maxTotal = row.TotalMeetings
		}
	}
	if maxTotal > len(calendar) {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf(
			"date window yields %d sessions but the largest totalMeetings is %d; extra meetings have no calendar slot",
			len(calendar), maxTotal))
		maxTotal = len(calendar)
	}
	canonical := calendar[:maxTotal]

	for _, date := range canonical {
		plan.Sessions = append(plan.Sessions, models.Session{Date: date, Status: models.SessionCompleted})
	}

	for _, row := range rows {
		if sum := row.counterSum(); sum != row.TotalMeetings {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf(
				"member %d (%s): counters sum to %d but totalMeetings is %d; allocation truncates to the slot count",
				row.MemberID, row.Name, sum, row.TotalMeetings))
		}
		kinds := AllocateOutcomes(row, len(canonical))
		for i, kind := range kinds {
			plan.Checkins = append(plan.Checkins, models.Checkin{
				MemberID:    row.MemberID,
				SessionDate: canonical[i],
				Status:      kind.LegacyStatus(),
				Kind:        string(kind),
			})
		}
	}
	return plan
}

// Importer orchestrates a bulk reconciliation run: parse, plan, batch write,
// persist the job record, archive the report.
type Importer struct {
	store   *AttendanceStore
	writer  *BatchWriter
	archive *ReportArchiveService
	weekday time.Weekday
}

func NewImporter(store *AttendanceStore, writer *BatchWriter, archive *ReportArchiveService, weekday time.Weekday) *Importer {
	return &Importer{store: store, writer: writer, archive: archive, weekday: weekday}
}

// Import reconciles a legacy summary grid into per-session check-in rows for
// the given date window. Row-level problems and chunk failures are reported,
// never fatal; re-running over the same inputs is idempotent.
func (im *Importer) Import(rows [][]string, startDate, endDate time.Time) (*ImportReport, error) {
	report := &ImportReport{JobID: uuid.New().String()}

	job := models.ImportJob{
		JobID:     report.JobID,
		StartDate: NormalizeDate(startDate),
		EndDate:   NormalizeDate(endDate),
		Status:    "running",
	}
	if err := database.DB.Create(&job).Error; err != nil {
		return nil, err
	}

	parsed, dropped := ParseSummaryRows(rows)
	if dropped > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d malformed rows dropped", dropped))
	}
	report.MembersProcessed = len(parsed)

	if len(parsed) > 0 {
		calendar := MeetingDatesInRange(startDate, endDate, im.weekday)
		plan := BuildImportPlan(parsed, calendar)
		report.Warnings = append(report.Warnings, plan.Warnings...)

		result := im.writer.WritePlan(report.JobID, plan)
		report.SessionsCreated = result.SessionsWritten
		report.CheckinsCreated = result.CheckinsWritten
		report.Errors = append(report.Errors, result.Errors...)
	}

	im.finishJob(&job, report)
	return report, nil
}

func (im *Importer) finishJob(job *models.ImportJob, report *ImportReport) {
	job.SessionsCreated = report.SessionsCreated
	job.CheckinsCreated = report.CheckinsCreated
	job.MembersProcessed = report.MembersProcessed
	job.ErrorCount = len(report.Errors)
	job.WarningCount = len(report.Warnings)
	job.Status = "completed"
	if len(report.Errors) > 0 || len(report.Warnings) > 0 {
		job.Status = "completed_with_warnings"
	}
	now := time.Now()
	job.FinishedAt = &now
	if data, err := json.Marshal(report); err == nil {
		job.Report = data
	}

	if im.archive != nil {
		if key, err := im.archive.UploadReport(report); err != nil {
			logrus.WithError(err).WithField("job_id", report.JobID).
				Warn("Failed to archive import report")
		} else {
			job.ReportS3Key = key
		}
	}

	if err := database.DB.Save(job).Error; err != nil {
		logrus.WithError(err).WithField("job_id", report.JobID).
			Error("Failed to persist import job record")
	}
}
