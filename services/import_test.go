package services

import (
	"strings"
	"testing"
	"time"

	"meetclub_go/models"
)

func kinds(ks ...models.AttendanceKind) []models.AttendanceKind { return ks }

func TestAllocateOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		row   SummaryRow
		slots int
		want  []models.AttendanceKind
	}{
		{
			name: "strict priority order",
			row: SummaryRow{
				TotalMeetings: 5,
				PresentCount:  2, LateCount: 1, ProxyCount: 1, AbsentCount: 1,
			},
			slots: 5,
			want:  kinds(models.KindAbsent, models.KindLate, models.KindProxy, models.KindPresent, models.KindPresent),
		},
		{
			name: "pre-join slots padded absent without spending budget",
			row: SummaryRow{
				TotalMeetings: 4,
				PresentCount:  2, LateCount: 1, AbsentCount: 1,
			},
			slots: 6,
			want: kinds(models.KindAbsent, models.KindLate, models.KindPresent, models.KindPresent,
				models.KindAbsent, models.KindAbsent),
		},
		{
			name: "under-summing counters pad remaining slots absent",
			row: SummaryRow{
				TotalMeetings: 4,
				PresentCount:  2,
			},
			slots: 4,
			want:  kinds(models.KindPresent, models.KindPresent, models.KindAbsent, models.KindAbsent),
		},
		{
			name:  "zero counters",
			row:   SummaryRow{TotalMeetings: 2},
			slots: 2,
			want:  kinds(models.KindAbsent, models.KindAbsent),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllocateOutcomes(tt.row, tt.slots)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d slots, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("slot %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAllocateOutcomesPreservesCounts(t *testing.T) {
	row := SummaryRow{
		TotalMeetings: 10,
		PresentCount:  4, LateCount: 2, ProxyCount: 1, AbsentCount: 3,
	}
	got := AllocateOutcomes(row, 10)

	counts := map[models.AttendanceKind]int{}
	for _, k := range got {
		counts[k]++
	}
	if counts[models.KindPresent] != 4 || counts[models.KindLate] != 2 ||
		counts[models.KindProxy] != 1 || counts[models.KindAbsent] != 3 {
		t.Fatalf("aggregate counts drifted: %v", counts)
	}
}

func TestMeetingDatesInRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	dates := MeetingDatesInRange(start, end, time.Thursday)

	wantDays := []int{4, 11, 18, 25}
	if len(dates) != len(wantDays) {
		t.Fatalf("got %d dates, want %d", len(dates), len(wantDays))
	}
	for i, d := range dates {
		if d.Day() != wantDays[i] || d.Weekday() != time.Thursday {
			t.Errorf("date %d = %s, want Thursday Jan %d", i, d.Format("2006-01-02"), wantDays[i])
		}
	}

	// Boundary dates on the meeting weekday are included.
	thu := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if got := MeetingDatesInRange(thu, thu, time.Thursday); len(got) != 1 {
		t.Fatalf("single-day window on weekday yielded %d dates", len(got))
	}
}

func TestParseSummaryRows(t *testing.T) {
	rows := [][]string{
		{"memberId", "name", "totalMeetings", "presentCount", "lateCount", "proxyCount", "absentCount"},
		{"1", "Tanaka", "10", "8", "1", "0", "1"},
		{"abc", "BadID", "10", "8", "1", "0", "1"},
		{"3", "", "10", "8", "1", "0", "1"},
		{"4", "Suzuki", "x", "-2", "1", "0", "1"},
		{"5", "Short"},
	}

	parsed, dropped := ParseSummaryRows(rows)
	if len(parsed) != 2 {
		t.Fatalf("got %d parsed rows, want 2", len(parsed))
	}
	if dropped != 3 {
		t.Fatalf("got %d dropped rows, want 3", dropped)
	}
	if parsed[0].MemberID != 1 || parsed[0].Name != "Tanaka" || parsed[0].PresentCount != 8 {
		t.Errorf("first row parsed wrong: %+v", parsed[0])
	}
	// Non-numeric and negative counters clamp to zero rather than dropping the row.
	if parsed[1].MemberID != 4 || parsed[1].TotalMeetings != 0 || parsed[1].PresentCount != 0 {
		t.Errorf("counter clamping wrong: %+v", parsed[1])
	}
}

func TestReadSummaryCSV(t *testing.T) {
	csvText := "memberId,name,totalMeetings,presentCount,lateCount,proxyCount,absentCount\n" +
		"1,Tanaka,10,8,1,0,1\n" +
		"2,Suzuki,10,7,0,1,2\n"

	rows, err := ReadSummaryCSV(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("ReadSummaryCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	parsed, dropped := ParseSummaryRows(rows)
	if dropped != 0 || len(parsed) != 2 {
		t.Fatalf("parsed=%d dropped=%d", len(parsed), dropped)
	}
}

func TestBuildImportPlan(t *testing.T) {
	calendar := MeetingDatesInRange(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Thursday) // 4 Thursdays

	rows := []SummaryRow{
		{MemberID: 1, Name: "Tanaka", TotalMeetings: 4, PresentCount: 3, AbsentCount: 1},
		{MemberID: 2, Name: "Suzuki", TotalMeetings: 2, PresentCount: 2},
	}

	plan := BuildImportPlan(rows, calendar)

	if len(plan.Sessions) != 4 {
		t.Fatalf("got %d sessions, want 4", len(plan.Sessions))
	}
	for _, s := range plan.Sessions {
		if s.Status != models.SessionCompleted {
			t.Errorf("session %s status %q, want completed", s.Date.Format("2006-01-02"), s.Status)
		}
	}
	// One check-in per member per canonical date.
	if len(plan.Checkins) != 8 {
		t.Fatalf("got %d checkins, want 8", len(plan.Checkins))
	}
	if len(plan.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", plan.Warnings)
	}

	// Suzuki joined later: slots beyond their totalMeetings are absent.
	suzukiAbsent := 0
	for _, ch := range plan.Checkins {
		if ch.MemberID == 2 && ch.Kind == string(models.KindAbsent) {
			suzukiAbsent++
		}
	}
	if suzukiAbsent != 2 {
		t.Errorf("got %d padded absences for member 2, want 2", suzukiAbsent)
	}
}

func TestBuildImportPlanWarnings(t *testing.T) {
	calendar := []time.Time{
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
	}

	rows := []SummaryRow{
		// More meetings than the window has slots for.
		{MemberID: 1, Name: "Tanaka", TotalMeetings: 5, PresentCount: 5},
		// Counters that do not sum to totalMeetings.
		{MemberID: 2, Name: "Suzuki", TotalMeetings: 2, PresentCount: 1},
	}

	plan := BuildImportPlan(rows, calendar)

	if len(plan.Sessions) != 2 {
		t.Fatalf("got %d sessions, want calendar-capped 2", len(plan.Sessions))
	}
	if len(plan.Warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(plan.Warnings), plan.Warnings)
	}
	if !strings.Contains(plan.Warnings[0], "no calendar slot") {
		t.Errorf("missing calendar warning: %q", plan.Warnings[0])
	}
	if !strings.Contains(plan.Warnings[1], "counters sum to 1") {
		t.Errorf("missing counter warning: %q", plan.Warnings[1])
	}
}

func TestBuildImportPlanDeterministic(t *testing.T) {
	calendar := MeetingDatesInRange(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Thursday)
	rows := []SummaryRow{
		{MemberID: 7, Name: "Sato", TotalMeetings: 4, PresentCount: 2, LateCount: 1, AbsentCount: 1},
	}

	first := BuildImportPlan(rows, calendar)
	second := BuildImportPlan(rows, calendar)

	if len(first.Checkins) != len(second.Checkins) {
		t.Fatalf("plan sizes differ: %d vs %d", len(first.Checkins), len(second.Checkins))
	}
	for i := range first.Checkins {
		a, b := first.Checkins[i], second.Checkins[i]
		if a.MemberID != b.MemberID || !a.SessionDate.Equal(b.SessionDate) || a.Kind != b.Kind {
			t.Fatalf("plan not deterministic at row %d: %+v vs %+v", i, a, b)
		}
	}
}
