package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"meetclub_go/models"
)

type fakePlanWriter struct {
	sessionCalls int
	chunkSizes   []int
	failOnChunk  int // 1-based; 0 disables
	sessionErr   error
}

func (f *fakePlanWriter) UpsertSessions(sessions []models.Session) (int, error) {
	f.sessionCalls++
	if f.sessionErr != nil {
		return 0, f.sessionErr
	}
	return len(sessions), nil
}

func (f *fakePlanWriter) UpsertCheckins(checkins []models.Checkin) (int, error) {
	f.chunkSizes = append(f.chunkSizes, len(checkins))
	if f.failOnChunk == len(f.chunkSizes) {
		return 0, errors.New("deadlock detected")
	}
	return len(checkins), nil
}

func makeCheckins(n int) []models.Checkin {
	base := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	out := make([]models.Checkin, n)
	for i := range out {
		out[i] = models.Checkin{
			MemberID:    uint(i%40 + 1),
			SessionDate: base.AddDate(0, 0, (i/40)*7),
			Kind:        string(models.KindPresent),
		}
	}
	return out
}

func TestChunkCheckins(t *testing.T) {
	tests := []struct {
		name       string
		rows       int
		size       int
		wantChunks []int
	}{
		{"even split", 1000, 500, []int{500, 500}},
		{"remainder chunk", 1200, 500, []int{500, 500, 200}},
		{"single partial", 42, 500, []int{42}},
		{"zero size falls back to default", 501, 0, []int{500, 1}},
		{"empty input", 0, 500, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := ChunkCheckins(makeCheckins(tt.rows), tt.size)
			if len(chunks) != len(tt.wantChunks) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.wantChunks))
			}
			for i, c := range chunks {
				if len(c) != tt.wantChunks[i] {
					t.Errorf("chunk %d has %d rows, want %d", i, len(c), tt.wantChunks[i])
				}
			}
		})
	}
}

func TestWritePlanFailingChunkDoesNotAbort(t *testing.T) {
	writer := &fakePlanWriter{failOnChunk: 2}
	var invalidated []time.Time
	bw := NewBatchWriterWith(writer, 500, nil, func(dates []time.Time) {
		invalidated = dates
	})

	plan := ImportPlan{
		Sessions: []models.Session{
			{Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Status: models.SessionCompleted},
		},
		Checkins: makeCheckins(1200),
	}

	result := bw.WritePlan("job-1", plan)

	if len(writer.chunkSizes) != 3 {
		t.Fatalf("wrote %d chunks, want 3", len(writer.chunkSizes))
	}
	if result.CheckinsWritten != 700 {
		t.Errorf("CheckinsWritten = %d, want 700 (500 + 200 around the failed chunk)", result.CheckinsWritten)
	}
	if result.SessionsWritten != 1 {
		t.Errorf("SessionsWritten = %d, want 1", result.SessionsWritten)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "chunk 2/3") {
		t.Errorf("Errors = %v, want one entry naming chunk 2/3", result.Errors)
	}
	if len(invalidated) == 0 {
		t.Error("cache invalidation hook never ran")
	}
}

func TestWritePlanSessionErrorRecorded(t *testing.T) {
	writer := &fakePlanWriter{sessionErr: errors.New("connection reset")}
	bw := NewBatchWriterWith(writer, 500, nil, nil)

	plan := ImportPlan{
		Sessions: []models.Session{{Date: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)}},
		Checkins: makeCheckins(10),
	}
	result := bw.WritePlan("job-2", plan)

	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "sessions:") {
		t.Fatalf("Errors = %v, want session error entry", result.Errors)
	}
	// Check-ins still get their chance even when the session write failed.
	if result.CheckinsWritten != 10 {
		t.Errorf("CheckinsWritten = %d, want 10", result.CheckinsWritten)
	}
}

func TestAffectedDatesDeduplicated(t *testing.T) {
	date := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	plan := ImportPlan{
		Sessions: []models.Session{{Date: date}},
		Checkins: []models.Checkin{
			{MemberID: 1, SessionDate: date},
			{MemberID: 2, SessionDate: date},
			{MemberID: 1, SessionDate: date.AddDate(0, 0, 7)},
		},
	}

	dates := affectedDates(plan)
	if len(dates) != 2 {
		t.Fatalf("got %d dates, want 2 unique", len(dates))
	}
}
