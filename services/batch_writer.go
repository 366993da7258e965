package services

import (
	"fmt"
	"time"

	"meetclub_go/models"

	"github.com/sirupsen/logrus"
)

// PlanWriter is the write surface the batch writer chunks over. The
// attendance store is the real implementation; tests substitute fakes.
type PlanWriter interface {
	UpsertSessions(sessions []models.Session) (int, error)
	UpsertCheckins(checkins []models.Checkin) (int, error)
}

// BatchWriteResult reports what a plan write achieved. A failing chunk is an
// entry in Errors, never an abort: re-running the whole import over one bad
// chunk would waste everything that succeeded.
type BatchWriteResult struct {
	SessionsWritten int
	CheckinsWritten int
	Errors          []string
}

// BatchWriter persists an import plan in chunks to stay under payload and
// throughput limits of the store.
type BatchWriter struct {
	writer     PlanWriter
	chunkSize  int
	hub        ProgressBroadcaster
	invalidate func(dates []time.Time)
}

func NewBatchWriter(store *AttendanceStore, chunkSize int, hub ProgressBroadcaster) *BatchWriter {
	return &BatchWriter{
		writer:     store,
		chunkSize:  chunkSize,
		hub:        hub,
		invalidate: store.InvalidateAfterBulkWrite,
	}
}

// NewBatchWriterWith wires explicit collaborators. Used by tests.
func NewBatchWriterWith(writer PlanWriter, chunkSize int, hub ProgressBroadcaster, invalidate func(dates []time.Time)) *BatchWriter {
	return &BatchWriter{writer: writer, chunkSize: chunkSize, hub: hub, invalidate: invalidate}
}

// ChunkCheckins splits rows into chunks of at most size each.
func ChunkCheckins(rows []models.Checkin, size int) [][]models.Checkin {
	if size <= 0 {
		size = 500
	}
	var chunks [][]models.Checkin
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// WritePlan upserts the plan's sessions, then its check-ins chunk by chunk.
// Each chunk is independent: a failure is recorded and the remaining chunks
// still commit. Read caches for every affected date are invalidated before
// returning so subsequent reads are not stale.
func (bw *BatchWriter) WritePlan(jobID string, plan ImportPlan) BatchWriteResult {
	var result BatchWriteResult

	written, err := bw.writer.UpsertSessions(plan.Sessions)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("sessions: %v", err))
	}
	result.SessionsWritten = written

	chunks := ChunkCheckins(plan.Checkins, bw.chunkSize)
	for i, chunk := range chunks {
		written, err := bw.writer.UpsertCheckins(chunk)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("chunk %d/%d: %v", i+1, len(chunks), err))
		} else {
			result.CheckinsWritten += written
		}
		bw.broadcast(jobID, i+1, len(chunks))
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   jobID,
		"sessions": result.SessionsWritten,
		"checkins": result.CheckinsWritten,
		"chunks":   len(chunks),
		"errors":   len(result.Errors),
	}).Info("Batch write finished")

	if bw.invalidate != nil {
		bw.invalidate(affectedDates(plan))
	}
	return result
}

func (bw *BatchWriter) broadcast(jobID string, current, total int) {
	if bw.hub == nil {
		return
	}
	bw.hub.BroadcastProgress(ProgressUpdate{
		JobID:     jobID,
		Operation: "import",
		Current:   current,
		Total:     total,
	})
}

func affectedDates(plan ImportPlan) []time.Time {
	seen := make(map[string]struct{})
	var dates []time.Time
	for _, s := range plan.Sessions {
		key := DateKey(s.Date)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, s.Date)
	}
	for _, ch := range plan.Checkins {
		key := DateKey(ch.SessionDate)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, ch.SessionDate)
	}
	return dates
}
