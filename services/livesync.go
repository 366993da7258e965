package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"meetclub_go/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CheckinBackend is the write/read surface the live view reconciles against.
// The attendance store satisfies it; tests substitute fakes that fail or
// throttle on demand.
type CheckinBackend interface {
	UpsertCheckin(ch *models.Checkin) error
	DeleteCheckin(memberID uint, date time.Time) (bool, error)
	ListCheckins(date time.Time) ([]models.Checkin, error)
}

// Mutation outcomes of one optimistic write.
const (
	MutationConfirmed  = "confirmed"
	MutationRolledBack = "rolled_back"
)

// BatchResult aggregates a sequential batch operation. Individual failures
// are collected into one summary instead of failing the whole batch on the
// first error.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
	Summary   string   `json:"summary"`
}

// LiveViewConfig carries the reconciliation timings.
type LiveViewConfig struct {
	RefreshInterval     time.Duration
	DeferredRefreshWait time.Duration
	BatchItemDelay      time.Duration
}

// LiveView is the admin dashboard's mutation layer for one session date:
// apply locally first, write to the backend, roll back on failure, and let a
// deferred background refresh reconcile server-side effects. Every mutation
// gets a per-record sequence number; refresh results that raced an in-flight
// edit are discarded instead of clobbering it.
type LiveView struct {
	backend CheckinBackend
	gate    *PauseGate
	hub     ProgressBroadcaster
	cfg     LiveViewConfig

	mu           sync.Mutex
	date         time.Time
	records      map[uint]models.Checkin
	seq          uint64
	lastMutation map[uint]uint64
	visible      bool

	cron    *cron.Cron
	started bool
}

func NewLiveView(backend CheckinBackend, gate *PauseGate, hub ProgressBroadcaster, cfg LiveViewConfig) *LiveView {
	return &LiveView{
		backend:      backend,
		gate:         gate,
		hub:          hub,
		cfg:          cfg,
		records:      make(map[uint]models.Checkin),
		lastMutation: make(map[uint]uint64),
		visible:      true,
	}
}

// Start schedules the periodic background refresh.
func (lv *LiveView) Start() {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if lv.started {
		return
	}
	lv.cron = cron.New()
	spec := "@every " + lv.cfg.RefreshInterval.String()
	if _, err := lv.cron.AddFunc(spec, lv.periodicRefresh); err != nil {
		logrus.WithError(err).Error("Failed to schedule live view refresh")
		return
	}
	lv.cron.Start()
	lv.started = true
	logrus.WithField("interval", lv.cfg.RefreshInterval.String()).Info("Live view refresh scheduled")
}

// Stop halts the periodic refresh.
func (lv *LiveView) Stop() {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if lv.cron != nil {
		lv.cron.Stop()
	}
	lv.started = false
}

func (lv *LiveView) periodicRefresh() {
	if !lv.Visible() {
		return
	}
	if !lv.gate.Allow() {
		return
	}
	if err := lv.Refresh(); err != nil {
		logrus.WithError(err).Debug("Periodic live view refresh failed")
	}
}

// SetVisible suppresses the periodic refresh while the page is hidden.
func (lv *LiveView) SetVisible(visible bool) {
	lv.mu.Lock()
	lv.visible = visible
	lv.mu.Unlock()
}

func (lv *LiveView) Visible() bool {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	return lv.visible
}

// SetDate points the view at a session date and loads its check-ins.
func (lv *LiveView) SetDate(date time.Time) error {
	date = NormalizeDate(date)
	lv.mu.Lock()
	lv.date = date
	lv.records = make(map[uint]models.Checkin)
	lv.lastMutation = make(map[uint]uint64)
	lv.mu.Unlock()
	return lv.Refresh()
}

// Records returns a snapshot of the current local view.
func (lv *LiveView) Records() []models.Checkin {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	out := make([]models.Checkin, 0, len(lv.records))
	for _, r := range lv.records {
		out = append(out, r)
	}
	return out
}

// MarkAttendance optimistically records an outcome for a member and writes it
// through. On failure the pre-mutation state is restored and the error
// surfaced. Returns the mutation outcome.
func (lv *LiveView) MarkAttendance(memberID uint, kind models.AttendanceKind, message string, checkinTime *time.Time) (string, error) {
	lv.mu.Lock()
	prev, existed := lv.records[memberID]
	lv.seq++
	mutSeq := lv.seq
	lv.lastMutation[memberID] = mutSeq
	record := models.Checkin{
		MemberID:    memberID,
		SessionDate: lv.date,
		Status:      kind.LegacyStatus(),
		Kind:        string(kind),
		Message:     message,
		CheckinTime: checkinTime,
	}
	lv.records[memberID] = record
	lv.mu.Unlock()

	if err := lv.backend.UpsertCheckin(&record); err != nil {
		lv.rollback(memberID, prev, existed)
		lv.noteBackendError(err)
		return MutationRolledBack, err
	}
	lv.gate.ReportSuccess()
	lv.scheduleDeferredRefresh()
	return MutationConfirmed, nil
}

// Remove optimistically deletes a member's check-in. Removing a record the
// backend does not have is fine; optimistic deletes must be repeatable.
func (lv *LiveView) Remove(memberID uint) (string, error) {
	lv.mu.Lock()
	prev, existed := lv.records[memberID]
	lv.seq++
	lv.lastMutation[memberID] = lv.seq
	delete(lv.records, memberID)
	date := lv.date
	lv.mu.Unlock()

	if _, err := lv.backend.DeleteCheckin(memberID, date); err != nil {
		lv.rollback(memberID, prev, existed)
		lv.noteBackendError(err)
		return MutationRolledBack, err
	}
	lv.gate.ReportSuccess()
	lv.scheduleDeferredRefresh()
	return MutationConfirmed, nil
}

// MarkBatch marks many members sequentially with a small inter-item delay to
// avoid bursting the backend. Progress is reported per item; per-item
// failures are aggregated into one summary.
func (lv *LiveView) MarkBatch(memberIDs []uint, kind models.AttendanceKind, onProgress func(ProgressUpdate)) BatchResult {
	var result BatchResult
	total := len(memberIDs)

	for i, memberID := range memberIDs {
		if i > 0 {
			time.Sleep(lv.cfg.BatchItemDelay)
		}
		update := ProgressUpdate{Operation: "mark_" + string(kind), Current: i + 1, Total: total}
		if onProgress != nil {
			onProgress(update)
		}
		if lv.hub != nil {
			lv.hub.BroadcastProgress(update)
		}

		if _, err := lv.MarkAttendance(memberID, kind, "", nil); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("member %d: %v", memberID, err))
			continue
		}
		result.Succeeded++
	}

	if result.Failed > 0 {
		result.Summary = fmt.Sprintf("%d/%d operations failed: %s",
			result.Failed, total, strings.Join(result.Errors, "; "))
	} else {
		result.Summary = fmt.Sprintf("all %d operations succeeded", total)
	}
	return result
}

// Refresh reconciles the local view with server truth. Records mutated after
// the refresh began keep their local state; everything else is overwritten.
func (lv *LiveView) Refresh() error {
	if !lv.gate.Allow() {
		return ErrRateLimited
	}

	lv.mu.Lock()
	date := lv.date
	startSeq := lv.seq
	lv.mu.Unlock()
	if date.IsZero() {
		return nil
	}

	rows, err := lv.backend.ListCheckins(date)
	if err != nil {
		lv.noteBackendError(err)
		return err
	}
	lv.gate.ReportSuccess()

	lv.mu.Lock()
	defer lv.mu.Unlock()
	if !lv.date.Equal(date) {
		// View moved to another date while the fetch was in flight.
		return nil
	}

	fresh := make(map[uint]models.Checkin, len(rows))
	for _, r := range rows {
		fresh[r.MemberID] = r
	}
	for memberID, mutSeq := range lv.lastMutation {
		if mutSeq <= startSeq {
			continue
		}
		// Mutated after this refresh started; the local state is newer.
		if local, ok := lv.records[memberID]; ok {
			fresh[memberID] = local
		} else {
			delete(fresh, memberID)
		}
	}
	lv.records = fresh
	return nil
}

func (lv *LiveView) rollback(memberID uint, prev models.Checkin, existed bool) {
	lv.mu.Lock()
	defer lv.mu.Unlock()
	if existed {
		lv.records[memberID] = prev
	} else {
		delete(lv.records, memberID)
	}
}

func (lv *LiveView) noteBackendError(err error) {
	if errors.Is(err, ErrRateLimited) {
		lv.gate.ReportRateLimit()
	}
}

func (lv *LiveView) scheduleDeferredRefresh() {
	wait := lv.cfg.DeferredRefreshWait
	if wait <= 0 {
		return
	}
	time.AfterFunc(wait, func() {
		if err := lv.Refresh(); err != nil {
			logrus.WithError(err).Debug("Deferred live view refresh failed")
		}
	})
}
