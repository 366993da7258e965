package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"meetclub_go/models"
)

type fakeBackend struct {
	mu        sync.Mutex
	rows      map[uint]models.Checkin
	upsertErr map[uint]error
	deleteErr error
	listErr   error
	onList    func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rows:      make(map[uint]models.Checkin),
		upsertErr: make(map[uint]error),
	}
}

func (f *fakeBackend) UpsertCheckin(ch *models.Checkin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[ch.MemberID]; err != nil {
		return err
	}
	f.rows[ch.MemberID] = *ch
	return nil
}

func (f *fakeBackend) DeleteCheckin(memberID uint, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	_, existed := f.rows[memberID]
	delete(f.rows, memberID)
	return existed, nil
}

func (f *fakeBackend) ListCheckins(date time.Time) ([]models.Checkin, error) {
	f.mu.Lock()
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	snapshot := make([]models.Checkin, 0, len(f.rows))
	for _, ch := range f.rows {
		snapshot = append(snapshot, ch)
	}
	f.mu.Unlock()

	// Simulates mutations racing an in-flight fetch: the hook runs after the
	// snapshot is taken, so its effects are not in the returned rows.
	if f.onList != nil {
		hook := f.onList
		f.onList = nil
		hook()
	}
	return snapshot, nil
}

func newTestLiveView(backend CheckinBackend) *LiveView {
	gate := NewPauseGate(time.Minute, 3)
	return NewLiveView(backend, gate, nil, LiveViewConfig{
		RefreshInterval: time.Minute,
	})
}

func recordFor(t *testing.T, lv *LiveView, memberID uint) (models.Checkin, bool) {
	t.Helper()
	for _, r := range lv.Records() {
		if r.MemberID == memberID {
			return r, true
		}
	}
	return models.Checkin{}, false
}

func TestMarkAttendanceConfirmed(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	date := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	if err := lv.SetDate(date); err != nil {
		t.Fatalf("SetDate: %v", err)
	}

	outcome, err := lv.MarkAttendance(1, models.KindLate, "overslept", nil)
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if outcome != MutationConfirmed {
		t.Errorf("outcome = %q, want confirmed", outcome)
	}

	record, ok := recordFor(t, lv, 1)
	if !ok {
		t.Fatal("record missing from local view")
	}
	if record.Kind != string(models.KindLate) || record.Status != models.StatusLate {
		t.Errorf("record = %+v", record)
	}
	if !record.SessionDate.Equal(date) {
		t.Errorf("record date = %s, want %s", record.SessionDate, date)
	}
	if _, ok := backend.rows[1]; !ok {
		t.Error("backend never received the write")
	}
}

func TestMarkAttendanceRollsBackOnFailure(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	date := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	// Seed an existing record, then make the next write fail.
	backend.rows[1] = models.Checkin{MemberID: 1, SessionDate: date, Kind: string(models.KindPresent), Status: models.StatusPresent}
	if err := lv.SetDate(date); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	backend.upsertErr[1] = errors.New("backend down")

	outcome, err := lv.MarkAttendance(1, models.KindAbsent, "", nil)
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	if outcome != MutationRolledBack {
		t.Errorf("outcome = %q, want rolled_back", outcome)
	}

	record, ok := recordFor(t, lv, 1)
	if !ok {
		t.Fatal("rollback dropped the pre-mutation record")
	}
	if record.Kind != string(models.KindPresent) {
		t.Errorf("record kind = %q, want restored present", record.Kind)
	}
}

func TestMarkAttendanceRollbackRemovesNewRecord(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	if err := lv.SetDate(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	backend.upsertErr[5] = errors.New("backend down")

	if _, err := lv.MarkAttendance(5, models.KindPresent, "", nil); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := recordFor(t, lv, 5); ok {
		t.Error("failed optimistic insert should leave no local record")
	}
}

func TestRefreshKeepsMutationsThatRacedTheFetch(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	date := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	backend.rows[1] = models.Checkin{MemberID: 1, SessionDate: date, Kind: string(models.KindPresent), Status: models.StatusPresent}
	backend.rows[2] = models.Checkin{MemberID: 2, SessionDate: date, Kind: string(models.KindPresent), Status: models.StatusPresent}
	if err := lv.SetDate(date); err != nil {
		t.Fatalf("SetDate: %v", err)
	}

	// While the next refresh is fetching, member 1 flips to absent and member 2
	// is removed. The fetch snapshot predates both edits.
	backend.onList = func() {
		if _, err := lv.MarkAttendance(1, models.KindAbsent, "", nil); err != nil {
			t.Errorf("MarkAttendance during refresh: %v", err)
		}
		if _, err := lv.Remove(2); err != nil {
			t.Errorf("Remove during refresh: %v", err)
		}
	}

	if err := lv.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	record, ok := recordFor(t, lv, 1)
	if !ok || record.Kind != string(models.KindAbsent) {
		t.Errorf("stale refresh clobbered the newer edit: %+v (found=%v)", record, ok)
	}
	if _, ok := recordFor(t, lv, 2); ok {
		t.Error("stale refresh resurrected a deleted record")
	}
}

func TestRemoveIsRepeatable(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	date := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	backend.rows[1] = models.Checkin{MemberID: 1, SessionDate: date, Kind: string(models.KindPresent)}
	if err := lv.SetDate(date); err != nil {
		t.Fatalf("SetDate: %v", err)
	}

	for i := 0; i < 2; i++ {
		outcome, err := lv.Remove(1)
		if err != nil {
			t.Fatalf("Remove attempt %d: %v", i+1, err)
		}
		if outcome != MutationConfirmed {
			t.Errorf("Remove attempt %d outcome = %q", i+1, outcome)
		}
	}
	if _, ok := recordFor(t, lv, 1); ok {
		t.Error("record still present after remove")
	}
}

func TestMarkBatchAggregatesFailures(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	if err := lv.SetDate(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	backend.upsertErr[2] = errors.New("boom")

	var progress []ProgressUpdate
	result := lv.MarkBatch([]uint{1, 2, 3}, models.KindPresent, func(u ProgressUpdate) {
		progress = append(progress, u)
	})

	if result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Summary, "1/3 operations failed") {
		t.Errorf("Summary = %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "member 2") {
		t.Errorf("Summary does not name the failing member: %q", result.Summary)
	}

	if len(progress) != 3 {
		t.Fatalf("got %d progress updates, want 3", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Current != 3 || last.Total != 3 || last.Operation != "mark_present" {
		t.Errorf("last progress update = %+v", last)
	}
}

func TestMarkBatchAllSucceed(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	if err := lv.SetDate(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetDate: %v", err)
	}

	result := lv.MarkBatch([]uint{1, 2, 3, 4}, models.KindAbsent, nil)
	if result.Failed != 0 || result.Succeeded != 4 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Summary, "all 4 operations succeeded") {
		t.Errorf("Summary = %q", result.Summary)
	}
	if got := len(lv.Records()); got != 4 {
		t.Errorf("local view has %d records, want 4", got)
	}
}

func TestRateLimitedBackendPausesRefreshes(t *testing.T) {
	backend := newFakeBackend()
	lv := newTestLiveView(backend)
	if err := lv.SetDate(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("SetDate: %v", err)
	}

	backend.upsertErr[1] = ErrRateLimited
	if _, err := lv.MarkAttendance(1, models.KindPresent, "", nil); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}

	// The shared gate is now closed, so refreshes short-circuit.
	if err := lv.Refresh(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Refresh err = %v, want rate limited while paused", err)
	}
	if lv.gate.Allow() {
		t.Error("gate should be paused after a throttled write")
	}
}
