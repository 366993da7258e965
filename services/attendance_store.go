package services

import (
	"context"
	"time"

	"meetclub_go/database"
	"meetclub_go/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceStore owns persistence for sessions and check-ins. All writes are
// idempotent upserts on the natural key: sessions.date for sessions,
// (member_id, session_date) for check-ins.
type AttendanceStore struct {
	db    *gorm.DB
	cache *AttendanceCache
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{
		db:    database.DB,
		cache: NewAttendanceCache(database.GetRedisClient()),
	}
}

func NewAttendanceStoreWith(db *gorm.DB, cache *AttendanceCache) *AttendanceStore {
	return &AttendanceStore{db: db, cache: cache}
}

func (s *AttendanceStore) Cache() *AttendanceCache { return s.cache }

// NormalizeDate truncates a timestamp to its calendar date in UTC so that
// natural-key comparisons ignore the time of day.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UpsertSession creates or updates the session for a date.
func (s *AttendanceStore) UpsertSession(date time.Time, status string) (models.Session, error) {
	session := models.Session{Date: NormalizeDate(date), Status: status}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&session).Error
	if err != nil {
		return models.Session{}, err
	}
	s.cache.InvalidateDates(context.Background(), session.Date)
	return session, nil
}

// UpsertSessions bulk-upserts sessions. Used by the batch writer.
func (s *AttendanceStore) UpsertSessions(sessions []models.Session) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}
	for i := range sessions {
		sessions[i].Date = NormalizeDate(sessions[i].Date)
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&sessions).Error
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// GetSession returns the session for a date, if any.
func (s *AttendanceStore) GetSession(date time.Time) (*models.Session, error) {
	var session models.Session
	err := s.db.Where("date = ?", NormalizeDate(date)).First(&session).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListSessions returns all sessions ordered by date, through the read cache.
func (s *AttendanceStore) ListSessions() ([]models.Session, error) {
	ctx := context.Background()
	if cached, ok := s.cache.GetSessions(ctx); ok {
		return cached, nil
	}
	var sessions []models.Session
	if err := s.db.Order("date ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	s.cache.SetSessions(ctx, sessions)
	return sessions, nil
}

// CompletedSessions returns completed sessions, optionally bounded to a range.
func (s *AttendanceStore) CompletedSessions(start, end *time.Time) ([]models.Session, error) {
	q := s.db.Where("status = ?", models.SessionCompleted)
	if start != nil {
		q = q.Where("date >= ?", NormalizeDate(*start))
	}
	if end != nil {
		q = q.Where("date <= ?", NormalizeDate(*end))
	}
	var sessions []models.Session
	if err := q.Order("date ASC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpsertCheckin creates or updates a member's check-in for a session date.
func (s *AttendanceStore) UpsertCheckin(ch *models.Checkin) error {
	ch.SessionDate = NormalizeDate(ch.SessionDate)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "session_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"checkin_time", "status", "kind", "message", "updated_at"}),
	}).Create(ch).Error
	if err != nil {
		return err
	}
	s.cache.InvalidateDates(context.Background(), ch.SessionDate)
	return nil
}

// UpsertCheckins bulk-upserts check-ins. Cache invalidation is the batch
// writer's responsibility so one import invalidates once, not per chunk row.
func (s *AttendanceStore) UpsertCheckins(checkins []models.Checkin) (int, error) {
	if len(checkins) == 0 {
		return 0, nil
	}
	for i := range checkins {
		checkins[i].SessionDate = NormalizeDate(checkins[i].SessionDate)
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "session_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"checkin_time", "status", "kind", "message", "updated_at"}),
	}).Create(&checkins).Error
	if err != nil {
		return 0, err
	}
	return len(checkins), nil
}

// DeleteCheckin removes a member's check-in for a date. Deleting a missing
// record is not an error: concurrent optimistic deletes must be safe to
// repeat, so the caller gets deleted=false instead of a failure.
func (s *AttendanceStore) DeleteCheckin(memberID uint, date time.Time) (bool, error) {
	date = NormalizeDate(date)
	res := s.db.Unscoped().
		Where("member_id = ? AND session_date = ?", memberID, date).
		Delete(&models.Checkin{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.cache.InvalidateDates(context.Background(), date)
	return true, nil
}

// ListCheckins returns all check-ins for a session date, through the read cache.
func (s *AttendanceStore) ListCheckins(date time.Time) ([]models.Checkin, error) {
	date = NormalizeDate(date)
	ctx := context.Background()
	if cached, ok := s.cache.GetCheckins(ctx, date); ok {
		return cached, nil
	}
	var checkins []models.Checkin
	if err := s.db.Where("session_date = ?", date).Order("member_id ASC").Find(&checkins).Error; err != nil {
		return nil, err
	}
	s.cache.SetCheckins(ctx, date, checkins)
	return checkins, nil
}

// GetMember returns the member or ErrMemberNotFound.
func (s *AttendanceStore) GetMember(id uint) (*models.Member, error) {
	var member models.Member
	err := s.db.First(&member, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// InvalidateAfterBulkWrite drops cache entries for the given dates plus the
// session list. Called by the batch writer before it returns.
func (s *AttendanceStore) InvalidateAfterBulkWrite(dates []time.Time) {
	s.cache.InvalidateDates(context.Background(), dates...)
}
