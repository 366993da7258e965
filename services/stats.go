package services

import (
	"sync"
	"time"

	"meetclub_go/models"

	"github.com/sirupsen/logrus"
)

// MemberStats is the derived per-member attendance statistic. It is computed
// on read and never persisted. Late and early-leave check-ins are folded into
// the present bucket; proxy attendances have their own bucket and stay out of
// the rate numerator.
type MemberStats struct {
	MemberID uint    `json:"member_id"`
	Total    int     `json:"total"`
	Present  int     `json:"present"`
	Late     int     `json:"late"`
	Proxy    int     `json:"proxy"`
	Absent   int     `json:"absent"`
	Rate     float64 `json:"rate"`
}

// DateKey formats a date the way check-in maps are keyed.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ClassifyCheckin returns the bucket for one check-in, preferring the
// first-class kind column and falling back to legacy derivation for rows
// written before the column existed.
func ClassifyCheckin(ch models.Checkin) models.AttendanceKind {
	kind := models.AttendanceKind(ch.Kind)
	if kind.Valid() {
		return kind
	}
	return models.DeriveKind(ch.Status, ch.Message)
}

// ComputeMemberStats scans one member's check-ins across a set of completed
// sessions. Total is fixed to the number of sessions in scope, not the
// member's own check-in count; a missing record classifies as absent. Pure
// and re-runnable: both the live dashboard and range-filtered views call it.
func ComputeMemberStats(memberID uint, completed []models.Session, checkinsByDate map[string]map[uint]models.Checkin) MemberStats {
	stats := MemberStats{MemberID: memberID, Total: len(completed)}

	for _, session := range completed {
		key := DateKey(session.Date)
		ch, ok := checkinsByDate[key][memberID]
		if !ok {
			stats.Absent++
			continue
		}
		switch ClassifyCheckin(ch) {
		case models.KindLate:
			stats.Late++
			stats.Present++
		case models.KindEarlyLeave:
			stats.Present++
		case models.KindProxy:
			stats.Proxy++
		case models.KindAbsent:
			stats.Absent++
		default:
			stats.Present++
		}
	}

	if stats.Total > 0 {
		stats.Rate = float64(stats.Present) / float64(stats.Total) * 100
	}
	return stats
}

// checkinLister is the read surface the stats service needs from the store.
type checkinLister interface {
	ListCheckins(date time.Time) ([]models.Checkin, error)
}

// StatsService assembles the inputs of ComputeMemberStats from the store.
type StatsService struct {
	store        *AttendanceStore
	lister       checkinLister
	fetchStagger time.Duration
}

func NewStatsService(store *AttendanceStore) *StatsService {
	return &StatsService{store: store, lister: store, fetchStagger: 20 * time.Millisecond}
}

// GetMemberStats computes the statistic for one member over all completed
// sessions, optionally restricted to a date range.
func (ss *StatsService) GetMemberStats(memberID uint, start, end *time.Time) (MemberStats, error) {
	if _, err := ss.store.GetMember(memberID); err != nil {
		return MemberStats{}, err
	}
	completed, err := ss.store.CompletedSessions(start, end)
	if err != nil {
		return MemberStats{}, err
	}
	checkinsByDate := ss.fetchCheckins(completed)
	return ComputeMemberStats(memberID, completed, checkinsByDate), nil
}

// fetchCheckins loads the check-in sets for the given sessions concurrently,
// staggering fetch starts to respect provider rate limits. A failed read
// degrades to an empty result for that date rather than aborting the page.
func (ss *StatsService) fetchCheckins(sessions []models.Session) map[string]map[uint]models.Checkin {
	out := make(map[string]map[uint]models.Checkin, len(sessions))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i, session := range sessions {
		wg.Add(1)
		go func(date time.Time, delay time.Duration) {
			defer wg.Done()
			time.Sleep(delay)
			checkins, err := ss.lister.ListCheckins(date)
			if err != nil {
				logrus.WithError(err).WithField("date", DateKey(date)).
					Warn("Check-in fetch failed, treating date as empty")
				return
			}
			byMember := make(map[uint]models.Checkin, len(checkins))
			for _, ch := range checkins {
				byMember[ch.MemberID] = ch
			}
			mu.Lock()
			out[DateKey(date)] = byMember
			mu.Unlock()
		}(session.Date, time.Duration(i)*ss.fetchStagger)
	}

	wg.Wait()
	return out
}
