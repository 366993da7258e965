package services

import (
	"math"
	"testing"
	"time"

	"meetclub_go/models"
)

func sessionsOn(days ...int) []models.Session {
	out := make([]models.Session, len(days))
	for i, d := range days {
		out[i] = models.Session{
			Date:   time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
			Status: models.SessionCompleted,
		}
	}
	return out
}

func checkinOn(day int, memberID uint, kind models.AttendanceKind) models.Checkin {
	return models.Checkin{
		MemberID:    memberID,
		SessionDate: time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Status:      kind.LegacyStatus(),
		Kind:        string(kind),
	}
}

func indexCheckins(checkins ...models.Checkin) map[string]map[uint]models.Checkin {
	out := make(map[string]map[uint]models.Checkin)
	for _, ch := range checkins {
		key := DateKey(ch.SessionDate)
		if out[key] == nil {
			out[key] = make(map[uint]models.Checkin)
		}
		out[key][ch.MemberID] = ch
	}
	return out
}

func TestComputeMemberStats(t *testing.T) {
	sessions := sessionsOn(4, 11, 18, 25)

	tests := []struct {
		name     string
		checkins []models.Checkin
		want     MemberStats
	}{
		{
			name: "late and early leave fold into present",
			checkins: []models.Checkin{
				checkinOn(4, 1, models.KindPresent),
				checkinOn(11, 1, models.KindLate),
				checkinOn(18, 1, models.KindEarlyLeave),
				checkinOn(25, 1, models.KindAbsent),
			},
			want: MemberStats{MemberID: 1, Total: 4, Present: 3, Late: 1, Absent: 1, Rate: 75},
		},
		{
			name: "proxy stays out of the rate",
			checkins: []models.Checkin{
				checkinOn(4, 1, models.KindPresent),
				checkinOn(11, 1, models.KindProxy),
				checkinOn(18, 1, models.KindProxy),
				checkinOn(25, 1, models.KindPresent),
			},
			want: MemberStats{MemberID: 1, Total: 4, Present: 2, Proxy: 2, Rate: 50},
		},
		{
			name: "missing records classify as absent",
			checkins: []models.Checkin{
				checkinOn(4, 1, models.KindPresent),
			},
			want: MemberStats{MemberID: 1, Total: 4, Present: 1, Absent: 3, Rate: 25},
		},
		{
			name:     "no checkins at all",
			checkins: nil,
			want:     MemberStats{MemberID: 1, Total: 4, Absent: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeMemberStats(1, sessions, indexCheckins(tt.checkins...))
			if got != tt.want {
				t.Errorf("ComputeMemberStats = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeMemberStatsLegacyRows(t *testing.T) {
	sessions := sessionsOn(4, 11)

	// Rows written before the kind column existed carry only status+message.
	legacyProxy := models.Checkin{
		MemberID:    1,
		SessionDate: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		Status:      models.StatusPresent,
		Message:     models.ProxyMarker + " by Sato",
	}
	legacyLate := models.Checkin{
		MemberID:    1,
		SessionDate: time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
		Status:      models.StatusLate,
	}

	got := ComputeMemberStats(1, sessions, indexCheckins(legacyProxy, legacyLate))
	want := MemberStats{MemberID: 1, Total: 2, Present: 1, Late: 1, Proxy: 1, Rate: 50}
	if got != want {
		t.Errorf("ComputeMemberStats = %+v, want %+v", got, want)
	}
}

func TestComputeMemberStatsIgnoresOtherMembers(t *testing.T) {
	sessions := sessionsOn(4)
	checkins := indexCheckins(
		checkinOn(4, 1, models.KindPresent),
		checkinOn(4, 2, models.KindProxy),
	)

	got := ComputeMemberStats(2, sessions, checkins)
	if got.Proxy != 1 || got.Present != 0 {
		t.Errorf("member 2 stats polluted by member 1: %+v", got)
	}
}

func TestComputeMemberStatsRatePrecision(t *testing.T) {
	sessions := sessionsOn(4, 11, 18)
	checkins := indexCheckins(
		checkinOn(4, 1, models.KindPresent),
	)

	got := ComputeMemberStats(1, sessions, checkins)
	if math.Abs(got.Rate-100.0/3.0) > 1e-9 {
		t.Errorf("Rate = %v, want 1/3 of 100", got.Rate)
	}
}
