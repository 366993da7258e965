package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meetclub_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	sessionListCacheKey = "sessions:list"
	checkinCachePrefix  = "checkins:"
	cacheTTL            = 5 * time.Minute
)

// AttendanceCache is the read cache for the session list and per-date
// check-ins. All write paths invalidate through InvalidateDates so stale
// entries cannot outlive a write. A nil Redis client disables caching.
type AttendanceCache struct {
	redisClient *redis.Client
}

func NewAttendanceCache(redisClient *redis.Client) *AttendanceCache {
	return &AttendanceCache{redisClient: redisClient}
}

func checkinCacheKey(date time.Time) string {
	return checkinCachePrefix + date.Format("2006-01-02")
}

// GetSessions returns the cached session list, or false on miss.
func (ac *AttendanceCache) GetSessions(ctx context.Context) ([]models.Session, bool) {
	if ac == nil || ac.redisClient == nil {
		return nil, false
	}
	raw, err := ac.redisClient.Get(ctx, sessionListCacheKey).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).Warn("Failed to read session list cache")
		}
		return nil, false
	}
	var sessions []models.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		logrus.WithError(err).Warn("Corrupt session list cache entry, dropping")
		ac.redisClient.Del(ctx, sessionListCacheKey)
		return nil, false
	}
	return sessions, true
}

func (ac *AttendanceCache) SetSessions(ctx context.Context, sessions []models.Session) {
	if ac == nil || ac.redisClient == nil {
		return
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		return
	}
	if err := ac.redisClient.Set(ctx, sessionListCacheKey, data, cacheTTL).Err(); err != nil {
		logrus.WithError(err).Warn("Failed to cache session list")
	}
}

// GetCheckins returns the cached check-ins for one session date, or false on miss.
func (ac *AttendanceCache) GetCheckins(ctx context.Context, date time.Time) ([]models.Checkin, bool) {
	if ac == nil || ac.redisClient == nil {
		return nil, false
	}
	raw, err := ac.redisClient.Get(ctx, checkinCacheKey(date)).Result()
	if err != nil {
		if err != redis.Nil {
			logrus.WithError(err).Warn("Failed to read check-in cache")
		}
		return nil, false
	}
	var checkins []models.Checkin
	if err := json.Unmarshal([]byte(raw), &checkins); err != nil {
		logrus.WithError(err).Warn("Corrupt check-in cache entry, dropping")
		ac.redisClient.Del(ctx, checkinCacheKey(date))
		return nil, false
	}
	return checkins, true
}

func (ac *AttendanceCache) SetCheckins(ctx context.Context, date time.Time, checkins []models.Checkin) {
	if ac == nil || ac.redisClient == nil {
		return
	}
	data, err := json.Marshal(checkins)
	if err != nil {
		return
	}
	if err := ac.redisClient.Set(ctx, checkinCacheKey(date), data, cacheTTL).Err(); err != nil {
		logrus.WithError(err).Warn("Failed to cache check-ins")
	}
}

// InvalidateDates is the single write-path hook: it drops exactly the keys a
// write can affect, the touched dates plus the session list.
func (ac *AttendanceCache) InvalidateDates(ctx context.Context, dates ...time.Time) {
	if ac == nil || ac.redisClient == nil {
		return
	}
	keys := make([]string, 0, len(dates)+1)
	keys = append(keys, sessionListCacheKey)
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		key := checkinCacheKey(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := ac.redisClient.Del(ctx, keys...).Err(); err != nil {
		logrus.WithError(err).WithField("keys", len(keys)).Warn("Cache invalidation failed")
	}
}

// InvalidateAll drops every check-in entry and the session list. Used after
// bulk imports where enumerating dates is cheaper done by pattern.
func (ac *AttendanceCache) InvalidateAll(ctx context.Context) {
	if ac == nil || ac.redisClient == nil {
		return
	}
	iter := ac.redisClient.Scan(ctx, 0, checkinCachePrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logrus.WithError(err).Warn("Cache scan failed during full invalidation")
	}
	keys = append(keys, sessionListCacheKey)
	if err := ac.redisClient.Del(ctx, keys...).Err(); err != nil {
		logrus.WithError(err).Warn("Full cache invalidation failed")
	}
}

// cacheStats is exposed on the health endpoint for visibility.
func (ac *AttendanceCache) Stats(ctx context.Context) map[string]interface{} {
	if ac == nil || ac.redisClient == nil {
		return map[string]interface{}{"enabled": false}
	}
	size, err := ac.redisClient.DBSize(ctx).Result()
	if err != nil {
		return map[string]interface{}{"enabled": true, "error": fmt.Sprintf("%v", err)}
	}
	return map[string]interface{}{"enabled": true, "keys": size}
}
