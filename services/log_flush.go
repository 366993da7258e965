package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meetclub_go/database"
	"meetclub_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// LogFlushService moves write-behind activity logs from Redis into the
// database. Request handlers only touch Redis; this service settles the
// queue in the background.
type LogFlushService struct {
	redisClient *redis.Client
}

func NewLogFlushService() *LogFlushService {
	return &LogFlushService{redisClient: database.GetRedisClient()}
}

// FlushCachedLogsToDatabase drains queue entries older than the cutoff.
func (lfs *LogFlushService) FlushCachedLogsToDatabase() error {
	if lfs.redisClient == nil {
		return fmt.Errorf("redis client not available")
	}

	ctx := context.Background()
	cutoffTime := time.Now().Add(-24 * time.Hour)

	expiredLogs, err := lfs.redisClient.ZRangeByScore(ctx, "logs:queue", &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", cutoffTime.Unix()),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get expired logs: %v", err)
	}

	var processedCount int
	var errorCount int

	for _, logKey := range expiredLogs {
		logData, err := lfs.redisClient.Get(ctx, logKey).Result()
		if err != nil {
			if err != redis.Nil {
				logrus.WithError(err).Errorf("Failed to get log data for key: %s", logKey)
				errorCount++
			}
			continue
		}

		var activityLog models.ActivityLog
		if err := json.Unmarshal([]byte(logData), &activityLog); err != nil {
			logrus.WithError(err).Errorf("Failed to unmarshal log data for key: %s", logKey)
			errorCount++
			continue
		}

		if err := database.DB.Create(&activityLog).Error; err != nil {
			logrus.WithError(err).Error("Failed to save log to database")
			errorCount++
			continue
		}

		pipeline := lfs.redisClient.Pipeline()
		pipeline.Del(ctx, logKey)
		pipeline.ZRem(ctx, "logs:queue", logKey)
		if _, err := pipeline.Exec(ctx); err != nil {
			logrus.WithError(err).Errorf("Failed to remove log from cache: %s", logKey)
		}

		processedCount++
	}

	if processedCount > 0 || errorCount > 0 {
		logrus.Infof("Flushed %d logs to database, %d errors", processedCount, errorCount)
	}
	return nil
}

// PruneOldLogs deletes settled logs older than the given number of days.
func (lfs *LogFlushService) PruneOldLogs(daysOld int) error {
	if daysOld < 7 {
		return fmt.Errorf("minimum prune age is 7 days for safety")
	}

	cutoffDate := time.Now().AddDate(0, 0, -daysOld)
	result := database.DB.Where("created_at < ?", cutoffDate).Delete(&models.ActivityLog{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete old logs: %v", result.Error)
	}
	if result.RowsAffected > 0 {
		logrus.Infof("Pruned %d activity logs older than %s", result.RowsAffected, cutoffDate.Format("2006-01-02"))
	}
	return nil
}

// StartLogMaintenanceScheduler starts a background goroutine that flushes and
// prunes logs periodically.
func (lfs *LogFlushService) StartLogMaintenanceScheduler() {
	go func() {
		if err := lfs.FlushCachedLogsToDatabase(); err != nil {
			logrus.WithError(err).Warn("initial FlushCachedLogsToDatabase failed")
		}

		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := lfs.FlushCachedLogsToDatabase(); err != nil {
				logrus.WithError(err).Warn("periodic FlushCachedLogsToDatabase failed")
			}
			if err := lfs.PruneOldLogs(90); err != nil {
				logrus.WithError(err).Warn("periodic PruneOldLogs failed")
			}
		}
	}()
}
