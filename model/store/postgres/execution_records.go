package postgres

import (
	"time"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	"crmhub/model/model"
)

func (store *Postgres) InsertPendingExecution(ruleID, eventID string) (*model.ExecutionRecord, bool, error) {
	logFields := log.Fields{"rule_id": ruleID, "event_id": eventID}

	record := model.ExecutionRecord{
		RuleID:    ruleID,
		EventID:   eventID,
		Status:    model.ExecutionStatusPending,
		Attempts:  0,
		StartedAt: gorm.NowFunc(),
	}

	if err := db().Create(&record).Error; err != nil {
		// The (rule_id, event_id) primary key rejected the insert. This is
		// the at-most-once guard: hand back the stored record unchanged.
		var existing model.ExecutionRecord
		getErr := db().Where("rule_id = ? AND event_id = ?", ruleID, eventID).
			First(&existing).Error
		if getErr == nil {
			return &existing, false, nil
		}
		log.WithFields(logFields).WithError(err).Error(
			"Failed to insert pending execution record.")
		return nil, false, err
	}
	return &record, true, nil
}

func (store *Postgres) UpdateExecution(record *model.ExecutionRecord) error {
	err := db().Model(&model.ExecutionRecord{}).
		Where("rule_id = ? AND event_id = ?", record.RuleID, record.EventID).
		Update(map[string]interface{}{
			"status":      record.Status,
			"attempts":    record.Attempts,
			"last_error":  record.LastError,
			"finished_at": record.FinishedAt,
		}).Error
	if err != nil {
		log.WithFields(log.Fields{"rule_id": record.RuleID,
			"event_id": record.EventID}).WithError(err).Error(
			"Failed to update execution record.")
	}
	return err
}

func (store *Postgres) ExecutionExists(ruleID, eventID string) (bool, error) {
	var count int64
	err := db().Model(&model.ExecutionRecord{}).
		Where("rule_id = ? AND event_id = ?", ruleID, eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (store *Postgres) ExecutionStatsSince(since time.Time) (*model.ExecutionStats, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	rows := make([]statusCount, 0)

	err := db().Model(&model.ExecutionRecord{}).
		Select("status, count(*) as count").
		Where("started_at >= ?", since).
		Group("status").Scan(&rows).Error
	if err != nil {
		log.WithError(err).Error("Failed to query execution stats.")
		return nil, err
	}

	stats := &model.ExecutionStats{ByStatus: make(map[string]int64)}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Count += row.Count
	}
	return stats, nil
}
