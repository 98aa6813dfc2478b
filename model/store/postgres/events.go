package postgres

import (
	"time"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	"crmhub/model/model"
)

func (store *Postgres) CreateEvent(event *model.Event) (*model.Event, error) {
	logFields := log.Fields{"event_id": event.ID, "entity_id": event.EntityID}

	if err := db().Create(event).Error; err != nil {
		// Events are immutable and keyed by ID; a replay of the same ID
		// resolves to the stored row.
		var existing model.Event
		getErr := db().Where("id = ?", event.ID).First(&existing).Error
		if getErr == nil {
			return &existing, nil
		}
		log.WithFields(logFields).WithError(err).Error("Failed to create event.")
		return nil, err
	}
	return event, nil
}

func (store *Postgres) TouchEntityActivity(entityID string, at time.Time) error {
	logFields := log.Fields{"entity_id": entityID}

	// Touches only move the timestamp forward, so the update is a no-op
	// for stale or out-of-order occurrences.
	update := db().Model(&model.EntityActivity{}).
		Where("entity_id = ? AND last_activity_at < ?", entityID, at).
		Update("last_activity_at", at)
	if update.Error != nil {
		log.WithFields(logFields).WithError(update.Error).Error(
			"Failed to update entity activity.")
		return update.Error
	}
	if update.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db().Model(&model.EntityActivity{}).
		Where("entity_id = ?", entityID).Count(&count).Error; err != nil {
		log.WithFields(logFields).WithError(err).Error(
			"Failed to check entity activity.")
		return err
	}
	if count > 0 {
		// Row exists with an equal or newer timestamp.
		return nil
	}

	activity := model.EntityActivity{EntityID: entityID, LastActivityAt: at}
	if err := db().Create(&activity).Error; err != nil {
		// The primary key rejects a concurrent first touch; anything else
		// is a real failure and must surface.
		var exists int64
		if countErr := db().Model(&model.EntityActivity{}).
			Where("entity_id = ?", entityID).Count(&exists).Error; countErr != nil || exists == 0 {
			log.WithFields(logFields).WithError(err).Error(
				"Failed to create entity activity.")
			return err
		}

		retry := db().Model(&model.EntityActivity{}).
			Where("entity_id = ? AND last_activity_at < ?", entityID, at).
			Update("last_activity_at", at)
		if retry.Error != nil {
			log.WithFields(logFields).WithError(retry.Error).Error(
				"Failed to update entity activity after insert race.")
			return retry.Error
		}
	}
	return nil
}

func (store *Postgres) ListEntitiesIdleSince(cutoff time.Time) ([]model.EntityActivity, error) {
	activities := make([]model.EntityActivity, 0)
	err := db().Where("last_activity_at <= ?", cutoff).
		Order("last_activity_at").Find(&activities).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		log.WithError(err).Error("Failed to list idle entities.")
		return nil, err
	}
	return activities, nil
}
