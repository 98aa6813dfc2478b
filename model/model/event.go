package model

import (
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"

	U "crmhub/util"
)

// Payload keys shared between ingestion and matching.
const (
	PayloadFrom     = "from"
	PayloadTo       = "to"
	PayloadTagName  = "tag_name"
	PayloadIdleDays = "idle_days"
)

// Event - Canonical record of something that happened to a CRM entity.
// Immutable once created; the unit of matching and deduplication.
type Event struct {
	ID         string          `gorm:"column:id; primary_key:true" json:"id"`
	Type       string          `gorm:"column:type; not null" json:"type"`
	EntityID   string          `gorm:"column:entity_id; not null" json:"entity_id"`
	Payload    *postgres.Jsonb `gorm:"column:payload" json:"payload"`
	OccurredAt time.Time       `gorm:"column:occurred_at" json:"occurred_at"`
}

func (Event) TableName() string {
	return "events"
}

func (event *Event) PayloadMap() (map[string]interface{}, error) {
	return U.ConvertPostgresJSONBToMap(event.Payload)
}

func IsValidEventType(eventType string) bool {
	return U.ContainsStringInArray(TriggerTypes, eventType)
}

// EntityActivity - Last activity timestamp per CRM entity, maintained by
// ingestion and read by the idle trigger scanner.
type EntityActivity struct {
	EntityID       string    `gorm:"column:entity_id; primary_key:true" json:"entity_id"`
	LastActivityAt time.Time `gorm:"column:last_activity_at; not null" json:"last_activity_at"`
}

func (EntityActivity) TableName() string {
	return "entity_activity"
}
