package model

import (
	"errors"

	"github.com/jinzhu/gorm/dialects/postgres"
)

var (
	// ErrNotFound - Requested row does not exist or is soft deleted.
	ErrNotFound = errors.New("not found")
)

// AutomationRulePatch - Partial update for a rule. Nil fields are left
// untouched. Changing either a type or its config revalidates the pair.
type AutomationRulePatch struct {
	Name          *string         `json:"name"`
	IsActive      *bool           `json:"is_active"`
	TriggerType   *string         `json:"trigger_type"`
	TriggerConfig *postgres.Jsonb `json:"trigger_config"`
	ActionType    *string         `json:"action_type"`
	ActionConfig  *postgres.Jsonb `json:"action_config"`
}
