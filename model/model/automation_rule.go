package model

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm/dialects/postgres"

	U "crmhub/util"
)

// Trigger types.
const (
	TriggerStatusChange  = "status_change"
	TriggerTagAdded      = "tag_added"
	TriggerTimeBased     = "time_based"
	TriggerEntityCreated = "entity_created"
)

// Action types.
const (
	ActionSendEmail    = "send_email"
	ActionAssignUser   = "assign_user"
	ActionAddTag       = "add_tag"
	ActionCreateTask   = "create_task"
	ActionNotification = "notification"
)

var TriggerTypes = []string{TriggerStatusChange, TriggerTagAdded,
	TriggerTimeBased, TriggerEntityCreated}

var ActionTypes = []string{ActionSendEmail, ActionAssignUser, ActionAddTag,
	ActionCreateTask, ActionNotification}

// AutomationRule - Flat IF/THEN rule: one trigger, one action. The config
// payloads are tagged by TriggerType/ActionType and validated on write,
// never at match time.
type AutomationRule struct {
	ID            string          `gorm:"column:id; primary_key:true; type:uuid" json:"id"`
	Name          string          `gorm:"column:name; not null" json:"name"`
	IsActive      bool            `gorm:"column:is_active; not null; default:true" json:"is_active"`
	TriggerType   string          `gorm:"column:trigger_type; not null" json:"trigger_type"`
	TriggerConfig *postgres.Jsonb `gorm:"column:trigger_config" json:"trigger_config"`
	ActionType    string          `gorm:"column:action_type; not null" json:"action_type"`
	ActionConfig  *postgres.Jsonb `gorm:"column:action_config" json:"action_config"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
	IsDeleted     bool            `gorm:"column:is_deleted; not null; default:false" json:"-"`
}

func (AutomationRule) TableName() string {
	return "automation_rules"
}

// Trigger config payloads, one per trigger type.

type StatusChangeTrigger struct {
	// From empty means any prior state.
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

type TagAddedTrigger struct {
	TagName string `json:"tag_name"`
}

type TimeBasedTrigger struct {
	Days int `json:"days"`
}

type EntityCreatedTrigger struct{}

// Action config payloads, one per action type.

type SendEmailAction struct {
	Template string `json:"template"`
	Subject  string `json:"subject,omitempty"`
}

type AssignUserAction struct {
	UserID string `json:"user_id"`
}

type AddTagAction struct {
	TagName string `json:"tag_name"`
}

type CreateTaskAction struct {
	Title     string `json:"title"`
	DueInDays int    `json:"due_in_days,omitempty"`
}

type NotificationAction struct {
	Message string `json:"message"`
}

// ApplyRulePatch mutates rule with the non-nil patch fields and
// revalidates the config pair whenever a type or config changed.
func ApplyRulePatch(rule *AutomationRule, patch *AutomationRulePatch) *ValidationError {
	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.IsActive != nil {
		rule.IsActive = *patch.IsActive
	}

	revalidate := false
	if patch.TriggerType != nil {
		rule.TriggerType = *patch.TriggerType
		revalidate = true
	}
	if patch.TriggerConfig != nil {
		rule.TriggerConfig = patch.TriggerConfig
		revalidate = true
	}
	if patch.ActionType != nil {
		rule.ActionType = *patch.ActionType
		revalidate = true
	}
	if patch.ActionConfig != nil {
		rule.ActionConfig = patch.ActionConfig
		revalidate = true
	}

	if revalidate {
		return ValidateRuleConfig(rule.TriggerType, rule.TriggerConfig,
			rule.ActionType, rule.ActionConfig)
	}
	return nil
}

// ValidationError - Field level rule definition failure, surfaced to the
// API caller as a 400.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidateRuleConfig checks the trigger and action config payloads against
// the schema implied by their declared types. Invalid combinations are
// rejected here, at the store boundary.
func ValidateRuleConfig(triggerType string, triggerConfig *postgres.Jsonb,
	actionType string, actionConfig *postgres.Jsonb) *ValidationError {

	if vErr := validateTriggerConfig(triggerType, triggerConfig); vErr != nil {
		return vErr
	}
	return validateActionConfig(actionType, actionConfig)
}

func validateTriggerConfig(triggerType string, triggerConfig *postgres.Jsonb) *ValidationError {
	switch triggerType {
	case TriggerStatusChange:
		var config StatusChangeTrigger
		if err := U.DecodePostgresJsonbToStructType(triggerConfig, &config); err != nil {
			return NewValidationError("trigger_config", err.Error())
		}
		if config.To == "" {
			return NewValidationError("trigger_config.to", "required")
		}
	case TriggerTagAdded:
		var config TagAddedTrigger
		if err := U.DecodePostgresJsonbToStructType(triggerConfig, &config); err != nil {
			return NewValidationError("trigger_config", err.Error())
		}
		if config.TagName == "" {
			return NewValidationError("trigger_config.tag_name", "required")
		}
	case TriggerTimeBased:
		var config TimeBasedTrigger
		if err := U.DecodePostgresJsonbToStructType(triggerConfig, &config); err != nil {
			return NewValidationError("trigger_config", err.Error())
		}
		if config.Days < 1 {
			return NewValidationError("trigger_config.days", "must be an integer >= 1")
		}
	case TriggerEntityCreated:
		// No parameters.
	default:
		return NewValidationError("trigger_type",
			fmt.Sprintf("unknown trigger type %q", triggerType))
	}
	return nil
}

func validateActionConfig(actionType string, actionConfig *postgres.Jsonb) *ValidationError {
	switch actionType {
	case ActionSendEmail:
		var config SendEmailAction
		if err := U.DecodePostgresJsonbToStructType(actionConfig, &config); err != nil {
			return NewValidationError("action_config", err.Error())
		}
		if config.Template == "" {
			return NewValidationError("action_config.template", "required")
		}
	case ActionAssignUser:
		var config AssignUserAction
		if err := U.DecodePostgresJsonbToStructType(actionConfig, &config); err != nil {
			return NewValidationError("action_config", err.Error())
		}
		if config.UserID == "" {
			return NewValidationError("action_config.user_id", "required")
		}
	case ActionAddTag:
		var config AddTagAction
		if err := U.DecodePostgresJsonbToStructType(actionConfig, &config); err != nil {
			return NewValidationError("action_config", err.Error())
		}
		if config.TagName == "" {
			return NewValidationError("action_config.tag_name", "required")
		}
	case ActionCreateTask:
		var config CreateTaskAction
		if err := U.DecodePostgresJsonbToStructType(actionConfig, &config); err != nil {
			return NewValidationError("action_config", err.Error())
		}
		if config.Title == "" {
			return NewValidationError("action_config.title", "required")
		}
	case ActionNotification:
		var config NotificationAction
		if err := U.DecodePostgresJsonbToStructType(actionConfig, &config); err != nil {
			return NewValidationError("action_config", err.Error())
		}
		if config.Message == "" {
			return NewValidationError("action_config.message", "required")
		}
	default:
		return NewValidationError("action_type",
			fmt.Sprintf("unknown action type %q", actionType))
	}
	return nil
}
