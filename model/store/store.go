package store

import (
	"time"

	C "crmhub/config"
	"crmhub/model/model"
	"crmhub/model/store/memstore"
	storePostgres "crmhub/model/store/postgres"
)

// Store - Durable state owned by the engine: rule definitions, events,
// entity activity and the execution ledger.
type Store interface {
	CreateRule(rule *model.AutomationRule) (*model.AutomationRule, error)
	UpdateRule(id string, patch *model.AutomationRulePatch) (*model.AutomationRule, error)
	DeleteRule(id string) error
	ToggleRuleActive(id string) (*model.AutomationRule, error)
	GetRule(id string) (*model.AutomationRule, error)
	ListRules() ([]model.AutomationRule, error)
	// ListActiveRules reads activation state fresh, never from process
	// memory, so toggles are consistent across concurrent workers.
	// Empty triggerType lists all active rules.
	ListActiveRules(triggerType string) ([]model.AutomationRule, error)

	CreateEvent(event *model.Event) (*model.Event, error)
	TouchEntityActivity(entityID string, at time.Time) error
	ListEntitiesIdleSince(cutoff time.Time) ([]model.EntityActivity, error)

	// InsertPendingExecution inserts a pending ledger row for the pair
	// under the (rule_id, event_id) uniqueness constraint. When the pair
	// already exists the stored record is returned with created=false.
	InsertPendingExecution(ruleID, eventID string) (record *model.ExecutionRecord, created bool, err error)
	UpdateExecution(record *model.ExecutionRecord) error
	ExecutionExists(ruleID, eventID string) (bool, error)
	ExecutionStatsSince(since time.Time) (*model.ExecutionStats, error)
	GetAutomationStats() (*model.AutomationStats, error)
}

// GetStore - Decides on which store implementation to use by
// configuration and returns it.
func GetStore() Store {
	if C.GetConfig().StoreType == C.StoreTypeMemory {
		return memstore.GetInstance()
	}
	return &storePostgres.Postgres{}
}
