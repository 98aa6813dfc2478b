package memstore

import (
	"sort"
	"sync"
	"time"

	"crmhub/model/model"
	U "crmhub/util"
)

// MemStore - In-memory store backend used on development and by tests,
// selected the same way the postgres backend is. Keeps the same
// semantics: soft deletes, (rule_id, event_id) uniqueness, idempotent
// event replay.
type MemStore struct {
	mu         sync.RWMutex
	rules      map[string]*model.AutomationRule
	events     map[string]*model.Event
	activity   map[string]time.Time
	executions map[string]*model.ExecutionRecord
	ruleOrder  []string
}

var instance *MemStore
var once sync.Once

func GetInstance() *MemStore {
	once.Do(func() {
		instance = &MemStore{}
		instance.reset()
	})
	return instance
}

func (store *MemStore) reset() {
	store.rules = make(map[string]*model.AutomationRule)
	store.events = make(map[string]*model.Event)
	store.activity = make(map[string]time.Time)
	store.executions = make(map[string]*model.ExecutionRecord)
	store.ruleOrder = nil
}

// Reset drops all state. Test isolation only.
func (store *MemStore) Reset() {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.reset()
}

func executionKey(ruleID, eventID string) string {
	return ruleID + ":" + eventID
}

func copyRule(rule *model.AutomationRule) *model.AutomationRule {
	clone := *rule
	return &clone
}

func (store *MemStore) CreateRule(rule *model.AutomationRule) (*model.AutomationRule, error) {
	if vErr := model.ValidateRuleConfig(rule.TriggerType, rule.TriggerConfig,
		rule.ActionType, rule.ActionConfig); vErr != nil {
		return nil, vErr
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	transTime := time.Now()
	rule.ID = U.GetUUID()
	rule.CreatedAt = transTime
	rule.UpdatedAt = transTime
	rule.IsDeleted = false

	store.rules[rule.ID] = copyRule(rule)
	store.ruleOrder = append(store.ruleOrder, rule.ID)
	return rule, nil
}

func (store *MemStore) getRule(id string) (*model.AutomationRule, error) {
	rule, exists := store.rules[id]
	if !exists || rule.IsDeleted {
		return nil, model.ErrNotFound
	}
	return rule, nil
}

func (store *MemStore) GetRule(id string) (*model.AutomationRule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	rule, err := store.getRule(id)
	if err != nil {
		return nil, err
	}
	return copyRule(rule), nil
}

func (store *MemStore) UpdateRule(id string, patch *model.AutomationRulePatch) (*model.AutomationRule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rule, err := store.getRule(id)
	if err != nil {
		return nil, err
	}

	updated := copyRule(rule)
	if vErr := model.ApplyRulePatch(updated, patch); vErr != nil {
		return nil, vErr
	}
	updated.UpdatedAt = time.Now()

	store.rules[id] = updated
	return copyRule(updated), nil
}

func (store *MemStore) DeleteRule(id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	rule, err := store.getRule(id)
	if err != nil {
		return err
	}
	rule.IsDeleted = true
	rule.UpdatedAt = time.Now()
	return nil
}

func (store *MemStore) ToggleRuleActive(id string) (*model.AutomationRule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	rule, err := store.getRule(id)
	if err != nil {
		return nil, err
	}
	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = time.Now()
	return copyRule(rule), nil
}

func (store *MemStore) ListRules() ([]model.AutomationRule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	rules := make([]model.AutomationRule, 0)
	for _, id := range store.ruleOrder {
		rule, exists := store.rules[id]
		if !exists || rule.IsDeleted {
			continue
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

func (store *MemStore) ListActiveRules(triggerType string) ([]model.AutomationRule, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	rules := make([]model.AutomationRule, 0)
	for _, id := range store.ruleOrder {
		rule, exists := store.rules[id]
		if !exists || rule.IsDeleted || !rule.IsActive {
			continue
		}
		if triggerType != "" && rule.TriggerType != triggerType {
			continue
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

func (store *MemStore) CreateEvent(event *model.Event) (*model.Event, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if existing, exists := store.events[event.ID]; exists {
		clone := *existing
		return &clone, nil
	}

	clone := *event
	store.events[event.ID] = &clone
	return event, nil
}

func (store *MemStore) TouchEntityActivity(entityID string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if last, exists := store.activity[entityID]; !exists || last.Before(at) {
		store.activity[entityID] = at
	}
	return nil
}

func (store *MemStore) ListEntitiesIdleSince(cutoff time.Time) ([]model.EntityActivity, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	activities := make([]model.EntityActivity, 0)
	for entityID, last := range store.activity {
		if !last.After(cutoff) {
			activities = append(activities, model.EntityActivity{
				EntityID: entityID, LastActivityAt: last})
		}
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].LastActivityAt.Before(activities[j].LastActivityAt)
	})
	return activities, nil
}

func (store *MemStore) InsertPendingExecution(ruleID, eventID string) (*model.ExecutionRecord, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	key := executionKey(ruleID, eventID)
	if existing, exists := store.executions[key]; exists {
		clone := *existing
		return &clone, false, nil
	}

	record := &model.ExecutionRecord{
		RuleID:    ruleID,
		EventID:   eventID,
		Status:    model.ExecutionStatusPending,
		Attempts:  0,
		StartedAt: time.Now(),
	}
	store.executions[key] = record

	clone := *record
	return &clone, true, nil
}

func (store *MemStore) UpdateExecution(record *model.ExecutionRecord) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	key := executionKey(record.RuleID, record.EventID)
	existing, exists := store.executions[key]
	if !exists {
		return model.ErrNotFound
	}

	existing.Status = record.Status
	existing.Attempts = record.Attempts
	existing.LastError = record.LastError
	existing.FinishedAt = record.FinishedAt
	return nil
}

func (store *MemStore) ExecutionExists(ruleID, eventID string) (bool, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	_, exists := store.executions[executionKey(ruleID, eventID)]
	return exists, nil
}

func (store *MemStore) ExecutionStatsSince(since time.Time) (*model.ExecutionStats, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	stats := &model.ExecutionStats{ByStatus: make(map[string]int64)}
	for _, record := range store.executions {
		if record.StartedAt.Before(since) {
			continue
		}
		stats.ByStatus[record.Status]++
		stats.Count++
	}
	return stats, nil
}

func (store *MemStore) GetAutomationStats() (*model.AutomationStats, error) {
	activeRules, err := store.ListActiveRules("")
	if err != nil {
		return nil, err
	}

	execStats, err := store.ExecutionStatsSince(U.BeginningOfDay(time.Now()))
	if err != nil {
		return nil, err
	}

	return &model.AutomationStats{
		ActiveRules:     int64(len(activeRules)),
		ExecutionsToday: execStats.Count,
	}, nil
}
