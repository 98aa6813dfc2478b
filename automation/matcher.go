package automation

import (
	log "github.com/sirupsen/logrus"

	"crmhub/model/model"
	"crmhub/model/store"
	U "crmhub/util"
)

// Matcher selects the active rules whose trigger matches an event.
// Matching is pure: it never mutates rule or event state, and returns
// every match as independent, unordered fan-out.
type Matcher struct {
}

func NewMatcher() *Matcher {
	return &Matcher{}
}

func (m *Matcher) Match(event *model.Event) ([]model.AutomationRule, error) {
	rules, err := store.GetStore().ListActiveRules(event.Type)
	if err != nil {
		log.WithFields(log.Fields{"event_id": event.ID,
			"event_type": event.Type}).WithError(err).Error(
			"Failed to load active rules for matching.")
		return nil, err
	}
	return RulesMatchingEvent(rules, event)
}

// RulesMatchingEvent filters rules by trigger config semantics against
// the event payload. Rules are assumed to be of the event's trigger type.
func RulesMatchingEvent(rules []model.AutomationRule, event *model.Event) ([]model.AutomationRule, error) {
	payload, err := event.PayloadMap()
	if err != nil {
		log.WithFields(log.Fields{"event_id": event.ID}).WithError(err).Error(
			"Failed to decode event payload for matching.")
		return nil, err
	}

	matched := make([]model.AutomationRule, 0)
	for _, rule := range rules {
		ok, err := ruleMatches(&rule, event.Type, payload)
		if err != nil {
			// Configs are validated at write time; a decode failure here
			// means a corrupted row. Skip it, do not block other rules.
			log.WithFields(log.Fields{"rule_id": rule.ID}).WithError(err).Error(
				"Failed to decode trigger config, skipping rule.")
			continue
		}
		if ok {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

func ruleMatches(rule *model.AutomationRule, eventType string, payload map[string]interface{}) (bool, error) {
	if rule.TriggerType != eventType {
		return false, nil
	}

	switch rule.TriggerType {
	case model.TriggerStatusChange:
		var config model.StatusChangeTrigger
		if err := U.DecodePostgresJsonbToStructType(rule.TriggerConfig, &config); err != nil {
			return false, err
		}
		// Unset from means any prior state.
		if config.From != "" && config.From != payloadString(payload, model.PayloadFrom) {
			return false, nil
		}
		return config.To == payloadString(payload, model.PayloadTo), nil

	case model.TriggerTagAdded:
		var config model.TagAddedTrigger
		if err := U.DecodePostgresJsonbToStructType(rule.TriggerConfig, &config); err != nil {
			return false, err
		}
		return config.TagName == payloadString(payload, model.PayloadTagName), nil

	case model.TriggerEntityCreated:
		return true, nil

	case model.TriggerTimeBased:
		var config model.TimeBasedTrigger
		if err := U.DecodePostgresJsonbToStructType(rule.TriggerConfig, &config); err != nil {
			return false, err
		}
		// Equality, not a range check: the scanner already filtered by
		// threshold and re-firing is controlled by the ledger.
		return payloadInt(payload, model.PayloadIdleDays) == config.Days, nil
	}

	return false, nil
}

func payloadString(payload map[string]interface{}, key string) string {
	value, exists := payload[key]
	if !exists {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return str
}

func payloadInt(payload map[string]interface{}, key string) int {
	value, exists := payload[key]
	if !exists {
		return 0
	}
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}
