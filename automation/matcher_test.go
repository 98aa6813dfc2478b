package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmhub/model/model"
)

func statusChangeEvent(entityID, from, to string) *model.Event {
	return &model.Event{
		ID:         "evt-" + entityID + "-" + to,
		Type:       model.TriggerStatusChange,
		EntityID:   entityID,
		Payload:    jsonb(`{"from":"` + from + `","to":"` + to + `"}`),
		OccurredAt: time.Now(),
	}
}

func TestRulesMatchingEvent(t *testing.T) {
	t.Run("StatusChangeToOnly", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:            "r-1",
			TriggerType:   model.TriggerStatusChange,
			TriggerConfig: jsonb(`{"to":"qualified"}`),
		}}

		matched, err := RulesMatchingEvent(rules, statusChangeEvent("42", "new", "qualified"))
		require.NoError(t, err)
		assert.Len(t, matched, 1)

		matched, err = RulesMatchingEvent(rules, statusChangeEvent("42", "new", "contacted"))
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("StatusChangeUnsetFromMeansAnyPriorState", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:            "r-1",
			TriggerType:   model.TriggerStatusChange,
			TriggerConfig: jsonb(`{"to":"qualified"}`),
		}}

		for _, from := range []string{"new", "contacted", ""} {
			matched, err := RulesMatchingEvent(rules, statusChangeEvent("42", from, "qualified"))
			require.NoError(t, err)
			assert.Len(t, matched, 1, "from=%q", from)
		}
	})

	t.Run("StatusChangeWithFromFilters", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:            "r-1",
			TriggerType:   model.TriggerStatusChange,
			TriggerConfig: jsonb(`{"from":"contacted","to":"qualified"}`),
		}}

		matched, err := RulesMatchingEvent(rules, statusChangeEvent("42", "contacted", "qualified"))
		require.NoError(t, err)
		assert.Len(t, matched, 1)

		matched, err = RulesMatchingEvent(rules, statusChangeEvent("42", "new", "qualified"))
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("TagAdded", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:            "r-1",
			TriggerType:   model.TriggerTagAdded,
			TriggerConfig: jsonb(`{"tag_name":"vip"}`),
		}}

		event := &model.Event{
			ID: "evt-1", Type: model.TriggerTagAdded, EntityID: "42",
			Payload: jsonb(`{"tag_name":"vip"}`),
		}
		matched, err := RulesMatchingEvent(rules, event)
		require.NoError(t, err)
		assert.Len(t, matched, 1)

		event.Payload = jsonb(`{"tag_name":"cold"}`)
		matched, err = RulesMatchingEvent(rules, event)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("EntityCreatedMatchesUnconditionally", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:          "r-1",
			TriggerType: model.TriggerEntityCreated,
		}}

		event := &model.Event{ID: "evt-1", Type: model.TriggerEntityCreated, EntityID: "42"}
		matched, err := RulesMatchingEvent(rules, event)
		require.NoError(t, err)
		assert.Len(t, matched, 1)
	})

	t.Run("TimeBasedEqualityNotRange", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:            "r-1",
			TriggerType:   model.TriggerTimeBased,
			TriggerConfig: jsonb(`{"days":3}`),
		}}

		event := &model.Event{
			ID: "evt-1", Type: model.TriggerTimeBased, EntityID: "7",
			Payload: jsonb(`{"idle_days":3}`),
		}
		matched, err := RulesMatchingEvent(rules, event)
		require.NoError(t, err)
		assert.Len(t, matched, 1)

		// A 5-day idle event does not re-fire the 3-day rule.
		event.Payload = jsonb(`{"idle_days":5}`)
		matched, err = RulesMatchingEvent(rules, event)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})

	t.Run("MultipleMatchesFanOutUnordered", func(t *testing.T) {
		rules := []model.AutomationRule{
			{ID: "r-1", TriggerType: model.TriggerStatusChange,
				TriggerConfig: jsonb(`{"to":"qualified"}`)},
			{ID: "r-2", TriggerType: model.TriggerStatusChange,
				TriggerConfig: jsonb(`{"from":"new","to":"qualified"}`)},
			{ID: "r-3", TriggerType: model.TriggerStatusChange,
				TriggerConfig: jsonb(`{"to":"lost"}`)},
		}

		matched, err := RulesMatchingEvent(rules, statusChangeEvent("42", "new", "qualified"))
		require.NoError(t, err)
		assert.Len(t, matched, 2)
	})

	t.Run("TypeMismatchNeverMatches", func(t *testing.T) {
		rules := []model.AutomationRule{{
			ID:            "r-1",
			TriggerType:   model.TriggerTagAdded,
			TriggerConfig: jsonb(`{"tag_name":"vip"}`),
		}}

		matched, err := RulesMatchingEvent(rules, statusChangeEvent("42", "new", "qualified"))
		require.NoError(t, err)
		assert.Empty(t, matched)
	})
}

func TestMatcherReadsActivationStateFresh(t *testing.T) {
	store := setupTestStore(t)
	matcher := NewMatcher()

	rule, err := store.CreateRule(&model.AutomationRule{
		Name:          "qualify mail",
		IsActive:      true,
		TriggerType:   model.TriggerStatusChange,
		TriggerConfig: jsonb(`{"to":"qualified"}`),
		ActionType:    model.ActionSendEmail,
		ActionConfig:  jsonb(`{"template":"welcome"}`),
	})
	require.NoError(t, err)

	event := statusChangeEvent("42", "new", "qualified")

	matched, err := matcher.Match(event)
	require.NoError(t, err)
	assert.Len(t, matched, 1)

	_, err = store.ToggleRuleActive(rule.ID)
	require.NoError(t, err)

	matched, err = matcher.Match(event)
	require.NoError(t, err)
	assert.Empty(t, matched)
}
