package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm/dialects/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"crmhub/automation"
	"crmhub/ingest"
	"crmhub/model/model"
	"crmhub/model/store"
)

type createRulePayload struct {
	Name          string          `json:"name"`
	IsActive      *bool           `json:"is_active"`
	TriggerType   string          `json:"trigger_type"`
	TriggerConfig json.RawMessage `json:"trigger_config"`
	ActionType    string          `json:"action_type"`
	ActionConfig  json.RawMessage `json:"action_config"`
}

func GetAutomationRulesHandler(c *gin.Context) {
	rules, err := store.GetStore().ListRules()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to list rules."})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func CreateAutomationRuleHandler(c *gin.Context) {
	var payload createRulePayload
	decoder := json.NewDecoder(c.Request.Body)
	if err := decoder.Decode(&payload); err != nil {
		errMsg := "Create rule failed. Invalid JSON."
		log.WithError(err).Error(errMsg)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	if payload.Name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "required", "field": "name"})
		return
	}

	rule := &model.AutomationRule{
		Name:          payload.Name,
		IsActive:      true,
		TriggerType:   payload.TriggerType,
		TriggerConfig: &postgres.Jsonb{RawMessage: payload.TriggerConfig},
		ActionType:    payload.ActionType,
		ActionConfig:  &postgres.Jsonb{RawMessage: payload.ActionConfig},
	}
	if payload.IsActive != nil {
		rule.IsActive = *payload.IsActive
	}

	created, err := store.GetStore().CreateRule(rule)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": vErr.Message, "field": vErr.Field})
			return
		}
		log.WithFields(log.Fields{"rule_name": payload.Name}).WithError(err).Error(
			"Failed to create rule in handler.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rule."})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func UpdateAutomationRuleHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Update failed. Invalid id provided."})
		return
	}

	var patch model.AutomationRulePatch
	decoder := json.NewDecoder(c.Request.Body)
	if err := decoder.Decode(&patch); err != nil {
		errMsg := "Update rule failed. Invalid JSON."
		log.WithFields(log.Fields{"rule_id": id}).WithError(err).Error(errMsg)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	updated, err := store.GetStore().UpdateRule(id, &patch)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Rule not found."})
			return
		}
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": vErr.Message, "field": vErr.Field})
			return
		}
		log.WithFields(log.Fields{"rule_id": id}).WithError(err).Error(
			"Failed to update rule in handler.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rule."})
		return
	}

	c.JSON(http.StatusOK, updated)
}

func DeleteAutomationRuleHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Delete failed. Invalid id provided."})
		return
	}

	if err := store.GetStore().DeleteRule(id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Rule not found."})
			return
		}
		log.WithFields(log.Fields{"rule_id": id}).WithError(err).Error(
			"Failed to delete rule in handler.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule."})
		return
	}

	c.Status(http.StatusNoContent)
}

func GetAutomationStatsHandler(c *gin.Context) {
	stats, err := store.GetStore().GetAutomationStats()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats."})
		return
	}

	// The dispatcher keeps a daily execution counter in redis; prefer it
	// over the ledger scan and seed it when the day's key is missing.
	now := time.Now()
	if count, found := automation.ExecutionsTodayFromCache(now); found {
		stats.ExecutionsToday = count
	} else {
		automation.SeedExecutionsTodayCache(now, stats.ExecutionsToday)
	}

	c.JSON(http.StatusOK, stats)
}

// CreateAutomationEventHandler - Inbound occurrence webhook for the
// CRM-side collaborators (status change, tag mutation, creation).
func CreateAutomationEventHandler(ingestor *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var occurrence ingest.RawOccurrence
		decoder := json.NewDecoder(c.Request.Body)
		if err := decoder.Decode(&occurrence); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON."})
			return
		}

		event, err := ingestor.Ingest(&occurrence)
		if err != nil {
			if errors.Is(err, ingest.ErrMalformedEvent) {
				log.WithError(err).Error("Dropped malformed occurrence.")
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to ingest event."})
			return
		}

		c.JSON(http.StatusAccepted, event)
	}
}
