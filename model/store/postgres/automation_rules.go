package postgres

import (
	"time"

	"github.com/jinzhu/gorm"
	log "github.com/sirupsen/logrus"

	"crmhub/model/model"
	U "crmhub/util"
)

const ruleListLimit = 1000

func (store *Postgres) CreateRule(rule *model.AutomationRule) (*model.AutomationRule, error) {
	logFields := log.Fields{"rule_name": rule.Name}

	if vErr := model.ValidateRuleConfig(rule.TriggerType, rule.TriggerConfig,
		rule.ActionType, rule.ActionConfig); vErr != nil {
		return nil, vErr
	}

	transTime := gorm.NowFunc()
	rule.ID = U.GetUUID()
	rule.CreatedAt = transTime
	rule.UpdatedAt = transTime
	rule.IsDeleted = false

	if err := db().Create(rule).Error; err != nil {
		log.WithFields(logFields).WithError(err).Error("Failed to create automation rule.")
		return nil, err
	}
	return rule, nil
}

func (store *Postgres) GetRule(id string) (*model.AutomationRule, error) {
	var rule model.AutomationRule
	err := db().Where("id = ? AND is_deleted = ?", id, false).First(&rule).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, model.ErrNotFound
		}
		log.WithFields(log.Fields{"rule_id": id}).WithError(err).Error(
			"Failed to fetch automation rule.")
		return nil, err
	}
	return &rule, nil
}

func (store *Postgres) UpdateRule(id string, patch *model.AutomationRulePatch) (*model.AutomationRule, error) {
	rule, err := store.GetRule(id)
	if err != nil {
		return nil, err
	}

	if vErr := model.ApplyRulePatch(rule, patch); vErr != nil {
		return nil, vErr
	}
	rule.UpdatedAt = gorm.NowFunc()

	if err := db().Save(rule).Error; err != nil {
		log.WithFields(log.Fields{"rule_id": id}).WithError(err).Error(
			"Failed to update automation rule.")
		return nil, err
	}
	return rule, nil
}

func (store *Postgres) DeleteRule(id string) error {
	result := db().Model(&model.AutomationRule{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update(map[string]interface{}{"is_deleted": true, "updated_at": gorm.NowFunc()})
	if result.Error != nil {
		log.WithFields(log.Fields{"rule_id": id}).WithError(result.Error).Error(
			"Failed to delete automation rule.")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (store *Postgres) ToggleRuleActive(id string) (*model.AutomationRule, error) {
	rule, err := store.GetRule(id)
	if err != nil {
		return nil, err
	}

	rule.IsActive = !rule.IsActive
	rule.UpdatedAt = gorm.NowFunc()

	if err := db().Model(&model.AutomationRule{}).Where("id = ?", id).
		Update(map[string]interface{}{
			"is_active":  rule.IsActive,
			"updated_at": rule.UpdatedAt,
		}).Error; err != nil {
		log.WithFields(log.Fields{"rule_id": id}).WithError(err).Error(
			"Failed to toggle automation rule.")
		return nil, err
	}
	return rule, nil
}

func (store *Postgres) ListRules() ([]model.AutomationRule, error) {
	rules := make([]model.AutomationRule, 0)
	err := db().Where("is_deleted = ?", false).
		Order("created_at").Limit(ruleListLimit).Find(&rules).Error
	if err != nil {
		log.WithError(err).Error("Failed to list automation rules.")
		return nil, err
	}
	return rules, nil
}

func (store *Postgres) ListActiveRules(triggerType string) ([]model.AutomationRule, error) {
	rules := make([]model.AutomationRule, 0)

	query := db().Where("is_deleted = ? AND is_active = ?", false, true)
	if triggerType != "" {
		query = query.Where("trigger_type = ?", triggerType)
	}

	err := query.Order("created_at").Limit(ruleListLimit).Find(&rules).Error
	if err != nil {
		log.WithFields(log.Fields{"trigger_type": triggerType}).WithError(err).Error(
			"Failed to list active automation rules.")
		return nil, err
	}
	return rules, nil
}

func (store *Postgres) activeRuleCount() (int64, error) {
	var count int64
	err := db().Model(&model.AutomationRule{}).
		Where("is_deleted = ? AND is_active = ?", false, true).
		Count(&count).Error
	return count, err
}

func (store *Postgres) GetAutomationStats() (*model.AutomationStats, error) {
	activeRules, err := store.activeRuleCount()
	if err != nil {
		log.WithError(err).Error("Failed to count active automation rules.")
		return nil, err
	}

	execStats, err := store.ExecutionStatsSince(U.BeginningOfDay(time.Now()))
	if err != nil {
		return nil, err
	}

	return &model.AutomationStats{
		ActiveRules:     activeRules,
		ExecutionsToday: execStats.Count,
	}, nil
}
