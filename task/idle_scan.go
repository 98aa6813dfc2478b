package task

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"crmhub/automation"
	cacheRedis "crmhub/cache/redis"
	C "crmhub/config"
	"crmhub/model/model"
	"crmhub/model/store"
	U "crmhub/util"
)

const (
	idleScanGuardPrefix    = "automation:idlescan"
	idleScanGuardExpirySec = 36 * 60 * 60
	seenWindowSize         = 8192
)

// IdleScanner - Time-based triggers have no natural occurrence to listen
// to, so the engine polls. Each scan synthesizes one event per
// (entity, threshold) pair, keyed by a daily bucket so repeated scans
// before the entity's state changes collapse in the execution ledger.
type IdleScanner struct {
	engine  *automation.Engine
	seen    *lru.Cache
	running int32
}

func NewIdleScanner(engine *automation.Engine) (*IdleScanner, error) {
	seen, err := lru.New(seenWindowSize)
	if err != nil {
		return nil, err
	}
	return &IdleScanner{engine: engine, seen: seen}, nil
}

// Run executes a scan per tick. A tick that fires while the previous
// scan is still running is skipped, not queued.
func (s *IdleScanner) Run(ctx context.Context, interval time.Duration) {
	log.WithField("interval", interval.String()).Info("Idle trigger scanner started.")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-ctx.Done():
			log.Info("Idle trigger scanner stopped.")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *IdleScanner) tick() {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		log.Warn("Previous idle scan still running, skipping tick.")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	if _, err := s.Scan(time.Now()); err != nil {
		log.WithError(err).Error("Idle scan failed.")
	}
}

// Scan synthesizes idle events for every distinct time_based threshold
// among active rules.
func (s *IdleScanner) Scan(now time.Time) ([]*model.Event, error) {
	rules, err := store.GetStore().ListActiveRules(model.TriggerTimeBased)
	if err != nil {
		return nil, err
	}

	thresholds, err := distinctThresholds(rules)
	if err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		return nil, nil
	}

	date := U.DateAsYYYYMMDD(now)
	produced := make([]*model.Event, 0)

	for _, days := range thresholds {
		cutoff := now.AddDate(0, 0, -days)
		activities, err := store.GetStore().ListEntitiesIdleSince(cutoff)
		if err != nil {
			log.WithFields(log.Fields{"threshold_days": days}).WithError(err).Error(
				"Failed to list idle entities.")
			continue
		}

		for _, activity := range activities {
			event, err := s.synthesize(activity.EntityID, days, date, now)
			if err != nil {
				log.WithFields(log.Fields{"entity_id": activity.EntityID,
					"threshold_days": days}).WithError(err).Error(
					"Failed to synthesize idle event.")
				continue
			}
			if event != nil {
				produced = append(produced, event)
			}
		}
	}

	log.WithFields(log.Fields{
		"thresholds": thresholds,
		"produced":   len(produced),
	}).Info("Idle scan finished.")
	return produced, nil
}

// synthesize creates and enqueues the daily-bucketed idle event for the
// (entity, threshold) pair, or returns nil when it was already produced
// within the window.
func (s *IdleScanner) synthesize(entityID string, days int, date string, now time.Time) (*model.Event, error) {
	eventID := fmt.Sprintf("idle:%s:%d:%s", entityID, days, date)

	if s.seen.Contains(eventID) {
		return nil, nil
	}

	// Cross-process guard. On failure the ledger still deduplicates, so
	// the scan proceeds.
	if C.IsCacheRedisEnabled() {
		guardKey, err := cacheRedis.NewKey(idleScanGuardPrefix, eventID)
		if err == nil {
			set, err := cacheRedis.SetNX(guardKey, "1", idleScanGuardExpirySec)
			if err != nil {
				log.WithError(err).Warn("Idle scan redis guard unavailable.")
			} else if !set {
				s.seen.Add(eventID, true)
				return nil, nil
			}
		}
	}

	payload, err := U.EncodeStructTypeToPostgresJsonb(map[string]interface{}{
		model.PayloadIdleDays: days,
	})
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		ID:         eventID,
		Type:       model.TriggerTimeBased,
		EntityID:   entityID,
		Payload:    payload,
		OccurredAt: now.UTC(),
	}

	stored, err := store.GetStore().CreateEvent(event)
	if err != nil {
		return nil, err
	}
	s.seen.Add(eventID, true)

	if err := s.engine.Enqueue(stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func distinctThresholds(rules []model.AutomationRule) ([]int, error) {
	set := make(map[int]bool)
	for _, rule := range rules {
		var config model.TimeBasedTrigger
		if err := U.DecodePostgresJsonbToStructType(rule.TriggerConfig, &config); err != nil {
			log.WithFields(log.Fields{"rule_id": rule.ID}).WithError(err).Error(
				"Failed to decode time_based trigger config.")
			continue
		}
		if config.Days >= 1 {
			set[config.Days] = true
		}
	}

	thresholds := make([]int, 0, len(set))
	for days := range set {
		thresholds = append(thresholds, days)
	}
	sort.Ints(thresholds)
	return thresholds, nil
}
