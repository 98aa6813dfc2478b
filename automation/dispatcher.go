package automation

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	C "crmhub/config"
	"crmhub/model/model"
	"crmhub/model/store"
)

// Dispatcher executes a matched rule's action exactly once per event.
// The pending insert under the ledger's uniqueness constraint is the
// at-most-once guarantee; everything after it is retry bookkeeping.
type Dispatcher struct {
	Registry       *Registry
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
}

func NewDispatcher(registry *Registry) *Dispatcher {
	conf := C.GetConfig()
	return &Dispatcher{
		Registry:       registry,
		MaxAttempts:    conf.MaxActionAttempts,
		AttemptTimeout: time.Duration(conf.ActionTimeoutSecs) * time.Second,
		BackoffBase:    time.Second,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, rule *model.AutomationRule, event *model.Event) (*model.ExecutionRecord, error) {
	logFields := log.Fields{
		"rule_id":     rule.ID,
		"event_id":    event.ID,
		"entity_id":   event.EntityID,
		"action_type": rule.ActionType,
	}

	record, created, err := store.GetStore().InsertPendingExecution(rule.ID, event.ID)
	if err != nil {
		log.WithFields(logFields).WithError(err).Error(
			"Failed to insert pending execution.")
		return nil, err
	}
	if !created {
		// Pair already dispatched or in flight. No-op.
		log.WithFields(logFields).Debug("Duplicate execution suppressed.")
		return record, nil
	}

	handler, exists := d.Registry.Get(rule.ActionType)
	if !exists {
		record.Status = model.ExecutionStatusSkipped
		record.LastError = fmt.Sprintf("no handler registered for action type %q", rule.ActionType)
		return d.finish(record, logFields)
	}

	backoff := d.BackoffBase
	for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
		record.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, d.AttemptTimeout)
		execErr := handler.Execute(attemptCtx, rule.ActionConfig, event)
		cancel()

		if execErr == nil {
			record.Status = model.ExecutionStatusSucceeded
			record.LastError = ""
			break
		}

		record.LastError = execErr.Error()
		if IsPermanentActionError(execErr) {
			log.WithFields(logFields).WithError(execErr).Error(
				"Permanent action failure, not retrying.")
			record.Status = model.ExecutionStatusFailed
			break
		}

		if attempt == d.MaxAttempts {
			log.WithFields(logFields).WithError(execErr).Error(
				"Action failed after exhausting retries.")
			record.Status = model.ExecutionStatusFailed
			break
		}

		log.WithFields(logFields).WithError(execErr).WithField(
			"attempt", attempt).Warn("Transient action failure, backing off.")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			record.Status = model.ExecutionStatusFailed
			record.LastError = ctx.Err().Error()
			return d.finish(record, logFields)
		}
		backoff *= 2
	}

	return d.finish(record, logFields)
}

func (d *Dispatcher) finish(record *model.ExecutionRecord, logFields log.Fields) (*model.ExecutionRecord, error) {
	finishedAt := time.Now()
	record.FinishedAt = &finishedAt

	if err := store.GetStore().UpdateExecution(record); err != nil {
		log.WithFields(logFields).WithError(err).Error(
			"Failed to record execution outcome.")
		return record, err
	}
	incrExecutionCounter(finishedAt)

	log.WithFields(logFields).WithFields(log.Fields{
		"status":   record.Status,
		"attempts": record.Attempts,
	}).Info("Execution finished.")
	return record, nil
}
