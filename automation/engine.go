package automation

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	log "github.com/sirupsen/logrus"

	"crmhub/model/model"
)

var ErrEngineStopped = errors.New("automation engine stopped")

// Engine - Entity-sharded processing pipeline. Events for the same
// entity land on the same shard and are handled serially in arrival
// order; events for different entities proceed in parallel. Dispatches
// for one event fan out concurrently across matched rules, since each
// touches an independent ledger row.
type Engine struct {
	matcher    *Matcher
	dispatcher *Dispatcher
	shards     []chan *model.Event
	wg         sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
}

func NewEngine(matcher *Matcher, dispatcher *Dispatcher, shardCount, queueSize int) *Engine {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]chan *model.Event, shardCount)
	for i := range shards {
		shards[i] = make(chan *model.Event, queueSize)
	}

	return &Engine{
		matcher:    matcher,
		dispatcher: dispatcher,
		shards:     shards,
	}
}

func (e *Engine) Start(ctx context.Context) {
	for _, shard := range e.shards {
		e.wg.Add(1)
		go func(events <-chan *model.Event) {
			defer e.wg.Done()
			for event := range events {
				e.process(ctx, event)
			}
		}(shard)
	}
	log.WithField("shards", len(e.shards)).Info("Automation engine started.")
}

// Enqueue hands an event to its entity's shard. Blocks only when the
// shard buffer is full, which is the backpressure boundary between
// ingestion and dispatch.
func (e *Engine) Enqueue(event *model.Event) error {
	// The read lock spans the send so Stop cannot close a shard between
	// the stopped check and the send.
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return ErrEngineStopped
	}
	e.shards[e.shardFor(event.EntityID)] <- event
	return nil
}

// Stop drains the shard queues and waits for in-flight work to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	for _, shard := range e.shards {
		close(shard)
	}
	e.mu.Unlock()

	e.wg.Wait()
	log.Info("Automation engine stopped.")
}

func (e *Engine) shardFor(entityID string) int {
	h := fnv.New32a()
	h.Write([]byte(entityID))
	return int(h.Sum32() % uint32(len(e.shards)))
}

func (e *Engine) process(ctx context.Context, event *model.Event) {
	logFields := log.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"entity_id":  event.EntityID,
	}

	rules, err := e.matcher.Match(event)
	if err != nil {
		log.WithFields(logFields).WithError(err).Error(
			"Matching failed, event not dispatched.")
		return
	}
	if len(rules) == 0 {
		log.WithFields(logFields).Debug("No rules matched.")
		return
	}

	// A failing rule must not block dispatch for other matched rules.
	var dispatchWg sync.WaitGroup
	for i := range rules {
		rule := rules[i]
		dispatchWg.Add(1)
		go func() {
			defer dispatchWg.Done()
			if _, err := e.dispatcher.Dispatch(ctx, &rule, event); err != nil {
				log.WithFields(logFields).WithField("rule_id", rule.ID).
					WithError(err).Error("Dispatch failed.")
			}
		}()
	}
	dispatchWg.Wait()
}
