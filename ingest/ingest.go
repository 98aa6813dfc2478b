package ingest

import (
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"crmhub/automation"
	"crmhub/model/model"
	"crmhub/model/store"
	U "crmhub/util"
)

// ErrMalformedEvent - Occurrence missing required fields. Logged and
// dropped; never stops ingestion of other occurrences.
var ErrMalformedEvent = errors.New("malformed event occurrence")

// RawOccurrence - Domain occurrence as pushed by a CRM-side collaborator
// (status-change, tag-mutation or creation notification). The
// occurred_at hint is informational; ordering uses server time only.
type RawOccurrence struct {
	Type           string                 `json:"type"`
	EntityID       string                 `json:"entity_id"`
	Payload        map[string]interface{} `json:"payload"`
	OccurredAtHint int64                  `json:"occurred_at,omitempty"`
}

// Ingestor normalizes raw occurrences into canonical events and hands
// them to the automation engine.
type Ingestor struct {
	engine *automation.Engine
}

func NewIngestor(engine *automation.Engine) *Ingestor {
	return &Ingestor{engine: engine}
}

func (ig *Ingestor) Ingest(occurrence *RawOccurrence) (*model.Event, error) {
	if occurrence == nil {
		return nil, errors.Wrap(ErrMalformedEvent, "nil occurrence")
	}
	if occurrence.EntityID == "" {
		return nil, errors.Wrap(ErrMalformedEvent, "missing entity_id")
	}
	if !model.IsValidEventType(occurrence.Type) {
		return nil, errors.Wrapf(ErrMalformedEvent, "unknown type %q", occurrence.Type)
	}

	payload, err := U.EncodeStructTypeToPostgresJsonb(occurrence.Payload)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedEvent, err.Error())
	}

	// occurred_at is assigned server side, never trusted from the
	// client, so per-entity ordering stays monotonic.
	event := &model.Event{
		ID:         U.GetUUID(),
		Type:       occurrence.Type,
		EntityID:   occurrence.EntityID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	stored, err := store.GetStore().CreateEvent(event)
	if err != nil {
		log.WithFields(log.Fields{"entity_id": event.EntityID,
			"type": event.Type}).WithError(err).Error("Failed to persist event.")
		return nil, err
	}

	// Synthetic idle events are not activity; everything else moves the
	// entity's last-activity timestamp forward.
	if stored.Type != model.TriggerTimeBased {
		if err := store.GetStore().TouchEntityActivity(stored.EntityID, stored.OccurredAt); err != nil {
			log.WithFields(log.Fields{"entity_id": stored.EntityID}).WithError(err).Error(
				"Failed to touch entity activity.")
		}
	}

	if err := ig.engine.Enqueue(stored); err != nil {
		log.WithFields(log.Fields{"event_id": stored.ID}).WithError(err).Error(
			"Failed to enqueue event.")
		return nil, err
	}

	log.WithFields(log.Fields{
		"event_id":  stored.ID,
		"type":      stored.Type,
		"entity_id": stored.EntityID,
	}).Info("Event ingested.")
	return stored, nil
}
