package automation

import (
	"context"
	"net/http"

	"github.com/jinzhu/gorm/dialects/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	C "crmhub/config"
	"crmhub/model/model"
	U "crmhub/util"
	"crmhub/webhooks"
)

// Built-in handlers, one per action type. Each calls an external
// collaborator over HTTP with only the action config and the triggering
// event; none contains delivery logic of its own.

// NewDefaultRegistry wires every action type to its collaborator
// endpoint from configuration.
func NewDefaultRegistry(collaborators C.ActionCollaborators) *Registry {
	registry := NewRegistry()
	secret := collaborators.WebhookSecret

	registry.Register(model.ActionSendEmail, &collaboratorHandler{
		actionType: model.ActionSendEmail,
		url:        collaborators.EmailServiceURL,
		secret:     secret,
		decode: func(config *postgres.Jsonb) (interface{}, error) {
			var action model.SendEmailAction
			if err := U.DecodePostgresJsonbToStructType(config, &action); err != nil {
				return nil, err
			}
			if action.Template == "" {
				return nil, errors.New("missing email template")
			}
			return action, nil
		},
	})

	registry.Register(model.ActionAssignUser, &collaboratorHandler{
		actionType: model.ActionAssignUser,
		url:        collaborators.AssignmentServiceURL,
		secret:     secret,
		decode: func(config *postgres.Jsonb) (interface{}, error) {
			var action model.AssignUserAction
			if err := U.DecodePostgresJsonbToStructType(config, &action); err != nil {
				return nil, err
			}
			if action.UserID == "" {
				return nil, errors.New("missing user_id")
			}
			return action, nil
		},
	})

	registry.Register(model.ActionAddTag, &collaboratorHandler{
		actionType: model.ActionAddTag,
		url:        collaborators.TaggingServiceURL,
		secret:     secret,
		decode: func(config *postgres.Jsonb) (interface{}, error) {
			var action model.AddTagAction
			if err := U.DecodePostgresJsonbToStructType(config, &action); err != nil {
				return nil, err
			}
			if action.TagName == "" {
				return nil, errors.New("missing tag_name")
			}
			return action, nil
		},
	})

	registry.Register(model.ActionCreateTask, &collaboratorHandler{
		actionType: model.ActionCreateTask,
		url:        collaborators.TaskServiceURL,
		secret:     secret,
		decode: func(config *postgres.Jsonb) (interface{}, error) {
			var action model.CreateTaskAction
			if err := U.DecodePostgresJsonbToStructType(config, &action); err != nil {
				return nil, err
			}
			if action.Title == "" {
				return nil, errors.New("missing task title")
			}
			return action, nil
		},
	})

	registry.Register(model.ActionNotification, &collaboratorHandler{
		actionType: model.ActionNotification,
		url:        collaborators.NotificationServiceURL,
		secret:     secret,
		decode: func(config *postgres.Jsonb) (interface{}, error) {
			var action model.NotificationAction
			if err := U.DecodePostgresJsonbToStructType(config, &action); err != nil {
				return nil, err
			}
			if action.Message == "" {
				return nil, errors.New("missing notification message")
			}
			return action, nil
		},
	})

	return registry
}

type collaboratorHandler struct {
	actionType string
	url        string
	secret     string
	decode     func(config *postgres.Jsonb) (interface{}, error)
}

type collaboratorPayload struct {
	ActionType string       `json:"action_type"`
	Config     interface{}  `json:"config"`
	Event      *model.Event `json:"event"`
}

func (h *collaboratorHandler) Execute(ctx context.Context, config *postgres.Jsonb, event *model.Event) error {
	action, err := h.decode(config)
	if err != nil {
		// Config escaped write-time validation; retrying cannot fix it.
		return NewPermanentActionError(errors.Wrap(err, "bad action config"))
	}

	if h.url == "" {
		if C.IsDevelopment() {
			log.WithFields(log.Fields{"action_type": h.actionType,
				"event_id": event.ID}).Info("Dry run mode, no collaborator configured.")
			return nil
		}
		return NewPermanentActionError(errors.Errorf(
			"no collaborator endpoint configured for %s", h.actionType))
	}

	status, err := webhooks.Drop(ctx, h.url, h.secret, &collaboratorPayload{
		ActionType: h.actionType,
		Config:     action,
		Event:      event,
	})
	if err != nil {
		return NewTransientActionError(err)
	}
	return classifyStatus(h.actionType, status)
}

func classifyStatus(actionType string, status int) error {
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return nil
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError:
		return NewTransientActionError(errors.Errorf(
			"%s collaborator returned %d", actionType, status))
	default:
		return NewPermanentActionError(errors.Errorf(
			"%s collaborator rejected request with %d", actionType, status))
	}
}
