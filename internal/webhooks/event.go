package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEvent is returned when a webhook body is not a provider event.
var ErrInvalidEvent = errors.New("invalid webhook event")

// Event is the part of a provider webhook event callers act on.
type Event struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	ResourceType string `json:"resourceType,omitempty"`
	ResourceID   string `json:"resourceId,omitempty"`
}

// AffectsEntitlements reports whether the event can change what a license
// grants, so cached entitlements for ResourceID should be dropped.
func (e Event) AffectsEntitlements() bool {
	for _, prefix := range []string{"license.", "entitlement.", "policy."} {
		if strings.HasPrefix(e.Type, prefix) {
			return true
		}
	}
	return false
}

type eventEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		} `json:"attributes"`
	} `json:"data"`
}

type resourceEnvelope struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

// ParseEvent decodes a JSON:API webhook event. The embedded payload may be a
// JSON object or a JSON string holding one.
func ParseEvent(body []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if env.Data.Attributes.Event == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrInvalidEvent)
	}

	evt := Event{ID: env.Data.ID, Type: env.Data.Attributes.Event}

	payload := env.Data.Attributes.Payload
	if len(payload) == 0 || string(payload) == "null" {
		return evt, nil
	}

	var inner string
	if err := json.Unmarshal(payload, &inner); err == nil {
		payload = json.RawMessage(inner)
	}

	var res resourceEnvelope
	if err := json.Unmarshal(payload, &res); err != nil {
		return Event{}, fmt.Errorf("%w: payload: %v", ErrInvalidEvent, err)
	}
	evt.ResourceType = res.Data.Type
	evt.ResourceID = res.Data.ID
	return evt, nil
}
