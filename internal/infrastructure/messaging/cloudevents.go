package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	// CloudEvents spec version.
	specVersion = "1.0"

	// CloudEvents source for all events emitted by this service.
	source = "tunetrail/backend"

	// TopicImpressions carries EventTypeImpressionRecorded events, which
	// the impression buffer publishes after each batch of Impression rows
	// has been written to the Repository.
	TopicImpressions = "impressions"

	// TopicSessions carries session lifecycle events, currently only
	// EventTypeSessionExpired, for downstream analytics fan-out.
	TopicSessions = "sessions"

	// TopicInteractions carries EventTypeInteractionRecorded events, one
	// per durably persisted interaction, for the offline learner's
	// feature pipeline.
	TopicInteractions = "interactions"

	// EventTypeImpressionRecorded is emitted for every track shown as part
	// of a recommendation response.
	EventTypeImpressionRecorded = "tunetrail.impression.recorded.v1"
	// EventTypeSessionExpired is emitted whenever the Session Manager
	// finalizes a session: by the expiry sweep, by a client End, or when
	// Start replaces the device's previous session.
	EventTypeSessionExpired = "tunetrail.session.expired.v1"
	// EventTypeInteractionRecorded is emitted after an interaction is
	// durably persisted, for downstream analytics fan-out.
	EventTypeInteractionRecorded = "tunetrail.interaction.recorded.v1"
)

// NewCloudEvent creates a Watermill message with CloudEvents v1.0 metadata.
// The data payload is JSON-encoded into the message body.
func NewCloudEvent(eventType string, data any) (*message.Message, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate event ID: %w", err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	msg := message.NewMessage(id.String(), payload)

	// CloudEvents required attributes
	msg.Metadata.Set("ce_specversion", specVersion)
	msg.Metadata.Set("ce_type", eventType)
	msg.Metadata.Set("ce_source", source)
	msg.Metadata.Set("ce_id", id.String())
	msg.Metadata.Set("ce_time", time.Now().UTC().Format(time.RFC3339))

	// CloudEvents optional attributes
	msg.Metadata.Set("ce_datacontenttype", "application/json")

	return msg, nil
}

// ParseCloudEventData extracts and unmarshals the JSON data from a Watermill message
// into the provided target struct.
func ParseCloudEventData(msg *message.Message, target any) error {
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("unmarshal event data: %w", err)
	}
	return nil
}
