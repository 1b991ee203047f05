package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

const currentVersion = 1

// ActorRef names the user whose request produced an event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// DomainEvent is what services hand to Emit. Data is marshalled into the
// envelope as is.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown event type %q", e.EventType)
	case e.AggregateID == uuid.Nil:
		return errors.New("aggregate id required")
	}
	return nil
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and carried
// unchanged as the broker message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// seal wraps the event data in a fresh envelope, filling the version and
// occurrence time when the caller left them unset.
func seal(event DomainEvent, now time.Time) (PayloadEnvelope, []byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    max(event.Version, currentVersion),
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now.UTC()
	}
	raw, err := json.Marshal(env)
	return env, raw, err
}

// DecodeEnvelope parses a stored or delivered payload. Envelopes without a
// version predate the format and are rejected.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, err
	}
	if env.Version < 1 {
		return env, errors.New("envelope version missing")
	}
	return env, nil
}
