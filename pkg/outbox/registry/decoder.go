package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campuscart/marketplace-backend/pkg/enums"
)

// ErrNoDecoder is returned for an event type and version nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

type decoderFunc func(payload json.RawMessage) (any, error)

type schemaVersion struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder.
// It is filled before consumers start and only read afterwards.
type DecoderRegistry struct {
	decoders map[schemaVersion]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[schemaVersion]decoderFunc{}}
}

// NewConsumerDecoders registers the v1 decoder of every catalogued event.
func NewConsumerDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, entry := range catalog {
		reg.Register(entry.eventType, 1, decodeInto(entry.payload))
	}
	return reg
}

func decodeInto(factory func() any) decoderFunc {
	return func(payload json.RawMessage) (any, error) {
		target := factory()
		return target, json.Unmarshal(payload, target)
	}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.decoders[schemaVersion{eventType, version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	decode, ok := r.decoders[schemaVersion{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	out, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
	}
	return out, nil
}
