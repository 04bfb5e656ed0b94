// Package transform projects typed gateway events into generic values, for
// output and filtering outside the typed stream API.
package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amir-yaghoubi/mqttpattern"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
)

// Message is an event on its way through a transform chain. Payload starts
// as the event's generic JSON form and may be replaced by any transform.
// Fields holds the named topic wildcards captured by SelectEvents.
type Message struct {
	Topic   string
	Event   events.Event
	Payload any
	Fields  map[string]string
}

// Func transforms a message. Returning nil drops the message; returning
// false for the continue flag stops the chain after this transform.
type Func func(ctx context.Context, msg *Message) (*Message, bool)

// NewMessage wraps an event with its topic and generic payload.
func NewMessage(event events.Event) (*Message, error) {
	payload, err := ToGeneric(event)
	if err != nil {
		return nil, err
	}
	return &Message{Topic: events.Topic(event), Event: event, Payload: payload}, nil
}

// ToGeneric converts an event to the maps, slices and primitives its JSON
// encoding decodes into.
func ToGeneric(event events.Event) (any, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", event.EventName(), err)
	}

	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", event.EventName(), err)
	}
	return out, nil
}

// Apply runs transforms in order. It returns nil if any transform drops the
// message.
func Apply(ctx context.Context, msg *Message, transforms ...Func) *Message {
	for _, fn := range transforms {
		next, cont := fn(ctx, msg)
		if next == nil {
			return nil
		}
		msg = next
		if !cont {
			break
		}
	}
	return msg
}

// DropTopicPattern drops messages whose topic matches an MQTT-style pattern,
// e.g. "servers/+/ChatMessageUpdated".
func DropTopicPattern(pattern string) Func {
	return func(ctx context.Context, msg *Message) (*Message, bool) {
		if mqttpattern.Matches(pattern, msg.Topic) {
			return nil, false
		}
		return msg, true
	}
}

// SelectEvents drops messages whose event the filter does not match, and
// captures the filter's named wildcards into Fields. With the filter
// "servers/+server/#", a message from server abc gets Fields
// {"server": "abc"}. Messages carrying no event are dropped.
func SelectEvents(filter *events.TopicFilter) Func {
	return func(ctx context.Context, msg *Message) (*Message, bool) {
		if msg.Event == nil || !filter.Matches(msg.Event) {
			return nil, false
		}

		fields := filter.Fields(msg.Event)
		if fields == nil {
			return msg, true
		}
		out := *msg
		out.Fields = fields
		return &out, true
	}
}
