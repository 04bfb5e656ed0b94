package transform

import (
	"context"
	"fmt"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"
)

// JQ returns a Func that replaces the payload with the result of a jq query.
//
// The query sees the event's JSON form as its input, plus the variables
// $topic, $event (the event name) and $fields (the named topic wildcards
// captured by SelectEvents, or {}). For example:
//
//	{server: $fields.server, text: .message.content, kind: $event}
//
// Multiple results are collected into an array; no results drops the
// message. A runtime error is logged and the message passes through
// unchanged.
func JQ(query string, logger *zap.Logger) (Func, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq query '%s': %w", query, err)
	}

	code, err := gojq.Compile(parsed, gojq.WithVariables([]string{"$topic", "$event", "$fields"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq query '%s': %w", query, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, msg *Message) (*Message, bool) {
		var name string
		if msg.Event != nil {
			name = msg.Event.EventName()
		}

		fields := make(map[string]any, len(msg.Fields))
		for k, v := range msg.Fields {
			fields[k] = v
		}

		iter := code.RunWithContext(ctx, msg.Payload, msg.Topic, name, fields)

		var results []any
		for {
			result, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := result.(error); isErr {
				logger.Error("jq transform failed",
					zap.String("query", query),
					zap.String("topic", msg.Topic),
					zap.Error(err))
				return msg, true
			}
			results = append(results, result)
		}

		if len(results) == 0 {
			return nil, false
		}

		out := &Message{Topic: msg.Topic, Event: msg.Event, Fields: msg.Fields}
		if len(results) == 1 {
			out.Payload = results[0]
		} else {
			out.Payload = results
		}
		return out, true
	}, nil
}
