package events

import (
	"fmt"
	"strings"

	"github.com/amir-yaghoubi/mqttpattern"
)

// Topic returns the MQTT-style topic an event is addressed by:
// "servers/<serverId>/<EventName>", or "direct/<EventName>" for server-less
// events.
func Topic(event Event) string {
	if id := event.Server(); id != "" {
		return "servers/" + id + "/" + event.EventName()
	}
	return "direct/" + event.EventName()
}

// TopicFilter selects events whose topic matches any of a set of MQTT-style
// patterns, e.g. "servers/+/ChatMessageCreated" or "servers/abc123/#".
// An empty filter matches everything.
type TopicFilter struct {
	patterns []string
}

// NewTopicFilter validates patterns and returns a filter over them.
func NewTopicFilter(patterns ...string) (*TopicFilter, error) {
	for _, pattern := range patterns {
		if err := validatePattern(pattern); err != nil {
			return nil, err
		}
	}
	return &TopicFilter{patterns: patterns}, nil
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty topic pattern")
	}
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		if strings.HasPrefix(level, "#") && i != len(levels)-1 {
			return fmt.Errorf("invalid topic pattern %q: '#' must be the last level", pattern)
		}
	}
	return nil
}

// Matches reports whether event's topic matches the filter.
func (f *TopicFilter) Matches(event Event) bool {
	if f == nil || len(f.patterns) == 0 {
		return true
	}

	topic := Topic(event)
	for _, pattern := range f.patterns {
		if mqttpattern.Matches(pattern, topic) {
			return true
		}
	}
	return false
}

// Fields returns the named wildcards extracted by the first matching pattern,
// e.g. pattern "servers/+server/+kind" yields {"server": ..., "kind": ...}.
func (f *TopicFilter) Fields(event Event) map[string]string {
	if f == nil {
		return nil
	}

	topic := Topic(event)
	for _, pattern := range f.patterns {
		if mqttpattern.Matches(pattern, topic) {
			if mqttpattern.HasExtractions(pattern) {
				return mqttpattern.Extract(pattern, topic)
			}
			return nil
		}
	}
	return nil
}
