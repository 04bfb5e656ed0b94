package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "servers/s1/ChatMessageCreated", Topic(MessageCreated{ServerID: "s1"}))
	assert.Equal(t, "direct/ChatMessageCreated", Topic(MessageCreated{}))
	assert.Equal(t, "servers/s2/BotServerMembershipCreated", Topic(BotMembershipCreated{ServerInfo: Server{ID: "s2"}}))
}

func TestTopicFilter(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		event    Event
		want     bool
	}{
		{"empty filter matches all", nil, RoleCreated{ServerID: "s1"}, true},
		{"exact", []string{"servers/s1/RoleCreated"}, RoleCreated{ServerID: "s1"}, true},
		{"single level wildcard", []string{"servers/+/ChatMessageCreated"}, MessageCreated{ServerID: "s9"}, true},
		{"wrong kind", []string{"servers/+/ChatMessageCreated"}, MessageDeleted{ServerID: "s9"}, false},
		{"multi level wildcard", []string{"servers/s1/#"}, GroupDeleted{ServerID: "s1"}, true},
		{"other server", []string{"servers/s1/#"}, GroupDeleted{ServerID: "s2"}, false},
		{"direct", []string{"direct/#"}, MessageCreated{}, true},
		{"any of several", []string{"direct/#", "servers/s2/#"}, GroupDeleted{ServerID: "s2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTopicFilter(tt.patterns...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Matches(tt.event))
		})
	}
}

func TestTopicFilterFields(t *testing.T) {
	f, err := NewTopicFilter("servers/+server/+kind")
	require.NoError(t, err)

	fields := f.Fields(RoleUpdated{ServerID: "abc"})
	assert.Equal(t, "abc", fields["server"])
	assert.Equal(t, "RoleUpdated", fields["kind"])
}

func TestTopicFilterRejectsBadPatterns(t *testing.T) {
	_, err := NewTopicFilter("")
	assert.Error(t, err)

	_, err = NewTopicFilter("servers/#/RoleCreated")
	assert.Error(t, err)
}
