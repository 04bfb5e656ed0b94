package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/guildlink/pkg/guildlink/bus"
)

const messageCreatedPayload = `{
	"serverId": "wlVr3Ggl",
	"message": {
		"id": "00000000-0000-0000-0000-000000000001",
		"type": "default",
		"serverId": "wlVr3Ggl",
		"channelId": "00000000-0000-0000-0000-0000000000aa",
		"content": "!ban user1 user2",
		"createdAt": "2021-06-15T20:15:00.706Z",
		"createdBy": "Ann6LewA"
	}
}`

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	stream := bus.NewStream[MessageCreated](NameMessageCreated, bus.Config{})

	require.NoError(t, Register(r, NameMessageCreated, stream))

	entry, ok := r.Lookup(NameMessageCreated)
	require.True(t, ok)
	assert.Equal(t, NameMessageCreated, entry.Name())

	_, ok = r.Lookup("SomethingNew")
	assert.False(t, ok)
}

func TestRegistryDuplicateFailsFast(t *testing.T) {
	r := NewRegistry()
	stream := bus.NewStream[MessageCreated](NameMessageCreated, bus.Config{})

	require.NoError(t, Register(r, NameMessageCreated, stream))

	err := Register(r, NameMessageCreated, stream)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateEvent))

	assert.Panics(t, func() {
		MustRegister(r, NameMessageCreated, stream)
	})
}

func TestRegistryRejectsIncompleteEntries(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.RegisterFunc("", DecodeJSON[MessageCreated], func(context.Context, Event) error { return nil }))
	assert.Error(t, r.RegisterFunc("X", nil, func(context.Context, Event) error { return nil }))
	assert.Error(t, Register[MessageCreated](r, "X", nil))
}

func TestEntryDecodeAndPublish(t *testing.T) {
	r := NewRegistry()
	typed := bus.NewStream[MessageCreated](NameMessageCreated, bus.Config{})
	all := bus.NewStream[Event]("all", bus.Config{})
	require.NoError(t, Register(r, NameMessageCreated, typed, all))

	var mu sync.Mutex
	var got []MessageCreated
	var gotAll []Event
	typed.Subscribe(func(ctx context.Context, ev MessageCreated) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		return nil
	})
	all.Subscribe(func(ctx context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		gotAll = append(gotAll, ev)
		return nil
	})

	entry, _ := r.Lookup(NameMessageCreated)
	event, err := entry.Decode(json.RawMessage(messageCreatedPayload))
	require.NoError(t, err)
	require.NoError(t, entry.Publish(context.Background(), event))

	require.Len(t, got, 1)
	assert.Equal(t, "wlVr3Ggl", got[0].Server())
	assert.Equal(t, "!ban user1 user2", got[0].Message.Content)
	assert.Equal(t, "Ann6LewA", got[0].Message.CreatedBy)
	require.Len(t, gotAll, 1)
	assert.Equal(t, NameMessageCreated, gotAll[0].EventName())
}

func TestEntryPublishRejectsWrongType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, Register(r, NameMessageCreated, bus.NewStream[MessageCreated](NameMessageCreated, bus.Config{})))

	entry, _ := r.Lookup(NameMessageCreated)
	err := entry.Publish(context.Background(), RoleCreated{})
	assert.Error(t, err)
}

func TestDecodeJSONErrors(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		_, err := DecodeJSON[MessageCreated](nil)
		assert.ErrorIs(t, err, ErrEmptyPayload)

		_, err = DecodeJSON[MessageCreated](json.RawMessage("null"))
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := DecodeJSON[MessageCreated](json.RawMessage(`{"message": "not an object"}`))
		assert.Error(t, err)
	})
}

func TestStreamsRegisterAllDefaults(t *testing.T) {
	streams := NewStreams(bus.Config{})
	r := NewRegistry()

	require.NoError(t, streams.Register(r))
	assert.Len(t, r.Names(), 23)
	assert.Contains(t, r.Names(), NameCalendarEventRsvpUpdated)

	// registering the same set twice is a configuration error
	assert.ErrorIs(t, streams.Register(r), ErrDuplicateEvent)
}

func TestServerlessEvents(t *testing.T) {
	ev, err := DecodeJSON[MessageCreated](json.RawMessage(`{"message":{"id":"m1","channelId":"c1","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "", ev.Server())

	bot, err := DecodeJSON[BotMembershipCreated](json.RawMessage(`{"server":{"id":"srv1","name":"Home"},"createdBy":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, "srv1", bot.Server())
}
