package events

import (
	"github.com/tsarna/guildlink/pkg/guildlink/bus"
)

// Streams holds one stream per event kind, plus All, which receives every
// registered event after its typed stream.
type Streams struct {
	All *bus.Stream[Event]

	MessageCreated *bus.Stream[MessageCreated]
	MessageUpdated *bus.Stream[MessageUpdated]
	MessageDeleted *bus.Stream[MessageDeleted]

	ReactionAdded   *bus.Stream[ReactionAdded]
	ReactionRemoved *bus.Stream[ReactionRemoved]

	ChannelCreated *bus.Stream[ChannelCreated]
	ChannelUpdated *bus.Stream[ChannelUpdated]
	ChannelDeleted *bus.Stream[ChannelDeleted]

	CategoryCreated *bus.Stream[CategoryCreated]
	CategoryUpdated *bus.Stream[CategoryUpdated]
	CategoryDeleted *bus.Stream[CategoryDeleted]

	GroupCreated *bus.Stream[GroupCreated]
	GroupUpdated *bus.Stream[GroupUpdated]
	GroupDeleted *bus.Stream[GroupDeleted]

	RoleCreated *bus.Stream[RoleCreated]
	RoleUpdated *bus.Stream[RoleUpdated]
	RoleDeleted *bus.Stream[RoleDeleted]

	CalendarEventRsvpUpdated *bus.Stream[CalendarEventRsvpUpdated]
	CalendarEventRsvpDeleted *bus.Stream[CalendarEventRsvpDeleted]

	MemberJoined  *bus.Stream[MemberJoined]
	MemberRemoved *bus.Stream[MemberRemoved]

	BotMembershipCreated *bus.Stream[BotMembershipCreated]
	BotMembershipDeleted *bus.Stream[BotMembershipDeleted]
}

// NewStreams creates an empty stream for every event kind.
func NewStreams(cfg bus.Config) *Streams {
	return &Streams{
		All: bus.NewStream[Event]("all", cfg),

		MessageCreated: bus.NewStream[MessageCreated](NameMessageCreated, cfg),
		MessageUpdated: bus.NewStream[MessageUpdated](NameMessageUpdated, cfg),
		MessageDeleted: bus.NewStream[MessageDeleted](NameMessageDeleted, cfg),

		ReactionAdded:   bus.NewStream[ReactionAdded](NameReactionAdded, cfg),
		ReactionRemoved: bus.NewStream[ReactionRemoved](NameReactionRemoved, cfg),

		ChannelCreated: bus.NewStream[ChannelCreated](NameChannelCreated, cfg),
		ChannelUpdated: bus.NewStream[ChannelUpdated](NameChannelUpdated, cfg),
		ChannelDeleted: bus.NewStream[ChannelDeleted](NameChannelDeleted, cfg),

		CategoryCreated: bus.NewStream[CategoryCreated](NameCategoryCreated, cfg),
		CategoryUpdated: bus.NewStream[CategoryUpdated](NameCategoryUpdated, cfg),
		CategoryDeleted: bus.NewStream[CategoryDeleted](NameCategoryDeleted, cfg),

		GroupCreated: bus.NewStream[GroupCreated](NameGroupCreated, cfg),
		GroupUpdated: bus.NewStream[GroupUpdated](NameGroupUpdated, cfg),
		GroupDeleted: bus.NewStream[GroupDeleted](NameGroupDeleted, cfg),

		RoleCreated: bus.NewStream[RoleCreated](NameRoleCreated, cfg),
		RoleUpdated: bus.NewStream[RoleUpdated](NameRoleUpdated, cfg),
		RoleDeleted: bus.NewStream[RoleDeleted](NameRoleDeleted, cfg),

		CalendarEventRsvpUpdated: bus.NewStream[CalendarEventRsvpUpdated](NameCalendarEventRsvpUpdated, cfg),
		CalendarEventRsvpDeleted: bus.NewStream[CalendarEventRsvpDeleted](NameCalendarEventRsvpDeleted, cfg),

		MemberJoined:  bus.NewStream[MemberJoined](NameMemberJoined, cfg),
		MemberRemoved: bus.NewStream[MemberRemoved](NameMemberRemoved, cfg),

		BotMembershipCreated: bus.NewStream[BotMembershipCreated](NameBotMembershipCreated, cfg),
		BotMembershipDeleted: bus.NewStream[BotMembershipDeleted](NameBotMembershipDeleted, cfg),
	}
}

// Register adds every default event kind to r, wired to these streams.
// It fails if any name is already present in r.
func (s *Streams) Register(r *Registry) error {
	registrations := []func() error{
		func() error { return Register(r, NameMessageCreated, s.MessageCreated, s.All) },
		func() error { return Register(r, NameMessageUpdated, s.MessageUpdated, s.All) },
		func() error { return Register(r, NameMessageDeleted, s.MessageDeleted, s.All) },
		func() error { return Register(r, NameReactionAdded, s.ReactionAdded, s.All) },
		func() error { return Register(r, NameReactionRemoved, s.ReactionRemoved, s.All) },
		func() error { return Register(r, NameChannelCreated, s.ChannelCreated, s.All) },
		func() error { return Register(r, NameChannelUpdated, s.ChannelUpdated, s.All) },
		func() error { return Register(r, NameChannelDeleted, s.ChannelDeleted, s.All) },
		func() error { return Register(r, NameCategoryCreated, s.CategoryCreated, s.All) },
		func() error { return Register(r, NameCategoryUpdated, s.CategoryUpdated, s.All) },
		func() error { return Register(r, NameCategoryDeleted, s.CategoryDeleted, s.All) },
		func() error { return Register(r, NameGroupCreated, s.GroupCreated, s.All) },
		func() error { return Register(r, NameGroupUpdated, s.GroupUpdated, s.All) },
		func() error { return Register(r, NameGroupDeleted, s.GroupDeleted, s.All) },
		func() error { return Register(r, NameRoleCreated, s.RoleCreated, s.All) },
		func() error { return Register(r, NameRoleUpdated, s.RoleUpdated, s.All) },
		func() error { return Register(r, NameRoleDeleted, s.RoleDeleted, s.All) },
		func() error { return Register(r, NameCalendarEventRsvpUpdated, s.CalendarEventRsvpUpdated, s.All) },
		func() error { return Register(r, NameCalendarEventRsvpDeleted, s.CalendarEventRsvpDeleted, s.All) },
		func() error { return Register(r, NameMemberJoined, s.MemberJoined, s.All) },
		func() error { return Register(r, NameMemberRemoved, s.MemberRemoved, s.All) },
		func() error { return Register(r, NameBotMembershipCreated, s.BotMembershipCreated, s.All) },
		func() error { return Register(r, NameBotMembershipDeleted, s.BotMembershipDeleted, s.All) },
	}

	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}
