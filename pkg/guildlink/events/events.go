// Package events defines the typed gateway events, the registry that maps
// wire event names to decoders, and the per-client set of event streams.
package events

// Event is implemented by every typed gateway event. Events are decoded once
// and never mutated, so a single value may be shared by all subscribers.
type Event interface {
	// EventName is the wire name carried in the frame's "t" field.
	EventName() string
	// Server is the id of the server the event belongs to, or "" for
	// server-less events.
	Server() string
}

// Wire names of the events registered by default.
const (
	NameMessageCreated           = "ChatMessageCreated"
	NameMessageUpdated           = "ChatMessageUpdated"
	NameMessageDeleted           = "ChatMessageDeleted"
	NameReactionAdded            = "ChannelMessageReactionCreated"
	NameReactionRemoved          = "ChannelMessageReactionDeleted"
	NameChannelCreated           = "ServerChannelCreated"
	NameChannelUpdated           = "ServerChannelUpdated"
	NameChannelDeleted           = "ServerChannelDeleted"
	NameCategoryCreated          = "CategoryCreated"
	NameCategoryUpdated          = "CategoryUpdated"
	NameCategoryDeleted          = "CategoryDeleted"
	NameGroupCreated             = "GroupCreated"
	NameGroupUpdated             = "GroupUpdated"
	NameGroupDeleted             = "GroupDeleted"
	NameRoleCreated              = "RoleCreated"
	NameRoleUpdated              = "RoleUpdated"
	NameRoleDeleted              = "RoleDeleted"
	NameCalendarEventRsvpUpdated = "CalendarEventRsvpUpdated"
	NameCalendarEventRsvpDeleted = "CalendarEventRsvpDeleted"
	NameMemberJoined             = "ServerMemberJoined"
	NameMemberRemoved            = "ServerMemberRemoved"
	NameBotMembershipCreated     = "BotServerMembershipCreated"
	NameBotMembershipDeleted     = "BotServerMembershipDeleted"
)

// Messages

type MessageCreated struct {
	ServerID string  `json:"serverId,omitempty"`
	Message  Message `json:"message"`
}

func (MessageCreated) EventName() string { return NameMessageCreated }
func (e MessageCreated) Server() string  { return e.ServerID }

type MessageUpdated struct {
	ServerID string  `json:"serverId,omitempty"`
	Message  Message `json:"message"`
}

func (MessageUpdated) EventName() string { return NameMessageUpdated }
func (e MessageUpdated) Server() string  { return e.ServerID }

type MessageDeleted struct {
	ServerID string         `json:"serverId,omitempty"`
	Message  DeletedMessage `json:"message"`
}

func (MessageDeleted) EventName() string { return NameMessageDeleted }
func (e MessageDeleted) Server() string  { return e.ServerID }

// Reactions

type ReactionAdded struct {
	ServerID string   `json:"serverId,omitempty"`
	Reaction Reaction `json:"reaction"`
}

func (ReactionAdded) EventName() string { return NameReactionAdded }
func (e ReactionAdded) Server() string  { return e.ServerID }

type ReactionRemoved struct {
	ServerID string   `json:"serverId,omitempty"`
	Reaction Reaction `json:"reaction"`
}

func (ReactionRemoved) EventName() string { return NameReactionRemoved }
func (e ReactionRemoved) Server() string  { return e.ServerID }

// Channel lifecycle

type ChannelCreated struct {
	ServerID string  `json:"serverId"`
	Channel  Channel `json:"channel"`
}

func (ChannelCreated) EventName() string { return NameChannelCreated }
func (e ChannelCreated) Server() string  { return e.ServerID }

type ChannelUpdated struct {
	ServerID string  `json:"serverId"`
	Channel  Channel `json:"channel"`
}

func (ChannelUpdated) EventName() string { return NameChannelUpdated }
func (e ChannelUpdated) Server() string  { return e.ServerID }

type ChannelDeleted struct {
	ServerID string  `json:"serverId"`
	Channel  Channel `json:"channel"`
}

func (ChannelDeleted) EventName() string { return NameChannelDeleted }
func (e ChannelDeleted) Server() string  { return e.ServerID }

// Category lifecycle

type CategoryCreated struct {
	ServerID string   `json:"serverId"`
	Category Category `json:"category"`
}

func (CategoryCreated) EventName() string { return NameCategoryCreated }
func (e CategoryCreated) Server() string  { return e.ServerID }

type CategoryUpdated struct {
	ServerID string   `json:"serverId"`
	Category Category `json:"category"`
}

func (CategoryUpdated) EventName() string { return NameCategoryUpdated }
func (e CategoryUpdated) Server() string  { return e.ServerID }

type CategoryDeleted struct {
	ServerID string   `json:"serverId"`
	Category Category `json:"category"`
}

func (CategoryDeleted) EventName() string { return NameCategoryDeleted }
func (e CategoryDeleted) Server() string  { return e.ServerID }

// Group lifecycle

type GroupCreated struct {
	ServerID string `json:"serverId"`
	Group    Group  `json:"group"`
}

func (GroupCreated) EventName() string { return NameGroupCreated }
func (e GroupCreated) Server() string  { return e.ServerID }

type GroupUpdated struct {
	ServerID string `json:"serverId"`
	Group    Group  `json:"group"`
}

func (GroupUpdated) EventName() string { return NameGroupUpdated }
func (e GroupUpdated) Server() string  { return e.ServerID }

type GroupDeleted struct {
	ServerID string `json:"serverId"`
	Group    Group  `json:"group"`
}

func (GroupDeleted) EventName() string { return NameGroupDeleted }
func (e GroupDeleted) Server() string  { return e.ServerID }

// Role lifecycle

type RoleCreated struct {
	ServerID string `json:"serverId"`
	Role     Role   `json:"role"`
}

func (RoleCreated) EventName() string { return NameRoleCreated }
func (e RoleCreated) Server() string  { return e.ServerID }

type RoleUpdated struct {
	ServerID string `json:"serverId"`
	Role     Role   `json:"role"`
}

func (RoleUpdated) EventName() string { return NameRoleUpdated }
func (e RoleUpdated) Server() string  { return e.ServerID }

type RoleDeleted struct {
	ServerID string `json:"serverId"`
	Role     Role   `json:"role"`
}

func (RoleDeleted) EventName() string { return NameRoleDeleted }
func (e RoleDeleted) Server() string  { return e.ServerID }

// Calendar RSVPs

type CalendarEventRsvpUpdated struct {
	ServerID string            `json:"serverId"`
	Rsvp     CalendarEventRsvp `json:"calendarEventRsvp"`
}

func (CalendarEventRsvpUpdated) EventName() string { return NameCalendarEventRsvpUpdated }
func (e CalendarEventRsvpUpdated) Server() string  { return e.ServerID }

type CalendarEventRsvpDeleted struct {
	ServerID string            `json:"serverId"`
	Rsvp     CalendarEventRsvp `json:"calendarEventRsvp"`
}

func (CalendarEventRsvpDeleted) EventName() string { return NameCalendarEventRsvpDeleted }
func (e CalendarEventRsvpDeleted) Server() string  { return e.ServerID }

// Membership

type MemberJoined struct {
	ServerID    string `json:"serverId"`
	Member      Member `json:"member"`
	MemberCount int    `json:"serverMemberCount,omitempty"`
}

func (MemberJoined) EventName() string { return NameMemberJoined }
func (e MemberJoined) Server() string  { return e.ServerID }

type MemberRemoved struct {
	ServerID string `json:"serverId"`
	UserID   string `json:"userId"`
	IsKick   bool   `json:"isKick,omitempty"`
	IsBan    bool   `json:"isBan,omitempty"`
}

func (MemberRemoved) EventName() string { return NameMemberRemoved }
func (e MemberRemoved) Server() string  { return e.ServerID }

type BotMembershipCreated struct {
	ServerInfo Server `json:"server"`
	CreatedBy  string `json:"createdBy"`
}

func (BotMembershipCreated) EventName() string { return NameBotMembershipCreated }
func (e BotMembershipCreated) Server() string  { return e.ServerInfo.ID }

type BotMembershipDeleted struct {
	ServerInfo Server `json:"server"`
	DeletedBy  string `json:"deletedBy"`
}

func (BotMembershipDeleted) EventName() string { return NameBotMembershipDeleted }
func (e BotMembershipDeleted) Server() string  { return e.ServerInfo.ID }
