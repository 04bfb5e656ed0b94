package events

import "time"

// User is a platform user or bot account.
type User struct {
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	Banner    string    `json:"banner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Server is the summary of a server the bot belongs to.
type Server struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"ownerId"`
	Type             string    `json:"type,omitempty"`
	Name             string    `json:"name"`
	URL              string    `json:"url,omitempty"`
	About            string    `json:"about,omitempty"`
	Avatar           string    `json:"avatar,omitempty"`
	DefaultChannelID string    `json:"defaultChannelId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Message is a chat message. Content is the raw message text.
type Message struct {
	ID                 string     `json:"id"`
	Type               string     `json:"type"`
	ServerID           string     `json:"serverId,omitempty"`
	GroupID            string     `json:"groupId,omitempty"`
	ChannelID          string     `json:"channelId"`
	Content            string     `json:"content,omitempty"`
	ReplyMessageIDs    []string   `json:"replyMessageIds,omitempty"`
	IsPrivate          bool       `json:"isPrivate,omitempty"`
	IsSilent           bool       `json:"isSilent,omitempty"`
	IsPinned           bool       `json:"isPinned,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	CreatedBy          string     `json:"createdBy"`
	CreatedByWebhookID string     `json:"createdByWebhookId,omitempty"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// DeletedMessage identifies a message that no longer exists.
type DeletedMessage struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"serverId,omitempty"`
	ChannelID string    `json:"channelId"`
	DeletedAt time.Time `json:"deletedAt"`
	IsPrivate bool      `json:"isPrivate,omitempty"`
}

// Emote is a built-in or custom emoji.
type Emote struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	ServerID string `json:"serverId,omitempty"`
}

// Reaction is an emote added to a message.
type Reaction struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	CreatedBy string `json:"createdBy"`
	Emote     Emote  `json:"emote"`
}

// Channel is a server channel.
type Channel struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Topic      string     `json:"topic,omitempty"`
	ServerID   string     `json:"serverId"`
	GroupID    string     `json:"groupId,omitempty"`
	ParentID   string     `json:"parentId,omitempty"`
	CategoryID *int       `json:"categoryId,omitempty"`
	IsPublic   bool       `json:"isPublic,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	CreatedBy  string     `json:"createdBy"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// Category groups channels within a group.
type Category struct {
	ID        int        `json:"id"`
	ServerID  string     `json:"serverId"`
	GroupID   string     `json:"groupId"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Group is a top-level section of a server.
type Group struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"serverId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsHome      bool       `json:"isHome,omitempty"`
	IsPublic    bool       `json:"isPublic,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CreatedBy   string     `json:"createdBy"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Role is a server role.
type Role struct {
	ID          int        `json:"id"`
	ServerID    string     `json:"serverId"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	Colors      []int      `json:"colors,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	IsBase      bool       `json:"isBase,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// CalendarEventRsvp is a user's response to a calendar event.
type CalendarEventRsvp struct {
	CalendarEventID int        `json:"calendarEventId"`
	ChannelID       string     `json:"channelId"`
	ServerID        string     `json:"serverId"`
	UserID          string     `json:"userId"`
	Status          string     `json:"status"`
	CreatedBy       string     `json:"createdBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedBy       string     `json:"updatedBy,omitempty"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// Member is a user's membership in a server.
type Member struct {
	User     User      `json:"user"`
	RoleIDs  []int     `json:"roleIds"`
	Nickname string    `json:"nickname,omitempty"`
	JoinedAt time.Time `json:"joinedAt"`
	IsOwner  bool      `json:"isOwner,omitempty"`
}
