// Package chat defines the group-chat platform surface the bot depends on.
// The concrete client lives behind the Guild and Sender interfaces so the
// reconcilers and the bridge can be exercised against fakes.
package chat

import (
	"context"
	"time"
)

// EveryoneKey is the sentinel role reference for the platform's default role.
// It is only ever referenced, never created or mutated.
const EveryoneKey = "@everyone"

type ChannelType int

// Channel type discriminators use the platform's wire values.
const (
	ChannelText     ChannelType = 0
	ChannelVoice    ChannelType = 2
	ChannelCategory ChannelType = 4
)

type Role struct {
	ID          string
	Name        string
	Color       int
	Hoist       bool
	Mentionable bool
	Position    int
}

// RolePatch carries only the fields to change. Nil means leave as-is.
type RolePatch struct {
	Color       *int
	Hoist       *bool
	Mentionable *bool
}

type RolePosition struct {
	RoleID   string
	Position int
}

type Channel struct {
	ID         string
	Name       string
	Type       ChannelType
	Topic      string
	ParentID   string
	Overwrites []Overwrite
}

// Permission is a platform-native capability bit.
type Permission uint64

const (
	PermViewChannel        Permission = 1 << 10
	PermSendMessages       Permission = 1 << 11
	PermManageChannels     Permission = 1 << 4
	PermManageRoles        Permission = 1 << 28
	PermReadMessageHistory Permission = 1 << 16
	PermEmbedLinks         Permission = 1 << 14
	PermConnect            Permission = 1 << 20
	PermSpeak              Permission = 1 << 21
)

// Overwrite is a per-channel, per-role capability override.
type Overwrite struct {
	RoleID string
	Allow  []Permission
	Deny   []Permission
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Timestamp   time.Time
}

type Message struct {
	GuildID     string
	ChannelID   string
	AuthorID    string
	Content     string
	AuthorIsBot bool
}

// Guild exposes the live-state reads and corrective mutations the reconcilers
// and role workflows need. Implementations fetch fresh state on every call;
// nothing here caches across invocations.
type Guild interface {
	Roles(ctx context.Context) ([]Role, error)
	EveryoneRole(ctx context.Context) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	EditRole(ctx context.Context, roleID string, patch RolePatch) error
	SetRolePositions(ctx context.Context, positions []RolePosition) error

	Channels(ctx context.Context) ([]Channel, error)
	CreateChannel(ctx context.Context, ch Channel) (Channel, error)
	RenameChannel(ctx context.Context, channelID, name string) error
	SetChannelParent(ctx context.Context, channelID, parentID string) error
	SetChannelTopic(ctx context.Context, channelID, topic string) error
	SetChannelOverwrites(ctx context.Context, channelID string, overwrites []Overwrite) error

	AddMemberRole(ctx context.Context, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, userID, roleID string) error
}

// Sender delivers messages to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, content string) error
	SendEmbed(ctx context.Context, channelID string, embed Embed) error
}
