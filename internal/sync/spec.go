package sync

import (
	"fmt"

	"flamekeeper/bot/internal/chat"
)

// RoleSpec declares one managed role. Name is the unique key; declaration
// order determines relative position (later = higher).
type RoleSpec struct {
	Name        string
	Color       int
	Hoist       bool
	Mentionable bool
}

// ChannelSpec declares one channel. Overwrites maps a role reference
// (chat.EveryoneKey or a RoleSpec name) to a capability map.
type ChannelSpec struct {
	Name       string
	Type       chat.ChannelType
	Topic      string
	Overwrites map[string]map[string]bool
}

// CategorySpec declares one category and its children, in display order.
type CategorySpec struct {
	Name     string
	Children []ChannelSpec
}

// Roles is the declared role set for the guild.
var Roles = []RoleSpec{
	{Name: "Core Team", Color: 0xfee75c, Hoist: true, Mentionable: true},
	{Name: "Guardian", Color: 0x57f287, Hoist: true, Mentionable: true},
}

var (
	readOnly = map[string]map[string]bool{
		chat.EveryoneKey: {"ViewChannel": true, "SendMessages": false},
		"Core Team":      {"ViewChannel": true, "SendMessages": true},
	}
	coreTeamPosts = map[string]map[string]bool{
		chat.EveryoneKey: {"ViewChannel": true, "SendMessages": false},
		"Core Team":      {"SendMessages": true},
	}
)

// Structure is the declared guild layout.
var Structure = []CategorySpec{
	{
		Name: "📚 Information Hub",
		Children: []ChannelSpec{
			{Name: "📌-welcome-and-rules", Type: chat.ChannelText, Topic: "Start here. Community rules & onboarding.", Overwrites: readOnly},
			{Name: "📣-announcements", Type: chat.ChannelText, Topic: "Official announcements. Read-only for members.", Overwrites: readOnly},
			{Name: "📚-resources", Type: chat.ChannelText, Topic: "Docs, links, knowledge base."},
		},
	},
	{
		Name: "🛡️ Guardianship (First 54)",
		Children: []ChannelSpec{
			{Name: "📝-how-to-verify", Type: chat.ChannelText, Overwrites: coreTeamPosts},
			{Name: "🎯-first-54-apply", Type: chat.ChannelText},
			{Name: "♡-approved-guardians", Type: chat.ChannelText, Overwrites: coreTeamPosts},
			{Name: "❓-validator-faq", Type: chat.ChannelText, Overwrites: coreTeamPosts},
		},
	},
	{
		Name: "⚡ DAO Ops",
		Children: []ChannelSpec{
			{Name: "💡-proposals", Type: chat.ChannelText, Topic: "Draft & discuss proposals."},
			{Name: "🗳️-snapshot-feed", Type: chat.ChannelText, Topic: "Snapshot vote links & results.", Overwrites: coreTeamPosts},
			{Name: "🧮-voting-room", Type: chat.ChannelText},
			{Name: "📊-results-log", Type: chat.ChannelText, Overwrites: coreTeamPosts},
		},
	},
	{
		Name: "🌐 Community",
		Children: []ChannelSpec{
			{Name: "🌐-general", Type: chat.ChannelText},
			{Name: "🗓️-meeting-plans", Type: chat.ChannelText},
			{Name: "🎲-off-topic", Type: chat.ChannelText},
		},
	},
	{
		Name: "🔊 Voice Channels",
		Children: []ChannelSpec{
			{Name: "Lounge", Type: chat.ChannelVoice},
			{Name: "Meeting Room", Type: chat.ChannelVoice},
		},
	},
}

// ValidateStructure rejects overwrite entries that reference a role not in
// the declared set. Run at startup: an unresolvable reference would otherwise
// be skipped silently during reconciliation and the overwrite lost.
func ValidateStructure(structure []CategorySpec, roles []RoleSpec) error {
	declared := map[string]bool{chat.EveryoneKey: true}
	for _, role := range roles {
		declared[role.Name] = true
	}
	for _, category := range structure {
		for _, child := range category.Children {
			for ref := range child.Overwrites {
				if !declared[ref] {
					return fmt.Errorf("channel %q: overwrite references undeclared role %q", child.Name, ref)
				}
			}
		}
	}
	return nil
}
