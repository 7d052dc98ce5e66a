package sync

import (
	"sort"

	"flamekeeper/bot/internal/chat"
)

// capabilityBits maps declarative capability names to platform permissions.
// Unknown names are dropped rather than erroring; ValidateStructure is the
// place that catches declaration typos before a pass runs.
var capabilityBits = map[string]chat.Permission{
	"ViewChannel":        chat.PermViewChannel,
	"SendMessages":       chat.PermSendMessages,
	"ManageChannels":     chat.PermManageChannels,
	"ManageRoles":        chat.PermManageRoles,
	"ReadMessageHistory": chat.PermReadMessageHistory,
	"EmbedLinks":         chat.PermEmbedLinks,
	"Connect":            chat.PermConnect,
	"Speak":              chat.PermSpeak,
}

// PermissionGrants translates a {capability: allowed} map into allow/deny
// grant lists. Output order is deterministic for stable comparisons.
func PermissionGrants(caps map[string]bool) (allow, deny []chat.Permission) {
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		bit, known := capabilityBits[name]
		if !known {
			continue
		}
		if caps[name] {
			allow = append(allow, bit)
		} else {
			deny = append(deny, bit)
		}
	}
	return allow, deny
}
