package sync

import (
	"context"
	"fmt"
	"sort"

	"flamekeeper/bot/internal/chat"
)

// Reconcile walks the declared structure in order and applies the minimal
// corrective actions to make live state match, returning a human-readable
// line per action. With dry set, intended actions are reported and nothing is
// mutated, except that children of a not-yet-existing category cannot be
// diffed and are skipped for that pass (a documented dry-run limitation).
//
// Matching is by normalized name + kind; channels are matched guild-wide, so
// a same-named channel parked under the wrong category shows up as a parent
// mismatch rather than a duplicate. A mid-pass failure aborts the remaining
// work and leaves applied actions in place; re-running converges.
func Reconcile(ctx context.Context, guild chat.Guild, structure []CategorySpec, roles map[string]chat.Role, dry bool) ([]string, error) {
	channels, err := guild.Channels(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch channels: %w", err)
	}

	var report []string
	for _, category := range structure {
		lines, err := reconcileCategory(ctx, guild, channels, category, roles, dry)
		report = append(report, lines...)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func reconcileCategory(ctx context.Context, guild chat.Guild, channels []chat.Channel, category CategorySpec, roles map[string]chat.Role, dry bool) ([]string, error) {
	var report []string

	parent, found := findChannel(channels, category.Name, chat.ChannelCategory)
	switch {
	case !found && dry:
		report = append(report, fmt.Sprintf("would create category %s", category.Name))
		// Children cannot be diffed against a category that does not exist.
		return report, nil
	case !found:
		created, err := guild.CreateChannel(ctx, chat.Channel{Name: category.Name, Type: chat.ChannelCategory})
		if err != nil {
			return report, fmt.Errorf("create category %q: %w", category.Name, err)
		}
		parent = created
		report = append(report, fmt.Sprintf("created category %s", category.Name))
	case parent.Name != category.Name:
		if !dry {
			if err := guild.RenameChannel(ctx, parent.ID, category.Name); err != nil {
				return report, fmt.Errorf("rename category %q: %w", parent.Name, err)
			}
		}
		report = append(report, action(dry, "rename", fmt.Sprintf("category %s to %s", parent.Name, category.Name)))
	default:
		report = append(report, fmt.Sprintf("category ok: %s", category.Name))
	}

	for _, child := range category.Children {
		lines, err := reconcileChannel(ctx, guild, channels, child, parent, roles, dry)
		report = append(report, lines...)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func reconcileChannel(ctx context.Context, guild chat.Guild, channels []chat.Channel, spec ChannelSpec, parent chat.Channel, roles map[string]chat.Role, dry bool) ([]string, error) {
	var report []string

	live, found := findChannel(channels, spec.Name, spec.Type)
	if !found {
		if dry {
			report = append(report, fmt.Sprintf("would create channel %s", spec.Name))
			return report, nil
		}
		create := chat.Channel{Name: spec.Name, Type: spec.Type, ParentID: parent.ID}
		if spec.Type == chat.ChannelText {
			create.Topic = spec.Topic
		}
		created, err := guild.CreateChannel(ctx, create)
		if err != nil {
			return report, fmt.Errorf("create channel %q: %w", spec.Name, err)
		}
		live = created
		report = append(report, fmt.Sprintf("created channel %s", spec.Name))
	} else {
		if live.Name != spec.Name {
			if !dry {
				if err := guild.RenameChannel(ctx, live.ID, spec.Name); err != nil {
					return report, fmt.Errorf("rename channel %q: %w", live.Name, err)
				}
			}
			report = append(report, action(dry, "rename", fmt.Sprintf("channel %s to %s", live.Name, spec.Name)))
		}
		if live.ParentID != parent.ID {
			if !dry {
				if err := guild.SetChannelParent(ctx, live.ID, parent.ID); err != nil {
					return report, fmt.Errorf("move channel %q: %w", spec.Name, err)
				}
			}
			report = append(report, action(dry, "move", fmt.Sprintf("channel %s to %s", spec.Name, parent.Name)))
		}
		if spec.Type == chat.ChannelText && spec.Topic != "" && live.Topic != spec.Topic {
			if !dry {
				if err := guild.SetChannelTopic(ctx, live.ID, spec.Topic); err != nil {
					return report, fmt.Errorf("set topic for %q: %w", spec.Name, err)
				}
			}
			report = append(report, action(dry, "set", fmt.Sprintf("topic for %s", spec.Name)))
		}
	}

	if len(spec.Overwrites) == 0 {
		return report, nil
	}

	declared := resolveOverwrites(spec.Overwrites, roles)
	if len(declared) > 0 && !overwritesEqual(live.Overwrites, declared) {
		if !dry {
			// Full replace: any live overwrite missing from the declared
			// set is removed, not merged around.
			if err := guild.SetChannelOverwrites(ctx, live.ID, declared); err != nil {
				return report, fmt.Errorf("set overwrites for %q: %w", spec.Name, err)
			}
		}
		report = append(report, action(dry, "set", fmt.Sprintf("overwrites for %s", spec.Name)))
	}
	return report, nil
}

func action(dry bool, verb, rest string) string {
	if dry {
		return fmt.Sprintf("would %s %s", verb, rest)
	}
	past := map[string]string{"rename": "renamed", "move": "moved", "set": "set"}[verb]
	return fmt.Sprintf("%s %s", past, rest)
}

func findChannel(channels []chat.Channel, name string, kind chat.ChannelType) (chat.Channel, bool) {
	want := Normalize(name)
	for _, ch := range channels {
		if ch.Type == kind && Normalize(ch.Name) == want {
			return ch, true
		}
	}
	return chat.Channel{}, false
}

// resolveOverwrites turns declared role references into concrete overwrites.
// Unresolvable references are skipped; ValidateStructure catches those at
// load time, this guards against roles vanishing between passes.
func resolveOverwrites(declared map[string]map[string]bool, roles map[string]chat.Role) []chat.Overwrite {
	refs := make([]string, 0, len(declared))
	for ref := range declared {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	var out []chat.Overwrite
	for _, ref := range refs {
		role, ok := roles[ref]
		if !ok {
			continue
		}
		allow, deny := PermissionGrants(declared[ref])
		out = append(out, chat.Overwrite{RoleID: role.ID, Allow: allow, Deny: deny})
	}
	return out
}

func overwritesEqual(a, b []chat.Overwrite) bool {
	if len(a) != len(b) {
		return false
	}
	type masks struct{ allow, deny uint64 }
	index := func(set []chat.Overwrite) map[string]masks {
		m := make(map[string]masks, len(set))
		for _, ow := range set {
			entry := masks{}
			for _, p := range ow.Allow {
				entry.allow |= uint64(p)
			}
			for _, p := range ow.Deny {
				entry.deny |= uint64(p)
			}
			m[ow.RoleID] = entry
		}
		return m
	}
	am, bm := index(a), index(b)
	if len(am) != len(bm) {
		return false
	}
	for id, entry := range am {
		if bm[id] != entry {
			return false
		}
	}
	return true
}
