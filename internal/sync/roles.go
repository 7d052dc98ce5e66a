package sync

import (
	"context"
	"fmt"

	"flamekeeper/bot/internal/chat"
)

// EnsureRoles makes every declared role exist with its declared attributes
// and returns the resolved handles keyed by role name, with the platform
// default role under chat.EveryoneKey. The default role is referenced, never
// created or edited.
//
// A create or edit failure aborts the pass; no rollback is attempted.
// Re-running converges, so re-invocation is the recovery path.
func EnsureRoles(ctx context.Context, guild chat.Guild, specs []RoleSpec) (map[string]chat.Role, error) {
	existing, err := guild.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	everyone, err := guild.EveryoneRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch default role: %w", err)
	}

	handles := map[string]chat.Role{chat.EveryoneKey: everyone}

	for _, spec := range specs {
		role, found := findRole(existing, spec.Name)
		if !found {
			role, err = guild.CreateRole(ctx, chat.Role{
				Name:        spec.Name,
				Color:       spec.Color,
				Hoist:       spec.Hoist,
				Mentionable: spec.Mentionable,
			})
			if err != nil {
				return nil, fmt.Errorf("create role %q: %w", spec.Name, err)
			}
		} else if patch, drifted := rolePatch(role, spec); drifted {
			if err := guild.EditRole(ctx, role.ID, patch); err != nil {
				return nil, fmt.Errorf("update role %q: %w", spec.Name, err)
			}
			role.Color = spec.Color
			role.Hoist = spec.Hoist
			role.Mentionable = spec.Mentionable
		}
		handles[spec.Name] = role
	}

	if len(specs) > 1 {
		if err := packRolePositions(ctx, guild, specs, handles, len(existing)); err != nil {
			return nil, err
		}
	}
	return handles, nil
}

// LookupRoles resolves handles for the declared roles without creating or
// editing anything. Roles that do not exist yet are simply absent from the
// returned map, so overwrite references to them are skipped downstream.
func LookupRoles(ctx context.Context, guild chat.Guild, specs []RoleSpec) (map[string]chat.Role, error) {
	existing, err := guild.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	everyone, err := guild.EveryoneRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch default role: %w", err)
	}
	handles := map[string]chat.Role{chat.EveryoneKey: everyone}
	for _, spec := range specs {
		if role, found := findRole(existing, spec.Name); found {
			handles[spec.Name] = role
		}
	}
	return handles, nil
}

func findRole(roles []chat.Role, name string) (chat.Role, bool) {
	for _, role := range roles {
		if role.Name == name {
			return role, true
		}
	}
	return chat.Role{}, false
}

// rolePatch computes the minimal attribute drift between live and declared.
func rolePatch(live chat.Role, spec RoleSpec) (chat.RolePatch, bool) {
	var patch chat.RolePatch
	drifted := false
	if live.Color != spec.Color {
		color := spec.Color
		patch.Color = &color
		drifted = true
	}
	if live.Hoist != spec.Hoist {
		hoist := spec.Hoist
		patch.Hoist = &hoist
		drifted = true
	}
	if live.Mentionable != spec.Mentionable {
		mentionable := spec.Mentionable
		patch.Mentionable = &mentionable
		drifted = true
	}
	return patch, drifted
}

// packRolePositions moves the declared roles contiguously near the top of the
// hierarchy in declaration order. Best effort: the platform renormalizes
// absolute positions, so only the relative order among declared roles holds.
func packRolePositions(ctx context.Context, guild chat.Guild, specs []RoleSpec, handles map[string]chat.Role, liveCount int) error {
	positions := make([]chat.RolePosition, 0, len(specs))
	for i, spec := range specs {
		role, ok := handles[spec.Name]
		if !ok {
			continue
		}
		positions = append(positions, chat.RolePosition{
			RoleID:   role.ID,
			Position: liveCount - len(specs) + i,
		})
	}
	if err := guild.SetRolePositions(ctx, positions); err != nil {
		return fmt.Errorf("reorder roles: %w", err)
	}
	return nil
}
