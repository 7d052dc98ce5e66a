// Package discord adapts the platform REST and gateway APIs to the chat
// abstractions the rest of the bot works against.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"flamekeeper/bot/internal/chat"
)

const apiBase = "https://discord.com/api/v10"

// Client is a minimal REST client scoped to one guild. It implements
// chat.Guild and chat.Sender.
type Client struct {
	token      string
	guildID    string
	baseURL    string
	httpClient *http.Client
}

func NewClient(token, guildID string) *Client {
	return &Client{
		token:      token,
		guildID:    guildID,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type apiRole struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Hoist       bool   `json:"hoist"`
	Mentionable bool   `json:"mentionable"`
	Position    int    `json:"position"`
}

type apiOverwrite struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

type apiChannel struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       int            `json:"type"`
	Topic      string         `json:"topic"`
	ParentID   string         `json:"parent_id"`
	Overwrites []apiOverwrite `json:"permission_overwrites"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) Roles(ctx context.Context) ([]chat.Role, error) {
	var roles []apiRole
	if err := c.do(ctx, http.MethodGet, "/guilds/"+c.guildID+"/roles", nil, &roles); err != nil {
		return nil, err
	}
	out := make([]chat.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRole(r))
	}
	return out, nil
}

// EveryoneRole resolves the default role, whose ID always equals the guild ID.
func (c *Client) EveryoneRole(ctx context.Context) (chat.Role, error) {
	roles, err := c.Roles(ctx)
	if err != nil {
		return chat.Role{}, err
	}
	for _, role := range roles {
		if role.ID == c.guildID {
			return role, nil
		}
	}
	return chat.Role{}, fmt.Errorf("default role missing from guild %s", c.guildID)
}

func (c *Client) CreateRole(ctx context.Context, role chat.Role) (chat.Role, error) {
	body := map[string]any{
		"name":        role.Name,
		"color":       role.Color,
		"hoist":       role.Hoist,
		"mentionable": role.Mentionable,
	}
	var created apiRole
	if err := c.do(ctx, http.MethodPost, "/guilds/"+c.guildID+"/roles", body, &created); err != nil {
		return chat.Role{}, err
	}
	return toRole(created), nil
}

func (c *Client) EditRole(ctx context.Context, roleID string, patch chat.RolePatch) error {
	body := map[string]any{}
	if patch.Color != nil {
		body["color"] = *patch.Color
	}
	if patch.Hoist != nil {
		body["hoist"] = *patch.Hoist
	}
	if patch.Mentionable != nil {
		body["mentionable"] = *patch.Mentionable
	}
	if len(body) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPatch, "/guilds/"+c.guildID+"/roles/"+roleID, body, nil)
}

func (c *Client) SetRolePositions(ctx context.Context, positions []chat.RolePosition) error {
	body := make([]map[string]any, 0, len(positions))
	for _, p := range positions {
		body = append(body, map[string]any{"id": p.RoleID, "position": p.Position})
	}
	return c.do(ctx, http.MethodPatch, "/guilds/"+c.guildID+"/roles", body, nil)
}

func (c *Client) Channels(ctx context.Context) ([]chat.Channel, error) {
	var channels []apiChannel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+c.guildID+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	out := make([]chat.Channel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, toChannel(ch))
	}
	return out, nil
}

func (c *Client) CreateChannel(ctx context.Context, ch chat.Channel) (chat.Channel, error) {
	body := map[string]any{
		"name": ch.Name,
		"type": int(ch.Type),
	}
	if ch.ParentID != "" {
		body["parent_id"] = ch.ParentID
	}
	if ch.Topic != "" {
		body["topic"] = ch.Topic
	}
	if len(ch.Overwrites) > 0 {
		body["permission_overwrites"] = fromOverwrites(ch.Overwrites)
	}
	var created apiChannel
	if err := c.do(ctx, http.MethodPost, "/guilds/"+c.guildID+"/channels", body, &created); err != nil {
		return chat.Channel{}, err
	}
	return toChannel(created), nil
}

func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, map[string]any{"name": name}, nil)
}

func (c *Client) SetChannelParent(ctx context.Context, channelID, parentID string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, map[string]any{"parent_id": parentID}, nil)
}

func (c *Client) SetChannelTopic(ctx context.Context, channelID, topic string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, map[string]any{"topic": topic}, nil)
}

func (c *Client) SetChannelOverwrites(ctx context.Context, channelID string, overwrites []chat.Overwrite) error {
	body := map[string]any{"permission_overwrites": fromOverwrites(overwrites)}
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, body, nil)
}

func (c *Client) AddMemberRole(ctx context.Context, userID, roleID string) error {
	path := "/guilds/" + c.guildID + "/members/" + userID + "/roles/" + roleID
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *Client) RemoveMemberRole(ctx context.Context, userID, roleID string) error {
	path := "/guilds/" + c.guildID + "/members/" + userID + "/roles/" + roleID
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) Send(ctx context.Context, channelID, content string) error {
	body := map[string]any{"content": content}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil)
}

func (c *Client) SendEmbed(ctx context.Context, channelID string, embed chat.Embed) error {
	payload := map[string]any{
		"title":       embed.Title,
		"description": embed.Description,
		"color":       embed.Color,
	}
	if embed.Footer != "" {
		payload["footer"] = map[string]string{"text": embed.Footer}
	}
	if !embed.Timestamp.IsZero() {
		payload["timestamp"] = embed.Timestamp.UTC().Format(time.RFC3339)
	}
	body := map[string]any{"embeds": []map[string]any{payload}}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil)
}

func toRole(r apiRole) chat.Role {
	return chat.Role{
		ID:          r.ID,
		Name:        r.Name,
		Color:       r.Color,
		Hoist:       r.Hoist,
		Mentionable: r.Mentionable,
		Position:    r.Position,
	}
}

func toChannel(ch apiChannel) chat.Channel {
	out := chat.Channel{
		ID:       ch.ID,
		Name:     ch.Name,
		Type:     chat.ChannelType(ch.Type),
		Topic:    ch.Topic,
		ParentID: ch.ParentID,
	}
	for _, ow := range ch.Overwrites {
		if ow.Type != 0 {
			continue // member overwrites are not managed here
		}
		allow, _ := strconv.ParseUint(ow.Allow, 10, 64)
		deny, _ := strconv.ParseUint(ow.Deny, 10, 64)
		out.Overwrites = append(out.Overwrites, chat.Overwrite{
			RoleID: ow.ID,
			Allow:  splitMask(allow),
			Deny:   splitMask(deny),
		})
	}
	return out
}

func fromOverwrites(overwrites []chat.Overwrite) []apiOverwrite {
	out := make([]apiOverwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		out = append(out, apiOverwrite{
			ID:    ow.RoleID,
			Type:  0,
			Allow: strconv.FormatUint(foldMask(ow.Allow), 10),
			Deny:  strconv.FormatUint(foldMask(ow.Deny), 10),
		})
	}
	return out
}

func splitMask(mask uint64) []chat.Permission {
	var perms []chat.Permission
	for bit := 0; bit < 64; bit++ {
		if mask&(1<<bit) != 0 {
			perms = append(perms, chat.Permission(1<<bit))
		}
	}
	return perms
}

func foldMask(perms []chat.Permission) uint64 {
	var mask uint64
	for _, p := range perms {
		mask |= uint64(p)
	}
	return mask
}
