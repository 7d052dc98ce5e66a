package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"flamekeeper/bot/internal/chat"
)

const gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// Gateway opcodes.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatACK = 11
)

// intents: guilds, guild messages, message content.
const gatewayIntents = 1<<0 | 1<<9 | 1<<15

type gatewayPayload struct {
	Op   int             `json:"op"`
	Type string          `json:"t,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

type messageCreate struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    struct {
		ID  string `json:"id"`
		Bot bool   `json:"bot"`
	} `json:"author"`
}

// Gateway maintains the realtime connection and forwards message-create
// events to a handler. It reconnects with backoff until ctx is cancelled.
type Gateway struct {
	token   string
	url     string
	handler func(chat.Message)
}

func NewGateway(token string, handler func(chat.Message)) *Gateway {
	return &Gateway{token: token, url: gatewayURL, handler: handler}
}

// Run blocks until ctx is cancelled. One connection attempt per iteration;
// failures back off up to a minute.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := g.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("gateway session ended: %v; reconnecting in %s", err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > time.Minute {
			backoff = time.Minute
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 22)

	var hello gatewayPayload
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   g.token,
			"intents": gatewayIntents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "flamekeeper",
				"device":  "flamekeeper",
			},
		},
	}
	if err := wsjson.Write(ctx, conn, identify); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Written by the read loop, read by the heartbeat goroutine.
	var lastSeq atomic.Int64
	heartbeatErr := make(chan error, 1)
	go func() {
		interval := time.Duration(helloData.HeartbeatInterval) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				return
			case <-ticker.C:
			}
			beat := map[string]any{"op": opHeartbeat, "d": lastSeq.Load()}
			if err := wsjson.Write(sessionCtx, conn, beat); err != nil {
				heartbeatErr <- fmt.Errorf("heartbeat: %w", err)
				return
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			return err
		default:
		}

		var payload gatewayPayload
		if err := wsjson.Read(sessionCtx, conn, &payload); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if payload.Seq != nil {
			lastSeq.Store(*payload.Seq)
		}

		switch payload.Op {
		case opHeartbeat:
			beat := map[string]any{"op": opHeartbeat, "d": lastSeq.Load()}
			if err := wsjson.Write(sessionCtx, conn, beat); err != nil {
				return fmt.Errorf("requested heartbeat: %w", err)
			}
		case opHeartbeatACK:
		case opDispatch:
			if payload.Type != "MESSAGE_CREATE" {
				continue
			}
			var mc messageCreate
			if err := json.Unmarshal(payload.Data, &mc); err != nil {
				log.Printf("gateway: malformed MESSAGE_CREATE: %v", err)
				continue
			}
			g.handler(chat.Message{
				GuildID:     mc.GuildID,
				ChannelID:   mc.ChannelID,
				AuthorID:    mc.Author.ID,
				Content:     mc.Content,
				AuthorIsBot: mc.Author.Bot,
			})
		}
	}
}
