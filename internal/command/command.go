// Package command routes prefixed chat messages to bot command handlers.
package command

import (
	"context"
	"log"
	"strings"

	"flamekeeper/bot/internal/chat"
)

const errorReply = "🔥 The Flame flickered unexpectedly. Please try again later."

// HandlerFunc executes one command invocation. args holds the whitespace-split
// tokens after the command name.
type HandlerFunc func(ctx context.Context, msg chat.Message, args []string) error

type Router struct {
	prefix   string
	sender   chat.Sender
	handlers map[string]HandlerFunc
}

func NewRouter(prefix string, sender chat.Sender) *Router {
	if prefix == "" {
		prefix = "!"
	}
	return &Router{
		prefix:   prefix,
		sender:   sender,
		handlers: make(map[string]HandlerFunc),
	}
}

func (r *Router) Register(name string, handler HandlerFunc) {
	r.handlers[strings.ToLower(name)] = handler
}

// Dispatch inspects an incoming message and runs the matching handler.
// Messages from bots, without the prefix, or naming an unknown command are
// ignored silently. A handler error is logged and answered with a generic
// reply so chain or platform failures never leak raw errors into the channel.
func (r *Router) Dispatch(ctx context.Context, msg chat.Message) {
	if msg.AuthorIsBot || !strings.HasPrefix(msg.Content, r.prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(msg.Content, r.prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	handler, ok := r.handlers[name]
	if !ok {
		return
	}
	if err := handler(ctx, msg, fields[1:]); err != nil {
		log.Printf("command %s failed: %v", name, err)
		if err := r.sender.Send(ctx, msg.ChannelID, errorReply); err != nil {
			log.Printf("command %s: error reply failed: %v", name, err)
		}
	}
}
