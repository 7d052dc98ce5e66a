package command

import (
	"context"
	"fmt"
	"log"

	"flamekeeper/bot/internal/bridge"
	"flamekeeper/bot/internal/chain"
	"flamekeeper/bot/internal/chat"
	"flamekeeper/bot/internal/sync"
)

// StructureSyncer runs the role and structure reconciliation and reports the
// actions taken. Satisfied by app.Service.
type StructureSyncer interface {
	SyncStructure(ctx context.Context, dry bool) ([]string, error)
}

// Impact replays recent donations into the invoking channel and arms the live
// stream there. The stream binds to the first channel that runs the command;
// later invocations elsewhere are told where it already lives.
func Impact(b *bridge.Bridge, sender chat.Sender) HandlerFunc {
	return func(ctx context.Context, msg chat.Message, _ []string) error {
		if err := sender.Send(ctx, msg.ChannelID, "💧 Listening for FlameBornEngine donations on Celo Alfajores..."); err != nil {
			return err
		}
		if b.Armed() && b.BoundChannel() != msg.ChannelID {
			return sender.Send(ctx, msg.ChannelID, "🔁 Live donation updates are already streaming in another channel.")
		}

		recent, err := b.Backfill(ctx)
		if err != nil {
			log.Printf("impact: backfill failed: %v", err)
			return sender.Send(ctx, msg.ChannelID, "🔥 Unable to read donation events right now. Please try again later.")
		}
		if len(recent) == 0 {
			if err := sender.Send(ctx, msg.ChannelID, "🕯️ The chain is quiet for now. New donations will appear here in real time."); err != nil {
				return err
			}
		} else {
			for _, d := range recent {
				if err := sender.SendEmbed(ctx, msg.ChannelID, bridge.DonationEmbed(d)); err != nil {
					return err
				}
			}
		}

		outcome, err := b.Arm(ctx, msg.ChannelID)
		if err != nil {
			log.Printf("impact: arm failed: %v", err)
			return sender.Send(ctx, msg.ChannelID, "🔥 Unable to read donation events right now. Please try again later.")
		}
		// A concurrent invocation may have bound the stream elsewhere
		// after the check above; the arm outcome is authoritative.
		if outcome == bridge.Conflict {
			return sender.Send(ctx, msg.ChannelID, "🔁 Live donation updates are already streaming in another channel.")
		}
		return sender.Send(ctx, msg.ChannelID, "🔥 Live donation stream activated.")
	}
}

// Verify reports whether a wallet holds a HealthID credential.
func Verify(verifier chain.Verifier, sender chat.Sender) HandlerFunc {
	return func(ctx context.Context, msg chat.Message, args []string) error {
		if len(args) == 0 {
			return sender.Send(ctx, msg.ChannelID, "Usage: `!verify <wallet>`")
		}
		wallet := args[0]
		if !chain.IsAddress(wallet) {
			return sender.Send(ctx, msg.ChannelID, "⚠️ That does not look like a valid wallet address.")
		}

		balance, err := verifier.HealthIDBalance(ctx, wallet)
		if err != nil {
			log.Printf("verify: balance query failed: %v", err)
			return sender.Send(ctx, msg.ChannelID, "🔥 Unable to reach the chain right now. Please try again soon.")
		}

		verified := balance.Sign() > 0
		description := fmt.Sprintf("❌ **%s** has not yet received a HealthID NFT. Invite them to complete verification.", wallet)
		color := 0xFF4500
		if verified {
			description = fmt.Sprintf("✅ **%s** holds a verified HealthID soulbound NFT. The village recognizes this healer.", wallet)
			color = 0x00FF88
		}
		return sender.SendEmbed(ctx, msg.ChannelID, chat.EventEmbedColored("🩺 Health ID Verification", description, color))
	}
}

// LinkWallet is a placeholder pending the wallet registry integration.
func LinkWallet(sender chat.Sender) HandlerFunc {
	return func(ctx context.Context, msg chat.Message, args []string) error {
		if len(args) == 0 {
			return sender.Send(ctx, msg.ChannelID, "Usage: `!linkwallet <wallet>`")
		}
		embed := chat.EventEmbed(
			"🔗 Wallet Linking Pending",
			"This scaffold reserves the `!linkwallet` command for the wallet registry integration. Plug in your preferred backend to persist wallet relationships.",
		)
		return sender.SendEmbed(ctx, msg.ChannelID, embed)
	}
}

// AssignRole is a placeholder pending holder-to-role sync.
func AssignRole(sender chat.Sender) HandlerFunc {
	return func(ctx context.Context, msg chat.Message, _ []string) error {
		embed := chat.EventEmbed(
			"🛡️ Role Sync Placeholder",
			"This command will sync HealthID holders into server roles. Configure role IDs and permissions in your deployment before enabling it for Guardians.",
		)
		return sender.SendEmbed(ctx, msg.ChannelID, embed)
	}
}

// SyncStructure reconciles roles and channels and reports the actions to the
// invoking channel, chunked to stay under the message size limit.
func SyncStructure(syncer StructureSyncer, sender chat.Sender) HandlerFunc {
	return func(ctx context.Context, msg chat.Message, args []string) error {
		dry := len(args) > 0 && args[0] == "dry"

		actions, err := syncer.SyncStructure(ctx, dry)
		if err != nil {
			return err
		}

		header := "✅ **Sync complete.**"
		if dry {
			header = "🧪 **Dry-run** (no changes):"
		}
		for _, payload := range sync.Chunk(header, actions, sync.ReportChunkSize) {
			if err := sender.Send(ctx, msg.ChannelID, payload); err != nil {
				return err
			}
		}
		return nil
	}
}
