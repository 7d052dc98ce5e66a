// Package bridge forwards on-chain donation events to a chat channel. The
// binding is first-writer-wins for the process lifetime: once armed, the
// bridge delivers to exactly one channel.
package bridge

import (
	"context"
	"fmt"
	"log"
	"sync"

	"flamekeeper/bot/internal/chain"
	"flamekeeper/bot/internal/chat"
)

const (
	// BackfillBlocks is the recent-block window scanned before going live.
	BackfillBlocks = 5000
	// BackfillLimit caps how many historical donations are replayed.
	BackfillLimit = 3
)

type ArmOutcome int

const (
	// Armed means the bridge was just bound to the channel.
	Armed ArmOutcome = iota
	// AlreadyArmed means the bridge was already bound to this channel.
	AlreadyArmed
	// Conflict means the bridge is bound to a different channel and the
	// existing binding stands.
	Conflict
)

// Deduper remembers delivered event keys for a bounded window. Seen returns
// true when the key was already recorded.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
}

type Bridge struct {
	source chain.Source
	sender chat.Sender
	dedup  Deduper

	mu        sync.Mutex
	armed     bool
	channelID string
}

func New(source chain.Source, sender chat.Sender, dedup Deduper) *Bridge {
	return &Bridge{source: source, sender: sender, dedup: dedup}
}

func (b *Bridge) Armed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.armed
}

func (b *Bridge) BoundChannel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channelID
}

// Backfill returns the most recent donations from the backfill window, oldest
// first, without changing the armed state.
func (b *Bridge) Backfill(ctx context.Context) ([]chain.Donation, error) {
	latest, err := b.source.LatestBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}
	from := uint64(0)
	if latest > BackfillBlocks {
		from = latest - BackfillBlocks
	}
	donations, err := b.source.DonationsBetween(ctx, from, latest)
	if err != nil {
		return nil, fmt.Errorf("backfill: %w", err)
	}
	if len(donations) > BackfillLimit {
		donations = donations[len(donations)-BackfillLimit:]
	}
	return donations, nil
}

// Arm binds the live stream to channelID and subscribes to the source. A
// repeat call for the same channel is a no-op; a call for a different channel
// reports Conflict and leaves the original binding intact. The subscription
// lives until ctx is cancelled, in practice process termination.
func (b *Bridge) Arm(ctx context.Context, channelID string) (ArmOutcome, error) {
	b.mu.Lock()
	if b.armed {
		bound := b.channelID
		b.mu.Unlock()
		if bound == channelID {
			return AlreadyArmed, nil
		}
		return Conflict, nil
	}
	// Claim the binding before subscribing so a concurrent Arm sees it.
	b.armed = true
	b.channelID = channelID
	b.mu.Unlock()

	if err := b.source.SubscribeDonations(ctx, func(d chain.Donation) {
		b.deliver(ctx, channelID, d)
	}); err != nil {
		b.mu.Lock()
		b.armed = false
		b.channelID = ""
		b.mu.Unlock()
		return Armed, fmt.Errorf("subscribe donations: %w", err)
	}
	return Armed, nil
}

// deliver sends one donation to the bound channel. Failures are logged and
// swallowed: the subscription survives and the next event gets a fresh try.
func (b *Bridge) deliver(ctx context.Context, channelID string, d chain.Donation) {
	if b.dedup != nil && d.TxHash != "" {
		seen, err := b.dedup.Seen(ctx, d.Key())
		if err != nil {
			// Fail open: a broken dedup backend must not mute the stream.
			log.Printf("donation dedup check failed: %v", err)
		} else if seen {
			return
		}
	}
	if err := b.sender.SendEmbed(ctx, channelID, DonationEmbed(d)); err != nil {
		log.Printf("failed to send donation event: %v", err)
	}
}

// DonationEmbed formats one donation as a notification embed.
func DonationEmbed(d chain.Donation) chat.Embed {
	description := fmt.Sprintf("**Donor:** %s\n**Beneficiary:** %s\n**Amount:** %s CELO",
		d.Donor, d.Beneficiary, chain.FormatWei(d.AmountWei))
	if d.TxHash != "" {
		description += fmt.Sprintf("\n**Tx:** %s", d.TxHash)
	}
	return chat.EventEmbed("💧 Proof of Healing Recorded", description)
}
