package command

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"flamekeeper/bot/internal/bridge"
	"flamekeeper/bot/internal/chain"
	"flamekeeper/bot/internal/chat"
)

type fakeSender struct {
	sent   []string
	embeds []chat.Embed
}

func (f *fakeSender) Send(_ context.Context, channelID, content string) error {
	f.sent = append(f.sent, channelID+"|"+content)
	return nil
}

func (f *fakeSender) SendEmbed(_ context.Context, channelID string, embed chat.Embed) error {
	f.embeds = append(f.embeds, embed)
	return nil
}

type fakeSource struct {
	latest    uint64
	donations []chain.Donation
	err       error

	// onBackfill, when set, runs inside DonationsBetween. Lets a test
	// interleave work between the backfill and the arm that follows it.
	onBackfill func()
}

func (s *fakeSource) LatestBlock(context.Context) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.latest, nil
}

func (s *fakeSource) DonationsBetween(context.Context, uint64, uint64) ([]chain.Donation, error) {
	if s.onBackfill != nil {
		s.onBackfill()
	}
	return s.donations, nil
}

func (s *fakeSource) SubscribeDonations(context.Context, func(chain.Donation)) error {
	return nil
}

type fakeVerifier struct {
	balance *big.Int
	err     error
}

func (v *fakeVerifier) IsVerified(_ context.Context, _ string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return v.balance.Sign() > 0, nil
}

func (v *fakeVerifier) HealthIDBalance(_ context.Context, _ string) (*big.Int, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.balance, nil
}

type fakeSyncer struct {
	actions []string
	err     error
	lastDry bool
}

func (s *fakeSyncer) SyncStructure(_ context.Context, dry bool) ([]string, error) {
	s.lastDry = dry
	return s.actions, s.err
}

func userMsg(channelID, content string) chat.Message {
	return chat.Message{GuildID: "g1", ChannelID: channelID, AuthorID: "u1", Content: content}
}

func TestRouterIgnoresBotsAndNonPrefixed(t *testing.T) {
	sender := &fakeSender{}
	router := NewRouter("!", sender)
	called := false
	router.Register("ping", func(context.Context, chat.Message, []string) error {
		called = true
		return nil
	})

	ctx := context.Background()
	bot := userMsg("c1", "!ping")
	bot.AuthorIsBot = true
	router.Dispatch(ctx, bot)
	router.Dispatch(ctx, userMsg("c1", "ping without prefix"))
	router.Dispatch(ctx, userMsg("c1", "!"))
	if called {
		t.Error("handler must not run for bot, unprefixed, or empty messages")
	}

	router.Dispatch(ctx, userMsg("c1", "!PING  one two"))
	if !called {
		t.Error("handler not dispatched for case-insensitive command name")
	}
}

func TestRouterUnknownCommandSilent(t *testing.T) {
	sender := &fakeSender{}
	router := NewRouter("!", sender)
	router.Dispatch(context.Background(), userMsg("c1", "!nosuchthing"))
	if len(sender.sent) != 0 {
		t.Errorf("unknown command must stay silent, got %v", sender.sent)
	}
}

func TestRouterHandlerErrorReply(t *testing.T) {
	sender := &fakeSender{}
	router := NewRouter("!", sender)
	router.Register("boom", func(context.Context, chat.Message, []string) error {
		return errors.New("kaput")
	})

	router.Dispatch(context.Background(), userMsg("c7", "!boom"))
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "c7|"+errorReply) {
		t.Errorf("expected friendly error reply, got %v", sender.sent)
	}
}

func TestRouterPassesArgs(t *testing.T) {
	router := NewRouter("!", &fakeSender{})
	var got []string
	router.Register("echo", func(_ context.Context, _ chat.Message, args []string) error {
		got = args
		return nil
	})
	router.Dispatch(context.Background(), userMsg("c1", "!echo  alpha   beta"))
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("args = %v", got)
	}
}

func TestImpactQuietChain(t *testing.T) {
	sender := &fakeSender{}
	b := bridge.New(&fakeSource{latest: 100}, sender, bridge.NewMemoryDeduper())
	handler := Impact(b, sender)

	if err := handler(context.Background(), userMsg("c1", "!impact"), nil); err != nil {
		t.Fatalf("impact: %v", err)
	}
	joined := strings.Join(sender.sent, "\n")
	if !strings.Contains(joined, "The chain is quiet for now") {
		t.Errorf("missing quiet-chain message: %v", sender.sent)
	}
	if !strings.Contains(joined, "Live donation stream activated") {
		t.Errorf("missing activation message: %v", sender.sent)
	}
	if !b.Armed() || b.BoundChannel() != "c1" {
		t.Error("bridge not armed on invoking channel")
	}
}

func TestImpactReplaysRecentDonations(t *testing.T) {
	sender := &fakeSender{}
	src := &fakeSource{latest: 100, donations: []chain.Donation{
		{Donor: "0xa", Beneficiary: "0xb", AmountWei: big.NewInt(1), TxHash: "0x1", LogIndex: 0},
		{Donor: "0xc", Beneficiary: "0xd", AmountWei: big.NewInt(2), TxHash: "0x2", LogIndex: 0},
	}}
	b := bridge.New(src, sender, bridge.NewMemoryDeduper())

	if err := Impact(b, sender)(context.Background(), userMsg("c1", "!impact"), nil); err != nil {
		t.Fatalf("impact: %v", err)
	}
	if len(sender.embeds) != 2 {
		t.Fatalf("got %d embeds, want 2", len(sender.embeds))
	}
	if !strings.Contains(sender.embeds[0].Description, "0xa") {
		t.Errorf("replay out of order: %+v", sender.embeds[0])
	}
}

func TestImpactConflictingChannel(t *testing.T) {
	sender := &fakeSender{}
	b := bridge.New(&fakeSource{latest: 100}, sender, bridge.NewMemoryDeduper())
	handler := Impact(b, sender)
	ctx := context.Background()

	if err := handler(ctx, userMsg("c1", "!impact"), nil); err != nil {
		t.Fatalf("first impact: %v", err)
	}
	sender.sent = nil

	if err := handler(ctx, userMsg("c2", "!impact"), nil); err != nil {
		t.Fatalf("second impact: %v", err)
	}
	joined := strings.Join(sender.sent, "\n")
	if !strings.Contains(joined, "already streaming in another channel") {
		t.Errorf("missing conflict message: %v", sender.sent)
	}
	if b.BoundChannel() != "c1" {
		t.Errorf("binding moved to %q", b.BoundChannel())
	}
}

func TestImpactArmLostToConcurrentChannel(t *testing.T) {
	sender := &fakeSender{}
	src := &fakeSource{latest: 100}
	b := bridge.New(src, sender, bridge.NewMemoryDeduper())
	ctx := context.Background()

	// Another channel claims the stream while this invocation is still
	// reading the backfill, after its armed-elsewhere check passed.
	src.onBackfill = func() {
		if _, err := b.Arm(ctx, "c-other"); err != nil {
			t.Errorf("competing arm: %v", err)
		}
	}

	if err := Impact(b, sender)(ctx, userMsg("c1", "!impact"), nil); err != nil {
		t.Fatalf("impact: %v", err)
	}
	joined := strings.Join(sender.sent, "\n")
	if !strings.Contains(joined, "already streaming in another channel") {
		t.Errorf("missing conflict message: %v", sender.sent)
	}
	if strings.Contains(joined, "Live donation stream activated") {
		t.Errorf("lost arm must not claim activation: %v", sender.sent)
	}
	if b.BoundChannel() != "c-other" {
		t.Errorf("binding = %q, want c-other", b.BoundChannel())
	}
}

func TestImpactChainFailure(t *testing.T) {
	sender := &fakeSender{}
	b := bridge.New(&fakeSource{err: fmt.Errorf("rpc down")}, sender, bridge.NewMemoryDeduper())

	if err := Impact(b, sender)(context.Background(), userMsg("c1", "!impact"), nil); err != nil {
		t.Fatalf("impact should degrade gracefully: %v", err)
	}
	joined := strings.Join(sender.sent, "\n")
	if !strings.Contains(joined, "Unable to read donation events") {
		t.Errorf("missing failure message: %v", sender.sent)
	}
	if b.Armed() {
		t.Error("bridge must stay disarmed after a failed backfill")
	}
}

func TestVerifyUsageAndValidation(t *testing.T) {
	sender := &fakeSender{}
	handler := Verify(&fakeVerifier{balance: big.NewInt(0)}, sender)
	ctx := context.Background()

	handler(ctx, userMsg("c1", "!verify"), nil)
	if !strings.Contains(sender.sent[0], "Usage:") {
		t.Errorf("missing usage reply: %v", sender.sent)
	}

	handler(ctx, userMsg("c1", "!verify nope"), []string{"nope"})
	if !strings.Contains(sender.sent[1], "valid wallet address") {
		t.Errorf("missing validation reply: %v", sender.sent)
	}
}

func TestVerifyOutcomes(t *testing.T) {
	wallet := "0x52908400098527886e0f7030069857d2e4169ee7"
	ctx := context.Background()

	sender := &fakeSender{}
	Verify(&fakeVerifier{balance: big.NewInt(1)}, sender)(ctx, userMsg("c1", ""), []string{wallet})
	if len(sender.embeds) != 1 || sender.embeds[0].Color != 0x00FF88 {
		t.Errorf("verified embed = %+v", sender.embeds)
	}
	if !strings.Contains(sender.embeds[0].Description, "verified HealthID") {
		t.Errorf("verified description = %q", sender.embeds[0].Description)
	}

	sender = &fakeSender{}
	Verify(&fakeVerifier{balance: big.NewInt(0)}, sender)(ctx, userMsg("c1", ""), []string{wallet})
	if len(sender.embeds) != 1 || sender.embeds[0].Color != 0xFF4500 {
		t.Errorf("unverified embed = %+v", sender.embeds)
	}

	sender = &fakeSender{}
	Verify(&fakeVerifier{err: errors.New("rpc down")}, sender)(ctx, userMsg("c1", ""), []string{wallet})
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Unable to reach the chain") {
		t.Errorf("chain failure reply = %v", sender.sent)
	}
}

func TestSyncStructureCommand(t *testing.T) {
	sender := &fakeSender{}
	syncer := &fakeSyncer{actions: []string{"created category General", "created channel general"}}

	if err := SyncStructure(syncer, sender)(context.Background(), userMsg("c1", ""), nil); err != nil {
		t.Fatalf("syncstructure: %v", err)
	}
	if syncer.lastDry {
		t.Error("dry must default to false")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("got %d payloads", len(sender.sent))
	}
	if !strings.HasPrefix(sender.sent[0], "c1|✅ **Sync complete.**") {
		t.Errorf("payload = %q", sender.sent[0])
	}
	if !strings.Contains(sender.sent[0], "created channel general") {
		t.Errorf("actions missing from report: %q", sender.sent[0])
	}
}

func TestSyncStructureDryRun(t *testing.T) {
	sender := &fakeSender{}
	syncer := &fakeSyncer{actions: []string{"would create category General"}}

	SyncStructure(syncer, sender)(context.Background(), userMsg("c1", ""), []string{"dry"})
	if !syncer.lastDry {
		t.Error("dry argument not honored")
	}
	if !strings.Contains(sender.sent[0], "🧪 **Dry-run** (no changes):") {
		t.Errorf("payload = %q", sender.sent[0])
	}
}

func TestSyncStructureErrorBubblesToRouter(t *testing.T) {
	sender := &fakeSender{}
	syncer := &fakeSyncer{err: errors.New("guild unavailable")}
	router := NewRouter("!", sender)
	router.Register("syncstructure", SyncStructure(syncer, sender))

	router.Dispatch(context.Background(), userMsg("c1", "!syncstructure"))
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], errorReply) {
		t.Errorf("expected friendly reply, got %v", sender.sent)
	}
}
