package bridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"flamekeeper/bot/internal/chain"
	"flamekeeper/bot/internal/chat"
)

type fakeSource struct {
	latest         uint64
	donations      []chain.Donation
	subscribeCalls int
	subscribeErr   error
	queriedFrom    uint64
	queriedTo      uint64

	mu       sync.Mutex
	handlers []func(chain.Donation)
}

func (f *fakeSource) LatestBlock(context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeSource) DonationsBetween(_ context.Context, from, to uint64) ([]chain.Donation, error) {
	f.queriedFrom, f.queriedTo = from, to
	var out []chain.Donation
	for _, d := range f.donations {
		if d.Block >= from && d.Block <= to {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeSource) SubscribeDonations(_ context.Context, handler func(chain.Donation)) error {
	f.subscribeCalls++
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.mu.Lock()
	f.handlers = append(f.handlers, handler)
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) emit(d chain.Donation) {
	f.mu.Lock()
	handlers := append(([]func(chain.Donation))(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(d)
	}
}

type fakeSender struct {
	mu      sync.Mutex
	sends   []string
	embeds  []chat.Embed
	sendErr error
}

func (f *fakeSender) Send(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, channelID+": "+content)
	return f.sendErr
}

func (f *fakeSender) SendEmbed(_ context.Context, channelID string, embed chat.Embed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.embeds = append(f.embeds, embed)
	return nil
}

func (f *fakeSender) embedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.embeds)
}

func donation(block uint64, tx string) chain.Donation {
	return chain.Donation{
		Donor:       "0xd0d0",
		Beneficiary: "0xbene",
		AmountWei:   big.NewInt(1500000000000000000),
		TxHash:      tx,
		Block:       block,
	}
}

func TestArmOnce(t *testing.T) {
	src := &fakeSource{latest: 10_000}
	b := New(src, &fakeSender{}, nil)
	ctx := context.Background()

	outcome, err := b.Arm(ctx, "chan-1")
	if err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	if outcome != Armed {
		t.Fatalf("outcome = %v, want Armed", outcome)
	}

	outcome, err = b.Arm(ctx, "chan-1")
	if err != nil {
		t.Fatalf("second Arm failed: %v", err)
	}
	if outcome != AlreadyArmed {
		t.Errorf("outcome = %v, want AlreadyArmed", outcome)
	}
	if src.subscribeCalls != 1 {
		t.Errorf("subscribe called %d times, want 1", src.subscribeCalls)
	}
}

func TestArmConflictKeepsOriginalBinding(t *testing.T) {
	src := &fakeSource{latest: 10_000}
	sender := &fakeSender{}
	b := New(src, sender, nil)
	ctx := context.Background()

	if _, err := b.Arm(ctx, "chan-1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	outcome, err := b.Arm(ctx, "chan-2")
	if err != nil {
		t.Fatalf("conflicting Arm errored: %v", err)
	}
	if outcome != Conflict {
		t.Errorf("outcome = %v, want Conflict", outcome)
	}
	if got := b.BoundChannel(); got != "chan-1" {
		t.Errorf("bound channel = %q, want chan-1", got)
	}

	src.emit(donation(10_001, "0xaaa"))
	if sender.embedCount() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.embedCount())
	}
}

func TestArmSubscribeFailureDisarms(t *testing.T) {
	src := &fakeSource{latest: 10_000, subscribeErr: errors.New("rpc down")}
	b := New(src, &fakeSender{}, nil)

	if _, err := b.Arm(context.Background(), "chan-1"); err == nil {
		t.Fatal("expected subscribe error")
	}
	if b.Armed() {
		t.Error("bridge should not stay armed after subscribe failure")
	}
}

func TestBackfillWindowAndLimit(t *testing.T) {
	src := &fakeSource{latest: 20_000}
	for i := 0; i < 5; i++ {
		src.donations = append(src.donations, donation(uint64(19_000+i), fmt.Sprintf("0x%d", i)))
	}
	b := New(src, &fakeSender{}, nil)

	got, err := b.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if src.queriedFrom != 15_000 || src.queriedTo != 20_000 {
		t.Errorf("queried [%d, %d], want [15000, 20000]", src.queriedFrom, src.queriedTo)
	}
	if len(got) != BackfillLimit {
		t.Fatalf("got %d donations, want %d", len(got), BackfillLimit)
	}
	// Oldest first among the most recent three.
	if got[0].Block != 19_002 || got[2].Block != 19_004 {
		t.Errorf("unexpected order: %d..%d", got[0].Block, got[2].Block)
	}
}

func TestBackfillNearGenesis(t *testing.T) {
	src := &fakeSource{latest: 100}
	b := New(src, &fakeSender{}, nil)
	if _, err := b.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if src.queriedFrom != 0 {
		t.Errorf("queried from %d, want 0", src.queriedFrom)
	}
}

func TestDeliveryFailureKeepsSubscription(t *testing.T) {
	src := &fakeSource{latest: 10_000}
	sender := &fakeSender{sendErr: errors.New("chat down")}
	b := New(src, sender, nil)
	ctx := context.Background()

	if _, err := b.Arm(ctx, "chan-1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	src.emit(donation(10_001, "0xaaa"))
	if !b.Armed() {
		t.Error("bridge disarmed by a delivery failure")
	}

	// Next event goes through once the sender recovers.
	sender.mu.Lock()
	sender.sendErr = nil
	sender.mu.Unlock()
	src.emit(donation(10_002, "0xbbb"))
	if sender.embedCount() != 1 {
		t.Errorf("expected 1 delivery after recovery, got %d", sender.embedCount())
	}
}

func TestDedupDropsRedeliveredEvent(t *testing.T) {
	src := &fakeSource{latest: 10_000}
	sender := &fakeSender{}
	b := New(src, sender, NewMemoryDeduper())
	ctx := context.Background()

	if _, err := b.Arm(ctx, "chan-1"); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	d := donation(10_001, "0xaaa")
	src.emit(d)
	src.emit(d)
	if sender.embedCount() != 1 {
		t.Errorf("expected redelivery to be dropped, got %d sends", sender.embedCount())
	}

	// A different log index on the same transaction is a distinct event.
	other := d
	other.LogIndex = 1
	src.emit(other)
	if sender.embedCount() != 2 {
		t.Errorf("expected distinct log index to deliver, got %d sends", sender.embedCount())
	}
}

func TestMemoryDeduperExpiresWindow(t *testing.T) {
	d := NewMemoryDeduper()
	now := time.Now()
	d.now = func() time.Time { return now }

	if seen, _ := d.Seen(context.Background(), "k"); seen {
		t.Fatal("fresh key reported seen")
	}
	if seen, _ := d.Seen(context.Background(), "k"); !seen {
		t.Fatal("repeat inside window not reported seen")
	}

	now = now.Add(DedupWindow + time.Minute)
	if seen, _ := d.Seen(context.Background(), "k"); seen {
		t.Error("key outside window still reported seen")
	}
}

func TestRedisDeduper(t *testing.T) {
	s := miniredis.RunT(t)
	d, err := NewRedisDeduper("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisDeduper failed: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if seen, err := d.Seen(ctx, "0xaaa:0"); err != nil || seen {
		t.Fatalf("first Seen = (%v, %v), want (false, nil)", seen, err)
	}
	if seen, err := d.Seen(ctx, "0xaaa:0"); err != nil || !seen {
		t.Fatalf("second Seen = (%v, %v), want (true, nil)", seen, err)
	}

	s.FastForward(DedupWindow + time.Minute)
	if seen, _ := d.Seen(ctx, "0xaaa:0"); seen {
		t.Error("key should expire with the window")
	}
}

func TestDonationEmbed(t *testing.T) {
	embed := DonationEmbed(donation(1, "0xabc"))
	if !strings.Contains(embed.Description, "1.5 CELO") {
		t.Errorf("description missing formatted amount: %q", embed.Description)
	}
	if !strings.Contains(embed.Description, "**Tx:** 0xabc") {
		t.Errorf("description missing tx hash: %q", embed.Description)
	}

	noTx := DonationEmbed(chain.Donation{Donor: "a", Beneficiary: "b", AmountWei: big.NewInt(0)})
	if strings.Contains(noTx.Description, "Tx:") {
		t.Errorf("tx line should be omitted without a hash: %q", noTx.Description)
	}
}
