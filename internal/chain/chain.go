// Package chain defines the read-only view of the Celo contracts the bot
// observes. The bot never submits transactions.
package chain

import (
	"context"
	"math/big"
)

// Donation is one DonationProcessed occurrence.
type Donation struct {
	Donor       string
	Beneficiary string
	AmountWei   *big.Int
	TxHash      string
	LogIndex    uint
	Block       uint64
}

// Key identifies a donation for delivery dedup. Transaction hash alone is not
// unique when one transaction emits multiple donation logs.
func (d Donation) Key() string {
	return d.TxHash + ":" + formatUint(uint64(d.LogIndex))
}

// Source provides historical and live access to donation events.
type Source interface {
	LatestBlock(ctx context.Context) (uint64, error)
	// DonationsBetween returns events in [from, to], oldest first.
	DonationsBetween(ctx context.Context, from, to uint64) ([]Donation, error)
	// SubscribeDonations invokes handler for every donation observed after the
	// call. Delivery stops when ctx is cancelled.
	SubscribeDonations(ctx context.Context, handler func(Donation)) error
}

// Verifier answers point queries against the verification contracts.
type Verifier interface {
	IsVerified(ctx context.Context, addr string) (bool, error)
	HealthIDBalance(ctx context.Context, addr string) (*big.Int, error)
}

func formatUint(v uint64) string {
	return new(big.Int).SetUint64(v).String()
}
