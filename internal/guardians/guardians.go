// Package guardians stores Guardian applications. The HTTP layer talks to the
// Store interface only; the in-memory backend is the volatile baseline and
// the postgres backend is a drop-in replacement.
package guardians

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ValidStatus reports whether s names a known application status.
func ValidStatus(s Status) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

var ErrNotFound = errors.New("application not found")

type Application struct {
	ActorID   string     `json:"discordId"`
	Wallet    string     `json:"wallet"`
	Note      string     `json:"note"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	DecidedBy string     `json:"decidedBy,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

type Store interface {
	// Upsert writes the application keyed by ActorID, replacing any
	// existing record.
	Upsert(ctx context.Context, app Application) error
	// Get returns the application for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Application, error)
	// List returns applications newest-first, filtered by status when
	// status is non-empty.
	List(ctx context.Context, status Status) ([]Application, error)
	// Transition moves id from one status to another exactly once. It
	// returns ErrNotFound when no application for id currently has status
	// from, which also makes decided applications terminal.
	Transition(ctx context.Context, id string, from, to Status, decidedBy, reason string, at time.Time) (Application, error)
}
