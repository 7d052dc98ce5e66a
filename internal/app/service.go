package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"sort"
	"time"

	"flamekeeper/bot/internal/bridge"
	"flamekeeper/bot/internal/chain"
	"flamekeeper/bot/internal/chat"
	"flamekeeper/bot/internal/config"
	"flamekeeper/bot/internal/guardians"
	"flamekeeper/bot/internal/sync"
)

// Service wires the guild, the guardian store, and the reconcilers behind
// the operations the HTTP layer and the command router share.
type Service struct {
	cfg       config.Config
	guild     chat.Guild
	sender    chat.Sender
	store     guardians.Store
	roles     []sync.RoleSpec
	structure []sync.CategorySpec
	now       func() time.Time
}

func New(cfg config.Config, guild chat.Guild, sender chat.Sender, store guardians.Store) *Service {
	return &Service{
		cfg:       cfg,
		guild:     guild,
		sender:    sender,
		store:     store,
		roles:     sync.Roles,
		structure: sync.Structure,
		now:       time.Now,
	}
}

type RoleInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
}

func (s *Service) ListRoles(ctx context.Context) ([]RoleInfo, error) {
	roles, err := s.guild.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	out := make([]RoleInfo, 0, len(roles))
	for _, r := range roles {
		out = append(out, RoleInfo{ID: r.ID, Name: r.Name, Color: r.Color, Position: r.Position})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position > out[j].Position })
	return out, nil
}

func (s *Service) CreateRole(ctx context.Context, name string, color int, hoist, mentionable bool) (chat.Role, error) {
	if name == "" {
		return chat.Role{}, domainError(http.StatusBadRequest, "name required")
	}
	role, err := s.guild.CreateRole(ctx, chat.Role{Name: name, Color: color, Hoist: hoist, Mentionable: mentionable})
	if err != nil {
		return chat.Role{}, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}

func (s *Service) AssignRole(ctx context.Context, userID, roleName string) error {
	return s.changeMemberRole(ctx, userID, roleName, true)
}

func (s *Service) RemoveRole(ctx context.Context, userID, roleName string) error {
	return s.changeMemberRole(ctx, userID, roleName, false)
}

func (s *Service) changeMemberRole(ctx context.Context, userID, roleName string, add bool) error {
	if userID == "" || roleName == "" {
		return domainError(http.StatusBadRequest, "userId, roleName required")
	}
	role, err := s.roleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if add {
		err = s.guild.AddMemberRole(ctx, userID, role.ID)
	} else {
		err = s.guild.RemoveMemberRole(ctx, userID, role.ID)
	}
	if err != nil {
		return fmt.Errorf("change member role: %w", err)
	}
	return nil
}

func (s *Service) roleByName(ctx context.Context, name string) (chat.Role, error) {
	roles, err := s.guild.Roles(ctx)
	if err != nil {
		return chat.Role{}, fmt.Errorf("fetch roles: %w", err)
	}
	for _, r := range roles {
		if r.Name == name {
			return r, nil
		}
	}
	return chat.Role{}, domainError(http.StatusNotFound, "role not found")
}

// ApplyGuardian upserts a pending application. Re-applying while pending
// updates wallet and note but keeps the original CreatedAt; applying after a
// decision starts a fresh pending application.
func (s *Service) ApplyGuardian(ctx context.Context, actorID, wallet, note string) error {
	if actorID == "" || wallet == "" {
		return domainError(http.StatusBadRequest, "discordId and wallet required")
	}
	if !chain.IsAddress(wallet) {
		return domainError(http.StatusBadRequest, "invalid wallet address")
	}

	app := guardians.Application{
		ActorID:   actorID,
		Wallet:    wallet,
		Note:      note,
		Status:    guardians.StatusPending,
		CreatedAt: s.now(),
	}
	if existing, err := s.store.Get(ctx, actorID); err == nil && existing.Status == guardians.StatusPending {
		app.CreatedAt = existing.CreatedAt
	}
	if err := s.store.Upsert(ctx, app); err != nil {
		return fmt.Errorf("apply guardian: %w", err)
	}
	return nil
}

func (s *Service) ListGuardians(ctx context.Context, status string) ([]guardians.Application, error) {
	if status != "" && !guardians.ValidStatus(guardians.Status(status)) {
		return nil, domainError(http.StatusBadRequest, "invalid status")
	}
	apps, err := s.store.List(ctx, guardians.Status(status))
	if err != nil {
		return nil, fmt.Errorf("list guardians: %w", err)
	}
	if apps == nil {
		apps = []guardians.Application{}
	}
	return apps, nil
}

// ApproveGuardian grants the configured Guardian role and marks the pending
// application approved. Only pending applications can be decided.
func (s *Service) ApproveGuardian(ctx context.Context, actorID string) error {
	if actorID == "" {
		return domainError(http.StatusBadRequest, "discordId required")
	}
	app, err := s.store.Get(ctx, actorID)
	if err != nil || app.Status != guardians.StatusPending {
		return domainError(http.StatusNotFound, "not pending")
	}

	role, err := s.roleByName(ctx, s.cfg.GuardianRoleName)
	if err != nil {
		var domain *DomainError
		if errors.As(err, &domain) && domain.Status == http.StatusNotFound {
			return domainError(http.StatusInternalServerError, "missing role: "+s.cfg.GuardianRoleName)
		}
		return err
	}
	if err := s.guild.AddMemberRole(ctx, actorID, role.ID); err != nil {
		return fmt.Errorf("grant guardian role: %w", err)
	}

	decided, err := s.store.Transition(ctx, actorID, guardians.StatusPending, guardians.StatusApproved, s.cfg.CoreTeamRoleName, "", s.now())
	if err != nil {
		return fmt.Errorf("approve guardian: %w", err)
	}
	s.Announce(ctx, fmt.Sprintf("✅ **Guardian Approved**: <@%s> — wallet `%s`", actorID, decided.Wallet))
	return nil
}

func (s *Service) RejectGuardian(ctx context.Context, actorID, reason string) error {
	if actorID == "" {
		return domainError(http.StatusBadRequest, "discordId required")
	}
	if _, err := s.store.Transition(ctx, actorID, guardians.StatusPending, guardians.StatusRejected, s.cfg.CoreTeamRoleName, reason, s.now()); err != nil {
		return err
	}
	text := fmt.Sprintf("❌ **Guardian Rejected**: <@%s>", actorID)
	if reason != "" {
		text += " — " + reason
	}
	s.Announce(ctx, text)
	return nil
}

// SyncStructure reconciles roles and then the guild structure, returning the
// actions taken (or intended, in dry mode).
func (s *Service) SyncStructure(ctx context.Context, dry bool) ([]string, error) {
	var handles map[string]chat.Role
	var err error
	if dry {
		handles, err = sync.LookupRoles(ctx, s.guild, s.roles)
	} else {
		handles, err = sync.EnsureRoles(ctx, s.guild, s.roles)
	}
	if err != nil {
		return nil, fmt.Errorf("sync roles: %w", err)
	}
	actions, err := sync.Reconcile(ctx, s.guild, s.structure, handles, dry)
	if err != nil {
		return actions, fmt.Errorf("sync structure: %w", err)
	}
	return actions, nil
}

// PostDonation forwards a webhook-reported donation to the donations channel.
func (s *Service) PostDonation(ctx context.Context, donor, beneficiary, amountWei, txHash string) error {
	if donor == "" || beneficiary == "" || amountWei == "" {
		return domainError(http.StatusBadRequest, "missing fields")
	}
	amount, ok := new(big.Int).SetString(amountWei, 10)
	if !ok {
		return domainError(http.StatusBadRequest, "invalid amountWei")
	}
	if s.cfg.DonationChannelID == "" {
		return nil
	}
	embed := bridge.DonationEmbed(chain.Donation{
		Donor:       donor,
		Beneficiary: beneficiary,
		AmountWei:   amount,
		TxHash:      txHash,
	})
	if err := s.sender.SendEmbed(ctx, s.cfg.DonationChannelID, embed); err != nil {
		return fmt.Errorf("post donation: %w", err)
	}
	return nil
}

// Announce sends to the announcement channel, best effort. Failures are
// logged and never bubble into the calling workflow.
func (s *Service) Announce(ctx context.Context, text string) {
	if s.cfg.AnnounceChannelID == "" {
		return
	}
	if err := s.sender.Send(ctx, s.cfg.AnnounceChannelID, text); err != nil {
		log.Printf("announce failed: %v", err)
	}
}
