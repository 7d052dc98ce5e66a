package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

const signatureHeader = "x-signature-sha256"

type HTTPServer struct {
	service       *Service
	adminAPIKey   string
	webhookSecret string
}

func NewHTTPServer(service *Service) *HTTPServer {
	return &HTTPServer{
		service:       service,
		adminAPIKey:   service.cfg.AdminAPIKey,
		webhookSecret: service.cfg.WebhookSecret,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/health" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/guardians/apply" {
		s.handleGuardianApply(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/webhooks/donation" {
		s.handleDonationWebhook(w, r)
		return
	}

	// Everything below is admin-only.
	if !s.requireAdmin(w, r) {
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/roles":
		s.handleRolesList(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/roles/create":
		s.handleRoleCreate(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/roles/assign":
		s.handleRoleMembership(w, r, true)
	case r.Method == http.MethodPost && r.URL.Path == "/api/roles/remove":
		s.handleRoleMembership(w, r, false)
	case r.Method == http.MethodGet && r.URL.Path == "/api/guardians/list":
		s.handleGuardianList(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/guardians/approve":
		s.handleGuardianApprove(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/guardians/reject":
		s.handleGuardianReject(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/sync-structure":
		s.handleSyncStructure(w, r)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// requireAdmin checks the static admin key. Constant-time comparison is used
// here and for the webhook signature alike.
func (s *HTTPServer) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("x-api-key")
	if s.adminAPIKey == "" || !hmac.Equal([]byte(key), []byte(s.adminAPIKey)) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func (s *HTTPServer) handleRolesList(w http.ResponseWriter, r *http.Request) {
	roles, err := s.service.ListRoles(r.Context())
	if err != nil {
		s.fail(w, err, "roles list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (s *HTTPServer) handleRoleCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Color       int    `json:"color"`
		Hoist       bool   `json:"hoist"`
		Mentionable bool   `json:"mentionable"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	role, err := s.service.CreateRole(r.Context(), body.Name, body.Color, body.Hoist, body.Mentionable)
	if err != nil {
		s.fail(w, err, "create role failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"role": map[string]string{"id": role.ID, "name": role.Name},
	})
}

func (s *HTTPServer) handleRoleMembership(w http.ResponseWriter, r *http.Request, add bool) {
	var body struct {
		UserID   string `json:"userId"`
		RoleName string `json:"roleName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var err error
	if add {
		err = s.service.AssignRole(r.Context(), body.UserID, body.RoleName)
	} else {
		err = s.service.RemoveRole(r.Context(), body.UserID, body.RoleName)
	}
	if err != nil {
		s.fail(w, err, "role change failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGuardianApply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DiscordID string `json:"discordId"`
		Wallet    string `json:"wallet"`
		Note      string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.service.ApplyGuardian(r.Context(), body.DiscordID, body.Wallet, body.Note); err != nil {
		s.fail(w, err, "apply failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGuardianList(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	apps, err := s.service.ListGuardians(r.Context(), status)
	if err != nil {
		s.fail(w, err, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"guardians": apps})
}

func (s *HTTPServer) handleGuardianApprove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DiscordID string `json:"discordId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.service.ApproveGuardian(r.Context(), body.DiscordID); err != nil {
		s.fail(w, err, "approve failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleGuardianReject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DiscordID string `json:"discordId"`
		Reason    string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.service.RejectGuardian(r.Context(), body.DiscordID, body.Reason); err != nil {
		s.fail(w, err, "reject failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSyncStructure(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Dry bool `json:"dry"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	actions, err := s.service.SyncStructure(r.Context(), body.Dry)
	if err != nil {
		s.fail(w, err, "sync-structure failed")
		return
	}
	if actions == nil {
		actions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "actions": actions})
}

func (s *HTTPServer) handleDonationWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !s.verifySignature(raw, r.Header.Get(signatureHeader)) {
		writeError(w, http.StatusUnauthorized, "bad signature")
		return
	}

	var body struct {
		Donor       string          `json:"donor"`
		Beneficiary string          `json:"beneficiary"`
		AmountWei   json.RawMessage `json:"amountWei"`
		TxHash      string          `json:"txHash"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	amount := strings.Trim(string(body.AmountWei), `"`)
	if err := s.service.PostDonation(r.Context(), body.Donor, body.Beneficiary, amount, body.TxHash); err != nil {
		s.fail(w, err, "failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// verifySignature checks the hex sha256 HMAC of the raw body. With no secret
// configured, verification is skipped entirely, a permissive fallback for
// local development.
func (s *HTTPServer) verifySignature(body []byte, signature string) bool {
	if s.webhookSecret == "" {
		return true
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error, fallback string) {
	status, message := mapError(err, fallback)
	if status == http.StatusInternalServerError {
		log.Printf("%s: %v", fallback, err)
	}
	writeError(w, status, message)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
