package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/usecase"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeDomainError maps use-case sentinels onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoPendingPayment):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("admin api request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into dst and runs struct validation.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func adminID(r *http.Request) int64 {
	id, _ := logging.AdminID(r.Context())
	return id
}

// ===== auth =====

type tokenRequest struct {
	APIKey  string `json:"api_key" validate:"required"`
	AdminID int64  `json:"admin_id" validate:"required,gt=0"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !s.auth.CheckAPIKey(req.APIKey) {
		s.log.Warn().Int64("admin_id", req.AdminID).Msg("token request with a bad api key")
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	if !s.policy.IsAdmin(req.AdminID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	tok, exp, err := s.auth.Mint(req.AdminID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok, ExpiresAt: exp})
}

// ===== payments =====

type intentResponse struct {
	ID            string           `json:"id"`
	Reference     string           `json:"reference"`
	UserID        int64            `json:"user_id"`
	Tier          model.Tier       `json:"tier"`
	Amount        decimal.Decimal  `json:"amount"`
	BillingPeriod string           `json:"billing_period"`
	Campaign      *string          `json:"campaign,omitempty"`
	Status        string           `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	ExpiresAt     time.Time        `json:"expires_at"`
	VerifiedAt    *time.Time       `json:"verified_at,omitempty"`
	VerifiedBy    *int64           `json:"verified_by,omitempty"`
	FinalAmount   *decimal.Decimal `json:"final_amount,omitempty"`
	Note          string           `json:"note,omitempty"`
}

func toIntentResponse(p *model.PaymentIntent) intentResponse {
	return intentResponse{
		ID:            p.ID,
		Reference:     p.ReferenceCode,
		UserID:        p.UserID,
		Tier:          p.RequestedTier,
		Amount:        p.RequestedAmount,
		BillingPeriod: string(p.BillingPeriod),
		Campaign:      p.CampaignCode,
		Status:        string(p.Status),
		CreatedAt:     p.CreatedAt,
		ExpiresAt:     p.ExpiresAt,
		VerifiedAt:    p.VerifiedAt,
		VerifiedBy:    p.VerifiedBy,
		FinalAmount:   p.FinalAmount,
		Note:          p.Note,
	}
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := s.admin.ListPending(r.Context(), adminID(r), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]intentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toIntentResponse(p))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []intentResponse `json:"data"`
	}{Data: out})
}

type verifyRequest struct {
	UserID int64            `json:"user_id" validate:"required,gt=0"`
	Tier   string           `json:"tier" validate:"omitempty,max=16"`
	Amount *decimal.Decimal `json:"amount"`
}

type verifyResponse struct {
	Intent         intentResponse  `json:"intent"`
	Tier           model.Tier      `json:"tier"`
	ExpiresAt      time.Time       `json:"expires_at"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	Discount       decimal.Decimal `json:"discount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Campaign       string          `json:"campaign,omitempty"`
	ReferrerID     *int64          `json:"referrer_id,omitempty"`
	ReferralPayout decimal.Decimal `json:"referral_payout"`
}

func (s *Server) verifyArgs(r *http.Request, req verifyRequest) (usecase.VerifyRequest, error) {
	vr := usecase.VerifyRequest{UserID: req.UserID, AdminID: adminID(r), OverrideAmount: req.Amount}
	if req.Tier != "" {
		t, err := model.ParseTier(req.Tier)
		if err != nil {
			return vr, err
		}
		vr.OverrideTier = &t
	}
	return vr, nil
}

func (s *Server) writeVerifyResult(w http.ResponseWriter, res *usecase.VerifyResult) {
	writeJSON(w, http.StatusOK, verifyResponse{
		Intent:         toIntentResponse(res.Intent),
		Tier:           res.Tier,
		ExpiresAt:      res.ExpiresAt,
		BaseAmount:     res.BaseAmount,
		Discount:       res.Discount,
		FinalAmount:    res.FinalAmount,
		Campaign:       res.CampaignApplied,
		ReferrerID:     res.ReferrerID,
		ReferralPayout: res.ReferralPayout,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	vr, err := s.verifyArgs(r, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.verify.Verify(r.Context(), vr)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeVerifyResult(w, res)
}

type verifyReferenceRequest struct {
	Reference string           `json:"reference" validate:"required,max=64"`
	Tier      string           `json:"tier" validate:"omitempty,max=16"`
	Amount    *decimal.Decimal `json:"amount"`
}

func (s *Server) handleVerifyReference(w http.ResponseWriter, r *http.Request) {
	var req verifyReferenceRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Reference = strings.ToUpper(strings.TrimSpace(req.Reference))
	p, err := s.payments.FindByReference(r.Context(), req.Reference)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	vr, err := s.verifyArgs(r, verifyRequest{UserID: p.UserID, Tier: req.Tier, Amount: req.Amount})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	res, err := s.verify.VerifyReference(r.Context(), req.Reference, vr)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeVerifyResult(w, res)
}

type rejectRequest struct {
	UserID int64  `json:"user_id" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.verify.Reject(r.Context(), req.UserID, adminID(r), req.Reason)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIntentResponse(p))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.payments.ExpireSweep(r.Context(), s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Expired int `json:"expired"`
	}{Expired: n})
}

// ===== reports =====

type tierRevenue struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

type revenueResponse struct {
	Total        decimal.Decimal            `json:"total"`
	Count        int                        `json:"count"`
	Last30Days   decimal.Decimal            `json:"last_30_days"`
	ByTier       map[model.Tier]tierRevenue `json:"by_tier"`
	PendingCount int                        `json:"pending_count"`
	PendingTotal decimal.Decimal            `json:"pending_total"`
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	sum, err := s.admin.Revenue(r.Context(), adminID(r), s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	byTier := make(map[model.Tier]tierRevenue, len(sum.ByTier))
	for t, v := range sum.ByTier {
		byTier[t] = tierRevenue{Count: v.Count, Sum: v.Sum}
	}
	writeJSON(w, http.StatusOK, revenueResponse{
		Total:        sum.Total,
		Count:        sum.Count,
		Last30Days:   sum.Last30Days,
		ByTier:       byTier,
		PendingCount: sum.PendingCount,
		PendingTotal: sum.PendingTotal,
	})
}

type statsResponse struct {
	Total       int                `json:"total_accounts"`
	ByTier      map[model.Tier]int `json:"by_effective_tier"`
	Active7Days int                `json:"active_7_days"`
	BalanceOwed decimal.Decimal    `json:"balance_owed"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.admin.Stats(r.Context(), adminID(r), s.now())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Total:       st.Total,
		ByTier:      st.ByTier,
		Active7Days: st.ActiveSince,
		BalanceOwed: st.BalanceOwed,
	})
}

type accountResponse struct {
	UserID        int64           `json:"user_id"`
	Username      string          `json:"username,omitempty"`
	FirstName     string          `json:"first_name,omitempty"`
	Tier          model.Tier      `json:"tier"`
	EffectiveTier model.Tier      `json:"effective_tier"`
	TierExpiresAt *time.Time      `json:"tier_expires_at,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	ReferralCode  string          `json:"referral_code"`
	ReferredBy    *int64          `json:"referred_by,omitempty"`
	Transactions  int             `json:"monthly_transactions"`
	Listings      int             `json:"monthly_listings"`
	JoinedAt      time.Time       `json:"joined_at"`
	LastActiveAt  time.Time       `json:"last_active_at"`
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	a, err := s.admin.Account(r.Context(), adminID(r), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	now := s.now()
	writeJSON(w, http.StatusOK, accountResponse{
		UserID:        a.UserID,
		Username:      a.Profile.Username,
		FirstName:     a.Profile.FirstName,
		Tier:          a.Tier,
		EffectiveTier: a.EffectiveTier(now),
		TierExpiresAt: a.TierExpiresAt,
		Balance:       a.Balance,
		TotalSpent:    a.TotalSpent,
		TotalEarned:   a.TotalEarned,
		ReferralCode:  a.ReferralCode,
		ReferredBy:    a.ReferredBy,
		Transactions:  a.Usage(model.UsageTransaction, now),
		Listings:      a.Usage(model.UsageListing, now),
		JoinedAt:      a.JoinedAt,
		LastActiveAt:  a.LastActiveAt,
	})
}

// ===== campaigns =====

type campaignRequest struct {
	Code        string          `json:"code" validate:"required,alphanum,max=32"`
	Kind        string          `json:"kind" validate:"required,oneof=percent_discount fixed_discount referral_bonus"`
	Value       decimal.Decimal `json:"value"`
	MaxUses     *int            `json:"max_uses" validate:"omitempty,gt=0"`
	StartsAt    *time.Time      `json:"starts_at"`
	EndsAt      *time.Time      `json:"ends_at"`
	Description string          `json:"description" validate:"max=200"`
}

type campaignResponse struct {
	Code        string          `json:"code"`
	Kind        string          `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MaxUses     *int            `json:"max_uses,omitempty"`
	UsedCount   int             `json:"used_count"`
	StartsAt    time.Time       `json:"starts_at"`
	EndsAt      *time.Time      `json:"ends_at,omitempty"`
	Active      bool            `json:"active"`
	Description string          `json:"description,omitempty"`
}

func toCampaignResponse(c *model.Campaign) campaignResponse {
	return campaignResponse{
		Code:        c.Code,
		Kind:        string(c.Kind),
		Value:       c.Value,
		MaxUses:     c.MaxUses,
		UsedCount:   c.UsedCount,
		StartsAt:    c.StartsAt,
		EndsAt:      c.EndsAt,
		Active:      c.IsActive,
		Description: c.Description,
	}
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := s.campaigns.ListActive(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	out := make([]campaignResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCampaignResponse(c))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []campaignResponse `json:"data"`
	}{Data: out})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := usecase.CampaignInput{
		Code:        req.Code,
		Kind:        model.CampaignKind(req.Kind),
		Value:       req.Value,
		MaxUses:     req.MaxUses,
		StartsAt:    s.now(),
		EndsAt:      req.EndsAt,
		Description: req.Description,
	}
	if req.StartsAt != nil {
		in.StartsAt = *req.StartsAt
	}
	c, err := s.campaigns.Create(r.Context(), adminID(r), in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCampaignResponse(c))
}

func (s *Server) handleDeactivateCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.campaigns.Deactivate(r.Context(), adminID(r), chi.URLParam(r, "code")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== broadcast =====

type broadcastRequest struct {
	Tier    string `json:"tier" validate:"omitempty,max=16"`
	Message string `json:"message" validate:"required,max=4096"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	var tier *model.Tier
	if req.Tier != "" {
		t, err := model.ParseTier(req.Tier)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		tier = &t
	}
	n, err := s.broadcast.Broadcast(r.Context(), adminID(r), tier, req.Message)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, struct {
		Queued int `json:"queued"`
	}{Queued: n})
}
