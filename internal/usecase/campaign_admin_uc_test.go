//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sheger-et-bot/internal/domain"
	"sheger-et-bot/internal/domain/model"
	"sheger-et-bot/internal/usecase"
)

func TestCampaignUseCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	uc := usecase.NewCampaignUseCase(f.campaigns, f.admins, newTestLogger())

	in := usecase.CampaignInput{
		Code:  "sheger10",
		Kind:  model.CampaignPercentDiscount,
		Value: dec("10"),
	}

	t.Run("should refuse non-admins", func(t *testing.T) {
		if _, err := uc.Create(ctx, 5, in); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, but got: %v", err)
		}
		if f.campaigns.Peek("SHEGER10") != nil {
			t.Error("expected nothing stored")
		}
	})

	t.Run("should create and look up a campaign", func(t *testing.T) {
		c, err := uc.Create(ctx, testAdminID, in)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if c.Code != "SHEGER10" || !c.IsActive {
			t.Errorf("unexpected campaign %+v", c)
		}
		got, ok, err := uc.Lookup(ctx, "Sheger10")
		if err != nil || !ok || got.Code != "SHEGER10" {
			t.Errorf("expected an applicable SHEGER10, got %v %v %v", got, ok, err)
		}
	})

	t.Run("should refuse a duplicate code", func(t *testing.T) {
		if _, err := uc.Create(ctx, testAdminID, in); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, but got: %v", err)
		}
	})

	t.Run("should refuse invalid input", func(t *testing.T) {
		bad := in
		bad.Code = "OVER"
		bad.Value = dec("120")
		if _, err := uc.Create(ctx, testAdminID, bad); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, but got: %v", err)
		}
	})

	t.Run("should report a deactivated campaign as not applicable", func(t *testing.T) {
		if err := uc.Deactivate(ctx, testAdminID, "sheger10"); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		_, ok, err := uc.Lookup(ctx, "SHEGER10")
		if err != nil || ok {
			t.Errorf("expected not applicable, got %v %v", ok, err)
		}
		active, _ := uc.ListActive(ctx)
		if len(active) != 0 {
			t.Errorf("expected no active campaigns, got %d", len(active))
		}
	})

	t.Run("should report unknown codes", func(t *testing.T) {
		if _, _, err := uc.Lookup(ctx, "NOPE"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, but got: %v", err)
		}
		if err := uc.Deactivate(ctx, testAdminID, "NOPE"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, but got: %v", err)
		}
	})
}

func TestAdminUseCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	uc := usecase.NewAdminUseCase(f.accounts, f.payments, f.admins, newTestLogger())
	now := time.Now()

	referralPair(f)
	f.account(3, nil)
	f.payments.Put(pendingIntent("01P", 3, now, dec("149")))
	if _, err := f.ledger().CreateIntent(ctx, 2, model.TierEnterprise, dec("999"), ""); err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if _, err := f.verifier().Verify(ctx, usecase.VerifyRequest{UserID: 2, AdminID: testAdminID}); err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}

	t.Run("should refuse non-admins", func(t *testing.T) {
		if _, err := uc.Revenue(ctx, 2, now); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, but got: %v", err)
		}
		if _, err := uc.Stats(ctx, 2, now); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, but got: %v", err)
		}
		if _, err := uc.ListPending(ctx, 2, 10); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, but got: %v", err)
		}
	})

	t.Run("should summarize revenue", func(t *testing.T) {
		rev, err := uc.Revenue(ctx, testAdminID, time.Now())
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if rev.Count != 1 || !rev.Total.Equal(dec("999")) || !rev.Last30Days.Equal(dec("999")) {
			t.Errorf("unexpected totals %+v", rev)
		}
		if rev.ByTier[model.TierEnterprise].Count != 1 {
			t.Errorf("expected one enterprise payment, got %+v", rev.ByTier)
		}
		if rev.PendingCount != 1 || !rev.PendingTotal.Equal(dec("149")) {
			t.Errorf("expected one pending 149, got %d %s", rev.PendingCount, rev.PendingTotal)
		}
	})

	t.Run("should count accounts by effective tier", func(t *testing.T) {
		st, err := uc.Stats(ctx, testAdminID, time.Now())
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if st.Total != 3 || st.ByTier[model.TierEnterprise] != 1 || st.ByTier[model.TierPro] != 1 || st.ByTier[model.TierBasic] != 1 {
			t.Errorf("unexpected stats %+v", st)
		}
		// A is on pro, so the referral on 999 pays 10%.
		if !st.BalanceOwed.Equal(dec("99.90")) {
			t.Errorf("expected 99.90 owed, got %s", st.BalanceOwed)
		}
	})

	t.Run("should list pending intents", func(t *testing.T) {
		list, err := uc.ListPending(ctx, testAdminID, 0)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(list) != 1 || list[0].ID != "01P" {
			t.Errorf("expected the one pending intent, got %v", list)
		}
	})
}
