package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

func TestErrandService_CreateNormalizesAndDefaults(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")

	price := 12.5
	location := "AQ 3000"
	errand, err := svc.Create(ctx, requester.ID, CreateErrandInput{
		Title:        "  Print poster  ",
		Description:  "A0 poster for the club fair",
		Campus:       "  SURREY ",
		PriceOffered: &price,
		Location:     &location,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if errand.ID == "" {
		t.Error("expected generated id")
	}
	if errand.Title != "Print poster" {
		t.Errorf("expected trimmed title, got %q", errand.Title)
	}
	if errand.Campus != constants.CampusSurrey {
		t.Errorf("expected normalized campus surrey, got %q", errand.Campus)
	}
	if errand.Status != constants.StatusOpen {
		t.Errorf("expected status open, got %s", errand.Status)
	}
	if errand.RunnerID != nil {
		t.Error("new errand must have no runner")
	}
	if errand.RunnerCompletion || errand.ClientCompletion {
		t.Error("new errand must have both completion flags false")
	}
	if len(errand.OfferIDs()) != 0 {
		t.Errorf("new errand must have no offers, got %v", errand.OfferIDs())
	}

	fetched, err := svc.Get(ctx, errand.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetched.Title != errand.Title || fetched.Campus != errand.Campus {
		t.Errorf("round-trip mismatch: %+v", fetched)
	}
}

func TestErrandService_CreateValidation(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")

	negative := -1.0
	past := time.Now().Add(-time.Hour)

	cases := []struct {
		name string
		in   CreateErrandInput
	}{
		{"blank title", CreateErrandInput{Title: "   ", Description: "d", Campus: "burnaby"}},
		{"blank description", CreateErrandInput{Title: "t", Description: "", Campus: "burnaby"}},
		{"unknown campus", CreateErrandInput{Title: "t", Description: "d", Campus: "kamloops"}},
		{"negative price", CreateErrandInput{Title: "t", Description: "d", Campus: "burnaby", PriceOffered: &negative}},
		{"deadline in the past", CreateErrandInput{Title: "t", Description: "d", Campus: "burnaby", ExpectedCompletionAt: &past}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, requester.ID, tc.in); !apperrors.IsStatus(err, http.StatusBadRequest) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestErrandService_EditOnlyWhileOpen(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	stranger := createTestUser(t, userRepo, "stranger")
	errand := createOpenErrand(t, svc, requester.ID)

	newTitle := "Pick up lab kit (urgent)"
	updated, err := svc.Edit(ctx, errand.ID, requester.ID, ErrandPatch{Title: &newTitle})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if updated.Title != newTitle {
		t.Errorf("expected updated title, got %q", updated.Title)
	}
	if updated.Version != errand.Version+1 {
		t.Errorf("expected version bump to %d, got %d", errand.Version+1, updated.Version)
	}

	if _, err := svc.Edit(ctx, errand.ID, stranger.ID, ErrandPatch{Title: &newTitle}); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for non-requester edit, got %v", err)
	}

	if _, err := svc.Claim(ctx, errand.ID, runner.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := svc.Edit(ctx, errand.ID, requester.ID, ErrandPatch{Title: &newTitle}); !apperrors.IsStatus(err, http.StatusConflict) {
		t.Errorf("expected invalid state for edit after claim, got %v", err)
	}
}

func TestErrandService_EditClearsOptionalFields(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")

	price := 8.0
	location := "WMC lobby"
	deadline := time.Now().Add(24 * time.Hour)
	errand, err := svc.Create(ctx, requester.ID, CreateErrandInput{
		Title:                "Return library books",
		Description:          "Three books, due today",
		Campus:               "burnaby",
		PriceOffered:         &price,
		Location:             &location,
		ExpectedCompletionAt: &deadline,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.Edit(ctx, errand.ID, requester.ID, ErrandPatch{
		ClearPriceOffered:         true,
		ClearLocation:             true,
		ClearExpectedCompletionAt: true,
	})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if updated.PriceOffered != nil {
		t.Errorf("expected price cleared, got %v", *updated.PriceOffered)
	}
	if updated.Location != nil {
		t.Errorf("expected location cleared, got %v", *updated.Location)
	}
	if updated.ExpectedCompletionAt != nil {
		t.Errorf("expected deadline cleared, got %v", *updated.ExpectedCompletionAt)
	}

	// A clear flag wins over a value set in the same patch.
	newPrice := 4.0
	updated, err = svc.Edit(ctx, errand.ID, requester.ID, ErrandPatch{
		PriceOffered:      &newPrice,
		ClearPriceOffered: true,
	})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if updated.PriceOffered != nil {
		t.Errorf("expected clear to win over set, got %v", *updated.PriceOffered)
	}
}

func TestErrandService_ClaimGuards(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	errand := createOpenErrand(t, svc, requester.ID)

	if _, err := svc.Claim(ctx, errand.ID, requester.ID); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for self-claim, got %v", err)
	}

	claimed, err := svc.Claim(ctx, errand.ID, runner.ID)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed.Status != constants.StatusClaimed || claimed.RunnerID == nil || *claimed.RunnerID != runner.ID {
		t.Errorf("unexpected claim result: %+v", claimed)
	}
	if claimed.ClaimedAt == nil {
		t.Error("expected claimedAt to be set")
	}

	other := createTestUser(t, userRepo, "other")
	if _, err := svc.Claim(ctx, errand.ID, other.ID); !apperrors.IsStatus(err, http.StatusConflict) {
		t.Errorf("expected invalid state for claim of claimed errand, got %v", err)
	}
}

func TestErrandService_UnclaimResetsClaimState(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	errand := createOpenErrand(t, svc, requester.ID)

	if _, err := svc.Claim(ctx, errand.ID, runner.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := errandRepo.MarkRunnerCompletion(ctx, errand.ID); err != nil {
		t.Fatalf("mark runner completion: %v", err)
	}

	// The runner's own attestation does not lock the claim.
	reopened, err := svc.Unclaim(ctx, errand.ID, runner.ID)
	if err != nil {
		t.Fatalf("unclaim failed: %v", err)
	}
	if reopened.Status != constants.StatusOpen {
		t.Errorf("expected status open after unclaim, got %s", reopened.Status)
	}
	if reopened.RunnerID != nil || reopened.ClaimedAt != nil {
		t.Errorf("expected claim fields reset, got runner=%v claimedAt=%v", reopened.RunnerID, reopened.ClaimedAt)
	}
	if reopened.RunnerCompletion {
		t.Error("expected runnerCompletion reset on unclaim")
	}
}

func TestErrandService_UnclaimLockedAfterClientCompletion(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	stranger := createTestUser(t, userRepo, "stranger")
	errand := createOpenErrand(t, svc, requester.ID)

	if _, err := svc.Claim(ctx, errand.ID, runner.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	if _, err := svc.Unclaim(ctx, errand.ID, stranger.ID); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for third-party unclaim, got %v", err)
	}

	if _, err := errandRepo.MarkClientCompletion(ctx, errand.ID); err != nil {
		t.Fatalf("mark client completion: %v", err)
	}
	if _, err := svc.Unclaim(ctx, errand.ID, runner.ID); !apperrors.IsStatus(err, http.StatusConflict) {
		t.Errorf("expected invalid state once requester attested completion, got %v", err)
	}
	if _, err := svc.Unclaim(ctx, errand.ID, requester.ID); !apperrors.IsStatus(err, http.StatusConflict) {
		t.Errorf("expected invalid state for requester too, got %v", err)
	}
}

func TestErrandService_DeleteRules(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")
	runner := createTestUser(t, userRepo, "runner")
	stranger := createTestUser(t, userRepo, "stranger")

	errand := createOpenErrand(t, svc, requester.ID)

	if err := svc.Delete(ctx, errand.ID, stranger.ID); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for non-requester delete, got %v", err)
	}

	if err := svc.Delete(ctx, errand.ID, requester.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	cancelled, err := svc.Get(ctx, errand.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if cancelled.Status != constants.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", cancelled.Status)
	}

	claimedErrand := createOpenErrand(t, svc, requester.ID)
	if _, err := svc.Claim(ctx, claimedErrand.ID, runner.ID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := svc.Delete(ctx, claimedErrand.ID, requester.ID); !apperrors.IsStatus(err, http.StatusForbidden) {
		t.Errorf("expected forbidden for delete of claimed errand, got %v", err)
	}
}

func TestErrandService_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	errandRepo := repository.NewErrandRepository(db)
	userRepo := repository.NewUserRepository(db)
	svc := NewErrandService(errandRepo)

	ctx := context.Background()
	requester := createTestUser(t, userRepo, "requester")

	price := 3.0
	for _, campus := range []string{"burnaby", "surrey", "burnaby"} {
		_, err := svc.Create(ctx, requester.ID, CreateErrandInput{
			Title:        "errand on " + campus,
			Description:  "details",
			Campus:       campus,
			PriceOffered: &price,
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	burnaby, err := svc.List(ctx, repository.ErrandQuery{
		Status:      constants.StatusOpen,
		Campus:      "Burnaby",
		RequesterID: requester.ID,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(burnaby) != 2 {
		t.Fatalf("expected 2 burnaby errands, got %d", len(burnaby))
	}
	for _, e := range burnaby {
		if e.Campus != constants.CampusBurnaby {
			t.Errorf("unexpected campus %q in filtered list", e.Campus)
		}
	}

	if _, err := svc.List(ctx, repository.ErrandQuery{Campus: "nowhere"}); !apperrors.IsStatus(err, http.StatusBadRequest) {
		t.Errorf("expected validation error for unknown campus filter, got %v", err)
	}
}
