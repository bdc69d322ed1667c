package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	model "campus-errands.com/campus-errands/internal/models"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

// ErrandService owns the errand lifecycle: creation, edits while open, the
// direct claim path, unclaiming and soft deletion.
type ErrandService struct {
	errands *repository.ErrandRepository
}

func NewErrandService(errands *repository.ErrandRepository) *ErrandService {
	return &ErrandService{errands: errands}
}

type CreateErrandInput struct {
	Title                string
	Description          string
	Campus               string
	PriceOffered         *float64
	Location             *string
	ExpectedCompletionAt *time.Time
	Media                []string
}

// ErrandPatch enumerates the fields a requester may change while the errand
// is still open. Identity, requester and creation time are not expressible
// here and therefore immutable. The Clear flags reset an optional field back
// to null; a clear flag wins over a value set in the same patch.
type ErrandPatch struct {
	Title                     *string
	Description               *string
	Campus                    *string
	PriceOffered              *float64
	ClearPriceOffered         bool
	Location                  *string
	ClearLocation             bool
	ExpectedCompletionAt      *time.Time
	ClearExpectedCompletionAt bool
	Media                     []string
}

func (s *ErrandService) Create(ctx context.Context, requesterID string, in CreateErrandInput) (*model.Errand, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperrors.Validation("description is required")
	}

	campus, err := normalizeCampus(in.Campus)
	if err != nil {
		return nil, err
	}
	if err := validatePrice(in.PriceOffered); err != nil {
		return nil, err
	}
	if err := validateExpectedCompletion(in.ExpectedCompletionAt); err != nil {
		return nil, err
	}

	errand := &model.Errand{
		RequesterID:          requesterID,
		Title:                title,
		Description:          description,
		Campus:               campus,
		PriceOffered:         in.PriceOffered,
		Location:             in.Location,
		ExpectedCompletionAt: in.ExpectedCompletionAt,
		Media:                encodeStrings(in.Media),
	}

	if err := s.errands.Create(ctx, errand); err != nil {
		return nil, err
	}
	return errand, nil
}

func (s *ErrandService) Get(ctx context.Context, id string) (*model.Errand, error) {
	return s.errands.FindByID(ctx, id)
}

func (s *ErrandService) List(ctx context.Context, q repository.ErrandQuery) ([]model.Errand, error) {
	if q.Campus != "" {
		campus, err := normalizeCampus(q.Campus)
		if err != nil {
			return nil, err
		}
		q.Campus = campus
	}
	return s.errands.List(ctx, q)
}

// Edit applies a patch to a still-open errand. Claimed errands are read-only
// to the requester; that is a lifecycle rule, not a presentation nicety.
func (s *ErrandService) Edit(ctx context.Context, id, callerID string, patch ErrandPatch) (*model.Errand, error) {
	errand, err := s.errands.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if errand.RequesterID != callerID {
		return nil, apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusOpen {
		return nil, apperrors.ErrInvalidState
	}

	updates := make(map[string]interface{})

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperrors.Validation("title is required")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description == "" {
			return nil, apperrors.Validation("description is required")
		}
		updates["description"] = description
	}
	if patch.Campus != nil {
		campus, err := normalizeCampus(*patch.Campus)
		if err != nil {
			return nil, err
		}
		updates["campus"] = campus
	}
	if patch.PriceOffered != nil {
		if err := validatePrice(patch.PriceOffered); err != nil {
			return nil, err
		}
		updates["price_offered"] = *patch.PriceOffered
	}
	if patch.ClearPriceOffered {
		updates["price_offered"] = nil
	}
	if patch.Location != nil {
		updates["location"] = *patch.Location
	}
	if patch.ClearLocation {
		updates["location"] = nil
	}
	if patch.ExpectedCompletionAt != nil {
		if err := validateExpectedCompletion(patch.ExpectedCompletionAt); err != nil {
			return nil, err
		}
		updates["expected_completion_at"] = *patch.ExpectedCompletionAt
	}
	if patch.ClearExpectedCompletionAt {
		updates["expected_completion_at"] = nil
	}
	if patch.Media != nil {
		updates["media"] = encodeStrings(patch.Media)
	}

	if len(updates) == 0 {
		return errand, nil
	}

	if err := s.errands.UpdateGuarded(ctx, id, errand.Version, updates); err != nil {
		return nil, err
	}
	return s.errands.FindByID(ctx, id)
}

// Claim binds a runner directly, without a prior offer. The bind is a single
// conditional update keyed on the errand still being open.
func (s *ErrandService) Claim(ctx context.Context, id, runnerID string) (*model.Errand, error) {
	errand, err := s.errands.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if errand.RequesterID == runnerID {
		return nil, apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusOpen {
		return nil, apperrors.ErrInvalidState
	}

	claimed, err := s.errands.ClaimOpen(ctx, id, runnerID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperrors.ErrInvalidState
	}
	return s.errands.FindByID(ctx, id)
}

// Unclaim reopens a claimed errand. Either party may back out until the
// requester attests completion; after that the claim is locked.
func (s *ErrandService) Unclaim(ctx context.Context, id, actorID string) (*model.Errand, error) {
	errand, err := s.errands.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if errand.RequesterID != actorID && (errand.RunnerID == nil || *errand.RunnerID != actorID) {
		return nil, apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusClaimed || errand.ClientCompletion {
		return nil, apperrors.ErrInvalidState
	}

	released, err := s.errands.ReleaseClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, apperrors.ErrInvalidState
	}
	return s.errands.FindByID(ctx, id)
}

// Delete soft-deletes an open errand. A claimed errand can never be deleted.
func (s *ErrandService) Delete(ctx context.Context, id, callerID string) error {
	errand, err := s.errands.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if errand.RequesterID != callerID {
		return apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusOpen {
		return apperrors.ErrForbidden
	}

	cancelled, err := s.errands.CancelOpen(ctx, id)
	if err != nil {
		return err
	}
	if !cancelled {
		return apperrors.ErrInvalidState
	}
	return nil
}

func normalizeCampus(campus string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(campus))
	if !constants.ValidCampus(normalized) {
		return "", apperrors.Validation("campus must be one of: " + strings.Join(constants.Campuses, ", "))
	}
	return normalized, nil
}

func validatePrice(price *float64) error {
	if price != nil && *price < 0 {
		return apperrors.Validation("priceOffered must not be negative")
	}
	return nil
}

func validateExpectedCompletion(t *time.Time) error {
	if t != nil && t.Before(time.Now()) {
		return apperrors.Validation("expectedCompletionAt must not be in the past")
	}
	return nil
}

func encodeStrings(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	encoded, _ := json.Marshal(values)
	return datatypes.JSON(encoded)
}
