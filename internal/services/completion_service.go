package services

import (
	"context"

	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	model "campus-errands.com/campus-errands/internal/models"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

// CompletionService implements the two-sided completion handshake and the
// rating aggregation that follows it. Ratings are triggered by completion but
// never bundled with it transactionally; a failed rating write must not roll
// back a completion.
type CompletionService struct {
	errands *repository.ErrandRepository
	users   *repository.UserRepository
}

func NewCompletionService(errands *repository.ErrandRepository, users *repository.UserRepository) *CompletionService {
	return &CompletionService{errands: errands, users: users}
}

// RatingPrompt tells the caller who to rate and in which capacity after a
// completion flag flips.
type RatingPrompt struct {
	TargetUserID string               `json:"targetUserId"`
	Role         constants.RatingRole `json:"role"`
}

// MarkRunnerComplete sets the runner's completion flag and prompts the runner
// to rate the requester. A second invocation is rejected so the prompt never
// fires twice.
func (s *CompletionService) MarkRunnerComplete(ctx context.Context, errandID, callerID string) (*model.Errand, *RatingPrompt, error) {
	errand, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, nil, err
	}
	if errand.RunnerID == nil || *errand.RunnerID != callerID {
		return nil, nil, apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusClaimed || errand.RunnerCompletion {
		return nil, nil, apperrors.ErrInvalidState
	}

	marked, err := s.errands.MarkRunnerCompletion(ctx, errandID)
	if err != nil {
		return nil, nil, err
	}
	if !marked {
		return nil, nil, apperrors.ErrInvalidState
	}

	updated, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, nil, err
	}
	prompt := &RatingPrompt{TargetUserID: errand.RequesterID, Role: constants.RoleRequester}
	return updated, prompt, nil
}

// MarkClientComplete is the requester's side of the handshake; the prompt
// rates the runner.
func (s *CompletionService) MarkClientComplete(ctx context.Context, errandID, callerID string) (*model.Errand, *RatingPrompt, error) {
	errand, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, nil, err
	}
	if errand.RequesterID != callerID {
		return nil, nil, apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusClaimed || errand.ClientCompletion {
		return nil, nil, apperrors.ErrInvalidState
	}

	marked, err := s.errands.MarkClientCompletion(ctx, errandID)
	if err != nil {
		return nil, nil, err
	}
	if !marked {
		return nil, nil, apperrors.ErrInvalidState
	}

	updated, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, nil, err
	}
	prompt := &RatingPrompt{TargetUserID: *errand.RunnerID, Role: constants.RoleRunner}
	return updated, prompt, nil
}

// SubmitRating adds a star rating to the target user's accumulator for the
// given role.
func (s *CompletionService) SubmitRating(ctx context.Context, targetUserID string, role constants.RatingRole, stars int) error {
	if stars < constants.MinStars || stars > constants.MaxStars {
		return apperrors.Validation("stars must be between 1 and 5")
	}
	if !constants.ValidRole(role) {
		return apperrors.Validation("role must be requester or runner")
	}
	return s.users.ApplyRating(ctx, targetUserID, role, stars)
}
