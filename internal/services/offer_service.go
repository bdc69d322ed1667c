package services

import (
	"context"
	"errors"

	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	model "campus-errands.com/campus-errands/internal/models"
	repository "campus-errands.com/campus-errands/internal/repositories"
)

// OfferService tracks the runners interested in an open errand and resolves
// that set to at most one accepted runner.
type OfferService struct {
	errands *repository.ErrandRepository
	users   *repository.UserRepository
}

func NewOfferService(errands *repository.ErrandRepository, users *repository.UserRepository) *OfferService {
	return &OfferService{errands: errands, users: users}
}

// OfferCandidate is the summary a requester needs to pick a runner.
type OfferCandidate struct {
	RunnerID     string  `json:"runnerId"`
	DisplayName  string  `json:"displayName"`
	RunnerRating float64 `json:"runnerRating"`
	RatingCount  int     `json:"ratingCount"`
}

// Submit records a runner's interest in an open errand. A repeat submission
// from the same runner is a no-op.
func (s *OfferService) Submit(ctx context.Context, errandID, runnerID string) error {
	errand, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return err
	}
	if errand.RequesterID == runnerID {
		return apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusOpen {
		return apperrors.ErrInvalidState
	}

	offers := errand.OfferIDs()
	for _, id := range offers {
		if id == runnerID {
			return nil
		}
	}
	offers = append(offers, runnerID)

	err = s.errands.ReplaceOffers(ctx, errandID, errand.Version, offers)
	if errors.Is(err, apperrors.ErrOptimisticLock) {
		// The guard failing can mean either a concurrent write or the errand
		// leaving the open state; report the terminal condition when it has.
		current, ferr := s.errands.FindByID(ctx, errandID)
		if ferr == nil && current.Status != constants.StatusOpen {
			return apperrors.ErrInvalidState
		}
		return err
	}
	return err
}

// Accept resolves the offer set: the requester picks one candidate, the
// errand flips to claimed and all other offers are discarded. The flip is a
// single conditional update, so two concurrent accepts cannot both win.
func (s *OfferService) Accept(ctx context.Context, errandID, callerID, runnerID string) (*model.Errand, error) {
	errand, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, err
	}
	if errand.RequesterID != callerID {
		return nil, apperrors.ErrForbidden
	}
	if errand.Status != constants.StatusOpen {
		return nil, apperrors.ErrInvalidState
	}

	found := false
	for _, id := range errand.OfferIDs() {
		if id == runnerID {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.ErrInvalidState
	}

	claimed, err := s.errands.ClaimOpen(ctx, errandID, runnerID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, apperrors.ErrInvalidState
	}
	return s.errands.FindByID(ctx, errandID)
}

// List returns the current candidate set with enough user detail to render a
// choice. Candidates whose user record is gone are skipped; the store does
// not enforce referential integrity on the denormalized ids.
func (s *OfferService) List(ctx context.Context, errandID string) ([]OfferCandidate, error) {
	errand, err := s.errands.FindByID(ctx, errandID)
	if err != nil {
		return nil, err
	}

	candidates := make([]OfferCandidate, 0)
	for _, runnerID := range errand.OfferIDs() {
		user, err := s.users.FindByID(ctx, runnerID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		candidates = append(candidates, OfferCandidate{
			RunnerID:     user.ID,
			DisplayName:  user.DisplayName,
			RunnerRating: user.RunnerRating(),
			RatingCount:  user.RunnerRatingCnt,
		})
	}
	return candidates, nil
}
