package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"campus-errands.com/campus-errands/internal/constants"
	apperrors "campus-errands.com/campus-errands/internal/errors"
	model "campus-errands.com/campus-errands/internal/models"
)

type ErrandRepository struct {
	db *gorm.DB
}

func NewErrandRepository(db *gorm.DB) *ErrandRepository {
	return &ErrandRepository{db: db}
}

// ErrandQuery describes the filters the listing and watch operations accept.
// An ID filter narrows the result set to one document, which is how a single
// errand is watched.
type ErrandQuery struct {
	ID            string
	Status        constants.ErrandStatus
	Campus        string
	RequesterID   string
	RunnerID      string
	Limit         int
	CreatedAtDesc bool
}

var emptyJSONArray = datatypes.JSON([]byte("[]"))

func (r *ErrandRepository) Create(ctx context.Context, errand *model.Errand) error {
	errand.ID = uuid.NewString()
	errand.Status = constants.StatusOpen
	errand.Offers = emptyJSONArray
	if len(errand.Media) == 0 {
		errand.Media = emptyJSONArray
	}
	errand.Version = 1
	errand.CreatedAt = time.Now().UTC()
	errand.UpdatedAt = errand.CreatedAt

	return r.db.WithContext(ctx).Create(errand).Error
}

func (r *ErrandRepository) FindByID(ctx context.Context, id string) (*model.Errand, error) {
	var errand model.Errand
	err := r.db.WithContext(ctx).First(&errand, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrErrandNotFound
		}
		return nil, err
	}
	return &errand, nil
}

func (r *ErrandRepository) List(ctx context.Context, q ErrandQuery) ([]model.Errand, error) {
	query := r.db.WithContext(ctx).Model(&model.Errand{})

	if q.ID != "" {
		query = query.Where("id = ?", q.ID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Campus != "" {
		query = query.Where("campus = ?", q.Campus)
	}
	if q.RequesterID != "" {
		query = query.Where("requester_id = ?", q.RequesterID)
	}
	if q.RunnerID != "" {
		query = query.Where("runner_id = ?", q.RunnerID)
	}

	if q.CreatedAtDesc {
		query = query.Order("created_at desc")
	} else {
		query = query.Order("created_at asc")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var errands []model.Errand
	err := query.Find(&errands).Error
	return errands, err
}

// UpdateGuarded applies a partial update only if the stored version still
// matches, so a stale read cannot overwrite a concurrent change.
func (r *ErrandRepository) UpdateGuarded(ctx context.Context, id string, version uint, updates map[string]interface{}) error {
	merged := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		merged[k] = v
	}
	merged["version"] = gorm.Expr("version + 1")
	merged["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&model.Errand{}).
		Where("id = ? AND version = ?", id, version).
		Updates(merged)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOptimisticLock
	}
	return nil
}

// ReplaceOffers swaps the offer set, guarded by version and the errand still
// being open. A racing accept bumps the version and closes the status, so a
// late submission cannot resurrect a cleared offer list.
func (r *ErrandRepository) ReplaceOffers(ctx context.Context, id string, version uint, offers []string) error {
	encoded, err := json.Marshal(offers)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Errand{}).
		Where("id = ? AND version = ? AND status = ?", id, version, constants.StatusOpen).
		Updates(map[string]interface{}{
			"offers":     datatypes.JSON(encoded),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOptimisticLock
	}
	return nil
}

// ClaimOpen binds a runner in a single conditional update keyed on the errand
// still being open. At most one concurrent caller can win; everyone else sees
// zero rows affected.
func (r *ErrandRepository) ClaimOpen(ctx context.Context, id, runnerID string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Errand{}).
		Where("id = ? AND status = ?", id, constants.StatusOpen).
		Updates(map[string]interface{}{
			"runner_id":  runnerID,
			"status":     constants.StatusClaimed,
			"claimed_at": now,
			"offers":     emptyJSONArray,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseClaim reopens a claimed errand unless the requester has already
// attested completion, which locks the claim in place.
func (r *ErrandRepository) ReleaseClaim(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Errand{}).
		Where("id = ? AND status = ? AND client_completion = ?", id, constants.StatusClaimed, false).
		Updates(map[string]interface{}{
			"runner_id":         nil,
			"status":            constants.StatusOpen,
			"claimed_at":        nil,
			"runner_completion": false,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now().UTC(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelOpen soft-deletes an errand that is still open.
func (r *ErrandRepository) CancelOpen(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Errand{}).
		Where("id = ? AND status = ?", id, constants.StatusOpen).
		Updates(map[string]interface{}{
			"status":     constants.StatusCancelled,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkRunnerCompletion flips the runner's completion flag exactly once while
// the errand is claimed.
func (r *ErrandRepository) MarkRunnerCompletion(ctx context.Context, id string) (bool, error) {
	return r.markCompletion(ctx, id, "runner_completion")
}

// MarkClientCompletion flips the requester's completion flag exactly once
// while the errand is claimed.
func (r *ErrandRepository) MarkClientCompletion(ctx context.Context, id string) (bool, error) {
	return r.markCompletion(ctx, id, "client_completion")
}

func (r *ErrandRepository) markCompletion(ctx context.Context, id, column string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Errand{}).
		Where("id = ? AND status = ? AND "+column+" = ?", id, constants.StatusClaimed, false).
		Updates(map[string]interface{}{
			column:       true,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
