package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"campus-errands.com/campus-errands/internal/constants"
)

type Errand struct {
	ID                   string                 `gorm:"primaryKey;size:36" json:"id"`
	RequesterID          string                 `gorm:"size:36;not null;index" json:"requesterId"`
	Title                string                 `gorm:"not null" json:"title"`
	Description          string                 `gorm:"not null" json:"description"`
	Campus               string                 `gorm:"type:varchar(20);not null;index" json:"campus"`
	PriceOffered         *float64               `json:"priceOffered,omitempty"`
	Location             *string                `json:"location,omitempty"`
	Status               constants.ErrandStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RunnerID             *string                `gorm:"size:36;index" json:"runnerId,omitempty"`
	Offers               datatypes.JSON         `json:"offers"`
	RunnerCompletion     bool                   `gorm:"not null;default:false" json:"runnerCompletion"`
	ClientCompletion     bool                   `gorm:"not null;default:false" json:"clientCompletion"`
	Media                datatypes.JSON         `json:"media"`
	Version              uint                   `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
	ClaimedAt            *time.Time             `json:"claimedAt,omitempty"`
	ExpectedCompletionAt *time.Time             `json:"expectedCompletionAt,omitempty"`
}

// OfferIDs decodes the denormalized offer array into user ids.
func (e *Errand) OfferIDs() []string {
	if len(e.Offers) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(e.Offers, &ids); err != nil {
		return nil
	}
	return ids
}

// MediaPaths decodes the stored media array into opaque storage paths.
func (e *Errand) MediaPaths() []string {
	if len(e.Media) == 0 {
		return nil
	}
	var paths []string
	if err := json.Unmarshal(e.Media, &paths); err != nil {
		return nil
	}
	return paths
}

// Finished reports whether both sides have attested completion. The status
// value itself stays at claimed; finished is a derived condition.
func (e *Errand) Finished() bool {
	return e.RunnerCompletion && e.ClientCompletion
}
