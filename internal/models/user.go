package model

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID                 string         `gorm:"primaryKey;size:36" json:"id"`
	DisplayName        string         `gorm:"not null" json:"displayName"`
	Email              string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       string         `gorm:"not null" json:"-"`
	PhotoURL           *string        `json:"photoUrl,omitempty"`
	Campuses           datatypes.JSON `json:"campuses"`
	RequesterRatingSum float64        `gorm:"not null;default:0" json:"requesterRatingSum"`
	RequesterRatingCnt int            `gorm:"column:requester_rating_count;not null;default:0" json:"requesterRatingCount"`
	RunnerRatingSum    float64        `gorm:"not null;default:0" json:"runnerRatingSum"`
	RunnerRatingCnt    int            `gorm:"column:runner_rating_count;not null;default:0" json:"runnerRatingCount"`
	CreatedAt          time.Time      `json:"createdAt"`
	LastActiveAt       *time.Time     `json:"lastActiveAt,omitempty"`
}

// RequesterRating is the running average of ratings received as a requester,
// 0 when the user has never been rated in that capacity.
func (u *User) RequesterRating() float64 {
	if u.RequesterRatingCnt == 0 {
		return 0
	}
	return u.RequesterRatingSum / float64(u.RequesterRatingCnt)
}

// RunnerRating is the running average of ratings received as a runner.
func (u *User) RunnerRating() float64 {
	if u.RunnerRatingCnt == 0 {
		return 0
	}
	return u.RunnerRatingSum / float64(u.RunnerRatingCnt)
}
