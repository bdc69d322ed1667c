package model

import (
	"time"

	"gorm.io/datatypes"
)

type ChatMessage struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	ErrandID  string         `gorm:"size:36;not null;index" json:"errandId"`
	SenderID  string         `gorm:"size:36;not null;index" json:"senderId"`
	Text      *string        `json:"text,omitempty"`
	Media     datatypes.JSON `json:"media"`
	Delivered bool           `gorm:"not null;default:false" json:"delivered"`
	Read      bool           `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time      `json:"createdAt"`
}
