package models

import (
	"time"
)

// Preference is a user preference stored as a key/value pair.
// Last writer wins; no history is retained.
type Preference struct {
	Key       string    `gorm:"primaryKey;size:100" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
