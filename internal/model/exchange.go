package model

import "time"

// Exchange is one question/answer pair. Exchanges are append-only; they
// are removed only when the whole session is deleted.
type Exchange struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:longtext;not null" json:"answer"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
