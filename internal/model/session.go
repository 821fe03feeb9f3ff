package model

import "time"

// Session shape discriminator. Legacy sessions predate multi-document
// uploads and carry their extracted text inline.
const (
	ShapeMultiDocument = "multi"
	ShapeLegacyText    = "legacy"
)

type Session struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     string     `gorm:"size:64;not null;index" json:"user_id"`
	Title      string     `gorm:"size:256;not null" json:"title"`
	Shape      string     `gorm:"size:16;not null;default:multi" json:"shape"`
	LegacyText string     `gorm:"type:longtext" json:"legacy_text,omitempty"`
	Documents  []Document `gorm:"foreignKey:SessionID" json:"documents"`
	Exchanges  []Exchange `gorm:"foreignKey:SessionID" json:"messages"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `gorm:"index" json:"updated_at"`
}

// Summary strips the heavy payload fields for session listings.
type SessionSummary struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
