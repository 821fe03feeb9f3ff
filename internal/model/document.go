package model

import "time"

// Document is one uploaded PDF bound to a session. Text is the full
// extracted plain text and may legitimately be empty. PDFURL is set only
// when the blob upload to remote storage succeeded.
type Document struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"not null;index" json:"session_id"`
	Position  int       `gorm:"not null" json:"position"`
	Filename  string    `gorm:"size:256;not null" json:"filename"`
	Text      string    `gorm:"type:longtext;not null" json:"text"`
	PDFURL    string    `gorm:"size:512" json:"pdf_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
