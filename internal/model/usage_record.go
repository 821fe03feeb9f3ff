package model

import "time"

// UsageRecord aggregates one user's activity for one calendar day.
// Rows are written asynchronously by the usage worker; the synchronous
// quota check lives in Redis.
type UsageRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_usage_user_date" json:"user_id"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_usage_user_date" json:"date"`
	Asks      int       `gorm:"not null;default:0" json:"asks"`
	Uploads   int       `gorm:"not null;default:0" json:"uploads"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsageEvent is the wire shape published to the usage queue.
type UsageEvent struct {
	UserID  string `json:"user_id"`
	Date    string `json:"date"`
	Asks    int    `json:"asks"`
	Uploads int    `json:"uploads"`
}

// UsageDate formats t the way usage rows and quota keys are bucketed.
func UsageDate(t time.Time) string {
	return t.Format("2006-01-02")
}
