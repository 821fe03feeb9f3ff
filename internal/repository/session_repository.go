package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"exmora-backend/internal/model"
)

// SessionRepository is the session store. Every query is scoped by owner, so
// a session belonging to another user is indistinguishable from one that
// does not exist. All mutations are single gorm transactions; no state is
// cached across requests.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a session together with its documents in one transaction.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByIDAndUserID(ctx context.Context, sessionID uint, userID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Exchanges", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

// LatestByUserID returns the owner's most recently updated session, or nil
// when the owner has none.
func (r *SessionRepository) LatestByUserID(ctx context.Context, userID string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Exchanges", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) ListByUserID(ctx context.Context, userID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

// AppendExchange inserts the exchange and bumps the session's updated_at in
// one transaction. Two concurrent appends to the same session each insert
// their own row; the timestamp touch is last-write-wins.
func (r *SessionRepository) AppendExchange(ctx context.Context, exchange *model.Exchange) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(exchange).Error; err != nil {
			return err
		}
		touch := tx.Model(&model.Session{}).
			Where("id = ?", exchange.SessionID).
			UpdateColumn("updated_at", time.Now())
		if touch.Error != nil {
			return touch.Error
		}
		if touch.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append exchange failed: %w", err)
	}
	return nil
}

// DeleteByIDAndUserID removes the session with its documents and exchanges
// in one transaction. Returns false when no owned session matched.
func (r *SessionRepository) DeleteByIDAndUserID(ctx context.Context, sessionID uint, userID string) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Children go first: the document and exchange tables carry foreign
		// keys on session_id, so deleting the parent row before them is
		// rejected by the database.
		var owned model.Session
		err := tx.Select("id").
			Where("id = ? AND user_id = ?", sessionID, userID).
			First(&owned).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.Exchange{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.Session{}, owned.ID).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete session failed: %w", err)
	}
	return deleted, nil
}
