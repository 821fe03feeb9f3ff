package app

import (
	"context"

	"exmora-backend/internal/model"
)

// SessionService serves the owner-scoped session surface: list, get,
// delete. All isolation is enforced by the store's (id, owner) keying.
type SessionService struct {
	store SessionStore
}

func NewSessionService(store SessionStore) *SessionService {
	return &SessionService{store: store}
}

func (s *SessionService) List(ctx context.Context, userID string) ([]model.SessionSummary, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	sessions, err := s.store.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.SessionSummary, len(sessions))
	for i := range sessions {
		summaries[i] = sessions[i].Summary()
	}
	return summaries, nil
}

func (s *SessionService) Get(ctx context.Context, userID string, sessionID uint) (*model.Session, error) {
	if userID == "" || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.store.GetByIDAndUserID(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete removes the session with all embedded documents and exchanges.
// Deleting a session the caller does not own reports not-found.
func (s *SessionService) Delete(ctx context.Context, userID string, sessionID uint) error {
	if userID == "" || sessionID == 0 {
		return ErrInvalidInput
	}
	deleted, err := s.store.DeleteByIDAndUserID(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}
