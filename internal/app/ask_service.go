package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"exmora-backend/internal/ai"
	"exmora-backend/internal/model"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrQuestionEmpty   = errors.New("question is empty")
	ErrNoActiveSession = errors.New("no active session found, upload a PDF first")
	ErrSessionNotFound = errors.New("session not found")
	ErrPersistExchange = errors.New("record exchange failed")
)

// SessionStore is the single shared mutable resource of the pipeline. All
// mutations are atomic store operations; nothing is cached in process.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetByIDAndUserID(ctx context.Context, sessionID uint, userID string) (*model.Session, error)
	LatestByUserID(ctx context.Context, userID string) (*model.Session, error)
	ListByUserID(ctx context.Context, userID string) ([]model.Session, error)
	AppendExchange(ctx context.Context, exchange *model.Exchange) error
	DeleteByIDAndUserID(ctx context.Context, sessionID uint, userID string) (bool, error)
}

// Completer is the external completion backend.
type Completer interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// UsagePublisher emits accounting events; failures are logged, never fatal.
type UsagePublisher interface {
	Publish(ctx context.Context, event model.UsageEvent) error
}

type AskService struct {
	store      SessionStore
	llm        Completer
	publisher  UsagePublisher
	chatConfig ai.ChatConfig
	policy     ContextPolicy
	askTimeout time.Duration
}

type AskInput struct {
	UserID    string
	SessionID uint // 0 = fall back to the most recently updated session
	Question  string
}

type AskResult struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	SessionID uint   `json:"session_id"`
}

func NewAskService(
	store SessionStore,
	llm Completer,
	publisher UsagePublisher,
	chatConfig ai.ChatConfig,
	policy ContextPolicy,
	askTimeout time.Duration,
) *AskService {
	if askTimeout <= 0 {
		askTimeout = 60 * time.Second
	}
	return &AskService{
		store:      store,
		llm:        llm,
		publisher:  publisher,
		chatConfig: chatConfig,
		policy:     policy.withDefaults(),
		askTimeout: askTimeout,
	}
}

// Ask resolves the session, assembles the grounded prompt, calls the
// completion backend, and records the exchange. Nothing is recorded unless
// the backend succeeded; a failed record is surfaced, never swallowed.
func (s *AskService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	if input.UserID == "" {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}

	session, err := s.resolveSession(ctx, input.UserID, input.SessionID)
	if err != nil {
		return nil, err
	}

	messages, err := buildPromptMessages(session, question, s.policy)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.askTimeout)
	defer cancel()
	answer, err := s.llm.Complete(callCtx, s.chatConfig, messages)
	if err != nil {
		return nil, err
	}

	exchange := &model.Exchange{
		SessionID: session.ID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendExchange(ctx, exchange); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistExchange, err)
	}

	if s.publisher != nil {
		event := model.UsageEvent{
			UserID: input.UserID,
			Date:   model.UsageDate(time.Now()),
			Asks:   1,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Printf("publish ask usage event failed: %v", err)
		}
	}

	return &AskResult{
		Question:  question,
		Answer:    answer,
		SessionID: session.ID,
	}, nil
}

// resolveSession returns exactly one owned session or ErrNoActiveSession.
// A session owned by someone else resolves the same as a missing one.
func (s *AskService) resolveSession(ctx context.Context, userID string, sessionID uint) (*model.Session, error) {
	var (
		session *model.Session
		err     error
	)
	if sessionID != 0 {
		session, err = s.store.GetByIDAndUserID(ctx, sessionID, userID)
	} else {
		session, err = s.store.LatestByUserID(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session, nil
}
