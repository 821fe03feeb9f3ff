package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exmora-backend/internal/ai"
	"exmora-backend/internal/model"
)

type fakeCompleter struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts [][]ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, messages)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.UsageEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.UsageEvent) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func newAskService(store SessionStore, llm Completer) *AskService {
	return NewAskService(store, llm, &recordingPublisher{}, ai.ChatConfig{Model: "test"}, DefaultContextPolicy(), time.Second)
}

func seedSession(t *testing.T, store *memStore, userID string) *model.Session {
	t.Helper()
	session := &model.Session{
		UserID: userID,
		Title:  "notes.pdf",
		Shape:  model.ShapeMultiDocument,
		Documents: []model.Document{
			{Position: 0, Filename: "notes.pdf", Text: "cells divide by mitosis"},
		},
	}
	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}

func TestAskNoSessions(t *testing.T) {
	svc := newAskService(newMemStore(), &fakeCompleter{answer: "42"})

	_, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "hi"})
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("got %v, want ErrNoActiveSession", err)
	}
}

func TestAskForeignSessionIndistinguishableFromMissing(t *testing.T) {
	store := newMemStore()
	session := seedSession(t, store, "owner")
	svc := newAskService(store, &fakeCompleter{answer: "42"})

	_, errForeign := svc.Ask(context.Background(), AskInput{UserID: "intruder", SessionID: session.ID, Question: "hi"})
	_, errMissing := svc.Ask(context.Background(), AskInput{UserID: "intruder", SessionID: 999, Question: "hi"})

	if !errors.Is(errForeign, ErrNoActiveSession) {
		t.Fatalf("foreign session: got %v, want ErrNoActiveSession", errForeign)
	}
	if !errors.Is(errMissing, ErrNoActiveSession) {
		t.Fatalf("missing session: got %v, want ErrNoActiveSession", errMissing)
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := newAskService(newMemStore(), &fakeCompleter{answer: "42"})

	if _, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "   "}); !errors.Is(err, ErrQuestionEmpty) {
		t.Fatalf("got %v, want ErrQuestionEmpty", err)
	}
}

func TestAskRecordsExchangeAndTouchesSession(t *testing.T) {
	store := newMemStore()
	session := seedSession(t, store, "u1")
	before := store.updatedAt(session.ID)
	svc := newAskService(store, &fakeCompleter{answer: "mitosis"})

	time.Sleep(2 * time.Millisecond)
	result, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "how do cells divide?"})
	if err != nil {
		t.Fatalf("Ask err: %v", err)
	}
	if result.Answer != "mitosis" {
		t.Fatalf("unexpected answer %q", result.Answer)
	}
	if result.SessionID != session.ID {
		t.Fatalf("answer recorded against session %d, want %d", result.SessionID, session.ID)
	}
	if n := store.exchangeCount(session.ID); n != 1 {
		t.Fatalf("got %d exchanges, want 1", n)
	}
	if after := store.updatedAt(session.ID); !after.After(before) {
		t.Fatalf("updated_at not bumped: before=%v after=%v", before, after)
	}
}

func TestAskFallsBackToLatestSession(t *testing.T) {
	store := newMemStore()
	seedSession(t, store, "u1")
	time.Sleep(2 * time.Millisecond)
	latest := seedSession(t, store, "u1")
	svc := newAskService(store, &fakeCompleter{answer: "ok"})

	result, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "hi"})
	if err != nil {
		t.Fatalf("Ask err: %v", err)
	}
	if result.SessionID != latest.ID {
		t.Fatalf("resolved session %d, want most recently updated %d", result.SessionID, latest.ID)
	}
}

func TestAskBackendFailureRecordsNothing(t *testing.T) {
	store := newMemStore()
	session := seedSession(t, store, "u1")
	backendErr := &ai.BackendError{Status: 503, Detail: "overloaded"}
	svc := newAskService(store, &fakeCompleter{err: backendErr})

	_, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "hi"})
	var got *ai.BackendError
	if !errors.As(err, &got) {
		t.Fatalf("got %v, want *ai.BackendError", err)
	}
	if got.Status != 503 || got.Detail != "overloaded" {
		t.Fatalf("backend detail lost: %+v", got)
	}
	if n := store.exchangeCount(session.ID); n != 0 {
		t.Fatalf("backend failure must record nothing, found %d exchanges", n)
	}
}

func TestAskPersistFailureSurfaced(t *testing.T) {
	store := newMemStore()
	seedSession(t, store, "u1")
	store.failAppend = true
	svc := newAskService(store, &fakeCompleter{answer: "lost"})

	_, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "hi"})
	if !errors.Is(err, ErrPersistExchange) {
		t.Fatalf("got %v, want ErrPersistExchange", err)
	}
}

func TestAskConcurrentAppendsBothSurvive(t *testing.T) {
	store := newMemStore()
	session := seedSession(t, store, "u1")
	svc := newAskService(store, &fakeCompleter{answer: "ok"})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Ask(context.Background(), AskInput{
				UserID:    "u1",
				SessionID: session.ID,
				Question:  "concurrent",
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if n := store.exchangeCount(session.ID); n != 2 {
		t.Fatalf("got %d exchanges, want 2 (no lost append)", n)
	}
}

func TestAskPublishesUsageEvent(t *testing.T) {
	store := newMemStore()
	seedSession(t, store, "u1")
	publisher := &recordingPublisher{}
	svc := NewAskService(store, &fakeCompleter{answer: "ok"}, publisher, ai.ChatConfig{Model: "test"}, DefaultContextPolicy(), time.Second)

	if _, err := svc.Ask(context.Background(), AskInput{UserID: "u1", Question: "hi"}); err != nil {
		t.Fatalf("Ask err: %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0].Asks != 1 || publisher.events[0].UserID != "u1" {
		t.Fatalf("unexpected usage events: %+v", publisher.events)
	}
}
