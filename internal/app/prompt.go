package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"exmora-backend/internal/ai"
	"exmora-backend/internal/model"
)

// ContextPolicy bounds what the model is allowed to see. The caps are
// character counts; truncation is silent.
type ContextPolicy struct {
	PerDocumentChars int
	LegacyTextChars  int
	HistoryWindow    int
}

func DefaultContextPolicy() ContextPolicy {
	return ContextPolicy{
		PerDocumentChars: 15000,
		LegacyTextChars:  5000,
		HistoryWindow:    5,
	}
}

func (p ContextPolicy) withDefaults() ContextPolicy {
	d := DefaultContextPolicy()
	if p.PerDocumentChars <= 0 {
		p.PerDocumentChars = d.PerDocumentChars
	}
	if p.LegacyTextChars <= 0 {
		p.LegacyTextChars = d.LegacyTextChars
	}
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = d.HistoryWindow
	}
	return p
}

const systemPromptFormat = `You are an expert academic assistant at Exmora.
You have access to the following documents. Answer questions based on them.
If comparing, explicitly reference the documents by name.
If the answer isn't in the documents, say so.

### DOCUMENTS CONTENT:
%s

### RECENT CONTEXT:
%s`

// buildPromptMessages assembles the two-message exchange sent to the
// completion backend: a system instruction carrying the grounding context
// and the recent history, and a user message with only the raw question.
func buildPromptMessages(session *model.Session, question string, policy ContextPolicy) ([]ai.ChatMessage, error) {
	policy = policy.withDefaults()

	history, err := recentHistoryJSON(session.Exchanges, policy.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("serialize history failed: %w", err)
	}

	system := fmt.Sprintf(systemPromptFormat, buildDocumentContext(session, policy), history)
	return []ai.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: question},
	}, nil
}

// buildDocumentContext concatenates labeled, capped excerpts of the
// session's documents. Legacy sessions carry a single unlabeled excerpt.
func buildDocumentContext(session *model.Session, policy ContextPolicy) string {
	if session.Shape != model.ShapeMultiDocument {
		return truncate(session.LegacyText, policy.LegacyTextChars)
	}

	var sb strings.Builder
	for i, doc := range session.Documents {
		sb.WriteString(fmt.Sprintf("\n\n--- DOCUMENT %d: %s ---\n", i+1, doc.Filename))
		sb.WriteString(truncate(doc.Text, policy.PerDocumentChars))
	}
	return sb.String()
}

// historyEntry is the compact shape exchanges take inside the prompt.
type historyEntry struct {
	Q string `json:"q"`
	A string `json:"a"`
	T string `json:"t"`
}

// recentHistoryJSON serializes the last n exchanges, oldest first.
func recentHistoryJSON(exchanges []model.Exchange, n int) (string, error) {
	if len(exchanges) > n {
		exchanges = exchanges[len(exchanges)-n:]
	}
	entries := make([]historyEntry, len(exchanges))
	for i, ex := range exchanges {
		entries[i] = historyEntry{
			Q: ex.Question,
			A: ex.Answer,
			T: ex.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	// Back the cut up to a rune boundary so a multi-byte character at the
	// cap is dropped whole instead of leaving invalid UTF-8.
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
