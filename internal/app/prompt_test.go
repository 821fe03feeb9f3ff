package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"exmora-backend/internal/model"
)

func testPolicy() ContextPolicy {
	return ContextPolicy{PerDocumentChars: 100, LegacyTextChars: 40, HistoryWindow: 5}
}

func TestBuildDocumentContextCapsPerDocument(t *testing.T) {
	policy := testPolicy()
	for _, length := range []int{0, policy.PerDocumentChars, policy.PerDocumentChars + 1, policy.PerDocumentChars * 3} {
		session := &model.Session{
			Shape: model.ShapeMultiDocument,
			Documents: []model.Document{
				{Position: 0, Filename: "a.pdf", Text: strings.Repeat("x", length)},
			},
		}
		out := buildDocumentContext(session, policy)
		body := strings.TrimPrefix(out, "\n\n--- DOCUMENT 1: a.pdf ---\n")
		if len(body) > policy.PerDocumentChars {
			t.Fatalf("length %d: document excerpt is %d chars, cap is %d", length, len(body), policy.PerDocumentChars)
		}
		want := length
		if want > policy.PerDocumentChars {
			want = policy.PerDocumentChars
		}
		if len(body) != want {
			t.Fatalf("length %d: got %d chars, want %d", length, len(body), want)
		}
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	// "é" is two bytes; a cap landing inside it must drop the whole rune.
	s := strings.Repeat("é", 10)
	for limit := 0; limit <= len(s)+1; limit++ {
		got := truncate(s, limit)
		if !utf8.ValidString(got) {
			t.Fatalf("limit %d: truncate produced invalid UTF-8 %q", limit, got)
		}
		if limit > 0 && len(got) > limit {
			t.Fatalf("limit %d: got %d bytes", limit, len(got))
		}
	}
	if got := truncate("日本語", 4); got != "日" {
		t.Fatalf("mid-rune cut: got %q, want %q", got, "日")
	}
	if got := truncate("plain ascii", 5); got != "plain" {
		t.Fatalf("ascii cut: got %q", got)
	}
}

func TestBuildDocumentContextLabelsInOrder(t *testing.T) {
	session := &model.Session{
		Shape: model.ShapeMultiDocument,
		Documents: []model.Document{
			{Position: 0, Filename: "first.pdf", Text: "alpha"},
			{Position: 1, Filename: "second.pdf", Text: "beta"},
		},
	}
	out := buildDocumentContext(session, testPolicy())

	first := strings.Index(out, "--- DOCUMENT 1: first.pdf ---")
	second := strings.Index(out, "--- DOCUMENT 2: second.pdf ---")
	if first < 0 || second < 0 {
		t.Fatalf("missing document labels in %q", out)
	}
	if first > second {
		t.Fatal("documents out of stored order")
	}
}

func TestBuildDocumentContextLegacyShape(t *testing.T) {
	policy := testPolicy()
	session := &model.Session{
		Shape:      model.ShapeLegacyText,
		LegacyText: strings.Repeat("y", policy.LegacyTextChars+1),
	}
	out := buildDocumentContext(session, policy)
	if len(out) != policy.LegacyTextChars {
		t.Fatalf("legacy excerpt is %d chars, cap is %d", len(out), policy.LegacyTextChars)
	}
	if strings.Contains(out, "DOCUMENT") {
		t.Fatal("legacy shape must not carry document labels")
	}
}

func TestRecentHistoryJSONWindow(t *testing.T) {
	const window = 5
	for _, total := range []int{0, 1, window, window + 3} {
		exchanges := make([]model.Exchange, total)
		for i := range exchanges {
			exchanges[i] = model.Exchange{
				Question:  fmt.Sprintf("q%d", i),
				Answer:    fmt.Sprintf("a%d", i),
				CreatedAt: time.Unix(int64(1700000000+i), 0),
			}
		}

		raw, err := recentHistoryJSON(exchanges, window)
		if err != nil {
			t.Fatalf("total %d: %v", total, err)
		}
		var entries []historyEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			t.Fatalf("total %d: history is not valid JSON: %v", total, err)
		}

		want := total
		if want > window {
			want = window
		}
		if len(entries) != want {
			t.Fatalf("total %d: got %d entries, want %d", total, len(entries), want)
		}
		for i, entry := range entries {
			expected := fmt.Sprintf("q%d", total-want+i)
			if entry.Q != expected {
				t.Fatalf("total %d: entry %d is %q, want %q (chronological order)", total, i, entry.Q, expected)
			}
		}
	}
}

func TestBuildPromptMessagesShape(t *testing.T) {
	session := &model.Session{
		Shape: model.ShapeMultiDocument,
		Documents: []model.Document{
			{Position: 0, Filename: "notes.pdf", Text: "the mitochondria"},
		},
		Exchanges: []model.Exchange{
			{Question: "earlier?", Answer: "yes", CreatedAt: time.Unix(1700000000, 0)},
		},
	}

	messages, err := buildPromptMessages(session, "what is the powerhouse?", testPolicy())
	if err != nil {
		t.Fatalf("buildPromptMessages err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Role != "system" || messages[1].Role != "user" {
		t.Fatalf("unexpected roles: %s, %s", messages[0].Role, messages[1].Role)
	}
	if messages[1].Content != "what is the powerhouse?" {
		t.Fatalf("user message must carry only the raw question, got %q", messages[1].Content)
	}
	if !strings.Contains(messages[0].Content, "notes.pdf") {
		t.Fatal("system message missing document context")
	}
	if !strings.Contains(messages[0].Content, `"q":"earlier?"`) {
		t.Fatal("system message missing serialized history")
	}
}

func TestBuildPromptMessagesDeterministic(t *testing.T) {
	session := &model.Session{
		Shape: model.ShapeMultiDocument,
		Documents: []model.Document{
			{Position: 0, Filename: "a.pdf", Text: "alpha"},
			{Position: 1, Filename: "b.pdf", Text: "beta"},
		},
		Exchanges: []model.Exchange{
			{Question: "q", Answer: "a", CreatedAt: time.Unix(1700000000, 0)},
		},
	}

	first, err := buildPromptMessages(session, "question", testPolicy())
	if err != nil {
		t.Fatalf("buildPromptMessages err: %v", err)
	}
	second, err := buildPromptMessages(session, "question", testPolicy())
	if err != nil {
		t.Fatalf("buildPromptMessages err: %v", err)
	}
	if first[0].Content != second[0].Content || first[1].Content != second[1].Content {
		t.Fatal("same session state produced different prompts")
	}
}
