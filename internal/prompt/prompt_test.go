package prompt

import (
	"strings"
	"testing"

	"github.com/aigoflow/multichat-service/internal/models"
)

func history(n int) []models.HistoryEntry {
	var h []models.HistoryEntry
	for i := 0; i < n; i++ {
		typ := models.EntryUser
		if i%2 == 1 {
			typ = models.EntryAI
		}
		h = append(h, models.HistoryEntry{Type: typ, Message: string(rune('a' + i))})
	}
	return h
}

func TestWindow(t *testing.T) {
	h := history(7)

	w := Window(h, 5)
	if len(w) != 5 || w[0].Message != "c" || w[4].Message != "g" {
		t.Errorf("Unexpected window %+v", w)
	}
	if len(Window(h, 10)) != 7 {
		t.Error("Window larger than history should return everything")
	}
	if Window(h, 0) != nil {
		t.Error("Zero window should be empty")
	}
}

func TestTurns(t *testing.T) {
	turns := Turns(history(3), "latest")

	if len(turns) != 4 {
		t.Fatalf("Expected 4 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Errorf("Unexpected roles %+v", turns[:2])
	}
	last := turns[len(turns)-1]
	if last.Role != RoleUser || last.Content != "latest" {
		t.Errorf("New message should be the last user turn, got %+v", last)
	}
}

func TestTranscript(t *testing.T) {
	out := Transcript(Turns(history(2), "q"))

	if !strings.HasPrefix(out, "User: a\nAssistant: b") {
		t.Errorf("Unexpected transcript prefix: %q", out)
	}
	if !strings.HasSuffix(out, "User: q") {
		t.Errorf("Transcript should end with the new message: %q", out)
	}
}
