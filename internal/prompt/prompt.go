package prompt

import (
	"strings"

	"github.com/aigoflow/multichat-service/internal/models"
)

// Roles used by the chat providers
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the context sent to a provider
type Turn struct {
	Role    string
	Content string
}

// Window returns the last n entries of history
func Window(history []models.HistoryEntry, n int) []models.HistoryEntry {
	if n <= 0 {
		return nil
	}
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// Turns maps history onto provider roles and appends message as the
// final user turn
func Turns(history []models.HistoryEntry, message string) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	for _, entry := range history {
		role := RoleAssistant
		if entry.Type == models.EntryUser {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Content: entry.Message})
	}
	return append(turns, Turn{Role: RoleUser, Content: message})
}

// Transcript renders turns as plain "User:"/"Assistant:" lines
func Transcript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		if t.Role == RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}
