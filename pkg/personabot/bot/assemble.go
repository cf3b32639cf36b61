package bot

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/jholhewres/personabot/pkg/personabot/database"
	"github.com/jholhewres/personabot/pkg/personabot/llm"
)

var nameCharPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeName strips every character outside [a-zA-Z0-9_-] from a display
// name. The chat API rejects message names with anything else in them. A
// name that sanitizes to nothing becomes "user".
func SanitizeName(name string) string {
	cleaned := nameCharPattern.ReplaceAllString(name, "")
	if cleaned == "" {
		return "user"
	}
	return cleaned
}

// BuildPrompt assembles the message list for a completion request: the
// persona's system prompt, the stored channel history in chronological
// order, then the incoming message tagged with the sender's sanitized name.
func BuildPrompt(systemPrompt string, history []database.ChatTurn, senderName, content string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})

	for _, turn := range history {
		msg := llm.Message{Role: turn.Role, Content: turn.Content}
		if turn.Role == database.RoleUser && turn.Name != "" {
			msg.Name = turn.Name
		}
		messages = append(messages, msg)
	}

	messages = append(messages, llm.Message{
		Role:    database.RoleUser,
		Name:    SanitizeName(senderName),
		Content: content,
	})
	return messages
}

// LimitSentences truncates text to at most max sentences, rejoined with
// single spaces. A max of zero means unlimited. When the splitter fails the
// full text is returned untruncated.
func LimitSentences(splitter SentenceSplitter, text string, max int, logger *slog.Logger) string {
	if max <= 0 {
		return text
	}

	parts, err := splitter.Split(text)
	if err != nil {
		logger.Error("splitting sentences, returning full reply", "error", err)
		return text
	}
	if len(parts) <= max {
		return text
	}
	return strings.Join(parts[:max], " ")
}
