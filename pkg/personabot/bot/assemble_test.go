package bot

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/personabot/pkg/personabot/database"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"JohnDoe", "JohnDoe"},
		{"John Doe!!", "JohnDoe"},
		{"user_42-x", "user_42-x"},
		{"héllo wörld", "hllowrld"},
		{"???", "user"},
		{"", "user"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	history := []database.ChatTurn{
		{Role: database.RoleUser, Name: "Alice", Content: "hi there"},
		{Role: database.RoleAssistant, Content: "hello!"},
	}

	messages := BuildPrompt("You are a test persona.", history, "Bob Smith", "how are you?")

	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(messages))
	}
	if messages[0].Role != "system" || messages[0].Content != "You are a test persona." {
		t.Errorf("system message = %+v", messages[0])
	}
	if messages[1].Name != "Alice" {
		t.Errorf("history user name = %q, want Alice", messages[1].Name)
	}
	if messages[2].Role != database.RoleAssistant || messages[2].Name != "" {
		t.Errorf("assistant turn should carry no name: %+v", messages[2])
	}
	last := messages[3]
	if last.Role != database.RoleUser || last.Name != "BobSmith" || last.Content != "how are you?" {
		t.Errorf("final message = %+v", last)
	}
}

func TestBuildPromptEmptyHistory(t *testing.T) {
	messages := BuildPrompt("prompt", nil, "Eve", "hello")
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
}

type fixedSplitter struct {
	parts []string
	err   error
}

func (f fixedSplitter) Split(string) ([]string, error) { return f.parts, f.err }

func TestLimitSentences(t *testing.T) {
	splitter := NewSentenceSplitter()
	text := "One is here. Two is here. Three is here. Four is here. Five is here. Six is here. Seven is here."

	got := LimitSentences(splitter, text, 3, slog.Default())
	want := "One is here. Two is here. Three is here."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Count(got, ".") != 3 {
		t.Errorf("expected exactly 3 sentences, got %q", got)
	}
}

func TestLimitSentencesUnderLimit(t *testing.T) {
	text := "Only one sentence here."
	if got := LimitSentences(NewSentenceSplitter(), text, 5, slog.Default()); got != text {
		t.Errorf("short text should pass through unchanged, got %q", got)
	}
}

func TestLimitSentencesZeroMeansUnlimited(t *testing.T) {
	text := "A. B. C. D. E. F. G."
	if got := LimitSentences(NewSentenceSplitter(), text, 0, slog.Default()); got != text {
		t.Errorf("max 0 should disable truncation, got %q", got)
	}
}

func TestLimitSentencesSplitterFailure(t *testing.T) {
	text := "First. Second. Third."
	splitter := fixedSplitter{err: errors.New("model missing")}

	if got := LimitSentences(splitter, text, 1, slog.Default()); got != text {
		t.Errorf("splitter failure should return full text, got %q", got)
	}
}

func TestParseReminderDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"1h30m", 90 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"45m", 45 * time.Minute, false},
		{"1H", time.Hour, false},
		{" 10m ", 10 * time.Minute, false},
		{"soon", 0, true},
		{"", 0, true},
		{"0m", 0, true},
	}
	for _, tt := range tests {
		got, err := parseReminderDuration(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseReminderDuration(%q) should fail", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseReminderDuration(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseReminderDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(90 * time.Minute); got != "1 hour(s) and 30 minute(s)" {
		t.Errorf("got %q", got)
	}
	if got := formatDuration(2 * time.Hour); got != "2 hour(s)" {
		t.Errorf("got %q", got)
	}
	if got := formatDuration(45 * time.Minute); got != "45 minute(s)" {
		t.Errorf("got %q", got)
	}
}
