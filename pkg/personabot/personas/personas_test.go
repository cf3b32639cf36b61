package personas

import (
	"errors"
	"sort"
	"testing"
)

func TestGetKnown(t *testing.T) {
	p, err := Get("homer_simpson")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name != "Homer Simpson" {
		t.Errorf("expected name Homer Simpson, got %q", p.Name)
	}
	if p.SystemPrompt == "" {
		t.Error("system prompt is empty")
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("not_a_persona")
	if err == nil {
		t.Fatal("expected error for unknown persona")
	}
	if !errors.Is(err, ErrUnknownPersona) {
		t.Errorf("expected ErrUnknownPersona, got %v", err)
	}
}

func TestGetOrDefaultFallsBack(t *testing.T) {
	p := GetOrDefault("renamed_away")
	if p.Key != Default {
		t.Errorf("expected default persona %q, got %q", Default, p.Key)
	}
}

func TestDefaultIsRegistered(t *testing.T) {
	if _, err := Get(Default); err != nil {
		t.Fatalf("default persona not in registry: %v", err)
	}
}

func TestAllSortedAndComplete(t *testing.T) {
	all := All()
	if len(all) != 9 {
		t.Fatalf("expected 9 personas, got %d", len(all))
	}
	keys := make([]string, len(all))
	for i, p := range all {
		keys[i] = p.Key
	}
	if !sort.StringsAreSorted(keys) {
		t.Errorf("personas not sorted by key: %v", keys)
	}
}
