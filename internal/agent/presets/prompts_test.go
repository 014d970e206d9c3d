package presets

import (
	"strings"
	"testing"
)

func TestSystemPromptOrder(t *testing.T) {
	prompt := SystemPrompt("I value honesty.", "Keep a journal.")

	idxPreamble := strings.Index(prompt, Preamble)
	idxSoul := strings.Index(prompt, "I value honesty.")
	idxAgents := strings.Index(prompt, "Keep a journal.")
	idxInstructions := strings.Index(prompt, "This is a self-improvement session.")
	if idxPreamble != 0 || idxSoul < idxPreamble || idxAgents < idxSoul || idxInstructions < idxAgents {
		t.Fatalf("unexpected section order in prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "I value honesty.\n\n---\n\nKeep a journal.") {
		t.Fatalf("expected soul and agents separated by ---, got:\n%s", prompt)
	}
}

func TestUserMessage(t *testing.T) {
	if msg := UserMessage(""); !strings.Contains(msg, "---\n"+EmptyJournal+"\n---") {
		t.Fatalf("expected empty-journal placeholder, got:\n%s", msg)
	}
	if msg := UserMessage("day 3: rewrote SOUL.md"); !strings.Contains(msg, "day 3: rewrote SOUL.md") {
		t.Fatalf("expected journal tail in message, got:\n%s", msg)
	}
}
