package domain

import (
	"fmt"
	"path/filepath"

	"labagent/internal/agent/presets"
	"labagent/internal/infra/filestore"
	"labagent/internal/workspace"
)

// Identity documents read from the workspace root at session start.
const (
	SoulFile    = "SOUL.md"
	AgentsFile  = "AGENTS.md"
	JournalFile = "journal.md"
)

// buildPrompt reads the identity documents and returns the system prompt
// and the opening user message. Missing documents count as empty.
func buildPrompt(root string, journalTailChars int) (system, user string, err error) {
	soul, err := readDocument(root, SoulFile)
	if err != nil {
		return "", "", err
	}
	agents, err := readDocument(root, AgentsFile)
	if err != nil {
		return "", "", err
	}
	journal, err := readDocument(root, JournalFile)
	if err != nil {
		return "", "", err
	}
	return presets.SystemPrompt(soul, agents), presets.UserMessage(workspace.TailChars(journal, journalTailChars)), nil
}

func readDocument(root, name string) (string, error) {
	data, err := filestore.ReadFileOrEmpty(filepath.Join(root, name))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return workspace.Preview(data, 0), nil
}
