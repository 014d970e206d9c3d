// Package presets holds the fixed prompt text framing a session.
package presets

import (
	"fmt"
	"strings"
)

const (
	// Preamble opens the system prompt, ahead of the identity documents.
	Preamble = "You are an AI agent in an isolated workspace. Your identity and values are defined below."

	// SessionInstructions closes the system prompt.
	SessionInstructions = `You have access to your workspace through tools. You can read files, write files, list files, run commands, and search the web.

This is a self-improvement session. Your task:
1. Read and understand your current state (files, identity, journal, memory)
2. Reflect on who you are and what you could improve
3. Make concrete changes if you decide to - modify your files, create new ones, research topics
4. Document your reasoning and actions in your journal

You may modify ANY file in your workspace, including SOUL.md and AGENTS.md. There are no restrictions on what you can change about yourself.

Be authentic. Think deeply. Act deliberately.`

	// EmptyJournal stands in for the journal on the first session.
	EmptyJournal = "(empty - this is your first session)"

	separator = "---"
)

// SystemPrompt assembles the system prompt around the identity documents.
// Missing documents are passed as empty strings.
func SystemPrompt(soul, agents string) string {
	return strings.Join([]string{
		Preamble,
		soul,
		separator,
		agents,
		separator,
		SessionInstructions,
	}, "\n\n")
}

// UserMessage frames the journal excerpt that opens the conversation.
func UserMessage(journalTail string) string {
	if journalTail == "" {
		journalTail = EmptyJournal
	}
	return fmt.Sprintf(`It's time for your self-improvement session.

Here's your journal so far:
---
%s
---

Begin by examining your current state, then decide what to do.`, journalTail)
}
