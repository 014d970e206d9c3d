// Package tools implements the fixed tool set the subject may invoke and
// the dispatcher that executes it against the workspace.
package tools

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	jsonx "labagent/internal/shared/json"
)

// Tool names.
const (
	NameReadFile   = "read_file"
	NameWriteFile  = "write_file"
	NameListFiles  = "list_files"
	NameRunCommand = "run_command"
	NameWebSearch  = "web_search"
)

// Call is a decoded tool invocation. The implementations below are the only
// ones; the dispatcher switches over them exhaustively.
type Call interface {
	ToolName() string
	isCall()
}

type ReadFile struct {
	Path string `json:"path"`
}

type WriteFile struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
}

type ListFiles struct {
	Directory string `json:"directory"`
}

type RunCommand struct {
	Command string `json:"command"`
}

type WebSearch struct {
	Query string `json:"query"`
}

func (ReadFile) ToolName() string   { return NameReadFile }
func (WriteFile) ToolName() string  { return NameWriteFile }
func (ListFiles) ToolName() string  { return NameListFiles }
func (RunCommand) ToolName() string { return NameRunCommand }
func (WebSearch) ToolName() string  { return NameWebSearch }

func (ReadFile) isCall()   {}
func (WriteFile) isCall()  {}
func (ListFiles) isCall()  {}
func (RunCommand) isCall() {}
func (WebSearch) isCall()  {}

// UnknownToolError reports a tool name outside the fixed set.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "Unknown tool: " + e.Name
}

// Decode turns a tool name and its raw JSON arguments into a typed Call.
// Malformed JSON is repaired once before being rejected.
func Decode(name string, raw []byte) (Call, error) {
	args, err := normalizeArguments(raw)
	if err != nil {
		return nil, err
	}

	switch name {
	case NameReadFile:
		var c ReadFile
		if err := jsonx.Unmarshal(args, &c); err != nil {
			return nil, argumentError(name, err)
		}
		if strings.TrimSpace(c.Path) == "" {
			return nil, missing(name, "path")
		}
		return c, nil
	case NameWriteFile:
		var c WriteFile
		if err := jsonx.Unmarshal(args, &c); err != nil {
			return nil, argumentError(name, err)
		}
		if strings.TrimSpace(c.Path) == "" {
			return nil, missing(name, "path")
		}
		if c.Content == nil {
			return nil, missing(name, "content")
		}
		return c, nil
	case NameListFiles:
		var c ListFiles
		if err := jsonx.Unmarshal(args, &c); err != nil {
			return nil, argumentError(name, err)
		}
		if strings.TrimSpace(c.Directory) == "" {
			c.Directory = "."
		}
		return c, nil
	case NameRunCommand:
		var c RunCommand
		if err := jsonx.Unmarshal(args, &c); err != nil {
			return nil, argumentError(name, err)
		}
		if strings.TrimSpace(c.Command) == "" {
			return nil, missing(name, "command")
		}
		return c, nil
	case NameWebSearch:
		var c WebSearch
		if err := jsonx.Unmarshal(args, &c); err != nil {
			return nil, argumentError(name, err)
		}
		if strings.TrimSpace(c.Query) == "" {
			return nil, missing(name, "query")
		}
		return c, nil
	}
	return nil, &UnknownToolError{Name: name}
}

func normalizeArguments(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("{}"), nil
	}
	if jsonx.Valid(trimmed) {
		return trimmed, nil
	}
	repaired, err := jsonrepair.JSONRepair(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return []byte(repaired), nil
}

func argumentError(tool string, err error) error {
	return fmt.Errorf("invalid arguments for %s: %w", tool, err)
}

func missing(tool, field string) error {
	return fmt.Errorf("missing '%s' for %s", field, tool)
}
