package tools

import "labagent/internal/agent/ports"

// Definitions returns the fixed tool schema, in a stable order.
func Definitions() []ports.ToolDefinition {
	return []ports.ToolDefinition{
		{
			Name:        NameReadFile,
			Description: "Read a file from your workspace. Paths are relative to the workspace root.",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"path": {Type: "string", Description: "Relative path to the file"},
				},
				Required: []string{"path"},
			},
		},
		{
			Name:        NameWriteFile,
			Description: "Write or overwrite a file in your workspace. Parent directories are created as needed. This is how you modify yourself.",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"path":    {Type: "string", Description: "Relative path to the file"},
					"content": {Type: "string", Description: "Full content to write"},
				},
				Required: []string{"path", "content"},
			},
		},
		{
			Name:        NameListFiles,
			Description: "List every file under a workspace directory with its size.",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"directory": {Type: "string", Description: "Relative directory path (default: root)"},
				},
			},
		},
		{
			Name:        NameRunCommand,
			Description: "Run a shell command in your workspace. Output is captured; commands time out after a fixed limit.",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"command": {Type: "string", Description: "Shell command to execute"},
				},
				Required: []string{"command"},
			},
		},
		{
			Name:        NameWebSearch,
			Description: "Search the web and return an excerpt of the results.",
			Parameters: ports.ParameterSchema{
				Type: "object",
				Properties: map[string]ports.Property{
					"query": {Type: "string", Description: "Search query"},
				},
				Required: []string{"query"},
			},
		},
	}
}
