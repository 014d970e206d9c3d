package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labagent/internal/agent/ports"
	"labagent/internal/session"
	"labagent/internal/workspace"
)

func TestNewDispatcherRequiresSink(t *testing.T) {
	_, err := NewDispatcher(Config{Root: t.TempDir()})
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	d, sink, root := newTestDispatcher(t, Config{})
	writeTestFile(t, root, "soul.md", "I am curious.")

	res := dispatch(t, d, "t1", NameReadFile, `{"path":"soul.md"}`)
	assert.Equal(t, "I am curious.", res.Content)
	assert.NoError(t, res.Error)
	assert.Equal(t, []session.Type{session.TypeToolCall, session.TypeToolResult}, sink.types())

	call := sink.events[0].(session.ToolCall)
	assert.Equal(t, "t1", call.ID)
	assert.JSONEq(t, `{"path":"soul.md"}`, string(call.Input))
}

func TestReadFileMissing(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{})

	res := dispatch(t, d, "t1", NameReadFile, `{"path":"nope.md"}`)
	assert.Equal(t, "Error: File not found: nope.md", res.Content)
	assert.Error(t, res.Error)
	assert.Equal(t, []session.Type{session.TypeToolCall, session.TypeToolError, session.TypeToolResult}, sink.types())
}

func TestReadFileReplacesInvalidUTF8(t *testing.T) {
	d, _, root := newTestDispatcher(t, Config{})
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin.dat"), []byte{'a', 0xff, 0xfe, 'b'}, 0o644))

	res := dispatch(t, d, "t1", NameReadFile, `{"path":"bin.dat"}`)
	assert.Equal(t, "a\uFFFDb", res.Content)
}

func TestPathEscapesAreDenied(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeTestFile(t, parent, "ws2/secret.txt", "classified")

	d, sink, _ := newTestDispatcher(t, Config{Root: root})

	cases := []struct{ tool, args string }{
		{NameReadFile, `{"path":"../ws2/secret.txt"}`},
		{NameReadFile, `{"path":"/etc/passwd"}`},
		{NameWriteFile, `{"path":"../escape.txt","content":"x"}`},
		{NameListFiles, `{"directory":".."}`},
	}
	for _, tc := range cases {
		res := dispatch(t, d, "t", tc.tool, tc.args)
		assert.Equal(t, "Error: Access denied - path outside workspace", res.Content, tc.args)
		assert.Error(t, res.Error)
	}

	_, err := os.Stat(filepath.Join(parent, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	for _, p := range sink.events {
		assert.NotEqual(t, session.TypeFileEdit, p.EventType())
	}
}

func TestWriteFileNewFile(t *testing.T) {
	d, sink, root := newTestDispatcher(t, Config{})

	res := dispatch(t, d, "t1", NameWriteFile, `{"path":"notes/deep/new.txt","content":"hello"}`)
	assert.Equal(t, "Successfully wrote 5 bytes to notes/deep/new.txt", res.Content)
	assert.NoError(t, res.Error)

	data, err := os.ReadFile(filepath.Join(root, "notes", "deep", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.Equal(t, []session.Type{session.TypeToolCall, session.TypeFileEdit, session.TypeToolResult}, sink.types())
	edit := sink.events[1].(session.FileEdit)
	assert.Equal(t, "notes/deep/new.txt", edit.Path)
	assert.Equal(t, "[NEW FILE]", edit.Before)
	assert.Equal(t, workspace.NotFound, edit.BeforeHash)
	assert.Equal(t, "hello", edit.After)
	assert.Equal(t, workspace.HashString("hello"), edit.AfterHash)
}

func TestWriteFileOverwrite(t *testing.T) {
	d, sink, root := newTestDispatcher(t, Config{})
	writeTestFile(t, root, "soul.md", "old")

	res := dispatch(t, d, "t1", NameWriteFile, `{"path":"soul.md","content":"héllo"}`)
	assert.Equal(t, "Successfully wrote 6 bytes to soul.md", res.Content)

	edit := sink.events[1].(session.FileEdit)
	assert.Equal(t, "old", edit.Before)
	assert.Equal(t, workspace.HashString("old"), edit.BeforeHash)
	assert.Equal(t, workspace.HashString("héllo"), edit.AfterHash)
}

func TestListFiles(t *testing.T) {
	d, _, root := newTestDispatcher(t, Config{})
	writeTestFile(t, root, "a.txt", "abc")
	writeTestFile(t, root, "sub/b.txt", "hello")
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))

	res := dispatch(t, d, "t1", NameListFiles, `{}`)
	assert.Equal(t, "  a.txt (3 bytes)\n  sub/b.txt (5 bytes)", res.Content)

	res = dispatch(t, d, "t2", NameListFiles, `{"directory":"sub"}`)
	assert.Equal(t, "  sub/b.txt (5 bytes)", res.Content)

	res = dispatch(t, d, "t3", NameListFiles, `{"directory":"empty"}`)
	assert.Equal(t, "(empty)", res.Content)
	assert.NoError(t, res.Error)

	res = dispatch(t, d, "t4", NameListFiles, `{"directory":"nope"}`)
	assert.Equal(t, "Directory not found: nope", res.Content)
	assert.Error(t, res.Error)
}

func TestRunCommand(t *testing.T) {
	d, sink, root := newTestDispatcher(t, Config{})
	writeTestFile(t, root, "marker.txt", "here")

	res := dispatch(t, d, "t1", NameRunCommand, `{"command":"cat marker.txt"}`)
	assert.Equal(t, "here", res.Content)
	assert.NoError(t, res.Error)
	require.Equal(t, []session.Type{session.TypeToolCall, session.TypeCommandExec, session.TypeToolResult}, sink.types())
	assert.Equal(t, "cat marker.txt", sink.events[1].(session.CommandExec).Command)
}

func TestRunCommandNonZeroExit(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{})

	res := dispatch(t, d, "t1", NameRunCommand, `{"command":"echo out; echo err 1>&2; exit 3"}`)
	assert.Equal(t, "out\n\nSTDERR: err\n\n(exit code: 3)", res.Content)
	assert.EqualError(t, res.Error, "exit code 3")
	assert.Equal(t, []session.Type{
		session.TypeToolCall, session.TypeCommandExec, session.TypeToolError, session.TypeToolResult,
	}, sink.types())
}

func TestRunCommandTimeout(t *testing.T) {
	d, _, _ := newTestDispatcher(t, Config{CommandTimeout: 200 * time.Millisecond})

	start := time.Now()
	res := dispatch(t, d, "t1", NameRunCommand, `{"command":"sleep 5"}`)
	assert.Equal(t, "Error: Command timed out (200ms limit)", res.Content)
	assert.Error(t, res.Error)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunCommandKeepsOutputWhenChildOutlivesShell(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{CommandTimeout: 30 * time.Second})

	res := dispatch(t, d, "t1", NameRunCommand, `{"command":"echo started; sleep 5 &"}`)
	assert.Equal(t, "started\n"+backgroundNote, res.Content)
	assert.NoError(t, res.Error)
	assert.Equal(t, []session.Type{session.TypeToolCall, session.TypeCommandExec, session.TypeToolResult}, sink.types())
}

func TestFormatLimit(t *testing.T) {
	assert.Equal(t, "60s", formatLimit(60*time.Second))
	assert.Equal(t, "1.5s", formatLimit(1500*time.Millisecond))
}

func TestUnknownTool(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{})

	res := dispatch(t, d, "t1", "delete_everything", `{}`)
	assert.Equal(t, "Unknown tool: delete_everything", res.Content)
	assert.Error(t, res.Error)
	assert.Equal(t, []session.Type{session.TypeToolCall, session.TypeToolError, session.TypeToolResult}, sink.types())
}

func TestMissingArgument(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{})

	res := dispatch(t, d, "t1", NameReadFile, `{}`)
	assert.Equal(t, "Error executing read_file: missing 'path' for read_file", res.Content)
	toolErr := sink.events[1].(session.ToolError)
	assert.Equal(t, "t1", toolErr.ID)
	assert.Equal(t, "missing 'path' for read_file", toolErr.Error)
}

func TestMalformedArgumentsAreLoggedVerbatim(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{})

	dispatch(t, d, "t1", NameListFiles, `{"directory": ".",`)
	call := sink.events[0].(session.ToolCall)
	assert.JSONEq(t, `"{\"directory\": \".\","`, string(call.Input))
}

func TestToolResultEventIsTruncated(t *testing.T) {
	d, sink, root := newTestDispatcher(t, Config{ResultChars: 10})
	long := strings.Repeat("x", 50)
	writeTestFile(t, root, "long.txt", long)

	res := dispatch(t, d, "t1", NameReadFile, `{"path":"long.txt"}`)
	assert.Equal(t, long, res.Content)

	recorded := sink.events[len(sink.events)-1].(session.ToolResult)
	assert.Equal(t, strings.Repeat("x", 10), recorded.Result)
}

type panickingSearcher struct{}

func (panickingSearcher) Search(context.Context, string) (string, error) {
	panic("kaboom")
}

func TestPanicBecomesToolError(t *testing.T) {
	d, sink, _ := newTestDispatcher(t, Config{Searcher: panickingSearcher{}})

	res := dispatch(t, d, "t1", NameWebSearch, `{"query":"go"}`)
	assert.Equal(t, "Error executing web_search: kaboom", res.Content)
	assert.Equal(t, []session.Type{
		session.TypeToolCall, session.TypeWebSearch, session.TypeToolError, session.TypeToolResult,
	}, sink.types())
}

func TestSinkFailureIsFatal(t *testing.T) {
	for failAt := 1; failAt <= 3; failAt++ {
		sink := &recordingSink{failAt: failAt}
		d, _, _ := newTestDispatcher(t, Config{Sink: sink})

		_, err := d.Dispatch(context.Background(), ports.ToolCall{
			ID:        "t1",
			Name:      NameWriteFile,
			Arguments: []byte(`{"path":"a.txt","content":"x"}`),
		})
		assert.Error(t, err, "append #%d", failAt)
	}
}
