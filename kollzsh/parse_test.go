package kollzsh

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level   string
	msg     string
	keyvals []interface{}
}

// recordingLogger captures diagnostics so tests can assert on them.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) Debug(msg interface{}, keyvals ...interface{}) {
	r.record("debug", msg, keyvals)
}

func (r *recordingLogger) Warn(msg interface{}, keyvals ...interface{}) {
	r.record("warn", msg, keyvals)
}

func (r *recordingLogger) record(level string, msg interface{}, keyvals []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: fmt.Sprint(msg), keyvals: keyvals})
}

func (r *recordingLogger) has(level, msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

func (r *recordingLogger) count(level string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func fenced(body string) string {
	return "Here you go:\n```json\n" + body + "\n```\nLet me know if you need more."
}

func toolReply(calls ...ToolCall) Reply {
	return Reply{ToolCalls: calls}
}

func shellCall(args string) ToolCall {
	return ToolCall{ID: "call_1", Name: ShellCommandToolName, Arguments: args}
}

func TestParseContent_FencedBlock(t *testing.T) {
	content := "```json\n{\"commands\": [{\"command\": \"pwd\", \"description\": \"print dir\"}]}\n```"

	cmds, err := ParseContent(content, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pwd"}, cmds)
}

func TestParseContent_BareJSON(t *testing.T) {
	cmds, err := ParseContent(`{"commands":[{"command":"ls"},{"command":"du -sh ."}]}`, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "du -sh ."}, cmds)
}

func TestParseContent_RoundTrip(t *testing.T) {
	want := []string{"ls -la", `grep "foo" bar.txt`, "$ echo done"}
	env := commandEnvelope{}
	for _, c := range want {
		env.Commands = append(env.Commands, commandEntry{Command: c, Description: "d"})
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)

	cmds, err := ParseContent(fenced(string(body)), MustContract(ContractSchema), nil)
	require.NoError(t, err)
	require.Len(t, cmds, len(want))
	for i, c := range want {
		assert.Equal(t, Normalize(c), cmds[i])
	}
	assert.Equal(t, `grep \"foo\" bar.txt`, cmds[1])
}

func TestParseContent_MultiLineJSON(t *testing.T) {
	content := fenced("{\n  \"commands\": [\n    {\n      \"command\": \"find . -name '*.go'\",\n      \"description\": \"find go files\"\n    }\n  ]\n}")

	cmds, err := ParseContent(content, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"find . -name '*.go'"}, cmds)
}

func TestParseContent_RawNewlineInsideString(t *testing.T) {
	content := fenced("{\"commands\": [{\"command\": \"tar -czf out.tgz\n.\"}]}")

	cmds, err := ParseContent(content, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tar -czf out.tgz ."}, cmds)
}

func TestParseContent_OverEscaped(t *testing.T) {
	log := &recordingLogger{}
	content := `{\"commands\": [{\"command\": \"ls -la\"}, {\"command\": \"pwd\"}]}`

	cmds, err := ParseContent(content, MustContract(ContractSchema), log)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls -la", "pwd"}, cmds)
	assert.True(t, log.has("debug", "Recovered over-escaped content"))
}

func TestParseContent_SkipsBlankCommands(t *testing.T) {
	log := &recordingLogger{}
	cmds, err := ParseContent(`{"commands":[{"command":"  "},{"command":"$"},{"command":"uptime"}]}`, MustContract(ContractSchema), log)
	require.NoError(t, err)
	assert.Equal(t, []string{"uptime"}, cmds)
	assert.True(t, log.has("debug", "Skipping blank command"))
}

func TestParseContent_EscapedControlCharacters(t *testing.T) {
	cmds, err := ParseContent(`{"commands":[{"command":"echo \u001b[2Jcleared"},{"command":"ls\u0000 -la\u007f"}]}`, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo [2Jcleared", "ls -la"}, cmds)
}

func TestParseContent_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"malformed", "{not json", ErrParse},
		{"prose only", "I cannot help with that.", ErrParse},
		{"truncated fence", "```json\n{\"commands\": [\n```", ErrParse},
		{"top-level list", `[{"command":"ls"}]`, ErrShape},
		{"missing commands key", `{"cmds":[{"command":"ls"}]}`, ErrShape},
		{"commands not a list", `{"commands":"ls"}`, ErrShape},
		{"entry not an object", `{"commands":["ls"]}`, ErrShape},
		{"entry without command", `{"commands":[{"description":"list"}]}`, ErrShape},
		{"command not a string", `{"commands":[{"command":42}]}`, ErrShape},
		{"empty fence", "```json\n```", ErrEmptyReply},
		{"whitespace only", " \n\t", ErrEmptyReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			cmds, err := ParseContent(tt.content, MustContract(ContractSchema), log)
			assert.Empty(t, cmds)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, log.count("warn"), "each failure emits one warning")
		})
	}
}

func TestParseReply_EmptyReply(t *testing.T) {
	log := &recordingLogger{}
	cmds, err := ParseReply(Reply{}, MustContract(ContractToolCall), log)
	assert.Empty(t, cmds)
	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.True(t, log.has("warn", "No valid commands found in response"))
}

func TestParseReply_ToolCallPrecedence(t *testing.T) {
	reply := Reply{
		ToolCalls: []ToolCall{shellCall(`{"commands":["ls -la","pwd"]}`)},
		Content:   fenced(`{"commands":[{"command":"whoami"}]}`),
	}

	cmds, err := ParseReply(reply, MustContract(ContractToolCall), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls -la", "pwd"}, cmds)
}

func TestParseReply_FirstUsableToolCallWins(t *testing.T) {
	reply := toolReply(
		ToolCall{Name: "some_other_tool", Arguments: `{"commands":["rm -rf /"]}`},
		shellCall(`{"commands":[]}`),
		shellCall(`{"commands":["uptime"]}`),
		shellCall(`{"commands":["date"]}`),
	)

	cmds, err := ParseReply(reply, MustContract(ContractToolCall), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"uptime"}, cmds)
}

func TestParseReply_ToolCallArgumentShapes(t *testing.T) {
	tests := []struct {
		name string
		args string
		want []string
	}{
		{"list of strings", `{"commands":["ls","pwd"]}`, []string{"ls", "pwd"}},
		{"list encoded as string", `{"commands":"[\"ls\",\"pwd\"]"}`, []string{"ls", "pwd"}},
		{"single string", `{"commands":"ls -la"}`, []string{"ls -la"}},
		{"commands normalized", `{"commands":["$ echo \"hi\"","\tdf -h\n"]}`, []string{`echo \"hi\"`, "df -h"}},
		{"extra fields ignored", `{"commands":["ls"],"reason":"list"}`, []string{"ls"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds, err := ParseReply(toolReply(shellCall(tt.args)), MustContract(ContractToolCall), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmds)
		})
	}
}

func TestParseReply_UnusableToolCallsFallBackToContent(t *testing.T) {
	tests := []struct {
		name string
		call ToolCall
	}{
		{"wrong name", ToolCall{Name: "get_weather", Arguments: `{"commands":["ls"]}`}},
		{"empty commands", shellCall(`{"commands":[]}`)},
		{"missing commands", shellCall(`{"cmd":"ls"}`)},
		{"invalid arguments", shellCall(`{"commands": [`)},
		{"non-string element", shellCall(`{"commands":["ls", 3]}`)},
		{"commands is a number", shellCall(`{"commands":7}`)},
		{"only blank commands", shellCall(`{"commands":["  ", "$"]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			reply := Reply{
				ToolCalls: []ToolCall{tt.call},
				Content:   fenced(`{"commands":[{"command":"whoami"}]}`),
			}
			cmds, err := ParseReply(reply, MustContract(ContractToolCall), log)
			require.NoError(t, err)
			assert.Equal(t, []string{"whoami"}, cmds)
			assert.True(t, log.has("debug", "No usable tool calls found, falling back to content parsing"))
		})
	}
}

func TestParseReply_UnusableToolCallsWithoutContent(t *testing.T) {
	log := &recordingLogger{}
	cmds, err := ParseReply(toolReply(shellCall(`not json`)), MustContract(ContractToolCall), log)
	assert.Empty(t, cmds)
	assert.ErrorIs(t, err, ErrShape)
	assert.True(t, log.has("warn", "Error accessing tool call arguments"))
	assert.True(t, log.has("warn", "No valid commands found in response"))
}

func TestParseReply_SchemaContractIgnoresToolCalls(t *testing.T) {
	reply := Reply{
		ToolCalls: []ToolCall{shellCall(`{"commands":["ls"]}`)},
		Content:   `{"commands":[{"command":"pwd"}]}`,
	}

	cmds, err := ParseReply(reply, MustContract(ContractSchema), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"pwd"}, cmds)
}

func TestParseReply_ContentOnlyUnderToolContract(t *testing.T) {
	cmds, err := ParseReply(Reply{Content: fenced(`{"commands":[{"command":"git status"}]}`)}, MustContract(ContractToolCall), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"git status"}, cmds)
}

func TestParseReply_OutputsAreNormalized(t *testing.T) {
	reply := toolReply(shellCall(`{"commands":["$ ls  -la\n", "> cat \\\\\"a b\\\\\""]}`))

	cmds, err := ParseReply(reply, MustContract(ContractToolCall), nil)
	require.NoError(t, err)
	for _, c := range cmds {
		assert.Equal(t, c, Normalize(c))
		assert.False(t, strings.ContainsAny(c, "\n\r\t"))
	}
	assert.Equal(t, []string{"ls -la", `cat \"a b\"`}, cmds)
}

func TestExtractJSONFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONFence("text ```json\n{\"a\":1}\n``` more"))
	assert.Equal(t, `{"a":1}`, ExtractJSONFence("```JSON {\"a\":1} ```"))
	assert.Equal(t, "first", ExtractJSONFence("```json first``` ```json second```"))
	assert.Equal(t, "no fence here", ExtractJSONFence("no fence here"))
}
