package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd("1.2.3", "abc1234", "2026-10-16")

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "agentguard version 1.2.3 (commit: abc1234, built: 2026-10-16)\n", out)
}

func TestState_SaveLoadList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".session-state")

	out, err := run(t, "", "state", "list", "--state-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "No session state directory found.\n", out)

	out, err = run(t, "", "state", "load", "--state-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "No session state directory found. This appears to be a fresh session.\n", out)

	_, err = run(t, "", "state", "save", "--state-dir", dir, "--summary", "s", "--accomplished", "a")
	require.EqualError(t, err, "save_state requires: remaining")
	assert.NoDirExists(t, dir)

	out, err = run(t, "", "state", "save", "--state-dir", dir,
		"--summary", "parser done",
		"--accomplished", "lexer", "--accomplished", "parser",
		"--remaining", "codegen",
		"--branch", "feature/parser",
		"--session-id", "cli-session",
	)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "State saved to "+dir), out)

	out, err = run(t, "", "state", "load", "--state-dir", dir)
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "parser done", snap["summary"])
	assert.Equal(t, []any{"lexer", "parser"}, snap["accomplished"])
	assert.Equal(t, "cli-session", snap["session_id"])
	assert.Equal(t, map[string]any{"branch": "feature/parser"}, snap["context"])

	out, err = run(t, "", "state", "list", "--state-dir", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Found 1 state file(s):\n"), out)
}

func TestBudgetCheck(t *testing.T) {
	out, err := run(t, "", "budget", "check", "--input", "130000")
	require.NoError(t, err)
	assert.Contains(t, out, "band:      soft")
	assert.Contains(t, out, "usage:     65% of 200000 tokens")
	assert.Contains(t, out, "message:   [warning]")

	out, err = run(t, "", "budget", "check", "--input", "50", "--window", "100", "--turn", "4", "--json")
	require.NoError(t, err)

	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, "info", d["band"])
	assert.EqualValues(t, 4, d["turn"])
	assert.Equal(t, "[Session Guardian: 50% context used, turn 4]", d["injection"])
	assert.Equal(t, "inject_context", d["result"].(map[string]any)["action"])

	out, err = run(t, "", "budget", "check", "--input", "120000", "--model", "gpt-4o")
	require.NoError(t, err)
	assert.Contains(t, out, "band:      hard")
}

func TestBudgetReplay(t *testing.T) {
	payloads := strings.Join([]string{
		`{"input_tokens": 30, "output_tokens": 5}`,
		`# comment lines are skipped`,
		`{"usage": {"prompt_tokens": 65, "completion_tokens": 2}}`,
		`not json at all`,
		`{"message": {"usage": {"input_tokens": 90}}}`,
	}, "\n")

	path := filepath.Join(t.TempDir(), "usage.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(payloads), 0o644))

	for _, args := range [][]string{
		{"budget", "replay", "--window", "100", path},
		{"budget", "replay", "--window", "100"},
	} {
		out, err := run(t, payloads, args...)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 5)
		assert.True(t, strings.HasPrefix(lines[0], "turn 1\tinput 30\t30%\tinfo"), lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "turn 2\tinput 65\t65%\tsoft"), lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "turn 3\tinput 65\t65%\tsoft"), lines[2])
		assert.True(t, strings.HasPrefix(lines[3], "turn 4\tinput 90\t90%\thard"), lines[3])
		assert.Equal(t, "total\tturns 4\tlatest input 90\tcumulative output 7", lines[4])
	}
}

func TestInvalidFlags(t *testing.T) {
	_, err := run(t, "", "state", "list", "--log-format", "xml")
	assert.ErrorContains(t, err, "log.format")

	_, err = run(t, "", "state", "list", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "loading config")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("guardian:\n  context_window: 1000\n  soft_threshold: 0.1\n"), 0o644))

	out, err := run(t, "", "budget", "check", "--config", path, "--input", "150")
	require.NoError(t, err)
	assert.Contains(t, out, "band:      soft")
	assert.Contains(t, out, "of 1000 tokens")
}
