package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/rows"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestInitThenValidate(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "signup.yaml")

	out, err = execute(t, "validate", filepath.Join(dir, "signup.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
}

func TestValidateReportsProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bad
steps:
  - id: a
    kind: repeat_begin
    pair_id: p
  - id: a
    kind: wait
    seconds: 0
`), 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "duplicate step id")
}

func TestDryRunWritesRowStatus(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir)
	require.NoError(t, err)

	fragments := filepath.Join(dir, "fragments.json")
	require.NoError(t, os.WriteFile(fragments, []byte(`[
		{"text": "Full name", "box": {"x": 100, "y": 200, "width": 90, "height": 16}, "confidence": 1},
		{"text": "Thank you", "box": {"x": 300, "y": 400, "width": 90, "height": 16}, "confidence": 1}
	]`), 0o644))

	rowsFile := filepath.Join(dir, "people.csv")
	out, err := execute(t, "run", filepath.Join(dir, "signup.yaml"),
		"--rows", rowsFile, "--dry-run", "--fragments", fragments, "--row-delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "2/2 succeeded")

	table, err := rows.Open(rowsFile)
	require.NoError(t, err)
	assert.Empty(t, table.PendingRows())
	assert.Equal(t, "done", table.Status(0))
}

func TestRunResetStatusRerunsDoneRows(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir)
	require.NoError(t, err)
	t.Cleanup(func() { runResetStatus = false })

	fragments := filepath.Join(dir, "fragments.json")
	require.NoError(t, os.WriteFile(fragments, []byte(`[
		{"text": "Full name", "box": {"x": 100, "y": 200, "width": 90, "height": 16}, "confidence": 1},
		{"text": "Thank you", "box": {"x": 300, "y": 400, "width": 90, "height": 16}, "confidence": 1}
	]`), 0o644))
	rowsFile := filepath.Join(dir, "people.csv")
	args := []string{"run", filepath.Join(dir, "signup.yaml"),
		"--rows", rowsFile, "--dry-run", "--fragments", fragments, "--row-delay", "0s"}

	_, err = execute(t, args...)
	require.NoError(t, err)
	table, err := rows.Open(rowsFile)
	require.NoError(t, err)
	require.Empty(t, table.PendingRows())

	out, err := execute(t, append(args, "--reset-status")...)
	require.NoError(t, err)
	assert.Contains(t, out, "2/2 succeeded")
}

func TestValidateWarnsOnLiteralPlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "literal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: literal
steps:
  - id: greet
    kind: type
    text: "Hello ${name}"
    use_variables: false
  - id: check
    kind: if
    condition:
      type: variable_equals
      variable: name
      value: Kim
    then:
      - id: inner
        kind: type
        text: "{{email}}"
        use_variables: false
  - id: ok
    kind: type
    text: "Hello ${name}"
`), 0o644))

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "step greet:")
	assert.Contains(t, out, "step inner:")
	assert.NotContains(t, out, "step ok:")
}

func TestFuzzyMatches(t *testing.T) {
	frags := []device.Fragment{
		{Text: "Save as", Confidence: 1, Box: macro.Region{X: 0, Y: 0, Width: 20, Height: 10}},
		{Text: "Save", Confidence: 1, Box: macro.Region{X: 100, Y: 0, Width: 20, Height: 10}},
		{Text: "Cancel", Confidence: 1, Box: macro.Region{X: 200, Y: 0, Width: 20, Height: 10}},
	}

	best, err := fuzzyMatches(context.Background(), frags, "save", 0.5, false)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.Equal(t, "Save", best[0].Text)
	assert.Equal(t, macro.Point{X: 110, Y: 5}, best[0].Center)

	all, err := fuzzyMatches(context.Background(), frags, "save", 0.5, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Save", all[0].Text)
	assert.Equal(t, "Save as", all[1].Text)

	none, err := fuzzyMatches(context.Background(), frags, "delete", 0.9, true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestResolveUsesRowData(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "init", dir)
	require.NoError(t, err)

	out, err := execute(t, "resolve", "Hi ${name} <{{email}}> ${missing}",
		"--rows", filepath.Join(dir, "people.csv"), "--row", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Hi Alan Turing <alan@example.test> ${missing}")
	assert.Contains(t, out, "unresolved: missing")
}

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("1, 2,30,40")
	require.NoError(t, err)
	assert.Equal(t, 30, r.Width)

	r, err = parseRegion("")
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = parseRegion("1,2,3")
	assert.Error(t, err)
	_, err = parseRegion("1,2,0,4")
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, ExitCode(&exitError{code: 3}))
	assert.Equal(t, 1, ExitCode(errRowsFailed))
}
