package rows

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/rowpilot/internal/engine"
)

var _ engine.RowSource = (*Table)(nil)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPending(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"", true},
		{"  ", true},
		{"failed: timeout", true},
		{"done", false},
		{"entered", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, Pending(tt.status))
		})
	}
}

func TestMemoryTable(t *testing.T) {
	src := []map[string]string{
		{"name": "Kim"},
		{"name": "Lee", "status": "done"},
		{"name": "Park", "status": "failed: not found"},
	}
	tbl := NewMemory(src)

	assert.Equal(t, 3, tbl.RowCount())
	assert.Equal(t, []int{0, 2}, tbl.PendingRows())
	assert.Equal(t, []string{"name", "status"}, tbl.Columns())

	row, err := tbl.RowData(0)
	require.NoError(t, err)
	row["name"] = "changed"
	again, _ := tbl.RowData(0)
	assert.Equal(t, "Kim", again["name"], "RowData returns a copy")

	require.NoError(t, tbl.UpdateRowStatus(0, "done"))
	assert.Equal(t, []int{2}, tbl.PendingRows())
	assert.Equal(t, "", src[0]["status"], "input records are not mutated")

	_, err = tbl.RowData(3)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	assert.ErrorIs(t, tbl.UpdateRowStatus(-1, "done"), ErrRowOutOfRange)

	require.NoError(t, tbl.ResetStatus())
	assert.Equal(t, []int{0, 1, 2}, tbl.PendingRows())
}

func TestCSVWriteBack(t *testing.T) {
	path := writeFile(t, "people.csv", "name,phone\nKim,010-1\nLee,010-2\n\n")

	tbl, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, []string{"name", "phone"}, tbl.Columns())

	row, err := tbl.RowData(1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Lee", "phone": "010-2"}, row)

	require.NoError(t, tbl.UpdateRowStatus(0, "done"))
	require.NoError(t, tbl.UpdateRowStatus(1, "failed: text \"Save\" not found\nafter retry"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name,phone,status\nKim,010-1,done\nLee,010-2,\"failed: text \"\"Save\"\" not found after retry\"\n", string(data))

	reloaded, err := OpenCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, reloaded.PendingRows())
	assert.FileExists(t, path+".lock")
}

func TestCSVShortRecords(t *testing.T) {
	path := writeFile(t, "short.csv", "\ufeffname,,status\nKim\nLee,x,done\n")

	tbl, err := OpenCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "column2", "status"}, tbl.Columns())
	assert.Equal(t, []int{0}, tbl.PendingRows())
}

func TestYAMLList(t *testing.T) {
	path := writeFile(t, "rows.yaml", "- name: Kim\n  age: 30\n- name: Lee\n  status: done\n")

	tbl, err := Open(path)
	require.NoError(t, err)
	row, err := tbl.RowData(0)
	require.NoError(t, err)
	assert.Equal(t, "30", row["age"])
	assert.Equal(t, []int{0}, tbl.PendingRows())

	require.NoError(t, tbl.UpdateRowStatus(0, "done"))
	reloaded, err := OpenYAML(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.PendingRows())
	assert.Equal(t, "done", reloaded.Status(0))
}

func TestYAMLWrapped(t *testing.T) {
	path := writeFile(t, "rows.yml", "columns: [name, city]\nrows:\n  - {city: Seoul, name: Kim}\n")

	tbl, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, tbl.Columns())

	require.NoError(t, tbl.UpdateRowStatus(0, "done"))
	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city", "status"}, reloaded.Columns())
	assert.Equal(t, "done", reloaded.Status(0))
}

func TestJSONStaysJSON(t *testing.T) {
	path := writeFile(t, "rows.json", `[{"name": "Kim"}, {"name": "Lee"}]`)

	tbl, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, tbl.UpdateRowStatus(1, "done"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "done", decoded[1]["status"])
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("people.xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Open(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "name: Kim\n")
	_, err = Open(bad)
	assert.Error(t, err, "a mapping without rows is not a row list")
}
