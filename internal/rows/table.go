// Package rows provides the row sources a run iterates over: an in-memory
// table, and CSV or YAML/JSON files that receive status write-back.
package rows

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/logging"
)

// DefaultStatusColumn holds the per-row completion status
const DefaultStatusColumn = "status"

var (
	// ErrRowOutOfRange is returned for an index outside the table
	ErrRowOutOfRange = errors.New("row index out of range")
	// ErrUnsupportedFormat is returned by Open for an unknown file extension
	ErrUnsupportedFormat = errors.New("unsupported row file format")
)

// Table is an ordered set of rows keyed by column name. Status updates are
// persisted through the optional save hook after every write.
type Table struct {
	// StatusColumn names the column receiving status write-back
	StatusColumn string

	mu      sync.RWMutex
	columns []string
	records []map[string]string
	save    func(columns []string, records []map[string]string) error
	log     *logging.ContextualLogger
}

// NewMemory builds a table that keeps status updates in memory only
func NewMemory(records []map[string]string) *Table {
	t := &Table{
		StatusColumn: DefaultStatusColumn,
		log:          logging.NewContextualLogger("rows", "source", "memory"),
	}
	for _, r := range records {
		t.records = append(t.records, copyRecord(r))
	}
	t.columns = columnsOf(nil, t.records)
	return t
}

// Columns returns the column names in file order
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.columns)
}

// RowCount returns the number of rows
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// RowData returns a copy of the row at index
func (t *Table) RowData(index int) (map[string]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.records) {
		return nil, fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, index, len(t.records))
	}
	return copyRecord(t.records[index]), nil
}

// Status returns the status recorded for a row
func (t *Table) Status(index int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.records) {
		return ""
	}
	return t.records[index][t.StatusColumn]
}

// PendingRows lists rows without a status or whose last attempt failed
func (t *Table) PendingRows() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []int
	for i, r := range t.records {
		if Pending(r[t.StatusColumn]) {
			out = append(out, i)
		}
	}
	return out
}

// Pending reports whether a status value marks a row as still to do
func Pending(status string) bool {
	status = strings.TrimSpace(status)
	return status == "" || strings.HasPrefix(status, constants.StatusFailedPrefix)
}

// UpdateRowStatus stores status in the status column and persists the table
func (t *Table) UpdateRowStatus(index int, status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.records) {
		return fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, index, len(t.records))
	}
	// Statuses are single-line cells
	status = strings.ReplaceAll(status, "\n", " ")
	t.records[index][t.StatusColumn] = status
	if !slices.Contains(t.columns, t.StatusColumn) {
		t.columns = append(t.columns, t.StatusColumn)
	}
	t.log.Debug("Row status updated", "row", index, "status", status)

	if t.save == nil {
		return nil
	}
	if err := t.save(t.columns, t.records); err != nil {
		return fmt.Errorf("failed to persist status of row %d: %w", index, err)
	}
	return nil
}

// ResetStatus clears every status so all rows become pending again
func (t *Table) ResetStatus() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		delete(r, t.StatusColumn)
	}
	if t.save == nil {
		return nil
	}
	return t.save(t.columns, t.records)
}

func copyRecord(r map[string]string) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// columnsOf extends known with the keys of records, new keys sorted per record
func columnsOf(known []string, records []map[string]string) []string {
	cols := slices.Clone(known)
	for _, r := range records {
		var extra []string
		for k := range r {
			if !slices.Contains(cols, k) {
				extra = append(extra, k)
			}
		}
		slices.Sort(extra)
		cols = append(cols, extra...)
	}
	return cols
}
