package rows

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/jeeftor/rowpilot/internal/logging"
)

// Open loads a row file, choosing the format from the extension
func Open(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return OpenCSV(path)
	case ".yaml", ".yml", ".json":
		return OpenYAML(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// OpenCSV loads a CSV file whose first record is the header. Status updates
// rewrite the file, appending the status column when it is missing.
func OpenCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read row file: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV in %s: %w", path, err)
	}

	t := &Table{
		StatusColumn: DefaultStatusColumn,
		log:          logging.NewContextualLogger("rows", "source", filepath.Base(path)),
	}
	if len(all) == 0 {
		return t, nil
	}
	for i, h := range all[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column%d", i+1)
		}
		t.columns = append(t.columns, h)
	}
	for _, rec := range all[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make(map[string]string, len(t.columns))
		for i, col := range t.columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.records = append(t.records, row)
	}

	t.save = func(columns []string, records []map[string]string) error {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(columns); err != nil {
			return err
		}
		for _, row := range records {
			rec := make([]string, len(columns))
			for i, col := range columns {
				rec[i] = row[col]
			}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
		return writeLocked(path, buf.Bytes())
	}
	t.log.Debug("Loaded rows", "rows", len(t.records), "columns", len(t.columns))
	return t, nil
}

// yamlDocument is the wrapped form `rows: [...]`
type yamlDocument struct {
	Columns []string            `yaml:"columns,omitempty" json:"columns,omitempty"`
	Rows    []map[string]string `yaml:"rows" json:"rows"`
}

// OpenYAML loads a YAML or JSON file holding either a list of row mappings
// or a mapping with a `rows` list and an optional `columns` order.
func OpenYAML(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read row file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid row file %s: %w", path, err)
	}

	var doc yamlDocument
	wrapped := false
	if len(root.Content) > 0 {
		switch root.Content[0].Kind {
		case yaml.SequenceNode:
			err = root.Content[0].Decode(&doc.Rows)
		case yaml.MappingNode:
			wrapped = true
			if err = root.Content[0].Decode(&doc); err == nil && doc.Rows == nil {
				err = fmt.Errorf("mapping has no rows list")
			}
		default:
			err = fmt.Errorf("expected a list of rows or a mapping with rows")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid row file %s: %w", path, err)
		}
	}

	t := &Table{
		StatusColumn: DefaultStatusColumn,
		records:      doc.Rows,
		log:          logging.NewContextualLogger("rows", "source", filepath.Base(path)),
	}
	for i, r := range t.records {
		if r == nil {
			t.records[i] = map[string]string{}
		}
	}
	t.columns = columnsOf(doc.Columns, t.records)
	asJSON := strings.EqualFold(filepath.Ext(path), ".json")

	t.save = func(columns []string, records []map[string]string) error {
		var out any = records
		if wrapped {
			out = yamlDocument{Columns: doc.Columns, Rows: records}
		}
		if asJSON {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			return writeLocked(path, append(data, '\n'))
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		return writeLocked(path, buf.Bytes())
	}
	t.log.Debug("Loaded rows", "rows", len(t.records), "columns", len(t.columns))
	return t, nil
}

// writeLocked replaces path under an advisory lock held on path.lock so
// concurrent runs over the same file do not interleave writes.
func writeLocked(path string, data []byte) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
