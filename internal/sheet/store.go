// Package sheet provides row/column random access over tabular question
// files. The batch driver only needs headers, cell reads, cell writes, and
// a durable flush; this package binds that contract to CSV on disk.
package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
)

// CSVStore is a CSV-backed core.SheetStore. The whole table is held in
// memory; Flush rewrites the file atomically so an interrupted run never
// leaves a torn file behind. Safe for concurrent use.
type CSVStore struct {
	mu      sync.Mutex
	path    string
	headers []string
	rows    [][]string
}

// Open reads a CSV file whose first record is the header row. Rows shorter
// than the header are padded so every cell is addressable.
func Open(path string) (*CSVStore, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrValidation(core.CodeSheetNotFound,
				fmt.Sprintf("sheet %s does not exist", path))
		}
		return nil, core.ErrState("SHEET_OPEN_FAILED", err.Error())
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are padded below
	records, err := r.ReadAll()
	if err != nil {
		return nil, core.ErrValidation(core.CodeParseFailed,
			fmt.Sprintf("sheet %s is not valid CSV: %v", path, err))
	}
	if len(records) == 0 {
		return nil, core.ErrValidation(core.CodeParseFailed,
			fmt.Sprintf("sheet %s has no header row", path))
	}

	headers := records[0]
	rows := records[1:]
	for i, row := range rows {
		for len(row) < len(headers) {
			row = append(row, "")
		}
		rows[i] = row
	}
	return &CSVStore{path: path, headers: headers, rows: rows}, nil
}

// SetPath redirects Flush to a different file, leaving the source untouched.
func (s *CSVStore) SetPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
}

// Headers returns the header row.
func (s *CSVStore) Headers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.headers))
	copy(out, s.headers)
	return out
}

// RowCount reports the number of data rows, excluding the header.
func (s *CSVStore) RowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Cell returns the value at (row, col), or "" when out of range.
func (s *CSVStore) Cell(row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= len(s.rows) || col < 0 || col >= len(s.rows[row]) {
		return ""
	}
	return s.rows[row][col]
}

// SetCell writes a value, widening the row if the column lies beyond the
// header width (columns added by the caller, e.g. a missing response
// column, still land somewhere addressable).
func (s *CSVStore) SetCell(row, col int, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row >= len(s.rows) || col < 0 {
		return
	}
	for len(s.rows[row]) <= col {
		s.rows[row] = append(s.rows[row], "")
	}
	s.rows[row][col] = value
}

// AddColumn appends a header and returns its index. Existing rows are
// widened lazily by SetCell.
func (s *CSVStore) AddColumn(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = append(s.headers, name)
	return len(s.headers) - 1
}

// Flush writes the whole table to disk atomically: the new content lands in
// a temp file that is renamed over the target, so readers never observe a
// partially written sheet.
func (s *CSVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.headers); err != nil {
		return core.ErrState("SHEET_FLUSH_FAILED", err.Error())
	}
	for _, row := range s.rows {
		for len(row) < len(s.headers) {
			row = append(row, "")
		}
		if err := w.Write(row); err != nil {
			return core.ErrState("SHEET_FLUSH_FAILED", err.Error())
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return core.ErrState("SHEET_FLUSH_FAILED", err.Error())
	}

	if err := renameio.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return core.ErrState("SHEET_FLUSH_FAILED", err.Error())
	}
	return nil
}

var _ core.SheetStore = (*CSVStore)(nil)

// MemoryStore is an in-memory core.SheetStore for tests and dry runs. It
// counts flushes so durability-ordering behavior can be asserted.
type MemoryStore struct {
	mu      sync.Mutex
	headers []string
	rows    [][]string
	flushes int
}

// NewMemory builds a store from a header row and data rows.
func NewMemory(headers []string, rows [][]string) *MemoryStore {
	copied := make([][]string, len(rows))
	for i, row := range rows {
		r := make([]string, len(headers))
		copy(r, row)
		copied[i] = r
	}
	h := make([]string, len(headers))
	copy(h, headers)
	return &MemoryStore{headers: h, rows: copied}
}

func (m *MemoryStore) Headers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.headers))
	copy(out, m.headers)
	return out
}

func (m *MemoryStore) RowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemoryStore) Cell(row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row < 0 || row >= len(m.rows) || col < 0 || col >= len(m.rows[row]) {
		return ""
	}
	return m.rows[row][col]
}

func (m *MemoryStore) SetCell(row, col int, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row < 0 || row >= len(m.rows) || col < 0 {
		return
	}
	for len(m.rows[row]) <= col {
		m.rows[row] = append(m.rows[row], "")
	}
	m.rows[row][col] = value
}

func (m *MemoryStore) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Flushes reports how many times Flush ran.
func (m *MemoryStore) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

var _ core.SheetStore = (*MemoryStore)(nil)
