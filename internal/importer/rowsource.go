package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RowSource produces the ordered rows of one import attempt. Both input
// modes feed the same validator/resolver/committer pipeline; only the way
// rows come into being differs.
type RowSource interface {
	// Rows returns the current row sequence. Restartable: calling it again
	// re-reads the source from the start.
	Rows() ([]RawRow, error)
}

// FileSource parses delimited text with a header row. The header names
// become column keys; blank lines are skipped; a malformed document fails
// the whole import with a ParseError.
type FileSource struct {
	data []byte
}

// NewFileSource wraps raw CSV bytes as a row source.
func NewFileSource(data []byte) *FileSource {
	return &FileSource{data: data}
}

// Rows parses the document. Positions are physical CSV line numbers, so
// the first data row after the header reports position 2.
func (s *FileSource) Rows() ([]RawRow, error) {
	data := sanitizeUTF8(s.data)

	// Ragged rows are tolerated (missing optional columns); quoting errors
	// are not, since a mangled quote silently corrupts every later field.
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Err: errors.New("empty file")}
	}

	header := makeHeaderIndex(records[0])
	if len(header) == 0 {
		return nil, &ParseError{Err: errors.New("missing header row")}
	}

	var rows []RawRow
	for i, rec := range records[1:] {
		if isEmptyRow(rec) {
			continue
		}

		fields := make(map[string]string, len(header))
		for name, pos := range header {
			if pos < len(rec) {
				fields[name] = cleanCell(rec[pos])
			}
		}

		rows = append(rows, RawRow{
			Position: i + 2, // 1-indexed, after the header line
			Fields:   fields,
		})
	}

	return rows, nil
}

// GridSource holds rows entered interactively one cell at a time. Parsing
// cannot fail by construction; every row carries a stable opaque ID
// assigned at creation, used only for addressing edits.
type GridSource struct {
	rows []gridRow
}

type gridRow struct {
	id     string
	fields map[string]string
}

// NewGridSource returns an empty grid.
func NewGridSource() *GridSource {
	return &GridSource{}
}

// AddRow appends a row and returns its opaque ID. A nil fields map adds a
// blank row.
func (g *GridSource) AddRow(fields map[string]string) string {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[strings.ToLower(strings.TrimSpace(k))] = v
	}

	id := uuid.New().String()
	g.rows = append(g.rows, gridRow{id: id, fields: copied})
	return id
}

// SetCell updates one cell of an existing row.
func (g *GridSource) SetCell(rowID, column, value string) error {
	for i := range g.rows {
		if g.rows[i].id == rowID {
			g.rows[i].fields[strings.ToLower(strings.TrimSpace(column))] = value
			return nil
		}
	}
	return fmt.Errorf("row not found: %s", rowID)
}

// RemoveRow deletes a row. Positions of later rows shift down, matching
// what the grid displays.
func (g *GridSource) RemoveRow(rowID string) error {
	for i := range g.rows {
		if g.rows[i].id == rowID {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("row not found: %s", rowID)
}

// Len returns the number of rows in the grid.
func (g *GridSource) Len() int { return len(g.rows) }

// Rows returns the current grid state. Positions are 1-based ordinals.
func (g *GridSource) Rows() ([]RawRow, error) {
	rows := make([]RawRow, 0, len(g.rows))
	for i, r := range g.rows {
		fields := make(map[string]string, len(r.fields))
		for k, v := range r.fields {
			fields[k] = v
		}
		rows = append(rows, RawRow{
			ID:       r.id,
			Position: i + 1,
			Fields:   fields,
		})
	}
	return rows, nil
}

// makeHeaderIndex maps cleaned, lower-cased header names to their column
// position. Later duplicates of a header name win, matching spreadsheet
// behavior where the rightmost column is the one last edited.
func makeHeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(cleanCell(h))
		if key == "" {
			continue
		}
		idx[key] = i
	}
	return idx
}

// cleanCell strips the UTF-8 BOM and surrounding whitespace from a cell.
func cleanCell(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.TrimSpace(s)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune
// so encoding/csv never sees broken input.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
