// Package row loads a CSV file into rows indexed by primary key, the shared
// unit the header reconciler, cursor, and merge driver all operate on.
package row

import (
	"fmt"
	"io"
	"os"

	"github.com/tablestream/csvmerge3/internal/csvio"
)

// Row is a single data line together with its line number, raw bytes, and
// decoded fields. Consumed is flipped in place by a cursor once the row has
// been folded into an output row or conflict block, so any other reference
// to the same Row observes the change immediately.
type Row struct {
	Line     int
	Raw      []byte
	Fields   []string
	Key      string
	Consumed bool
}

// Field returns the value at index i, or nil if the row has fewer fields
// than that (a ragged row), matching a missing column rather than "".
func (r *Row) Field(i int) *string {
	if r == nil || i < 0 || i >= len(r.Fields) {
		return nil
	}
	return &r.Fields[i]
}

// MalformedRowError is returned when a data row cannot be decoded as valid
// CSV under the configured dialect.
type MalformedRowError struct {
	Path string
	Line int
	Err  error
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%s:%d: malformed row: %v", e.Path, e.Line, e.Err)
}
func (e *MalformedRowError) Unwrap() error { return e.Err }

// DuplicateKeyError is returned when the same primary key value appears on
// more than one data row of a file.
type DuplicateKeyError struct {
	Path  string
	Key   string
	First int
	Again int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: duplicate key %q at lines %d and %d", e.Path, e.Key, e.First, e.Again)
}

// MissingKeyColumnError is returned when the chosen primary key column name
// is not present in a file's header.
type MissingKeyColumnError struct {
	Path   string
	Column string
}

func (e *MissingKeyColumnError) Error() string {
	return fmt.Sprintf("%s: key column %q not found in header", e.Path, e.Column)
}

// File is a fully loaded CSV file: its raw header text, uniquified header
// names, and all data rows indexed by primary key.
type File struct {
	Path        string
	HeaderRaw   []byte
	Header      []string
	KeyIndex    int
	Rows        []*Row
	ByKey       map[string]*Row
	lastLineNum int
}

// Empty reports whether the file has no header at all, i.e. it did not
// exist or contained zero bytes. An empty file is legitimate input for the
// LCA side of a merge (a file newly created by both A and B).
func (f *File) Empty() bool {
	return len(f.Header) == 0
}

// Load reads path as CSV under dialect and indexes its rows by keyColumn.
// When keyColumn is "", the header/index are still built but KeyIndex is
// left at -1 and ByKey/Key are left blank; the caller resolves the key
// column afterward (see internal/header.ResolvePrimaryKey) and calls
// ReindexKey once it is known.
func Load(path string, dialect csvio.Dialect, keyColumn string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Path: path, ByKey: map[string]*Row{}, KeyIndex: -1}, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return &File{Path: path, ByKey: map[string]*Row{}, KeyIndex: -1}, nil
	}

	r := csvio.NewReader(f, dialect)
	headerRaw, headerFields, err := r.ReadRow()
	if err != nil {
		if err == io.EOF {
			return &File{Path: path, ByKey: map[string]*Row{}, KeyIndex: -1}, nil
		}
		return nil, wrapReaderErr(path, r, err)
	}

	file := &File{
		Path:      path,
		HeaderRaw: headerRaw,
		Header:    uniquify(headerFields),
		KeyIndex:  -1,
		ByKey:     map[string]*Row{},
	}

	line := 2
	for {
		raw, fields, err := r.ReadRow()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapReaderErr(path, r, err)
		}
		file.Rows = append(file.Rows, &Row{Line: line, Raw: raw, Fields: fields})
		line++
	}
	file.lastLineNum = line - 1

	if keyColumn != "" {
		if err := file.ReindexKey(keyColumn); err != nil {
			return nil, err
		}
	}
	return file, nil
}

func wrapReaderErr(path string, r *csvio.Reader, err error) error {
	var mr *csvio.MalformedRowError
	if e, ok := err.(*csvio.MalformedRowError); ok {
		mr = e
		return &MalformedRowError{Path: path, Line: mr.Line, Err: err}
	}
	return fmt.Errorf("reading %s: %w", path, err)
}

// ReindexKey finds keyColumn in the header, populates each row's Key, and
// builds the ByKey index. It fails with MissingKeyColumnError if the file
// is non-empty and lacks the column, and DuplicateKeyError if two rows
// share a key value.
func (f *File) ReindexKey(keyColumn string) error {
	if f.Empty() {
		return nil
	}
	idx := indexOf(f.Header, keyColumn)
	if idx < 0 {
		return &MissingKeyColumnError{Path: f.Path, Column: keyColumn}
	}
	f.KeyIndex = idx
	f.ByKey = make(map[string]*Row, len(f.Rows))
	for _, row := range f.Rows {
		key := ""
		if v := row.Field(idx); v != nil {
			key = *v
		}
		row.Key = key
		if existing, dup := f.ByKey[key]; dup {
			return &DuplicateKeyError{Path: f.Path, Key: key, First: existing.Line, Again: row.Line}
		}
		f.ByKey[key] = row
	}
	return nil
}

// LastLine returns the 1-based line number of the file's final data row, or
// 1 (the header line) if the file has no data rows.
func (f *File) LastLine() int {
	if f.lastLineNum == 0 {
		return 1
	}
	return f.lastLineNum
}

func indexOf(haystack []string, needle string) int {
	for i, s := range haystack {
		if s == needle {
			return i
		}
	}
	return -1
}

// uniquify rewrites a raw header so that blank names become
// "[*unlabeled*]" and repeated names get a "[N]" suffix counting
// occurrences, matching the disambiguation a header reconciler needs to
// treat every column as addressable by a stable name.
func uniquify(names []string) []string {
	seen := map[string]int{}
	out := make([]string, len(names))
	for i, name := range names {
		if name == "" {
			name = "[*unlabeled*]"
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			out[i] = fmt.Sprintf("%s[%d]", name, n)
		} else {
			out[i] = name
		}
	}
	return out
}
