package header

import (
	"fmt"
	"strings"

	"github.com/tablestream/csvmerge3/internal/row"
)

// noKeysPresentSentinel is returned by GuessPrimaryKey when all three
// input files are entirely empty, so there is nothing to key on at all.
const noKeysPresentSentinel = "[nokeyspresent]"

// PrimaryKeyError is returned when no candidate key column is both present
// in every non-empty file and free of duplicate values.
type PrimaryKeyError struct {
	Candidates string
}

func (e *PrimaryKeyError) Error() string {
	return fmt.Sprintf("no usable primary key column found among %q", e.Candidates)
}

// KeyIsValid reports whether column names a column present in the header
// of every file that isn't empty.
func KeyIsValid(column string, lca, a, b *row.File) bool {
	for _, f := range []*row.File{lca, a, b} {
		if f.Empty() {
			continue
		}
		if indexInHeader(f.Header, column) < 0 {
			return false
		}
	}
	return true
}

func indexInHeader(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// KeyDuplicates scores column as a candidate key in f by counting how many
// of its first 100 data rows share a value with an earlier row. A
// perfectly unique column scores 0.
func KeyDuplicates(column string, f *row.File) int {
	if f.Empty() {
		return 0
	}
	idx := indexInHeader(f.Header, column)
	if idx < 0 {
		return 0
	}
	limit := len(f.Rows)
	if limit > 100 {
		limit = 100
	}
	seen := map[string]bool{}
	dup := 0
	for _, r := range f.Rows[:limit] {
		v := ""
		if p := r.Field(idx); p != nil {
			v = *p
		}
		if seen[v] {
			dup++
		}
		seen[v] = true
	}
	return dup
}

// GuessPrimaryKey scans candidate column names in order and returns the
// first one that is valid everywhere with the fewest observed duplicates,
// stopping early on the first column with zero duplicates. Ties favor the
// earliest candidate.
func GuessPrimaryKey(candidates []string, lca, a, b *row.File) (string, error) {
	if lca.Empty() && a.Empty() && b.Empty() {
		return noKeysPresentSentinel, nil
	}

	bestKey := ""
	bestScore := -1
	for _, col := range candidates {
		if !KeyIsValid(col, lca, a, b) {
			continue
		}
		score := KeyDuplicates(col, lca) + KeyDuplicates(col, a) + KeyDuplicates(col, b)
		if score == 0 {
			return col, nil
		}
		if bestScore == -1 || score < bestScore {
			bestScore = score
			bestKey = col
		}
	}
	if bestScore == -1 {
		return "", &PrimaryKeyError{Candidates: strings.Join(candidates, ",")}
	}
	return bestKey, nil
}

// ResolvePrimaryKey splits a "col1|col2|[auto]" key specification and
// returns the first candidate that resolves to a usable key column, trying
// [auto] (GuessPrimaryKey over the reconciled output columns) wherever it
// appears in the list. An empty spec is treated as "[auto]".
func ResolvePrimaryKey(spec string, outputColumns []string, lca, a, b *row.File) (string, error) {
	if strings.TrimSpace(spec) == "" {
		spec = "[auto]"
	}
	candidates := strings.Split(spec, "|")
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "[auto]" {
			key, err := GuessPrimaryKey(outputColumns, lca, a, b)
			if err == nil {
				return key, nil
			}
			continue
		}
		if KeyIsValid(c, lca, a, b) {
			return c, nil
		}
	}
	return "", &PrimaryKeyError{Candidates: spec}
}
