// Package conflict resolves individual fields across a three-way merge and
// formats the conflict blocks emitted when a field cannot be resolved
// automatically.
package conflict

import (
	"fmt"
	"io"
	"regexp"

	"github.com/tablestream/csvmerge3/internal/header"
	"github.com/tablestream/csvmerge3/internal/row"
)

// Field is a single column's resolution inputs and, on failure, the two
// competing values.
type Field struct {
	Column string
	ValA   *string
	ValB   *string
}

// Choose3 applies the standard three-way value rule: take whichever side
// changed, prefer neither if both changed identically, and report a
// conflict if both changed to different values. A nil value represents a
// column absent from that file, which is distinct from an empty string.
func Choose3(lca, a, b *string) (*string, bool) {
	if equalValue(lca, a) {
		return b, true
	}
	if equalValue(lca, b) {
		return a, true
	}
	if equalValue(a, b) {
		return a, true
	}
	return nil, false
}

func equalValue(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// Resolution is the outcome of merging one row across the three files.
type Resolution struct {
	Fields    []string
	Conflicts []Field
	IsDelete  bool
}

// MergeRow resolves every output column for one key given the (possibly
// nil) row from each file. A nil row means that file has no row for this
// key, either because it never had one or because the row was deleted.
func MergeRow(cols []header.ColumnMap, lca, a, b *row.Row) Resolution {
	res := Resolution{
		Fields:   make([]string, len(cols)),
		IsDelete: lca != nil && !(a != nil && b != nil),
	}
	for i, col := range cols {
		vL := lookupField(lca, col.LCAIndex)
		vA := lookupField(a, col.AIndex)
		vB := lookupField(b, col.BIndex)
		val, ok := Choose3(vL, vA, vB)
		if !ok {
			res.Conflicts = append(res.Conflicts, Field{Column: col.Name, ValA: vA, ValB: vB})
			continue
		}
		if val != nil {
			res.Fields[i] = *val
		}
	}
	return res
}

func lookupField(r *row.Row, colIndex int) *string {
	if r == nil || colIndex < 0 {
		return nil
	}
	return r.Field(colIndex)
}

// RawCompatible reports whether a and b can stand in for each other
// unchanged: one of them is absent, their raw bytes match exactly, or
// their decoded fields match exactly (formatting-only difference).
func RawCompatible(a, b *row.Row) bool {
	if a == nil || b == nil {
		return true
	}
	if string(a.Raw) == string(b.Raw) {
		return true
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

var newlineRE = regexp.MustCompile(`\r\n|\n`)

// quoteNewlines collapses embedded newlines in a field value to a literal
// backslash-n so a field marker line stays on one line.
func quoteNewlines(s string) string {
	return newlineRE.ReplaceAllString(s, `\n`)
}

func valueOrNone(v *string) string {
	if v == nil {
		return "None"
	}
	return quoteNewlines(*v)
}

// WriteBlock renders one conflict block to w in the fixed format:
//
//	>>>>>> <label> @<line> (<key>)   (or "Deleted @<line>")
//	>>>>>> <col> = <value>          (one per conflicting column)
//	<raw text of the A-side row, if any>
//	====== <label> @<line> (<key>)
//	====== <col> = <value>
//	<raw text of the B-side row, if any>
//	<<<<<<
func WriteBlock(w io.Writer, labelA, labelB string, lcaLine int, a, b *row.Row, key string, conflicts []Field) error {
	if err := writeSide(w, ">>>>>>", labelA, lcaLine, a, key, conflicts, func(f Field) *string { return f.ValA }); err != nil {
		return err
	}
	if err := writeSide(w, "======", labelB, lcaLine, b, key, conflicts, func(f Field) *string { return f.ValB }); err != nil {
		return err
	}
	_, err := io.WriteString(w, "<<<<<<\n")
	return err
}

func writeSide(w io.Writer, marker, label string, lcaLine int, r *row.Row, key string, conflicts []Field, pick func(Field) *string) error {
	var header string
	if r == nil {
		header = fmt.Sprintf("%s %s Deleted @%d\n", marker, label, lcaLine)
	} else {
		header = fmt.Sprintf("%s %s @%d (%s)\n", marker, label, r.Line, key)
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for _, c := range conflicts {
		line := fmt.Sprintf("%s %s = %s\n", marker, c.Column, valueOrNone(pick(c)))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	if r != nil {
		if _, err := w.Write(r.Raw); err != nil {
			return err
		}
	}
	return nil
}
