// Package header reconciles the three column schemas of a three-way merge
// into one output schema, and resolves the primary key column used to
// align rows across files.
package header

import "fmt"

// ColumnMap names one output column and the index of that column within
// each of the three input files, or -1 if that file has no such column.
type ColumnMap struct {
	Name     string
	LCAIndex int
	AIndex   int
	BIndex   int
}

// Result is the reconciled output schema plus a record of any reordered
// columns that were resolved by favoring A's position.
type Result struct {
	Columns       []ColumnMap
	NeedRemapping bool
	Reordered     []string
}

// HeaderEmptyError is returned when header reconciliation produces no
// output columns even though at least one input file has a header.
type HeaderEmptyError struct{}

func (e *HeaderEmptyError) Error() string { return "reconciled header has no columns" }

type workState struct {
	lca, a, b          []string
	origLCA, origA, origB []string
}

func (s *workState) noMoreInput() bool {
	return len(s.lca) == 0 && len(s.a) == 0 && len(s.b) == 0
}

func (s *workState) peek(list []string) (string, bool) {
	if len(list) == 0 {
		return "", false
	}
	return list[0], true
}

func (s *workState) advanceLCA() { s.lca = s.lca[1:] }
func (s *workState) advanceA()   { s.a = s.a[1:] }
func (s *workState) advanceB()   { s.b = s.b[1:] }

// consume removes the front entry of whichever of lca/a/b working lists
// currently has name at its head. It mirrors dropping a column that has
// just been placed in the output (or silently deleted) from every file
// still carrying it at the front of its remaining columns.
func (s *workState) consume(name string) {
	if v, ok := s.peek(s.lca); ok && v == name {
		s.advanceLCA()
	}
	if v, ok := s.peek(s.a); ok && v == name {
		s.advanceA()
	}
	if v, ok := s.peek(s.b); ok && v == name {
		s.advanceB()
	}
}

func contains(list []string, name string) bool {
	for _, n := range list {
		if n == name {
			return true
		}
	}
	return false
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

// Reconcile merges three uniquified headers into one output schema,
// preferring a column's position in A whenever all three files disagree on
// where it belongs. The control flow follows, column by column, the same
// decision order a three-way text merge of the header lines themselves
// would use: exact agreement first, then paired agreement against the
// third, then incremental resolution of genuine reorders and deletions.
func Reconcile(lca, a, b []string) (*Result, error) {
	s := &workState{
		lca: append([]string{}, lca...), a: append([]string{}, a...), b: append([]string{}, b...),
		origLCA: lca, origA: a, origB: b,
	}

	needRemapping := !(sliceEqual(lca, a) && sliceEqual(a, b))
	res := &Result{NeedRemapping: needRemapping}

	emit := func(name string) {
		res.Columns = append(res.Columns, ColumnMap{
			Name:     name,
			LCAIndex: indexOf(s.origLCA, name),
			AIndex:   indexOf(s.origA, name),
			BIndex:   indexOf(s.origB, name),
		})
	}

	for !s.noMoreInput() {
		nextLCA, okL := s.peek(s.lca)
		nextA, okA := s.peek(s.a)
		nextB, okB := s.peek(s.b)

		// All three files agree on the next column.
		if okL && okA && okB && nextLCA == nextA && nextLCA == nextB {
			emit(nextA)
			s.consume(nextLCA)
			continue
		}

		// A and B agree with each other but not with LCA: the column was
		// moved, added, or deleted identically on both merge sides.
		if okA == okB && (!okA || nextA == nextB) {
			if okA && nextA == nextB {
				emit(nextA)
				s.consume(nextA)
				continue
			}
			if !okA && !okB {
				// A and B have both run out of columns while LCA still
				// has some left: those were removed on both sides.
				break
			}
		}

		// A and B differ. If LCA is exhausted, anything left in A or B
		// is new (or was carried forward earlier); prefer A's order.
		if !okL {
			if okA {
				emit(nextA)
				s.consume(nextA)
			} else {
				emit(nextB)
				s.consume(nextB)
			}
			continue
		}

		// LCA matches A: the interesting change, if any, is in B.
		if okA && nextLCA == nextA {
			if !contains(s.origB, nextA) {
				s.consume(nextA)
				continue
			}
			if okB && contains(s.origA, nextB) {
				emit(nextB)
				s.consume(nextB)
				continue
			}
			s.advanceLCA()
			s.advanceA()
			continue
		}

		// LCA matches B: the interesting change, if any, is in A.
		if okB && nextLCA == nextB {
			if !contains(s.origA, nextB) {
				s.consume(nextB)
				continue
			}
			if okA && contains(s.origB, nextA) {
				emit(nextA)
				s.consume(nextA)
				continue
			}
			s.advanceLCA()
			s.advanceB()
			continue
		}

		// LCA, A, and B are all different. An empty A or B means a
		// deletion from that side.
		if !okA {
			s.consume(nextLCA)
			continue
		}
		if !okB {
			s.consume(nextLCA)
			continue
		}

		// All three are different and non-empty: a genuine reorder or a
		// column added independently on both sides. Always prefer A's
		// position.
		res.Reordered = append(res.Reordered, nextA)
		emit(nextA)
		s.consume(nextA)
	}

	if len(res.Columns) == 0 && (len(lca) > 0 || len(a) > 0 || len(b) > 0) {
		return nil, &HeaderEmptyError{}
	}
	return res, nil
}

func sliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Names returns just the output column names in order.
func (r *Result) Names() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Name
	}
	return out
}

// String renders a ColumnMap for diagnostics.
func (c ColumnMap) String() string {
	return fmt.Sprintf("%s(lca=%d,a=%d,b=%d)", c.Name, c.LCAIndex, c.AIndex, c.BIndex)
}
