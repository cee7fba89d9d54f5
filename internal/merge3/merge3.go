// Package merge3 drives the three-way merge of LCA, A, and B CSV files,
// deciding for every primary key whether it aligns, was inserted, was
// deleted, or needs to be resynced after an independent reorder, then
// folding the corresponding row through internal/conflict and writing the
// result.
package merge3

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tablestream/csvmerge3/internal/conflict"
	"github.com/tablestream/csvmerge3/internal/csvio"
	"github.com/tablestream/csvmerge3/internal/cursor"
	"github.com/tablestream/csvmerge3/internal/header"
	"github.com/tablestream/csvmerge3/internal/row"
)

// Exit codes, one per distinct failure category a caller needs to tell
// apart without parsing error text.
const (
	ExitOK                = 0
	ExitConflicts         = 1
	ExitMalformedInput    = 2
	ExitDuplicateKey      = 3
	ExitMissingKeyColumn  = 4
	ExitIOError           = 5
	ExitInternalInvariant = 6
)

// InternalInvariantError marks a state the merge driver's own logic
// guarantees is unreachable; seeing one means the three cursors have
// drifted out of the relationship the algorithm depends on. It carries
// enough cursor and schema state for a crash dump to be useful without
// needing to reproduce the failure.
type InternalInvariantError struct {
	Msg        string
	BacklogLCA int
	BacklogA   int
	BacklogB   int
	Schema     []string
}

func (e *InternalInvariantError) Error() string {
	return fmt.Sprintf("internal invariant violation: %s (backlog lca=%d a=%d b=%d)",
		e.Msg, e.BacklogLCA, e.BacklogA, e.BacklogB)
}

// Options configures one merge run.
type Options struct {
	KeySpec     string
	Quoting     csvio.Quoting
	Terminator  csvio.Terminator
	ReformatAll bool
	LabelLCA    string
	LabelA      string
	LabelB      string
}

// Result summarizes the outcome of a completed merge.
type Result struct {
	Key           string
	ConflictCount int
	ExitCode      int
	Reordered     []string
	Conflicts     []ConflictRef
}

// ConflictRef names one unresolved field conflict by row key and column, for
// callers that want to persist or report on individual conflicts rather
// than just the count.
type ConflictRef struct {
	Key    string
	Column string
}

// ExitCodeFor maps an error returned by Merge to the distinct process exit
// code the CLI should report.
func ExitCodeFor(err error) int {
	switch err.(type) {
	case *row.MalformedRowError:
		return ExitMalformedInput
	case *row.DuplicateKeyError:
		return ExitDuplicateKey
	case *row.MissingKeyColumnError:
		return ExitMissingKeyColumn
	case *header.HeaderEmptyError, *header.PrimaryKeyError:
		return ExitMissingKeyColumn
	case *InternalInvariantError:
		return ExitInternalInvariant
	default:
		return ExitIOError
	}
}

type driver struct {
	lca, a, b      *row.File
	cL, cA, cB     *cursor.Cursor
	hres           *header.Result
	writer         *csvio.Writer
	reformatAll    bool
	key            string
	labelA, labelB string
	conflictCount  int
	conflicts      []ConflictRef
}

// Merge loads pathLCA/pathA/pathB, reconciles their headers, resolves the
// primary key, and writes the merged result to out. The returned Result is
// nil whenever err is non-nil; on any error the caller should treat the
// output as incomplete.
func Merge(pathLCA, pathA, pathB string, out *os.File, opts Options) (*Result, error) {
	dialect := csvio.Dialect{Delimiter: ',', Quote: '"', Quoting: opts.Quoting, Term: opts.Terminator}

	lca, err := row.Load(pathLCA, dialect, "")
	if err != nil {
		return nil, err
	}
	a, err := row.Load(pathA, dialect, "")
	if err != nil {
		return nil, err
	}
	b, err := row.Load(pathB, dialect, "")
	if err != nil {
		return nil, err
	}

	hres, err := header.Reconcile(lca.Header, a.Header, b.Header)
	if err != nil {
		return nil, err
	}

	key, err := header.ResolvePrimaryKey(opts.KeySpec, hres.Names(), lca, a, b)
	if err != nil {
		return nil, err
	}

	if err := lca.ReindexKey(key); err != nil {
		return nil, err
	}
	if err := a.ReindexKey(key); err != nil {
		return nil, err
	}
	if err := b.ReindexKey(key); err != nil {
		return nil, err
	}

	reformatAll := opts.ReformatAll || hres.NeedRemapping

	d := &driver{
		lca: lca, a: a, b: b,
		cL: cursor.New(lca.Rows), cA: cursor.New(a.Rows), cB: cursor.New(b.Rows),
		hres:        hres,
		writer:      csvio.NewWriter(out, dialect),
		reformatAll: reformatAll,
		key:         key,
		labelA:      labelOrDefault(opts.LabelA, pathA),
		labelB:      labelOrDefault(opts.LabelB, pathB),
	}

	if err := d.emitHeader(); err != nil {
		return nil, err
	}

	for !(d.cL.Drained() && d.cA.Drained() && d.cB.Drained()) {
		if err := d.step(); err != nil {
			return nil, err
		}
	}

	if err := d.writer.Flush(); err != nil {
		return nil, err
	}

	res := &Result{Key: key, ConflictCount: d.conflictCount, Reordered: hres.Reordered, Conflicts: d.conflicts}
	if d.conflictCount > 0 {
		res.ExitCode = ExitConflicts
	}
	return res, nil
}

func (d *driver) schemaDiagnostics() []string {
	out := make([]string, len(d.hres.Columns))
	for i, c := range d.hres.Columns {
		out[i] = c.String()
	}
	return out
}

func labelOrDefault(label, path string) string {
	if label != "" {
		return label
	}
	return path
}

func (d *driver) emitHeader() error {
	if !d.reformatAll && sameRawHeader(d.lca, d.a, d.b) {
		raw := firstNonEmptyHeaderRaw(d.lca, d.a, d.b)
		if raw != nil {
			return d.writer.WriteRaw(raw)
		}
	}
	return d.writer.WriteRow(d.hres.Names())
}

func sameRawHeader(lca, a, b *row.File) bool {
	nonEmpty := []*row.File{}
	for _, f := range []*row.File{lca, a, b} {
		if !f.Empty() {
			nonEmpty = append(nonEmpty, f)
		}
	}
	for i := 1; i < len(nonEmpty); i++ {
		if !bytes.Equal(nonEmpty[0].HeaderRaw, nonEmpty[i].HeaderRaw) {
			return false
		}
	}
	return true
}

func firstNonEmptyHeaderRaw(files ...*row.File) []byte {
	for _, f := range files {
		if !f.Empty() {
			return f.HeaderRaw
		}
	}
	return nil
}

// step performs one iteration of the merge state machine: decide, for the
// current front of all three cursors, whether this round is an aligned
// match, an insertion, a deletion, or a reorder that needs a resync
// (deferring the side that has fallen behind), then emit or defer
// accordingly.
func (d *driver) step() error {
	kA, okA := d.cA.CurrentKey()
	kB, okB := d.cB.CurrentKey()
	rowA, rowB := d.cA.Current(), d.cB.Current()

	// A row deferred earlier takes priority over the LCA cursor's own
	// positional current row: the LCA file may be positionally exhausted
	// while its backlog still holds the row that A or B is now asking for.
	if okA {
		if lcaRow := d.cL.Match(kA); lcaRow != nil && d.cL.InBacklog(kA) {
			matchB := d.cB.Match(kA)
			if err := d.emit(lcaRow, rowA, matchB, kA); err != nil {
				return err
			}
			d.cL.Consume(kA)
			d.cA.Consume(kA)
			if matchB != nil {
				d.cB.Consume(kA)
			}
			return nil
		}
	}
	if okB {
		if lcaRow := d.cL.Match(kB); lcaRow != nil && d.cL.InBacklog(kB) {
			matchA := d.cA.Match(kB)
			if err := d.emit(lcaRow, matchA, rowB, kB); err != nil {
				return err
			}
			d.cL.Consume(kB)
			d.cB.Consume(kB)
			if matchA != nil {
				d.cA.Consume(kB)
			}
			return nil
		}
	}

	kL, okL := d.cL.CurrentKey()
	rowL := d.cL.Current()

	if okL && okA && okB && kL == kA && kA == kB {
		if err := d.emit(rowL, rowA, rowB, kL); err != nil {
			return err
		}
		d.cL.Consume(kL)
		d.cA.Consume(kA)
		d.cB.Consume(kB)
		return nil
	}

	if okA {
		if d.cL.Match(kA) == nil {
			matchB := d.cB.Match(kA)
			if err := d.emit(nil, rowA, matchB, kA); err != nil {
				return err
			}
			d.cA.Consume(kA)
			if matchB != nil {
				d.cB.Consume(kA)
			}
			return nil
		}
	}

	if okB {
		if d.cL.Match(kB) == nil {
			matchA := d.cA.Match(kB)
			if err := d.emit(nil, matchA, rowB, kB); err != nil {
				return err
			}
			d.cB.Consume(kB)
			if matchA != nil {
				d.cA.Consume(kB)
			}
			return nil
		}
	}

	if !okL {
		return &InternalInvariantError{
			Msg:        "LCA exhausted but neither A nor B insertion check fired",
			BacklogLCA: d.cL.BacklogLen(),
			BacklogA:   d.cA.BacklogLen(),
			BacklogB:   d.cB.BacklogLen(),
			Schema:     d.schemaDiagnostics(),
		}
	}

	lInA := d.cA.Match(kL)
	if lInA == nil {
		lInB := d.cB.Match(kL)
		if err := d.emit(rowL, nil, lInB, kL); err != nil {
			return err
		}
		d.cL.Consume(kL)
		if lInB != nil {
			d.cB.Consume(kL)
		}
		return nil
	}

	lInB := d.cB.Match(kL)
	if lInB == nil {
		if err := d.emit(rowL, lInA, nil, kL); err != nil {
			return err
		}
		d.cL.Consume(kL)
		d.cA.Consume(kL)
		return nil
	}

	if kA != kL {
		distAinLCA := d.cL.Relevance(kA)
		distLCAinA := d.cA.Relevance(kL)
		if distLCAinA > distAinLCA {
			d.cL.Defer()
			if okB && kB == kL {
				d.cB.Defer()
			}
			return nil
		}
		aInB := d.cB.Match(kA)
		if err := d.emit(d.cL.Match(kA), rowA, aInB, kA); err != nil {
			return err
		}
		d.cL.Consume(kA)
		d.cA.Consume(kA)
		if aInB != nil {
			d.cB.Consume(kA)
		}
		return nil
	}

	// kA == kL, so kB must differ from kL (the all-equal case already
	// returned above).
	distBinLCA := d.cL.Relevance(kB)
	distLCAinB := d.cB.Relevance(kL)
	if distLCAinB > distBinLCA {
		d.cL.Defer()
		d.cA.Defer()
		return nil
	}
	bInA := d.cA.Match(kB)
	if err := d.emit(d.cL.Match(kB), bInA, rowB, kB); err != nil {
		return err
	}
	d.cL.Consume(kB)
	d.cB.Consume(kB)
	if bInA != nil {
		d.cA.Consume(kB)
	}
	return nil
}

// emit resolves and writes one output row (or conflict block) for the
// given key given the (possibly nil) contributing row from each file.
func (d *driver) emit(rowL, rowA, rowB *row.Row, key string) error {
	isDelete := rowL != nil && !(rowA != nil && rowB != nil)

	if conflict.RawCompatible(rowL, rowA) && conflict.RawCompatible(rowL, rowB) && conflict.RawCompatible(rowA, rowB) {
		if isDelete {
			return nil
		}
		if !d.reformatAll {
			raw := pickRaw(rowA, rowB, rowL)
			if raw != nil {
				return d.writer.WriteRaw(raw.Raw)
			}
		}
	}

	res := conflict.MergeRow(d.hres.Columns, rowL, rowA, rowB)
	if len(res.Conflicts) > 0 {
		if err := d.writeConflict(rowL, rowA, rowB, key, res.Conflicts); err != nil {
			return err
		}
		d.conflictCount++
		for _, f := range res.Conflicts {
			d.conflicts = append(d.conflicts, ConflictRef{Key: key, Column: f.Column})
		}
		return nil
	}
	if res.IsDelete {
		return nil
	}
	return d.writer.WriteRow(res.Fields)
}

func pickRaw(candidates ...*row.Row) *row.Row {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

func (d *driver) writeConflict(rowL, rowA, rowB *row.Row, key string, fields []conflict.Field) error {
	lcaLine := d.lca.LastLine()
	if rowL != nil {
		lcaLine = rowL.Line
	}
	return conflict.WriteBlock(d.writer, d.labelA, d.labelB, lcaLine, rowA, rowB, key, fields)
}
