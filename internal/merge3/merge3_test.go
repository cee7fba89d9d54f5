package merge3

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/tablestream/csvmerge3/internal/csvio"
)

func assertCSVEqual(t *testing.T, got, want string) {
	t.Helper()
	if got == want {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	diffText, _ := difflib.GetUnifiedDiffString(diff)
	t.Fatalf("merged output mismatch:\n%s", diffText)
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runMerge(t *testing.T, dir, lca, a, b string, opts Options) (string, *Result) {
	t.Helper()
	pLCA := writeTemp(t, dir, "lca.csv", lca)
	pA := writeTemp(t, dir, "a.csv", a)
	pB := writeTemp(t, dir, "b.csv", b)

	outPath := filepath.Join(dir, "out.csv")
	out, err := os.Create(outPath)
	if err != nil {
		t.Fatalf("create output: %v", err)
	}
	defer out.Close()

	res, err := Merge(pLCA, pA, pB, out, opts)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	gotBytes, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(gotBytes), res
}

func defaultOpts() Options {
	return Options{Quoting: csvio.QuoteMinimal, Terminator: csvio.TerminatorUnix}
}

func TestMergeTrivialAlign(t *testing.T) {
	dir := t.TempDir()
	content := "k,v\n1,a\n2,b\n"
	got, res := runMerge(t, dir, content, content, content, defaultOpts())
	assertCSVEqual(t, got, content)
	if res.ConflictCount != 0 || res.ExitCode != ExitOK {
		t.Fatalf("expected clean merge, got %+v", res)
	}
}

func TestMergeDisjointFieldEdits(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v,w\n1,a,x\n"
	a := "k,v,w\n1,A,x\n"
	b := "k,v,w\n1,a,X\n"
	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if !strings.Contains(got, "1,A,X\n") {
		t.Fatalf("expected merged row 1,A,X, got %q", got)
	}
	if res.ConflictCount != 0 {
		t.Fatalf("expected no conflicts, got %d", res.ConflictCount)
	}
}

func TestMergeSameFieldConflict(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v\n1,a\n"
	a := "k,v\n1,b\n"
	b := "k,v\n1,c\n"
	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if res.ConflictCount != 1 {
		t.Fatalf("expected 1 conflict, got %d", res.ConflictCount)
	}
	if !strings.Contains(got, "(1)") {
		t.Fatalf("expected conflict block to reference key 1, got %q", got)
	}
	if !strings.Contains(got, "v = b") || !strings.Contains(got, "v = c") {
		t.Fatalf("expected conflict values b and c, got %q", got)
	}
	if res.ExitCode != ExitConflicts {
		t.Fatalf("expected ExitConflicts, got %d", res.ExitCode)
	}
}

// TestMergeResyncBothSidesMoved covers the case where A moves the first key
// to the end and B moves the first two keys to the end, in order. The merge
// must resync across the double move and land on R S T U V W X Y Z P Q.
func TestMergeResyncBothSidesMoved(t *testing.T) {
	dir := t.TempDir()
	keys := []string{"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z"}
	rotate := func(order []string) string {
		var b strings.Builder
		b.WriteString("k,v\n")
		for _, k := range order {
			b.WriteString(k)
			b.WriteString(",")
			b.WriteString(strings.ToLower(k))
			b.WriteString("\n")
		}
		return b.String()
	}
	lcaOrder := keys
	aOrder := append(append([]string{}, keys[1:]...), keys[0])
	bOrder := append(append([]string{}, keys[2:]...), keys[0], keys[1])

	lca := rotate(lcaOrder)
	a := rotate(aOrder)
	b := rotate(bOrder)

	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if res.ConflictCount != 0 {
		t.Fatalf("expected no conflicts, got %d: %q", res.ConflictCount, got)
	}

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) == 0 || lines[0] != "k,v" {
		t.Fatalf("expected header k,v first, got %v", lines)
	}
	var gotKeys []string
	for _, line := range lines[1:] {
		gotKeys = append(gotKeys, strings.SplitN(line, ",", 2)[0])
	}
	want := []string{"R", "S", "T", "U", "V", "W", "X", "Y", "Z", "P", "Q"}
	if strings.Join(gotKeys, " ") != strings.Join(want, " ") {
		t.Fatalf("got key order %v, want %v", gotKeys, want)
	}
}

// TestMergeColumnAddedInADeletedInB covers the case where A adds a trailing
// column (w) while B deletes an existing one (v) from the same position. The
// deletion of v is resolved directly (LCA matched A, but v was absent from
// B), and w then surfaces afterward as a new trailing column carried by A
// alone, since nothing in the merge ever ties it to the deleted v.
func TestMergeColumnAddedInADeletedInB(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v\n1,a\n"
	a := "k,v,w\n1,a,x\n"
	b := "k\n1\n"
	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if res.ConflictCount != 0 {
		t.Fatalf("expected no conflicts, got %d: %q", res.ConflictCount, got)
	}
	header := strings.SplitN(got, "\n", 2)[0]
	if header != "k,w" {
		t.Fatalf("expected v deleted and w carried from A, got %q", header)
	}
}

func TestMergeColumnAddedInAOnly(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v\n1,a\n"
	a := "k,v,w\n1,a,x\n"
	b := "k,v\n1,a\n"
	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if res.ConflictCount != 0 {
		t.Fatalf("expected no conflicts, got %d: %q", res.ConflictCount, got)
	}
	header := strings.SplitN(got, "\n", 2)[0]
	if header != "k,v,w" {
		t.Fatalf("expected surviving added column, got %q", header)
	}
}

func TestMergeDeleteVsModifyConflict(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v\n1,a\n"
	a := "k,v\n"
	b := "k,v\n1,b\n"
	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if res.ConflictCount != 1 {
		t.Fatalf("expected 1 conflict, got %d: %q", res.ConflictCount, got)
	}
	if !strings.Contains(got, "Deleted") {
		t.Fatalf("expected A side to show Deleted, got %q", got)
	}
	if !strings.Contains(got, "1,b\n") {
		t.Fatalf("expected B side row to appear, got %q", got)
	}
}

// TestMergeResyncForcedEmitUsesCorrectAncestor covers the resync path where
// A has reordered a row relative to LCA and B independently edited that
// row's field: the ancestor value consulted by the field merge must be the
// LCA row for the emitted key, not an unrelated row that happens to share
// LCA's current position.
func TestMergeResyncForcedEmitUsesCorrectAncestor(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v\n1,a\n2,x0\n"
	a := "k,v\n2,x0\n1,a\n"
	b := "k,v\n1,a\n2,x1\n"
	got, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if res.ConflictCount != 0 {
		t.Fatalf("expected no conflicts, got %d: %q", res.ConflictCount, got)
	}
	if !strings.Contains(got, "2,x1\n") {
		t.Fatalf("expected B's edit to row 2 to survive the resync, got %q", got)
	}
}

func TestMergeConflictRefsRecordKeyAndColumn(t *testing.T) {
	dir := t.TempDir()
	lca := "k,v\n1,a\n"
	a := "k,v\n1,b\n"
	b := "k,v\n1,c\n"
	_, res := runMerge(t, dir, lca, a, b, defaultOpts())
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict ref, got %+v", res.Conflicts)
	}
	if res.Conflicts[0].Key != "1" || res.Conflicts[0].Column != "v" {
		t.Fatalf("unexpected conflict ref: %+v", res.Conflicts[0])
	}
}
