package conflict

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/tablestream/csvmerge3/internal/header"
	"github.com/tablestream/csvmerge3/internal/row"
)

func strp(s string) *string { return &s }

func TestChoose3OnlyOneSideChanged(t *testing.T) {
	val, ok := Choose3(strp("x"), strp("x"), strp("y"))
	if !ok || *val != "y" {
		t.Fatalf("expected y, got %v ok=%v", val, ok)
	}
}

func TestChoose3BothSidesAgree(t *testing.T) {
	val, ok := Choose3(strp("x"), strp("y"), strp("y"))
	if !ok || *val != "y" {
		t.Fatalf("expected y, got %v ok=%v", val, ok)
	}
}

func TestChoose3Conflict(t *testing.T) {
	_, ok := Choose3(strp("x"), strp("y"), strp("z"))
	if ok {
		t.Fatal("expected conflict")
	}
}

func TestChoose3NewColumnOnlyOneSide(t *testing.T) {
	val, ok := Choose3(nil, strp("x"), nil)
	if !ok || *val != "x" {
		t.Fatalf("expected x, got %v ok=%v", val, ok)
	}
}

func TestChoose3NewColumnBothSidesDiffer(t *testing.T) {
	_, ok := Choose3(nil, strp("x"), strp("y"))
	if ok {
		t.Fatal("expected conflict for differing new column values")
	}
}

func TestMergeRowConflictCollectsValues(t *testing.T) {
	cols := []header.ColumnMap{{Name: "status", LCAIndex: 0, AIndex: 0, BIndex: 0}}
	lca := &row.Row{Fields: []string{"open"}}
	a := &row.Row{Fields: []string{"closed"}}
	b := &row.Row{Fields: []string{"blocked"}}
	res := MergeRow(cols, lca, a, b)
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
	}
	if *res.Conflicts[0].ValA != "closed" || *res.Conflicts[0].ValB != "blocked" {
		t.Fatalf("unexpected conflict values: %+v", res.Conflicts[0])
	}
}

func TestMergeRowRaggedFieldIsAbsentNotEmpty(t *testing.T) {
	cols := []header.ColumnMap{{Name: "extra", LCAIndex: 1, AIndex: 1, BIndex: 1}}
	lca := &row.Row{Fields: []string{"x"}}
	a := &row.Row{Fields: []string{"x", "v"}}
	b := &row.Row{Fields: []string{"x"}}
	res := MergeRow(cols, lca, a, b)
	if len(res.Conflicts) != 0 {
		t.Fatalf("expected no conflict (LCA absent == B absent), got %+v", res.Conflicts)
	}
	if res.Fields[0] != "v" {
		t.Fatalf("expected v taken from A, got %q", res.Fields[0])
	}
}

func TestWriteBlockFormat(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	a := &row.Row{Line: 4, Raw: []byte("1,closed\n")}
	b := &row.Row{Line: 4, Raw: []byte("1,blocked\n")}
	conflicts := []Field{{Column: "status", ValA: strp("closed"), ValB: strp("blocked")}}
	if err := WriteBlock(w, "a.csv", "b.csv", 3, a, b, "1", conflicts); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	w.Flush()
	got := buf.String()
	want := ">>>>>> a.csv @4 (1)\n" +
		">>>>>> status = closed\n" +
		"1,closed\n" +
		"====== b.csv @4 (1)\n" +
		"====== status = blocked\n" +
		"1,blocked\n" +
		"<<<<<<\n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestWriteBlockDeletedSide(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	b := &row.Row{Line: 4, Raw: []byte("1,blocked\n")}
	conflicts := []Field{{Column: "status", ValA: nil, ValB: strp("blocked")}}
	if err := WriteBlock(w, "a.csv", "b.csv", 3, nil, b, "1", conflicts); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}
	w.Flush()
	got := buf.String()
	want := ">>>>>> a.csv Deleted @3\n" +
		">>>>>> status = None\n" +
		"====== b.csv @4 (1)\n" +
		"====== status = blocked\n" +
		"1,blocked\n" +
		"<<<<<<\n"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}
