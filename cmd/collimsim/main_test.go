package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arnegrid/collimeng/scatter"
)

func TestLoadGeometryDecodesValidFile(t *testing.T) {
	geo, err := loadGeometry("../../internal/testdata/geometry.json")
	if err != nil {
		t.Fatalf("loadGeometry: %v", err)
	}
	if geo.ID != "two-stage-slit" || len(geo.Stages) != 2 {
		t.Fatalf("unexpected geometry: %+v", geo)
	}
}

func TestLoadGeometryRejectsMissingFile(t *testing.T) {
	if _, err := loadGeometry(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing geometry file")
	}
}

func TestLoadGeometryRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := loadGeometry(path); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}

func TestSprRowsFromMatchesProfileLength(t *testing.T) {
	res := scatter.Result{
		SPRPositionsMm: []float64{-5, 0, 5},
		SPRProfile:     []float64{0.01, 0.02, 0.015},
	}
	rows := sprRowsFrom(res)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "0" {
		t.Fatalf("expected row 1 position 0, got %q", rows[1][0])
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := writeCSV(path, []string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}}); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)
	want := "a,b\n1,2\n3,4\n"
	if got != want {
		t.Fatalf("csv content = %q, want %q", got, want)
	}
}
