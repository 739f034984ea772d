package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeInstance creates an instance file plus its sidecar run data.
func writeInstance(t *testing.T, dir, name, sidecar string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("p cnf 1 1\n1 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".rtd.csv", []byte(sidecar), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTrainThenSolveRecycled(t *testing.T) {
	dir := t.TempDir()
	easy := writeInstance(t, dir, "easy.cnf",
		"alpha,1,100,10,True\nbeta,1,100,100,\n")
	writeInstance(t, dir, "hard.cnf",
		"alpha,1,100,20,True\nbeta,1,100,100,\n")

	snapPath := filepath.Join(t.TempDir(), "portfolio.json")
	if _, err := execute(t, "train", snapPath, "--tasks-root", dir, "--portfolio", "preplanning"); err != nil {
		t.Fatalf("train: %v", err)
	}
	if _, err := os.Stat(snapPath); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	out, err := execute(t, "solve", easy, "--snapshot", snapPath, "--recycle", "--budget", "200")
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !strings.Contains(out, "s SATISFIABLE") {
		t.Fatalf("expected a satisfiable status line, got %q", out)
	}
}

func TestValidateWritesCurves(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.cnf", "b.cnf", "c.cnf", "d.cnf"} {
		writeInstance(t, dir, name,
			"alpha,1,100,10,True\nbeta,1,100,100,\n")
	}

	outPath := filepath.Join(t.TempDir(), "curves.csv")
	if _, err := execute(t, "validate", outPath, "--tasks-root", dir, "--splits", "2", "--variants", "uniform"); err != nil {
		t.Fatalf("validate: %v", err)
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if lines[0] != "name,budget,cost,rate,split" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) < 3 {
		t.Fatalf("expected curve rows, got %d lines", len(lines))
	}
}

func TestTrainWithoutDataSource(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "portfolio.json")
	if _, err := execute(t, "train", snapPath); err == nil {
		t.Fatal("expected an error without --tasks-root or --database")
	}
}

func TestPrintRunRequiresDatabase(t *testing.T) {
	_, err := execute(t, "print-run", "--run-uuid", "3e0c2046-4b67-4f92-86ae-5d2c0c2d7a10")
	if err == nil {
		t.Fatal("expected an error without a database")
	}
}
