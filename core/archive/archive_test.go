package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPackEntryNames(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a", "b.txt"), "hello")
	writeFile(t, filepath.Join(src, "c.txt"), "world")

	zipPath := filepath.Join(t.TempDir(), "artifacts", "out.zip")
	if err := Pack(src, zipPath); err != nil {
		t.Fatalf("pack: %v", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	names := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		names[f.Name] = string(data)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(names), names)
	}
	if names["a/b.txt"] != "hello" || names["c.txt"] != "world" {
		t.Fatalf("unexpected entries: %v", names)
	}
}

func TestPackMissingSourceFails(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "out.zip")
	if err := Pack(filepath.Join(t.TempDir(), "nope"), zipPath); err == nil {
		t.Fatalf("expected error for missing source dir")
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Fatalf("partial archive left behind")
	}
}

func TestPackDeterministic(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "z.txt"), "z")
	writeFile(t, filepath.Join(src, "a.txt"), "a")

	dir := t.TempDir()
	p1 := filepath.Join(dir, "one.zip")
	p2 := filepath.Join(dir, "two.zip")
	if err := Pack(src, p1); err != nil {
		t.Fatalf("pack one: %v", err)
	}
	if err := Pack(src, p2); err != nil {
		t.Fatalf("pack two: %v", err)
	}

	order := func(path string) []string {
		zr, err := zip.OpenReader(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		defer zr.Close()
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
		}
		return names
	}
	o1, o2 := order(p1), order(p2)
	if len(o1) != 2 || len(o2) != 2 || o1[0] != o2[0] || o1[1] != o2[1] {
		t.Fatalf("entry order differs: %v vs %v", o1, o2)
	}
	if o1[0] != "a.txt" {
		t.Fatalf("expected lexical order, got %v", o1)
	}
}
