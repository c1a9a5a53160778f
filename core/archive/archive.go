// Package archive packs a job's output directory into a single zip.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Pack walks srcDir and writes every regular file into a zip at zipPath,
// creating parent directories as needed. Entry names are the paths
// relative to srcDir with forward slashes, so unpacking reproduces the
// tree without a leading source segment. The walk order is stable
// (WalkDir is lexical), which keeps the archive deterministic for a given
// tree. Unreadable files fail the whole pack; a partial archive is an
// error, not a product.
func Pack(srcDir, zipPath string) error {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(out)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return addEntry(zw, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		zw.Close()
		out.Close()
		os.Remove(zipPath)
		return fmt.Errorf("pack %s: %w", srcDir, walkErr)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	return out.Close()
}

func addEntry(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
