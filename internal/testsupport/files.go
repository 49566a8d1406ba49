package testsupport

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// JPEGBytes returns a minimal payload that sniffs as image/jpeg.
func JPEGBytes() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x01, 0x00, 0xFF, 0xD9}
}

// PNGBytes returns a minimal payload that sniffs as image/png.
func PNGBytes() []byte {
	return []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
}

// WriteImage creates dir/name holding image bytes chosen by the extension
// (PNG for .png, JPEG otherwise) followed by the name itself, so files with
// different names never share content.
func WriteImage(t testing.TB, dir, name string) string {
	t.Helper()

	data := JPEGBytes()
	if strings.EqualFold(filepath.Ext(name), ".png") {
		data = PNGBytes()
	}
	data = append(data, []byte(name)...)
	return WriteFile(t, filepath.Join(dir, name), data)
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Tree lists every regular file under root as slash-separated relative paths,
// sorted.
func Tree(t testing.TB, root string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(files)
	return files
}
