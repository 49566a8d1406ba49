package identification

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"flora/internal/services"
)

// ImageFile is one image enumerated from the source directory.
type ImageFile struct {
	Path string
	Name string
	Ext  string
}

// Scan lists image files directly under dir in lexicographic order. Hidden
// entries, subdirectories and non-regular files are ignored.
func Scan(dir string, isImage func(string) bool) ([]ImageFile, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "identification", "scan", fmt.Sprintf("resolve %s", dir), err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "identification", "scan", fmt.Sprintf("directory %s is not readable", dir), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "identification", "scan", fmt.Sprintf("%s is not a directory", dir), nil)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "identification", "scan", fmt.Sprintf("list %s", dir), err)
	}

	images := make([]ImageFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if isImage != nil && !isImage(name) {
			continue
		}
		images = append(images, ImageFile{
			Path: filepath.Join(abs, name),
			Name: name,
			Ext:  filepath.Ext(name),
		})
	}
	return images, nil
}
