// Package upload sends claimed files to a remote destination.
package upload

import (
	"context"
	"mime"
	"path/filepath"
	"sort"

	"github.com/samvad-hq/freebook-harvester/internal/domain"
)

// Uploader pushes the downloaded files of a claimed item to one destination.
type Uploader interface {
	Service() domain.UploadService
	Upload(ctx context.Context, paths map[string]string) (*domain.UploadResult, error)
}

// orderedKeys returns the path keys sorted so uploads run in a stable order.
func orderedKeys(paths map[string]string) []string {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mimeTypeOf(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
