package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource reads the mapping from a JSON object of SKU → barcode. A
// missing or unreadable file is an error: running the whole sync against
// an empty table would silently update nothing.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}
	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding mapping file %s: %w", s.Path, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("mapping file %s is empty", s.Path)
	}
	return m, nil
}
