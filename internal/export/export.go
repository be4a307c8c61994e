// Package export writes curated conversation sets as JSON Lines, the
// interchange format consumed by fine-tuning pipelines. One
// conversation per line, newline-terminated.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chiefkit/internal/types"
)

// Write streams conversations to w as JSONL and returns how many lines
// it wrote.
func Write(w io.Writer, conversations []types.Conversation) (int, error) {
	enc := json.NewEncoder(w)
	for i, conv := range conversations {
		if err := enc.Encode(conv); err != nil {
			return i, fmt.Errorf("failed to encode conversation %s: %w", conv.ID, err)
		}
	}
	return len(conversations), nil
}

// WriteFile writes conversations to path, creating parent directories
// as needed. The export is staged in a temp file and renamed into
// place once complete.
func WriteFile(path string, conversations []types.Conversation) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.jsonl")
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	tmpPath := tmp.Name()

	count, err := Write(tmp, conversations)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to finalize export file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to move export into place: %w", err)
	}
	return count, nil
}
