package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputFilePath builds the output file name for a one-shot run
// when the caller did not choose one.
func DefaultOutputFilePath(schemaName, tableName string) string {
	if schemaName != "" {
		return fmt.Sprintf("%s_%s_suggestions.json", schemaName, tableName)
	}
	return fmt.Sprintf("%s_suggestions.json", tableName)
}

// WriteOutputFile writes data to path, creating parent directories as
// needed. A trailing newline is added if missing so the file plays well
// with shell tooling.
func WriteOutputFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	if !strings.HasSuffix(string(data), "\n") {
		data = append(data, '\n')
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	return nil
}
