package plant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileDataset is the on-disk JSON shape of a plant dataset.
type fileDataset struct {
	Timestamps []string             `json:"timestamps"`
	Rows       []map[string]float64 `json:"rows"`
	Trackers   []TrackerInfo        `json:"trackers"`
	Module     *ModuleInfo          `json:"module,omitempty"`
}

// maxDatasetFileSize bounds dataset files read from disk (64MB).
const maxDatasetFileSize = 64 * 1024 * 1024

// LoadFile reads a JSON plant dataset from disk and validates it into a
// Data snapshot.
func LoadFile(path string) (*Data, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("dataset file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset file: %w", err)
	}
	if info.Size() > maxDatasetFileSize {
		return nil, fmt.Errorf("dataset file too large: %d bytes (max %d)", info.Size(), maxDatasetFileSize)
	}

	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var fd fileDataset
	if err := json.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	if len(fd.Timestamps) == 0 {
		return nil, fmt.Errorf("dataset %q contains no timestamps", cleanPath)
	}
	if len(fd.Trackers) == 0 {
		return nil, fmt.Errorf("dataset %q contains no trackers", cleanPath)
	}

	data, err := NewData(fd.Timestamps, fd.Rows, fd.Trackers, fd.Module)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset %q: %w", cleanPath, err)
	}
	return data, nil
}
