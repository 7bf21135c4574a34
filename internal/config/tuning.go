package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for analysis tuning
// parameters. The schema matches the /api/analysis request body so the
// same JSON can be used for both startup configuration and per-request
// overrides.
type TuningConfig struct {
	// Clustering params
	OPTICSEpsilon *float64 `json:"optics_epsilon,omitempty"`
	OPTICSMinPts  *int     `json:"optics_min_pts,omitempty"`
	OPTICSScaling *string  `json:"optics_scaling,omitempty"` // "none", "min-max", or "z-score"

	// Outlier detection params
	DBSCANEpsilon *float64 `json:"dbscan_epsilon,omitempty"`
	DBSCANMinPts  *int     `json:"dbscan_min_pts,omitempty"`
	DBSCANScaling *string  `json:"dbscan_scaling,omitempty"`

	// Feature selection
	XVariable *string `json:"x_variable,omitempty"`
	YVariable *string `json:"y_variable,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// validScalings lists the accepted scaling names.
var validScalings = map[string]bool{
	"":        true,
	"none":    true,
	"min-max": true,
	"minmax":  true,
	"z-score": true,
	"zscore":  true,
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.OPTICSEpsilon != nil && *c.OPTICSEpsilon <= 0 {
		return fmt.Errorf("optics_epsilon must be positive, got %f", *c.OPTICSEpsilon)
	}
	if c.OPTICSMinPts != nil && *c.OPTICSMinPts < 1 {
		return fmt.Errorf("optics_min_pts must be at least 1, got %d", *c.OPTICSMinPts)
	}
	if c.DBSCANEpsilon != nil && *c.DBSCANEpsilon <= 0 {
		return fmt.Errorf("dbscan_epsilon must be positive, got %f", *c.DBSCANEpsilon)
	}
	if c.DBSCANMinPts != nil && *c.DBSCANMinPts < 1 {
		return fmt.Errorf("dbscan_min_pts must be at least 1, got %d", *c.DBSCANMinPts)
	}
	if c.OPTICSScaling != nil && !validScalings[*c.OPTICSScaling] {
		return fmt.Errorf("invalid optics_scaling %q", *c.OPTICSScaling)
	}
	if c.DBSCANScaling != nil && !validScalings[*c.DBSCANScaling] {
		return fmt.Errorf("invalid dbscan_scaling %q", *c.DBSCANScaling)
	}
	return nil
}

// GetOPTICSEpsilon returns the optics_epsilon value or the default.
func (c *TuningConfig) GetOPTICSEpsilon() float64 {
	if c.OPTICSEpsilon == nil {
		return 10.0 // default
	}
	return *c.OPTICSEpsilon
}

// GetOPTICSMinPts returns the optics_min_pts value or the default.
func (c *TuningConfig) GetOPTICSMinPts() int {
	if c.OPTICSMinPts == nil {
		return 5
	}
	return *c.OPTICSMinPts
}

// GetOPTICSScaling returns the optics_scaling value or the default.
func (c *TuningConfig) GetOPTICSScaling() string {
	if c.OPTICSScaling == nil || *c.OPTICSScaling == "" {
		return "none"
	}
	return *c.OPTICSScaling
}

// GetDBSCANEpsilon returns the dbscan_epsilon value or the default.
func (c *TuningConfig) GetDBSCANEpsilon() float64 {
	if c.DBSCANEpsilon == nil {
		return 0.05
	}
	return *c.DBSCANEpsilon
}

// GetDBSCANMinPts returns the dbscan_min_pts value or the default.
func (c *TuningConfig) GetDBSCANMinPts() int {
	if c.DBSCANMinPts == nil {
		return 3
	}
	return *c.DBSCANMinPts
}

// GetDBSCANScaling returns the dbscan_scaling value or the default.
func (c *TuningConfig) GetDBSCANScaling() string {
	if c.DBSCANScaling == nil || *c.DBSCANScaling == "" {
		return "min-max"
	}
	return *c.DBSCANScaling
}

// GetXVariable returns the x_variable value or the default.
func (c *TuningConfig) GetXVariable() string {
	if c.XVariable == nil || *c.XVariable == "" {
		return "specific_power"
	}
	return *c.XVariable
}

// GetYVariable returns the y_variable value or the default.
func (c *TuningConfig) GetYVariable() string {
	if c.YVariable == nil || *c.YVariable == "" {
		return "dc_voltage"
	}
	return *c.YVariable
}
