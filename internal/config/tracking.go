package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/fibertrack/internal/tracto"
)

// TrackingOverlay is a partial tracking configuration loaded from JSON.
// All fields are optional; nil fields leave the corresponding default
// untouched, so partial config files are safe.
type TrackingOverlay struct {
	StepWidth            *float64 `json:"step_width,omitempty"`
	MaxIterations        *int     `json:"max_iterations,omitempty"`
	ProbabilityThreshold *float64 `json:"probability_threshold,omitempty"`
	MinLength            *float64 `json:"min_length,omitempty"`
	MaxLength            *float64 `json:"max_length,omitempty"`
	WindowDepth          *int     `json:"window_depth,omitempty"`
	Workers              *int     `json:"workers,omitempty"`
}

// LoadTrackingOverlay loads a TrackingOverlay from a JSON file. The
// path must end in .json and stay under a sanity size cap.
func LoadTrackingOverlay(path string) (*TrackingOverlay, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	o := &TrackingOverlay{}
	if err := json.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return o, nil
}

// Validate checks individual overlay fields. Cross-field constraints
// (min vs max length) are checked by tracto.TrackerConfig.Validate
// after the overlay is applied.
func (o *TrackingOverlay) Validate() error {
	if o.StepWidth != nil && *o.StepWidth <= 0 {
		return fmt.Errorf("step_width must be positive, got %v", *o.StepWidth)
	}
	if o.MaxIterations != nil && *o.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", *o.MaxIterations)
	}
	if o.ProbabilityThreshold != nil && (*o.ProbabilityThreshold < 0 || *o.ProbabilityThreshold > 1) {
		return fmt.Errorf("probability_threshold must be in [0,1], got %v", *o.ProbabilityThreshold)
	}
	if o.MinLength != nil && *o.MinLength < 0 {
		return fmt.Errorf("min_length must be non-negative, got %v", *o.MinLength)
	}
	if o.WindowDepth != nil && *o.WindowDepth < 1 {
		return fmt.Errorf("window_depth must be >= 1, got %d", *o.WindowDepth)
	}
	if o.Workers != nil && *o.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", *o.Workers)
	}
	return nil
}

// Apply overlays the non-nil fields onto cfg and returns the result.
func (o *TrackingOverlay) Apply(cfg tracto.TrackerConfig) tracto.TrackerConfig {
	if o.StepWidth != nil {
		cfg.StepWidth = *o.StepWidth
	}
	if o.MaxIterations != nil {
		cfg.MaxIterations = *o.MaxIterations
	}
	if o.ProbabilityThreshold != nil {
		cfg.ProbabilityThreshold = *o.ProbabilityThreshold
	}
	if o.MinLength != nil {
		cfg.MinLength = *o.MinLength
	}
	if o.MaxLength != nil {
		cfg.MaxLength = *o.MaxLength
	}
	if o.WindowDepth != nil {
		cfg.WindowDepth = *o.WindowDepth
	}
	if o.Workers != nil {
		cfg.Workers = *o.Workers
	}
	return cfg
}
