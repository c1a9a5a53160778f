package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits bounds the scanner and the context bundle handed to the
// generator. Values of zero in the file fall back to the defaults.
type Limits struct {
	MaxScanFiles     int `yaml:"max_scan_files"`
	MaxBundleFiles   int `yaml:"max_bundle_files"`
	PerFileChars     int `yaml:"per_file_chars"`
	RequirementChars int `yaml:"requirement_chars"`
	LogTailEntries   int `yaml:"log_tail_entries"`
}

// DefaultLimits mirrors the bounds the generation contract was tuned for.
func DefaultLimits() Limits {
	return Limits{
		MaxScanFiles:     200,
		MaxBundleFiles:   32,
		PerFileChars:     1500,
		RequirementChars: 4000,
		LogTailEntries:   200,
	}
}

// ParseLimits parses limits from YAML bytes, filling gaps with defaults.
func ParseLimits(data []byte) (*Limits, error) {
	if len(data) == 0 {
		return nil, errors.New("limits config is empty")
	}
	limits := DefaultLimits()
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return nil, fmt.Errorf("parse limits config: %w", err)
	}
	defaults := DefaultLimits()
	if limits.MaxScanFiles <= 0 {
		limits.MaxScanFiles = defaults.MaxScanFiles
	}
	if limits.MaxBundleFiles <= 0 {
		limits.MaxBundleFiles = defaults.MaxBundleFiles
	}
	if limits.PerFileChars <= 0 {
		limits.PerFileChars = defaults.PerFileChars
	}
	if limits.RequirementChars <= 0 {
		limits.RequirementChars = defaults.RequirementChars
	}
	if limits.LogTailEntries <= 0 {
		limits.LogTailEntries = defaults.LogTailEntries
	}
	return &limits, nil
}

// LoadLimits reads a YAML limits file.
func LoadLimits(path string) (*Limits, error) {
	if path == "" {
		return nil, errors.New("limits config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read limits config %s: %w", path, err)
	}
	return ParseLimits(data)
}
