// Package config loads and saves the digitizer's YAML configuration.
// Values may come from a file and are overridden by command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"plot-digitizer/internal/calibration"
	"plot-digitizer/internal/report"
	"plot-digitizer/internal/trace"

	"gopkg.in/yaml.v3"
)

// DefaultPDFDPI is the resolution PDF pages are rendered at.
const DefaultPDFDPI = 150

// Config holds everything a digitization run needs besides the anchors.
type Config struct {
	Axis      calibration.AxisValues `yaml:"axis"`
	Detection trace.DetectionOptions `yaml:"detection"`
	Loader    Loader                 `yaml:"loader"`
	Output    Output                 `yaml:"output"`
	Report    report.Metadata        `yaml:"report"`
	Verbose   bool                   `yaml:"verbose"`
}

// Loader controls how chart images are read.
type Loader struct {
	PDFPage int     `yaml:"pdf_page"` // Zero-based page rendered from PDF input
	PDFDPI  float64 `yaml:"pdf_dpi"`  // Render resolution for PDF input
	OpenCV  bool    `yaml:"opencv"`   // Decode raster images through OpenCV
}

// Output names the files a run writes. Empty paths are skipped.
type Output struct {
	CSV     string `yaml:"csv"`
	Project string `yaml:"project"`
	Report  string `yaml:"report"`
}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		Axis:      calibration.DefaultAxisValues(),
		Detection: trace.DefaultOptions(),
		Loader:    Loader{PDFDPI: DefaultPDFDPI},
	}
}

// Validate resets out-of-range values to their defaults. It reports an error
// only for problems it cannot repair.
func (c *Config) Validate() error {
	c.Detection = c.Detection.Normalize()
	if c.Loader.PDFPage < 0 {
		c.Loader.PDFPage = 0
	}
	if c.Loader.PDFDPI <= 0 || math.IsNaN(c.Loader.PDFDPI) || math.IsInf(c.Loader.PDFDPI, 0) {
		c.Loader.PDFDPI = DefaultPDFDPI
	}
	a := c.Axis
	for _, v := range []float64{a.XMin, a.XMax, a.YMin, a.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("axis values must be finite, got %+v", a)
		}
	}
	if a.XMin == a.XMax || a.YMin == a.YMax {
		return fmt.Errorf("axis ranges must not be empty, got %+v", a)
	}
	return nil
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
