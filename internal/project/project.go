// Package project provides project file handling and persistence.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"plot-digitizer/internal/app"
	"plot-digitizer/internal/calibration"
	"plot-digitizer/internal/curve"
	"plot-digitizer/internal/image"
	"plot-digitizer/internal/report"
	"plot-digitizer/internal/trace"
	"plot-digitizer/pkg/geometry"
)

// Extension is the project file extension.
const Extension = ".digproj"

// CurrentVersion is written to new project files.
const CurrentVersion = 1

// File represents a digitizer project file (.digproj).
type File struct {
	Version  int       `json:"version"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Chart image (relative to project file)
	ImagePath string  `json:"image,omitempty"`
	PDFPage   int     `json:"pdf_page,omitempty"`
	PDFDPI    float64 `json:"pdf_dpi,omitempty"`

	// Calibration
	Axis    calibration.AxisValues `json:"axis"`
	Anchors []calibration.Anchor   `json:"anchors,omitempty"`

	Detection trace.DetectionOptions `json:"detection"`
	Study     report.Metadata        `json:"study"`
	Curves    curve.Snapshot         `json:"curves"`
}

// New creates a new project file with default settings.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:   CurrentVersion,
		Name:      name,
		Created:   now,
		Modified:  now,
		Axis:      calibration.DefaultAxisValues(),
		Detection: trace.DefaultOptions(),
	}
}

// Load loads a project from a .digproj file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var proj File
	if err := json.Unmarshal(data, &proj); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}
	if proj.Version > CurrentVersion {
		return nil, fmt.Errorf("project %s has version %d, newest supported is %d", path, proj.Version, CurrentVersion)
	}
	return &proj, nil
}

// Save saves the project to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SetImage sets the image path (relative to project).
func (p *File) SetImage(projectPath, imagePath string) {
	if imagePath == "" {
		p.ImagePath = ""
		return
	}
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		abs = imagePath
	}
	rel, err := filepath.Rel(filepath.Dir(projectPath), abs)
	if err != nil {
		p.ImagePath = imagePath
	} else {
		p.ImagePath = rel
	}
	p.Modified = time.Now()
}

// GetImagePath returns the absolute path to the image.
func (p *File) GetImagePath(projectPath string) string {
	if p.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(p.ImagePath) {
		return p.ImagePath
	}
	return filepath.Join(filepath.Dir(projectPath), p.ImagePath)
}

// FromSession captures a session's calibration, options and curves.
// The image is recorded relative to projectPath.
func FromSession(s *app.Session, projectPath, name string) *File {
	p := New(name)
	p.SetImage(projectPath, s.ImagePath())
	p.Axis = s.AxisValues()
	p.Anchors = s.Anchors()
	p.Detection = s.Options()
	p.Curves = s.Curves().Snapshot()
	return p
}

// Apply loads the project's image into the session and restores its
// calibration and curves. It fails when the image cannot be loaded.
func (p *File) Apply(s *app.Session, projectPath string) error {
	if path := p.GetImagePath(projectPath); path != "" {
		if err := s.LoadImage(path, p.ImageOptions()); err != nil {
			return fmt.Errorf("failed to load project image: %w", err)
		}
	}
	return p.Restore(s, projectPath)
}

// ImageOptions returns the PDF page and resolution the image was read with.
func (p *File) ImageOptions() image.Options {
	return image.Options{Page: p.PDFPage, DPI: p.PDFDPI}
}

// Restore applies the project's options, calibration and curves to a
// session whose image is already loaded. Partial calibrations must hold the
// first anchors in role order.
func (p *File) Restore(s *app.Session, projectPath string) error {
	s.SetOptions(p.Detection)
	s.SetAxisValues(p.Axis)
	if pts, ok := anchorPoints(p.Anchors); ok {
		s.SetAnchors(pts)
	} else {
		s.ClearCalibration()
		for i, a := range p.Anchors {
			if a.Role != calibration.Role(i) {
				return fmt.Errorf("project anchor %d is %s, expected %s", i, a.Role, calibration.Role(i))
			}
			if _, err := s.AddCalibrationPoint(a.Point); err != nil {
				return fmt.Errorf("failed to restore %s anchor: %w", a.Role, err)
			}
		}
	}
	s.RestoreCurves(p.Curves)
	s.Emit(app.EventProjectLoaded, projectPath)
	return nil
}

// anchorPoints returns the anchors in role order when all four are present.
func anchorPoints(anchors []calibration.Anchor) ([calibration.NumRoles]geometry.Point2D, bool) {
	var pts [calibration.NumRoles]geometry.Point2D
	var seen [calibration.NumRoles]bool
	for _, a := range anchors {
		if a.Role < 0 || a.Role >= calibration.NumRoles {
			continue
		}
		pts[a.Role] = a.Point
		seen[a.Role] = true
	}
	for _, ok := range seen {
		if !ok {
			return pts, false
		}
	}
	return pts, true
}
