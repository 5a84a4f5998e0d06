// Package app ties the digitizer together: the loaded chart, its
// calibration, detection settings and the curve store, plus undo history
// and change events for front ends.
package app

import (
	"errors"
	"fmt"
	goimage "image"
	"log"
	"reflect"
	"sync"

	"plot-digitizer/internal/calibration"
	"plot-digitizer/internal/config"
	"plot-digitizer/internal/curve"
	"plot-digitizer/internal/image"
	"plot-digitizer/internal/projection"
	"plot-digitizer/internal/raster"
	"plot-digitizer/internal/trace"
	"plot-digitizer/pkg/geometry"
)

// Expected failures of session operations.
var (
	ErrNoImage         = errors.New("no image loaded")
	ErrNotCalibrated   = errors.New("calibration incomplete")
	ErrNoCurve         = errors.New("could not detect a curve at that position")
	ErrNoPointsInRange = errors.New("no detected points within the calibrated area")
	ErrNoClusters      = errors.New("no curves detected")
	ErrNoPoint         = errors.New("no point with that id")
)

// MaxUndoSteps bounds the undo history.
const MaxUndoSteps = 50

// EventType identifies different session events.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventCalibrationChanged
	EventCalibrationComplete
	EventCurvesChanged
	EventProjectLoaded
	EventProjectSaved
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Session is one digitization in progress. Its methods may be called from
// multiple goroutines; listeners run on the caller's goroutine after the
// session lock is released.
type Session struct {
	mu sync.RWMutex

	imagePath string
	img       goimage.Image
	raster    raster.Raster

	cal     *calibration.Calibration
	options trace.DetectionOptions
	curves  *curve.Store
	verbose bool

	undo []curve.Snapshot
	redo []curve.Snapshot

	listeners map[EventType][]EventListener
}

// NewSession creates a session configured from cfg. A nil cfg uses defaults.
func NewSession(cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{
		cal:       calibration.New(cfg.Axis),
		options:   cfg.Detection.Normalize(),
		curves:    curve.NewStore(),
		verbose:   cfg.Verbose,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Session) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Session) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.verbose {
		log.Printf(format, args...)
	}
}

// LoadImage loads a chart file and makes it the session image.
func (s *Session) LoadImage(path string, opts image.Options) error {
	chart, err := image.Load(path, opts)
	if err != nil {
		return err
	}
	s.SetImage(chart.Image, path)
	s.logf("Image: loaded %s (%s, %dx%d)", path, chart.Format, chart.Width(), chart.Height())
	return nil
}

// SetImage installs an already decoded image. Calibration anchors, curves
// and undo history are cleared; axis values are kept.
func (s *Session) SetImage(img goimage.Image, path string) {
	s.setRaster(img, raster.FromImage(img), path)
}

// SetRaster installs a raster decoded elsewhere, e.g. through OpenCV. img
// is kept for reports and may be nil.
func (s *Session) SetRaster(img goimage.Image, r raster.Raster, path string) {
	s.setRaster(img, r, path)
}

func (s *Session) setRaster(img goimage.Image, r raster.Raster, path string) {
	s.mu.Lock()
	s.imagePath = path
	s.img = img
	s.raster = r
	s.cal.Clear()
	s.curves.Clear()
	s.undo, s.redo = nil, nil
	s.mu.Unlock()

	s.Emit(EventImageLoaded, path)
}

// ImagePath returns the path of the loaded image.
func (s *Session) ImagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imagePath
}

// Image returns the loaded image, or nil.
func (s *Session) Image() goimage.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.img
}

// Raster returns the loaded raster, or nil.
func (s *Session) Raster() raster.Raster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raster
}

// Options returns the detection options.
func (s *Session) Options() trace.DetectionOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}

// SetOptions replaces the detection options.
func (s *Session) SetOptions(opts trace.DetectionOptions) {
	s.mu.Lock()
	s.options = opts.Normalize()
	s.mu.Unlock()
}

// AxisValues returns the calibrated axis values.
func (s *Session) AxisValues() calibration.AxisValues {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal.Values
}

// SetAxisValues changes the data values at the anchors.
func (s *Session) SetAxisValues(v calibration.AxisValues) {
	s.mu.Lock()
	s.cal.Values = v
	s.mu.Unlock()
	s.Emit(EventCalibrationChanged, v)
}

// Anchors returns the anchors placed so far.
func (s *Session) Anchors() []calibration.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal.Anchors()
}

// NextAnchor returns the role the next calibration click will set.
func (s *Session) NextAnchor() (calibration.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal.NextRole()
}

// Calibrated reports whether all four anchors are placed.
func (s *Session) Calibrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal.Complete()
}

// AddCalibrationPoint places the next anchor at p.
func (s *Session) AddCalibrationPoint(p geometry.Point2D) (calibration.Role, error) {
	s.mu.Lock()
	role, ok := s.cal.AddPoint(p)
	complete := s.cal.Complete()
	s.mu.Unlock()
	if !ok {
		return 0, errors.New("calibration already complete")
	}

	s.logf("Calibration: %s anchor at (%.1f, %.1f)", role, p.X, p.Y)
	s.Emit(EventCalibrationChanged, role)
	if complete {
		s.Emit(EventCalibrationComplete, nil)
	}
	return role, nil
}

// SetAnchors places all four anchors at once, in role order.
func (s *Session) SetAnchors(points [calibration.NumRoles]geometry.Point2D) {
	s.mu.Lock()
	s.cal.Clear()
	for i, p := range points {
		s.cal.SetAnchor(calibration.Role(i), p)
	}
	s.mu.Unlock()

	s.Emit(EventCalibrationChanged, nil)
	s.Emit(EventCalibrationComplete, nil)
}

// ClearCalibration removes every anchor.
func (s *Session) ClearCalibration() {
	s.mu.Lock()
	s.cal.Clear()
	s.mu.Unlock()
	s.Emit(EventCalibrationChanged, nil)
}

// PixelToData converts a pixel position with the current calibration.
func (s *Session) PixelToData(px, py float64) (geometry.Point2D, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cal.PixelToData(px, py)
}

// Curves returns the curve store. Mutate it only through the session so
// undo history and events stay consistent.
func (s *Session) Curves() *curve.Store {
	return s.curves
}

// CreateCurve adds a curve and makes it active.
func (s *Session) CreateCurve(name, color string, md curve.Metadata) *curve.Curve {
	s.mu.Lock()
	s.pushUndo()
	c := s.curves.Create(name, color, md)
	s.mu.Unlock()
	s.Emit(EventCurvesChanged, c)
	return c
}

// DeleteCurve removes a curve.
func (s *Session) DeleteCurve(id int) bool {
	s.mu.Lock()
	if s.curves.Get(id) == nil {
		s.mu.Unlock()
		return false
	}
	s.pushUndo()
	s.curves.Delete(id)
	s.mu.Unlock()
	s.Emit(EventCurvesChanged, nil)
	return true
}

// SetActiveCurve makes the curve with the given id active.
func (s *Session) SetActiveCurve(id int) bool {
	s.mu.Lock()
	ok := s.curves.SetActive(id)
	s.mu.Unlock()
	if ok {
		s.Emit(EventCurvesChanged, nil)
	}
	return ok
}

// AddPoint adds a manually placed point at a pixel position to the active
// curve, creating a curve when there is none.
func (s *Session) AddPoint(px, py float64) (curve.Point, error) {
	s.mu.Lock()
	d, ok := s.cal.PixelToData(px, py)
	if !ok {
		s.mu.Unlock()
		return curve.Point{}, ErrNotCalibrated
	}
	s.pushUndo()
	if s.curves.Active() == nil {
		s.curves.Create("", "", curve.Metadata{})
	}
	p, _ := s.curves.AddPoint(px, py, d.X, d.Y)
	s.mu.Unlock()

	s.Emit(EventCurvesChanged, nil)
	return p, nil
}

// SelectAt activates the curve owning the point nearest (px, py) within
// threshold pixels.
func (s *Session) SelectAt(px, py, threshold float64) (curve.Point, bool) {
	s.mu.Lock()
	c, p, ok := s.curves.FindPointAt(px, py, threshold)
	if ok {
		s.curves.SetActive(c.ID)
	}
	s.mu.Unlock()
	if ok {
		s.Emit(EventCurvesChanged, nil)
	}
	return p, ok
}

// DeletePointAt removes the point under (px, py), activating its curve.
func (s *Session) DeletePointAt(px, py, threshold float64) bool {
	s.mu.Lock()
	c, p, ok := s.curves.FindPointAt(px, py, threshold)
	if ok {
		s.pushUndo()
		s.curves.SetActive(c.ID)
		s.curves.DeletePoint(p.ID)
	}
	s.mu.Unlock()
	if ok {
		s.Emit(EventCurvesChanged, nil)
	}
	return ok
}

// MovePoint moves a point of the active curve to a new pixel position.
func (s *Session) MovePoint(pointID int, px, py float64) error {
	s.mu.Lock()
	d, ok := s.cal.PixelToData(px, py)
	if !ok {
		s.mu.Unlock()
		return ErrNotCalibrated
	}
	before := s.curves.Snapshot()
	if !s.curves.UpdatePoint(pointID, px, py, d.X, d.Y) {
		s.mu.Unlock()
		return ErrNoPoint
	}
	s.recordUndo(before)
	s.mu.Unlock()

	s.Emit(EventCurvesChanged, nil)
	return nil
}

// DetectAt traces the curve under a click and appends its in-range points
// to the active curve. A curve in the detected color is created when none
// is active. It returns the number of points added.
func (s *Session) DetectAt(x, y float64) (int, error) {
	_, n, err := s.detectAt(x, y, false)
	return n, err
}

// DetectCurveAt traces the curve under a click into a new curve drawn in
// the detected color.
func (s *Session) DetectCurveAt(x, y float64) (*curve.Curve, error) {
	c, _, err := s.detectAt(x, y, true)
	return c, err
}

func (s *Session) detectAt(x, y float64, fresh bool) (*curve.Curve, int, error) {
	s.mu.RLock()
	r, cal, opts := s.raster, s.cal, s.options
	s.mu.RUnlock()
	if r == nil {
		return nil, 0, ErrNoImage
	}
	if !s.Calibrated() {
		return nil, 0, ErrNotCalibrated
	}

	res, ok := trace.DetectAt(r, x, y, opts)
	if !ok {
		s.logf("Detect: nothing to trace at (%.1f, %.1f)", x, y)
		return nil, 0, ErrNoCurve
	}

	s.mu.Lock()
	points := projection.Project(res.Points, cal)
	if len(points) == 0 {
		s.mu.Unlock()
		return nil, 0, ErrNoPointsInRange
	}
	s.pushUndo()
	if fresh {
		s.curves.Create("", res.Hex, curve.Metadata{})
	} else if s.curves.Active() == nil {
		s.curves.Create("", res.Hex, curve.Metadata{})
	}
	c := s.curves.Active()
	for _, p := range points {
		s.curves.AddPoint(p.Pixel.X, p.Pixel.Y, p.X, p.Y)
	}
	s.mu.Unlock()

	s.logf("Detect: %s at (%.1f, %.1f), %d pixels, %d points added", res.Hex, x, y, res.Count, len(points))
	s.Emit(EventCurvesChanged, nil)
	return c, len(points), nil
}

// DetectAll discovers every curve inside the calibrated area and adds one
// new curve per detection, named "Curve N" in detection order.
func (s *Session) DetectAll() ([]*curve.Curve, error) {
	s.mu.RLock()
	r, cal, opts := s.raster, s.cal, s.options
	s.mu.RUnlock()
	if r == nil {
		return nil, ErrNoImage
	}
	s.mu.RLock()
	region, ok := cal.PixelBounds()
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotCalibrated
	}

	results := trace.DetectAll(r, region, opts)
	if len(results) == 0 {
		s.logf("Detect: no curves in %v", region)
		return nil, ErrNoClusters
	}

	s.mu.Lock()
	s.pushUndo()
	created := make([]*curve.Curve, 0, len(results))
	for i, res := range results {
		c := s.curves.Create(fmt.Sprintf("Curve %d", i+1), res.Hex, curve.Metadata{})
		for _, p := range projection.Project(res.Points, cal) {
			s.curves.AddPoint(p.Pixel.X, p.Pixel.Y, p.X, p.Y)
		}
		created = append(created, c)
		s.logf("Detect: %s weight %d, %d points", res.Hex, res.Count, len(c.Points))
	}
	s.mu.Unlock()

	s.Emit(EventCurvesChanged, nil)
	return created, nil
}

// RestoreCurves replaces every curve, e.g. from a project file. Undo history
// is cleared.
func (s *Session) RestoreCurves(snap curve.Snapshot) {
	s.mu.Lock()
	s.curves.Restore(snap)
	s.undo, s.redo = nil, nil
	s.mu.Unlock()
	s.Emit(EventCurvesChanged, nil)
}

// ClearCurves removes every curve.
func (s *Session) ClearCurves() {
	s.mu.Lock()
	s.pushUndo()
	s.curves.Clear()
	s.mu.Unlock()
	s.Emit(EventCurvesChanged, nil)
}

// Reset clears calibration, curves and history, keeping the image.
func (s *Session) Reset() {
	s.mu.Lock()
	s.cal.Clear()
	s.curves.Clear()
	s.undo, s.redo = nil, nil
	s.mu.Unlock()
	s.Emit(EventCalibrationChanged, nil)
	s.Emit(EventCurvesChanged, nil)
}

// pushUndo records the current curves before a change. Callers hold mu.
func (s *Session) pushUndo() {
	s.recordUndo(s.curves.Snapshot())
}

func (s *Session) recordUndo(snap curve.Snapshot) {
	if n := len(s.undo); n > 0 && reflect.DeepEqual(s.undo[n-1], snap) {
		return
	}
	s.undo = append(s.undo, snap)
	if len(s.undo) > MaxUndoSteps {
		s.undo = s.undo[1:]
	}
	s.redo = nil
}

// Undo reverts the last curve change.
func (s *Session) Undo() bool {
	s.mu.Lock()
	n := len(s.undo)
	if n == 0 {
		s.mu.Unlock()
		return false
	}
	s.redo = append(s.redo, s.curves.Snapshot())
	s.curves.Restore(s.undo[n-1])
	s.undo = s.undo[:n-1]
	s.mu.Unlock()

	s.Emit(EventCurvesChanged, nil)
	return true
}

// Redo reapplies the last undone curve change.
func (s *Session) Redo() bool {
	s.mu.Lock()
	n := len(s.redo)
	if n == 0 {
		s.mu.Unlock()
		return false
	}
	s.undo = append(s.undo, s.curves.Snapshot())
	s.curves.Restore(s.redo[n-1])
	s.redo = s.redo[:n-1]
	s.mu.Unlock()

	s.Emit(EventCurvesChanged, nil)
	return true
}

// CanUndo and CanRedo report whether history is available.
func (s *Session) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.undo) > 0
}

func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo) > 0
}
