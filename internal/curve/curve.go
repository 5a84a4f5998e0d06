// Package curve holds digitized curves and their data points.
package curve

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// DefaultPickThreshold is the pixel radius used to pick an existing point.
const DefaultPickThreshold = 10.0

// Palette is cycled through by curve id when a curve has no color.
var Palette = []string{
	"#2196f3", // Blue
	"#f44336", // Red
	"#4caf50", // Green
	"#ff9800", // Orange
	"#9c27b0", // Purple
	"#00bcd4", // Cyan
	"#795548", // Brown
	"#607d8b", // Gray
}

// Metadata describes the study arm a curve belongs to.
type Metadata struct {
	Treatment  string `json:"treatment,omitempty"`
	Population string `json:"population,omitempty"`
	Line       string `json:"line,omitempty"`
	N          string `json:"n,omitempty"`
}

// Point is a digitized point: the pixel it was placed at and its data value.
type Point struct {
	ID int     `json:"id"`
	PX float64 `json:"px"`
	PY float64 `json:"py"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Curve is a named series of points ordered by data x.
type Curve struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Metadata
	Points []Point `json:"points"`
}

func (c *Curve) sortPoints() {
	sort.SliceStable(c.Points, func(i, j int) bool {
		return c.Points[i].X < c.Points[j].X
	})
}

func (c *Curve) indexOf(pointID int) int {
	return slices.IndexFunc(c.Points, func(p Point) bool { return p.ID == pointID })
}

func (c *Curve) clone() *Curve {
	cp := *c
	cp.Points = slices.Clone(c.Points)
	return &cp
}

// Store is an ordered collection of curves with one active curve. Points are
// added to, moved in and deleted from the active curve. A Store is not safe
// for concurrent use.
type Store struct {
	curves      []*Curve
	activeID    int // 0 when there is no active curve
	nextID      int
	nextPointID int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{nextID: 1, nextPointID: 1}
}

// Create appends a curve and makes it active. An empty name becomes
// "Curve N" and an empty color is taken from Palette, both keyed by the id.
func (s *Store) Create(name, color string, md Metadata) *Curve {
	id := s.nextID
	s.nextID++
	if name == "" {
		name = fmt.Sprintf("Curve %d", id)
	}
	if color == "" {
		color = Palette[(id-1)%len(Palette)]
	}
	c := &Curve{ID: id, Name: name, Color: color, Metadata: md}
	s.curves = append(s.curves, c)
	s.activeID = id
	return c
}

// Delete removes a curve. When it was active, the first remaining curve
// becomes active.
func (s *Store) Delete(id int) bool {
	i := slices.IndexFunc(s.curves, func(c *Curve) bool { return c.ID == id })
	if i < 0 {
		return false
	}
	s.curves = slices.Delete(s.curves, i, i+1)
	if s.activeID == id {
		s.activeID = 0
		if len(s.curves) > 0 {
			s.activeID = s.curves[0].ID
		}
	}
	return true
}

// Get returns the curve with the given id, or nil.
func (s *Store) Get(id int) *Curve {
	for _, c := range s.curves {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Active returns the active curve, or nil when there is none.
func (s *Store) Active() *Curve {
	return s.Get(s.activeID)
}

// SetActive makes the curve with the given id active.
func (s *Store) SetActive(id int) bool {
	if s.Get(id) == nil {
		return false
	}
	s.activeID = id
	return true
}

// AddPoint adds a point to the active curve, keeping it sorted by data x.
func (s *Store) AddPoint(px, py, x, y float64) (Point, bool) {
	c := s.Active()
	if c == nil {
		return Point{}, false
	}
	p := Point{ID: s.nextPointID, PX: px, PY: py, X: x, Y: y}
	s.nextPointID++
	c.Points = append(c.Points, p)
	c.sortPoints()
	return p, true
}

// DeletePoint removes a point from the active curve.
func (s *Store) DeletePoint(pointID int) bool {
	c := s.Active()
	if c == nil {
		return false
	}
	i := c.indexOf(pointID)
	if i < 0 {
		return false
	}
	c.Points = slices.Delete(c.Points, i, i+1)
	return true
}

// UpdatePoint moves a point of the active curve and re-sorts the curve.
func (s *Store) UpdatePoint(pointID int, px, py, x, y float64) bool {
	c := s.Active()
	if c == nil {
		return false
	}
	i := c.indexOf(pointID)
	if i < 0 {
		return false
	}
	c.Points[i].PX, c.Points[i].PY = px, py
	c.Points[i].X, c.Points[i].Y = x, y
	c.sortPoints()
	return true
}

// FindPointAt returns the first point, searching curves in order, whose pixel
// position lies within threshold of (px, py).
func (s *Store) FindPointAt(px, py, threshold float64) (*Curve, Point, bool) {
	for _, c := range s.curves {
		for _, p := range c.Points {
			if math.Hypot(p.PX-px, p.PY-py) <= threshold {
				return c, p, true
			}
		}
	}
	return nil, Point{}, false
}

// All returns the curves in creation order.
func (s *Store) All() []*Curve {
	return s.curves
}

// Len returns the number of curves.
func (s *Store) Len() int {
	return len(s.curves)
}

// TotalPoints returns the number of points across all curves.
func (s *Store) TotalPoints() int {
	n := 0
	for _, c := range s.curves {
		n += len(c.Points)
	}
	return n
}

// Clear removes every curve and restarts id numbering.
func (s *Store) Clear() {
	*s = *NewStore()
}

// Snapshot is a deep copy of a store's contents.
type Snapshot struct {
	Curves      []*Curve `json:"curves"`
	ActiveID    int      `json:"active_curve_id"`
	NextID      int      `json:"next_id"`
	NextPointID int      `json:"next_point_id"`
}

// Snapshot copies the store so later edits do not affect the copy.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{ActiveID: s.activeID, NextID: s.nextID, NextPointID: s.nextPointID}
	for _, c := range s.curves {
		snap.Curves = append(snap.Curves, c.clone())
	}
	return snap
}

// Restore replaces the store contents with a copy of snap. Id counters are
// raised past any id already in use.
func (s *Store) Restore(snap Snapshot) {
	s.curves = nil
	s.nextID = max(snap.NextID, 1)
	s.nextPointID = max(snap.NextPointID, 1)
	for _, c := range snap.Curves {
		s.curves = append(s.curves, c.clone())
		s.nextID = max(s.nextID, c.ID+1)
		for _, p := range c.Points {
			s.nextPointID = max(s.nextPointID, p.ID+1)
		}
	}
	s.activeID = snap.ActiveID
	if s.Get(s.activeID) == nil {
		s.activeID = 0
		if len(s.curves) > 0 {
			s.activeID = s.curves[0].ID
		}
	}
}
