// Package report renders a self-contained HTML report of a digitization:
// study metadata, axis calibration, the annotated figure and a data table
// per curve. The report is assembled as Markdown and converted with goldmark.
package report

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"plot-digitizer/internal/calibration"
	"plot-digitizer/internal/curve"
	"plot-digitizer/pkg/colorutil"

	"github.com/disintegration/imaging"
	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/image/draw"
)

// ErrNoData is returned when no curve has any points.
var ErrNoData = errors.New("no data points to report")

// Figure size limits and the marker drawn at each digitized point.
const (
	MaxFigureWidth  = 900
	MaxFigureHeight = 900
	markerSize      = 5
)

// Metadata describes the study the chart was taken from.
type Metadata struct {
	Source     string `yaml:"source" json:"source,omitempty"`
	Endpoint   string `yaml:"endpoint" json:"endpoint,omitempty"`
	Population string `yaml:"population" json:"population,omitempty"`
	Notes      string `yaml:"notes" json:"notes,omitempty"`
}

// Report is everything that goes into one report.
type Report struct {
	Metadata  Metadata
	Generated time.Time
	Axis      calibration.AxisValues
	Curves    []*curve.Curve
	Figure    image.Image // Optional; points are drawn onto a copy
}

func (r *Report) totalPoints() int {
	n := 0
	for _, c := range r.Curves {
		n += len(c.Points)
	}
	return n
}

// Markdown returns the report body as GitHub-flavored Markdown.
func (r *Report) Markdown() ([]byte, error) {
	if r.totalPoints() == 0 {
		return nil, ErrNoData
	}

	var b bytes.Buffer
	b.WriteString("# Curve Digitization Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.Generated.Format("2006-01-02 15:04"))

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Source / Author | %s |\n", orDefault(r.Metadata.Source, "Not specified"))
	fmt.Fprintf(&b, "| Endpoint | %s |\n", orDefault(r.Metadata.Endpoint, "Not specified"))
	fmt.Fprintf(&b, "| Population | %s |\n", orDefault(r.Metadata.Population, "Not specified"))
	fmt.Fprintf(&b, "| Notes | %s |\n\n", orDefault(r.Metadata.Notes, "None"))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "**Curves digitized:** %d\n\n", len(r.Curves))
	fmt.Fprintf(&b, "**Total data points:** %s\n\n", humanize.Comma(int64(r.totalPoints())))
	fmt.Fprintf(&b, "**Axis calibration:** X: %s to %s, Y: %s to %s\n\n",
		num(r.Axis.XMin), num(r.Axis.XMax), num(r.Axis.YMin), num(r.Axis.YMax))

	if r.Figure != nil {
		uri, err := figureDataURI(r.Figure, r.Curves)
		if err != nil {
			return nil, err
		}
		b.WriteString("## Digitized Figure\n\n")
		fmt.Fprintf(&b, "![Digitized curve](%s)\n\n", uri)
	}

	b.WriteString("## Extracted Data\n")
	for _, c := range r.Curves {
		fmt.Fprintf(&b, "\n### %s\n\n", escape(c.Name))
		if len(c.Points) == 0 {
			b.WriteString("No data points captured.\n")
			continue
		}
		b.WriteString("| Time | Value |\n|---:|---:|\n")
		for _, p := range c.Points {
			fmt.Fprintf(&b, "| %s | %s |\n", fixed4(p.X), fixed4(p.Y))
		}
		fmt.Fprintf(&b, "\n*%s points*\n", humanize.Comma(int64(len(c.Points))))
	}
	return b.Bytes(), nil
}

// WriteHTML renders the report as a standalone HTML document.
func (r *Report) WriteHTML(w io.Writer) error {
	src, err := r.Markdown()
	if err != nil {
		return err
	}
	var body bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert(src, &body); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if _, err := io.WriteString(w, htmlHead); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err = io.WriteString(w, htmlFoot)
	return err
}

// Save writes the HTML report to path.
func Save(path string, r *Report) error {
	var buf bytes.Buffer
	if err := r.WriteHTML(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileName suggests a report file name from the study source and date,
// e.g. "My_Study_report_2026-01-31.html".
func FileName(source string, date time.Time) string {
	if source == "" {
		source = "digitization"
	}
	safe := unsafeName.ReplaceAllString(source, "_")
	if len(safe) > 30 {
		safe = safe[:30]
	}
	return fmt.Sprintf("%s_report_%s.html", safe, date.Format("2006-01-02"))
}

// figureDataURI draws every point onto a copy of img in its curve's color,
// shrinks the result to the figure limits and encodes it as a PNG data URI.
func figureDataURI(img image.Image, curves []*curve.Curve) (string, error) {
	canvas := imaging.Clone(img)
	b := canvas.Bounds()
	half := markerSize / 2
	for _, c := range curves {
		col, err := colorutil.ParseHex(c.Color)
		if err != nil {
			col = colorutil.RGB{}
		}
		fill := image.NewUniform(col.RGBA())
		for _, p := range c.Points {
			x := b.Min.X + int(p.PX)
			y := b.Min.Y + int(p.PY)
			marker := image.Rect(x-half, y-half, x+half+1, y+half+1).Intersect(b)
			draw.Draw(canvas, marker, fill, image.Point{}, draw.Src)
		}
	}
	thumb := imaging.Fit(canvas, MaxFigureWidth, MaxFigureHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, thumb); err != nil {
		return "", fmt.Errorf("failed to encode figure: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return escape(s)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `\<`, `>`, `\>`, `|`, `\|`, `#`, `\#`, "\n", " ",
)

// escape makes user text safe to place in a Markdown table cell or heading.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fixed4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

const htmlHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Curve Digitization Report</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 900px; margin: 0 auto; padding: 2rem; }
h1 { border-bottom: 2px solid #2196f3; padding-bottom: 0.5rem; }
table { border-collapse: collapse; margin: 1rem 0; }
th, td { border: 1px solid #ddd; padding: 0.3rem 0.8rem; }
th { background: #f5f5f5; }
tr:nth-child(even) { background: #fafafa; }
img { max-width: 100%; border: 1px solid #ddd; }
@media print { body { padding: 0; } }
</style>
</head>
<body>
`

const htmlFoot = `</body>
</html>
`
