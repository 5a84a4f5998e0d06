// Package export writes digitized curves to CSV.
package export

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"plot-digitizer/internal/curve"
)

// Header is the first line of every CSV export.
const Header = "Time,Value,Curve"

// WriteCSV writes one row per point, curves in the given order. Curve names
// are always quoted. Nothing is written when there are no curves.
func WriteCSV(w io.Writer, curves []*curve.Curve) error {
	if len(curves) == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(Header)
	for _, c := range curves {
		name := quote(c.Name)
		for _, p := range c.Points {
			fmt.Fprintf(bw, "\n%s,%s,%s", formatFloat(p.X), formatFloat(p.Y), name)
		}
	}
	return bw.Flush()
}

// CSV returns the export as a string, empty when there are no curves.
func CSV(curves []*curve.Curve) string {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, curves)
	return buf.String()
}

// SaveCSV writes the export to path.
func SaveCSV(path string, curves []*curve.Curve) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, curves); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
