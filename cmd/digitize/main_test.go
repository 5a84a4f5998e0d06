package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plot-digitizer/internal/export"
	"plot-digitizer/internal/project"
)

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 12.5, 40 ")
	if err != nil || p.X != 12.5 || p.Y != 40 {
		t.Errorf("parsePoint = %v, %v", p, err)
	}
	for _, bad := range []string{"", "1", "1,2,3", "a,2"} {
		if _, err := parsePoint(bad); err == nil {
			t.Errorf("parsePoint(%q) should fail", bad)
		}
	}
}

func TestParseAnchors(t *testing.T) {
	a, err := parseAnchors("100,400;500,400;100,400;100,50")
	if err != nil {
		t.Fatal(err)
	}
	if a[1].X != 500 || a[3].Y != 50 {
		t.Errorf("anchors = %v", a)
	}
	if _, err := parseAnchors("1,2;3,4;5,6"); err == nil {
		t.Error("three anchors should fail")
	}
	_, err = parseAnchors("1,2;3,4;5;7,8")
	if err == nil || !strings.Contains(err.Error(), "yMin") {
		t.Errorf("error should name the anchor, got %v", err)
	}
}

func TestParseAxis(t *testing.T) {
	v, err := parseAxis("0, 36, 0, 100")
	if err != nil {
		t.Fatal(err)
	}
	if v.XMax != 36 || v.YMax != 100 {
		t.Errorf("axis = %+v", v)
	}
	if _, err := parseAxis("0,36,0"); err == nil {
		t.Error("three values should fail")
	}
}

func TestParseFlagsOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digitize.yaml")
	yml := "detection:\n  color_tolerance: 45\noutput:\n  csv: from-file.csv\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	o, err := parseFlags([]string{"-config", path, "-image", "chart.png", "-o", "flag.csv", "-axis", "0,12,0,1"})
	if err != nil {
		t.Fatal(err)
	}
	if o.Config.Detection.ColorTolerance != 45 {
		t.Errorf("tolerance from file = %d", o.Config.Detection.ColorTolerance)
	}
	if o.Config.Output.CSV != "flag.csv" {
		t.Errorf("-o should win, got %q", o.Config.Output.CSV)
	}
	if o.Config.Axis.XMax != 12 {
		t.Errorf("axis = %+v", o.Config.Axis)
	}

	o, err = parseFlags([]string{"-config", path, "-image", "chart.png", "-tolerance", "10", "-points", "20"})
	if err != nil {
		t.Fatal(err)
	}
	if o.Config.Detection.ColorTolerance != 10 || o.Config.Output.CSV != "from-file.csv" {
		t.Errorf("config = %+v", o.Config)
	}
	if d := o.Config.Detection; d.TargetPoints != 20 || d.ClickTargetPoints != 20 {
		t.Errorf("target points = %d/%d", d.TargetPoints, d.ClickTargetPoints)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	if _, err := parseFlags(nil); err == nil {
		t.Error("missing -image should fail")
	}
	if _, err := parseFlags([]string{"-image", "x.png", "-axis", "0,0,0,1"}); err == nil {
		t.Error("empty axis range should fail")
	}
	if _, err := parseFlags([]string{"-image", "x.png", "-axis", "zero"}); err == nil {
		t.Error("malformed axis should fail")
	}
	for _, k := range []string{"2", "1", "-3"} {
		if _, err := parseFlags([]string{"-image", "x.png", "-denoise", k}); err == nil {
			t.Errorf("-denoise %s should fail", k)
		}
	}
	if _, err := parseFlags([]string{"-image", "x.png", "-denoise", "5"}); err != nil {
		t.Errorf("-denoise 5: %v", err)
	}
}

func writeChart(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 500, 400))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	blue := color.NRGBA{R: 33, G: 150, B: 243, A: 255}
	for x := 100; x < 500; x++ {
		img.Set(x, int(math.Floor(350-0.75*float64(x-100)+0.5)), blue)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	chartPath := filepath.Join(dir, "km.png")
	writeChart(t, chartPath)

	projPath := filepath.Join(dir, "km"+project.Extension)
	reportPath := filepath.Join(dir, "km.html")
	o, err := parseFlags([]string{
		"-image", chartPath,
		"-anchors", "100,400;500,400;100,400;100,50",
		"-o", "-",
		"-project", projPath,
		"-report", reportPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	o.Stdout = &out
	if err := run(o); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != export.Header {
		t.Fatalf("CSV header = %q", lines[0])
	}
	if len(lines) != 44 {
		t.Errorf("got %d CSV rows, want 43", len(lines)-1)
	}
	for _, l := range lines[1:] {
		if !strings.HasSuffix(l, `,"Curve 1"`) {
			t.Fatalf("unexpected row %q", l)
		}
	}

	proj, err := project.Load(projPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(proj.Anchors) != 4 || len(proj.Curves.Curves) != 1 {
		t.Errorf("project = %d anchors, %d curves", len(proj.Anchors), len(proj.Curves.Curves))
	}
	html, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(html, []byte("Curve 1")) {
		t.Error("report should list the curve")
	}

	// Re-open the project and trace only the clicked curve.
	o, err = parseFlags([]string{"-open", projPath, "-click", "300.2,199.7"})
	if err != nil {
		t.Fatal(err)
	}
	out.Reset()
	o.Stdout = &out
	if err := run(o); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Detected 2 curves") {
		t.Errorf("summary = %q", out.String())
	}
}

func TestRunRequiresAnchors(t *testing.T) {
	chartPath := filepath.Join(t.TempDir(), "km.png")
	writeChart(t, chartPath)
	o, err := parseFlags([]string{"-image", chartPath})
	if err != nil {
		t.Fatal(err)
	}
	o.Stdout = &bytes.Buffer{}
	if err := run(o); err == nil || !strings.Contains(err.Error(), "anchors") {
		t.Errorf("expected an anchor error, got %v", err)
	}
}

func TestRunReleasesPreviousRaster(t *testing.T) {
	chartPath := filepath.Join(t.TempDir(), "km.png")
	writeChart(t, chartPath)
	o, err := parseFlags([]string{
		"-image", chartPath,
		"-anchors", "100,400;500,400;100,400;100,50",
		"-opencv",
	})
	if err != nil {
		t.Fatal(err)
	}
	o.Stdout = &bytes.Buffer{}

	if err := run(o); err != nil {
		t.Fatal(err)
	}
	first := o.cv
	if first == nil || first.Closed() {
		t.Fatal("run should keep its OpenCV raster open")
	}
	if err := run(o); err != nil {
		t.Fatal(err)
	}
	if !first.Closed() || o.cv == first {
		t.Error("a re-run should release the previous raster")
	}
	o.release()
	if o.cv != nil {
		t.Error("release should drop the raster")
	}
}
