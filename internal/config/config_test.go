package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plot-digitizer/internal/calibration"
	"plot-digitizer/internal/trace"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Axis != calibration.DefaultAxisValues() || cfg.Detection != trace.DefaultOptions() {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Loader.PDFDPI != DefaultPDFDPI {
		t.Errorf("PDFDPI = %v", cfg.Loader.PDFDPI)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digitize.yaml")
	yml := `
axis:
  x_max: 36
detection:
  color_tolerance: 45
  sample_stride: -3
loader:
  pdf_dpi: 0
report:
  source: Smith et al.
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Axis.XMax != 36 || cfg.Axis.YMax != 1 {
		t.Errorf("axis = %+v", cfg.Axis)
	}
	if cfg.Detection.ColorTolerance != 45 {
		t.Errorf("color tolerance = %d", cfg.Detection.ColorTolerance)
	}
	if cfg.Detection.SampleStride != 2 {
		t.Errorf("invalid stride should reset to 2, got %d", cfg.Detection.SampleStride)
	}
	if cfg.Detection.TargetPoints != 50 {
		t.Errorf("missing fields should keep defaults, got %d", cfg.Detection.TargetPoints)
	}
	if cfg.Loader.PDFDPI != DefaultPDFDPI {
		t.Errorf("PDFDPI = %v", cfg.Loader.PDFDPI)
	}
	if cfg.Report.Source != "Smith et al." {
		t.Errorf("report source = %q", cfg.Report.Source)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("axis: [1, 2"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected a parse error")
	}

	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, []byte("axis:\n  x_min: 5\n  x_max: 5\n"), 0644)
	_, err := Load(empty)
	if err == nil || !strings.Contains(err.Error(), "must not be empty") {
		t.Errorf("expected an empty range error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Axis.XMax = 24
	cfg.Detection = cfg.Detection.WithTolerance(12)
	cfg.Output.CSV = "curves.csv"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestWatcherChanged(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.yaml")
	later := filepath.Join(dir, "b.yaml")
	os.WriteFile(existing, []byte("a"), 0644)

	w := NewWatcher(time.Hour, nil, existing, later)
	if got := w.Changed(); len(got) != 0 {
		t.Fatalf("nothing changed yet, got %v", got)
	}

	future := time.Now().Add(time.Minute)
	os.Chtimes(existing, future, future)
	os.WriteFile(later, []byte("b"), 0644)

	got := w.Changed()
	if len(got) != 2 || got[0] != existing || got[1] != later {
		t.Errorf("Changed = %v", got)
	}
	if got := w.Changed(); len(got) != 0 {
		t.Errorf("baseline should move forward, got %v", got)
	}
}

func TestWatcherCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	os.WriteFile(path, []byte("c"), 0644)

	fired := make(chan string, 1)
	w := NewWatcher(5*time.Millisecond, func(p string) {
		select {
		case fired <- p:
		default:
		}
	}, path)
	w.Start()
	defer w.Stop()

	future := time.Now().Add(time.Minute)
	os.Chtimes(path, future, future)

	select {
	case p := <-fired:
		if p != path {
			t.Errorf("callback got %q", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}
