// Command digitize extracts data points from a chart image.
//
// Usage:
//
//	digitize -image km.png -anchors "100,400;500,400;100,400;100,50" -axis "0,60,0,1" -o curves.csv
//
// Anchors are the pixel positions of x-min, x-max, y-min and y-max. Without
// -click every curve in the calibrated area is detected; with -click only the
// curves under the given positions are traced.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"plot-digitizer/internal/app"
	"plot-digitizer/internal/calibration"
	"plot-digitizer/internal/config"
	"plot-digitizer/internal/cvraster"
	"plot-digitizer/internal/export"
	"plot-digitizer/internal/image"
	"plot-digitizer/internal/project"
	"plot-digitizer/internal/report"
	"plot-digitizer/internal/version"
	"plot-digitizer/pkg/geometry"

	"github.com/dustin/go-humanize"
)

// options are the parsed command line.
type options struct {
	ImagePath  string
	ProjectIn  string
	Anchors    string
	Axis       string
	Clicks     string
	ConfigPath string
	Denoise    int
	Watch      bool
	Config     *config.Config
	Stdout     io.Writer

	cv *cvraster.MatRaster
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts == nil {
		return
	}
	opts.Stdout = os.Stdout

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "digitize: %v\n", err)
		if !opts.Watch {
			os.Exit(1)
		}
	}
	if opts.Watch {
		watch(opts)
	}
	opts.release()
}

// parseFlags reads the command line. Values from -config are loaded first
// and explicitly set flags override them. A nil result means nothing is
// left to do (e.g. -version).
func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("digitize", flag.ContinueOnError)
	o := &options{}
	fs.StringVar(&o.ImagePath, "image", "", "Chart image (PNG, JPEG, GIF, BMP, TIFF, WebP or PDF)")
	fs.StringVar(&o.ProjectIn, "open", "", "Load calibration and curves from a project file")
	fs.StringVar(&o.Anchors, "anchors", "", `Anchor pixels "x,y;x,y;x,y;x,y" for x-min, x-max, y-min, y-max`)
	fs.StringVar(&o.Axis, "axis", "", `Axis values "xmin,xmax,ymin,ymax" (default "0,60,0,1")`)
	fs.StringVar(&o.Clicks, "click", "", `Trace only the curves under "x,y[;x,y...]"`)
	fs.StringVar(&o.ConfigPath, "config", "", "YAML configuration file")
	fs.IntVar(&o.Denoise, "denoise", 0, "Median filter size applied through OpenCV (odd, e.g. 3)")
	fs.BoolVar(&o.Watch, "watch", false, "Re-run when the image or config file changes")
	tolerance := fs.Int("tolerance", 0, "Color tolerance per channel (0-255)")
	points := fs.Int("points", 0, "Points kept per detected curve")
	page := fs.Int("page", 0, "Zero-based PDF page")
	dpi := fs.Float64("dpi", 0, "PDF render resolution")
	opencv := fs.Bool("opencv", false, "Decode the image through OpenCV")
	out := fs.String("o", "", `CSV output path ("-" for stdout)`)
	projectOut := fs.String("project", "", "Write a project file")
	reportOut := fs.String("report", "", "Write an HTML report")
	verbose := fs.Bool("v", false, "Verbose detection logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		fmt.Printf("digitize %s\n", version.String())
		return nil, nil
	}

	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tolerance":
			cfg.Detection = cfg.Detection.WithTolerance(*tolerance)
		case "points":
			cfg.Detection = cfg.Detection.WithTargetPoints(*points, *points)
		case "page":
			cfg.Loader.PDFPage = *page
		case "dpi":
			cfg.Loader.PDFDPI = *dpi
		case "opencv":
			cfg.Loader.OpenCV = *opencv
		case "o":
			cfg.Output.CSV = *out
		case "project":
			cfg.Output.Project = *projectOut
		case "report":
			cfg.Output.Report = *reportOut
		case "v":
			cfg.Verbose = *verbose
		case "axis":
			cfg.Axis, err = parseAxis(o.Axis)
		}
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.Denoise != 0 && (o.Denoise < 3 || o.Denoise%2 == 0) {
		return nil, fmt.Errorf("-denoise must be an odd size of at least 3, got %d", o.Denoise)
	}
	if o.ImagePath == "" && o.ProjectIn == "" {
		return nil, fmt.Errorf("usage: digitize -image <path> -anchors <x,y;x,y;x,y;x,y> [-axis xmin,xmax,ymin,ymax] [-o out.csv]")
	}
	o.Config = cfg
	return o, nil
}

// run performs one digitization.
func run(o *options) error {
	o.release()
	cfg := o.Config
	s := app.NewSession(cfg)

	if o.ProjectIn != "" {
		proj, err := project.Load(o.ProjectIn)
		if err != nil {
			return err
		}
		path := o.ImagePath
		if path == "" {
			// The project's image is read the way it was when saved.
			path = proj.GetImagePath(o.ProjectIn)
			opts := proj.ImageOptions()
			cfg.Loader.PDFPage, cfg.Loader.PDFDPI = opts.Page, opts.DPI
		}
		if err := loadImage(s, o, path); err != nil {
			return fmt.Errorf("failed to load project image: %w", err)
		}
		if err := proj.Restore(s, o.ProjectIn); err != nil {
			return err
		}
		if cfg.Report == (report.Metadata{}) {
			cfg.Report = proj.Study
		}
		if o.Axis != "" {
			s.SetAxisValues(cfg.Axis)
		}
	} else {
		if err := loadImage(s, o, o.ImagePath); err != nil {
			return err
		}
		s.SetAxisValues(cfg.Axis)
	}

	if o.Anchors != "" {
		anchors, err := parseAnchors(o.Anchors)
		if err != nil {
			return err
		}
		s.SetAnchors(anchors)
	}
	if role, ok := s.NextAnchor(); ok {
		return fmt.Errorf("calibration incomplete, -anchors needs: %s", role.Prompt())
	}

	// A reopened project is re-exported as is unless clicks are given.
	if o.ProjectIn == "" || o.Clicks != "" || s.Curves().Len() == 0 {
		if err := detect(s, o.Clicks); err != nil {
			return err
		}
	}
	printSummary(o.Stdout, s, cfg.Output.CSV == "-")
	return writeOutputs(s, o)
}

// loadImage reads path into the session, through OpenCV when the loader
// settings or -denoise ask for it. The OpenCV raster is kept on o until the
// next run releases it.
func loadImage(s *app.Session, o *options, path string) error {
	cfg := o.Config
	opts := image.Options{Page: cfg.Loader.PDFPage, DPI: cfg.Loader.PDFDPI}
	if !cfg.Loader.OpenCV && o.Denoise == 0 {
		return s.LoadImage(path, opts)
	}

	var (
		mr  *cvraster.MatRaster
		err error
	)
	if cfg.Loader.OpenCV && !image.IsPDF(path) {
		mr, err = cvraster.Load(path)
	} else {
		var chart *image.Chart
		if chart, err = image.Load(path, opts); err != nil {
			return err
		}
		mr, err = cvraster.FromImage(chart.Image)
	}
	if err != nil {
		return err
	}
	if o.Denoise > 0 {
		clean, err := mr.Denoise(o.Denoise)
		mr.Close()
		if err != nil {
			return err
		}
		mr = clean
	}
	o.cv = mr

	img, err := mr.Image()
	if err != nil {
		return fmt.Errorf("failed to convert image: %w", err)
	}
	s.SetRaster(img, mr, path)
	return nil
}

// release closes the OpenCV raster left by the previous run.
func (o *options) release() {
	if o.cv != nil {
		o.cv.Close()
		o.cv = nil
	}
}

func detect(s *app.Session, clicks string) error {
	if clicks == "" {
		created, err := s.DetectAll()
		if err != nil {
			return err
		}
		log.Printf("Detect: %d curves found", len(created))
		return nil
	}

	for _, part := range strings.Split(clicks, ";") {
		p, err := parsePoint(part)
		if err != nil {
			return fmt.Errorf("invalid -click: %w", err)
		}
		c, err := s.DetectCurveAt(p.X, p.Y)
		if err != nil {
			return fmt.Errorf("click at (%g, %g): %w", p.X, p.Y, err)
		}
		log.Printf("Detect: %d points at (%g, %g)", len(c.Points), p.X, p.Y)
	}
	return nil
}

func printSummary(w io.Writer, s *app.Session, quiet bool) {
	if quiet {
		return
	}
	curves := s.Curves().All()
	fmt.Fprintf(w, "\nDetected %d curves:\n", len(curves))
	fmt.Fprintf(w, "%-12s %-8s %8s %20s %20s\n", "Name", "Color", "Points", "First", "Last")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, c := range curves {
		first, last := "-", "-"
		if n := len(c.Points); n > 0 {
			first = fmt.Sprintf("(%.2f, %.4f)", c.Points[0].X, c.Points[0].Y)
			last = fmt.Sprintf("(%.2f, %.4f)", c.Points[n-1].X, c.Points[n-1].Y)
		}
		fmt.Fprintf(w, "%-12s %-8s %8s %20s %20s\n", c.Name, c.Color, humanize.Comma(int64(len(c.Points))), first, last)
	}
	fmt.Fprintf(w, "\nTotal: %s points\n", humanize.Comma(int64(s.Curves().TotalPoints())))
}

func writeOutputs(s *app.Session, o *options) error {
	cfg := o.Config
	curves := s.Curves().All()

	switch cfg.Output.CSV {
	case "":
	case "-":
		if err := export.WriteCSV(o.Stdout, curves); err != nil {
			return err
		}
		fmt.Fprintln(o.Stdout)
	default:
		if err := export.SaveCSV(cfg.Output.CSV, curves); err != nil {
			return err
		}
		log.Printf("Export: wrote %s", cfg.Output.CSV)
	}

	if path := cfg.Output.Project; path != "" {
		proj := project.FromSession(s, path, strings.TrimSuffix(filepath.Base(path), project.Extension))
		proj.PDFPage, proj.PDFDPI = cfg.Loader.PDFPage, cfg.Loader.PDFDPI
		proj.Study = cfg.Report
		if err := proj.Save(path); err != nil {
			return fmt.Errorf("failed to save project: %w", err)
		}
		log.Printf("Project: wrote %s", path)
	}

	if path := cfg.Output.Report; path != "" {
		now := time.Now()
		if strings.HasSuffix(path, "/") {
			path += report.FileName(cfg.Report.Source, now)
		}
		r := &report.Report{
			Metadata:  cfg.Report,
			Generated: now,
			Axis:      s.AxisValues(),
			Curves:    curves,
			Figure:    s.Image(),
		}
		if err := report.Save(path, r); err != nil {
			return err
		}
		log.Printf("Report: wrote %s", path)
	}
	return nil
}

// watch re-runs the digitization whenever the image or config changes,
// until interrupted.
func watch(o *options) {
	paths := []string{o.ImagePath}
	if o.ImagePath == "" {
		paths = []string{o.ProjectIn}
	}
	if o.ConfigPath != "" {
		paths = append(paths, o.ConfigPath)
	}

	w := config.NewWatcher(500*time.Millisecond, func(path string) {
		log.Printf("Watch: %s changed, re-running", path)
		if path == o.ConfigPath {
			cfg, err := config.Load(path)
			if err != nil {
				log.Printf("Watch: %v", err)
				return
			}
			// Output paths stay as given on the command line.
			cfg.Output = o.Config.Output
			o.Config = cfg
		}
		if err := run(o); err != nil {
			log.Printf("Watch: %v", err)
		}
	}, paths...)
	w.Start()
	log.Printf("Watch: watching %s", strings.Join(paths, ", "))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	w.Stop()
}

func parsePoint(s string) (geometry.Point2D, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return geometry.Point2D{}, fmt.Errorf("expected x,y, got %q", s)
	}
	vals, err := parseFloats(parts)
	if err != nil {
		return geometry.Point2D{}, err
	}
	return geometry.Point2D{X: vals[0], Y: vals[1]}, nil
}

func parseAnchors(s string) ([calibration.NumRoles]geometry.Point2D, error) {
	var anchors [calibration.NumRoles]geometry.Point2D
	parts := strings.Split(s, ";")
	if len(parts) != calibration.NumRoles {
		return anchors, fmt.Errorf("-anchors needs %d points, got %d", calibration.NumRoles, len(parts))
	}
	for i, part := range parts {
		p, err := parsePoint(part)
		if err != nil {
			return anchors, fmt.Errorf("%s anchor: %w", calibration.Role(i), err)
		}
		anchors[i] = p
	}
	return anchors, nil
}

func parseAxis(s string) (calibration.AxisValues, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return calibration.AxisValues{}, fmt.Errorf("-axis needs xmin,xmax,ymin,ymax, got %q", s)
	}
	v, err := parseFloats(parts)
	if err != nil {
		return calibration.AxisValues{}, fmt.Errorf("-axis: %w", err)
	}
	return calibration.AxisValues{XMin: v[0], XMax: v[1], YMin: v[2], YMax: v[3]}, nil
}

func parseFloats(parts []string) ([]float64, error) {
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", strings.TrimSpace(p))
		}
		out[i] = v
	}
	return out, nil
}
