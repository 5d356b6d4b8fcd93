package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kwv/meshwarp/warp"
	"gonum.org/v1/gonum/mat"
)

// App encapsulates the application state and dependencies
type App struct {
	Out    io.Writer
	Config *warp.Config

	// CLI Flags (effectively dependencies)
	ConfigFile       string
	VerticesPath     string
	ControlLeftPath  string
	ControlRightPath string
	OutputPath       string
	FitPath          string
	Regularization   *float64
	Precision        *int
	Overwrite        bool
	Workers          *int
}

// NewApp creates a new App writing summaries to out
func NewApp(out io.Writer) *App {
	return &App{Out: out}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.VerticesPath = opts.VerticesPath
	a.ControlLeftPath = opts.ControlLeftPath
	a.ControlRightPath = opts.ControlRightPath
	a.OutputPath = opts.OutputPath
	a.FitPath = opts.FitPath
	a.Regularization = opts.Regularization
	a.Precision = opts.Precision
	a.Overwrite = opts.Overwrite
	a.Workers = opts.Workers
}

// loadConfig reads the config file if one was given. Without one the
// defaults apply.
func (a *App) loadConfig() error {
	if a.Config != nil {
		return nil
	}
	if a.ConfigFile == "" {
		a.Config = warp.DefaultConfig()
		return nil
	}

	cfg, err := warp.LoadConfig(a.ConfigFile)
	if err != nil {
		return err
	}
	slog.Debug("Loaded config", "path", a.ConfigFile, "jobs", len(cfg.Jobs))
	a.Config = cfg
	return nil
}

// regularization returns the flag value, else the config value, else 1.0.
func (a *App) regularization() float64 {
	if a.Regularization != nil {
		return *a.Regularization
	}
	return a.Config.GetRegularization()
}

func (a *App) writeOptions() warp.WriteOptions {
	precision := a.Config.GetPrecision()
	if a.Precision != nil {
		precision = *a.Precision
	}
	return warp.WriteOptions{
		Precision: precision,
		Overwrite: a.Overwrite || a.Config.Overwrite,
	}
}

// RunWarp fits the control points and warps the vertices in one pass
func (a *App) RunWarp() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	wo := a.writeOptions()
	job := warp.Job{
		VerticesPath:     a.VerticesPath,
		ControlLeftPath:  a.ControlLeftPath,
		ControlRightPath: a.ControlRightPath,
		OutputPath:       a.OutputPath,
		Regularization:   a.regularization(),
		Precision:        wo.Precision,
		Overwrite:        wo.Overwrite,
	}

	rows, err := warp.NewDriver(job).Run()
	if err != nil {
		return err
	}
	slog.Info("Warp complete", "vertices", len(rows), "output", a.OutputPath)
	return nil
}

// RunFit fits the control points and saves the transform
func (a *App) RunFit() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	left, _, err := warp.LoadPoints(a.ControlLeftPath, false)
	if err != nil {
		return err
	}
	right, _, err := warp.LoadPoints(a.ControlRightPath, false)
	if err != nil {
		return err
	}

	ft, err := warp.Fit(left, right, a.regularization())
	if err != nil {
		return err
	}
	if err := warp.SaveFit(a.FitPath, ft); err != nil {
		return err
	}

	slog.Info("Fit saved", "control_points", left.Len(), "path", a.FitPath)
	return nil
}

// RunApply warps vertices through a saved fit
func (a *App) RunApply() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	ft, err := warp.LoadFit(a.FitPath)
	if err != nil {
		return err
	}
	vertices, indices, err := warp.LoadPoints(a.VerticesPath, true)
	if err != nil {
		return err
	}

	out, err := ft.Apply(vertices)
	if err != nil {
		return err
	}
	dist, err := warp.Displacements(vertices, out)
	if err != nil {
		return err
	}

	rows := warp.Results(indices, out, dist)
	if err := warp.SaveResults(a.OutputPath, rows, a.writeOptions()); err != nil {
		return err
	}

	slog.Info("Apply complete", "vertices", len(rows), "output", a.OutputPath)
	return nil
}

// RunBatch runs every configured job and prints one line per job
func (a *App) RunBatch() error {
	if a.ConfigFile == "" {
		return fmt.Errorf("%w: batch requires --config", warp.ErrInput)
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	if len(a.Config.Jobs) == 0 {
		return fmt.Errorf("%w: %s defines no jobs", warp.ErrInput, a.ConfigFile)
	}

	workers := a.Config.Workers
	if a.Workers != nil {
		workers = *a.Workers
	}
	if workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", warp.ErrInput)
	}

	jobs := a.Config.BatchJobs(filepath.Dir(a.ConfigFile))
	if a.Overwrite {
		for i := range jobs {
			jobs[i].Overwrite = true
		}
	}

	// Ctrl-C lets running jobs finish and skips the rest.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := warp.RunBatch(ctx, jobs, workers)
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(a.Out, "FAIL %s: %v\n", r.ID, r.Err)
			continue
		}
		fmt.Fprintf(a.Out, "ok   %s: %d vertices -> %s (%s)\n", r.ID, r.Rows, r.Job.OutputPath, r.Duration.Round(time.Millisecond))
	}

	if n := warp.Failed(results); n > 0 {
		return fmt.Errorf("%d of %d jobs failed", n, len(results))
	}
	return nil
}

// RunPCA writes the principal-axis alignment matrix of the vertices
func (a *App) RunPCA() error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	raw, err := warp.ParseMatrixFile(a.VerticesPath)
	if err != nil {
		return err
	}

	// Vertex files carry a leading index column.
	points := mat.Matrix(raw)
	if n, c := raw.Dims(); c == warp.SpatialDim+1 {
		points = raw.Slice(0, n, 1, c)
	}

	alignment, err := warp.PrincipalAxes(points)
	if err != nil {
		return err
	}

	if err := warp.SaveMatrix(a.OutputPath, alignment.Matrix(), a.writeOptions()); err != nil {
		return err
	}

	slog.Info("Principal axes written", "output", a.OutputPath, "variances", alignment.Values)
	return nil
}

var _ AppRunner = (*App)(nil)
