package warp

import (
	"fmt"
	"log/slog"
	"os"
)

// State is a Driver pipeline stage.
type State int

const (
	StateInit State = iota
	StateLoaded
	StateFitted
	StateTransformed
	StateWritten
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateLoaded:
		return "LOADED"
	case StateFitted:
		return "FITTED"
	case StateTransformed:
		return "TRANSFORMED"
	case StateWritten:
		return "WRITTEN"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Job is the full description of one warp run.
type Job struct {
	ID               string
	VerticesPath     string // index x y z per row
	ControlLeftPath  string // x y z per row
	ControlRightPath string // x y z per row, same count as left
	OutputPath       string
	Regularization   float64
	Precision        int
	Overwrite        bool
}

// NewJob returns a job for the given files with default λ and precision.
func NewJob(vertices, controlLeft, controlRight, output string) Job {
	return Job{
		VerticesPath:     vertices,
		ControlLeftPath:  controlLeft,
		ControlRightPath: controlRight,
		OutputPath:       output,
		Regularization:   DefaultRegularization,
		Precision:        DefaultPrecision,
	}
}

// Driver runs one job through load, fit, transform and write. A Driver is
// single use and not safe for concurrent use; run independent jobs on
// separate Drivers.
type Driver struct {
	job   Job
	state State

	vertices     *PointSet
	indices      []int64
	controlLeft  *PointSet
	controlRight *PointSet
	fitted       *FittedTransform
	results      []WarpResult
}

// NewDriver creates a driver in StateInit.
func NewDriver(job Job) *Driver {
	return &Driver{job: job, state: StateInit}
}

// State returns the current pipeline stage.
func (d *Driver) State() State {
	return d.state
}

// Fitted returns the fitted transform once the driver has reached StateFitted.
func (d *Driver) Fitted() *FittedTransform {
	return d.fitted
}

// Run executes every remaining stage. On failure the driver moves to
// StateFailed and the returned *StageError names the stage being entered.
// No output file is written unless every earlier stage succeeded.
func (d *Driver) Run() ([]WarpResult, error) {
	stages := []struct {
		next State
		fn   func() error
	}{
		{StateLoaded, d.load},
		{StateFitted, d.fit},
		{StateTransformed, d.transform},
		{StateWritten, d.write},
	}

	for _, s := range stages {
		if d.state == StateFailed {
			return nil, fmt.Errorf("%w: driver already failed", ErrInput)
		}
		if d.state >= s.next {
			continue
		}
		if err := s.fn(); err != nil {
			d.state = StateFailed
			slog.Debug("Warp stage failed", "job", d.job.ID, "stage", s.next.String(), "error", err)
			return nil, &StageError{Stage: s.next, Err: err}
		}
		d.state = s.next
		slog.Debug("Warp stage complete", "job", d.job.ID, "stage", s.next.String())
	}
	return d.results, nil
}

func (d *Driver) load() error {
	if err := validateRegularization("regularization", &d.job.Regularization); err != nil {
		return err
	}
	for _, p := range []string{d.job.VerticesPath, d.job.ControlLeftPath, d.job.ControlRightPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: file not found: %s", ErrInput, p)
			}
			return fmt.Errorf("%w: %w", ErrInput, err)
		}
	}

	var err error
	if d.vertices, d.indices, err = LoadPoints(d.job.VerticesPath, true); err != nil {
		return err
	}
	if d.controlLeft, _, err = LoadPoints(d.job.ControlLeftPath, false); err != nil {
		return err
	}
	if d.controlRight, _, err = LoadPoints(d.job.ControlRightPath, false); err != nil {
		return err
	}

	k := d.controlLeft.Len()
	if d.controlRight.Len() != k {
		return fmt.Errorf("%w: %d left control points but %d right", ErrCardinality, k, d.controlRight.Len())
	}
	if k < HomogeneousDim {
		return fmt.Errorf("%w: need at least %d control points, got %d", ErrInput, HomogeneousDim, k)
	}

	slog.Info("Loaded warp inputs", "job", d.job.ID, "vertices", d.vertices.Len(), "control_points", k)
	return nil
}

func (d *Driver) fit() error {
	ft, err := Fit(d.controlLeft, d.controlRight, d.job.Regularization)
	if err != nil {
		return err
	}
	d.fitted = ft
	return nil
}

func (d *Driver) transform() error {
	out, err := d.fitted.Apply(d.vertices)
	if err != nil {
		return err
	}
	dist, err := Displacements(d.vertices, out)
	if err != nil {
		return err
	}
	d.results = Results(d.indices, out, dist)
	return nil
}

func (d *Driver) write() error {
	return SaveResults(d.job.OutputPath, d.results, WriteOptions{
		Precision: d.job.Precision,
		Overwrite: d.job.Overwrite,
	})
}
