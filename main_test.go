package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
	err    error
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunWarp() error               { m.called["RunWarp"] = true; return m.err }
func (m *mockApp) RunFit() error                { m.called["RunFit"] = true; return m.err }
func (m *mockApp) RunApply() error              { m.called["RunApply"] = true; return m.err }
func (m *mockApp) RunBatch() error              { m.called["RunBatch"] = true; return m.err }
func (m *mockApp) RunPCA() error                { m.called["RunPCA"] = true; return m.err }

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name: "Warp",
			args: []string{"warp",
				"--in-vertices", "v.txt",
				"--in-control-left", "l.txt",
				"--in-control-right", "r.txt",
				"--out-vertices", "o.txt",
			},
			expectedCalled: "RunWarp",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.VerticesPath != "v.txt" || opts.ControlLeftPath != "l.txt" ||
					opts.ControlRightPath != "r.txt" || opts.OutputPath != "o.txt" {
					t.Errorf("unexpected paths: %+v", opts)
				}
				if opts.Regularization != nil {
					t.Errorf("expected Regularization unset, got %v", *opts.Regularization)
				}
				if opts.Precision != nil {
					t.Errorf("expected Precision unset, got %v", *opts.Precision)
				}
				if opts.Overwrite {
					t.Error("expected Overwrite false")
				}
				if opts.LogLevel != "warn" {
					t.Errorf("expected default LogLevel warn, got %s", opts.LogLevel)
				}
			},
		},
		{
			name: "WarpOverrides",
			args: []string{"warp",
				"--in-vertices", "v.txt",
				"--in-control-left", "l.txt",
				"--in-control-right", "r.txt",
				"--out-vertices", "o.txt",
				"--lambda", "0",
				"--precision", "9",
				"--overwrite",
				"--config", "jobs.yaml",
			},
			expectedCalled: "RunWarp",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.Regularization == nil || *opts.Regularization != 0 {
					t.Errorf("expected Regularization 0, got %v", opts.Regularization)
				}
				if opts.Precision == nil || *opts.Precision != 9 {
					t.Errorf("expected Precision 9, got %v", opts.Precision)
				}
				if !opts.Overwrite {
					t.Error("expected Overwrite true")
				}
				if opts.ConfigFile != "jobs.yaml" {
					t.Errorf("expected ConfigFile jobs.yaml, got %s", opts.ConfigFile)
				}
			},
		},
		{
			name:           "Fit",
			args:           []string{"fit", "--in-control-left", "l.txt", "--in-control-right", "r.txt", "--out-fit", "fit.json", "--lambda", "2.5"},
			expectedCalled: "RunFit",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.FitPath != "fit.json" {
					t.Errorf("expected FitPath fit.json, got %s", opts.FitPath)
				}
				if opts.Regularization == nil || *opts.Regularization != 2.5 {
					t.Errorf("expected Regularization 2.5, got %v", opts.Regularization)
				}
			},
		},
		{
			name:           "Apply",
			args:           []string{"apply", "--fit", "fit.json", "--in-vertices", "v.txt", "--out-vertices", "o.txt"},
			expectedCalled: "RunApply",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.FitPath != "fit.json" || opts.VerticesPath != "v.txt" || opts.OutputPath != "o.txt" {
					t.Errorf("unexpected options: %+v", opts)
				}
			},
		},
		{
			name:           "Batch",
			args:           []string{"batch", "--config", "jobs.yaml", "--workers", "3", "--log-level", "debug"},
			expectedCalled: "RunBatch",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.Workers == nil || *opts.Workers != 3 {
					t.Errorf("expected Workers 3, got %v", opts.Workers)
				}
				if opts.LogLevel != "debug" {
					t.Errorf("expected LogLevel debug, got %s", opts.LogLevel)
				}
			},
		},
		{
			name:           "PCA",
			args:           []string{"pca", "--in-vertices", "v.txt", "--out", "axes.txt"},
			expectedCalled: "RunPCA",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.OutputPath != "axes.txt" {
					t.Errorf("expected OutputPath axes.txt, got %s", opts.OutputPath)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			err := run(tt.args, &out, app)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called", tt.expectedCalled)
			}

			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_MissingRequiredFlag(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{"warp", "--in-vertices", "v.txt"}, &out, app)
	if err == nil {
		t.Fatal("expected error for missing flags, got nil")
	}
	if !strings.Contains(err.Error(), "out-vertices") {
		t.Errorf("expected error to name out-vertices, got: %v", err)
	}
	if len(app.called) != 0 {
		t.Errorf("no command should run, got %v", app.called)
	}
}

func TestRun_PropagatesRunnerError(t *testing.T) {
	app := newMockApp()
	app.err = errors.New("warp failed at FITTED: numerical error")
	var out bytes.Buffer
	err := run([]string{"pca", "--in-vertices", "v.txt", "--out", "a.txt"}, &out, app)
	if !errors.Is(err, app.err) {
		t.Errorf("expected runner error, got %v", err)
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{"batch", "--config", "c.yaml", "--log-level", "loud"}, &out, app)
	if err == nil || !strings.Contains(err.Error(), "unknown log level") {
		t.Errorf("expected log level error, got %v", err)
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run([]string{"--help"}, &out, app); err != nil {
		t.Fatalf("run --help failed: %v", err)
	}
	for _, cmd := range []string{"warp", "fit", "apply", "batch", "pca", "version"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("expected help to list %s, got: %s", cmd, out.String())
		}
	}
}

func TestRun_Version(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run([]string{"version"}, &out, app); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expected := "meshwarp version " + Version
	if !strings.Contains(out.String(), expected) {
		t.Errorf("expected output to contain version, got: %s", out.String())
	}
}

func TestMain_Execute(t *testing.T) {
	// Smoke test to ensure version is set
	if Version == "" {
		t.Error("expected Version to be set")
	}
}
