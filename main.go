package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds every value the command line can set. Pointer fields are
// nil unless the flag was given, so config file values can show through.
type AppOptions struct {
	ConfigFile string
	LogLevel   string

	VerticesPath     string
	ControlLeftPath  string
	ControlRightPath string
	OutputPath       string
	FitPath          string

	Regularization *float64
	Precision      *int
	Overwrite      bool
	Workers        *int
}

// AppRunner is implemented by App; tests substitute a mock.
type AppRunner interface {
	ApplyOptions(opts AppOptions)
	RunWarp() error
	RunFit() error
	RunApply() error
	RunBatch() error
	RunPCA() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp(os.Stdout)); err != nil {
		fmt.Fprintf(os.Stderr, "meshwarp: %v\n", err)
		os.Exit(1)
	}
}

// run builds the command tree, parses args and dispatches to app.
func run(args []string, out io.Writer, app AppRunner) error {
	var opts AppOptions

	root := &cobra.Command{
		Use:   "meshwarp",
		Short: "Thin-plate-spline warping of 3D mesh vertices",
		Long: `meshwarp fits a thin-plate-spline transform between two sets of
corresponding 3D control points and applies it to mesh vertices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(cmd.ErrOrStderr(), opts.LogLevel)
		},
	}
	root.SetArgs(args)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	// dispatch copies explicitly set flag values into opts before calling fn.
	dispatch := func(fn func() error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("lambda") {
				v, _ := flags.GetFloat64("lambda")
				opts.Regularization = &v
			}
			if flags.Changed("precision") {
				v, _ := flags.GetInt("precision")
				opts.Precision = &v
			}
			if flags.Changed("workers") {
				v, _ := flags.GetInt("workers")
				opts.Workers = &v
			}
			app.ApplyOptions(opts)
			return fn()
		}
	}

	warpCmd := &cobra.Command{
		Use:   "warp",
		Short: "Fit control points and warp vertices in one step",
		Args:  cobra.NoArgs,
		RunE:  dispatch(app.RunWarp),
	}
	addVertexFlags(warpCmd, &opts)
	addControlFlags(warpCmd, &opts)
	addOutputFlags(warpCmd, &opts)
	warpCmd.Flags().Float64("lambda", 0, "Regularization λ (default from config, else 1.0)")
	markRequired(warpCmd, "in-vertices", "in-control-left", "in-control-right", "out-vertices")

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a transform and save it as JSON",
		Args:  cobra.NoArgs,
		RunE:  dispatch(app.RunFit),
	}
	addControlFlags(fitCmd, &opts)
	fitCmd.Flags().StringVar(&opts.FitPath, "out-fit", "", "Path of the JSON fit file to write")
	fitCmd.Flags().Float64("lambda", 0, "Regularization λ (default from config, else 1.0)")
	markRequired(fitCmd, "in-control-left", "in-control-right", "out-fit")

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Warp vertices with a previously saved fit",
		Args:  cobra.NoArgs,
		RunE:  dispatch(app.RunApply),
	}
	applyCmd.Flags().StringVar(&opts.FitPath, "fit", "", "JSON fit file written by the fit command")
	addVertexFlags(applyCmd, &opts)
	addOutputFlags(applyCmd, &opts)
	markRequired(applyCmd, "fit", "in-vertices", "out-vertices")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Run every job listed in the configuration file",
		Args:  cobra.NoArgs,
		RunE:  dispatch(app.RunBatch),
	}
	batchCmd.Flags().Int("workers", 0, "Concurrent jobs (default from config, 0 = number of CPUs)")

	pcaCmd := &cobra.Command{
		Use:   "pca",
		Short: "Write the principal-axis alignment matrix of a vertex file",
		Args:  cobra.NoArgs,
		RunE:  dispatch(app.RunPCA),
	}
	addVertexFlags(pcaCmd, &opts)
	pcaCmd.Flags().StringVar(&opts.OutputPath, "out", "", "Path of the 4x4 matrix file to write")
	pcaCmd.Flags().Int("precision", 0, "Decimal places in the output")
	pcaCmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Replace an existing output file")
	markRequired(pcaCmd, "in-vertices", "out")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meshwarp version %s\n", Version)
		},
	}

	root.AddCommand(warpCmd, fitCmd, applyCmd, batchCmd, pcaCmd, versionCmd)
	return root.Execute()
}

func addVertexFlags(cmd *cobra.Command, opts *AppOptions) {
	cmd.Flags().StringVar(&opts.VerticesPath, "in-vertices", "", "Vertices to warp, one 'index x y z' row per vertex")
}

func addControlFlags(cmd *cobra.Command, opts *AppOptions) {
	cmd.Flags().StringVar(&opts.ControlLeftPath, "in-control-left", "", "Control points on the source mesh, one 'x y z' row each")
	cmd.Flags().StringVar(&opts.ControlRightPath, "in-control-right", "", "Corresponding control points on the target mesh")
}

func addOutputFlags(cmd *cobra.Command, opts *AppOptions) {
	cmd.Flags().StringVar(&opts.OutputPath, "out-vertices", "", "Output file of 'index x y z distance' rows; must not exist unless --overwrite")
	cmd.Flags().Int("precision", 0, "Decimal places in the output (default from config, else 6)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Replace an existing output file")
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}

// setupLogger installs a JSON slog handler at the requested level. Logs go
// to stderr so they never mix with command output on out.
func setupLogger(w io.Writer, level string) error {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})
	slog.SetDefault(slog.New(handler))
	return nil
}
