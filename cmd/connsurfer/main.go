package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"connsurfer/internal/models"
	"connsurfer/pkg/cifti"
	"connsurfer/pkg/config"
	"connsurfer/pkg/geodesic"
	"connsurfer/pkg/movie"
	"connsurfer/pkg/scene"
)

const version = "2.0.0"

func main() {
	root, _ := newRootCmd()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cliOptions carries the flag values of one invocation.
type cliOptions struct {
	scenePath  string
	sceneName  string
	output     string
	configPath string

	closed     bool
	reverse    bool
	vertexMode bool
	borderFile bool

	printRows     bool
	printVertices bool

	loops     int
	width     int
	height    int
	framerate int
	numCPUs   int
}

func newRootCmd() (*cobra.Command, *cliOptions) {
	opts := &cliOptions{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "connsurfer [flags] INDEX...",
		Short: "Generate a flythrough movie over a brain connectivity map",
		Long: `connsurfer turns an ordered list of connectivity-matrix row indices into a
flythrough movie: waypoints are stitched into a continuous path (exact
geodesics on cortical surfaces, discrete voxel lines in volumes), one frame
is rendered per path entry, and the frames are assembled into a video.

With --vertex-mode, the first positional argument names the surface
structure and the remaining arguments are vertex indices on it. With
--border-file, the single positional argument is a border file whose vertex
sequence supplies the waypoints.`,
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.Flags(), args)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.scenePath, "scene-path", "s", "", "The scene file to use.")
	flags.StringVarP(&opts.sceneName, "scene-name", "n", "", "The name of the scene in the scene file.")
	flags.StringVarP(&opts.output, "output", "o", "", "The output movie file path.")
	flags.StringVar(&opts.configPath, "config", "", "Optional YAML config file with defaults.")
	flags.BoolVar(&opts.closed, "closed", false,
		"Generate a closed loop by appending the first path entry to the end.")
	flags.BoolVar(&opts.reverse, "reverse", false,
		"Append the reverse of the path so the movie returns to its start.")
	flags.BoolVar(&opts.vertexMode, "vertex-mode", false,
		"Treat positional arguments as STRUCTURE VERTEX... instead of row indices.")
	flags.BoolVar(&opts.borderFile, "border-file", false,
		"Treat the single positional argument as a border file supplying the waypoints.")
	flags.BoolVar(&opts.printRows, "print-rows", false,
		"Print the stitched row indices and exit without rendering.")
	flags.BoolVar(&opts.printVertices, "print-vertices", false,
		"Print the stitched vertex indices and exit without rendering.")
	flags.IntVar(&opts.loops, "loops", defaults.Loops, "How many times to loop the movie.")
	flags.IntVar(&opts.width, "width", defaults.Width, "The width of the output movie.")
	flags.IntVar(&opts.height, "height", defaults.Height, "The height of the output movie.")
	flags.IntVar(&opts.framerate, "framerate", defaults.Framerate, "The framerate of the output movie.")
	flags.IntVar(&opts.numCPUs, "num-cpus", defaults.NumCPUs, "The number of CPUs to use for rendering.")

	_ = root.MarkFlagRequired("scene-path")
	_ = root.MarkFlagRequired("scene-name")
	return root, opts
}

func run(ctx context.Context, opts *cliOptions, flags *pflag.FlagSet, args []string) error {
	if opts.closed && opts.reverse {
		return errors.New("--closed and --reverse are mutually exclusive")
	}
	printMode := opts.printRows || opts.printVertices
	if !printMode && opts.output == "" {
		return errors.New("--output is required unless a print mode is set")
	}

	cfg, err := loadConfig(opts, flags)
	if err != nil {
		return err
	}
	if !printMode {
		if err := cfg.ResolveBinaries(); err != nil {
			return err
		}
	}

	doc, err := scene.Load(opts.scenePath, opts.sceneName)
	if err != nil {
		return err
	}
	connPath, err := doc.ConnectivityPath()
	if err != nil {
		return err
	}
	table, err := cifti.LoadFor(connPath)
	if err != nil {
		return err
	}
	index, err := cifti.NewIndex(table)
	if err != nil {
		return err
	}

	waypoints, err := resolveWaypoints(opts, args, index)
	if err != nil {
		return err
	}

	stitcher := geodesic.NewStitcher(index, func(structure string) (*geodesic.Mesh, error) {
		path, err := doc.SurfacePath(structure)
		if err != nil {
			return nil, err
		}
		return geodesic.LoadMesh(path)
	}, nil)

	pipeline, err := movie.New(doc, index, stitcher, cfg.Renderer, cfg.Encoder, movie.Options{
		Output:    opts.output,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Framerate: cfg.Framerate,
		Loops:     cfg.Loops,
		Closed:    opts.closed,
		Reverse:   opts.reverse,
		Workers:   cfg.NumCPUs,
	})
	if err != nil {
		return err
	}

	if printMode {
		return printPath(pipeline, index, waypoints, opts.printVertices)
	}
	if err := pipeline.Run(ctx, waypoints); err != nil {
		return errors.Wrapf(err, "pipeline failed in stage %s", pipeline.Stage())
	}
	fmt.Printf("Movie saved to: %s\n", opts.output)
	return nil
}

// loadConfig merges the optional config file with the invocation flags.
// A flag only overrides the file when it was set explicitly, so config
// file values survive unset flags and flags win when both are given.
func loadConfig(opts *cliOptions, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if flags.Changed("width") {
		cfg.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.Height = opts.height
	}
	if flags.Changed("framerate") {
		cfg.Framerate = opts.framerate
	}
	if flags.Changed("loops") {
		cfg.Loops = opts.loops
	}
	if flags.Changed("num-cpus") {
		cfg.NumCPUs = opts.numCPUs
	}
	return cfg, nil
}

// resolveWaypoints turns the positional arguments into row indices
// according to the input mode.
func resolveWaypoints(opts *cliOptions, args []string, index *cifti.Index) (models.RowPath, error) {
	switch {
	case opts.borderFile:
		if len(args) != 1 {
			return nil, errors.New("--border-file takes exactly one positional argument")
		}
		border, err := scene.LoadBorder(args[0])
		if err != nil {
			return nil, err
		}
		rows := make(models.RowPath, 0, len(border.Vertices))
		for _, v := range border.Vertices {
			row, err := index.RowOf(border.Structure, v)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil

	case opts.vertexMode:
		if len(args) < 3 {
			return nil, errors.New("--vertex-mode needs a structure name and at least 2 vertex indices")
		}
		structure := args[0]
		rows := make(models.RowPath, 0, len(args)-1)
		for _, arg := range args[1:] {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return nil, errors.Wrapf(err, "bad vertex index %q", arg)
			}
			row, err := index.RowOf(structure, v)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil

	default:
		if len(args) < 2 {
			return nil, errors.New("at least 2 row indices are required")
		}
		rows := make(models.RowPath, 0, len(args))
		for _, arg := range args {
			row, err := strconv.Atoi(arg)
			if err != nil {
				return nil, errors.Wrapf(err, "bad row index %q", arg)
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
}

// printPath stitches the waypoints and writes the dense path to stdout,
// one entry per line, without rendering anything.
func printPath(pipeline *movie.Pipeline, index *cifti.Index, waypoints models.RowPath, vertices bool) error {
	dense, err := pipeline.DensePath(waypoints)
	if err != nil {
		return err
	}
	for _, row := range dense {
		if vertices {
			v, err := index.VertexOf(row)
			if err != nil {
				return err
			}
			if v < 0 {
				return errors.Errorf("row %d is not a surface row; --print-vertices needs a surface path", row)
			}
			fmt.Println(v)
			continue
		}
		fmt.Println(row)
	}
	return nil
}
