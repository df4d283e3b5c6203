// Package movie drives flythrough movie production: it applies path
// modifiers to a dense row path, renders one frame per row through the
// external scene renderer on a bounded worker pool, duplicates frames for
// additional loops, and hands the numbered frame sequence to the external
// video encoder.
package movie

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"connsurfer/internal/models"
	"connsurfer/pkg/cifti"
	"connsurfer/pkg/geodesic"
	"connsurfer/pkg/scene"
)

// External process failures. Any failing frame or encode aborts the whole
// pipeline; no partial movie is produced.
var (
	ErrRenderer = errors.New("renderer failed")
	ErrEncoder  = errors.New("encoder failed")
)

// Stage identifies the pipeline's position in its state machine.
type Stage string

const (
	StageStitching Stage = "stitching"
	StageModifying Stage = "modifying"
	StageRendering Stage = "rendering"
	StageLooping   Stage = "looping"
	StageEncoding  Stage = "encoding"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// Options configures one pipeline invocation.
type Options struct {
	// Output is the final movie path. It is only written on success.
	Output string

	// Width and Height are the rendered frame dimensions in pixels.
	Width  int
	Height int

	// Framerate is the movie frame rate in frames per second.
	Framerate int

	// Loops repeats the rendered cycle this many times in the movie.
	Loops int

	// Closed appends the path's first row to its end. Reverse appends the
	// reverse of the full path instead. The two are mutually exclusive.
	Closed  bool
	Reverse bool

	// Workers bounds the number of concurrent renderer invocations.
	Workers int
}

// Pipeline renders a flythrough movie from waypoint rows. Construct with
// New and drive with Run; a pipeline value handles one invocation.
type Pipeline struct {
	doc      *scene.Document
	index    *cifti.Index
	stitcher *geodesic.Stitcher
	opts     Options

	// external binaries, resolved once by the caller
	rendererBin string
	encoderBin  string

	stage Stage
}

// New validates the options and builds a pipeline.
func New(doc *scene.Document, index *cifti.Index, stitcher *geodesic.Stitcher,
	rendererBin, encoderBin string, opts Options) (*Pipeline, error) {
	if opts.Closed && opts.Reverse {
		return nil, errors.New("closed and reverse modifiers are mutually exclusive")
	}
	if opts.Loops < 1 {
		return nil, errors.New("loops must be at least 1")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		doc:         doc,
		index:       index,
		stitcher:    stitcher,
		opts:        opts,
		rendererBin: rendererBin,
		encoderBin:  encoderBin,
		stage:       StageStitching,
	}, nil
}

// Stage reports the pipeline's current stage.
func (p *Pipeline) Stage() Stage {
	return p.stage
}

// ApplyModifiers extends a dense path per the closed/reverse flags: closed
// appends the first row, reverse appends the reversed full path. The input
// is not modified.
func ApplyModifiers(path models.RowPath, closed, reverse bool) models.RowPath {
	out := path.Clone()
	switch {
	case closed && len(path) > 0:
		out = append(out, path[0])
	case reverse:
		out = append(out, path.Reversed()...)
	}
	return out
}

// DensePath stitches the waypoints into the dense row path without
// rendering anything. Print modes stop here.
func (p *Pipeline) DensePath(waypoints models.RowPath) (models.RowPath, error) {
	dense, err := p.stitcher.Stitch(waypoints)
	if err != nil {
		p.stage = StageFailed
		return nil, errors.Wrap(err, "stitching")
	}
	return dense, nil
}

// Run executes the full pipeline: stitch, modify, render, loop, encode.
func (p *Pipeline) Run(ctx context.Context, waypoints models.RowPath) error {
	if err := p.run(ctx, waypoints); err != nil {
		p.stage = StageFailed
		return err
	}
	p.stage = StageDone
	return nil
}

func (p *Pipeline) run(ctx context.Context, waypoints models.RowPath) error {
	p.stage = StageStitching
	dense, err := p.DensePath(waypoints)
	if err != nil {
		return err
	}
	log.Printf("stitched %d waypoints into %d rows", len(waypoints), len(dense))

	p.stage = StageModifying
	path := ApplyModifiers(dense, p.opts.Closed, p.opts.Reverse)

	workDir, err := os.MkdirTemp("", "connsurfer-")
	if err != nil {
		return errors.Wrap(err, "failed to create working directory")
	}
	defer os.RemoveAll(workDir)
	scenesDir := filepath.Join(workDir, "scenes")
	framesDir := filepath.Join(workDir, "frames")
	for _, dir := range []string{scenesDir, framesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create working directory")
		}
	}

	p.stage = StageRendering
	log.Printf("rendering %d frames on %d workers", len(path), p.opts.Workers)
	if err := p.renderFrames(ctx, path, scenesDir, framesDir); err != nil {
		return errors.Wrap(err, "rendering")
	}

	p.stage = StageLooping
	if err := duplicateLoops(framesDir, len(path), p.opts.Loops); err != nil {
		return errors.Wrap(err, "looping")
	}

	p.stage = StageEncoding
	log.Printf("encoding %d frames to %s", len(path)*p.opts.Loops, p.opts.Output)
	if err := p.encode(ctx, framesDir); err != nil {
		return errors.Wrap(err, "encoding")
	}
	return nil
}

// renderFrames produces one frame image per path entry. Frame numbers are
// assigned by path position before dispatch, so the movie's frame order is
// deterministic regardless of worker completion order. The first failing
// frame cancels all in-flight siblings.
func (p *Pipeline) renderFrames(ctx context.Context, path models.RowPath, scenesDir, framesDir string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, row := range path {
		i, row := i, row
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return p.renderFrame(ctx, i, row, scenesDir, framesDir)
		})
	}
	return g.Wait()
}

// renderFrame activates one row on a private copy of the scene document,
// persists it, and invokes the renderer. Each frame owns uniquely named
// scene and image files, so workers share no mutable state.
func (p *Pipeline) renderFrame(ctx context.Context, frame, row int, scenesDir, framesDir string) error {
	doc, err := scene.Activate(p.doc, p.index, row)
	if err != nil {
		return errors.Wrapf(err, "frame %d (row %d)", frame, row)
	}
	scenePath := filepath.Join(scenesDir, frameName(frame, "scene"))
	if err := doc.Save(scenePath); err != nil {
		return errors.Wrapf(err, "frame %d (row %d)", frame, row)
	}
	imagePath := filepath.Join(framesDir, frameName(frame, "png"))

	cmd := exec.CommandContext(ctx, p.rendererBin,
		"-scene-capture-image", scenePath, p.doc.Name, imagePath,
		"-size-width-height", strconv.Itoa(p.opts.Width), strconv.Itoa(p.opts.Height))
	cmd.Env = append(os.Environ(), "OMP_NUM_THREADS=1")
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(ErrRenderer, "frame %d (row %d): %v: %s", frame, row, err, out)
	}
	return nil
}

// duplicateLoops copies the first cycle's frame files to shifted frame
// numbers so the final sequence holds loops contiguous cycles, avoiding
// re-rendering identical content.
func duplicateLoops(framesDir string, cycle, loops int) error {
	offset := 0
	for loop := 1; loop < loops; loop++ {
		offset += cycle
		for i := 0; i < cycle; i++ {
			src := filepath.Join(framesDir, frameName(i, "png"))
			dst := filepath.Join(framesDir, frameName(offset+i, "png"))
			if err := copyFile(src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// encode runs the video encoder over the numbered frame sequence. The
// movie is assembled next to the final output and only moved into place
// on success, so a failed encode leaves nothing behind.
func (p *Pipeline) encode(ctx context.Context, framesDir string) error {
	outDir := filepath.Dir(p.opts.Output)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	partial := filepath.Join(outDir, "."+filepath.Base(p.opts.Output))
	defer os.Remove(partial)

	framerate := strconv.Itoa(p.opts.Framerate)
	cmd := exec.CommandContext(ctx, p.encoderBin,
		"-hide_banner", "-y",
		"-r", framerate,
		"-start_number", "0",
		"-i", filepath.Join(framesDir, "frame%09d.png"),
		"-c:v", "libx264",
		"-r", framerate,
		"-pix_fmt", "yuv420p",
		partial)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(ErrEncoder, "%v: %s", err, out)
	}
	return os.Rename(partial, p.opts.Output)
}

func frameName(i int, ext string) string {
	return fmt.Sprintf("frame%09d.%s", i, ext)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to copy frame")
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "failed to copy frame")
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, "failed to copy frame")
	}
	return out.Close()
}
