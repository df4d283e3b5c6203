// Package cifti provides the location-index model for a connectivity
// matrix: the coordinate table mapping matrix rows to surface vertices or
// volume voxels, the partition of rows into named anatomical structures,
// and the voxel-to-physical affine transform.
package cifti

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"connsurfer/internal/models"
)

// Sentinel errors for row and structure lookups.
var (
	ErrOutOfRange       = errors.New("row index out of range")
	ErrUnknownStructure = errors.New("unknown structure")
	ErrVertexNotFound   = errors.New("vertex not found in structure")
)

// Span maps a named anatomical structure to a contiguous half-open row
// range [Start, Stop). Spans partition the full row range: no gaps, no
// overlaps, every row owned by exactly one structure.
type Span struct {
	Structure string
	Start     int
	Stop      int
}

// Contains reports whether the span owns the given row.
func (s Span) Contains(row int) bool {
	return s.Start <= row && row < s.Stop
}

// Table holds the per-row coordinate data of a connectivity matrix.
// For every row exactly one of Vertex[row] (a non-negative surface vertex
// id) or Voxel[row] (a valid grid coordinate) is set; the other carries
// the -1 sentinel.
type Table struct {
	// Vertex maps each row to a surface vertex id, or -1 for volume rows.
	Vertex []int

	// Voxel maps each row to a voxel grid coordinate, or (-1,-1,-1) for
	// surface rows.
	Voxel []models.Voxel

	// Spans lists the structure ranges in row order.
	Spans []Span

	// Affine is the 4x4 voxel-to-physical-space transform.
	Affine *mat.Dense
}

// Len returns the total number of rows in the table.
func (t *Table) Len() int {
	return len(t.Vertex)
}

// Load reads a coordinate table from its columnar sidecar file. The format
// is line oriented: an optional "# affine" header carrying sixteen
// row-major matrix entries, comment lines starting with '#', and one data
// line per row of the form
//
//	STRUCTURE VERTEX I J K
//
// where surface rows carry a vertex id with I=J=K=-1 and volume rows carry
// a voxel coordinate with VERTEX=-1. Structure spans are derived from
// contiguous runs of the structure column.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open coordinate table")
	}
	defer f.Close()

	table := &Table{Affine: identityAffine()}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Fields(strings.TrimPrefix(line, "#"))
			if len(fields) > 0 && fields[0] == "affine" {
				affine, err := parseAffine(fields[1:])
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
				table.Affine = affine
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 5 {
			return nil, errors.Errorf("line %d: expected 5 columns, got %d", lineNo, len(fields))
		}
		nums := make([]int, 4)
		for i, field := range fields[1:] {
			n, err := strconv.Atoi(field)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: bad integer %q", lineNo, field)
			}
			nums[i] = n
		}
		if err := table.appendRow(fields[0], nums[0], models.Voxel{nums[1], nums[2], nums[3]}); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read coordinate table")
	}
	if table.Len() == 0 {
		return nil, errors.New("coordinate table is empty")
	}
	return table, nil
}

// LoadFor loads the coordinate table belonging to a connectivity matrix
// file, preferring the ".coords" sidecar next to it and falling back to
// the file itself.
func LoadFor(connPath string) (*Table, error) {
	sidecar := connPath + ".coords"
	if _, err := os.Stat(sidecar); err == nil {
		return Load(sidecar)
	}
	return Load(connPath)
}

// appendRow adds one row to the table, extending the current structure span
// or opening a new one. Structures must occupy a single contiguous run.
func (t *Table) appendRow(structure string, vertex int, vox models.Voxel) error {
	if (vertex >= 0) == !vox.Invalid() {
		return errors.Errorf("row must have exactly one of vertex or voxel set (vertex=%d voxel=%v)", vertex, vox)
	}
	row := t.Len()
	if n := len(t.Spans); n > 0 && t.Spans[n-1].Structure == structure {
		t.Spans[n-1].Stop = row + 1
	} else {
		for _, s := range t.Spans {
			if s.Structure == structure {
				return errors.Errorf("structure %s appears in two separate runs", structure)
			}
		}
		t.Spans = append(t.Spans, Span{Structure: structure, Start: row, Stop: row + 1})
	}
	t.Vertex = append(t.Vertex, vertex)
	t.Voxel = append(t.Voxel, vox)
	return nil
}

func parseAffine(fields []string) (*mat.Dense, error) {
	if len(fields) != 16 {
		return nil, errors.Errorf("affine header needs 16 entries, got %d", len(fields))
	}
	data := make([]float64, 16)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad affine entry %q", f)
		}
		data[i] = v
	}
	return mat.NewDense(4, 4, data), nil
}

func identityAffine() *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		a.Set(i, i, 1)
	}
	return a
}
