package cifti

import (
	"github.com/pkg/errors"

	"connsurfer/internal/models"
)

// Surface structure names recognized as cortical hemispheres. Vertex ids
// are only meaningful within their owning hemisphere.
const (
	CortexLeft  = "CORTEX_LEFT"
	CortexRight = "CORTEX_RIGHT"
)

// Index answers structure-ownership and row translation queries over a
// coordinate table. It is immutable after construction and safe for
// concurrent use.
type Index struct {
	table *Table
}

// NewIndex validates the table's span partition and wraps it in an Index.
func NewIndex(t *Table) (*Index, error) {
	want := 0
	for _, s := range t.Spans {
		if s.Start != want || s.Stop <= s.Start {
			return nil, errors.Errorf("spans do not partition the row range: %s covers [%d,%d), expected start %d",
				s.Structure, s.Start, s.Stop, want)
		}
		want = s.Stop
	}
	if want != t.Len() {
		return nil, errors.Errorf("spans cover %d rows, table has %d", want, t.Len())
	}
	return &Index{table: t}, nil
}

// Len returns the total row count.
func (ix *Index) Len() int {
	return ix.table.Len()
}

// Table returns the underlying coordinate table.
func (ix *Index) Table() *Table {
	return ix.table
}

// StructureOf returns the name of the structure owning the given row,
// scanning spans in table order. Returns ErrOutOfRange for rows outside
// [0, Len).
func (ix *Index) StructureOf(row int) (string, error) {
	for _, s := range ix.table.Spans {
		if s.Contains(row) {
			return s.Structure, nil
		}
	}
	return "", errors.Wrapf(ErrOutOfRange, "row %d, max row is %d", row, ix.table.Len()-1)
}

// SpanOf returns the half-open row range owned by the named structure.
func (ix *Index) SpanOf(structure string) (Span, error) {
	for _, s := range ix.table.Spans {
		if s.Structure == structure {
			return s, nil
		}
	}
	return Span{}, errors.Wrapf(ErrUnknownStructure, "%s", structure)
}

// RowOf finds the row within the named surface structure whose vertex id
// equals vertexID. The scan is restricted to the structure's own span
// since vertex ids repeat across hemispheres.
func (ix *Index) RowOf(structure string, vertexID int) (int, error) {
	span, err := ix.SpanOf(structure)
	if err != nil {
		return 0, err
	}
	for row := span.Start; row < span.Stop; row++ {
		if ix.table.Vertex[row] == vertexID {
			return row, nil
		}
	}
	return 0, errors.Wrapf(ErrVertexNotFound, "vertex %d in %s", vertexID, structure)
}

// RowOfVoxel finds the row within the named structure whose voxel
// coordinate exactly equals v. The second return is false when the voxel
// has no corresponding table row.
func (ix *Index) RowOfVoxel(structure string, v models.Voxel) (int, bool) {
	span, err := ix.SpanOf(structure)
	if err != nil {
		return 0, false
	}
	for row := span.Start; row < span.Stop; row++ {
		if ix.table.Voxel[row] == v {
			return row, true
		}
	}
	return 0, false
}

// IsSurface reports whether the row carries a valid surface vertex id.
// Out-of-range rows report false.
func (ix *Index) IsSurface(row int) bool {
	return row >= 0 && row < ix.table.Len() && ix.table.Vertex[row] >= 0
}

// VertexOf returns the surface vertex id for the given row.
func (ix *Index) VertexOf(row int) (int, error) {
	if row < 0 || row >= ix.table.Len() {
		return 0, errors.Wrapf(ErrOutOfRange, "row %d", row)
	}
	return ix.table.Vertex[row], nil
}

// VoxelOf returns the voxel grid coordinate for the given row.
func (ix *Index) VoxelOf(row int) (models.Voxel, error) {
	if row < 0 || row >= ix.table.Len() {
		return models.Voxel{}, errors.Wrapf(ErrOutOfRange, "row %d", row)
	}
	return ix.table.Voxel[row], nil
}

// Physical applies the table's affine transform to a voxel coordinate,
// producing the physical (x, y, z) position in millimeters.
func (ix *Index) Physical(v models.Voxel) models.Vec3 {
	a := ix.table.Affine
	var out models.Vec3
	for i := 0; i < 3; i++ {
		out[i] = a.At(i, 0)*float64(v[0]) + a.At(i, 1)*float64(v[1]) + a.At(i, 2)*float64(v[2]) + a.At(i, 3)
	}
	return out
}
