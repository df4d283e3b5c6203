package scene

import (
	"strconv"

	"github.com/pkg/errors"

	"connsurfer/internal/models"
	"connsurfer/pkg/cifti"
)

// ErrInvalidRow is returned when a row resolves to neither a valid
// surface vertex nor a valid voxel coordinate.
var ErrInvalidRow = errors.New("row maps to neither vertex nor voxel")

// Activate returns a new document with the given connectivity row marked
// active. The input document is never modified, so concurrent frame
// workers can each activate their own copy of the same base document.
//
// Surface rows set the active row, active vertex, and first surface node
// index. Volume rows set the active row, the voxel IJK, the affine
// transformed physical and stereotaxic XYZ, and the three orthogonal
// slice coordinates (axial = z, coronal = y, parasagittal = x).
func Activate(doc *Document, index *cifti.Index, row int) (*Document, error) {
	vertex, err := index.VertexOf(row)
	if err != nil {
		return nil, err
	}
	vox, err := index.VoxelOf(row)
	if err != nil {
		return nil, err
	}

	out := doc.Clone()
	switch {
	case vertex >= 0:
		activateSurface(out, row, vertex)
	case !vox.Invalid():
		activateVolume(out, index, row, vox)
	default:
		return nil, errors.Wrapf(ErrInvalidRow, "row %d", row)
	}
	return out, nil
}

func activateSurface(doc *Document, row, vertex int) {
	setObjectText(doc, "m_rowIndex", strconv.Itoa(row))
	setObjectText(doc, "m_surfaceVertexIndex", strconv.Itoa(vertex))
	for _, arr := range doc.Root.FindAll("ObjectArray", map[string]string{"Name": "m_surfaceNodeIndices"}) {
		setIndexedElement(arr, 0, strconv.Itoa(vertex))
	}
}

func activateVolume(doc *Document, index *cifti.Index, row int, vox models.Voxel) {
	coords := index.Physical(vox)
	ijk := [3]string{strconv.Itoa(vox[0]), strconv.Itoa(vox[1]), strconv.Itoa(vox[2])}
	xyz := [3]string{formatFloat(coords[0]), formatFloat(coords[1]), formatFloat(coords[2])}

	setObjectText(doc, "m_rowIndex", strconv.Itoa(row))
	for _, arr := range doc.Root.FindAll("ObjectArray", map[string]string{"Name": "m_voxelIJK"}) {
		setTupleElements(arr, ijk)
	}
	for _, name := range []string{"m_volumeXYZ", "m_stereotaxicXYZ"} {
		for _, arr := range doc.Root.FindAll("ObjectArray", map[string]string{"Name": name}) {
			setTupleElements(arr, xyz)
		}
	}
	setObjectText(doc, "m_sliceCoordinateAxial", xyz[2])
	setObjectText(doc, "m_sliceCoordinateCoronal", xyz[1])
	setObjectText(doc, "m_sliceCoordinateParasagittal", xyz[0])
}

// setObjectText rewrites every Object element with the given Name across
// the whole document, matching the renderer's duplication of active-row
// state between display tabs.
func setObjectText(doc *Document, name, value string) {
	for _, el := range doc.Root.FindAll("Object", map[string]string{"Name": name}) {
		el.SetText(value)
	}
}

func setTupleElements(arr *Node, values [3]string) {
	for i, v := range values {
		setIndexedElement(arr, i, v)
	}
}

// setIndexedElement sets the text of the Element child with the given
// Index attribute, creating it when absent.
func setIndexedElement(arr *Node, index int, value string) {
	idx := strconv.Itoa(index)
	el := arr.Child("Element", map[string]string{"Index": idx})
	if el == nil {
		el = &Node{}
		el.XMLName.Local = "Element"
		el.Attrs = append(el.Attrs, attr("Index", idx))
		arr.Children = append(arr.Children, el)
	}
	el.SetText(value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
