package scene

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"connsurfer/internal/models"
	"connsurfer/pkg/cifti"
)

// mutatorIndex builds a two-structure table: three left-hemisphere surface
// rows, then three volume rows, with a scale-and-shift affine.
func mutatorIndex(t *testing.T) *cifti.Index {
	t.Helper()
	table := &cifti.Table{
		Vertex: []int{10, 11, 12, -1, -1, -1},
		Voxel: []models.Voxel{
			{-1, -1, -1}, {-1, -1, -1}, {-1, -1, -1},
			{5, 6, 7}, {6, 6, 7}, {7, 6, 7},
		},
		Spans: []cifti.Span{
			{Structure: cifti.CortexLeft, Start: 0, Stop: 3},
			{Structure: "BRAIN_STEM", Start: 3, Stop: 6},
		},
		Affine: mat.NewDense(4, 4, []float64{
			2, 0, 0, -90,
			0, 2, 0, -126,
			0, 0, 2, -72,
			0, 0, 0, 1,
		}),
	}
	ix, err := cifti.NewIndex(table)
	require.NoError(t, err)
	return ix
}

func loadTestScene(t *testing.T) *Document {
	t.Helper()
	doc, err := Load(writeScene(t), "connectivity")
	require.NoError(t, err)
	return doc
}

func TestActivateSurfaceRow(t *testing.T) {
	doc := loadTestScene(t)
	ix := mutatorIndex(t)

	out, err := Activate(doc, ix, 1)
	require.NoError(t, err)

	assert.Equal(t, "1", out.Root.Find("Object", map[string]string{"Name": "m_rowIndex"}).Text())
	assert.Equal(t, "11", out.Root.Find("Object", map[string]string{"Name": "m_surfaceVertexIndex"}).Text())
	arr := out.Root.Find("ObjectArray", map[string]string{"Name": "m_surfaceNodeIndices"})
	require.NotNil(t, arr)
	assert.Equal(t, "11", arr.Child("Element", map[string]string{"Index": "0"}).Text())

	// the base document is untouched
	assert.Equal(t, "0", doc.Root.Find("Object", map[string]string{"Name": "m_rowIndex"}).Text())
}

func TestActivateVolumeRow(t *testing.T) {
	doc := loadTestScene(t)
	ix := mutatorIndex(t)

	out, err := Activate(doc, ix, 3)
	require.NoError(t, err)

	assert.Equal(t, "3", out.Root.Find("Object", map[string]string{"Name": "m_rowIndex"}).Text())

	ijk := out.Root.Find("ObjectArray", map[string]string{"Name": "m_voxelIJK"})
	require.NotNil(t, ijk)
	assert.Equal(t, "5", ijk.Child("Element", map[string]string{"Index": "0"}).Text())
	assert.Equal(t, "6", ijk.Child("Element", map[string]string{"Index": "1"}).Text())
	assert.Equal(t, "7", ijk.Child("Element", map[string]string{"Index": "2"}).Text())

	// physical = affine * (5,6,7) = (-80, -114, -58)
	for _, name := range []string{"m_volumeXYZ", "m_stereotaxicXYZ"} {
		arr := out.Root.Find("ObjectArray", map[string]string{"Name": name})
		require.NotNil(t, arr, name)
		assert.Equal(t, "-80", arr.Child("Element", map[string]string{"Index": "0"}).Text())
		assert.Equal(t, "-114", arr.Child("Element", map[string]string{"Index": "1"}).Text())
		assert.Equal(t, "-58", arr.Child("Element", map[string]string{"Index": "2"}).Text())
	}

	assert.Equal(t, "-58", out.Root.Find("Object", map[string]string{"Name": "m_sliceCoordinateAxial"}).Text())
	assert.Equal(t, "-114", out.Root.Find("Object", map[string]string{"Name": "m_sliceCoordinateCoronal"}).Text())
	assert.Equal(t, "-80", out.Root.Find("Object", map[string]string{"Name": "m_sliceCoordinateParasagittal"}).Text())
}

func TestActivateOutOfRangeRow(t *testing.T) {
	doc := loadTestScene(t)
	ix := mutatorIndex(t)

	_, err := Activate(doc, ix, 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cifti.ErrOutOfRange))
}

func TestActivateInvalidRow(t *testing.T) {
	doc := loadTestScene(t)
	table := &cifti.Table{
		Vertex: []int{-1},
		Voxel:  []models.Voxel{{-1, -1, -1}},
		Spans:  []cifti.Span{{Structure: "BROKEN", Start: 0, Stop: 1}},
	}
	ix, err := cifti.NewIndex(table)
	require.NoError(t, err)

	_, err = Activate(doc, ix, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRow))
}
