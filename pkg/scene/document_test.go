package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sceneXML = `<?xml version="1.0" encoding="UTF-8"?>
<SceneFile Version="3">
    <Scene Index="0" Type="SCENE_TYPE_FULL">
        <Name>overview</Name>
        <Object Type="pathName" Name="dataFileName_V2">data/other.dconn.nii</Object>
    </Scene>
    <Scene Index="1" Type="SCENE_TYPE_FULL">
        <Name>connectivity</Name>
        <Object Type="pathName" Name="dataFileName_V2">data/conn.dconn.nii</Object>
        <Object Type="pathName" Name="fileName">data/labels.txt</Object>
        <Object Type="class" Class="BrainStructure" Name="brainStructure1">
            <Object Type="enumeratedType" Name="m_structure">CORTEX_LEFT</Object>
            <Object Type="pathName" Name="primaryAnatomicalSurface">surfaces/left.surf.off</Object>
        </Object>
        <Object Type="class" Class="BrainStructure" Name="brainStructure2">
            <Object Type="enumeratedType" Name="m_structure">CORTEX_RIGHT</Object>
            <Object Type="pathName" Name="primaryAnatomicalSurface">surfaces/right.surf.off</Object>
        </Object>
        <Object Type="integer" Name="m_rowIndex">0</Object>
        <Object Type="integer" Name="m_surfaceVertexIndex">0</Object>
        <ObjectArray Name="m_surfaceNodeIndices" Length="1">
            <Element Index="0">0</Element>
        </ObjectArray>
        <ObjectArray Name="m_voxelIJK" Length="3">
            <Element Index="0">0</Element>
            <Element Index="1">0</Element>
            <Element Index="2">0</Element>
        </ObjectArray>
        <ObjectArray Name="m_volumeXYZ" Length="3">
            <Element Index="0">0</Element>
            <Element Index="1">0</Element>
            <Element Index="2">0</Element>
        </ObjectArray>
        <ObjectArray Name="m_stereotaxicXYZ" Length="3">
            <Element Index="0">0</Element>
            <Element Index="1">0</Element>
            <Element Index="2">0</Element>
        </ObjectArray>
        <Object Type="float" Name="m_sliceCoordinateAxial">0</Object>
        <Object Type="float" Name="m_sliceCoordinateCoronal">0</Object>
        <Object Type="float" Name="m_sliceCoordinateParasagittal">0</Object>
    </Scene>
</SceneFile>
`

func writeScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "flythrough.scene")
	require.NoError(t, os.WriteFile(path, []byte(sceneXML), 0644))
	return path
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeScene(t)
	doc, err := Load(path, "connectivity")
	require.NoError(t, err)

	conn, err := doc.ConnectivityPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(conn))
	assert.Equal(t, filepath.Join(doc.BaseDir, "data", "conn.dconn.nii"), conn)
}

func TestLoadUnknownSceneName(t *testing.T) {
	path := writeScene(t)
	_, err := Load(path, "no-such-scene")
	require.Error(t, err)
	// the message names the offending scene file
	assert.Contains(t, err.Error(), filepath.Base(path))
}

func TestLoadScopesPathsToNamedScene(t *testing.T) {
	path := writeScene(t)
	doc, err := Load(path, "connectivity")
	require.NoError(t, err)

	files := doc.Files(".dconn.nii")
	require.Len(t, files, 1, "the other scene's connectivity file must not leak in")
	assert.Contains(t, files[0], "conn.dconn.nii")
}

func TestSurfacePath(t *testing.T) {
	path := writeScene(t)
	doc, err := Load(path, "connectivity")
	require.NoError(t, err)

	left, err := doc.SurfacePath("CORTEX_LEFT")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(doc.BaseDir, "surfaces", "left.surf.off"), left)

	right, err := doc.SurfacePath("CORTEX_RIGHT")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(doc.BaseDir, "surfaces", "right.surf.off"), right)

	_, err = doc.SurfacePath("CEREBELLUM")
	require.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	path := writeScene(t)
	doc, err := Load(path, "connectivity")
	require.NoError(t, err)

	clone := doc.Clone()
	el := clone.Root.Find("Object", map[string]string{"Name": "m_rowIndex"})
	require.NotNil(t, el)
	el.SetText("42")

	orig := doc.Root.Find("Object", map[string]string{"Name": "m_rowIndex"})
	require.NotNil(t, orig)
	assert.Equal(t, "0", orig.Text())
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeScene(t)
	doc, err := Load(path, "connectivity")
	require.NoError(t, err)

	saved := filepath.Join(t.TempDir(), "copy.scene")
	require.NoError(t, doc.Save(saved))

	reloaded, err := Load(saved, "connectivity")
	require.NoError(t, err)
	conn, err := reloaded.ConnectivityPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(conn))
	_, err = reloaded.SurfacePath("CORTEX_LEFT")
	require.NoError(t, err)
}

func TestConnectivityPathPrefersTimeseries(t *testing.T) {
	content := `<SceneFile Version="3">
    <Scene Type="SCENE_TYPE_FULL">
        <Name>s</Name>
        <Object Type="pathName" Name="dataFileName_V2">a.dconn.nii</Object>
        <Object Type="pathName" Name="fileName">b.dtseries.nii</Object>
    </Scene>
</SceneFile>`
	path := filepath.Join(t.TempDir(), "s.scene")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	doc, err := Load(path, "s")
	require.NoError(t, err)

	conn, err := doc.ConnectivityPath()
	require.NoError(t, err)
	assert.Contains(t, conn, "b.dtseries.nii")
}
