package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const borderXML = `<?xml version="1.0" encoding="UTF-8"?>
<BorderFile Structure="CORTEX_LEFT" Version="1">
    <Class Name="test"></Class>
    <Border>
        <Vertices>
            100 101 102
            105 106 107
            110 111 112
        </Vertices>
    </Border>
</BorderFile>
`

func TestLoadBorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "path.border")
	require.NoError(t, os.WriteFile(path, []byte(borderXML), 0644))

	border, err := LoadBorder(path)
	require.NoError(t, err)
	assert.Equal(t, "CORTEX_LEFT", border.Structure)
	// only the first vertex of each face line is kept
	assert.Equal(t, []int{100, 105, 110}, border.Vertices)
}

func TestLoadBorderMissingPieces(t *testing.T) {
	cases := map[string]string{
		"no structure": `<BorderFile Version="1"><Border><Vertices>1 2 3</Vertices></Border></BorderFile>`,
		"no vertices":  `<BorderFile Structure="CORTEX_LEFT"><Border></Border></BorderFile>`,
		"empty block":  `<BorderFile Structure="CORTEX_LEFT"><Border><Vertices> </Vertices></Border></BorderFile>`,
		"bad vertex":   `<BorderFile Structure="CORTEX_LEFT"><Border><Vertices>x 2 3</Vertices></Border></BorderFile>`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.border")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := LoadBorder(path)
			require.Error(t, err)
		})
	}
}
