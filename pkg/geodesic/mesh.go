// Package geodesic provides the surface path machinery for flythrough
// generation: the triangulated mesh model, the exact-geodesic solver
// contract, a built-in edge-walking solver, and the path stitcher that
// turns sparse waypoint rows into a dense continuous row sequence.
package geodesic

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Mesh is a triangulated surface: vertex positions plus triangle vertex
// indices. Vertex ids are positions into Vertices.
type Mesh struct {
	Vertices [][3]float64
	Faces    [][3]int
}

// Edge is an undirected mesh edge between two vertex ids. First is always
// the smaller id so edges have a canonical orientation.
type Edge struct {
	First  int
	Second int
}

// EdgePoint is one point on a geodesic path as reported by a solver:
// either exactly a mesh vertex (Index is a vertex id), or a point on an
// edge (Index is an edge id, Proportion the fractional position from the
// edge's First endpoint).
type EdgePoint struct {
	IsVertex   bool
	Index      int
	Proportion float64
}

// Edges enumerates the mesh's undirected edges in a stable order:
// deduplicated, each canonically oriented, sorted by first appearance in
// face order. The returned slice index is the edge id used by EdgePoint.
func (m *Mesh) Edges() []Edge {
	seen := make(map[Edge]bool)
	var edges []Edge
	add := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		e := Edge{First: a, Second: b}
		if !seen[e] {
			seen[e] = true
			edges = append(edges, e)
		}
	}
	for _, f := range m.Faces {
		add(f[0], f[1])
		add(f[1], f[2])
		add(f[2], f[0])
	}
	return edges
}

// LoadMesh reads a triangulated surface from an OFF file: the "OFF"
// magic line, a counts line (vertices, faces, edges), one position line
// per vertex, then one "3 a b c" line per triangle. Comment lines
// starting with '#' are skipped.
func LoadMesh(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open mesh")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	next := func() ([]string, bool) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return strings.Fields(line), true
		}
		return nil, false
	}

	magic, ok := next()
	if !ok || len(magic) != 1 || magic[0] != "OFF" {
		return nil, errors.New("not an OFF mesh file")
	}
	counts, ok := next()
	if !ok || len(counts) < 2 {
		return nil, errors.New("missing OFF counts line")
	}
	numVertices, err := strconv.Atoi(counts[0])
	if err != nil {
		return nil, errors.Wrap(err, "bad vertex count")
	}
	numFaces, err := strconv.Atoi(counts[1])
	if err != nil {
		return nil, errors.Wrap(err, "bad face count")
	}

	mesh := &Mesh{
		Vertices: make([][3]float64, 0, numVertices),
		Faces:    make([][3]int, 0, numFaces),
	}
	for i := 0; i < numVertices; i++ {
		fields, ok := next()
		if !ok || len(fields) < 3 {
			return nil, errors.Errorf("truncated vertex %d", i)
		}
		var v [3]float64
		for j := 0; j < 3; j++ {
			v[j], err = strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "vertex %d", i)
			}
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}
	for i := 0; i < numFaces; i++ {
		fields, ok := next()
		if !ok || len(fields) < 4 || fields[0] != "3" {
			return nil, errors.Errorf("face %d is not a triangle", i)
		}
		var f [3]int
		for j := 0; j < 3; j++ {
			f[j], err = strconv.Atoi(fields[j+1])
			if err != nil {
				return nil, errors.Wrapf(err, "face %d", i)
			}
			if f[j] < 0 || f[j] >= numVertices {
				return nil, errors.Errorf("face %d references vertex %d outside mesh", i, f[j])
			}
		}
		mesh.Faces = append(mesh.Faces, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read mesh")
	}
	return mesh, nil
}
