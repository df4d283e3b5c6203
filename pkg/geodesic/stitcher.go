package geodesic

import (
	"github.com/pkg/errors"

	"connsurfer/internal/models"
	"connsurfer/pkg/cifti"
	"connsurfer/pkg/voxel"
)

// ErrCrossStructure is returned when two consecutive waypoints live in
// different structures. Every pairwise hop must stay within one structure;
// this includes surface-to-surface hops across the two hemispheres.
var ErrCrossStructure = errors.New("path crosses structures")

// MeshLoader resolves a surface structure name to its triangulated mesh.
type MeshLoader func(structure string) (*Mesh, error)

// SolverFactory builds a geodesic solver for a loaded mesh.
type SolverFactory func(*Mesh) Solver

// Stitcher turns a sparse list of waypoint rows into a dense, duplicate-free,
// structure-consistent row sequence. Surface hops go through a geodesic
// solver; volume hops through discrete voxel line stepping.
type Stitcher struct {
	index     *cifti.Index
	meshes    MeshLoader
	newSolver SolverFactory
}

// NewStitcher builds a stitcher over the given index. A nil factory uses
// the built-in MeshSolver.
func NewStitcher(index *cifti.Index, meshes MeshLoader, factory SolverFactory) *Stitcher {
	if factory == nil {
		factory = func(m *Mesh) Solver { return NewMeshSolver(m) }
	}
	return &Stitcher{index: index, meshes: meshes, newSolver: factory}
}

// session holds per-Stitch solver state. Solvers are cached per structure
// so repeated hops reuse the loaded mesh; each solver in turn only
// recomputes when its source vertex changes. The cache is never shared
// across concurrent Stitch calls.
type session struct {
	solvers map[string]Solver
}

func (s *Stitcher) solverFor(sess *session, structure string) (Solver, error) {
	if solver, ok := sess.solvers[structure]; ok {
		return solver, nil
	}
	mesh, err := s.meshes(structure)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load mesh for %s", structure)
	}
	solver := s.newSolver(mesh)
	sess.solvers[structure] = solver
	return solver, nil
}

// Stitch produces the dense path through all waypoints in order. The
// result starts at the first waypoint, ends at the last, and never holds
// two adjacent equal rows; a row may legitimately reappear non-adjacently.
func (s *Stitcher) Stitch(waypoints models.RowPath) (models.RowPath, error) {
	if len(waypoints) < 2 {
		return nil, errors.New("at least 2 waypoints are required")
	}
	sess := &session{solvers: make(map[string]Solver)}
	var dense models.RowPath
	for i := 0; i < len(waypoints)-1; i++ {
		hop, err := s.stitchHop(sess, waypoints[i], waypoints[i+1])
		if err != nil {
			return nil, errors.Wrapf(err, "waypoint pair (%d, %d)", waypoints[i], waypoints[i+1])
		}
		dense = appendDedup(dense, hop)
	}
	return dense, nil
}

// stitchHop produces the row sequence for one waypoint pair, both
// endpoints included.
func (s *Stitcher) stitchHop(sess *session, p1, p2 int) (models.RowPath, error) {
	structure1, err := s.index.StructureOf(p1)
	if err != nil {
		return nil, err
	}
	structure2, err := s.index.StructureOf(p2)
	if err != nil {
		return nil, err
	}
	if structure1 != structure2 {
		return nil, errors.Wrapf(ErrCrossStructure, "%s to %s", structure1, structure2)
	}
	if s.index.IsSurface(p1) {
		return s.surfaceHop(sess, structure1, p1, p2)
	}
	return s.volumeHop(structure1, p1, p2)
}

// surfaceHop walks the geodesic from p1's vertex to p2's vertex, snaps
// each edge point to its nearest endpoint vertex, and maps the vertex
// sequence back to rows within the structure's own span.
func (s *Stitcher) surfaceHop(sess *session, structure string, p1, p2 int) (models.RowPath, error) {
	v1, err := s.index.VertexOf(p1)
	if err != nil {
		return nil, err
	}
	v2, err := s.index.VertexOf(p2)
	if err != nil {
		return nil, err
	}
	solver, err := s.solverFor(sess, structure)
	if err != nil {
		return nil, err
	}
	points, err := solver.Path(v1, v2)
	if err != nil {
		return nil, errors.Wrapf(err, "geodesic from vertex %d to vertex %d", v1, v2)
	}

	vertices := make([]int, 0, len(points))
	for _, p := range points {
		v, err := snap(solver, p)
		if err != nil {
			return nil, err
		}
		if n := len(vertices); n > 0 && vertices[n-1] == v {
			continue
		}
		vertices = append(vertices, v)
	}

	rows := make(models.RowPath, 0, len(vertices))
	for _, v := range vertices {
		row, err := s.index.RowOf(structure, v)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// snap resolves an edge point to a vertex id: vertex points keep their id,
// edge points take the endpoint nearest to their fractional position
// (<= 0.5 selects the edge's first endpoint).
func snap(solver Solver, p EdgePoint) (int, error) {
	if p.IsVertex {
		return p.Index, nil
	}
	e, err := solver.Edge(p.Index)
	if err != nil {
		return 0, err
	}
	if p.Proportion <= 0.5 {
		return e.First, nil
	}
	return e.Second, nil
}

// volumeHop steps a discrete 3-D line between the two voxel coordinates
// and maps each produced voxel back to its row. Voxels with no table row
// are skipped: the discrete line may pass through grid cells absent from
// the connectivity matrix.
func (s *Stitcher) volumeHop(structure string, p1, p2 int) (models.RowPath, error) {
	vox1, err := s.index.VoxelOf(p1)
	if err != nil {
		return nil, err
	}
	vox2, err := s.index.VoxelOf(p2)
	if err != nil {
		return nil, err
	}
	var rows models.RowPath
	for _, c := range voxel.Line(vox1, vox2) {
		row, ok := s.index.RowOfVoxel(structure, c)
		if !ok {
			continue
		}
		if n := len(rows); n > 0 && rows[n-1] == row {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// appendDedup concatenates a hop onto the accumulated dense path, dropping
// the boundary entry when it repeats the last kept row. This is a forward
// scan, not a set dedup: non-adjacent repeats survive.
func appendDedup(dense, hop models.RowPath) models.RowPath {
	for _, r := range hop {
		if n := len(dense); n > 0 && dense[n-1] == r {
			continue
		}
		dense = append(dense, r)
	}
	return dense
}
