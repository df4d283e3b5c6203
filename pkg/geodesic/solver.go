package geodesic

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Solver is the exact-geodesic collaborator contract. A solver is bound to
// one mesh and is stateful per source vertex: implementations must only
// rebuild their per-source state when the source changes between calls.
// Solvers are not safe for concurrent use.
type Solver interface {
	// Path returns the ordered edge-point sequence from source to target,
	// starting at the source vertex and ending at the target vertex.
	Path(source, target int) ([]EdgePoint, error)

	// Distances returns the geodesic distance from source to every mesh
	// vertex, indexed by vertex id.
	Distances(source int) ([]float64, error)

	// Edge resolves an edge id from a non-vertex EdgePoint to its
	// endpoint vertex ids.
	Edge(id int) (Edge, error)
}

// MeshSolver satisfies Solver by running Dijkstra over the mesh edge
// graph, weighting each edge with its Euclidean length. Every path point
// it produces lies exactly on a vertex. An exact solver (paths crossing
// triangle interiors) can be swapped in through the same interface.
type MeshSolver struct {
	mesh  *Mesh
	edges []Edge
	graph *simple.WeightedUndirectedGraph

	// per-source shortest-path tree, rebuilt only when source changes
	source   int
	shortest path.Shortest
}

// NewMeshSolver builds the edge graph for the given mesh.
func NewMeshSolver(m *Mesh) *MeshSolver {
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	edges := m.Edges()
	for _, e := range edges {
		a := m.Vertices[e.First]
		b := m.Vertices[e.Second]
		dx := a[0] - b[0]
		dy := a[1] - b[1]
		dz := a[2] - b[2]
		w := math.Sqrt(dx*dx + dy*dy + dz*dz)
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(int64(e.First)),
			T: simple.Node(int64(e.Second)),
			W: w,
		})
	}
	return &MeshSolver{mesh: m, edges: edges, graph: g, source: -1}
}

// ensure lazily recomputes the shortest-path tree when the source vertex
// changes.
func (s *MeshSolver) ensure(source int) error {
	if source == s.source {
		return nil
	}
	node := s.graph.Node(int64(source))
	if node == nil {
		return errors.Errorf("vertex %d is not part of the mesh", source)
	}
	s.shortest = path.DijkstraFrom(node, s.graph)
	s.source = source
	return nil
}

// Path implements Solver.
func (s *MeshSolver) Path(source, target int) ([]EdgePoint, error) {
	if err := s.ensure(source); err != nil {
		return nil, err
	}
	if s.graph.Node(int64(target)) == nil {
		return nil, errors.Errorf("vertex %d is not part of the mesh", target)
	}
	nodes, _ := s.shortest.To(int64(target))
	if len(nodes) == 0 {
		return nil, errors.Errorf("no path from vertex %d to vertex %d", source, target)
	}
	points := make([]EdgePoint, len(nodes))
	for i, n := range nodes {
		points[i] = EdgePoint{IsVertex: true, Index: int(n.ID())}
	}
	return points, nil
}

// Distances implements Solver.
func (s *MeshSolver) Distances(source int) ([]float64, error) {
	if err := s.ensure(source); err != nil {
		return nil, err
	}
	out := make([]float64, len(s.mesh.Vertices))
	for v := range out {
		out[v] = s.shortest.WeightTo(int64(v))
	}
	return out, nil
}

// Edge implements Solver.
func (s *MeshSolver) Edge(id int) (Edge, error) {
	if id < 0 || id >= len(s.edges) {
		return Edge{}, errors.Errorf("edge id %d out of range", id)
	}
	return s.edges[id], nil
}
