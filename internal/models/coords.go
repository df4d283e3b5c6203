package models

// Voxel is an integer (i, j, k) grid coordinate identifying a location
// inside a volumetric structure.
type Voxel [3]int

// Invalid reports whether the voxel is the "not applicable" sentinel
// (-1, -1, -1) used by coordinate tables for surface rows.
func (v Voxel) Invalid() bool {
	return v[0] == -1 && v[1] == -1 && v[2] == -1
}

// Vec3 is a physical (x, y, z) coordinate in millimeters, produced by
// applying a volume's affine transform to a voxel coordinate.
type Vec3 [3]float64

// RowPath is an ordered sequence of connectivity-matrix row indices.
// A dense path additionally guarantees that no two consecutive entries
// are equal and that consecutive entries stay within one structure.
type RowPath []int

// Clone returns an independent copy of the path.
func (p RowPath) Clone() RowPath {
	out := make(RowPath, len(p))
	copy(out, p)
	return out
}

// Reversed returns a new path with the entries in opposite order.
func (p RowPath) Reversed() RowPath {
	out := make(RowPath, len(p))
	for i, r := range p {
		out[len(p)-1-i] = r
	}
	return out
}
