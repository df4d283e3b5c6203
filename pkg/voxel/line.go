// Package voxel provides discrete 3-D line rasterization between voxel
// grid coordinates. It is used to interpolate flythrough paths across
// volumetric structures, where surface geodesics do not apply.
package voxel

import "connsurfer/internal/models"

// Line returns every integer voxel coordinate on the straight 3-D line
// from v0 to v1, inclusive, using Bresenham's algorithm generalized to
// three dimensions. The first element is always exactly v0 and the last
// exactly v1, and the result has 1 + max(|dx|, |dy|, |dz|) entries.
// Line(v, v) returns the single-element sequence [v].
func Line(v0, v1 models.Voxel) []models.Voxel {
	dx := abs(v1[0] - v0[0])
	dy := abs(v1[1] - v0[1])
	dz := abs(v1[2] - v0[2])
	xs := step(v0[0], v1[0])
	ys := step(v0[1], v1[1])
	zs := step(v0[2], v1[2])

	// Pick the axis with the greatest absolute delta as the driving
	// axis; the other two advance via accumulated error terms.
	var d0, d1, d2, s0, s1, s2, a0, a1, a2 int
	switch {
	case dx >= dy && dx >= dz:
		d0, d1, d2 = dx, dy, dz
		s0, s1, s2 = xs, ys, zs
		a0, a1, a2 = 0, 1, 2
	case dy >= dx && dy >= dz:
		d0, d1, d2 = dy, dx, dz
		s0, s1, s2 = ys, xs, zs
		a0, a1, a2 = 1, 0, 2
	default:
		d0, d1, d2 = dz, dx, dy
		s0, s1, s2 = zs, xs, ys
		a0, a1, a2 = 2, 0, 1
	}

	line := make([]models.Voxel, d0+1)
	line[0] = v0

	p1 := 2*d1 - d0
	p2 := 2*d2 - d0
	for i := 0; i < d0; i++ {
		c := line[i]
		c[a0] += s0
		if p1 >= 0 {
			c[a1] += s1
			p1 -= 2 * d0
		}
		if p2 >= 0 {
			c[a2] += s2
			p2 -= 2 * d0
		}
		p1 += 2 * d1
		p2 += 2 * d2
		line[i+1] = c
	}
	return line
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func step(from, to int) int {
	if to > from {
		return 1
	}
	return -1
}
