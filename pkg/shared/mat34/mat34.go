// Package mat34 implements the 3x4 row-major rigid transforms used by VR
// runtimes for poses and overlay placement. The implicit fourth row is 0 0 0 1.
package mat34

import "math"

type Mat34 [3][4]float64

func Identity() Mat34 {
	return Mat34{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

func Translation(x, y, z float64) Mat34 {
	m := Identity()
	m[0][3] = x
	m[1][3] = y
	m[2][3] = z
	return m
}

// RotationZ rotates about the view axis. Positive angles turn counter-clockwise
// when looking down -Z.
func RotationZ(rad float64) Mat34 {
	s, c := math.Sincos(rad)
	return Mat34{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
	}
}

// RotationX pitches about the horizontal axis.
func RotationX(rad float64) Mat34 {
	s, c := math.Sincos(rad)
	return Mat34{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
	}
}

// Mul returns a*b, i.e. b is applied first.
func (a Mat34) Mul(b Mat34) Mat34 {
	var out Mat34
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			v := a[r][0]*b[0][c] + a[r][1]*b[1][c] + a[r][2]*b[2][c]
			if c == 3 {
				v += a[r][3]
			}
			out[r][c] = v
		}
	}
	return out
}

// Position is the translation column.
func (m Mat34) Position() (x, y, z float64) {
	return m[0][3], m[1][3], m[2][3]
}

// Pitch is the elevation of the forward (-Z) axis in radians, positive when
// looking up.
func (m Mat34) Pitch() float64 {
	return math.Asin(clampUnit(-m[1][2]))
}

// Roll is the tilt of the local up axis around the forward axis in radians,
// positive when the head leans left.
func (m Mat34) Roll() float64 {
	return math.Atan2(m[1][0], m[1][1])
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
