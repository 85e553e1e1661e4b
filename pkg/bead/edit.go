package bead

// RotateClockwise returns a copy of beads cyclically shifted by k steps so
// that the last bead moves to the front. Negative k rotates the other way.
func RotateClockwise(beads []Bead, k int) []Bead {
	n := len(beads)
	out := make([]Bead, n)
	if n == 0 {
		return out
	}
	k = ((k % n) + n) % n
	copy(out, beads[n-k:])
	copy(out[k:], beads[:n-k])
	return out
}

// RotateCounterClockwise returns a copy of beads shifted so that the first
// bead moves to the back.
func RotateCounterClockwise(beads []Bead, k int) []Bead {
	return RotateClockwise(beads, -k)
}

// Insert returns a copy of beads with b inserted at index i.
// Indices outside [0, len] are clamped.
func Insert(beads []Bead, i int, b Bead) []Bead {
	i = clamp(i, 0, len(beads))
	out := make([]Bead, 0, len(beads)+1)
	out = append(out, beads[:i]...)
	out = append(out, b)
	return append(out, beads[i:]...)
}

// Remove returns a copy of beads without the element at index i.
// An out-of-range index yields an unchanged copy.
func Remove(beads []Bead, i int) []Bead {
	out := make([]Bead, 0, len(beads))
	if i < 0 || i >= len(beads) {
		return append(out, beads...)
	}
	out = append(out, beads[:i]...)
	return append(out, beads[i+1:]...)
}

// Move returns a copy of beads with the element at from relocated to to.
func Move(beads []Bead, from, to int) []Bead {
	if from < 0 || from >= len(beads) {
		return append([]Bead(nil), beads...)
	}
	b := beads[from]
	return Insert(Remove(beads, from), to, b)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
