package layout

import "math/bits"

// AlignUp rounds v up to a multiple of align. An align of 0 or 1 returns v.
func AlignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

// IsPow2 reports whether v is a positive power of two.
func IsPow2(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// FloorLog2 returns floor(log2(v)) for v > 0, and 0 otherwise.
func FloorLog2(v int) int {
	if v <= 0 {
		return 0
	}
	return bits.Len(uint(v)) - 1
}

// ComputeLevels returns the length of a full mip chain for the given size.
func ComputeLevels(width, height int) int {
	return FloorLog2(max(width, height, 1)) + 1
}

// LevelSize returns the dimensions of a mip level, never smaller than 1×1.
func LevelSize(width, height, level int) (int, int) {
	return max(width>>level, 1), max(height>>level, 1)
}

// MipOffset returns the number of texels stored before the given level of
// a tightly packed mip chain whose top level is topW × topH.
func MipOffset(level, topW, topH int) int {
	offset := 0
	for i := range level {
		w, h := LevelSize(topW, topH, i)
		offset += w * h
	}
	return offset
}
