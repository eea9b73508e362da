// Package gen computes the deterministic column layout of each region. It is
// pure: callers own the chunk storage.
package gen

import (
	"enderborne.gg/internal/sim/mathx"
	"enderborne.gg/internal/sim/material"
	"enderborne.gg/internal/sim/region"
)

// InCluster reports whether (x, z) falls inside a disc of the given radius
// around one of the jittered grid centers near it. probPermille is the chance
// a grid cell hosts a center at all.
func InCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := mathx.FloorDiv(x, grid)
	gz := mathx.FloorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := mathx.Hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}

			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			cx := cgx*grid + ox
			cz := cgz*grid + oz

			ddx := x - cx
			ddz := z - cz
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}

// Layer is an inclusive vertical run of one material.
type Layer struct {
	From, To int
	M        material.Material
}

// Landmarks of the origin realm.
const (
	MainIslandRadius = 120
	OuterIslandsFrom = 600
	GatewayY         = 59
	PlatformY        = 48
	SeaLevel         = 62
)

// PlatformX and PlatformZ center the obsidian arrival platform.
var PlatformX, PlatformZ = 100, 0

// Column returns the layers of (x, z) in region r, bottom to top.
func Column(seed int64, r region.Region, x, z int) []Layer {
	switch r {
	case region.Origin:
		return originColumn(seed, x, z)
	case region.Nether:
		return netherColumn(seed, x, z)
	default:
		return surfaceColumn(seed, x, z)
	}
}

func originColumn(seed int64, x, z int) []Layer {
	if mathx.Abs(x-PlatformX) <= 2 && mathx.Abs(z-PlatformZ) <= 2 {
		return []Layer{{PlatformY, PlatformY, material.Obsidian}}
	}
	d2 := x*x + z*z
	if d2 <= MainIslandRadius*MainIslandRadius {
		d := isqrt(d2)
		top := GatewayY - d/15
		bottom := top - max(3, 12-d/12)
		switch {
		case x == 0 && z == 0:
			return []Layer{{bottom, top + 4, material.Bedrock}}
		case mathx.Abs(x) <= 1 && mathx.Abs(z) <= 1:
			return []Layer{{bottom, top - 1, material.EndStone}, {top, top, material.EndPortal}}
		}
		return []Layer{{bottom, top, material.EndStone}}
	}
	if d2 < OuterIslandsFrom*OuterIslandsFrom {
		return nil
	}
	if !InCluster(seed+11, x, z, 64, 18, 550) {
		return nil
	}
	top := 48 + int(mathx.Hash2(seed+12, mathx.FloorDiv(x, 8), mathx.FloorDiv(z, 8))%6)
	thick := 4 + int(mathx.Hash2(seed+13, x, z)%5)
	return []Layer{{top - thick, top, material.EndStone}}
}

func netherColumn(seed int64, x, z int) []Layer {
	floor := 28 + int(mathx.Hash2(seed+20, mathx.FloorDiv(x, 4), mathx.FloorDiv(z, 4))%6)
	top := material.Netherrack
	switch {
	case InCluster(seed+21, x, z, 48, 10, 400):
		top = material.Blackstone
	case InCluster(seed+22, x, z, 64, 8, 300):
		top = material.Basalt
	}
	ceil := 100 - int(mathx.Hash2(seed+23, mathx.FloorDiv(x, 4), mathx.FloorDiv(z, 4))%8)
	out := []Layer{
		{0, 0, material.Bedrock},
		{1, floor - 1, material.Netherrack},
		{floor, floor, top},
	}
	if floor < 31 {
		out = append(out, Layer{floor + 1, 31, material.Lava})
	}
	return append(out,
		Layer{ceil, 126, material.Netherrack},
		Layer{127, 127, material.Bedrock},
	)
}

func surfaceColumn(seed int64, x, z int) []Layer {
	top := SeaLevel - 3 + int(mathx.Hash2(seed+31, mathx.FloorDiv(x, 32), mathx.FloorDiv(z, 32))%10)
	cover := material.GrassBlock
	switch {
	case top < SeaLevel:
		cover = material.Dirt
	case InCluster(seed+32, x, z, 48, 6, 300):
		cover = material.CoarseDirt
	}
	out := []Layer{
		{-64, -64, material.Bedrock},
		{-63, -1, material.Deepslate},
		{0, top - 4, material.Stone},
		{top - 3, top - 1, material.Dirt},
		{top, top, cover},
	}
	if top < SeaLevel {
		out = append(out, Layer{top + 1, SeaLevel, material.Water})
	}
	return out
}

func isqrt(v int) int {
	if v <= 0 {
		return 0
	}
	r := 0
	for (r+1)*(r+1) <= v {
		r++
	}
	return r
}
