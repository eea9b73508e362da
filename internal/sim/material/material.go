package material

import (
	"fmt"
	"strings"
)

// Material is the palette index of a block state as seen by the mod.
type Material uint16

const (
	Air Material = iota
	CaveAir
	Stone
	Deepslate
	EndStone
	Netherrack
	Blackstone
	Basalt
	Dirt
	GrassBlock
	CoarseDirt
	Bedrock
	Obsidian
	Planks
	Water
	Lava
	EndPortal
	Sculk
	SculkVein
	SculkCatalyst
	SculkSensor
	SculkShrieker

	count
)

var names = [count]string{
	Air:           "AIR",
	CaveAir:       "CAVE_AIR",
	Stone:         "STONE",
	Deepslate:     "DEEPSLATE",
	EndStone:      "END_STONE",
	Netherrack:    "NETHERRACK",
	Blackstone:    "BLACKSTONE",
	Basalt:        "BASALT",
	Dirt:          "DIRT",
	GrassBlock:    "GRASS_BLOCK",
	CoarseDirt:    "COARSE_DIRT",
	Bedrock:       "BEDROCK",
	Obsidian:      "OBSIDIAN",
	Planks:        "PLANKS",
	Water:         "WATER",
	Lava:          "LAVA",
	EndPortal:     "END_PORTAL",
	Sculk:         "SCULK",
	SculkVein:     "SCULK_VEIN",
	SculkCatalyst: "SCULK_CATALYST",
	SculkSensor:   "SCULK_SENSOR",
	SculkShrieker: "SCULK_SHRIEKER",
}

// Corruption is the full corruption palette.
var Corruption = []Material{Sculk, SculkVein, SculkCatalyst, SculkSensor, SculkShrieker}

// Hosts are the materials corruption may overwrite.
var Hosts = []Material{
	Stone, Deepslate, EndStone,
	Netherrack, Blackstone, Basalt,
	Dirt, GrassBlock, CoarseDirt,
}

func (m Material) String() string {
	if m < count {
		return names[m]
	}
	return fmt.Sprintf("MATERIAL(%d)", uint16(m))
}

// Parse resolves a material by its palette name (case-insensitive).
func Parse(s string) (Material, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return Material(i), nil
		}
	}
	return Air, fmt.Errorf("unknown material %q", s)
}

func (m Material) Air() bool { return m == Air || m == CaveAir }

func (m Material) Liquid() bool { return m == Water || m == Lava }

// Solid reports whether an entity can stand on the material.
func (m Material) Solid() bool {
	return !m.Air() && !m.Liquid() && m != EndPortal && m != SculkVein
}

// Host reports whether m is a spreadable host material.
func (m Material) Host() bool {
	for _, h := range Hosts {
		if m == h {
			return true
		}
	}
	return false
}

// Replaceable reports whether corruption may replace m outright.
func (m Material) Replaceable() bool { return m.Air() || m.Host() }

func (m Material) Corrupted() bool {
	for _, c := range Corruption {
		if m == c {
			return true
		}
	}
	return false
}
