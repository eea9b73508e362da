// Package region names the three world partitions the mod acts on and the
// fixed parameters each one carries.
package region

import (
	"fmt"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"

	"enderborne.gg/internal/sim/material"
)

// Region identifies which world a terrain operation or progression check
// applies to.
type Region uint8

const (
	// Origin is the realm new players start in and must escape from.
	Origin Region = iota
	Nether
	// Surface is the realm locked behind the boss encounter.
	Surface
)

// All lists every region in a stable order.
func All() []Region { return []Region{Origin, Nether, Surface} }

func (r Region) String() string {
	switch r {
	case Origin:
		return "ORIGIN_REALM"
	case Nether:
		return "NETHER_REALM"
	case Surface:
		return "SURFACE_REALM"
	default:
		return fmt.Sprintf("REGION(%d)", uint8(r))
	}
}

func Parse(s string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ORIGIN_REALM", "ORIGIN", "END":
		return Origin, nil
	case "NETHER_REALM", "NETHER":
		return Nether, nil
	case "SURFACE_REALM", "SURFACE", "OVERWORLD":
		return Surface, nil
	}
	return Origin, fmt.Errorf("unknown region %q", s)
}

// Params are the corruption constants of a region.
type Params struct {
	Chance    float64 `yaml:"corruption_chance" json:"corruption_chance"`
	Intensity float64 `yaml:"corruption_intensity" json:"corruption_intensity"`
}

// DefaultParams returns the built-in corruption constants.
func (r Region) DefaultParams() Params {
	switch r {
	case Origin:
		return Params{Chance: 0.75, Intensity: 0.80}
	case Nether:
		return Params{Chance: 0.40, Intensity: 0.50}
	case Surface:
		return Params{Chance: 0.15, Intensity: 0.30}
	}
	return Params{}
}

// Range is the build range of the region's world.
func (r Region) Range() cube.Range {
	switch r {
	case Surface:
		return cube.Range{-64, 319}
	default:
		return cube.Range{0, 255}
	}
}

var (
	originPalette  = material.Corruption
	netherPalette  = []material.Material{material.SculkVein, material.Sculk, material.SculkSensor}
	surfacePalette = []material.Material{material.SculkVein, material.Sculk}
)

// Palette is the set corruption materials are drawn from, uniformly.
func (r Region) Palette() []material.Material {
	switch r {
	case Origin:
		return originPalette
	case Nether:
		return netherPalette
	default:
		return surfacePalette
	}
}

// MarshalText lets regions key YAML and JSON maps.
func (r Region) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Region) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
