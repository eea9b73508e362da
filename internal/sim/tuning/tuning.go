// Package tuning loads tuning.yaml, the single file of server knobs.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"enderborne.gg/internal/protocol"
	"enderborne.gg/internal/sim/mod"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/world"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int    `yaml:"tick_rate_hz"`
	SnapshotEveryTicks uint64 `yaml:"snapshot_every_ticks"`
	ViewRadius         int    `yaml:"view_radius"`

	// Borders is the world border radius per region, in blocks.
	Borders      map[region.Region]int `yaml:"borders"`
	StarterItems map[string]int        `yaml:"starter_items"`

	Mod mod.Config `yaml:"mod"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    protocol.Version,
		TickRateHz:         20,
		SnapshotEveryTicks: 6000,
		ViewRadius:         2,
		Borders: map[region.Region]int{
			region.Origin:  2000,
			region.Nether:  4000,
			region.Surface: 30000,
		},
		StarterItems: map[string]int{"ender_pearl": 2},
		Mod:          mod.DefaultConfig(),
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.ProtocolVersion != "" && t.ProtocolVersion != protocol.Version {
		return fmt.Errorf("protocol_version %q unsupported (server speaks %s)", t.ProtocolVersion, protocol.Version)
	}
	if t.TickRateHz < 1 || t.TickRateHz > 200 {
		return fmt.Errorf("tick_rate_hz must be in [1,200]")
	}
	if t.ViewRadius < 0 || t.ViewRadius > 16 {
		return fmt.Errorf("view_radius must be in [0,16]")
	}
	for r, b := range t.Borders {
		if b < 0 {
			return fmt.Errorf("borders.%s must be >= 0", r)
		}
	}
	for item, n := range t.StarterItems {
		if item == "" || n <= 0 {
			return fmt.Errorf("starter_items: bad entry %q=%d", item, n)
		}
	}
	if err := t.Mod.Validate(); err != nil {
		return fmt.Errorf("mod: %w", err)
	}
	return nil
}

// WorldConfig builds the reference host config for a world.
func (t Tuning) WorldConfig(id string, seed int64) world.Config {
	return world.Config{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		Seed:               seed,
		ViewRadius:         t.ViewRadius,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		Borders:            t.Borders,
		StarterItems:       t.StarterItems,
		Mod:                t.Mod,
	}
}
