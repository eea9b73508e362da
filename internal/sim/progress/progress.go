// Package progress models the per-player attachments the mod persists
// through the host's key-value store.
package progress

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Store holds raw per-player attachments. Implementations persist across
// sessions, keyed by the stable player id. Reads never block on I/O.
type Store interface {
	Raw(player uuid.UUID, key string) ([]byte, bool)
	SetRaw(player uuid.UUID, key string, value []byte) error
}

// Key is a typed attachment with a declared default.
type Key[T any] struct {
	Name    string
	Default T
}

var (
	HasPlayed         = Key[bool]{Name: "enderborne:has_played"}
	DragonDefeated    = Key[bool]{Name: "enderborne:dragon_defeated"}
	OverworldUnlocked = Key[bool]{Name: "enderborne:overworld_unlocked"}
	DefeatTimestamp   = Key[int64]{Name: "enderborne:defeat_timestamp"}
	SpawnCount        = Key[int32]{Name: "enderborne:spawn_count"}
)

// KeyNames lists every attachment the mod owns.
func KeyNames() []string {
	return []string{HasPlayed.Name, DragonDefeated.Name, OverworldUnlocked.Name, DefeatTimestamp.Name, SpawnCount.Name}
}

// Get returns the stored value, or the key's default when unset or
// undecodable.
func Get[T any](s Store, player uuid.UUID, k Key[T]) T {
	b, ok := s.Raw(player, k.Name)
	if !ok {
		return k.Default
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return k.Default
	}
	return v
}

func Set[T any](s Store, player uuid.UUID, k Key[T], v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("progress: encode %s: %w", k.Name, err)
	}
	if err := s.SetRaw(player, k.Name, b); err != nil {
		return fmt.Errorf("progress: set %s: %w", k.Name, err)
	}
	return nil
}

// Progress is a read-only view of one player's record.
type Progress struct {
	HasPlayed             bool  `json:"has_played"`
	DragonDefeated        bool  `json:"dragon_defeated"`
	OverworldUnlocked     bool  `json:"overworld_unlocked"`
	DefeatTimestampMillis int64 `json:"defeat_timestamp_millis"`
	SpawnCount            int32 `json:"spawn_count"`
}

func Load(s Store, player uuid.UUID) Progress {
	return Progress{
		HasPlayed:             Get(s, player, HasPlayed),
		DragonDefeated:        Get(s, player, DragonDefeated),
		OverworldUnlocked:     Get(s, player, OverworldUnlocked),
		DefeatTimestampMillis: Get(s, player, DefeatTimestamp),
		SpawnCount:            Get(s, player, SpawnCount),
	}
}

// Unlocked is the gate state.
func (p Progress) Unlocked() bool { return p.OverworldUnlocked }
