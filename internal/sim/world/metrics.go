package world

import (
	"time"

	"enderborne.gg/internal/sim/corruption"
	"enderborne.gg/internal/sim/gate"
	"enderborne.gg/internal/sim/region"
	"enderborne.gg/internal/sim/spawn"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Players      int `json:"players"`
	Clients      int `json:"clients"`
	LoadedChunks int `json:"loaded_chunks"`
	SeenChunks   int `json:"seen_chunks"`
	Traders      int `json:"traders"`

	Corruption     corruption.Stats `json:"corruption"`
	KnownCatalysts int              `json:"known_catalysts"`
	Gate           gate.Stats       `json:"gate"`
	Spawn          spawn.Stats      `json:"spawn"`
	Trades         uint64           `json:"trades"`
	HandlerPanics  uint64           `json:"handler_panics"`
	PendingEffects int              `json:"pending_effects"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Admin int `json:"admin"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics(nowTick uint64, took time.Duration) {
	m := w.mod
	out := WorldMetrics{
		Tick:           nowTick,
		Players:        len(w.players),
		Clients:        len(w.clients),
		LoadedChunks:   w.loadedChunks(),
		Traders:        len(m.Market.All()),
		Corruption:     m.Corruption.Stats(),
		Gate:           m.Gate.Stats(),
		Spawn:          m.Spawn.Stats(),
		Trades:         m.Market.Trades(),
		HandlerPanics:  m.Panics(),
		PendingEffects: w.env.Sched.Len(),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
			Admin: len(w.admin) + len(w.query),
		},
		StepMS: float64(took.Microseconds()) / 1000,
	}
	for _, r := range region.All() {
		out.SeenChunks += w.regions[r].seen.Size()
		out.KnownCatalysts += m.Corruption.KnownCatalysts(r)
	}
	w.metrics.Store(out)
}
