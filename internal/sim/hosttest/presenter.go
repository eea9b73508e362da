package hosttest

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/region"
)

// Shown is one recorded presentation call. Player is uuid.Nil for
// positional effects.
type Shown struct {
	Kind   string
	Player uuid.UUID
	Region region.Region
	Pos    mgl64.Vec3
	Text   string
	Sub    string
	Volume float64
	Pitch  float64
	Count  int
	Spread mgl64.Vec3
	Speed  float64
}

const (
	KindMessage   = "message"
	KindTitle     = "title"
	KindActionBar = "actionbar"
	KindSoundTo   = "sound_to"
	KindSound     = "sound"
	KindParticles = "particles"
)

// Presenter records every call.
type Presenter struct {
	Calls []Shown
}

func (r *Presenter) Message(p host.Player, text string) {
	r.Calls = append(r.Calls, Shown{Kind: KindMessage, Player: p.ID(), Text: text})
}

func (r *Presenter) Title(p host.Player, title, subtitle string) {
	r.Calls = append(r.Calls, Shown{Kind: KindTitle, Player: p.ID(), Text: title, Sub: subtitle})
}

func (r *Presenter) ActionBar(p host.Player, text string) {
	r.Calls = append(r.Calls, Shown{Kind: KindActionBar, Player: p.ID(), Text: text})
}

func (r *Presenter) PlaySoundTo(p host.Player, sound string, volume, pitch float64) {
	r.Calls = append(r.Calls, Shown{Kind: KindSoundTo, Player: p.ID(), Text: sound, Volume: volume, Pitch: pitch})
}

func (r *Presenter) PlaySound(reg region.Region, pos mgl64.Vec3, sound string, volume, pitch float64) {
	r.Calls = append(r.Calls, Shown{Kind: KindSound, Region: reg, Pos: pos, Text: sound, Volume: volume, Pitch: pitch})
}

func (r *Presenter) Particles(reg region.Region, pos mgl64.Vec3, particle string, count int, spread mgl64.Vec3, speed float64) {
	r.Calls = append(r.Calls, Shown{Kind: KindParticles, Region: reg, Pos: pos, Text: particle, Count: count, Spread: spread, Speed: speed})
}

// Of filters calls by kind.
func (r *Presenter) Of(kind string) []Shown {
	var out []Shown
	for _, c := range r.Calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the text of every call of kind addressed to player.
func (r *Presenter) Texts(kind string, player uuid.UUID) []string {
	var out []string
	for _, c := range r.Calls {
		if c.Kind == kind && c.Player == player {
			out = append(out, c.Text)
		}
	}
	return out
}

// Particles of one type, summed over calls.
func (r *Presenter) ParticleCount(particle string) int {
	n := 0
	for _, c := range r.Of(KindParticles) {
		if c.Text == particle {
			n += c.Count
		}
	}
	return n
}

func (r *Presenter) Reset() { r.Calls = nil }

var _ host.Presenter = (*Presenter)(nil)
