package world

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"enderborne.gg/internal/sim/gate"
	"enderborne.gg/internal/sim/progress"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}

	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		snap := w.ExportSnapshot(snapTick)
		select {
		case w.snapshotSink <- snap:
		default:
			errStr = "snapshot sink backpressure"
		}
	}

	resp := adminSnapshotResp{Tick: snapTick, Err: errStr}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}

// PlayerProgress is the admin view of one player.
type PlayerProgress struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Online      bool              `json:"online"`
	Region      string            `json:"region,omitempty"`
	State       string            `json:"state"`
	DefeatedAgo string            `json:"defeated_ago"`
	Progress    progress.Progress `json:"progress"`
	// Changed is set by a reset that cleared something.
	Changed bool `json:"changed,omitempty"`
}

type adminProgressReq struct {
	Player uuid.UUID
	Reset  bool
	Actor  string
	Resp   chan adminProgressResp
}

type adminProgressResp struct {
	View PlayerProgress
	Err  string
}

// QueryProgress reads a player's progress on the world loop goroutine.
func (w *World) QueryProgress(ctx context.Context, id uuid.UUID) (PlayerProgress, error) {
	return w.progressRequest(ctx, adminProgressReq{Player: id})
}

// ResetProgress re-locks a player, online or not. actor is recorded in the
// audit log.
func (w *World) ResetProgress(ctx context.Context, id uuid.UUID, actor string) (PlayerProgress, error) {
	return w.progressRequest(ctx, adminProgressReq{Player: id, Reset: true, Actor: actor})
}

func (w *World) progressRequest(ctx context.Context, req adminProgressReq) (PlayerProgress, error) {
	if w == nil || w.query == nil {
		return PlayerProgress{}, errors.New("admin progress not available")
	}
	resp := make(chan adminProgressResp, 1)
	req.Resp = resp
	select {
	case w.query <- req:
	case <-ctx.Done():
		return PlayerProgress{}, ctx.Err()
	}

	select {
	case r := <-resp:
		if r.Err != "" {
			return r.View, errors.New(r.Err)
		}
		return r.View, nil
	case <-ctx.Done():
		return PlayerProgress{}, ctx.Err()
	}
}

func (w *World) handleAdminProgressRequests(reqs []adminProgressReq) {
	for _, r := range reqs {
		resp := w.adminProgress(r)
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
		}
	}
}

func (w *World) adminProgress(r adminProgressReq) adminProgressResp {
	if r.Player == uuid.Nil {
		return adminProgressResp{Err: "player id required"}
	}
	g := w.mod.Gate
	p := w.players[r.Player]
	before := progress.Load(w.env.Store, r.Player)
	changed := false
	if r.Reset {
		changed = before.DragonDefeated || before.OverworldUnlocked || before.DefeatTimestampMillis != 0
		if p != nil {
			g.Reset(p, r.Actor)
		} else {
			g.ResetID(r.Player, r.Actor)
		}
	}

	view := PlayerProgress{
		ID:          r.Player.String(),
		State:       g.State(r.Player).String(),
		DefeatedAgo: g.DefeatAgo(r.Player),
		Progress:    progress.Load(w.env.Store, r.Player),
		Changed:     changed,
	}
	if p != nil {
		view.Name, view.Online, view.Region = p.name, true, p.reg.String()
	} else if o := w.offline[r.Player]; o != nil {
		view.Name, view.Region = o.name, o.reg.String()
	}
	if r.Reset && g.State(r.Player) != gate.Locked {
		return adminProgressResp{View: view, Err: "reset did not persist"}
	}
	return adminProgressResp{View: view}
}
