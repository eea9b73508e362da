// Package env bundles the collaborators every gameplay component shares.
package env

import (
	"io"
	"log"
	"time"

	"enderborne.gg/internal/sim/audit"
	"enderborne.gg/internal/sim/host"
	"enderborne.gg/internal/sim/progress"
	"enderborne.gg/internal/sim/rng"
	"enderborne.gg/internal/sim/sched"
)

// Context is owned by the simulation goroutine. Components keep a pointer to
// it and never copy its fields out.
type Context struct {
	Rand      rng.Source
	Worlds    host.Worlds
	Store     progress.Store
	Presenter host.Presenter
	Sched     *sched.Queue
	Clock     func() time.Time
	Log       *log.Logger
	Audit     audit.Sink
}

// Normalize fills unset optional collaborators with inert defaults.
func (c *Context) Normalize() *Context {
	if c.Rand == nil {
		c.Rand = rng.New(uint64(time.Now().UnixNano()))
	}
	if c.Sched == nil {
		c.Sched = sched.New()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Log == nil {
		c.Log = log.New(io.Discard, "", 0)
	}
	if c.Audit == nil {
		c.Audit = audit.Discard{}
	}
	return c
}

func (c *Context) Tick() uint64 { return c.Sched.Now() }

func (c *Context) NowMillis() int64 { return c.Clock().UnixMilli() }

// Record writes an audit entry stamped with the current tick and time. Audit
// failures are logged, never returned.
func (c *Context) Record(e audit.Entry) {
	e.Tick = c.Tick()
	if e.TimeMS == 0 {
		e.TimeMS = c.NowMillis()
	}
	if err := c.Audit.WriteAudit(e); err != nil {
		c.Log.Printf("warn: audit %s: %v", e.Action, err)
	}
}
