// Package audit defines the durable record of terrain writes and progression
// transitions.
package audit

import "errors"

const (
	ActionSetBlock   = "SET_BLOCK"
	ActionUnlock     = "UNLOCK"
	ActionReset      = "RESET"
	ActionFirstSpawn = "FIRST_SPAWN"
	ActionVeto       = "PORTAL_VETO"
	ActionBarter     = "BARTER"
)

type Entry struct {
	Tick    uint64         `json:"tick"`
	TimeMS  int64          `json:"time_ms,omitempty"`
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	Region  string         `json:"region,omitempty"`
	Pos     [3]int         `json:"pos"`
	From    string         `json:"from,omitempty"`
	To      string         `json:"to,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type Sink interface {
	WriteAudit(entry Entry) error
}

// Multi fans an entry out to every sink and joins their errors.
type Multi []Sink

func (m Multi) WriteAudit(entry Entry) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.WriteAudit(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Discard struct{}

func (Discard) WriteAudit(Entry) error { return nil }

// Recorder keeps entries in memory.
type Recorder struct {
	Entries []Entry
}

func (r *Recorder) WriteAudit(entry Entry) error {
	r.Entries = append(r.Entries, entry)
	return nil
}

// Actions returns the action of each recorded entry, in order.
func (r *Recorder) Actions() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Action
	}
	return out
}
