package protocol

// OBS (server -> client), one per tick.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	PlayerID        string `json:"player_id"`

	Self      SelfObs      `json:"self"`
	Inventory []ItemStack  `json:"inventory"`
	Entities  []EntityObs  `json:"entities"`
	Events    []Event      `json:"events"`
	Progress  ProgressView `json:"progress"`
}

type SelfObs struct {
	Region string     `json:"region"`
	Pos    [3]float64 `json:"pos"`
	Yaw    float64    `json:"yaw"`
	Pitch  float64    `json:"pitch"`
	Alive  bool       `json:"alive"`
	// Standing is the material under the player.
	Standing string `json:"standing,omitempty"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type EntityObs struct {
	ID   string     `json:"id"`
	Type string     `json:"type"`
	Pos  [3]float64 `json:"pos"`
	Name string     `json:"name,omitempty"`
	// Busy marks a restocking trader.
	Busy bool `json:"busy,omitempty"`
}

// Event is a presentation or action-result record. "type" is always set.
type Event map[string]interface{}

// Event types.
const (
	EventMessage      = "MESSAGE"
	EventTitle        = "TITLE"
	EventActionBar    = "ACTION_BAR"
	EventSound        = "SOUND"
	EventParticles    = "PARTICLES"
	EventActionResult = "ACTION_RESULT"
	EventTeleport     = "TELEPORT"
)

// ACT (client -> server)
type ActMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Tick            uint64      `json:"tick"`
	PlayerID        string      `json:"player_id"`
	Actions         []ActionReq `json:"actions,omitempty"`
}

// Action types.
const (
	ActionMove         = "MOVE"
	ActionDie          = "DIE"
	ActionRespawn      = "RESPAWN"
	ActionKillBoss     = "KILL_BOSS"
	ActionSummonTrader = "SUMMON_TRADER"
	ActionInteract     = "INTERACT"
	ActionBarter       = "BARTER"
)

type ActionReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// MOVE target, in the player's current region. KILL_BOSS and
	// SUMMON_TRADER use it as the entity position.
	Pos *[3]float64 `json:"pos,omitempty"`

	TraderID string `json:"trader_id,omitempty"`
	Offer    int    `json:"offer,omitempty"`
}
