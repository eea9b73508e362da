package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	PlayerID        string       `json:"player_id"`
	ResumeToken     string       `json:"resume_token"`
	WorldParams     WorldParams  `json:"world_params"`
	Progress        ProgressView `json:"progress"`
}

type WorldParams struct {
	TickRateHz int          `json:"tick_rate_hz"`
	ChunkSize  int          `json:"chunk_size"`
	ViewRadius int          `json:"view_radius"`
	Seed       int64        `json:"seed"`
	Regions    []RegionInfo `json:"regions"`
}

type RegionInfo struct {
	Name    string `json:"name"`
	MinY    int    `json:"min_y"`
	MaxY    int    `json:"max_y"`
	BorderR int    `json:"border_r"`
}

type ProgressView struct {
	HasPlayed         bool   `json:"has_played"`
	DragonDefeated    bool   `json:"dragon_defeated"`
	OverworldUnlocked bool   `json:"overworld_unlocked"`
	DefeatedAgo       string `json:"defeated_ago"`
	SpawnCount        int32  `json:"spawn_count"`
}
