package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	LeaderID        string            `json:"leader_id,omitempty"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	// Binary asks for msgpack frames instead of JSON text.
	Binary   bool `json:"binary,omitempty"`
	MaxQueue int  `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	PlayerID        string         `json:"player_id"`
	Binary          bool           `json:"binary,omitempty"`
	MatchParams     MatchParams    `json:"match_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type MatchParams struct {
	Width        int   `json:"width"`
	Height       int   `json:"height"`
	StartingGold int   `json:"starting_gold"`
	GoldPerTurn  int   `json:"gold_per_turn"`
	Seed         int64 `json:"seed"`
}

type CatalogDigests struct {
	Units        DigestRef `json:"units"`
	TuningDigest string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): the unit store, sent as a single part.
type CatalogMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`   // e.g. "unit_store"
	Digest          string `json:"digest"` // sha256 hex
	Part            int    `json:"part"`
	TotalParts      int    `json:"total_parts"`
	Data            any    `json:"data"`
}

// ACT (client -> server): one match command.
type ActMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ActID           string `json:"act_id,omitempty"`
	Command         string `json:"command"`
	TemplateID      string `json:"template_id,omitempty"`
	From            *Coord `json:"from,omitempty"`
	To              *Coord `json:"to,omitempty"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	MatchID         string `json:"match_id,omitempty"`
}

type MatchStartMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	MatchID         string    `json:"match_id"`
	View            MatchView `json:"view"`
}

type MatchUpdateMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	MatchID         string    `json:"match_id"`
	View            MatchView `json:"view"`
}

type MatchDamageMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Position        Coord  `json:"position"`
	Damage          int    `json:"damage"`
	Dead            bool   `json:"dead,omitempty"`
}

type EndGameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	WinnerID        string `json:"winner_id"`
	LoserID         string `json:"loser_id"`
	Reason          string `json:"reason"` // "leader_defeated" | "opponent_left"
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	ActID           string `json:"act_id,omitempty"`
}

type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// MatchView is one participant's picture of a match. Only the viewer's own
// gold is included.
type MatchView struct {
	MatchID     string      `json:"match_id"`
	Status      string      `json:"status"`
	IsPlayer    bool        `json:"is_player"`
	ActiveTurn  bool        `json:"active_turn"`
	TurnOwnerID string      `json:"turn_owner_id"`
	Gold        int         `json:"gold"`
	Turn        int         `json:"turn"`
	Map         MapView     `json:"map"`
	Units       []UnitView  `json:"units"`
	Store       []StoreItem `json:"store"`
}

type MapView struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Tiles  []TileView `json:"tiles"`
}

type TileView struct {
	Position     Coord  `json:"position"`
	Terrain      string `json:"terrain"`
	GoldGenerate int    `json:"gold_generate,omitempty"`
	Occupied     bool   `json:"occupied,omitempty"`
}

type UnitView struct {
	ID                string `json:"id"`
	OwnerID           string `json:"owner_id"`
	Mine              bool   `json:"mine"`
	TemplateID        string `json:"template_id"`
	Name              string `json:"name"`
	Class             string `json:"class"`
	Leader            bool   `json:"leader"`
	Health            int    `json:"health"`
	MaxHealth         int    `json:"max_health"`
	Attack            int    `json:"attack"`
	Defense           int    `json:"defense"`
	Movement          int    `json:"movement"`
	Range             int    `json:"range"`
	Experience        int    `json:"experience"`
	Level             int    `json:"level"`
	RemainingMovement int    `json:"remaining_movement"`
	CanAttack         bool   `json:"can_attack"`
	Position          Coord  `json:"position"`
}

type StoreItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Class    string `json:"class"`
	Price    int    `json:"price"`
	Health   int    `json:"health"`
	Attack   int    `json:"attack"`
	Defense  int    `json:"defense"`
	Movement int    `json:"movement"`
	Range    int    `json:"range"`
}
