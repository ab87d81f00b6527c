package lobby

import (
	"hextactics.gg/internal/protocol"
	"hextactics.gg/internal/sim/hexgrid"
	"hextactics.gg/internal/sim/match"
)

// View renders matchID as viewerID sees it. Viewers who are not seated get
// a spectator view with no gold.
func (l *Lobby) View(matchID, viewerID string) (protocol.MatchView, error) {
	m, err := l.Get(matchID)
	if err != nil {
		return protocol.MatchView{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return l.viewLocked(m, viewerID), nil
}

func (l *Lobby) startMsg(m *Match, viewerID string) protocol.MatchStartMsg {
	return protocol.MatchStartMsg{
		Type:            protocol.TypeMatchStart,
		ProtocolVersion: protocol.Version,
		MatchID:         m.ID,
		View:            l.viewLocked(m, viewerID),
	}
}

func (l *Lobby) viewLocked(m *Match, viewerID string) protocol.MatchView {
	s := m.state
	v := protocol.MatchView{
		MatchID:     m.ID,
		Status:      string(m.status),
		IsPlayer:    viewerID == m.player.ID,
		ActiveTurn:  viewerID != "" && viewerID == s.TurnOwner,
		TurnOwnerID: s.TurnOwner,
		Turn:        m.turn,
		Units:       make([]protocol.UnitView, 0, len(s.Units)),
		Store:       l.Store(),
	}
	if eco, ok := s.Economy(viewerID); ok {
		v.Gold = eco.Gold
	}

	g := s.Grid(m.Width, m.Height)
	v.Map = protocol.MapView{Width: g.Width, Height: g.Height, Tiles: make([]protocol.TileView, 0, g.Len())}
	for _, t := range g.Tiles() {
		v.Map.Tiles = append(v.Map.Tiles, protocol.TileView{
			Position:     coord(t.Pos),
			Terrain:      t.Terrain,
			GoldGenerate: t.GoldGenerate,
			Occupied:     t.Occupied(),
		})
	}
	for _, k := range s.Keys() {
		v.Units = append(v.Units, unitView(s.Units[k], viewerID))
	}
	return v
}

// Store lists the purchasable unit templates.
func (l *Lobby) Store() []protocol.StoreItem {
	out := []protocol.StoreItem{}
	if l.units == nil {
		return out
	}
	for _, t := range l.units.Store() {
		out = append(out, protocol.StoreItem{
			ID:       t.ID,
			Name:     t.Name,
			Class:    t.Class,
			Price:    t.Price,
			Health:   t.Health,
			Attack:   t.Attack,
			Defense:  t.Defense,
			Movement: t.Movement,
			Range:    t.Range,
		})
	}
	return out
}

func unitView(u match.Unit, viewerID string) protocol.UnitView {
	return protocol.UnitView{
		ID:                u.ID,
		OwnerID:           u.OwnerID,
		Mine:              u.OwnerID == viewerID,
		TemplateID:        u.TemplateID,
		Name:              u.Name,
		Class:             u.Class,
		Leader:            u.Leader,
		Health:            u.Stats.Health,
		MaxHealth:         u.Stats.MaxHealth,
		Attack:            u.Stats.Attack,
		Defense:           u.Stats.Defense,
		Movement:          u.Stats.Movement,
		Range:             u.Stats.Range,
		Experience:        u.Experience,
		Level:             u.Level,
		RemainingMovement: u.RemainingMovement,
		CanAttack:         u.CanAttack,
		Position:          coord(u.Position),
	}
}

func coord(a hexgrid.Axial) protocol.Coord { return protocol.Coord{Q: a.Q, R: a.R} }

// Axial converts a wire coordinate back to the grid's.
func Axial(c protocol.Coord) hexgrid.Axial { return hexgrid.Axial{Q: c.Q, R: c.R} }
