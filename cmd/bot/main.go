package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hextactics.gg/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		leader   = flag.String("leader", "", "leader template id (default: server's first leader)")
		maxUnits = flag.Int("max_units", 6, "stop buying once this many units are on the board")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger = logger.Named("bot")
	defer func() { _ = logger.Sync() }()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		LeaderID:        *leader,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 16},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal("send HELLO", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	p := &planner{maxUnits: *maxUnits}
	var (
		last    protocol.MatchView
		pending bool
		stuck   bool
	)
	step := func() {
		if pending {
			return
		}
		act, ok := p.next(last)
		if !ok {
			return
		}
		if stuck {
			act = p.act(protocol.CmdFinishTurn)
			stuck = false
		}
		if err := conn.WriteJSON(act); err != nil {
			return
		}
		pending = true
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Info("WELCOME", zap.String("player_id", w.PlayerID), zap.Int("width", w.MatchParams.Width), zap.Int("height", w.MatchParams.Height))

		case protocol.TypeMatchStart:
			var m protocol.MatchStartMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			logger.Info("MATCH_START", zap.String("match_id", m.MatchID), zap.Bool("first", m.View.ActiveTurn))
			last = m.View
			step()

		case protocol.TypeMatchUpdate:
			var m protocol.MatchUpdateMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			last = m.View
			step()

		case protocol.TypeAck:
			pending = false
			step()

		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			logger.Debug("rejected", zap.String("code", e.Code), zap.String("message", e.Message))
			pending = false
			// Avoid retrying the same plan forever.
			stuck = true
			step()

		case protocol.TypeEndGame:
			var e protocol.EndGameMsg
			_ = json.Unmarshal(msg, &e)
			logger.Info("END_GAME", zap.String("winner_id", e.WinnerID), zap.String("reason", e.Reason))
			return
		}
	}
}
