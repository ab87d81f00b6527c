package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"hextactics.gg/internal/protocol"
	"hextactics.gg/internal/sim/lobby"
	"hextactics.gg/internal/sim/simerr"
)

var errBadRequest = errors.New("bad request")

const defaultIdleTimeout = 60 * time.Second

type Config struct {
	Lobby   *lobby.Lobby
	Hub     *Hub
	Logger  *zap.Logger
	Params  protocol.MatchParams
	Digests protocol.CatalogDigests

	// IdleTimeout bounds how long a connection may go without any frame,
	// pongs included. The server pings at half of it. Zero means 60s.
	IdleTimeout time.Duration
}

type Server struct {
	lobby   *lobby.Lobby
	hub     *Hub
	log     *zap.Logger
	params  protocol.MatchParams
	digests protocol.CatalogDigests

	idleTimeout  time.Duration
	pingInterval time.Duration

	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &Server{
		lobby:        cfg.Lobby,
		hub:          hub,
		log:          logger,
		params:       cfg.Params,
		digests:      cfg.Digests,
		idleTimeout:  idle,
		pingInterval: idle / 2,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess, hello := s.handshake(conn)
		if sess == nil {
			return
		}
		log := s.log.With(zap.String("player_id", sess.playerID))

		// Register before joining so MATCH_START lands in the queue; the
		// writer below drains it.
		s.hub.register(sess)
		defer s.hub.unregister(sess.playerID)
		if _, _, err := s.lobby.Join(lobby.Player{ID: sess.playerID, Name: hello.PlayerName, LeaderID: hello.LeaderID}); err != nil {
			log.Info("join rejected", zap.Error(err))
			_ = writeFrame(conn, errorMsg(err, ""), sess.binary)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		frame := websocket.TextMessage
		if sess.binary {
			frame = websocket.BinaryMessage
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		})

		// Writer goroutine. Pings keep quiet players (waiting for their turn)
		// connected.
		go func() {
			ping := time.NewTicker(s.pingInterval)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						cancel()
						return
					}
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(frame, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
			var base protocol.BaseMessage
			if err := protocol.Unmarshal(msg, sess.binary, &base); err != nil {
				s.send(sess, errorMsg(errBadRequest, ""))
				continue
			}
			if base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := protocol.Unmarshal(msg, sess.binary, &act); err != nil || act.ProtocolVersion != protocol.Version {
				s.send(sess, errorMsg(errBadRequest, act.ActID))
				continue
			}
			if err := s.dispatch(sess.playerID, act); err != nil {
				log.Debug("act rejected", zap.String("command", act.Command), zap.Error(err))
				s.send(sess, errorMsg(err, act.ActID))
				continue
			}
			m, _ := s.lobby.MatchOf(sess.playerID)
			ack := protocol.AckMsg{
				Type:            protocol.TypeAck,
				ProtocolVersion: protocol.Version,
				AckFor:          act.ActID,
				Accepted:        true,
			}
			if m != nil {
				ack.MatchID = m.ID
			}
			s.send(sess, ack)
		}

		// Cleanup.
		if err := s.lobby.Leave(sess.playerID); err != nil && !errors.Is(err, lobby.ErrMatchNotFound) {
			log.Warn("leave", zap.Error(err))
		}
	}
}

func (s *Server) dispatch(playerID string, act protocol.ActMsg) error {
	switch act.Command {
	case protocol.CmdBuyUnit:
		if act.TemplateID == "" {
			return errBadRequest
		}
		_, err := s.lobby.BuyUnit(playerID, act.TemplateID)
		return err
	case protocol.CmdMoveUnit:
		if act.From == nil || act.To == nil {
			return errBadRequest
		}
		return s.lobby.MoveUnit(playerID, lobby.Axial(*act.From), lobby.Axial(*act.To))
	case protocol.CmdAttackUnit:
		if act.From == nil || act.To == nil {
			return errBadRequest
		}
		_, err := s.lobby.AttackUnit(playerID, lobby.Axial(*act.From), lobby.Axial(*act.To))
		return err
	case protocol.CmdFinishTurn:
		return s.lobby.FinishTurn(playerID)
	case protocol.CmdLeave:
		return s.lobby.Leave(playerID)
	default:
		return errBadRequest
	}
}

func (s *Server) send(sess *session, v any) {
	b, err := protocol.Marshal(v, sess.binary)
	if err != nil {
		s.log.Warn("encode", zap.Error(err))
		return
	}
	sendLatest(sess.out, b)
}

func (s *Server) handshake(conn *websocket.Conn) (*session, protocol.HelloMsg) {
	var hello protocol.HelloMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, hello
	}
	binary := mt == websocket.BinaryMessage

	var base protocol.BaseMessage
	if err := protocol.Unmarshal(msg, binary, &base); err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, hello
	}
	if err := protocol.Unmarshal(msg, binary, &hello); err != nil {
		return nil, hello
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, hello
	}
	hello.PlayerName = strings.TrimSpace(hello.PlayerName)
	if hello.PlayerName == "" {
		hello.PlayerName = "player"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	sess := &session{
		playerID: "P" + uuid.NewString(),
		binary:   binary || hello.Capabilities.Binary,
		out:      make(chan []byte, maxQ),
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		PlayerID:        sess.playerID,
		Binary:          sess.binary,
		MatchParams:     s.params,
		Catalogs:        s.digests,
	}
	store := protocol.CatalogMsg{
		Type:            protocol.TypeCatalog,
		ProtocolVersion: protocol.Version,
		Name:            "unit_store",
		Digest:          s.digests.Units.Digest,
		Part:            1,
		TotalParts:      1,
		Data:            s.lobby.Store(),
	}
	// Send welcome + catalog immediately.
	for _, v := range []any{welcome, store} {
		if err := writeFrame(conn, v, sess.binary); err != nil {
			return nil, hello
		}
	}
	return sess, hello
}

func writeFrame(conn *websocket.Conn, v any, binary bool) error {
	b, err := protocol.Marshal(v, binary)
	if err != nil {
		return err
	}
	frame := websocket.TextMessage
	if binary {
		frame = websocket.BinaryMessage
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(frame, b)
}

func errorMsg(err error, actID string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            CodeFor(err),
		Message:         err.Error(),
		ActID:           actID,
	}
}

// CodeFor maps a rejected command to its wire code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errBadRequest):
		return protocol.ErrProtoBadRequest
	case errors.Is(err, lobby.ErrMatchNotFound):
		return protocol.ErrMatchNotFound
	case errors.Is(err, lobby.ErrMatchNotActive):
		return protocol.ErrMatchNotActive
	case errors.Is(err, lobby.ErrNotYourTurn):
		return protocol.ErrNotYourTurn
	}
	switch simerr.KindOf(err) {
	case simerr.KindNotFound:
		return protocol.ErrNotFound
	case simerr.KindInvalid:
		return protocol.ErrInvalidOperation
	}
	return protocol.ErrInternal
}
