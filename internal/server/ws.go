package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/protocol"
)

// handleWebSocket upgrades the request and starts the connection pumps.
// The connection stays anonymous until it sends connect.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}
	client := NewConnection(conn, s, s.cfg, s.clock, s.logger)
	client.Start()
}

// HandleFrame decodes one inbound frame and applies it.
func (s *Server) HandleFrame(c *Connection, frame []byte) {
	if !c.Allow() {
		c.sendMessage(protocol.TypeError, protocol.Error{Code: protocol.CodeRateLimited, Message: "too many messages"})
		return
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		c.sendMessage(protocol.TypeError, protocol.Error{Code: protocol.CodeBadMessage, Message: err.Error()})
		return
	}

	switch env.Type {
	case protocol.TypePing:
		c.sendMessage(protocol.TypePong, nil)
		return
	case protocol.TypePong:
		return
	case protocol.TypeConnect:
		var msg protocol.Connect
		if err := env.Into(&msg); err != nil || msg.GameID == "" || msg.PlayerID == "" {
			c.sendMessage(protocol.TypeError, protocol.Error{Code: protocol.CodeBadMessage, Message: "connect needs gameId and playerId"})
			return
		}
		if err := s.hub.Identify(c, msg.GameID, msg.PlayerID); err != nil {
			s.sendError(c, err)
		}
		return
	}

	gameID, playerID, ok := s.hub.Binding(c)
	if !ok {
		c.sendMessage(protocol.TypeError, protocol.Error{Code: protocol.CodeNotIdentified, Message: "send connect first"})
		return
	}
	if err := s.dispatch(env, gameID, playerID); err != nil {
		s.sendError(c, err)
	}
}

// Disconnected runs once the read pump has stopped.
func (s *Server) Disconnected(c *Connection) {
	s.hub.Unregister(c)
}

func (s *Server) dispatch(env protocol.Envelope, gameID, playerID string) error {
	switch env.Type {
	case protocol.TypeStartGame:
		return s.rooms.Start(gameID, playerID)
	case protocol.TypeStartNewRound:
		return s.rooms.NewRound(gameID, playerID)
	case protocol.TypePassTurn:
		return s.rooms.Pass(gameID, playerID)
	case protocol.TypePlayCards:
		var msg protocol.PlayCards
		if err := env.Into(&msg); err != nil {
			return err
		}
		return s.rooms.Play(gameID, playerID, msg.Cards)
	case protocol.TypePickCard:
		var msg protocol.PickCard
		if err := env.Into(&msg); err != nil {
			return err
		}
		return s.rooms.Pick(gameID, playerID, msg.CardID)
	default:
		return errUnknownMessage{env.Type}
	}
}

type errUnknownMessage struct{ msgType string }

func (e errUnknownMessage) Error() string { return "unknown message type " + e.msgType }

// sendError reports err to the sender only.
func (s *Server) sendError(c *Connection, err error) {
	var gameErr *game.Error
	var unknown errUnknownMessage
	switch {
	case errors.As(err, &gameErr):
		c.sendMessage(protocol.TypeError, protocol.Error{Code: string(gameErr.Code), Message: gameErr.Message})
	case errors.As(err, &unknown):
		c.sendMessage(protocol.TypeError, protocol.Error{Code: protocol.CodeUnknownMessage, Message: err.Error()})
	default:
		c.sendMessage(protocol.TypeError, protocol.Error{Code: protocol.CodeBadMessage, Message: err.Error()})
	}
}
