// Package client is a small realtime client for a cardroom server. It
// dials the websocket, identifies as one seat and hands every filtered
// state it receives to a callback. It also wraps the join call of the
// HTTP API so a watcher can take a spectator seat first.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/protocol"
)

const writeWait = 10 * time.Second

var (
	ErrNotConnected    = errors.New("client: not connected")
	ErrSessionReplaced = errors.New("client: session replaced by another connection")
)

// Event is one message from the server, decoded.
type Event struct {
	Type  string
	State *game.State
	Error *protocol.Error
}

// Client holds one websocket to the server.
type Client struct {
	serverURL string
	logger    *log.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a client for serverURL. http and https URLs are accepted
// and mapped to ws and wss.
func New(serverURL string, logger *log.Logger) *Client {
	return &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("client"),
	}
}

// Connect dials the realtime endpoint.
func (c *Client) Connect(ctx context.Context) error {
	u, err := websocketURL(c.serverURL)
	if err != nil {
		return err
	}

	c.logger.Info("Connecting to server", "url", u)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Identify binds the connection to a seat. The server answers with the
// current state.
func (c *Client) Identify(gameID, playerID string) error {
	return c.Send(protocol.TypeConnect, protocol.Connect{GameID: gameID, PlayerID: playerID})
}

func (c *Client) StartGame() error { return c.Send(protocol.TypeStartGame, nil) }
func (c *Client) PassTurn() error  { return c.Send(protocol.TypePassTurn, nil) }
func (c *Client) NewRound() error  { return c.Send(protocol.TypeStartNewRound, nil) }

func (c *Client) PlayCards(cards ...string) error {
	return c.Send(protocol.TypePlayCards, protocol.PlayCards{Cards: cards})
}

func (c *Client) PickCard(cardID string) error {
	return c.Send(protocol.TypePickCard, protocol.PickCard{CardID: cardID})
}

// Send writes one message. Writes are serialized.
func (c *Client) Send(msgType string, payload any) error {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Run reads until ctx is done or the server closes the connection,
// passing every state and error to handle. Application pings are
// answered here. A normal close returns nil; being replaced by another
// session returns ErrSessionReplaced.
func (c *Client) Run(ctx context.Context, handle func(Event)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	replaced := false
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			switch {
			case replaced:
				return ErrSessionReplaced
			case ctx.Err() != nil:
				return nil
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("Ignoring malformed frame", "error", err)
			continue
		}

		switch env.Type {
		case protocol.TypePing:
			if err := c.Send(protocol.TypePong, nil); err != nil {
				c.logger.Debug("Failed to answer ping", "error", err)
			}
		case protocol.TypePong:
		case protocol.TypeTurnUpdate:
			var update protocol.TurnUpdate
			if err := env.Into(&update); err != nil || update.GameState == nil {
				c.logger.Warn("Ignoring bad turn update", "error", err)
				continue
			}
			handle(Event{Type: env.Type, State: update.GameState})
		case protocol.TypeError:
			var msg protocol.Error
			if err := env.Into(&msg); err != nil {
				c.logger.Warn("Ignoring bad error message", "error", err)
				continue
			}
			handle(Event{Type: env.Type, Error: &msg})
		case protocol.TypeSessionReplaced:
			c.logger.Warn("Session replaced by another connection")
			replaced = true
		default:
			c.logger.Debug("Unhandled message", "type", env.Type)
		}
	}
}

// Close sends a close frame and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// JoinResult mirrors the server's join response.
type JoinResult struct {
	GameID   string `json:"gameId"`
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

// APIError is a rejected HTTP call.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Join takes a seat, or a spectator seat, in the room with code.
func Join(ctx context.Context, httpClient *http.Client, serverURL, code, name string, spectator bool) (JoinResult, error) {
	base, err := apiURL(serverURL)
	if err != nil {
		return JoinResult{}, err
	}

	body, err := json.Marshal(map[string]any{
		"roomCode":        code,
		"playerName":      name,
		"joinAsSpectator": spectator,
	})
	if err != nil {
		return JoinResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/games/join", bytes.NewReader(body))
	if err != nil {
		return JoinResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return JoinResult{}, fmt.Errorf("join: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var failure struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&failure)
		return JoinResult{}, &APIError{Status: resp.StatusCode, Code: failure.Error.Code, Message: failure.Error.Message}
	}

	var res JoinResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return JoinResult{}, fmt.Errorf("join: decode response: %w", err)
	}
	return res, nil
}

func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func apiURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/ws"), "/")
	u.RawQuery = ""
	return u.String(), nil
}
